package ports

import "context"

// StartingStackPort grants the starting chip stack at most once per
// user, however many sessions race for it.
type StartingStackPort interface {
	// GrantStartingChipsOnce attempts the one-time grant. Returns
	// granted=false when the stack was already granted.
	GrantStartingChipsOnce(ctx context.Context, userID string, amount int64, metadata map[string]interface{}) (bool, error)
}

package ports

import "context"

// WalletUpdate represents a single chip-balance change for a user.
type WalletUpdate struct {
	UserID   string
	Amount   int64
	Metadata map[string]interface{}
}

// EconomyPort mirrors round settlements into the platform wallet so
// balances survive outside the engine's own player rows.
type EconomyPort interface {
	// GetBalance retrieves the current chip balance for a user.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// UpdateBalances applies multiple wallet changes atomically.
	// Called once per finished round with the full settlement.
	UpdateBalances(ctx context.Context, updates []WalletUpdate) error
}

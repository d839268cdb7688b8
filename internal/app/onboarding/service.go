// Package onboarding grants new users their one-time starting chip
// stack after authentication.
package onboarding

import (
	"context"
	"fmt"

	"seotda/internal/ports"
)

// Service handles post-auth onboarding for new users.
type Service struct {
	grants ports.StartingStackPort
	amount int64
}

// NewService constructs an onboarding service. grants must be non-nil.
func NewService(grants ports.StartingStackPort, amount int64) *Service {
	return &Service{grants: grants, amount: amount}
}

// OnboardNewUser grants the starting stack at most once, however many
// sessions race through auth. Returns granted=false on repeat logins.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (bool, error) {
	if s.grants == nil {
		return false, fmt.Errorf("onboarding service not configured")
	}
	granted, err := s.grants.GrantStartingChipsOnce(ctx, userID, s.amount, map[string]interface{}{
		"reason": "starting_stack",
	})
	if err != nil {
		return false, fmt.Errorf("failed to grant starting stack: %w", err)
	}
	return granted, nil
}

package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/ports"
)

// NakamaEconomyAdapter mirrors round settlement into the platform
// wallet. The engine's player rows stay authoritative for a round in
// flight; the wallet carries the chip balance across games.
type NakamaEconomyAdapter struct {
	nk runtime.NakamaModule
}

var _ ports.EconomyPort = (*NakamaEconomyAdapter)(nil)

// NewNakamaEconomyAdapter creates a new economy adapter.
func NewNakamaEconomyAdapter(nk runtime.NakamaModule) *NakamaEconomyAdapter {
	return &NakamaEconomyAdapter{nk: nk}
}

// GetBalance reads the user's chip count out of the wallet JSON.
func (a *NakamaEconomyAdapter) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read account of user %s: %w", userID, err)
	}
	var wallet map[string]int64
	if err := json.Unmarshal([]byte(account.Wallet), &wallet); err != nil {
		return 0, fmt.Errorf("failed to unmarshal wallet of user %s: %w", userID, err)
	}
	return wallet[chipsCurrency], nil
}

// UpdateBalances applies one ledgered wallet change per update. Zero
// amounts are skipped.
func (a *NakamaEconomyAdapter) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	for _, u := range updates {
		if u.Amount == 0 {
			continue
		}
		changeset := map[string]int64{chipsCurrency: u.Amount}
		if _, _, err := a.nk.WalletUpdate(ctx, u.UserID, changeset, u.Metadata, true); err != nil {
			return fmt.Errorf("failed to update wallet of user %s: %w", u.UserID, err)
		}
	}
	return nil
}

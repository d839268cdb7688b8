package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/ports"
)

// NakamaGrantAdapter grants the starting chip stack using Nakama
// storage + wallet updates. The storage marker is written first-write
// only, so concurrent sessions collapse to a single grant.
type NakamaGrantAdapter struct {
	nk runtime.NakamaModule
}

var _ ports.StartingStackPort = (*NakamaGrantAdapter)(nil)

// NewNakamaGrantAdapter creates a new starting-stack adapter.
func NewNakamaGrantAdapter(nk runtime.NakamaModule) *NakamaGrantAdapter {
	return &NakamaGrantAdapter{nk: nk}
}

// GrantStartingChipsOnce grants the stack and records a marker atomically.
func (a *NakamaGrantAdapter) GrantStartingChipsOnce(ctx context.Context, userID string, amount int64, metadata map[string]interface{}) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID is required")
	}
	if amount <= 0 {
		return false, fmt.Errorf("amount must be positive")
	}

	marker := map[string]interface{}{
		"amount":     amount,
		"granted_at": time.Now().UTC().Format(time.RFC3339),
	}
	value, err := json.Marshal(marker)
	if err != nil {
		return false, fmt.Errorf("failed to marshal starting stack marker: %w", err)
	}

	storageWrites := []*runtime.StorageWrite{
		{
			Collection:      onboardingCollection,
			Key:             startingStackKey,
			UserID:          userID,
			Value:           string(value),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}

	walletUpdates := []*runtime.WalletUpdate{
		{
			UserID:    userID,
			Changeset: map[string]int64{chipsCurrency: amount},
			Metadata:  metadata,
		},
	}

	_, _, err = a.nk.MultiUpdate(ctx, nil, storageWrites, nil, walletUpdates, true)
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return false, nil
		}
		return false, fmt.Errorf("failed to grant starting stack: %w", err)
	}

	return true, nil
}

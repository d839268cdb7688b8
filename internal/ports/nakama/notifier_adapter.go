package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/ports"
)

// NakamaNotifierAdapter pushes engine events as Nakama notifications.
type NakamaNotifierAdapter struct {
	nk runtime.NakamaModule
}

var _ ports.NotifierPort = (*NakamaNotifierAdapter)(nil)

// NewNakamaNotifierAdapter creates a new notifier adapter.
func NewNakamaNotifierAdapter(nk runtime.NakamaModule) *NakamaNotifierAdapter {
	return &NakamaNotifierAdapter{nk: nk}
}

// Notify sends one payload to one user. Game events are transient, so
// nothing is persisted to the notification inbox.
func (a *NakamaNotifierAdapter) Notify(ctx context.Context, userID, subject string, code int, payload any) error {
	content, err := payloadToContent(payload)
	if err != nil {
		return err
	}
	if err := a.nk.NotificationSend(ctx, userID, subject, content, code, "", false); err != nil {
		return fmt.Errorf("failed to notify user %s: %w", userID, err)
	}
	return nil
}

// payloadToContent converts a typed event payload into the map form
// Nakama notifications carry, through its JSON encoding.
func payloadToContent(payload any) (map[string]interface{}, error) {
	if payload == nil {
		return map[string]interface{}{}, nil
	}
	if m, ok := payload.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	var content map[string]interface{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("failed to convert notification payload: %w", err)
	}
	return content, nil
}

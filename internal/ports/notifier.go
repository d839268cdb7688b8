package ports

import "context"

// Notification codes pushed to clients.
const (
	NoticePlayerJoined  = 1101
	NoticeGameStarted   = 1102
	NoticeHandDealt     = 1103
	NoticeActionApplied = 1104
	NoticeThirdCard     = 1105
	NoticeRoundResult   = 1106
	NoticeRegame        = 1107
	NoticeTurnForced    = 1108
	NoticeStateChanged  = 1109
)

// NotifierPort pushes fire-and-forget JSON notifications to players.
// Delivery failures are the adapter's concern; the engine never blocks
// on them.
type NotifierPort interface {
	// Notify sends one payload to one user.
	Notify(ctx context.Context, userID, subject string, code int, payload any) error
}

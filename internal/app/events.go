package app

import (
	"time"

	"seotda/internal/domain"
)

// EventKind identifies emitted domain events for notifier dispatch.
type EventKind string

const (
	EventPlayerJoined  EventKind = "player_joined"
	EventGameStarted   EventKind = "game_started"
	EventHandDealt     EventKind = "hand_dealt"
	EventActionApplied EventKind = "action_applied"
	EventThirdCard     EventKind = "third_card"
	EventRoundFinished EventKind = "round_finished"
	EventRegame        EventKind = "regame"
	EventTurnForced    EventKind = "turn_forced"
	EventStateChanged  EventKind = "state_changed"
)

// Event is a domain/app event with its targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs
}

type PlayerJoinedPayload struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Seat     int    `json:"seat"`
}

type GameStartedPayload struct {
	GameID      string    `json:"game_id"`
	Street      int       `json:"street"`
	CurrentSeat int       `json:"current_seat"`
	Deadline    time.Time `json:"deadline"`
	Pot         int64     `json:"pot"`
}

type HandDealtPayload struct {
	GameID string        `json:"game_id"`
	Hand   []domain.Card `json:"hand"`
}

type ActionAppliedPayload struct {
	GameID   string            `json:"game_id"`
	PlayerID string            `json:"player_id"`
	Action   domain.ActionType `json:"action"`
	Amount   int64             `json:"amount"`
	Pot      int64             `json:"pot"`
	NextSeat int               `json:"next_seat"`
	Forced   bool              `json:"forced,omitempty"`
}

type ThirdCardPayload struct {
	GameID string      `json:"game_id"`
	Card   domain.Card `json:"card"`
}

type RoundFinishedPayload struct {
	GameID   string                      `json:"game_id"`
	WinnerID string                      `json:"winner_id"`
	Payout   int64                       `json:"payout"`
	Bonuses  map[string]int64            `json:"bonuses,omitempty"`
	Ranks    map[string]domain.HandValue `json:"ranks,omitempty"`
	FoldWin  bool                        `json:"fold_win"`
}

type RegamePayload struct {
	GameID   string    `json:"game_id"`
	Pot      int64     `json:"pot"`
	RegameAt time.Time `json:"regame_at"`
}

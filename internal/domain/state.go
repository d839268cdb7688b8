package domain

import (
	"sort"
	"time"
)

// Status is the lifecycle stage of a game round.
type Status string

const (
	// StatusWaiting is the pre-deal state where players can join.
	StatusWaiting Status = "waiting"
	// StatusPlaying is the active betting state.
	StatusPlaying Status = "playing"
	// StatusFinished means the round resolved with a winner.
	StatusFinished Status = "finished"
	// StatusRegame means the round was voided and will redeal after a
	// fixed delay, keeping the pot.
	StatusRegame Status = "regame"
)

// Mode selects the two-card or three-card variant.
type Mode string

const (
	ModeTwoCard   Mode = "two"
	ModeThreeCard Mode = "three"
)

// ActionType identifies a betting action.
type ActionType string

const (
	ActionCheck  ActionType = "check"
	ActionCall   ActionType = "call"
	ActionBet    ActionType = "bet"
	ActionRaise  ActionType = "raise"
	ActionHalf   ActionType = "half"
	ActionDouble ActionType = "double"
	ActionDie    ActionType = "die"

	// ActionDeal is recorded when a street is dealt; it is not a
	// player-submittable action.
	ActionDeal ActionType = "deal"
)

// BettingAction reports whether t can be submitted by a player.
func BettingAction(t ActionType) bool {
	switch t {
	case ActionCheck, ActionCall, ActionBet, ActionRaise, ActionHalf, ActionDouble, ActionDie:
		return true
	}
	return false
}

// GameState is one version of a game row. Mutations operate on a copy
// and are committed conditionally on Version (compare-and-swap).
type GameState struct {
	ID           string           `json:"id"`
	Status       Status           `json:"status"`
	Mode         Mode             `json:"mode"`
	HostID       string           `json:"host_id"`
	BaseBet      int64            `json:"base_bet"`
	Pot          int64            `json:"pot"`
	LastBet      int64            `json:"last_bet"`
	Street       int              `json:"street"`
	CurrentSeat  int              `json:"current_seat"` // -1 outside PLAYING
	TurnDeadline time.Time        `json:"turn_deadline"`
	RegameAt     time.Time        `json:"regame_at"`
	WinnerID     string           `json:"winner_id"`
	Revealed     bool             `json:"revealed"`
	BonusLedger  map[string]int64 `json:"bonus_ledger,omitempty"`
	Deck         []Card           `json:"deck,omitempty"` // undealt remainder
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	// Version is the store's opaque row version; empty means the row
	// does not exist yet.
	Version string `json:"-"`
}

// Clone returns a deep copy safe for mutation.
func (g *GameState) Clone() *GameState {
	out := *g
	if g.Deck != nil {
		out.Deck = append([]Card(nil), g.Deck...)
	}
	if g.BonusLedger != nil {
		out.BonusLedger = make(map[string]int64, len(g.BonusLedger))
		for k, v := range g.BonusLedger {
			out.BonusLedger[k] = v
		}
	}
	return &out
}

// Player is one version of a player row.
type Player struct {
	ID           string `json:"id"`
	GameID       string `json:"game_id"`
	Name         string `json:"name"`
	Balance      int64  `json:"balance"`
	Hand         []Card `json:"hand,omitempty"`
	Folded       bool   `json:"folded"`
	Seat         int    `json:"seat"`
	Contribution int64  `json:"contribution"`
	Acted        bool   `json:"acted"`

	Version string `json:"-"`
}

// Clone returns a deep copy safe for mutation.
func (p *Player) Clone() *Player {
	out := *p
	if p.Hand != nil {
		out.Hand = append([]Card(nil), p.Hand...)
	}
	return &out
}

// ActionRecord is an append-only audit entry.
type ActionRecord struct {
	ID        string     `json:"id"`
	GameID    string     `json:"game_id"`
	PlayerID  string     `json:"player_id"`
	Type      ActionType `json:"type"`
	Amount    int64      `json:"amount"`
	Forced    bool       `json:"forced"` // applied by the timeout supervisor
	CreatedAt time.Time  `json:"created_at"`
}

// SortBySeat orders players by ascending seat index, in place.
func SortBySeat(players []*Player) {
	sort.Slice(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })
}

// NonFolded returns the players still in the round, seat order.
func NonFolded(players []*Player) []*Player {
	out := make([]*Player, 0, len(players))
	for _, p := range players {
		if !p.Folded {
			out = append(out, p)
		}
	}
	SortBySeat(out)
	return out
}

// MaxContribution returns the highest contribution among non-folded
// players, the amount a call must match.
func MaxContribution(players []*Player) int64 {
	var max int64
	for _, p := range players {
		if !p.Folded && p.Contribution > max {
			max = p.Contribution
		}
	}
	return max
}

// PlayerBySeat returns the player at the given seat, or nil.
func PlayerBySeat(players []*Player, seat int) *Player {
	for _, p := range players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// NextSeat returns the seat of the next non-folded player after the
// given seat, wrapping cyclically. Returns -1 when nobody is eligible.
func NextSeat(players []*Player, after int) int {
	remaining := NonFolded(players)
	if len(remaining) == 0 {
		return -1
	}
	for _, p := range remaining {
		if p.Seat > after {
			return p.Seat
		}
	}
	return remaining[0].Seat
}

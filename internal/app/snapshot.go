package app

import (
	"context"
	"time"

	"seotda/internal/domain"
)

// PlayerView is one player as seen by a specific viewer. Hands are
// masked unless the viewer owns them or the round revealed.
type PlayerView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Seat         int           `json:"seat"`
	Balance      int64         `json:"balance"`
	Folded       bool          `json:"folded"`
	Contribution int64         `json:"contribution"`
	CardCount    int           `json:"card_count"`
	Hand         []domain.Card `json:"hand,omitempty"`
	HandName     string        `json:"hand_name,omitempty"`
}

// GameSnapshot is the read model returned to clients.
type GameSnapshot struct {
	ID              string           `json:"id"`
	Status          domain.Status    `json:"status"`
	Mode            domain.Mode      `json:"mode"`
	HostID          string           `json:"host_id"`
	BaseBet         int64            `json:"base_bet"`
	Pot             int64            `json:"pot"`
	Street          int              `json:"street"`
	CurrentSeat     int              `json:"current_seat"`
	CurrentPlayerID string           `json:"current_player_id,omitempty"`
	TurnDeadline    time.Time        `json:"turn_deadline,omitempty"`
	WinnerID        string           `json:"winner_id,omitempty"`
	RegameInSeconds int64            `json:"regame_in_seconds,omitempty"`
	BonusLedger     map[string]int64 `json:"bonus_ledger,omitempty"`
	Players         []PlayerView     `json:"players"`
}

// Snapshot returns the game as visible to viewerID.
func (s *Service) Snapshot(ctx context.Context, gameID, viewerID string) (*GameSnapshot, error) {
	game, err := s.store.ReadGameState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.ReadPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(game, players, viewerID, s.now()), nil
}

func buildSnapshot(game *domain.GameState, players []*domain.Player, viewerID string, now time.Time) *GameSnapshot {
	snap := &GameSnapshot{
		ID:          game.ID,
		Status:      game.Status,
		Mode:        game.Mode,
		HostID:      game.HostID,
		BaseBet:     game.BaseBet,
		Pot:         game.Pot,
		Street:      game.Street,
		CurrentSeat: game.CurrentSeat,
		WinnerID:    game.WinnerID,
		BonusLedger: game.BonusLedger,
		Players:     make([]PlayerView, 0, len(players)),
	}
	if game.Status == domain.StatusPlaying {
		snap.TurnDeadline = game.TurnDeadline
		if actor := domain.PlayerBySeat(players, game.CurrentSeat); actor != nil {
			snap.CurrentPlayerID = actor.ID
		}
	}
	if game.Status == domain.StatusRegame && game.RegameAt.After(now) {
		snap.RegameInSeconds = int64(game.RegameAt.Sub(now) / time.Second)
	}

	for _, p := range players {
		view := PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Seat:         p.Seat,
			Balance:      p.Balance,
			Folded:       p.Folded,
			Contribution: p.Contribution,
			CardCount:    len(p.Hand),
		}
		if len(p.Hand) > 0 && (p.ID == viewerID || game.Revealed) {
			view.Hand = p.Hand
			if len(p.Hand) >= domain.HandSize {
				_, val := domain.BestHand(p.Hand)
				view.HandName = val.Name()
			}
		}
		snap.Players = append(snap.Players, view)
	}
	return snap
}

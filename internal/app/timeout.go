package app

import (
	"context"
	"errors"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/domain"
	"seotda/internal/ports"
)

// sweepLimit caps how many games one sweep pass touches.
const sweepLimit = 100

// Supervisor is the timeout sweep: it force-folds expired turns and
// redeals elapsed regames. Each game is a single conditional
// transition; a lost race means a player got there first and the game
// is simply skipped until the next pass.
type Supervisor struct {
	svc    *Service
	store  ports.SessionStore
	logger runtime.Logger
	now    func() time.Time
}

// NewSupervisor constructs a Supervisor sharing the service's store.
func NewSupervisor(svc *Service, logger runtime.Logger) *Supervisor {
	return &Supervisor{
		svc:    svc,
		store:  svc.store,
		logger: logger,
		now:    svc.now,
	}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.svc.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce processes every due game once. Per-game errors are logged
// and never abort the sweep.
func (s *Supervisor) SweepOnce(ctx context.Context) {
	playing, err := s.store.ListGamesByStatus(ctx, domain.StatusPlaying, sweepLimit)
	if err != nil {
		s.logger.Error("sweep: listing playing games: %v", err)
	}
	for _, game := range playing {
		if err := s.sweepPlaying(ctx, game); err != nil {
			s.logger.Warn("sweep: game %s skipped: %v", game.ID, err)
		}
	}

	regames, err := s.store.ListGamesByStatus(ctx, domain.StatusRegame, sweepLimit)
	if err != nil {
		s.logger.Error("sweep: listing regames: %v", err)
	}
	for _, game := range regames {
		if err := s.sweepRegame(ctx, game); err != nil {
			s.logger.Warn("sweep: regame %s skipped: %v", game.ID, err)
		}
	}
}

// sweepPlaying force-folds the current actor of one expired turn. The
// commit is conditioned on the version read by the listing, so a turn
// that advanced in the meantime rejects cleanly instead of being
// double-processed.
func (s *Supervisor) sweepPlaying(ctx context.Context, game *domain.GameState) error {
	now := s.now()
	if game.TurnDeadline.IsZero() || now.Before(game.TurnDeadline) {
		return nil
	}
	players, err := s.store.ReadPlayers(ctx, game.ID)
	if err != nil {
		return err
	}

	actor := domain.PlayerBySeat(players, game.CurrentSeat)
	if actor == nil || actor.Folded {
		// Inconsistent row: the recorded actor cannot act. Reassign
		// with no penalty.
		next := domain.NextSeat(players, game.CurrentSeat)
		if next == -1 {
			return errors.New("no eligible actor to reassign")
		}
		s.logger.Warn("sweep: game %s current seat %d invalid, reassigning to %d", game.ID, game.CurrentSeat, next)
		game.CurrentSeat = next
		game.TurnDeadline = now.Add(s.svc.cfg.TurnDuration())
		game.UpdatedAt = now
		return s.store.ConditionalUpdateGame(ctx, game)
	}

	events, err := s.svc.applyOn(ctx, game, players, actor.ID, domain.ActionDie, 0, true)
	if err != nil {
		return err
	}
	s.logger.Info("sweep: game %s forced fold for %s", game.ID, actor.ID)
	s.svc.Dispatch(ctx, events)
	return nil
}

// sweepRegame redeals one voided round whose delay has elapsed.
func (s *Supervisor) sweepRegame(ctx context.Context, game *domain.GameState) error {
	if game.RegameAt.IsZero() || s.now().Before(game.RegameAt) {
		return nil
	}
	players, err := s.store.ReadPlayers(ctx, game.ID)
	if err != nil {
		return err
	}
	events, err := s.svc.deal(ctx, game, players)
	if err != nil {
		return err
	}
	s.logger.Info("sweep: game %s redealt after regame", game.ID)
	s.svc.Dispatch(ctx, events)
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/config"
	"seotda/internal/domain"
	"seotda/internal/ports"
)

// maxActionRetries bounds how often a lost optimistic-write race is
// retried by re-reading and reapplying.
const maxActionRetries = 3

// historyDefaultLimit caps action-trail listings when the caller gives
// no limit.
const historyDefaultLimit = 100

var (
	ErrNotHost       = errors.New("actor is not the host")
	ErrAlreadyJoined = errors.New("player already joined")
	ErrTableFull     = errors.New("table is full")
)

// Service contains the Seotda use-cases. All game mutations go through
// the store's conditional writes; two concurrent attempts on the same
// turn yield exactly one commit.
type Service struct {
	store    ports.SessionStore
	economy  ports.EconomyPort
	notifier ports.NotifierPort
	logger   runtime.Logger
	cfg      *config.GameConfig
	rng      *rand.Rand
	now      func() time.Time
}

// NewService constructs a Service. economy and notifier may be nil for
// engine-only use; rng may be nil to use a time-seeded default.
func NewService(store ports.SessionStore, economy ports.EconomyPort, notifier ports.NotifierPort, logger runtime.Logger, cfg *config.GameConfig, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		store:    store,
		economy:  economy,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		rng:      rng,
		now:      time.Now,
	}
}

// CreateGame creates a WAITING game with the host seated at 0.
func (s *Service) CreateGame(ctx context.Context, hostID, hostName, tier string, mode domain.Mode) (*domain.GameState, []Event, error) {
	if hostID == "" {
		return nil, nil, fmt.Errorf("%w: missing host id", domain.ErrValidation)
	}
	if mode == "" {
		mode = domain.ModeTwoCard
	}
	if mode != domain.ModeTwoCard && mode != domain.ModeThreeCard {
		return nil, nil, fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	}

	now := s.now()
	game := &domain.GameState{
		ID:          uuid.NewString(),
		Status:      domain.StatusWaiting,
		Mode:        mode,
		HostID:      hostID,
		BaseBet:     config.GetBaseBet(tier),
		CurrentSeat: -1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	host := &domain.Player{
		ID:      hostID,
		GameID:  game.ID,
		Name:    hostName,
		Seat:    0,
		Balance: s.startingBalance(ctx, hostID),
	}

	if err := s.store.ConditionalUpdateGame(ctx, game); err != nil {
		return nil, nil, err
	}
	if err := s.store.ConditionalUpdatePlayer(ctx, host); err != nil {
		return nil, nil, err
	}

	events := []Event{{
		Kind: EventPlayerJoined,
		Payload: PlayerJoinedPayload{
			GameID:   game.ID,
			PlayerID: host.ID,
			Name:     host.Name,
			Seat:     host.Seat,
		},
		Recipients: []string{host.ID},
	}}
	return game, events, nil
}

// JoinGame seats a player at a WAITING table. Concurrent joins are
// serialized through the game row's version.
func (s *Service) JoinGame(ctx context.Context, gameID, playerID, name string) (*domain.Player, []Event, error) {
	if playerID == "" {
		return nil, nil, fmt.Errorf("%w: missing player id", domain.ErrValidation)
	}
	for attempt := 0; attempt < maxActionRetries; attempt++ {
		game, err := s.store.ReadGameState(ctx, gameID)
		if err != nil {
			return nil, nil, err
		}
		if game.Status != domain.StatusWaiting {
			return nil, nil, fmt.Errorf("%w: game is %s", domain.ErrWrongStatus, game.Status)
		}
		players, err := s.store.ReadPlayers(ctx, gameID)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range players {
			if p.ID == playerID {
				return nil, nil, ErrAlreadyJoined
			}
		}
		if len(players) >= s.cfg.GetMaxSeats() {
			return nil, nil, ErrTableFull
		}

		seat := 0
		for _, p := range players {
			if p.Seat >= seat {
				seat = p.Seat + 1
			}
		}
		player := &domain.Player{
			ID:      playerID,
			GameID:  gameID,
			Name:    name,
			Seat:    seat,
			Balance: s.startingBalance(ctx, playerID),
		}

		// Touching the game row first serializes seat assignment: a
		// racing join bumps the version and this attempt restarts.
		game.UpdatedAt = s.now()
		if err := s.store.ConditionalUpdateGame(ctx, game); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return nil, nil, err
		}
		if err := s.store.ConditionalUpdatePlayer(ctx, player); err != nil {
			return nil, nil, err
		}

		payload := PlayerJoinedPayload{GameID: gameID, PlayerID: playerID, Name: name, Seat: seat}
		events := []Event{{
			Kind:       EventPlayerJoined,
			Payload:    payload,
			Recipients: append(recipients(players), playerID),
		}}
		return player, events, nil
	}
	return nil, nil, fmt.Errorf("%w: join retries exhausted", domain.ErrVersionConflict)
}

// StartGame deals the first round. Only the host may start.
func (s *Service) StartGame(ctx context.Context, gameID, actorID string) ([]Event, error) {
	game, err := s.store.ReadGameState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID != actorID {
		return nil, ErrNotHost
	}
	players, err := s.store.ReadPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return s.deal(ctx, game, players)
}

// deal runs StartRound on the given rows and commits the transition.
// Used for both the initial deal and regame redeals.
func (s *Service) deal(ctx context.Context, game *domain.GameState, players []*domain.Player) ([]Event, error) {
	if err := domain.StartRound(game, players, s.rng, s.now(), s.cfg.TurnDuration()); err != nil {
		return nil, err
	}
	if err := s.store.CommitTransition(ctx, game, players); err != nil {
		return nil, err
	}
	s.appendAudit(ctx, game.ID, "", domain.ActionDeal, 0, false)

	all := recipients(players)
	events := []Event{{
		Kind: EventGameStarted,
		Payload: GameStartedPayload{
			GameID:      game.ID,
			Street:      game.Street,
			CurrentSeat: game.CurrentSeat,
			Deadline:    game.TurnDeadline,
			Pot:         game.Pot,
		},
		Recipients: all,
	}}
	for _, p := range players {
		events = append(events, Event{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{GameID: game.ID, Hand: p.Hand},
			Recipients: []string{p.ID},
		})
	}
	return events, nil
}

// SubmitAction validates and commits one betting action. A lost
// optimistic-write race is retried by re-reading, up to maxActionRetries.
func (s *Service) SubmitAction(ctx context.Context, gameID, playerID string, action domain.ActionType, amount int64) ([]Event, error) {
	if !domain.BettingAction(action) {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action)
	}
	var lastErr error
	for attempt := 0; attempt < maxActionRetries; attempt++ {
		game, err := s.store.ReadGameState(ctx, gameID)
		if err != nil {
			return nil, err
		}
		players, err := s.store.ReadPlayers(ctx, gameID)
		if err != nil {
			return nil, err
		}
		events, err := s.applyOn(ctx, game, players, playerID, action, amount, false)
		if errors.Is(err, domain.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return events, err
	}
	return nil, lastErr
}

// applyOn applies one action to already-read rows and commits it as a
// single conditional transition. forced marks supervisor-issued folds.
func (s *Service) applyOn(ctx context.Context, game *domain.GameState, players []*domain.Player, playerID string, action domain.ActionType, amount int64, forced bool) ([]Event, error) {
	out, err := domain.ApplyAction(game, players, playerID, action, amount, s.now(), s.cfg.TurnDuration())
	if err != nil {
		return nil, err
	}

	var res domain.Resolution
	if out.Completed {
		res, err = domain.Resolve(game, players)
		if err != nil {
			return nil, err
		}
		domain.ApplyResolution(game, players, res, s.now(), s.cfg.RegameDelay())
	}

	if err := s.store.CommitTransition(ctx, game, players); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, game.ID, playerID, action, out.Debit, forced)
	s.settle(ctx, game, playerID, action, out, res)

	all := recipients(players)
	kind := EventActionApplied
	if forced {
		kind = EventTurnForced
	}
	events := []Event{{
		Kind: kind,
		Payload: ActionAppliedPayload{
			GameID:   game.ID,
			PlayerID: playerID,
			Action:   action,
			Amount:   out.Debit,
			Pot:      game.Pot,
			NextSeat: game.CurrentSeat,
			Forced:   forced,
		},
		Recipients: all,
	}}

	if out.DealtThird {
		for _, p := range domain.NonFolded(players) {
			events = append(events, Event{
				Kind:       EventThirdCard,
				Payload:    ThirdCardPayload{GameID: game.ID, Card: p.Hand[len(p.Hand)-1]},
				Recipients: []string{p.ID},
			})
		}
	}

	if out.Completed {
		if res.Regame {
			events = append(events, Event{
				Kind:       EventRegame,
				Payload:    RegamePayload{GameID: game.ID, Pot: game.Pot, RegameAt: game.RegameAt},
				Recipients: all,
			})
		} else {
			events = append(events, Event{
				Kind: EventRoundFinished,
				Payload: RoundFinishedPayload{
					GameID:   game.ID,
					WinnerID: res.WinnerID,
					Payout:   res.Payout,
					Bonuses:  res.Bonuses,
					Ranks:    res.Ranks,
					FoldWin:  out.FoldWin,
				},
				Recipients: all,
			})
		}
	}
	return events, nil
}

// settle mirrors committed balance changes into the platform wallet.
// Best-effort: the engine's player rows stay authoritative.
func (s *Service) settle(ctx context.Context, game *domain.GameState, playerID string, action domain.ActionType, out domain.StepOutcome, res domain.Resolution) {
	if s.economy == nil {
		return
	}
	var updates []ports.WalletUpdate
	if out.Debit > 0 {
		updates = append(updates, ports.WalletUpdate{
			UserID: playerID,
			Amount: -out.Debit,
			Metadata: map[string]interface{}{
				"game_id": game.ID,
				"action":  string(action),
			},
		})
	}
	if out.Completed && !res.Regame {
		updates = append(updates, ports.WalletUpdate{
			UserID: res.WinnerID,
			Amount: res.Payout,
			Metadata: map[string]interface{}{
				"game_id": game.ID,
				"reason":  "round_win",
			},
		})
		for loserID, bonus := range res.Bonuses {
			updates = append(updates, ports.WalletUpdate{
				UserID: loserID,
				Amount: -bonus,
				Metadata: map[string]interface{}{
					"game_id": game.ID,
					"reason":  "rank_bonus",
				},
			})
		}
	}
	if len(updates) == 0 {
		return
	}
	if err := s.economy.UpdateBalances(ctx, updates); err != nil {
		s.logger.Warn("wallet settlement failed for game %s: %v", game.ID, err)
	}
}

// appendAudit records one action-trail entry. Best-effort.
func (s *Service) appendAudit(ctx context.Context, gameID, playerID string, action domain.ActionType, amount int64, forced bool) {
	rec := &domain.ActionRecord{
		ID:        uuid.NewString(),
		GameID:    gameID,
		PlayerID:  playerID,
		Type:      action,
		Amount:    amount,
		Forced:    forced,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendAction(ctx, rec); err != nil {
		s.logger.Warn("audit append failed for game %s: %v", gameID, err)
	}
}

// ActionHistory lists the audit trail, oldest first. A missing trail is
// non-fatal and reads as empty.
func (s *Service) ActionHistory(ctx context.Context, gameID string, limit int) ([]*domain.ActionRecord, error) {
	if limit <= 0 {
		limit = historyDefaultLimit
	}
	trail, err := s.store.ListActions(ctx, gameID, limit)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("no action trail for game %s", gameID)
		return nil, nil
	}
	return trail, err
}

// Watch pushes a masked state snapshot to every player after each
// committed transition, until the game finishes or stop is called.
// A transition can commit on another goroutine before Subscribe
// returns, so stop waits on ready before touching cancel.
func (s *Service) Watch(gameID string) func() {
	var (
		cancel func()
		once   sync.Once
		ready  = make(chan struct{})
	)
	stop := func() {
		<-ready
		once.Do(cancel)
	}
	cancel = s.store.Subscribe(gameID, func(game *domain.GameState) {
		s.pushState(game)
		if game.Status == domain.StatusFinished {
			stop()
		}
	})
	close(ready)
	return stop
}

func (s *Service) pushState(game *domain.GameState) {
	if s.notifier == nil {
		return
	}
	ctx := context.Background()
	players, err := s.store.ReadPlayers(ctx, game.ID)
	if err != nil {
		s.logger.Warn("state push read failed for game %s: %v", game.ID, err)
		return
	}
	for _, p := range players {
		snap := buildSnapshot(game, players, p.ID, s.now())
		if err := s.notifier.Notify(ctx, p.ID, string(EventStateChanged), ports.NoticeStateChanged, snap); err != nil {
			s.logger.Warn("state push failed for %s: %v", p.ID, err)
		}
	}
}

// Dispatch sends events through the notifier. Fire-and-forget.
func (s *Service) Dispatch(ctx context.Context, events []Event) {
	if s.notifier == nil {
		return
	}
	for _, ev := range events {
		code := noticeCode(ev.Kind)
		for _, uid := range ev.Recipients {
			if err := s.notifier.Notify(ctx, uid, string(ev.Kind), code, ev.Payload); err != nil {
				s.logger.Warn("notify %s %s failed: %v", uid, ev.Kind, err)
			}
		}
	}
}

func noticeCode(kind EventKind) int {
	switch kind {
	case EventPlayerJoined:
		return ports.NoticePlayerJoined
	case EventGameStarted:
		return ports.NoticeGameStarted
	case EventHandDealt:
		return ports.NoticeHandDealt
	case EventThirdCard:
		return ports.NoticeThirdCard
	case EventRoundFinished:
		return ports.NoticeRoundResult
	case EventRegame:
		return ports.NoticeRegame
	case EventTurnForced:
		return ports.NoticeTurnForced
	case EventStateChanged:
		return ports.NoticeStateChanged
	default:
		return ports.NoticeActionApplied
	}
}

func (s *Service) startingBalance(ctx context.Context, userID string) int64 {
	if s.economy == nil {
		return s.cfg.GetStartingChips()
	}
	balance, err := s.economy.GetBalance(ctx, userID)
	if err != nil {
		s.logger.Warn("wallet read failed for %s: %v", userID, err)
		return s.cfg.GetStartingChips()
	}
	return balance
}

func recipients(players []*domain.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.ID)
	}
	return out
}

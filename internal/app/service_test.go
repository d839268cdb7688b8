package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/config"
	"seotda/internal/domain"
	"seotda/internal/ports"
	"seotda/internal/ports/memory"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type notifyCall struct {
	userID  string
	subject string
	code    int
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) Notify(_ context.Context, userID, subject string, code int, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{userID: userID, subject: subject, code: code})
	return nil
}

type fakeEconomy struct {
	balance int64
	updates [][]ports.WalletUpdate
}

func (f *fakeEconomy) GetBalance(context.Context, string) (int64, error) {
	return f.balance, nil
}

func (f *fakeEconomy) UpdateBalances(_ context.Context, updates []ports.WalletUpdate) error {
	f.updates = append(f.updates, updates)
	return nil
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	economy  *fakeEconomy
	notifier *fakeNotifier
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	economy := &fakeEconomy{balance: 10000}
	notifier := &fakeNotifier{}
	cfg := &config.GameConfig{
		TurnDurationSeconds:  30,
		RegameDelaySeconds:   5,
		SweepIntervalSeconds: 2,
		StartingChips:        10000,
		MaxSeats:             6,
	}
	svc := NewService(store, economy, notifier, noopLogger{}, cfg, rand.New(rand.NewSource(99)))
	now := time.Unix(10000, 0)
	svc.now = func() time.Time { return now }
	return &fixture{svc: svc, store: store, economy: economy, notifier: notifier, clock: &now}
}

// tableOf creates a started two-player game and rigs the hands so
// outcomes are deterministic.
func tableOf(t *testing.T, f *fixture, hand1, hand2 []domain.Card) string {
	t.Helper()
	ctx := context.Background()
	game, _, err := f.svc.CreateGame(ctx, "p1", "Dal", "", domain.ModeTwoCard)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, _, err := f.svc.JoinGame(ctx, game.ID, "p2", "Byeol"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if _, err := f.svc.StartGame(ctx, game.ID, "p1"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	rigHand(t, f, game.ID, "p1", hand1)
	rigHand(t, f, game.ID, "p2", hand2)
	return game.ID
}

func rigHand(t *testing.T, f *fixture, gameID, playerID string, hand []domain.Card) {
	t.Helper()
	if hand == nil {
		return
	}
	p, err := f.store.ReadPlayer(context.Background(), gameID, playerID)
	if err != nil {
		t.Fatalf("read %s: %v", playerID, err)
	}
	p.Hand = hand
	if err := f.store.ConditionalUpdatePlayer(context.Background(), p); err != nil {
		t.Fatalf("rig %s: %v", playerID, err)
	}
}

func TestCreateGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	game, events, err := f.svc.CreateGame(ctx, "p1", "Dal", "", "")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.Status != domain.StatusWaiting {
		t.Fatalf("status = %s, want %s", game.Status, domain.StatusWaiting)
	}
	if game.BaseBet != 1000 {
		t.Fatalf("base bet = %d, want default 1000", game.BaseBet)
	}
	if len(events) != 1 || events[0].Kind != EventPlayerJoined {
		t.Fatalf("events = %v", events)
	}
	host, err := f.store.ReadPlayer(ctx, game.ID, "p1")
	if err != nil {
		t.Fatalf("host row: %v", err)
	}
	if host.Seat != 0 || host.Balance != 10000 {
		t.Fatalf("host = %+v", host)
	}

	if _, _, err := f.svc.CreateGame(ctx, "p1", "Dal", "", "bogus-mode"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad mode: err = %v, want ErrValidation", err)
	}
}

func TestJoinGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, _, err := f.svc.CreateGame(ctx, "p1", "Dal", "", domain.ModeTwoCard)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	player, events, err := f.svc.JoinGame(ctx, game.ID, "p2", "Byeol")
	if err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if player.Seat != 1 {
		t.Fatalf("seat = %d, want 1", player.Seat)
	}
	if len(events) != 1 || len(events[0].Recipients) != 2 {
		t.Fatalf("events = %+v, want one join event for both players", events)
	}

	if _, _, err := f.svc.JoinGame(ctx, game.ID, "p2", "Byeol"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("rejoin: err = %v, want ErrAlreadyJoined", err)
	}
	if _, _, err := f.svc.JoinGame(ctx, "missing", "p3", "X"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing game: err = %v, want ErrNotFound", err)
	}

	if _, err := f.svc.StartGame(ctx, game.ID, "p1"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, _, err := f.svc.JoinGame(ctx, game.ID, "p3", "X"); !errors.Is(err, domain.ErrWrongStatus) {
		t.Fatalf("join mid-round: err = %v, want ErrWrongStatus", err)
	}
}

func TestStartGameRequiresHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, _, _ := f.svc.CreateGame(ctx, "p1", "Dal", "", domain.ModeTwoCard)
	f.svc.JoinGame(ctx, game.ID, "p2", "Byeol")

	if _, err := f.svc.StartGame(ctx, game.ID, "p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("err = %v, want ErrNotHost", err)
	}
}

func TestFullRoundBetCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f,
		[]domain.Card{19, 20}, // jangttaeng
		[]domain.Card{3, 16},  // kkeut 0
	)

	if _, err := f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionBet, 1000); err != nil {
		t.Fatalf("bet: %v", err)
	}
	events, err := f.svc.SubmitAction(ctx, gameID, "p2", domain.ActionCall, 0)
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	var finished *RoundFinishedPayload
	for _, ev := range events {
		if ev.Kind == EventRoundFinished {
			p := ev.Payload.(RoundFinishedPayload)
			finished = &p
		}
	}
	if finished == nil {
		t.Fatal("no round_finished event")
	}
	if finished.WinnerID != "p1" || finished.Payout != 2000 {
		t.Fatalf("finished = %+v, want p1 winning 2000", finished)
	}
	if len(finished.Bonuses) != 0 {
		t.Fatalf("bonuses = %v, want none", finished.Bonuses)
	}

	game, _ := f.store.ReadGameState(ctx, gameID)
	if game.Status != domain.StatusFinished || game.WinnerID != "p1" {
		t.Fatalf("game = %+v", game)
	}
	winner, _ := f.store.ReadPlayer(ctx, gameID, "p1")
	loser, _ := f.store.ReadPlayer(ctx, gameID, "p2")
	if winner.Balance != 11000 || loser.Balance != 9000 {
		t.Fatalf("balances = %d / %d, want 11000 / 9000", winner.Balance, loser.Balance)
	}

	// The settlement mirrored into the wallet: a debit per bet and the
	// winner's credit on completion.
	if len(f.economy.updates) != 2 {
		t.Fatalf("wallet batches = %d, want 2", len(f.economy.updates))
	}
	last := f.economy.updates[1]
	var credited int64
	for _, u := range last {
		if u.UserID == "p1" && u.Amount > 0 {
			credited = u.Amount
		}
	}
	if credited != 2000 {
		t.Fatalf("winner wallet credit = %d, want 2000", credited)
	}

	trail, err := f.svc.ActionHistory(ctx, gameID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(trail) != 3 { // deal, bet, call
		t.Fatalf("trail length = %d, want 3", len(trail))
	}
	if trail[0].Type != domain.ActionDeal || trail[1].Type != domain.ActionBet || trail[2].Type != domain.ActionCall {
		t.Fatalf("trail = %v", trail)
	}
}

func TestSubmitActionVoidRegame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f,
		[]domain.Card{7, 17}, // gusa
		[]domain.Card{3, 16}, // kkeut 0, below the gusa threshold
	)

	f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionBet, 1000)
	events, err := f.svc.SubmitAction(ctx, gameID, "p2", domain.ActionCall, 0)
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	sawRegame := false
	for _, ev := range events {
		if ev.Kind == EventRegame {
			sawRegame = true
		}
	}
	if !sawRegame {
		t.Fatal("no regame event")
	}
	game, _ := f.store.ReadGameState(ctx, gameID)
	if game.Status != domain.StatusRegame {
		t.Fatalf("status = %s, want %s", game.Status, domain.StatusRegame)
	}
	if game.Pot != 2000 {
		t.Fatalf("pot = %d, want preserved 2000", game.Pot)
	}
	if game.WinnerID != "" {
		t.Fatalf("winner = %s, want none", game.WinnerID)
	}
	players, _ := f.store.ReadPlayers(ctx, gameID)
	for _, p := range players {
		if len(p.Hand) != 0 {
			t.Fatalf("player %s kept a hand through the regame", p.ID)
		}
	}
}

func TestSubmitActionStaleTurnRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)

	// p2 pushes out of turn while p1 holds the action.
	if _, err := f.svc.SubmitAction(ctx, gameID, "p2", domain.ActionBet, 1000); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}
	game, _ := f.store.ReadGameState(ctx, gameID)
	if game.Pot != 0 {
		t.Fatalf("rejected action mutated the pot: %d", game.Pot)
	}
}

func TestConcurrentActionsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)

	game, _ := f.store.ReadGameState(ctx, gameID)
	players, _ := f.store.ReadPlayers(ctx, gameID)
	stale := game.Clone()
	stalePlayers := make([]*domain.Player, len(players))
	for i, p := range players {
		stalePlayers[i] = p.Clone()
	}

	// Two submissions built from the same snapshot: the first commits,
	// the second must reject on the version.
	if _, err := f.svc.applyOn(ctx, game, players, "p1", domain.ActionBet, 1000, false); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := f.svc.applyOn(ctx, stale, stalePlayers, "p1", domain.ActionBet, 1000, false)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("second: err = %v, want ErrVersionConflict", err)
	}

	got, _ := f.store.ReadGameState(ctx, gameID)
	if got.Pot != 1000 {
		t.Fatalf("pot = %d, want single contribution 1000", got.Pot)
	}
}

func TestSnapshotMasksHands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f,
		[]domain.Card{19, 20},
		[]domain.Card{3, 16},
	)

	snap, err := f.svc.Snapshot(ctx, gameID, "p2")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CurrentPlayerID != "p1" {
		t.Fatalf("current player = %s, want p1", snap.CurrentPlayerID)
	}
	for _, pv := range snap.Players {
		switch pv.ID {
		case "p1":
			if pv.Hand != nil {
				t.Fatal("opponent hand visible mid-round")
			}
			if pv.CardCount != 2 {
				t.Fatalf("card count = %d, want 2", pv.CardCount)
			}
		case "p2":
			if len(pv.Hand) != 2 {
				t.Fatal("own hand masked")
			}
		}
	}

	// After the showdown everyone sees everything.
	f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionBet, 1000)
	f.svc.SubmitAction(ctx, gameID, "p2", domain.ActionCall, 0)
	snap, _ = f.svc.Snapshot(ctx, gameID, "p2")
	for _, pv := range snap.Players {
		if pv.ID == "p1" && pv.HandName != "ttaeng-10" {
			t.Fatalf("revealed hand name = %q, want ttaeng-10", pv.HandName)
		}
	}
}

func TestActionHistoryMissingTrailNonFatal(t *testing.T) {
	f := newFixture(t)
	trail, err := f.svc.ActionHistory(context.Background(), "no-such-game", 10)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if len(trail) != 0 {
		t.Fatalf("trail = %v, want empty", trail)
	}
}

// slowSubscribeStore holds Subscribe open so a transition can commit
// while the watch registration is still in flight.
type slowSubscribeStore struct {
	ports.SessionStore
	registered chan struct{}
	release    chan struct{}
}

func (s *slowSubscribeStore) Subscribe(gameID string, fn func(*domain.GameState)) func() {
	cancel := s.SessionStore.Subscribe(gameID, fn)
	close(s.registered)
	<-s.release
	return cancel
}

func TestWatchSurvivesFinishDuringRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f,
		[]domain.Card{19, 20},
		[]domain.Card{3, 16},
	)

	slow := &slowSubscribeStore{
		SessionStore: f.store,
		registered:   make(chan struct{}),
		release:      make(chan struct{}),
	}
	f.svc.store = slow

	watched := make(chan func())
	go func() { watched <- f.svc.Watch(gameID) }()
	<-slow.registered

	// The round finishes while Watch has not returned yet; the callback
	// sees FINISHED and must stop the watch without calling into an
	// unset cancel func.
	done := make(chan error, 1)
	go func() {
		if _, err := f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionBet, 1000); err != nil {
			done <- err
			return
		}
		_, err := f.svc.SubmitAction(ctx, gameID, "p2", domain.ActionCall, 0)
		done <- err
	}()

	close(slow.release)
	cancel := <-watched
	if err := <-done; err != nil {
		t.Fatalf("finishing round: %v", err)
	}
	cancel()

	f.notifier.mu.Lock()
	pushes := 0
	for _, c := range f.notifier.calls {
		if c.subject == string(EventStateChanged) {
			pushes++
		}
	}
	f.notifier.mu.Unlock()

	// The watch self-canceled on FINISHED: a later commit pushes nothing.
	game, err := f.store.ReadGameState(ctx, gameID)
	if err != nil {
		t.Fatalf("read game: %v", err)
	}
	game.UpdatedAt = game.UpdatedAt.Add(time.Second)
	if err := f.store.CommitTransition(ctx, game, nil); err != nil {
		t.Fatalf("extra commit: %v", err)
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	after := 0
	for _, c := range f.notifier.calls {
		if c.subject == string(EventStateChanged) {
			after++
		}
	}
	if after != pushes {
		t.Fatalf("state pushes after cancel = %d, want %d", after, pushes)
	}
}

func TestWatchPushesMaskedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)

	cancel := f.svc.Watch(gameID)
	defer cancel()

	if _, err := f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionCheck, 0); err != nil {
		t.Fatalf("check: %v", err)
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	pushes := 0
	for _, c := range f.notifier.calls {
		if c.subject == string(EventStateChanged) {
			pushes++
		}
	}
	if pushes != 2 {
		t.Fatalf("state pushes = %d, want one per player", pushes)
	}
}

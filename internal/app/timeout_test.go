package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"seotda/internal/domain"
)

func TestSweepForcesFoldOnExpiredTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)
	sup := NewSupervisor(f.svc, noopLogger{})

	*f.clock = f.clock.Add(31 * time.Second)
	sup.SweepOnce(ctx)

	game, _ := f.store.ReadGameState(ctx, gameID)
	if game.Status != domain.StatusFinished {
		t.Fatalf("status = %s, want %s", game.Status, domain.StatusFinished)
	}
	if game.WinnerID != "p2" {
		t.Fatalf("winner = %s, want p2 after p1's forced fold", game.WinnerID)
	}

	trail, _ := f.svc.ActionHistory(ctx, gameID, 0)
	last := trail[len(trail)-1]
	if last.Type != domain.ActionDie || !last.Forced || last.PlayerID != "p1" {
		t.Fatalf("last trail entry = %+v, want forced die by p1", last)
	}
}

func TestSweepLeavesLiveTurnsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)
	sup := NewSupervisor(f.svc, noopLogger{})

	before, _ := f.store.ReadGameState(ctx, gameID)
	sup.SweepOnce(ctx)
	after, _ := f.store.ReadGameState(ctx, gameID)
	if after.Version != before.Version {
		t.Fatal("sweep touched a game whose deadline had not elapsed")
	}
}

func TestSweepSkipsConcurrentlyAdvancedTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)
	sup := NewSupervisor(f.svc, noopLogger{})

	// Read the expired snapshot, then let a player act before the
	// sweep commits. The stale-version write must reject.
	*f.clock = f.clock.Add(31 * time.Second)
	stale, _ := f.store.ReadGameState(ctx, gameID)

	if _, err := f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionBet, 1000); err != nil {
		t.Fatalf("player action: %v", err)
	}

	if err := sup.sweepPlaying(ctx, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	game, _ := f.store.ReadGameState(ctx, gameID)
	if game.Pot != 1000 {
		t.Fatalf("pot = %d, want the player's single bet", game.Pot)
	}
	if game.Status != domain.StatusPlaying {
		t.Fatalf("status = %s, the sweep must not double-process", game.Status)
	}
}

func TestSweepReassignsFoldedActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f, nil, nil)

	// Corrupt the rows: the recorded actor is folded.
	game, _ := f.store.ReadGameState(ctx, gameID)
	actor, _ := f.store.ReadPlayer(ctx, gameID, "p1")
	actor.Folded = true
	if err := f.store.ConditionalUpdatePlayer(ctx, actor); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	game.TurnDeadline = f.clock.Add(-time.Second)
	if err := f.store.ConditionalUpdateGame(ctx, game); err != nil {
		t.Fatalf("expire: %v", err)
	}

	sup := NewSupervisor(f.svc, noopLogger{})
	sup.SweepOnce(ctx)

	got, _ := f.store.ReadGameState(ctx, gameID)
	if got.CurrentSeat != 1 {
		t.Fatalf("current seat = %d, want reassigned to 1", got.CurrentSeat)
	}
	if !got.TurnDeadline.After(*f.clock) {
		t.Fatal("reassignment did not reset the deadline")
	}
	trail, _ := f.svc.ActionHistory(ctx, gameID, 0)
	for _, rec := range trail {
		if rec.Forced {
			t.Fatal("seat correction must not fold anyone")
		}
	}
}

func TestSweepRedealsElapsedRegame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := tableOf(t, f,
		[]domain.Card{7, 17}, // gusa
		[]domain.Card{3, 16},
	)

	f.svc.SubmitAction(ctx, gameID, "p1", domain.ActionBet, 1000)
	f.svc.SubmitAction(ctx, gameID, "p2", domain.ActionCall, 0)

	game, _ := f.store.ReadGameState(ctx, gameID)
	if game.Status != domain.StatusRegame {
		t.Fatalf("fixture: status = %s, want %s", game.Status, domain.StatusRegame)
	}

	sup := NewSupervisor(f.svc, noopLogger{})

	// Before the delay elapses the sweep leaves the game alone.
	sup.SweepOnce(ctx)
	got, _ := f.store.ReadGameState(ctx, gameID)
	if got.Status != domain.StatusRegame {
		t.Fatal("sweep redealt before the regame delay elapsed")
	}

	*f.clock = f.clock.Add(6 * time.Second)
	sup.SweepOnce(ctx)

	got, _ = f.store.ReadGameState(ctx, gameID)
	if got.Status != domain.StatusPlaying {
		t.Fatalf("status = %s, want %s after redeal", got.Status, domain.StatusPlaying)
	}
	if got.Pot != 2000 {
		t.Fatalf("pot = %d, want carried 2000", got.Pot)
	}
	players, _ := f.store.ReadPlayers(ctx, gameID)
	for _, p := range players {
		if len(p.Hand) != domain.HandSize {
			t.Fatalf("player %s has %d cards after redeal", p.ID, len(p.Hand))
		}
		if p.Folded {
			t.Fatalf("player %s still folded after redeal", p.ID)
		}
	}

	trail, _ := f.svc.ActionHistory(ctx, gameID, 0)
	deals := 0
	for _, rec := range trail {
		if rec.Type == domain.ActionDeal {
			deals++
		}
	}
	if deals != 2 {
		t.Fatalf("deal records = %d, want 2", deals)
	}
}

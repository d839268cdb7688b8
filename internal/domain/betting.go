package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// MinPlayers is the fewest players a round can start with.
const MinPlayers = 2

// StepOutcome describes what a committed betting action changed beyond
// the mutated game/player rows.
type StepOutcome struct {
	// Completed means betting finished and resolution runs next.
	Completed bool
	// FoldWin means completion came from all but one player folding.
	FoldWin bool
	// DealtThird means the three-card variant advanced to its second
	// betting street.
	DealtThird bool
	// Debit is the amount moved from the actor's balance into the pot.
	Debit int64
}

// StartRound deals a fresh round. It works for both the first deal out
// of WAITING and a regame redeal: hands, fold flags and contributions
// reset while the pot carries over.
func StartRound(game *GameState, players []*Player, rng *rand.Rand, now time.Time, turnTimeout time.Duration) error {
	if game.Status != StatusWaiting && game.Status != StatusRegame {
		return fmt.Errorf("%w: cannot deal while %s", ErrWrongStatus, game.Status)
	}
	if len(players) < MinPlayers {
		return fmt.Errorf("%w: need at least %d players", ErrValidation, MinPlayers)
	}
	perPlayer := HandSize
	if game.Mode == ModeThreeCard {
		perPlayer = 3
	}
	if len(players)*perPlayer > DeckSize {
		return fmt.Errorf("%w: %d players exceed the deck", ErrValidation, len(players))
	}

	deck := ShuffleDeck(NewDeck(), rng)
	SortBySeat(players)
	for _, p := range players {
		p.Hand = append([]Card(nil), deck[:HandSize]...)
		deck = deck[HandSize:]
		p.Folded = false
		p.Contribution = 0
		p.Acted = false
	}

	game.Status = StatusPlaying
	game.Street = 1
	game.Deck = deck
	game.LastBet = 0
	game.CurrentSeat = players[0].Seat
	game.TurnDeadline = now.Add(turnTimeout)
	game.RegameAt = time.Time{}
	game.WinnerID = ""
	game.Revealed = false
	game.BonusLedger = nil
	game.UpdatedAt = now
	return nil
}

// ApplyAction validates and applies one betting action, mutating the
// given game and player copies. On error nothing is mutated.
func ApplyAction(game *GameState, players []*Player, actorID string, action ActionType, amount int64, now time.Time, turnTimeout time.Duration) (StepOutcome, error) {
	var out StepOutcome

	if !BettingAction(action) {
		return out, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
	if amount < 0 {
		return out, fmt.Errorf("%w: negative amount", ErrValidation)
	}
	if game.Status != StatusPlaying {
		return out, fmt.Errorf("%w: game is %s", ErrWrongStatus, game.Status)
	}

	var actor *Player
	for _, p := range players {
		if p.ID == actorID {
			actor = p
			break
		}
	}
	if actor == nil {
		return out, fmt.Errorf("%w: player %s", ErrNotFound, actorID)
	}
	if actor.Folded || actor.Seat != game.CurrentSeat {
		return out, ErrNotYourTurn
	}

	owed := MaxContribution(players) - actor.Contribution

	switch action {
	case ActionCheck:
		if owed > 0 {
			return out, fmt.Errorf("%w: %d outstanding, cannot check", ErrValidation, owed)
		}
	case ActionCall:
		if owed <= 0 {
			return out, fmt.Errorf("%w: nothing to call", ErrValidation)
		}
		if actor.Balance < owed {
			return out, ErrInsufficientFunds
		}
		out.Debit = owed
	case ActionBet, ActionRaise:
		if amount <= 0 {
			return out, fmt.Errorf("%w: %s needs an amount", ErrValidation, action)
		}
		min := game.BaseBet
		if game.LastBet > 0 {
			min = 2 * game.LastBet
		}
		if amount < min {
			return out, fmt.Errorf("%w: minimum %s is %d", ErrValidation, action, min)
		}
		if amount > actor.Balance {
			amount = actor.Balance
			if amount < min {
				return out, fmt.Errorf("%w: minimum %s is %d, balance covers %d", ErrInsufficientFunds, action, min, amount)
			}
		}
		out.Debit = amount
	case ActionHalf:
		half := game.Pot / 2
		if half < game.BaseBet {
			half = game.BaseBet
		}
		if actor.Balance < half {
			return out, ErrInsufficientFunds
		}
		out.Debit = half
	case ActionDouble:
		if game.LastBet <= 0 {
			return out, fmt.Errorf("%w: no bet to double", ErrValidation)
		}
		want := 2 * game.LastBet
		if actor.Balance < want {
			return out, ErrInsufficientFunds
		}
		out.Debit = want
	case ActionDie:
		// no debit
	}

	if action == ActionDie {
		actor.Folded = true
	} else if out.Debit > 0 {
		actor.Balance -= out.Debit
		actor.Contribution += out.Debit
		game.Pot += out.Debit
		if action != ActionCall {
			game.LastBet = out.Debit
		}
	}
	actor.Acted = true
	game.UpdatedAt = now

	res, err := advance(game, players, actor.Seat, now, turnTimeout)
	res.Debit = out.Debit
	return res, err
}

// advance runs the post-action completion checks and either ends the
// betting, deals the next street, or rotates the turn.
func advance(game *GameState, players []*Player, actedSeat int, now time.Time, turnTimeout time.Duration) (StepOutcome, error) {
	var out StepOutcome

	remaining := NonFolded(players)
	if len(remaining) <= 1 {
		out.Completed = true
		out.FoldWin = true
		game.CurrentSeat = -1
		return out, nil
	}

	if streetComplete(players) {
		if game.Mode == ModeThreeCard && game.Street == 1 {
			if err := dealThird(game, remaining, now, turnTimeout); err != nil {
				return out, err
			}
			out.DealtThird = true
			return out, nil
		}
		out.Completed = true
		game.CurrentSeat = -1
		return out, nil
	}

	game.CurrentSeat = NextSeat(players, actedSeat)
	game.TurnDeadline = now.Add(turnTimeout)
	return out, nil
}

// streetComplete reports whether every non-folded player has acted on
// this street and all their contributions are level.
func streetComplete(players []*Player) bool {
	remaining := NonFolded(players)
	target := MaxContribution(players)
	for _, p := range remaining {
		if !p.Acted || p.Contribution != target {
			return false
		}
	}
	return true
}

// dealThird gives every non-folded player their third card and opens
// the second betting street.
func dealThird(game *GameState, remaining []*Player, now time.Time, turnTimeout time.Duration) error {
	if len(game.Deck) < len(remaining) {
		return fmt.Errorf("%w: deck exhausted", ErrValidation)
	}
	for _, p := range remaining {
		p.Hand = append(p.Hand, game.Deck[0])
		game.Deck = game.Deck[1:]
		p.Acted = false
		p.Contribution = 0
	}
	game.Street = 2
	game.LastBet = 0
	game.CurrentSeat = remaining[0].Seat
	game.TurnDeadline = now.Add(turnTimeout)
	return nil
}

package domain

import (
	"fmt"
	"time"
)

// Resolution is the outcome of a completed round. It is computed
// without mutating state; ApplyResolution commits it.
type Resolution struct {
	Regame   bool                 `json:"regame"`
	WinnerID string               `json:"winner_id,omitempty"`
	Payout   int64                `json:"payout"` // pot plus clamped bonuses
	Bonuses  map[string]int64     `json:"bonuses,omitempty"`
	Reveal   bool                 `json:"reveal"`
	Ranks    map[string]HandValue `json:"ranks,omitempty"`
}

// bonusRule extracts an extra debit from a loser whose rank matches a
// specific winning rank. Amounts are multiples of the base bet.
type bonusRule struct {
	applies func(winner, loser HandValue) bool
	amount  func(baseBet int64) int64
}

var bonusRules = []bonusRule{
	// The trap rank charges the matched pairs it defeats double.
	{
		applies: func(w, l HandValue) bool {
			return w.Kind == KindTtaengJabi && l.Kind == KindPair && l.Score < scorePairBase+10
		},
		amount: func(base int64) int64 { return 2 * base },
	},
	// The top light pair charges the lower light pairs it defeats.
	{
		applies: func(w, l HandValue) bool {
			return w.Kind == KindLightPair && w.Score == ScoreLightPair38 &&
				l.Kind == KindLightPair && l.Score < ScoreLightPair38
		},
		amount: func(base int64) int64 { return base },
	},
	// The beater rank charges the light pairs it beats double.
	{
		applies: func(w, l HandValue) bool {
			return w.Kind == KindAmhaeng && l.Kind == KindLightPair && l.Score < ScoreLightPair38
		},
		amount: func(base int64) int64 { return 2 * base },
	},
	// The month-10 pair charges kabo losers half the base bet,
	// rounded down.
	{
		applies: func(w, l HandValue) bool {
			return w.Kind == KindPair && w.Score == scorePairBase+10 &&
				l.Kind == KindKkeut && l.Score == ScoreKabo
		},
		amount: func(base int64) int64 { return base / 2 },
	},
}

// Resolve decides a completed round: fold-win, regame, or a winner
// with bonus payouts. Pure; the caller commits via ApplyResolution.
func Resolve(game *GameState, players []*Player) (Resolution, error) {
	contenders := NonFolded(players)
	if len(contenders) == 0 {
		return Resolution{}, fmt.Errorf("%w: no contenders", ErrValidation)
	}

	// Fold-to-one: the survivor takes the pot sight unseen.
	if len(contenders) == 1 {
		return Resolution{
			WinnerID: contenders[0].ID,
			Payout:   game.Pot,
		}, nil
	}

	ranks := make(map[string]HandValue, len(contenders))
	var voidThreshold int
	hasVoid := false
	for _, p := range contenders {
		if len(p.Hand) < HandSize {
			return Resolution{}, fmt.Errorf("%w: player %s has no hand", ErrValidation, p.ID)
		}
		_, val := BestHand(p.Hand)
		ranks[p.ID] = val
		if val.Void() {
			hasVoid = true
			threshold := GusaThreshold
			if val.Kind == KindMeongGusa {
				threshold = MeongGusaThreshold
			}
			if threshold > voidThreshold {
				voidThreshold = threshold
			}
		}
	}

	if hasVoid {
		bestScore := -1
		for _, p := range contenders {
			if val := ranks[p.ID]; !val.Void() && val.Score > bestScore {
				bestScore = val.Score
			}
		}
		if bestScore <= voidThreshold {
			return Resolution{Regame: true, Reveal: true, Ranks: ranks}, nil
		}
	}

	// Seat-order scan, replacing only on a strict win: ties go to the
	// lowest seat, and void hands never win.
	var winner *Player
	for _, p := range contenders {
		if ranks[p.ID].Void() {
			continue
		}
		if winner == nil || Compare(ranks[p.ID], ranks[winner.ID]) == OutcomeWin {
			winner = p
		}
	}
	if winner == nil {
		// Every contender voided; nothing can oppose, so regame.
		return Resolution{Regame: true, Reveal: true, Ranks: ranks}, nil
	}

	res := Resolution{
		WinnerID: winner.ID,
		Payout:   game.Pot,
		Reveal:   true,
		Ranks:    ranks,
	}
	winVal := ranks[winner.ID]
	for _, p := range contenders {
		if p.ID == winner.ID {
			continue
		}
		for _, rule := range bonusRules {
			if !rule.applies(winVal, ranks[p.ID]) {
				continue
			}
			bonus := rule.amount(game.BaseBet)
			if bonus > p.Balance {
				bonus = p.Balance
			}
			if bonus > 0 {
				if res.Bonuses == nil {
					res.Bonuses = make(map[string]int64)
				}
				res.Bonuses[p.ID] += bonus
				res.Payout += bonus
			}
		}
	}
	return res, nil
}

// ApplyResolution commits a resolution onto the game and player copies:
// either the regame reset or the finished-state transfer.
func ApplyResolution(game *GameState, players []*Player, res Resolution, now time.Time, regameDelay time.Duration) {
	game.CurrentSeat = -1
	game.TurnDeadline = time.Time{}
	game.LastBet = 0
	game.UpdatedAt = now

	if res.Regame {
		game.Status = StatusRegame
		game.RegameAt = now.Add(regameDelay)
		game.Street = 0
		game.Deck = nil
		game.WinnerID = ""
		game.Revealed = res.Reveal
		for _, p := range players {
			p.Hand = nil
			p.Folded = false
			p.Contribution = 0
			p.Acted = false
		}
		return
	}

	game.Status = StatusFinished
	game.WinnerID = res.WinnerID
	game.Revealed = res.Reveal
	game.BonusLedger = res.Bonuses
	game.Deck = nil
	for _, p := range players {
		if bonus, ok := res.Bonuses[p.ID]; ok {
			p.Balance -= bonus
		}
		if p.ID == res.WinnerID {
			p.Balance += res.Payout
		}
	}
	game.Pot = 0
}

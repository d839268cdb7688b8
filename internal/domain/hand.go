package domain

import "fmt"

// RankKind is the closed set of hand categories in the Seotda ladder.
type RankKind int

const (
	// KindKkeut is the default tier: (month sum) mod 10, 0..9.
	KindKkeut RankKind = iota
	// KindSpecialPair is one of the six named month pairs below the
	// matched pairs (seryuk, jangsa, jangppyeong, gubbing, doksa, alli).
	KindSpecialPair
	// KindPair is a matched pair: two cards of the same month (ttaeng).
	KindPair
	// KindLightPair is one of the three light pairings (gwangttaeng).
	KindLightPair
	// KindTtaengJabi beats matched pairs below month 10 but nothing else.
	KindTtaengJabi
	// KindAmhaeng beats only the two lower light pairs.
	KindAmhaeng
	// KindGusa voids the round unless a strong enough hand opposes it.
	KindGusa
	// KindMeongGusa is the stronger void: only a month-10 pair or a
	// light pair prevents the regame.
	KindMeongGusa
)

var rankKindNames = map[RankKind]string{
	KindKkeut:       "kkeut",
	KindSpecialPair: "special",
	KindPair:        "ttaeng",
	KindLightPair:   "gwangttaeng",
	KindTtaengJabi:  "ttaengjabi",
	KindAmhaeng:     "amhaengeosa",
	KindGusa:        "gusa",
	KindMeongGusa:   "meonggusa",
}

func (k RankKind) String() string {
	if name, ok := rankKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Score bands. A single integer ladder orders every non-override hand
// and carries the regame thresholds.
const (
	ScoreKabo        = 9 // kkeut 9, the named bonus tier
	ScoreSeryuk      = 15
	ScoreJangsa      = 16
	ScoreJangppyeong = 17
	ScoreGubbing     = 18
	ScoreDoksa       = 19
	ScoreAlli        = 20
	scorePairBase    = 20 // + month, 21..30
	ScoreLightPair13 = 40
	ScoreLightPair18 = 41
	ScoreLightPair38 = 42
)

// Regame thresholds: a void hand forces a regame when the best
// opposing hand scores at or below its kind's threshold.
const (
	GusaThreshold      = ScoreAlli          // anything below a matched pair
	MeongGusaThreshold = scorePairBase + 9 // anything below the month-10 pair
)

// HandValue is the evaluation of a two-card hand.
type HandValue struct {
	Kind  RankKind `json:"kind"`
	Score int      `json:"score"`
}

// Void reports whether the hand voids the round when unopposed.
func (h HandValue) Void() bool {
	return h.Kind == KindGusa || h.Kind == KindMeongGusa
}

// Name returns a short display name, e.g. "ttaeng-10" or "kkeut-7".
func (h HandValue) Name() string {
	switch h.Kind {
	case KindPair:
		return fmt.Sprintf("ttaeng-%d", h.Score-scorePairBase)
	case KindLightPair:
		switch h.Score {
		case ScoreLightPair13:
			return "gwangttaeng-13"
		case ScoreLightPair18:
			return "gwangttaeng-18"
		default:
			return "gwangttaeng-38"
		}
	case KindKkeut:
		return fmt.Sprintf("kkeut-%d", h.Score)
	default:
		return h.Kind.String()
	}
}

// specialPairs maps a sorted month pair to its named score band.
var specialPairs = map[[2]int]int{
	{4, 6}:  ScoreSeryuk,
	{4, 10}: ScoreJangsa,
	{1, 10}: ScoreJangppyeong,
	{1, 9}:  ScoreGubbing,
	{1, 4}:  ScoreDoksa,
	{1, 2}:  ScoreAlli,
}

// lightPairs maps a sorted month pair of two light cards to its score.
var lightPairs = map[[2]int]int{
	{1, 3}: ScoreLightPair13,
	{1, 8}: ScoreLightPair18,
	{3, 8}: ScoreLightPair38,
}

// evalCache holds the evaluation of every sorted card pair, built once
// at init. Correctness never depends on it; see evaluate.
var evalCache map[[2]Card]HandValue

func init() {
	evalCache = make(map[[2]Card]HandValue, DeckSize*(DeckSize-1)/2)
	for a := Card(1); a <= DeckSize; a++ {
		for b := a + 1; b <= DeckSize; b++ {
			evalCache[[2]Card{a, b}] = evaluate(a, b)
		}
	}
}

// Evaluate scores a two-card hand. It is pure, deterministic and
// independent of input order.
func Evaluate(a, b Card) HandValue {
	if a > b {
		a, b = b, a
	}
	if v, ok := evalCache[[2]Card{a, b}]; ok {
		return v
	}
	return evaluate(a, b)
}

// evaluate assumes a < b.
func evaluate(a, b Card) HandValue {
	ma, mb := a.Month(), b.Month()
	kkeut := (ma + mb) % 10

	if ma == mb {
		return HandValue{Kind: KindPair, Score: scorePairBase + ma}
	}
	if a.IsLight() && b.IsLight() {
		return HandValue{Kind: KindLightPair, Score: lightPairs[[2]int{ma, mb}]}
	}

	// Exact-card combos: the override ranks and the stronger void are
	// formed by the second variants of their months.
	switch {
	case a == 6 && b == 14: // months 3+7
		return HandValue{Kind: KindTtaengJabi, Score: kkeut}
	case a == 8 && b == 14: // months 4+7
		return HandValue{Kind: KindAmhaeng, Score: kkeut}
	case a == 8 && b == 18: // months 4+9
		return HandValue{Kind: KindMeongGusa, Score: kkeut}
	}
	if ma == 4 && mb == 9 {
		return HandValue{Kind: KindGusa, Score: kkeut}
	}

	if score, ok := specialPairs[[2]int{ma, mb}]; ok {
		return HandValue{Kind: KindSpecialPair, Score: score}
	}
	return HandValue{Kind: KindKkeut, Score: kkeut}
}

// Outcome is the result of comparing one hand against another.
type Outcome int

const (
	OutcomeLose Outcome = -1
	OutcomeTie  Outcome = 0
	OutcomeWin  Outcome = 1
)

// overrideOutcomes is the forced-outcome lookup for the two ranks that
// break the linear ladder, keyed by (attacker kind, defender kind).
// Compare consults it in both directions.
var overrideOutcomes = map[[2]RankKind]func(defender HandValue) Outcome{
	{KindTtaengJabi, KindPair}: func(def HandValue) Outcome {
		if def.Score < scorePairBase+10 {
			return OutcomeWin
		}
		return OutcomeLose // the month-10 pair escapes the trap
	},
	{KindAmhaeng, KindLightPair}: func(def HandValue) Outcome {
		if def.Score < ScoreLightPair38 {
			return OutcomeWin
		}
		return OutcomeLose
	},
}

// Compare returns x's outcome against y. Void hands always compare as
// a tie: the decision belongs to round resolution.
func Compare(x, y HandValue) Outcome {
	if x.Void() || y.Void() {
		return OutcomeTie
	}
	if forced, ok := overrideOutcomes[[2]RankKind{x.Kind, y.Kind}]; ok {
		return forced(y)
	}
	if forced, ok := overrideOutcomes[[2]RankKind{y.Kind, x.Kind}]; ok {
		return -forced(x)
	}
	switch {
	case x.Score > y.Score:
		return OutcomeWin
	case x.Score < y.Score:
		return OutcomeLose
	default:
		return OutcomeTie
	}
}

// FindBestPair picks the scoring two-card subset of a three-card hand.
// Void subsets rank below every non-void subset regardless of raw
// score; equal candidates keep the earliest subset.
func FindBestPair(cards []Card) ([]Card, HandValue) {
	subsets := [3][2]Card{
		{cards[0], cards[1]},
		{cards[0], cards[2]},
		{cards[1], cards[2]},
	}
	best := subsets[0]
	bestVal := Evaluate(best[0], best[1])
	for _, sub := range subsets[1:] {
		val := Evaluate(sub[0], sub[1])
		if betterSubset(val, bestVal) {
			best, bestVal = sub, val
		}
	}
	return []Card{best[0], best[1]}, bestVal
}

func betterSubset(candidate, best HandValue) bool {
	if candidate.Void() != best.Void() {
		return best.Void()
	}
	return candidate.Score > best.Score
}

// BestHand evaluates a dealt hand of two or three cards, selecting the
// scoring pair in the three-card mode.
func BestHand(hand []Card) ([]Card, HandValue) {
	if len(hand) == 3 {
		return FindBestPair(hand)
	}
	return hand, Evaluate(hand[0], hand[1])
}

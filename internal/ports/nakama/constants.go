package nakama

// RPC ids exposed to clients.
const (
	RpcCreateGame   = "seotda_create"
	RpcJoinGame     = "seotda_join"
	RpcStartGame    = "seotda_start"
	RpcSubmitAction = "seotda_action"
	RpcGameState    = "seotda_state"
	RpcHistory      = "seotda_history"
)

// Storage layout. Game rows are system-owned; player and action rows
// live in per-game collections so they can be listed together.
const (
	gamesCollection         = "seotda_games"
	playersCollectionPrefix = "seotda_players_"
	actionsCollectionPrefix = "seotda_actions_"

	onboardingCollection = "onboarding"
	startingStackKey     = "starting_stack_v1"
)

// chipsCurrency is the wallet key mirroring round settlements.
const chipsCurrency = "chips"

func playersCollection(gameID string) string {
	return playersCollectionPrefix + gameID
}

func actionsCollection(gameID string) string {
	return actionsCollectionPrefix + gameID
}

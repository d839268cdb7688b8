package ports

import (
	"context"

	"seotda/internal/domain"
)

// SessionStore is the persisted source of truth for game, player and
// action records. Implementations must honor optimistic concurrency:
// every write is conditioned on the row Version the caller read, an
// empty Version means create-only, and a lost race surfaces as
// domain.ErrVersionConflict.
type SessionStore interface {
	// ReadGameState returns the game row with its current version.
	// Returns domain.ErrNotFound when the game does not exist.
	ReadGameState(ctx context.Context, gameID string) (*domain.GameState, error)

	// ReadPlayers returns all player rows of a game in seat order.
	ReadPlayers(ctx context.Context, gameID string) ([]*domain.Player, error)

	// ReadPlayer returns one player row of a game.
	ReadPlayer(ctx context.Context, gameID, playerID string) (*domain.Player, error)

	// ConditionalUpdateGame writes the game row if its stored version
	// still matches game.Version, refreshing game.Version on success.
	ConditionalUpdateGame(ctx context.Context, game *domain.GameState) error

	// ConditionalUpdatePlayer writes one player row under the same
	// version discipline.
	ConditionalUpdatePlayer(ctx context.Context, player *domain.Player) error

	// CommitTransition atomically writes the game row and the given
	// player rows, each conditioned on its version. Either every row
	// commits or none does.
	CommitTransition(ctx context.Context, game *domain.GameState, players []*domain.Player) error

	// AppendAction appends one audit record. Append-only; never
	// conditioned.
	AppendAction(ctx context.Context, record *domain.ActionRecord) error

	// ListActions returns up to limit audit records for a game, oldest
	// first. Returns domain.ErrNotFound when the game has no trail.
	ListActions(ctx context.Context, gameID string, limit int) ([]*domain.ActionRecord, error)

	// ListGamesByStatus returns up to limit games in the given status.
	// Used by the timeout supervisor's sweep.
	ListGamesByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.GameState, error)

	// Subscribe registers a callback invoked after every committed
	// game transition. The returned func cancels the subscription.
	Subscribe(gameID string, fn func(*domain.GameState)) (cancel func())
}

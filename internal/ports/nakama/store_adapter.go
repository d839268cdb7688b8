package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/domain"
	"seotda/internal/ports"
)

// storageAPI is the slice of runtime.NakamaModule the store adapter
// depends on. Tests substitute a fake.
type storageAPI interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error)
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error)
}

// NakamaStoreAdapter implements ports.SessionStore on Nakama storage.
// Optimistic concurrency rides on the storage engine's object versions:
// a conditional write carries the version the caller read, "*" claims
// first-write, and runtime.ErrStorageRejectedVersion maps to
// domain.ErrVersionConflict.
type NakamaStoreAdapter struct {
	nk storageAPI

	mu      sync.Mutex
	subs    map[string]map[int]func(*domain.GameState)
	nextSub int
}

var _ ports.SessionStore = (*NakamaStoreAdapter)(nil)

// NewNakamaStoreAdapter creates a new session store adapter.
func NewNakamaStoreAdapter(nk storageAPI) *NakamaStoreAdapter {
	return &NakamaStoreAdapter{
		nk:   nk,
		subs: make(map[string]map[int]func(*domain.GameState)),
	}
}

func (a *NakamaStoreAdapter) ReadGameState(ctx context.Context, gameID string) (*domain.GameState, error) {
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: gamesCollection,
		Key:        gameID,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to read game %s: %w", gameID, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: game %s", domain.ErrNotFound, gameID)
	}
	return decodeGame(objects[0])
}

func (a *NakamaStoreAdapter) ReadPlayers(ctx context.Context, gameID string) ([]*domain.Player, error) {
	var players []*domain.Player
	cursor := ""
	for {
		objects, next, err := a.nk.StorageList(ctx, "", "", playersCollection(gameID), 100, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list players of game %s: %w", gameID, err)
		}
		for _, obj := range objects {
			p, err := decodePlayer(obj)
			if err != nil {
				return nil, err
			}
			players = append(players, p)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	domain.SortBySeat(players)
	return players, nil
}

func (a *NakamaStoreAdapter) ReadPlayer(ctx context.Context, gameID, playerID string) (*domain.Player, error) {
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: playersCollection(gameID),
		Key:        playerID,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to read player %s: %w", playerID, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: player %s in game %s", domain.ErrNotFound, playerID, gameID)
	}
	return decodePlayer(objects[0])
}

func (a *NakamaStoreAdapter) ConditionalUpdateGame(ctx context.Context, game *domain.GameState) error {
	write, err := gameWrite(game)
	if err != nil {
		return err
	}
	acks, err := a.nk.StorageWrite(ctx, []*runtime.StorageWrite{write})
	if err != nil {
		return mapStorageErr(err, "game "+game.ID)
	}
	if len(acks) > 0 {
		game.Version = acks[0].Version
	}
	a.notify(game)
	return nil
}

func (a *NakamaStoreAdapter) ConditionalUpdatePlayer(ctx context.Context, player *domain.Player) error {
	write, err := playerWrite(player)
	if err != nil {
		return err
	}
	acks, err := a.nk.StorageWrite(ctx, []*runtime.StorageWrite{write})
	if err != nil {
		return mapStorageErr(err, "player "+player.ID)
	}
	if len(acks) > 0 {
		player.Version = acks[0].Version
	}
	return nil
}

// CommitTransition writes the game and player rows in one MultiUpdate,
// so the whole round transition lands or none of it does.
func (a *NakamaStoreAdapter) CommitTransition(ctx context.Context, game *domain.GameState, players []*domain.Player) error {
	writes := make([]*runtime.StorageWrite, 0, len(players)+1)
	gw, err := gameWrite(game)
	if err != nil {
		return err
	}
	writes = append(writes, gw)
	for _, p := range players {
		pw, err := playerWrite(p)
		if err != nil {
			return err
		}
		writes = append(writes, pw)
	}

	acks, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false)
	if err != nil {
		return mapStorageErr(err, "transition of game "+game.ID)
	}
	for _, ack := range acks {
		if ack.Collection == gamesCollection && ack.Key == game.ID {
			game.Version = ack.Version
			continue
		}
		for _, p := range players {
			if ack.Collection == playersCollection(p.GameID) && ack.Key == p.ID {
				p.Version = ack.Version
			}
		}
	}
	a.notify(game)
	return nil
}

func (a *NakamaStoreAdapter) AppendAction(ctx context.Context, record *domain.ActionRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	// Keys sort lexicographically by timestamp so listings come back in
	// order without a secondary index.
	key := fmt.Sprintf("%020d_%s", record.CreatedAt.UnixNano(), record.ID)
	_, err = a.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      actionsCollection(record.GameID),
		Key:             key,
		Value:           string(value),
		Version:         "*",
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		return fmt.Errorf("failed to append action for game %s: %w", record.GameID, err)
	}
	return nil
}

func (a *NakamaStoreAdapter) ListActions(ctx context.Context, gameID string, limit int) ([]*domain.ActionRecord, error) {
	var trail []*domain.ActionRecord
	cursor := ""
	for {
		objects, next, err := a.nk.StorageList(ctx, "", "", actionsCollection(gameID), 100, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list actions of game %s: %w", gameID, err)
		}
		for _, obj := range objects {
			var rec domain.ActionRecord
			if err := json.Unmarshal([]byte(obj.Value), &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal action record: %w", err)
			}
			trail = append(trail, &rec)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(trail) == 0 {
		return nil, fmt.Errorf("%w: no actions for game %s", domain.ErrNotFound, gameID)
	}
	sort.Slice(trail, func(i, j int) bool { return trail[i].CreatedAt.Before(trail[j].CreatedAt) })
	if limit > 0 && len(trail) > limit {
		trail = trail[:limit]
	}
	return trail, nil
}

func (a *NakamaStoreAdapter) ListGamesByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.GameState, error) {
	var games []*domain.GameState
	cursor := ""
	for {
		objects, next, err := a.nk.StorageList(ctx, "", "", gamesCollection, 100, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
		for _, obj := range objects {
			game, err := decodeGame(obj)
			if err != nil {
				return nil, err
			}
			if game.Status != status {
				continue
			}
			games = append(games, game)
			if limit > 0 && len(games) >= limit {
				return games, nil
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return games, nil
}

// Subscribe registers a process-local callback fired after this
// adapter commits a game row. Cross-node deliveries are out of scope;
// the timeout supervisor reconciles anything missed.
func (a *NakamaStoreAdapter) Subscribe(gameID string, fn func(*domain.GameState)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subs[gameID] == nil {
		a.subs[gameID] = make(map[int]func(*domain.GameState))
	}
	id := a.nextSub
	a.nextSub++
	a.subs[gameID][id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs[gameID], id)
	}
}

func (a *NakamaStoreAdapter) notify(game *domain.GameState) {
	a.mu.Lock()
	fns := make([]func(*domain.GameState), 0, len(a.subs[game.ID]))
	for _, fn := range a.subs[game.ID] {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(game.Clone())
	}
}

func gameWrite(game *domain.GameState) (*runtime.StorageWrite, error) {
	value, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game %s: %w", game.ID, err)
	}
	return &runtime.StorageWrite{
		Collection:      gamesCollection,
		Key:             game.ID,
		Value:           string(value),
		Version:         versionOrCreate(game.Version),
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}, nil
}

func playerWrite(player *domain.Player) (*runtime.StorageWrite, error) {
	value, err := json.Marshal(player)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player %s: %w", player.ID, err)
	}
	return &runtime.StorageWrite{
		Collection:      playersCollection(player.GameID),
		Key:             player.ID,
		Value:           string(value),
		Version:         versionOrCreate(player.Version),
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}, nil
}

// versionOrCreate maps the contract's empty version onto Nakama's
// first-write marker.
func versionOrCreate(version string) string {
	if version == "" {
		return "*"
	}
	return version
}

func mapStorageErr(err error, subject string) error {
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return fmt.Errorf("%w: %s", domain.ErrVersionConflict, subject)
	}
	return fmt.Errorf("storage write failed for %s: %w", subject, err)
}

func decodeGame(obj *api.StorageObject) (*domain.GameState, error) {
	var game domain.GameState
	if err := json.Unmarshal([]byte(obj.Value), &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", obj.Key, err)
	}
	game.Version = obj.Version
	return &game, nil
}

func decodePlayer(obj *api.StorageObject) (*domain.Player, error) {
	var player domain.Player
	if err := json.Unmarshal([]byte(obj.Value), &player); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player %s: %w", obj.Key, err)
	}
	player.Version = obj.Version
	return &player, nil
}

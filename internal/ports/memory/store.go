// Package memory provides an in-process SessionStore used by tests and
// local runs. It enforces the same version discipline as the Nakama
// adapter: every write is conditioned on the version the caller read.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"seotda/internal/domain"
	"seotda/internal/ports"
)

// Store is a versioned in-memory SessionStore.
type Store struct {
	mu      sync.Mutex
	games   map[string]*domain.GameState
	players map[string]map[string]*domain.Player // gameID -> playerID -> row
	actions map[string][]*domain.ActionRecord
	subs    map[string]map[int]func(*domain.GameState)
	nextSub int
	counter uint64
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		games:   make(map[string]*domain.GameState),
		players: make(map[string]map[string]*domain.Player),
		actions: make(map[string][]*domain.ActionRecord),
		subs:    make(map[string]map[int]func(*domain.GameState)),
	}
}

func (s *Store) nextVersion() string {
	s.counter++
	return strconv.FormatUint(s.counter, 10)
}

func (s *Store) ReadGameState(_ context.Context, gameID string) (*domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", domain.ErrNotFound, gameID)
	}
	return game.Clone(), nil
}

func (s *Store) ReadPlayers(_ context.Context, gameID string) ([]*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.players[gameID]
	out := make([]*domain.Player, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.Clone())
	}
	domain.SortBySeat(out)
	return out, nil
}

func (s *Store) ReadPlayer(_ context.Context, gameID, playerID string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[gameID][playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s in game %s", domain.ErrNotFound, playerID, gameID)
	}
	return p.Clone(), nil
}

func (s *Store) ConditionalUpdateGame(_ context.Context, game *domain.GameState) error {
	s.mu.Lock()
	if err := s.checkGameVersion(game); err != nil {
		s.mu.Unlock()
		return err
	}
	s.writeGame(game)
	subs := s.subscribers(game.ID)
	snapshot := game.Clone()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return nil
}

func (s *Store) ConditionalUpdatePlayer(_ context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPlayerVersion(player); err != nil {
		return err
	}
	s.writePlayer(player)
	return nil
}

func (s *Store) CommitTransition(_ context.Context, game *domain.GameState, players []*domain.Player) error {
	s.mu.Lock()
	// Validate every row before touching any, so a conflict leaves the
	// store unchanged.
	if err := s.checkGameVersion(game); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, p := range players {
		if err := s.checkPlayerVersion(p); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.writeGame(game)
	for _, p := range players {
		s.writePlayer(p)
	}
	subs := s.subscribers(game.ID)
	snapshot := game.Clone()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return nil
}

func (s *Store) AppendAction(_ context.Context, record *domain.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.actions[record.GameID] = append(s.actions[record.GameID], &cp)
	return nil
}

func (s *Store) ListActions(_ context.Context, gameID string, limit int) ([]*domain.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail, ok := s.actions[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: no actions for game %s", domain.ErrNotFound, gameID)
	}
	if limit <= 0 || limit > len(trail) {
		limit = len(trail)
	}
	out := make([]*domain.ActionRecord, 0, limit)
	for _, rec := range trail[:limit] {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListGamesByStatus(_ context.Context, status domain.Status, limit int) ([]*domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.GameState, 0)
	for _, g := range s.games {
		if g.Status == status {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Subscribe(gameID string, fn func(*domain.GameState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[gameID] == nil {
		s.subs[gameID] = make(map[int]func(*domain.GameState))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[gameID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[gameID], id)
	}
}

// checkGameVersion must be called with the lock held.
func (s *Store) checkGameVersion(game *domain.GameState) error {
	current, exists := s.games[game.ID]
	if game.Version == "" {
		if exists {
			return fmt.Errorf("%w: game %s already exists", domain.ErrVersionConflict, game.ID)
		}
		return nil
	}
	if !exists {
		return fmt.Errorf("%w: game %s", domain.ErrNotFound, game.ID)
	}
	if current.Version != game.Version {
		return fmt.Errorf("%w: game %s at %s, caller had %s",
			domain.ErrVersionConflict, game.ID, current.Version, game.Version)
	}
	return nil
}

func (s *Store) checkPlayerVersion(player *domain.Player) error {
	current, exists := s.players[player.GameID][player.ID]
	if player.Version == "" {
		if exists {
			return fmt.Errorf("%w: player %s already exists", domain.ErrVersionConflict, player.ID)
		}
		return nil
	}
	if !exists {
		return fmt.Errorf("%w: player %s", domain.ErrNotFound, player.ID)
	}
	if current.Version != player.Version {
		return fmt.Errorf("%w: player %s at %s, caller had %s",
			domain.ErrVersionConflict, player.ID, current.Version, player.Version)
	}
	return nil
}

func (s *Store) writeGame(game *domain.GameState) {
	game.Version = s.nextVersion()
	s.games[game.ID] = game.Clone()
}

func (s *Store) writePlayer(player *domain.Player) {
	player.Version = s.nextVersion()
	if s.players[player.GameID] == nil {
		s.players[player.GameID] = make(map[string]*domain.Player)
	}
	s.players[player.GameID][player.ID] = player.Clone()
}

// subscribers must be called with the lock held.
func (s *Store) subscribers(gameID string) []func(*domain.GameState) {
	out := make([]func(*domain.GameState), 0, len(s.subs[gameID]))
	for _, fn := range s.subs[gameID] {
		out = append(out, fn)
	}
	return out
}

package game

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jason-s-yu/tambola/internal/models"
)

// MemoryStore keeps game documents in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	games map[string]models.Document
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]models.Document),
	}
}

func (s *MemoryStore) InsertGame(ctx context.Context, doc models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, _ := doc[models.FieldID].(string)
	if id == "" {
		return fmt.Errorf("game document has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[id]; exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateGame, id)
	}
	s.games[id] = maps.Clone(doc)
	return nil
}

func (s *MemoryStore) ListGames(ctx context.Context, q Query) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.OrderBy != "" && q.OrderBy != models.OrderByCreatedAt {
		return nil, fmt.Errorf("unsupported ordering %q", q.OrderBy)
	}

	s.mu.Lock()
	out := make([]models.Document, 0, len(s.games))
	for _, doc := range s.games {
		if q.Status != "" && doc[models.FieldStatus] != string(q.Status) {
			continue
		}
		out = append(out, maps.Clone(doc))
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := createdAt(out[i]), createdAt(out[j])
		if q.Descending {
			return a.After(b)
		}
		return a.Before(b)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len reports how many games are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

func createdAt(doc models.Document) time.Time {
	switch t := doc[models.FieldCreatedAt].(type) {
	case pgtype.Timestamptz:
		return t.Time
	case time.Time:
		return t
	}
	return time.Time{}
}

package confirm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

// MemoryStore is a Store kept in process memory, used when no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[memKey]*entity.ConfirmedMapping
}

type memKey struct {
	text     string
	recordID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[memKey]*entity.ConfirmedMapping{}}
}

func (s *MemoryStore) ListConfirmed(_ context.Context) ([]entity.ConfirmedMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.ConfirmedMapping, 0, len(s.rows))
	for _, m := range s.rows {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveConfirmation(_ context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	k := memKey{text: text, recordID: recordID}
	if m, ok := s.rows[k]; ok {
		m.Count++
		m.Score = max(m.Score, score)
		m.UpdatedAt = now
		out := *m
		return &out, nil
	}
	s.nextID++
	m := &entity.ConfirmedMapping{
		ID:        s.nextID,
		Text:      text,
		RecordID:  recordID,
		Count:     1,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.rows[k] = m
	out := *m
	return &out, nil
}

// Package confirm keeps operator-confirmed text→record mappings and resolves recognized
// text against them before any scoring happens.
package confirm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

// DefaultMinContainment is the shortest text that may hit by substring containment.
const DefaultMinContainment = 3

// Store persists confirmations. SaveConfirmation increments the counter of an existing
// (text, record) pair instead of inserting a duplicate.
type Store interface {
	ListConfirmed(ctx context.Context) ([]entity.ConfirmedMapping, error)
	SaveConfirmation(ctx context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error)
}

type entry struct {
	m     entity.ConfirmedMapping
	runes int
}

// Cache is an in-memory snapshot of the confirmations in a Store.
// Writes go to the store first; the snapshot entry is swapped afterwards under the write lock.
type Cache struct {
	store          Store
	minContainment int
	logger         *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	entries []entry
}

// NewCache creates a cache over store. minContainment <= 0 selects DefaultMinContainment.
func NewCache(store Store, minContainment int, logger *slog.Logger) *Cache {
	if minContainment <= 0 {
		minContainment = DefaultMinContainment
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, minContainment: minContainment, logger: logger}
}

// NormalizeText is the key form of a confirmed text: NFC, lowercase, single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(s))), " ")
}

// Reload replaces the snapshot with the store's current content.
func (c *Cache) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	list, err := c.store.ListConfirmed(ctx)
	if err != nil {
		c.logger.Error("confirm.reload.failed", "error", err)
		return err
	}
	entries := make([]entry, 0, len(list))
	for _, m := range list {
		m.Text = NormalizeText(m.Text)
		if m.Text == "" {
			continue
		}
		entries = append(entries, entry{m: m, runes: utf8.RuneCountInString(m.Text)})
	}
	c.entries = entries
	c.loaded = true
	c.logger.Info("confirm.reload.ok", "entries", len(entries), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (c *Cache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup finds the confirmation that resolves text. A stored text hits when it equals the
// query, or when one contains the other and both are at least minContainment runes long.
// Among hits: exact first, then the longest stored text, the highest count, the lowest id.
func (c *Cache) Lookup(ctx context.Context, text string) (*entity.ConfirmedMapping, bool) {
	q := NormalizeText(text)
	if q == "" {
		return nil, false
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, false
	}
	qRunes := utf8.RuneCountInString(q)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *entry
	bestExact := false
	for i := range c.entries {
		e := &c.entries[i]
		exact := e.m.Text == q
		if !exact {
			if e.runes < c.minContainment || qRunes < c.minContainment {
				continue
			}
			if !strings.Contains(q, e.m.Text) && !strings.Contains(e.m.Text, q) {
				continue
			}
		}
		if best == nil || better(e, exact, best, bestExact) {
			best, bestExact = e, exact
		}
	}
	if best == nil {
		return nil, false
	}
	m := best.m
	return &m, true
}

func better(e *entry, exact bool, cur *entry, curExact bool) bool {
	if exact != curExact {
		return exact
	}
	if e.runes != cur.runes {
		return e.runes > cur.runes
	}
	if e.m.Count != cur.m.Count {
		return e.m.Count > cur.m.Count
	}
	return e.m.ID < cur.m.ID
}

// Confirm records that text refers to recordID. Confirming the same pair again increments
// its counter and keeps the highest score seen.
func (c *Cache) Confirm(ctx context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error) {
	t := NormalizeText(text)
	if t == "" {
		return nil, common.NewAppError("INVALID_INPUT", "confirmation text is empty", common.ErrInvalidInput)
	}
	if recordID <= 0 {
		return nil, common.NewAppError("INVALID_INPUT", "confirmation record id must be positive", common.ErrInvalidInput)
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	saved, err := c.store.SaveConfirmation(ctx, t, recordID, entity.RoundScore(score))
	if err != nil {
		c.logger.Error("confirm.save.failed", "record_id", recordID, "error", err)
		return nil, err
	}
	saved.Text = NormalizeText(saved.Text)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		e := &c.entries[i]
		if e.m.Text == saved.Text && e.m.RecordID == saved.RecordID {
			// a concurrent confirmation may already have swapped in a newer row
			if saved.Count >= e.m.Count {
				e.m = *saved
			}
			c.logger.Info("confirm.save.ok", "record_id", recordID, "count", e.m.Count)
			return saved, nil
		}
	}
	c.entries = append(c.entries, entry{m: *saved, runes: utf8.RuneCountInString(saved.Text)})
	c.logger.Info("confirm.save.ok", "record_id", recordID, "count", saved.Count)
	return saved, nil
}

package confirm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

func newCache(t *testing.T) (*Cache, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewCache(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestConfirmTwiceIncrementsCounter(t *testing.T) {
	c, store := newCache(t)
	ctx := t.Context()

	_, err := c.Confirm(ctx, "Коронка BL-4590", 7, 82)
	require.NoError(t, err)
	m, err := c.Confirm(ctx, "  коронка   bl-4590 ", 7, 91)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, 91.0, m.Score)

	list, err := store.ListConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Count)
	assert.Equal(t, 1, c.Len())
}

func TestConfirmScoreIsOrderIndependent(t *testing.T) {
	a, _ := newCache(t)
	b, _ := newCache(t)
	ctx := t.Context()

	for _, s := range []float64{60, 95, 70} {
		_, err := a.Confirm(ctx, "bl-4590", 1, s)
		require.NoError(t, err)
	}
	for _, s := range []float64{70, 60, 95} {
		_, err := b.Confirm(ctx, "bl-4590", 1, s)
		require.NoError(t, err)
	}
	ma, _ := a.Lookup(ctx, "bl-4590")
	mb, _ := b.Lookup(ctx, "bl-4590")
	assert.Equal(t, ma.Count, mb.Count)
	assert.Equal(t, ma.Score, mb.Score)
}

func TestLookupContainment(t *testing.T) {
	c, _ := newCache(t)
	ctx := t.Context()
	_, err := c.Confirm(ctx, "BL-4590", 7, 100)
	require.NoError(t, err)

	m, ok := c.Lookup(ctx, "Товар BL-4590 комплект")
	require.True(t, ok)
	assert.Equal(t, int64(7), m.RecordID)

	m, ok = c.Lookup(ctx, "bl-45")
	require.True(t, ok, "query contained in stored text")
	assert.Equal(t, int64(7), m.RecordID)

	_, ok = c.Lookup(ctx, "zz-0000")
	assert.False(t, ok)
}

func TestLookupShortTextsNeedExactMatch(t *testing.T) {
	c, _ := newCache(t)
	ctx := t.Context()
	_, err := c.Confirm(ctx, "m8", 3, 100)
	require.NoError(t, err)

	_, ok := c.Lookup(ctx, "болт m8x40")
	assert.False(t, ok)
	m, ok := c.Lookup(ctx, "M8")
	require.True(t, ok)
	assert.Equal(t, int64(3), m.RecordID)
}

func TestLookupWinnerOrdering(t *testing.T) {
	c, _ := newCache(t)
	ctx := t.Context()
	_, err := c.Confirm(ctx, "коронка", 1, 100)
	require.NoError(t, err)
	_, err = c.Confirm(ctx, "коронка bl-4590", 2, 100)
	require.NoError(t, err)

	m, ok := c.Lookup(ctx, "коронка bl-4590 комплект")
	require.True(t, ok)
	assert.Equal(t, int64(2), m.RecordID, "longest stored text wins")

	m, ok = c.Lookup(ctx, "коронка")
	require.True(t, ok)
	assert.Equal(t, int64(1), m.RecordID, "exact wins")

	c2, _ := newCache(t)
	_, err = c2.Confirm(ctx, "bl-4590 x", 5, 100)
	require.NoError(t, err)
	_, err = c2.Confirm(ctx, "bl-4590 y", 6, 100)
	require.NoError(t, err)
	_, err = c2.Confirm(ctx, "bl-4590 y", 6, 100)
	require.NoError(t, err)
	m, ok = c2.Lookup(ctx, "bl-4590")
	require.True(t, ok)
	assert.Equal(t, int64(6), m.RecordID, "higher count wins among equal lengths")
}

func TestLookupLoadsLazily(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.SaveConfirmation(t.Context(), "r32-3660", 9, 88)
	require.NoError(t, err)

	c := NewCache(store, 3, nil)
	m, ok := c.Lookup(t.Context(), "Штанга R32-3660")
	require.True(t, ok)
	assert.Equal(t, int64(9), m.RecordID)
}

func TestConfirmRejectsInvalid(t *testing.T) {
	c, _ := newCache(t)
	_, err := c.Confirm(t.Context(), "   ", 1, 100)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = c.Confirm(t.Context(), "abc", 0, 100)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

type failingStore struct{}

func (failingStore) ListConfirmed(context.Context) ([]entity.ConfirmedMapping, error) {
	return nil, errors.New("db down")
}

func (failingStore) SaveConfirmation(context.Context, string, int64, float64) (*entity.ConfirmedMapping, error) {
	return nil, errors.New("db down")
}

func TestLookupStoreFailureIsMiss(t *testing.T) {
	c := NewCache(failingStore{}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, ok := c.Lookup(t.Context(), "anything")
	assert.False(t, ok)
	_, err := c.Confirm(t.Context(), "anything", 1, 50)
	assert.Error(t, err)
}

func TestConcurrentConfirmAndLookup(t *testing.T) {
	c, store := newCache(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.Confirm(ctx, "bl-4590", 7, 90)
		}()
		go func() {
			defer wg.Done()
			if m, ok := c.Lookup(ctx, "bl-4590"); ok {
				assert.Equal(t, int64(7), m.RecordID)
			}
		}()
	}
	wg.Wait()

	list, err := store.ListConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 20, list[0].Count)
	m, ok := c.Lookup(ctx, "bl-4590")
	require.True(t, ok)
	assert.Equal(t, 20, m.Count)
}

package repository

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "matcher.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRecordsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	rec := &entity.CatalogRecord{
		ArticleAGB:      "BL-4590",
		NomenclatureAGB: "Коронка буровая",
		Variants:        [entity.VariantSlots]string{"BL4590"},
		Competitors:     map[string]string{"Sandvik": "SV-77"},
		Unit:            "шт",
	}
	require.NoError(t, s.CreateRecord(ctx, rec))
	require.NotZero(t, rec.ID)
	require.NoError(t, s.CreateRecord(ctx, &entity.CatalogRecord{ArticleAGB: "R32-3660"}))

	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "BL-4590", got.ArticleAGB)
	assert.Equal(t, "BL4590", got.Variants[0])
	assert.Equal(t, "SV-77", got.Competitors["Sandvik"])
	assert.False(t, got.CreatedAt.IsZero())

	all, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, rec.ID, all[0].ID)
	assert.Nil(t, all[1].Competitors)

	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := s.FindByField(ctx, entity.FieldArticleAGB, "R32-3660")
	require.NoError(t, err)
	assert.Equal(t, all[1].ID, found.ID)

	got.Epiroc = "EP-1"
	require.NoError(t, s.UpdateRecord(ctx, got))
	again, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "EP-1", again.Epiroc)
}

func TestSQLiteNotFoundAndInvalidField(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	_, err := s.GetRecord(ctx, 42)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.FindByField(ctx, entity.FieldArticleAGB, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.FindByField(ctx, "unit; DROP TABLE catalog_records", "x")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	err = s.UpdateRecord(ctx, &entity.CatalogRecord{ID: 42})
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.LookupConfirmed(ctx, "bl-4590")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteSaveConfirmationUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	rec := &entity.CatalogRecord{ArticleAGB: "BL-4590"}
	require.NoError(t, s.CreateRecord(ctx, rec))

	m, err := s.SaveConfirmation(ctx, "bl-4590", rec.ID, 70)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count)

	m, err = s.SaveConfirmation(ctx, "bl-4590", rec.ID, 95)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, 95.0, m.Score)

	m, err = s.SaveConfirmation(ctx, "bl-4590", rec.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, 95.0, m.Score)

	list, err := s.ListConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := s.LookupConfirmed(ctx, "bl-4590")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.RecordID)
	assert.Equal(t, 3, got.Count)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := OpenSQLite(t.Context(), path, logger)
	require.NoError(t, err)
	require.NoError(t, s.CreateRecord(t.Context(), &entity.CatalogRecord{ArticleAGB: "X-1"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(t.Context(), path, logger)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.CountRecords(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

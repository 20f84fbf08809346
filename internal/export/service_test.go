package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/confirm"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleResult() *pipeline.Result {
	doc := uuid.New()
	line := func(i int, text string) entity.RecognizedLine {
		return entity.RecognizedLine{DocumentID: doc, Index: i, Text: text}
	}
	crown := &entity.CatalogRecord{ID: 7, ArticleAGB: "AGB-001", ArticleBL: "BL-4590"}
	rod := &entity.CatalogRecord{ID: 9, ArticleAGB: "AGB-017"}
	return &pipeline.Result{
		DocumentID: doc,
		Name:       "invoice.txt",
		Matches: []entity.MatchResult{
			entity.NewMatched(line(0, "Коронка BL-4590 алмазная"), crown, "article_bl", "BL-4590", 87.5, constants.ProvenanceLocal),
			entity.NewBelowThreshold(line(1, "штанга NQ 3м"), rod, "nomenclature_agb", "Штанга NQ", 41, constants.ProvenanceLocal),
			entity.NewNotFound(line(2, "доставка")),
		},
	}
}

func markConfirm(t *testing.T, data []byte, rows ...int) []byte {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	for _, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(9, r)
		require.NoError(t, f.SetCellValue(resultsSheet, cell, "да"))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestResultsXLSXLayout(t *testing.T) {
	svc := NewService(nil, discard())
	data, err := svc.ResultsXLSX(context.Background(), []*pipeline.Result{sampleResult(), nil})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "Коронка BL-4590 алмазная", rows[1][0])
	assert.Equal(t, "AGB-001", rows[1][1])
	assert.Equal(t, "article_bl", rows[1][2])
	assert.Equal(t, "87.5", rows[1][4])
	assert.Equal(t, "matched", rows[1][6])
	assert.Equal(t, "7", rows[1][7])
	assert.Equal(t, "invoice.txt", rows[1][9])

	assert.Equal(t, "below_threshold", rows[2][6])
	assert.Equal(t, "9", rows[2][7])

	assert.Equal(t, "доставка", rows[3][0])
	assert.Equal(t, "not_found", rows[3][6])
	assert.Equal(t, "", rows[3][7])
}

func TestImportConfirmationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := confirm.NewCache(confirm.NewMemoryStore(), confirm.DefaultMinContainment, discard())
	svc := NewService(cache, discard())

	data, err := svc.ResultsXLSX(ctx, []*pipeline.Result{sampleResult()})
	require.NoError(t, err)
	marked := markConfirm(t, data, 2, 3)

	stats, err := svc.ImportConfirmations(ctx, marked)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Confirmed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Invalid)

	got, ok := cache.Lookup(ctx, "коронка bl-4590 алмазная")
	require.True(t, ok)
	assert.Equal(t, int64(7), got.RecordID)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 87.5, got.Score)

	got, ok = cache.Lookup(ctx, "Штанга NQ 3м")
	require.True(t, ok)
	assert.Equal(t, int64(9), got.RecordID)
}

func TestImportConfirmationsCountersAreOrderIndependent(t *testing.T) {
	ctx := context.Background()

	low := sampleResult()
	low.Matches[0].Score = 60
	high := sampleResult()

	run := func(first, second *pipeline.Result) *entity.ConfirmedMapping {
		cache := confirm.NewCache(confirm.NewMemoryStore(), confirm.DefaultMinContainment, discard())
		svc := NewService(cache, discard())
		for _, res := range []*pipeline.Result{first, second} {
			data, err := svc.ResultsXLSX(ctx, []*pipeline.Result{res})
			require.NoError(t, err)
			_, err = svc.ImportConfirmations(ctx, markConfirm(t, data, 2))
			require.NoError(t, err)
		}
		got, ok := cache.Lookup(ctx, "Коронка BL-4590 алмазная")
		require.True(t, ok)
		return got
	}

	a := run(low, high)
	b := run(high, low)
	assert.Equal(t, 2, a.Count)
	assert.Equal(t, a.Count, b.Count)
	assert.Equal(t, 87.5, a.Score)
	assert.Equal(t, a.Score, b.Score)
}

func TestImportConfirmationsRowWithoutRecord(t *testing.T) {
	ctx := context.Background()
	cache := confirm.NewCache(confirm.NewMemoryStore(), confirm.DefaultMinContainment, discard())
	svc := NewService(cache, discard())

	data, err := svc.ResultsXLSX(ctx, []*pipeline.Result{sampleResult()})
	require.NoError(t, err)

	stats, err := svc.ImportConfirmations(ctx, markConfirm(t, data, 4))
	require.NoError(t, err)
	assert.Zero(t, stats.Confirmed)
	assert.Equal(t, 1, stats.Invalid)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "row 4")
	assert.Zero(t, cache.Len())
}

func TestImportConfirmationsRejectsGarbage(t *testing.T) {
	svc := NewService(nil, discard())
	_, err := svc.ImportConfirmations(context.Background(), []byte("not a workbook"))
	require.Error(t, err)
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "x", "Yes", "TRUE", "да", " + "} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"", "0", "no", "нет"} {
		assert.False(t, truthy(v), v)
	}
}

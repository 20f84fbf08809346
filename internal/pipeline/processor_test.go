package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/confirm"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/extract"
	"github.com/joseph-ayodele/article-matcher/internal/match"
	"github.com/joseph-ayodele/article-matcher/internal/structure"
)

type staticCatalog struct {
	records []entity.CatalogRecord
	err     error
}

func (s staticCatalog) ListRecords(context.Context) ([]entity.CatalogRecord, error) {
	return s.records, s.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProcessor(records []entity.CatalogRecord, confirmed match.Confirmations) *Processor {
	logger := quiet()
	reg := extract.NewRegistry(logger)
	reg.Register(constants.MediaTypePlain, extract.TextExtractor{})
	reg.Register(constants.MediaTypeCSV, extract.CSVExtractor{})
	return NewProcessor(logger, reg, structure.NewInferrer(nil, 0, logger), match.NewMatcher(confirmed, nil, logger), staticCatalog{records: records})
}

func textInput(s string) Input {
	return Input{Name: "doc.txt", Data: []byte(s), MediaType: "text/plain; charset=utf-8"}
}

func TestProcess_PlainTextEndToEnd(t *testing.T) {
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}}, nil)

	res, err := p.Process(t.Context(), textInput("Счёт 12\nТовар BL-4590 комплект\n\n"), DefaultOptions())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.DocumentID)
	assert.Equal(t, "text", res.Method)
	assert.Equal(t, 2, res.LinesProcessed)
	assert.Equal(t, 1, res.LinesMatched)
	require.Len(t, res.Matches, 2)

	assert.Equal(t, constants.MatchStatusNotFound, res.Matches[0].Status)
	m := res.Matches[1]
	require.True(t, m.Matched())
	assert.Equal(t, "Товар BL-4590 комплект", m.Line.Text)
	assert.Equal(t, entity.FieldArticleAGB, m.Field)
	assert.GreaterOrEqual(t, m.Score, 90.0)
	assert.Equal(t, constants.ProvenanceLocal, m.Provenance)
	assert.Equal(t, res.DocumentID, m.Line.DocumentID)
}

func TestProcess_FilterUnmatched(t *testing.T) {
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}}, nil)
	opts := DefaultOptions()
	opts.IncludeUnmatched = false

	res, err := p.Process(t.Context(), textInput("Счёт 12\nТовар BL-4590 комплект"), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LinesProcessed)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Matches[0].Line.Index)
}

func TestProcess_EmptyCatalogYieldsUnmatched(t *testing.T) {
	p := newProcessor(nil, nil)
	res, err := p.Process(t.Context(), textInput("first\nsecond\nthird"), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	for _, m := range res.Matches {
		assert.Equal(t, constants.MatchStatusNotFound, m.Status)
	}
	assert.Zero(t, res.LinesMatched)
}

func TestProcess_EmptyExtraction(t *testing.T) {
	_, err := newProcessor(nil, nil).Process(t.Context(), textInput(" \n\t\n"), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEmptyExtraction)
}

func TestProcess_UnsupportedFormat(t *testing.T) {
	_, err := newProcessor(nil, nil).Process(t.Context(), Input{Data: []byte("x"), MediaType: "application/zip"}, DefaultOptions())
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestProcess_CatalogFailure(t *testing.T) {
	p := newProcessor(nil, nil)
	p.Catalog = staticCatalog{err: errors.New("db down")}
	_, err := p.Process(t.Context(), textInput("x"), DefaultOptions())
	assert.Error(t, err)
}

func TestProcess_CSVUsesIdentifierColumn(t *testing.T) {
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}, {ID: 2, ArticleAGB: "R32-3660"}}, nil)
	doc := "№;Артикул АГБ;Кол-во\n1;BL-4590;2\n2;;3\n3;R32-3660;1\n"

	res, err := p.Process(t.Context(), Input{Name: "order.csv", Data: []byte(doc), MediaType: constants.MediaTypeCSV}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Mappings, 1)
	require.NotNil(t, res.Mappings[0].Mapping.IdentifierColumn)
	assert.Equal(t, 2, *res.Mappings[0].Mapping.IdentifierColumn)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, "BL-4590", res.Matches[0].Line.Text)
	assert.Equal(t, 2, res.Matches[0].Line.Row)
	assert.Equal(t, "csv", res.Matches[0].Line.Sheet)
	assert.Equal(t, int64(1), res.Matches[0].Record.ID)
	assert.Equal(t, 4, res.Matches[1].Line.Row)
	assert.Equal(t, int64(2), res.Matches[1].Record.ID)
}

func TestProcess_CSVWithoutHeaderFlattensRows(t *testing.T) {
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}}, nil)
	res, err := p.Process(t.Context(), Input{Data: []byte("1;BL-4590;2\n"), MediaType: constants.MediaTypeCSV}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "1 BL-4590 2", res.Matches[0].Line.Text)
	assert.Nil(t, res.Mappings[0].Mapping.IdentifierColumn)
	assert.True(t, res.Matches[0].Matched())
}

func TestProcess_CSVKeywordInDataRowKeepsEveryRow(t *testing.T) {
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}, {ID: 2, ArticleAGB: "R32-3660"}}, nil)
	doc := "1;Товар BL-4590 комплект;2\n2;R32-3660;1\n"

	res, err := p.Process(t.Context(), Input{Name: "order.csv", Data: []byte(doc), MediaType: constants.MediaTypeCSV}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Mappings, 1)
	assert.Nil(t, res.Mappings[0].Mapping.HeaderRow)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, 1, res.Matches[0].Line.Row)
	assert.Equal(t, "1 Товар BL-4590 комплект 2", res.Matches[0].Line.Text)
	assert.Equal(t, int64(1), res.Matches[0].Record.ID)
	assert.Equal(t, 2, res.Matches[1].Line.Row)
	assert.Equal(t, int64(2), res.Matches[1].Record.ID)
}

func TestProcess_ParallelPreservesOrder(t *testing.T) {
	var records []entity.CatalogRecord
	var lines []string
	for i := 1; i <= 50; i++ {
		records = append(records, entity.CatalogRecord{ID: int64(i), ArticleAGB: fmt.Sprintf("ART-%03d", i)})
		lines = append(lines, fmt.Sprintf("позиция ART-%03d", i))
	}
	p := newProcessor(records, nil)
	opts := DefaultOptions()
	opts.Workers = 8

	res, err := p.Process(t.Context(), textInput(strings.Join(lines, "\n")), opts)
	require.NoError(t, err)
	require.Len(t, res.Matches, 50)
	for i, m := range res.Matches {
		assert.Equal(t, i, m.Line.Index)
		require.True(t, m.Matched())
		assert.Equal(t, int64(i+1), m.Record.ID)
	}
}

func TestProcess_CancelledDiscardsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}}, nil)
	cat, err := p.LoadCatalog(ctx)
	require.NoError(t, err)
	cancel()

	for _, workers := range []int{1, 4} {
		opts := DefaultOptions()
		opts.Workers = workers
		res, err := p.ProcessWithCatalog(ctx, textInput("a\nb\nc"), cat, opts)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestProcess_ConfirmedMappingOverridesScoring(t *testing.T) {
	cache := confirm.NewCache(confirm.NewMemoryStore(), 0, quiet())
	_, err := cache.Confirm(t.Context(), "коронка старая", 2, 75)
	require.NoError(t, err)

	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}, {ID: 2, ArticleAGB: "BL-4591"}}, cache)
	res, err := p.Process(t.Context(), textInput("BL-4590 коронка старая"), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, int64(2), res.Matches[0].Record.ID)
	assert.Equal(t, constants.ProvenanceConfirmed, res.Matches[0].Provenance)
}

func TestProcessBatch_RecordsPerDocumentErrors(t *testing.T) {
	p := newProcessor([]entity.CatalogRecord{{ID: 1, ArticleAGB: "BL-4590"}}, nil)
	items, err := p.ProcessBatch(t.Context(), []Input{
		textInput("BL-4590"),
		{Name: "a.zip", Data: []byte("PK"), MediaType: "application/zip"},
		textInput("nothing here"),
	}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	assert.Equal(t, 1, items[0].Result.LinesMatched)
	assert.ErrorIs(t, items[1].Err, common.ErrUnsupportedFormat)
	assert.Nil(t, items[1].Result)
	assert.NoError(t, items[2].Err)
}

func TestSplitLines(t *testing.T) {
	id := uuid.New()
	text := "  Счёт №1  \n\nТовар BL-4590\n"
	lines := SplitLines(id, text)
	require.Len(t, lines, 2)

	assert.Equal(t, "Счёт №1", lines[0].Text)
	assert.Equal(t, 2, lines[0].Offset)
	assert.Equal(t, "Товар BL-4590", lines[1].Text)
	assert.Equal(t, strings.Index(text, "Товар"), lines[1].Offset)
	assert.Equal(t, 1, lines[1].Index)
	assert.Equal(t, id, lines[1].DocumentID)
	assert.Equal(t, "Счёт №1 Товар BL-4590", lines[1].Context)
}

func TestSnippetIsRuneSafe(t *testing.T) {
	text := strings.Repeat("я", 80) + "\nBL-4590\n" + strings.Repeat("ж", 80)
	start := strings.Index(text, "BL")
	s := snippet(text, start, start+len("BL-4590"), 5)
	assert.Equal(t, "яяяя BL-4590 жжжж", s)
}

func TestTableLines(t *testing.T) {
	id := uuid.New()
	tables := []extract.Table{
		{Sheet: "A", Rows: [][]string{{"Артикул", "Наименование"}, {"", "Коронка"}, {"", ""}, {"X-1", "Болт"}}},
		{Sheet: "B", Rows: [][]string{{"free", "row"}}},
	}
	mappings := []structure.Mapping{{HeaderRow: 0, IdentifierCol: 0, DescriptiveCol: 1, Source: structure.SourceKeywords}}

	lines := TableLines(id, tables, mappings)
	require.Len(t, lines, 3)
	assert.Equal(t, "Коронка", lines[0].Text)
	assert.Equal(t, 2, lines[0].Row)
	assert.Equal(t, "X-1", lines[1].Text)
	assert.Equal(t, 4, lines[1].Row)
	assert.Equal(t, "free row", lines[2].Text)
	assert.Equal(t, "B", lines[2].Sheet)
	assert.Equal(t, 2, lines[2].Index)
}

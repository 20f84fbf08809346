package structure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/article-matcher/internal/llm"
)

type stubAssist struct {
	sug    *llm.ColumnSuggestion
	err    error
	calls  int
	sample [][]string
	block  bool
	dl     bool
}

func (s *stubAssist) InferColumns(ctx context.Context, sample [][]string) (*llm.ColumnSuggestion, error) {
	s.calls++
	s.sample = sample
	_, s.dl = ctx.Deadline()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.sug, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInferKeywords_ArticleAGBInThirdColumn(t *testing.T) {
	rows := [][]string{
		{"№", "Кол-во", "Артикул АГБ", "Цена"},
		{"1", "2", "BL-4590", "100"},
	}
	m := NewInferrer(nil, 0, quietLogger()).Infer(t.Context(), rows)

	pub := m.Public()
	require.NotNil(t, pub.IdentifierColumn)
	assert.Equal(t, 3, *pub.IdentifierColumn)
	assert.Nil(t, pub.DescriptiveColumn)
	require.NotNil(t, pub.HeaderRow)
	assert.Equal(t, 1, *pub.HeaderRow)
	assert.Equal(t, SourceKeywords, pub.Source)
}

func TestInferKeywords_PriorityAndDescriptive(t *testing.T) {
	rows := [][]string{
		{"Поставщик ООО Ромашка"},
		{},
		{"Код", "Наименование товара", "Артикул", "Ед."},
	}
	m, ok := InferKeywords(rows)
	require.True(t, ok)
	assert.Equal(t, 2, m.HeaderRow)
	assert.Equal(t, 2, m.IdentifierCol, "артикул outranks код")
	assert.Equal(t, 1, m.DescriptiveCol)
	assert.Equal(t, 3, m.FirstDataRow())
}

func TestInferKeywords_LatinHeaders(t *testing.T) {
	m, ok := InferKeywords([][]string{{"Description", "Part Number", "Qty"}})
	require.True(t, ok)
	assert.Equal(t, 1, m.IdentifierCol)
	assert.Equal(t, 0, m.DescriptiveCol)
}

func TestInferKeywords_OnlyDescriptive(t *testing.T) {
	m, ok := InferKeywords([][]string{{"Qty", "Номенклатура"}})
	require.True(t, ok)
	assert.Equal(t, -1, m.IdentifierCol)
	assert.Equal(t, 1, m.DescriptiveCol)
}

func TestInferKeywords_DataRowsAreNotHeaders(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"keyword inside an article cell", [][]string{{"1", "Товар BL-4590 комплект", "2"}, {"2", "R32-3660", "1"}}},
		{"long descriptive sentence", [][]string{{"Описание работ по замене коронки на буровой установке номер семь"}}},
		{"mostly numbers", [][]string{{"1", "код", "3", "4"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := InferKeywords(tt.rows)
			assert.False(t, ok)
			assert.Equal(t, NoMapping(), m)
		})
	}
}

func TestInferKeywords_ShortDigitInHeaderAllowed(t *testing.T) {
	m, ok := InferKeywords([][]string{{"Код 1С", "Наименование"}})
	require.True(t, ok)
	assert.Equal(t, 0, m.IdentifierCol)
	assert.Equal(t, 1, m.DescriptiveCol)
}

func TestInferKeywords_HeaderBeyondScanWindow(t *testing.T) {
	rows := make([][]string, HeaderScanRows+1)
	for i := range rows {
		rows[i] = []string{"x"}
	}
	rows[HeaderScanRows] = []string{"Артикул"}
	_, ok := InferKeywords(rows)
	assert.False(t, ok)
}

func TestPublicRoundTrip(t *testing.T) {
	cases := []Mapping{
		{HeaderRow: 0, IdentifierCol: 2, DescriptiveCol: -1, Source: SourceKeywords},
		{HeaderRow: -1, IdentifierCol: 0, DescriptiveCol: 5, Source: SourceAssist},
		NoMapping(),
	}
	for _, m := range cases {
		assert.Equal(t, m, FromPublic(m.Public()))
	}

	pub := Mapping{HeaderRow: 0, IdentifierCol: 0, DescriptiveCol: -1, Source: SourceKeywords}.Public()
	assert.Equal(t, 1, *pub.HeaderRow)
	assert.Equal(t, 1, *pub.IdentifierColumn)
	assert.Nil(t, pub.DescriptiveColumn)
}

func TestCell(t *testing.T) {
	m := Mapping{HeaderRow: 0, IdentifierCol: 1, DescriptiveCol: 2}
	assert.Equal(t, "BL-4590", m.Cell([]string{"1", " BL-4590 ", "Коронка"}))
	assert.Equal(t, "Коронка", m.Cell([]string{"1", "", "Коронка"}))
	assert.Equal(t, "", m.Cell([]string{"1"}))
}

func TestInfer_AssistFallback(t *testing.T) {
	assist := &stubAssist{sug: &llm.ColumnSuggestion{HeaderRow: 0, IdentifierColumn: 2, DescriptiveColumn: 1}}
	rows := [][]string{{"Коронка буровая", "BL-4590"}, {"Штанга", "R32-3660"}}

	m := NewInferrer(assist, time.Second, quietLogger()).Infer(t.Context(), rows)
	assert.Equal(t, 1, assist.calls)
	assert.Equal(t, Mapping{HeaderRow: -1, IdentifierCol: 1, DescriptiveCol: 0, Source: SourceAssist}, m)
	assert.Equal(t, 0, m.FirstDataRow())
}

func TestInfer_AssistSampleIsBounded(t *testing.T) {
	row := make([]string, 30)
	rows := make([][]string, 25)
	for i := range rows {
		rows[i] = row
	}
	assist := &stubAssist{}
	m := NewInferrer(assist, time.Second, quietLogger()).Infer(t.Context(), rows)
	assert.False(t, m.Found())
	require.Len(t, assist.sample, SampleRows)
	assert.Len(t, assist.sample[0], SampleCols)
}

func TestInfer_AssistFailuresYieldNoMapping(t *testing.T) {
	rows := [][]string{{"a", "b"}}
	cases := map[string]*stubAssist{
		"error":        {err: errors.New("boom")},
		"out of range": {sug: &llm.ColumnSuggestion{IdentifierColumn: 3}},
		"all absent":   {sug: &llm.ColumnSuggestion{}},
		"timeout":      {block: true},
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewInferrer(a, 20*time.Millisecond, quietLogger()).Infer(t.Context(), rows)
			assert.Equal(t, NoMapping(), m)
		})
	}
}

func TestInfer_ZeroTimeoutStillBoundsAssist(t *testing.T) {
	assist := &stubAssist{}
	NewInferrer(assist, 0, quietLogger()).Infer(t.Context(), [][]string{{"a", "b"}})
	require.Equal(t, 1, assist.calls)
	assert.True(t, assist.dl)
}

func TestInfer_NoAssist(t *testing.T) {
	assert.Equal(t, NoMapping(), NewInferrer(nil, 0, nil).Infer(t.Context(), [][]string{{"1", "2"}}))
}

// Package structure locates the identifier and descriptive columns of tabular documents.
//
// Indexes are 0-based inside the package (-1 = absent). ColumnMapping is the 1-based
// form used in API responses and reports; Public and FromPublic are the only conversions.
package structure

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/llm"
)

// Source tells how a mapping was obtained.
type Source string

const (
	SourceKeywords Source = "keywords"
	SourceAssist   Source = "assist"
	SourceNone     Source = "none"
)

const (
	// HeaderScanRows is how many leading rows are searched for a header.
	HeaderScanRows = 10
	// SampleRows and SampleCols bound the table sample sent to the column assistant.
	SampleRows = 10
	SampleCols = 20
	// DefaultAssistTimeout applies when the Inferrer is built without a timeout.
	DefaultAssistTimeout = 10 * time.Second
)

// identifierKeywords are ordered by priority: an "артикул" column beats a plain "код" column.
var identifierKeywords = []string{
	"артикул", "article", "part number", "p/n", "sku",
	"каталожный номер", "номер", "number", "код", "code",
}

var descriptiveKeywords = []string{
	"номенклатура", "наименование", "название", "описание", "товар",
	"nomenclature", "name", "description", "product",
}

// Mapping is the 0-based column layout of a table.
type Mapping struct {
	HeaderRow      int
	IdentifierCol  int
	DescriptiveCol int
	Source         Source
}

// NoMapping is the result when nothing could be inferred.
func NoMapping() Mapping {
	return Mapping{HeaderRow: -1, IdentifierCol: -1, DescriptiveCol: -1, Source: SourceNone}
}

// Found reports whether at least one column role is known.
func (m Mapping) Found() bool {
	return m.IdentifierCol >= 0 || m.DescriptiveCol >= 0
}

// FirstDataRow is the index of the first row below the header.
func (m Mapping) FirstDataRow() int {
	if m.HeaderRow < 0 {
		return 0
	}
	return m.HeaderRow + 1
}

// Cell returns the value a data row is matched by: the identifier cell, or the
// descriptive cell when the identifier is empty. "" when neither is present.
func (m Mapping) Cell(row []string) string {
	if v := cellAt(row, m.IdentifierCol); v != "" {
		return v
	}
	return cellAt(row, m.DescriptiveCol)
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ColumnMapping is the 1-based, spreadsheet-style view of a Mapping. Nil means absent.
type ColumnMapping struct {
	HeaderRow         *int   `json:"header_row"`
	IdentifierColumn  *int   `json:"identifier_column"`
	DescriptiveColumn *int   `json:"descriptive_column"`
	Source            Source `json:"source"`
}

// Public converts to 1-based indexes.
func (m Mapping) Public() ColumnMapping {
	return ColumnMapping{
		HeaderRow:         oneBased(m.HeaderRow),
		IdentifierColumn:  oneBased(m.IdentifierCol),
		DescriptiveColumn: oneBased(m.DescriptiveCol),
		Source:            m.Source,
	}
}

// FromPublic converts a 1-based mapping back to 0-based indexes.
func FromPublic(c ColumnMapping) Mapping {
	src := c.Source
	if src == "" {
		src = SourceNone
	}
	return Mapping{
		HeaderRow:      zeroBased(c.HeaderRow),
		IdentifierCol:  zeroBased(c.IdentifierColumn),
		DescriptiveCol: zeroBased(c.DescriptiveColumn),
		Source:         src,
	}
}

func oneBased(i int) *int {
	if i < 0 {
		return nil
	}
	v := i + 1
	return &v
}

func zeroBased(p *int) int {
	if p == nil || *p < 1 {
		return -1
	}
	return *p - 1
}

// headerMaxWords bounds a header cell; longer cells are data that happens to contain a keyword.
const headerMaxWords = 6

// InferKeywords scans the leading rows for header keywords. ok is false when no row has a hit.
// Only header-like rows count: keyword cells without digit runs, in a row that is not mostly numbers.
func InferKeywords(rows [][]string) (Mapping, bool) {
	for r := 0; r < len(rows) && r < HeaderScanRows; r++ {
		if mostlyNumeric(rows[r]) {
			continue
		}
		ident, identPrio, desc := -1, len(identifierKeywords), -1
		for c, cell := range rows[r] {
			v := strings.ToLower(strings.TrimSpace(cell))
			if !headerCell(v) {
				continue
			}
			if p := keywordIndex(v, identifierKeywords); p >= 0 && p < identPrio {
				ident, identPrio = c, p
			}
		}
		for c, cell := range rows[r] {
			v := strings.ToLower(strings.TrimSpace(cell))
			if !headerCell(v) || c == ident {
				continue
			}
			if keywordIndex(v, descriptiveKeywords) >= 0 {
				desc = c
				break
			}
		}
		if ident >= 0 || desc >= 0 {
			return Mapping{HeaderRow: r, IdentifierCol: ident, DescriptiveCol: desc, Source: SourceKeywords}, true
		}
	}
	return NoMapping(), false
}

// headerCell rejects empty cells, long cells and cells carrying a run of two or more digits
// ("Код 1С" passes, "Товар BL-4590 комплект" does not).
func headerCell(v string) bool {
	if v == "" || len(strings.Fields(v)) > headerMaxWords {
		return false
	}
	run := 0
	for _, r := range v {
		if !unicode.IsDigit(r) {
			run = 0
			continue
		}
		if run++; run >= 2 {
			return false
		}
	}
	return true
}

// mostlyNumeric reports whether more than half of the non-empty cells parse as numbers.
func mostlyNumeric(row []string) bool {
	filled, numeric := 0, 0
	for _, cell := range row {
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		filled++
		if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
			numeric++
		}
	}
	return filled > 0 && numeric*2 > filled
}

func keywordIndex(cell string, keywords []string) int {
	for i, kw := range keywords {
		if strings.Contains(cell, kw) {
			return i
		}
	}
	return -1
}

// Sample cuts rows down to what is sent to the column assistant.
func Sample(rows [][]string) [][]string {
	n := min(len(rows), SampleRows)
	out := make([][]string, 0, n)
	for _, row := range rows[:n] {
		out = append(out, append([]string(nil), row[:min(len(row), SampleCols)]...))
	}
	return out
}

// Inferrer runs keyword inference with an optional assistant fallback.
type Inferrer struct {
	assist  llm.ColumnInferrer
	timeout time.Duration
	logger  *slog.Logger
}

// NewInferrer creates an Inferrer. assist may be nil; timeout <= 0 selects DefaultAssistTimeout.
func NewInferrer(assist llm.ColumnInferrer, timeout time.Duration, logger *slog.Logger) *Inferrer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultAssistTimeout
	}
	return &Inferrer{assist: assist, timeout: timeout, logger: logger}
}

// Infer never fails: assistant errors and implausible answers yield NoMapping.
func (i *Inferrer) Infer(ctx context.Context, rows [][]string) Mapping {
	if m, ok := InferKeywords(rows); ok {
		return m
	}
	if i.assist == nil || len(rows) == 0 {
		return NoMapping()
	}

	sample := Sample(rows)
	start := time.Now()
	actx, cancel := common.WithTimeout(ctx, i.timeout)
	defer cancel()

	sug, err := i.assist.InferColumns(actx, sample)
	if err != nil {
		i.logger.Warn("structure.assist.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return NoMapping()
	}
	m, ok := fromSuggestion(sug, sample)
	if !ok {
		i.logger.Info("structure.assist.inconclusive", "elapsed_ms", time.Since(start).Milliseconds())
		return NoMapping()
	}
	i.logger.Info("structure.assist.ok",
		"header_row", m.HeaderRow,
		"identifier_col", m.IdentifierCol,
		"descriptive_col", m.DescriptiveCol,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return m
}

// fromSuggestion validates a 1-based suggestion against the sample it was made for.
func fromSuggestion(s *llm.ColumnSuggestion, sample [][]string) (Mapping, bool) {
	if s == nil {
		return NoMapping(), false
	}
	cols := 0
	for _, row := range sample {
		cols = max(cols, len(row))
	}
	if s.HeaderRow < 0 || s.HeaderRow > len(sample) ||
		s.IdentifierColumn < 0 || s.IdentifierColumn > cols ||
		s.DescriptiveColumn < 0 || s.DescriptiveColumn > cols {
		return NoMapping(), false
	}
	m := Mapping{
		HeaderRow:      s.HeaderRow - 1,
		IdentifierCol:  s.IdentifierColumn - 1,
		DescriptiveCol: s.DescriptiveColumn - 1,
		Source:         SourceAssist,
	}
	if m.DescriptiveCol == m.IdentifierCol {
		m.DescriptiveCol = -1
	}
	if !m.Found() {
		return NoMapping(), false
	}
	return m, true
}

// Package catalog imports catalog records from spreadsheets.
package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

// headerScanRows bounds the search for the header row.
const headerScanRows = 20

// fieldVariant marks a variant column whose slot is resolved per row.
const fieldVariant = "variant"

var headerKeywords = []string{
	"артикул", "номенклатура", "наименование", "код", "code", "1с",
	"вариант", "подбор", "ед.изм", "фасовка", "bortlanger", "epiroc", "almazgeobur",
}

var ignoredHeaders = map[string]bool{"id": true, "№": true, "n": true, "действия": true, "action": true}

var digits = regexp.MustCompile(`\d+`)

// Column binds a sheet column to a record field. Slot is the 1-based variant slot
// for variant columns, 0 when the value goes to the first free slot.
type Column struct {
	Index  int
	Header string
	Field  string
	Slot   int
}

// Layout is the header row (0-based) and the recognized columns of a sheet.
type Layout struct {
	HeaderRow int
	Columns   []Column
}

// Has reports whether the layout maps some column to field.
func (l Layout) Has(field string) bool {
	for _, c := range l.Columns {
		if c.Field == field {
			return true
		}
	}
	return false
}

// DetectLayout finds the header row among the first rows (a row with at least two cells and
// a known keyword; the first row otherwise) and classifies its cells.
func DetectLayout(rows [][]string) Layout {
	header := 0
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		if isHeaderRow(rows[r]) {
			header = r
			break
		}
	}
	l := Layout{HeaderRow: header}
	if header >= len(rows) {
		return l
	}

	seen := map[string]bool{}
	for i, cell := range rows[header] {
		h := strings.TrimSpace(cell)
		field, slot := classify(strings.ToLower(h), seen)
		if field == "" {
			continue
		}
		seen[field] = true
		l.Columns = append(l.Columns, Column{Index: i, Header: h, Field: field, Slot: slot})
	}
	return l
}

func isHeaderRow(row []string) bool {
	filled := 0
	var b strings.Builder
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			filled++
			b.WriteString(strings.ToLower(c))
			b.WriteByte(' ')
		}
	}
	if filled < 2 {
		return false
	}
	text := b.String()
	for _, kw := range headerKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// classify maps a lowercased header to a field name. Order matters: "код 1с" before "код".
func classify(h string, seen map[string]bool) (string, int) {
	switch {
	case h == "" || ignoredHeaders[h]:
		return "", 0
	case strings.Contains(h, "артикул агб") || (h == "артикул" && !seen[entity.FieldArticleAGB]):
		return entity.FieldArticleAGB, 0
	case strings.Contains(h, "артикул bl") || strings.Contains(h, "артикул бл"):
		return entity.FieldArticleBL, 0
	case strings.Contains(h, "код") && (strings.Contains(h, "1с") || strings.Contains(h, "1c")):
		return entity.FieldCode1C, 0
	case strings.Contains(h, "bortlanger") || strings.Contains(h, "бортлангер"):
		return entity.FieldBortlanger, 0
	case strings.Contains(h, "epiroc") || strings.Contains(h, "эпирок"):
		return entity.FieldEpiroc, 0
	case strings.Contains(h, "almazgeobur") || strings.Contains(h, "алмазгеобур"):
		return entity.FieldAlmazgeobur, 0
	case strings.Contains(h, "номенклатура") || strings.Contains(h, "наименование"):
		return entity.FieldNomenclatureAGB, 0
	case h == "код" || h == "code":
		return entity.FieldCode, 0
	case strings.Contains(h, "ед.изм") || strings.Contains(h, "единица"):
		return entity.FieldUnit, 0
	case strings.Contains(h, "фасовка") || strings.Contains(h, "упаковка"):
		return entity.FieldPackaging, 0
	case strings.Contains(h, "вариант") || strings.Contains(h, "подбор"):
		if n, err := strconv.Atoi(digits.FindString(h)); err == nil && n >= 1 && n <= entity.VariantSlots {
			return fieldVariant, n
		}
		return fieldVariant, 0
	}
	return entity.CompetitorFieldPrefix + h, 0
}

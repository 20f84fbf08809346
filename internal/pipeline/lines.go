package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/extract"
	"github.com/joseph-ayodele/article-matcher/internal/structure"
)

// ContextRunes is how much surrounding text a free-text line carries on each side.
const ContextRunes = 50

// SplitLines turns free text into trimmed, non-empty lines with byte offsets and context.
func SplitLines(docID uuid.UUID, text string) []entity.RecognizedLine {
	var out []entity.RecognizedLine
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		start := offset
		offset += len(raw)

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lineStart := start + strings.Index(raw, trimmed)
		out = append(out, entity.RecognizedLine{
			DocumentID: docID,
			Index:      len(out),
			Text:       trimmed,
			Offset:     lineStart,
			Context:    snippet(text, lineStart, lineStart+len(trimmed), ContextRunes),
		})
	}
	return out
}

// snippet returns text[start:end] widened by n runes on both sides, on one line.
func snippet(text string, start, end, n int) string {
	from := start
	for i := 0; i < n && from > 0; i++ {
		from--
		for from > 0 && !isRuneStart(text[from]) {
			from--
		}
	}
	to := end
	for i := 0; i < n && to < len(text); i++ {
		to++
		for to < len(text) && !isRuneStart(text[to]) {
			to++
		}
	}
	return strings.Join(strings.Fields(text[from:to]), " ")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// TableLines emits one line per data row. Mapped tables use the identifier cell (falling back to
// the descriptive cell); unmapped tables use the flattened row. Empty rows are skipped.
func TableLines(docID uuid.UUID, tables []extract.Table, mappings []structure.Mapping) []entity.RecognizedLine {
	var out []entity.RecognizedLine
	for ti, t := range tables {
		m := structure.NoMapping()
		if ti < len(mappings) {
			m = mappings[ti]
		}
		for r := m.FirstDataRow(); r < len(t.Rows); r++ {
			var text string
			if m.Found() {
				text = m.Cell(t.Rows[r])
			} else {
				text = extract.FlattenRow(t.Rows[r])
			}
			if text == "" {
				continue
			}
			out = append(out, entity.RecognizedLine{
				DocumentID: docID,
				Index:      len(out),
				Text:       text,
				Offset:     r,
				Sheet:      t.Sheet,
				Row:        r + 1,
			})
		}
	}
	return out
}

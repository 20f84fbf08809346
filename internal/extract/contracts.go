package extract

import (
	"context"
	"strings"
	"time"

	"github.com/joseph-ayodele/article-matcher/constants"
)

// Extractor turns raw document bytes into text. Implementations are stateless.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (*Document, error)
}

// Table is one sheet of a tabular source, cells as text.
type Table struct {
	Sheet string
	Rows  [][]string
}

// Document is the output of extraction.
type Document struct {
	Text      string // newline separated; flattened rows for tabular sources
	Tables    []Table
	Format    constants.Format
	MediaType string
	Method    string // "image-ocr" | "pdf-text" | "pdf-ocr" | "spreadsheet" | "csv" | "docx" | "text"
	Pages     int
	Duration  time.Duration
	Warnings  []string
}

// Tabular reports whether the document carries row/column structure.
func (d *Document) Tabular() bool {
	return len(d.Tables) > 0
}

// FlattenRow joins the non-empty trimmed cells of a row with single spaces.
func FlattenRow(row []string) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

func flattenTables(tables []Table) string {
	var b strings.Builder
	for _, t := range tables {
		for _, row := range t.Rows {
			line := FlattenRow(row)
			if line == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(line)
		}
	}
	return b.String()
}

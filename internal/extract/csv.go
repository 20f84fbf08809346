package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/joseph-ayodele/article-matcher/internal/common"
)

// CSVExtractor reads delimited text as a single-sheet table.
type CSVExtractor struct{}

func (CSVExtractor) Extract(_ context.Context, data []byte, _ string) (*Document, error) {
	txt, converted := decodeText(data)

	r := csv.NewReader(strings.NewReader(txt))
	r.Comma = sniffDelimiter(txt)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.ExtractionError("csv", err)
		}
		rows = append(rows, rec)
	}

	tables := []Table{{Sheet: "csv", Rows: rows}}
	doc := &Document{Text: flattenTables(tables), Tables: tables, Method: "csv", Pages: 1}
	if converted {
		doc.Warnings = append(doc.Warnings, "decoded as windows-1251")
	}
	return doc, nil
}

// sniffDelimiter picks the most frequent of ';', ',' and tab on the first line.
func sniffDelimiter(txt string) rune {
	first, _, _ := strings.Cut(txt, "\n")
	best, bestN := ',', 0
	for _, d := range []rune{';', ',', '\t'} {
		if n := strings.Count(first, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

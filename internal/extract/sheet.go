package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/article-matcher/internal/common"
)

// SpreadsheetExtractor reads every row of every sheet of an XLSX workbook.
type SpreadsheetExtractor struct{}

func (SpreadsheetExtractor) Extract(ctx context.Context, data []byte, _ string) (*Document, error) {
	tables, err := ReadWorkbook(data)
	if err != nil {
		return nil, common.ExtractionError("spreadsheet", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Document{
		Text:   flattenTables(tables),
		Tables: tables,
		Method: "spreadsheet",
		Pages:  len(tables),
	}, nil
}

// ReadWorkbook returns the rows of each sheet in workbook order.
func ReadWorkbook(data []byte) ([]Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tables []Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		tables = append(tables, Table{Sheet: sheet, Rows: rows})
	}
	return tables, nil
}

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

const resultsSheet = "Results"

// Column headers of the results workbook. Confirmation import finds columns by these names.
const (
	ColText       = "Recognized text"
	ColFound      = "Found"
	ColField      = "Field"
	ColValue      = "Value"
	ColScore      = "Score"
	ColProvenance = "Provenance"
	ColStatus     = "Status"
	ColRecordID   = "Record ID"
	ColConfirm    = "Confirm"
	ColDocument   = "Document"
	ColRow        = "Source row"
)

var headers = []string{
	ColText, ColFound, ColField, ColValue, ColScore, ColProvenance,
	ColStatus, ColRecordID, ColConfirm, ColDocument, ColRow,
}

// Confirmer records operator confirmations.
type Confirmer interface {
	Confirm(ctx context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error)
}

// Service renders match results as XLSX and reads confirmations back from it.
type Service struct {
	confirmer Confirmer
	logger    *slog.Logger
}

func NewService(confirmer Confirmer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{confirmer: confirmer, logger: logger}
}

// ResultsXLSX returns a workbook with one row per match result, in document and line order.
func (s *Service) ResultsXLSX(ctx context.Context, results []*pipeline.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resultsSheet, cell, h)
	}

	row := 2
	for _, res := range results {
		if res == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc := res.Name
		if doc == "" {
			doc = res.DocumentID.String()
		}
		for _, m := range res.Matches {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(resultsSheet, cell, v)
			}
			write(1, m.Line.Text)
			if rec := m.Best(); rec != nil {
				write(2, rec.Label())
				write(8, rec.ID)
			}
			write(3, m.Field)
			write(4, m.Value)
			write(5, m.Score)
			write(6, string(m.Provenance))
			write(7, string(m.Status))
			write(10, doc)
			if m.Line.Row > 0 {
				write(11, m.Line.Row)
			} else {
				write(11, m.Line.Index+1)
			}
			row++
		}
	}

	_ = f.SetColWidth(resultsSheet, "A", "A", 48) // text
	_ = f.SetColWidth(resultsSheet, "B", "B", 28) // found
	_ = f.SetColWidth(resultsSheet, "C", "D", 20)
	_ = f.SetColWidth(resultsSheet, "E", "I", 12)
	_ = f.SetColWidth(resultsSheet, "J", "J", 32) // document
	_ = f.SetPanes(resultsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"documents", len(results),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ImportStats counts the rows of a confirmation import.
type ImportStats struct {
	Confirmed int      `json:"confirmed"`
	Skipped   int      `json:"skipped"`
	Invalid   int      `json:"invalid"`
	Errors    []string `json:"errors,omitempty"`
}

// ImportConfirmations reads a results workbook and confirms every row whose Confirm cell is
// truthy. Rows are applied in sheet order; each confirmation increments its pair's counter.
func (s *Service) ImportConfirmations(ctx context.Context, data []byte) (*ImportStats, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "cannot read workbook", errors.Join(common.ErrInvalidInput, err))
	}
	defer func() { _ = f.Close() }()

	stats := &ImportStats{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return stats, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		cols := columnIndex(rows[0])
		textCol, okText := cols[ColText]
		idCol, okID := cols[ColRecordID]
		confirmCol, okConfirm := cols[ColConfirm]
		if !okText || !okID || !okConfirm {
			s.logger.Warn("export.import.sheet_skipped", "sheet", sheet)
			continue
		}
		scoreCol, okScore := cols[ColScore]

		for r, row := range rows[1:] {
			if !truthy(cell(row, confirmCol)) {
				stats.Skipped++
				continue
			}
			text := cell(row, textCol)
			id, err := strconv.ParseInt(cell(row, idCol), 10, 64)
			if text == "" || err != nil || id <= 0 {
				stats.Invalid++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s row %d: recognized text and record id are required", sheet, r+2))
				continue
			}
			score := 100.0
			if okScore {
				if v, err := strconv.ParseFloat(strings.ReplaceAll(cell(row, scoreCol), ",", "."), 64); err == nil {
					score = v
				}
			}
			if _, err := s.confirmer.Confirm(ctx, text, id, score); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				stats.Invalid++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s row %d: %v", sheet, r+2, err))
				continue
			}
			stats.Confirmed++
		}
	}
	s.logger.Info("export.import.ok", "confirmed", stats.Confirmed, "skipped", stats.Skipped, "invalid", stats.Invalid)
	return stats, nil
}

func columnIndex(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		out[strings.TrimSpace(h)] = i
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "x", "+", "yes", "y", "true", "да", "д", "ok", "✓":
		return true
	}
	return false
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/extract"
)

// Store is the part of the record store the importer writes through.
type Store interface {
	FindByField(ctx context.Context, field, value string) (*entity.CatalogRecord, error)
	CreateRecord(ctx context.Context, rec *entity.CatalogRecord) error
	UpdateRecord(ctx context.Context, rec *entity.CatalogRecord) error
}

// SheetStats counts what happened to the data rows of one sheet.
type SheetStats struct {
	Sheet     string `json:"sheet"`
	HeaderRow int    `json:"header_row"` // 1-based
	Imported  int    `json:"imported"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Skipped   int    `json:"skipped"`
}

// Stats aggregates an import.
type Stats struct {
	Sheets    []SheetStats `json:"sheets"`
	Imported  int          `json:"imported"`
	Updated   int          `json:"updated"`
	Unchanged int          `json:"unchanged"`
	Skipped   int          `json:"skipped"`
}

func (s *Stats) add(ss SheetStats) {
	s.Sheets = append(s.Sheets, ss)
	s.Imported += ss.Imported
	s.Updated += ss.Updated
	s.Unchanged += ss.Unchanged
	s.Skipped += ss.Skipped
}

// Importer merges spreadsheet rows into the catalog. Rows with an AGB article are merged
// into the record carrying that article; existing values are never overwritten.
type Importer struct {
	store  Store
	logger *slog.Logger
}

func NewImporter(store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// ImportWorkbook imports every sheet of an XLSX workbook.
func (im *Importer) ImportWorkbook(ctx context.Context, data []byte) (*Stats, error) {
	tables, err := extract.ReadWorkbook(data)
	if err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "cannot read workbook", errors.Join(common.ErrInvalidInput, err))
	}
	start := time.Now()
	stats := &Stats{}
	for _, t := range tables {
		ss, err := im.ImportRows(ctx, t.Sheet, t.Rows)
		if err != nil {
			return stats, err
		}
		stats.add(ss)
	}
	im.logger.Info("catalog.import.ok",
		"sheets", len(stats.Sheets),
		"imported", stats.Imported,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

// ImportRows imports the data rows of one sheet.
func (im *Importer) ImportRows(ctx context.Context, sheet string, rows [][]string) (SheetStats, error) {
	l := DetectLayout(rows)
	ss := SheetStats{Sheet: sheet, HeaderRow: l.HeaderRow + 1}
	if len(l.Columns) == 0 {
		im.logger.Warn("catalog.import.no_columns", "sheet", sheet)
		return ss, nil
	}
	keyed := l.Has(entity.FieldArticleAGB)

	for r := l.HeaderRow + 1; r < len(rows); r++ {
		if err := ctx.Err(); err != nil {
			return ss, err
		}
		var fresh entity.CatalogRecord
		applyRow(&fresh, l, rows[r])
		if !identifiable(&fresh) {
			ss.Skipped++
			continue
		}

		if fresh.ArticleAGB == "" {
			if keyed {
				ss.Skipped++
				continue
			}
			if err := im.store.CreateRecord(ctx, &fresh); err != nil {
				return ss, fmt.Errorf("sheet %q row %d: %w", sheet, r+1, err)
			}
			ss.Imported++
			continue
		}

		existing, err := im.store.FindByField(ctx, entity.FieldArticleAGB, fresh.ArticleAGB)
		switch {
		case errors.Is(err, common.ErrNotFound):
			if err := im.store.CreateRecord(ctx, &fresh); err != nil {
				return ss, fmt.Errorf("sheet %q row %d: %w", sheet, r+1, err)
			}
			ss.Imported++
		case err != nil:
			return ss, fmt.Errorf("sheet %q row %d: %w", sheet, r+1, err)
		case applyRow(existing, l, rows[r]):
			if err := im.store.UpdateRecord(ctx, existing); err != nil {
				return ss, fmt.Errorf("sheet %q row %d: %w", sheet, r+1, err)
			}
			ss.Updated++
		default:
			ss.Unchanged++
		}
	}
	im.logger.Info("catalog.import.sheet",
		"sheet", sheet,
		"header_row", ss.HeaderRow,
		"columns", len(l.Columns),
		"imported", ss.Imported,
		"updated", ss.Updated,
		"unchanged", ss.Unchanged,
		"skipped", ss.Skipped,
	)
	return ss, nil
}

// applyRow fills absent fields of rec from row and reports whether rec changed.
func applyRow(rec *entity.CatalogRecord, l Layout, row []string) bool {
	changed := false
	for _, c := range l.Columns {
		if c.Index >= len(row) {
			continue
		}
		v := entity.NormalizeValue(row[c.Index])
		if v == "" {
			continue
		}
		if c.Field == fieldVariant {
			changed = addVariantAt(rec, c.Slot, v) || changed
			continue
		}
		changed = rec.FillEmpty(c.Field, v) || changed
	}
	return changed
}

// addVariantAt stores v in the 1-based slot when that slot is free, else in the first free slot.
// A value already present in any slot is not added again.
func addVariantAt(rec *entity.CatalogRecord, slot int, v string) bool {
	for _, existing := range rec.Variants {
		if strings.EqualFold(existing, v) {
			return false
		}
	}
	if slot >= 1 && slot <= entity.VariantSlots && rec.Variants[slot-1] == "" {
		rec.Variants[slot-1] = v
		return true
	}
	return rec.AddVariant(v)
}

func identifiable(rec *entity.CatalogRecord) bool {
	for _, f := range rec.Fields() {
		if !entity.IsAttributeField(f.Name) {
			return true
		}
	}
	return false
}

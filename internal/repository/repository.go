package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

// CatalogRepository stores catalog records.
type CatalogRepository interface {
	ListRecords(ctx context.Context) ([]entity.CatalogRecord, error)
	GetRecord(ctx context.Context, id int64) (*entity.CatalogRecord, error)
	FindByField(ctx context.Context, field, value string) (*entity.CatalogRecord, error)
	CreateRecord(ctx context.Context, rec *entity.CatalogRecord) error
	UpdateRecord(ctx context.Context, rec *entity.CatalogRecord) error
	CountRecords(ctx context.Context) (int, error)
}

// ConfirmationRepository stores operator-confirmed mappings. SaveConfirmation upserts on
// (text, record): the counter is incremented and the highest score is kept.
type ConfirmationRepository interface {
	LookupConfirmed(ctx context.Context, text string) (*entity.ConfirmedMapping, error)
	SaveConfirmation(ctx context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error)
	ListConfirmed(ctx context.Context) ([]entity.ConfirmedMapping, error)
}

// Store is a database-backed implementation of both repositories.
type Store interface {
	CatalogRepository
	ConfirmationRepository
	Ping(ctx context.Context) error
	Close() error
}

// recordColumns lists catalog_records columns after id and before the timestamps.
var recordColumns = []string{
	"article_agb", "article_bl", "code_1c", "code", "nomenclature_agb",
	"variant_1", "variant_2", "variant_3", "variant_4",
	"variant_5", "variant_6", "variant_7", "variant_8",
	"bortlanger", "epiroc", "almazgeobur", "competitors", "unit", "packaging",
}

var (
	selectRecord       = "SELECT id, " + strings.Join(recordColumns, ", ") + ", created_at, updated_at FROM catalog_records"
	selectConfirmation = "SELECT id, text, record_id, count, score, created_at, updated_at FROM confirmed_mappings"
)

// searchableColumns are the fields FindByField accepts; names equal column names.
var searchableColumns = map[string]bool{
	entity.FieldArticleAGB: true, entity.FieldArticleBL: true, entity.FieldCode1C: true,
	entity.FieldCode: true, entity.FieldNomenclatureAGB: true,
}

func checkSearchable(field string) error {
	if !searchableColumns[field] {
		return common.NewAppError("INVALID_INPUT", fmt.Sprintf("field %q is not searchable", field), common.ErrInvalidInput)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// recordValues are the bind values for recordColumns.
func recordValues(rec *entity.CatalogRecord) ([]any, error) {
	comp := rec.Competitors
	if comp == nil {
		comp = map[string]string{}
	}
	cj, err := json.Marshal(comp)
	if err != nil {
		return nil, fmt.Errorf("encode competitors: %w", err)
	}
	v := rec.Variants
	return []any{
		rec.ArticleAGB, rec.ArticleBL, rec.Code1C, rec.Code, rec.NomenclatureAGB,
		v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7],
		rec.Bortlanger, rec.Epiroc, rec.Almazgeobur, string(cj), rec.Unit, rec.Packaging,
	}, nil
}

// recordDest returns scan targets for id + recordColumns; competitors land in comp.
func recordDest(rec *entity.CatalogRecord, comp *string) []any {
	v := &rec.Variants
	return []any{
		&rec.ID,
		&rec.ArticleAGB, &rec.ArticleBL, &rec.Code1C, &rec.Code, &rec.NomenclatureAGB,
		&v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7],
		&rec.Bortlanger, &rec.Epiroc, &rec.Almazgeobur, comp, &rec.Unit, &rec.Packaging,
	}
}

func decodeCompetitors(rec *entity.CatalogRecord, raw string) error {
	rec.Competitors = nil
	if raw == "" || raw == "{}" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &rec.Competitors); err != nil {
		return fmt.Errorf("decode competitors of record %d: %w", rec.ID, err)
	}
	return nil
}

func notFound(what string, key any) error {
	return common.NewAppError("NOT_FOUND", fmt.Sprintf("%s %v not found", what, key), common.ErrNotFound)
}

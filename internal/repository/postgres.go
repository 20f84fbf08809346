package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore migrates the schema through the pool and returns the store.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := MigratePostgres(stdlib.OpenDBFromPool(pool)); err != nil {
		logger.Error("failed to migrate database", "error", err)
		return nil, err
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPGRecord(row rowScanner) (*entity.CatalogRecord, error) {
	var (
		rec  entity.CatalogRecord
		comp string
	)
	if err := row.Scan(append(recordDest(&rec, &comp), &rec.CreatedAt, &rec.UpdatedAt)...); err != nil {
		return nil, err
	}
	if err := decodeCompetitors(&rec, comp); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanPGConfirmation(row rowScanner) (*entity.ConfirmedMapping, error) {
	var m entity.ConfirmedMapping
	if err := row.Scan(&m.ID, &m.Text, &m.RecordID, &m.Count, &m.Score, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(ps, ", ")
}

func (s *PostgresStore) ListRecords(ctx context.Context) ([]entity.CatalogRecord, error) {
	rows, err := s.pool.Query(ctx, selectRecord+" ORDER BY id")
	if err != nil {
		s.logger.Error("failed to list catalog records", "error", err)
		return nil, err
	}
	defer rows.Close()
	var out []entity.CatalogRecord
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetRecord(ctx context.Context, id int64) (*entity.CatalogRecord, error) {
	rec, err := scanPGRecord(s.pool.QueryRow(ctx, selectRecord+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("catalog record", id)
	}
	return rec, err
}

func (s *PostgresStore) FindByField(ctx context.Context, field, value string) (*entity.CatalogRecord, error) {
	if err := checkSearchable(field); err != nil {
		return nil, err
	}
	rec, err := scanPGRecord(s.pool.QueryRow(ctx, selectRecord+" WHERE "+field+" = $1 ORDER BY id LIMIT 1", value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(field, value)
	}
	return rec, err
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *entity.CatalogRecord) error {
	vals, err := recordValues(rec)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO catalog_records(%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(recordColumns, ", "), placeholders(1, len(recordColumns)))
	if err := s.pool.QueryRow(ctx, query, vals...).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		s.logger.Error("failed to create catalog record", "article_agb", rec.ArticleAGB, "error", err)
		return err
	}
	return nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, rec *entity.CatalogRecord) error {
	vals, err := recordValues(rec)
	if err != nil {
		return err
	}
	sets := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		sets[i] = c + " = $" + strconv.Itoa(i+1)
	}
	query := fmt.Sprintf("UPDATE catalog_records SET %s, updated_at = now() WHERE id = $%d RETURNING updated_at",
		strings.Join(sets, ", "), len(recordColumns)+1)
	err = s.pool.QueryRow(ctx, query, append(vals, rec.ID)...).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("catalog record", rec.ID)
	}
	if err != nil {
		s.logger.Error("failed to update catalog record", "id", rec.ID, "error", err)
	}
	return err
}

func (s *PostgresStore) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM catalog_records").Scan(&n)
	return n, err
}

func (s *PostgresStore) LookupConfirmed(ctx context.Context, text string) (*entity.ConfirmedMapping, error) {
	m, err := scanPGConfirmation(s.pool.QueryRow(ctx,
		selectConfirmation+" WHERE text = $1 ORDER BY count DESC, id LIMIT 1", text))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("confirmation", text)
	}
	return m, err
}

func (s *PostgresStore) SaveConfirmation(ctx context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error) {
	m, err := scanPGConfirmation(s.pool.QueryRow(ctx, `
	INSERT INTO confirmed_mappings(text, record_id, count, score)
	VALUES ($1, $2, 1, $3)
	ON CONFLICT (text, record_id) DO UPDATE SET
	 count = confirmed_mappings.count + 1,
	 score = GREATEST(confirmed_mappings.score, excluded.score),
	 updated_at = now()
	RETURNING id, text, record_id, count, score, created_at, updated_at`,
		text, recordID, score))
	if err != nil {
		s.logger.Error("failed to save confirmation", "record_id", recordID, "error", err)
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) ListConfirmed(ctx context.Context) ([]entity.ConfirmedMapping, error) {
	rows, err := s.pool.Query(ctx, selectConfirmation+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entity.ConfirmedMapping
	for rows.Next() {
		m, err := scanPGConfirmation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

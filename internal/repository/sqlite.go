package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", "sqlite", "path", path)
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := MigrateSQLite(db); err != nil {
		_ = db.Close()
		logger.Error("failed to migrate database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database")
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func now() time.Time {
	return time.Now().UTC()
}

func scanSQLiteRecord(row rowScanner) (*entity.CatalogRecord, error) {
	var (
		rec              entity.CatalogRecord
		comp             string
		created, updated string
	)
	if err := row.Scan(append(recordDest(&rec, &comp), &created, &updated)...); err != nil {
		return nil, err
	}
	if err := decodeCompetitors(&rec, comp); err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
	rec.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updated)
	return &rec, nil
}

func scanSQLiteConfirmation(row rowScanner) (*entity.ConfirmedMapping, error) {
	var (
		m                entity.ConfirmedMapping
		created, updated string
	)
	if err := row.Scan(&m.ID, &m.Text, &m.RecordID, &m.Count, &m.Score, &created, &updated); err != nil {
		return nil, err
	}
	m.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
	m.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updated)
	return &m, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]entity.CatalogRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+" ORDER BY id")
	if err != nil {
		s.logger.Error("failed to list catalog records", "error", err)
		return nil, err
	}
	defer rows.Close()
	var out []entity.CatalogRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id int64) (*entity.CatalogRecord, error) {
	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, selectRecord+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("catalog record", id)
	}
	return rec, err
}

func (s *SQLiteStore) FindByField(ctx context.Context, field, value string) (*entity.CatalogRecord, error) {
	if err := checkSearchable(field); err != nil {
		return nil, err
	}
	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, selectRecord+" WHERE "+field+" = ? ORDER BY id LIMIT 1", value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(field, value)
	}
	return rec, err
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *entity.CatalogRecord) error {
	vals, err := recordValues(rec)
	if err != nil {
		return err
	}
	ts := now()
	query := "INSERT INTO catalog_records(" + strings.Join(recordColumns, ", ") + ", created_at, updated_at) VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(recordColumns)+2), ", ") + ")"
	res, err := s.db.ExecContext(ctx, query, append(vals, ts.Format(sqliteTimeLayout), ts.Format(sqliteTimeLayout))...)
	if err != nil {
		s.logger.Error("failed to create catalog record", "article_agb", rec.ArticleAGB, "error", err)
		return err
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	rec.CreatedAt, rec.UpdatedAt = ts, ts
	return nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, rec *entity.CatalogRecord) error {
	vals, err := recordValues(rec)
	if err != nil {
		return err
	}
	ts := now()
	sets := make([]string, 0, len(recordColumns)+1)
	for _, c := range recordColumns {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	res, err := s.db.ExecContext(ctx, "UPDATE catalog_records SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		append(vals, ts.Format(sqliteTimeLayout), rec.ID)...)
	if err != nil {
		s.logger.Error("failed to update catalog record", "id", rec.ID, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("catalog record", rec.ID)
	}
	rec.UpdatedAt = ts
	return nil
}

func (s *SQLiteStore) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_records").Scan(&n)
	return n, err
}

func (s *SQLiteStore) LookupConfirmed(ctx context.Context, text string) (*entity.ConfirmedMapping, error) {
	m, err := scanSQLiteConfirmation(s.db.QueryRowContext(ctx,
		selectConfirmation+" WHERE text = ? ORDER BY count DESC, id LIMIT 1", text))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("confirmation", text)
	}
	return m, err
}

func (s *SQLiteStore) SaveConfirmation(ctx context.Context, text string, recordID int64, score float64) (*entity.ConfirmedMapping, error) {
	ts := now().Format(sqliteTimeLayout)
	m, err := scanSQLiteConfirmation(s.db.QueryRowContext(ctx, `
	INSERT INTO confirmed_mappings(text, record_id, count, score, created_at, updated_at)
	VALUES (?, ?, 1, ?, ?, ?)
	ON CONFLICT(text, record_id) DO UPDATE SET
	 count = count + 1,
	 score = max(score, excluded.score),
	 updated_at = excluded.updated_at
	RETURNING id, text, record_id, count, score, created_at, updated_at`,
		text, recordID, score, ts, ts))
	if err != nil {
		s.logger.Error("failed to save confirmation", "record_id", recordID, "error", err)
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) ListConfirmed(ctx context.Context) ([]entity.ConfirmedMapping, error) {
	rows, err := s.db.QueryContext(ctx, selectConfirmation+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entity.ConfirmedMapping
	for rows.Next() {
		m, err := scanSQLiteConfirmation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Package sqlite provides the SQLite-backed catalog store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sqlitemigrate "github.com/louisbranch/meteorfall/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/meteorfall/internal/services/catalog/storage"
	"github.com/louisbranch/meteorfall/internal/services/catalog/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const recordColumns = `id, name, year, mass, recclass, reclat, reclong`

// Store persists the catalog in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite catalog store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", classify(err))
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("ping: %w", storage.ErrUnavailable)
	}
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", classify(err))
	}
	return nil
}

// ListRecords returns one offset page ordered by (year, id).
func (s *Store) ListRecords(ctx context.Context, offset, limit int) ([]storage.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+recordColumns+`
		   FROM meteor_falls
		  ORDER BY year ASC, id ASC
		  LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", classify(err))
	}
	records, err := scanRecords(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListRecordsByYear returns every record of one year ordered by id.
func (s *Store) ListRecordsByYear(ctx context.Context, year int) ([]storage.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+recordColumns+`
		   FROM meteor_falls
		  WHERE year = ?
		  ORDER BY id ASC`,
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("list records by year: %w", classify(err))
	}
	records, err := scanRecords(rows, 0)
	if err != nil {
		return nil, fmt.Errorf("list records by year: %w", err)
	}
	return records, nil
}

// ListPartitionSummaries returns the maximum mass per year, ascending by year.
func (s *Store) ListPartitionSummaries(ctx context.Context) ([]storage.PartitionSummary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT year, MAX(mass)
		   FROM meteor_falls
		  GROUP BY year
		  ORDER BY year ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list partition summaries: %w", classify(err))
	}
	defer rows.Close()

	summaries := make([]storage.PartitionSummary, 0)
	for rows.Next() {
		var summary storage.PartitionSummary
		if err := rows.Scan(&summary.Year, &summary.MaxMass); err != nil {
			return nil, fmt.Errorf("list partition summaries: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list partition summaries: %w", classify(err))
	}
	return summaries, nil
}

// PutRecords inserts records, replacing any existing rows with the same id.
func (s *Store) PutRecords(ctx context.Context, records []storage.Record) error {
	return s.writeRecords(ctx, records, false)
}

// ReplaceRecords swaps the whole catalog for records in one transaction.
func (s *Store) ReplaceRecords(ctx context.Context, records []storage.Record) error {
	return s.writeRecords(ctx, records, true)
}

func (s *Store) writeRecords(ctx context.Context, records []storage.Record, clear bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", record.ID, err)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if clear {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meteor_falls`); err != nil {
			return fmt.Errorf("clear records: %w", classify(err))
		}
	}
	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT OR REPLACE INTO meteor_falls (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", classify(err))
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(
			ctx,
			record.ID,
			record.Name,
			record.Year,
			record.Mass,
			nullString(record.Class),
			nullFloat(record.Lat),
			nullFloat(record.Long),
		); err != nil {
			return fmt.Errorf("insert record %d: %w", record.ID, classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", classify(err))
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}
	return nil
}

func scanRecords(rows *sql.Rows, capacity int) ([]storage.Record, error) {
	defer rows.Close()

	records := make([]storage.Record, 0, capacity)
	for rows.Next() {
		var (
			record storage.Record
			class  sql.NullString
			lat    sql.NullFloat64
			long   sql.NullFloat64
		)
		if err := rows.Scan(
			&record.ID,
			&record.Name,
			&record.Year,
			&record.Mass,
			&class,
			&lat,
			&long,
		); err != nil {
			return nil, err
		}
		if class.Valid {
			record.Class = &class.String
		}
		if lat.Valid {
			record.Lat = &lat.Float64
		}
		if long.Valid {
			record.Long = &long.Float64
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

// classify tags connectivity-class failures with storage.ErrUnavailable so
// callers can tell "store down" from "query wrong".
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY,
			sqlite3lib.SQLITE_LOCKED,
			sqlite3lib.SQLITE_IOERR,
			sqlite3lib.SQLITE_CANTOPEN,
			sqlite3lib.SQLITE_NOTADB:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "database is closed")
}

var (
	_ storage.RecordReader   = (*Store)(nil)
	_ storage.PartitionIndex = (*Store)(nil)
	_ storage.RecordWriter   = (*Store)(nil)
)

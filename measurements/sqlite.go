package measurements

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/krillmap/dashboard/internal/period"
)

// SQLiteSource loads periods from a single-file SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens the database at path with one shared connection.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return &SQLiteSource{db: db}, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func (s *SQLiteSource) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteSource) Load(ctx context.Context, p period.Period) (*Dataset, error) {
	rows, err := s.db.QueryContext(ctx, selectPeriodSQL("?", "?"), p.Year, int(p.Month))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Key(), err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.Key(), err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Key(), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, p)
	}
	return NewDataset(p, records), nil
}

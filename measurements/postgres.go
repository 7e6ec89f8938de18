package measurements

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krillmap/dashboard/internal/period"
)

// PostgresSource loads periods from a PostgreSQL measurements table.
type PostgresSource struct {
	db *pgxpool.Pool
}

func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

// EnsureSchema creates the measurements table when it does not exist yet.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresSource) Load(ctx context.Context, p period.Period) (*Dataset, error) {
	rows, err := s.db.Query(ctx, selectPeriodSQL("$1", "$2"), p.Year, int(p.Month))
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

package measurements

import (
	"math"
	"strings"
)

// Database sources read pre-ingested rows from a "measurements" table. The
// dashboard only ever selects from it; rows are loaded by external tooling.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS measurements (
            id BIGSERIAL PRIMARY KEY,
            year INTEGER NOT NULL,
            month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
            latitude DOUBLE PRECISION NOT NULL,
            longitude DOUBLE PRECISION NOT NULL,
            krill DOUBLE PRECISION,
            sss DOUBLE PRECISION,
            sst DOUBLE PRECISION,
            zos DOUBLE PRECISION,
            chl DOUBLE PRECISION,
            u DOUBLE PRECISION,
            v DOUBLE PRECISION
        )`,
	`CREATE INDEX IF NOT EXISTS measurements_period_idx ON measurements (year, month)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS measurements (
            id INTEGER PRIMARY KEY,
            year INTEGER NOT NULL,
            month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
            latitude REAL NOT NULL,
            longitude REAL NOT NULL,
            krill REAL,
            sss REAL,
            sst REAL,
            zos REAL,
            chl REAL,
            u REAL,
            v REAL
        )`,
	`CREATE INDEX IF NOT EXISTS measurements_period_idx ON measurements (year, month)`,
}

// fieldColumns follows SourceFields order.
var fieldColumns = []string{"krill", "sss", "sst", "zos", "chl", "u", "v"}

func selectPeriodSQL(yearParam, monthParam string) string {
	return `SELECT latitude, longitude, ` + strings.Join(fieldColumns, ", ") + `
        FROM measurements
        WHERE year = ` + yearParam + ` AND month = ` + monthParam + `
        ORDER BY id`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	vals := make([]*float64, len(fieldColumns))
	dest := make([]any, 0, 2+len(vals))
	dest = append(dest, &rec.Latitude, &rec.Longitude)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	for i, f := range SourceFields {
		v := math.NaN()
		if vals[i] != nil {
			v = *vals[i]
		}
		rec.set(f, v)
	}
	return rec, nil
}

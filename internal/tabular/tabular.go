// Package tabular reads the delimited files shipped with the dashboard data:
// one header row, then one sample per line, columns addressed by name.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Column aliases shared by measurement and zone point files.
var (
	LatitudeColumns  = []string{"latitud", "latitude", "lat"}
	LongitudeColumns = []string{"longitud", "longitude", "lon", "lng"}
)

// Reader walks a header-led CSV stream row by row.
type Reader struct {
	csv   *csv.Reader
	index map[string]int
	row   []string
	line  int
	err   error
}

func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	return &Reader{csv: cr, index: index, line: 1}, nil
}

// Column returns the position of the first alias present in the header.
func (t *Reader) Column(aliases ...string) (int, bool) {
	for _, alias := range aliases {
		if i, ok := t.index[strings.ToLower(alias)]; ok {
			return i, true
		}
	}
	return -1, false
}

func (t *Reader) Next() bool {
	if t.err != nil {
		return false
	}
	row, err := t.csv.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			t.err = fmt.Errorf("line %d: %w", t.line+1, err)
		}
		return false
	}
	t.line++
	t.row = row
	return true
}

func (t *Reader) Err() error { return t.err }

// Float parses the cell at col. Absent columns and blank cells read as NaN.
func (t *Reader) Float(col int) (float64, error) {
	if col < 0 || col >= len(t.row) {
		return math.NaN(), nil
	}
	cell := strings.TrimSpace(t.row[col])
	if cell == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d column %d: invalid number %q", t.line, col+1, cell)
	}
	return v, nil
}

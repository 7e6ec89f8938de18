package measurements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"

	"github.com/krillmap/dashboard/internal/period"
	"github.com/krillmap/dashboard/internal/tabular"
)

// CSVSource reads "<year>-<month>.csv" files from a directory tree.
type CSVSource struct {
	fsys fs.FS
}

func NewCSVSource(fsys fs.FS) *CSVSource {
	return &CSVSource{fsys: fsys}
}

func (s *CSVSource) Load(_ context.Context, p period.Period) (*Dataset, error) {
	name := p.Key() + ".csv"
	f, err := s.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s", ErrNoData, p)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	records, err := DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, p)
	}
	return NewDataset(p, records), nil
}

// DecodeCSV parses a measurement table. Latitude and longitude columns are
// required; any missing field column reads as NaN for every row.
func DecodeCSV(r io.Reader) ([]Record, error) {
	t, err := tabular.NewReader(r)
	if err != nil {
		return nil, err
	}

	latCol, ok := t.Column(tabular.LatitudeColumns...)
	if !ok {
		return nil, errors.New("missing latitude column")
	}
	lonCol, ok := t.Column(tabular.LongitudeColumns...)
	if !ok {
		return nil, errors.New("missing longitude column")
	}

	fieldCols := make([]int, len(SourceFields))
	for i, f := range SourceFields {
		fieldCols[i], _ = t.Column(string(f))
	}

	var records []Record
	for t.Next() {
		var rec Record
		if rec.Latitude, err = t.Float(latCol); err != nil {
			return nil, err
		}
		if rec.Longitude, err = t.Float(lonCol); err != nil {
			return nil, err
		}
		if math.IsNaN(rec.Latitude) || math.IsNaN(rec.Longitude) {
			continue
		}
		for i, f := range SourceFields {
			v, err := t.Float(fieldCols[i])
			if err != nil {
				return nil, err
			}
			rec.set(f, v)
		}
		records = append(records, rec)
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

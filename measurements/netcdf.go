package measurements

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/krillmap/dashboard/internal/period"
)

// NetCDFSource reads gridded "<year>-<month>.nc" files: 1-D latitude and
// longitude axes plus one (lat × lon) variable per field, optionally with a
// leading time axis of which only the first step is used.
type NetCDFSource struct {
	dir string
}

func NewNetCDFSource(dir string) *NetCDFSource {
	return &NetCDFSource{dir: dir}
}

func (s *NetCDFSource) Load(_ context.Context, p period.Period) (*Dataset, error) {
	path := filepath.Join(s.dir, p.Key()+".nc")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s", ErrNoData, p)
		}
		return nil, err
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	present := make(map[string]struct{})
	for _, name := range nc.ListVariables() {
		present[name] = struct{}{}
	}

	lat, err := axisValues(nc, present, "latitude", "lat")
	if err != nil {
		return nil, err
	}
	lon, err := axisValues(nc, present, "longitude", "lon")
	if err != nil {
		return nil, err
	}

	grids := make(map[Field][][]float64, len(SourceFields))
	for _, f := range SourceFields {
		if _, ok := present[string(f)]; !ok {
			continue
		}
		vg, err := nc.GetVarGetter(string(f))
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", f, err)
		}
		raw, err := vg.Values()
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", f, err)
		}
		g, err := toGrid(raw, packingOf(vg.Attributes()))
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", f, err)
		}
		if len(g) != len(lat) {
			return nil, fmt.Errorf("variable %s: %d rows for %d latitudes", f, len(g), len(lat))
		}
		for _, row := range g {
			if len(row) != len(lon) {
				return nil, fmt.Errorf("variable %s: %d columns for %d longitudes", f, len(row), len(lon))
			}
		}
		grids[f] = g
	}

	records := gridRecords(lat, lon, grids)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, p)
	}
	return NewDataset(p, records), nil
}

func axisValues(nc api.Group, present map[string]struct{}, names ...string) ([]float64, error) {
	for _, name := range names {
		if _, ok := present[name]; !ok {
			continue
		}
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, err
		}
		raw, err := vg.Values()
		if err != nil {
			return nil, err
		}
		return toAxis(raw, packingOf(vg.Attributes()))
	}
	return nil, fmt.Errorf("missing %s axis", names[0])
}

// gridRecords flattens row-major grids into records, dropping cells where
// every present field is missing (land mask) or a coordinate is missing.
func gridRecords(lat, lon []float64, grids map[Field][][]float64) []Record {
	records := make([]Record, 0, len(lat)*len(lon))
	for i, la := range lat {
		if math.IsNaN(la) {
			continue
		}
		for j, lo := range lon {
			if math.IsNaN(lo) {
				continue
			}
			rec := Record{Latitude: la, Longitude: lo}
			for _, f := range SourceFields {
				rec.set(f, math.NaN())
			}
			valid := len(grids) == 0
			for f, g := range grids {
				v := g[i][j]
				rec.set(f, v)
				if !math.IsNaN(v) {
					valid = true
				}
			}
			if valid {
				records = append(records, rec)
			}
		}
	}
	return records
}

// packing holds the CF conventions attributes applied to stored values.
type packing struct {
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

func packingOf(attrs api.AttributeMap) packing {
	p := packing{scale: 1}
	if attrs == nil {
		return p
	}
	if v, ok := attrs.Get("scale_factor"); ok {
		if f, ok := attrFloat(v); ok {
			p.scale = f
		}
	}
	if v, ok := attrs.Get("add_offset"); ok {
		if f, ok := attrFloat(v); ok {
			p.offset = f
		}
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrs.Get(key); ok {
			if f, ok := attrFloat(v); ok {
				p.fill, p.hasFill = f, true
				break
			}
		}
	}
	return p
}

func (p packing) apply(raw float64) float64 {
	if p.hasFill && raw == p.fill {
		return math.NaN()
	}
	return raw*p.scale + p.offset
}

func attrFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case []float64:
		if len(x) == 1 {
			return x[0], true
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~float32 | ~float64
}

func axis[T number](v []T, p packing) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = p.apply(float64(x))
	}
	return out
}

func grid[T number](v [][]T, p packing) [][]float64 {
	out := make([][]float64, len(v))
	for i, row := range v {
		out[i] = axis(row, p)
	}
	return out
}

func firstStep[T number](v [][][]T, p packing) ([][]float64, error) {
	if len(v) == 0 {
		return nil, errors.New("empty time axis")
	}
	return grid(v[0], p), nil
}

func toAxis(raw any, p packing) ([]float64, error) {
	switch v := raw.(type) {
	case []float32:
		return axis(v, p), nil
	case []float64:
		return axis(v, p), nil
	case []int16:
		return axis(v, p), nil
	case []int32:
		return axis(v, p), nil
	}
	return nil, fmt.Errorf("unsupported axis type %T", raw)
}

func toGrid(raw any, p packing) ([][]float64, error) {
	switch v := raw.(type) {
	case [][]float32:
		return grid(v, p), nil
	case [][]float64:
		return grid(v, p), nil
	case [][]int16:
		return grid(v, p), nil
	case [][]int32:
		return grid(v, p), nil
	case [][][]float32:
		return firstStep(v, p)
	case [][][]float64:
		return firstStep(v, p)
	case [][][]int16:
		return firstStep(v, p)
	case [][][]int32:
		return firstStep(v, p)
	}
	return nil, fmt.Errorf("unsupported grid type %T", raw)
}

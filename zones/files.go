package zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"

	"github.com/krillmap/dashboard/internal/tabular"
)

// FeatureCollection is the subset of GeoJSON inspected before a boundary
// document is handed to the map unchanged.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Boundary is a validated GeoJSON document. Raw keeps the original bytes so
// every geometry and property reaches the renderer.
type Boundary struct {
	Raw      json.RawMessage
	Features int
}

// Point is one marker of a point zone.
type Point struct {
	Latitude  float64
	Longitude float64
}

func readBoundary(fsys fs.FS, name string) (Boundary, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return Boundary{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Boundary{}, err
	}
	return decodeBoundary(data)
}

func decodeBoundary(data []byte) (Boundary, error) {
	var doc FeatureCollection
	if err := json.Unmarshal(data, &doc); err != nil {
		return Boundary{}, fmt.Errorf("invalid geojson: %w", err)
	}
	switch doc.Type {
	case "FeatureCollection":
		for i, f := range doc.Features {
			if f.Type != "Feature" {
				return Boundary{}, fmt.Errorf("invalid geojson: feature %d has type %q", i, f.Type)
			}
		}
		return Boundary{Raw: json.RawMessage(data), Features: len(doc.Features)}, nil
	case "Feature":
		return Boundary{Raw: json.RawMessage(data), Features: 1}, nil
	default:
		return Boundary{}, fmt.Errorf("invalid geojson: unsupported type %q", doc.Type)
	}
}

func readPoints(fsys fs.FS, name string) ([]Point, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodePoints(f)
}

func decodePoints(r io.Reader) ([]Point, error) {
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

	var points []Point
	for t.Next() {
		lat, err := t.Float(latCol)
		if err != nil {
			return nil, err
		}
		lon, err := t.Float(lonCol)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(lat) || math.IsNaN(lon) {
			continue
		}
		points = append(points, Point{Latitude: lat, Longitude: lon})
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

package zones

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnknownZone is returned for identifiers with no descriptor.
	ErrUnknownZone = errors.New("unknown zone")
	// ErrWrongKind is returned when boundary data is requested for a point
	// zone or the other way round.
	ErrWrongKind = errors.New("zone kind mismatch")
)

// Kind selects how a zone renders.
type Kind string

const (
	KindBoundary Kind = "boundary"
	KindPoint    Kind = "point"
)

// Descriptor is the static rendering recipe for one zone overlay.
type Descriptor struct {
	ID           string  `yaml:"id" json:"id"`
	Label        string  `yaml:"label" json:"label"`
	Kind         Kind    `yaml:"kind" json:"kind"`
	File         string  `yaml:"file" json:"-"`
	Color        string  `yaml:"color,omitempty" json:"color,omitempty"`
	Opacity      float64 `yaml:"opacity,omitempty" json:"opacity,omitempty"`
	OutlineColor string  `yaml:"outline_color,omitempty" json:"outline_color,omitempty"`
	MarkerSize   int     `yaml:"marker_size,omitempty" json:"marker_size,omitempty"`
	MarkerSymbol string  `yaml:"marker_symbol,omitempty" json:"marker_symbol,omitempty"`
}

// Defaults is the zone table shipped with the dashboard data directory.
var Defaults = []Descriptor{
	{
		ID:           "protected-zone",
		Label:        "Protected zones",
		Kind:         KindBoundary,
		File:         "protected.json",
		Color:        "yellow",
		Opacity:      0.3,
		OutlineColor: "grey",
	},
	{
		ID:           "management-zone",
		Label:        "Management zones",
		Kind:         KindBoundary,
		File:         "ssmu.geojson",
		Color:        "purple",
		Opacity:      0.3,
		OutlineColor: "grey",
	},
	{
		ID:           "restricted-zone",
		Label:        "Restricted zones",
		Kind:         KindBoundary,
		File:         "restricted.json",
		Color:        "red",
		Opacity:      0.3,
		OutlineColor: "red",
	},
	{
		ID:           "ecosystem-zone",
		Label:        "Vulnerable marine ecosystems",
		Kind:         KindPoint,
		File:         "vulnerable_marine_ecosystems.csv",
		MarkerSize:   15,
		MarkerSymbol: "star",
	},
}

// Registry resolves zone identifiers and loads their backing files from a
// read-only filesystem. Parsed files are memoized per zone.
type Registry struct {
	fsys       fs.FS
	order      []Descriptor
	byID       map[string]Descriptor
	boundaries *lru.Cache[string, Boundary]
	points     *lru.Cache[string, []Point]
	flight     singleflight.Group
}

func NewRegistry(fsys fs.FS, descriptors []Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		descriptors = Defaults
	}

	byID := make(map[string]Descriptor, len(descriptors))
	order := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, errors.New("zone id is required")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate zone %q", d.ID)
		}
		if strings.TrimSpace(d.File) == "" {
			return nil, fmt.Errorf("zone %q: file is required", d.ID)
		}
		switch d.Kind {
		case KindBoundary:
		case KindPoint:
			if d.MarkerSize == 0 {
				d.MarkerSize = 15
			}
			if d.MarkerSymbol == "" {
				d.MarkerSymbol = "star"
			}
		default:
			return nil, fmt.Errorf("zone %q: unsupported kind %q", d.ID, d.Kind)
		}
		if d.Label == "" {
			d.Label = d.ID
		}
		byID[d.ID] = d
		order = append(order, d)
	}

	boundaries, err := lru.New[string, Boundary](len(order))
	if err != nil {
		return nil, err
	}
	points, err := lru.New[string, []Point](len(order))
	if err != nil {
		return nil, err
	}

	return &Registry{
		fsys:       fsys,
		order:      order,
		byID:       byID,
		boundaries: boundaries,
		points:     points,
	}, nil
}

// Descriptors lists zones in configuration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Lookup(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownZone, id)
	}
	return d, nil
}

// Boundary returns the GeoJSON document behind a boundary zone.
func (r *Registry) Boundary(id string) (Boundary, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return Boundary{}, err
	}
	if d.Kind != KindBoundary {
		return Boundary{}, fmt.Errorf("%w: %q is a %s zone", ErrWrongKind, id, d.Kind)
	}
	if b, ok := r.boundaries.Get(id); ok {
		return b, nil
	}

	v, err, _ := r.flight.Do("boundary:"+id, func() (any, error) {
		b, err := readBoundary(r.fsys, d.File)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", id, err)
		}
		r.boundaries.Add(id, b)
		return b, nil
	})
	if err != nil {
		return Boundary{}, err
	}
	return v.(Boundary), nil
}

// Points returns the marker coordinates behind a point zone.
func (r *Registry) Points(id string) ([]Point, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	if d.Kind != KindPoint {
		return nil, fmt.Errorf("%w: %q is a %s zone", ErrWrongKind, id, d.Kind)
	}
	if p, ok := r.points.Get(id); ok {
		return p, nil
	}

	v, err, _ := r.flight.Do("points:"+id, func() (any, error) {
		p, err := readPoints(r.fsys, d.File)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", id, err)
		}
		r.points.Add(id, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Point), nil
}

package zones

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

const protectedGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"MPA 1"},"geometry":{"type":"Polygon","coordinates":[[[-60,-62],[-58,-62],[-58,-61],[-60,-62]]]}}
]}`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"protected.json":                   {Data: []byte(protectedGeoJSON)},
		"ssmu.geojson":                     {Data: []byte(`{"type":"FeatureCollection","features":[]}`)},
		"restricted.json":                  {Data: []byte(`{"type":"Topology"}`)},
		"vulnerable_marine_ecosystems.csv": {Data: []byte("Latitud,Longitud\n-62.1,-58.9\n,-57\n-63.5,-60.2\n")},
	}
}

type countingFS struct {
	fstest.MapFS
	opens map[string]int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens[name]++
	return c.MapFS.Open(name)
}

func TestDefaultsResolve(t *testing.T) {
	r, err := NewRegistry(testFS(), nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	want := map[string]Kind{
		"protected-zone":  KindBoundary,
		"management-zone": KindBoundary,
		"restricted-zone": KindBoundary,
		"ecosystem-zone":  KindPoint,
	}
	for id, kind := range want {
		d, err := r.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", id, err)
		}
		if d.Kind != kind {
			t.Errorf("%s kind = %s, want %s", id, d.Kind, kind)
		}
	}
	if len(r.Descriptors()) != len(Defaults) {
		t.Fatalf("descriptor count = %d", len(r.Descriptors()))
	}
	if _, err := r.Lookup("fishing-zone"); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("expected ErrUnknownZone, got %v", err)
	}
}

func TestBoundaryLoadsOnce(t *testing.T) {
	fsys := &countingFS{MapFS: testFS(), opens: map[string]int{}}
	r, err := NewRegistry(fsys, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for i := 0; i < 3; i++ {
		b, err := r.Boundary("protected-zone")
		if err != nil {
			t.Fatalf("Boundary: %v", err)
		}
		if b.Features != 1 || !strings.Contains(string(b.Raw), "MPA 1") {
			t.Fatalf("unexpected boundary %+v", b)
		}
	}
	if fsys.opens["protected.json"] != 1 {
		t.Fatalf("protected.json opened %d times, want 1", fsys.opens["protected.json"])
	}
}

func TestBoundaryErrors(t *testing.T) {
	r, _ := NewRegistry(testFS(), nil)
	if _, err := r.Boundary("restricted-zone"); err == nil || !strings.Contains(err.Error(), "Topology") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
	if _, err := r.Boundary("ecosystem-zone"); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}

	missing, _ := NewRegistry(fstest.MapFS{}, nil)
	if _, err := missing.Boundary("protected-zone"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestPoints(t *testing.T) {
	r, _ := NewRegistry(testFS(), nil)
	pts, err := r.Points("ecosystem-zone")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("expected 2 points (blank latitude skipped), got %d", len(pts))
	}
	if pts[1] != (Point{Latitude: -63.5, Longitude: -60.2}) {
		t.Fatalf("unexpected point %+v", pts[1])
	}
	if _, err := r.Points("protected-zone"); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	cases := [][]Descriptor{
		{{ID: "", Kind: KindBoundary, File: "a.json"}},
		{{ID: "a", Kind: KindBoundary, File: "a.json"}, {ID: "a", Kind: KindPoint, File: "b.csv"}},
		{{ID: "a", Kind: "heatmap", File: "a.json"}},
		{{ID: "a", Kind: KindPoint}},
	}
	for i, c := range cases {
		if _, err := NewRegistry(fstest.MapFS{}, c); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}

	r, err := NewRegistry(fstest.MapFS{}, []Descriptor{{ID: "vme", Kind: KindPoint, File: "v.csv"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	d, _ := r.Lookup("vme")
	if d.MarkerSize != 15 || d.MarkerSymbol != "star" || d.Label != "vme" {
		t.Fatalf("point defaults not applied: %+v", d)
	}
}

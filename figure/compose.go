package figure

import (
	"fmt"
	"strings"

	"github.com/krillmap/dashboard/measurements"
	"github.com/krillmap/dashboard/zones"
)

// Style selects the base map.
type Style string

const (
	StyleSimple    Style = "simple"
	StyleSatellite Style = "satellite"
)

// ParseStyle maps a request value onto a style. Blank input yields fallback
// and anything other than "satellite" renders the simple map.
func ParseStyle(raw string, fallback Style) Style {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback
	case string(StyleSatellite):
		return StyleSatellite
	default:
		return StyleSimple
	}
}

const (
	mapboxStyleOutdoors = "outdoors"
	mapboxStyleBlank    = "white-bg"
)

// Basemap is the raster tile service drawn under the satellite style.
type Basemap struct {
	TileURL     string `yaml:"tile_url"`
	Attribution string `yaml:"attribution"`
}

var USGSImagery = Basemap{
	TileURL:     "https://basemap.nationalmap.gov/arcgis/rest/services/USGSImageryOnly/MapServer/tile/{z}/{y}/{x}",
	Attribution: "United States Geological Survey",
}

// View is the camera every figure opens with.
type View struct {
	Center LatLon
	Zoom   float64
	Bounds Bounds
	Height int
}

// DefaultView frames the Antarctic Peninsula and Scotia Sea.
var DefaultView = View{
	Center: LatLon{Lat: -60.8416, Lon: -55.4433},
	Zoom:   6,
	Bounds: Bounds{West: -100, East: -18, South: -70, North: -40},
	Height: 600,
}

// ZoneSource resolves zone overlays. *zones.Registry satisfies it.
type ZoneSource interface {
	Lookup(id string) (zones.Descriptor, error)
	Boundary(id string) (zones.Boundary, error)
	Points(id string) ([]zones.Point, error)
}

type Config struct {
	AccessToken string
	View        View
	Basemap     Basemap
}

// Selection is what the user asked to see.
type Selection struct {
	Layers []measurements.Field
	Style  Style
	Zones  []string
}

// Composer turns a dataset and a selection into a figure. It holds no
// per-request state and is safe for concurrent use.
type Composer struct {
	zones ZoneSource
	cfg   Config
}

func NewComposer(z ZoneSource, cfg Config) *Composer {
	if cfg.View == (View{}) {
		cfg.View = DefaultView
	}
	if cfg.Basemap.TileURL == "" {
		cfg.Basemap = USGSImagery
	}
	return &Composer{zones: z, cfg: cfg}
}

// Compose builds the figure for ds. A nil or empty dataset still yields a
// complete layout with empty density traces.
func (c *Composer) Compose(ds *measurements.Dataset, sel Selection) (*Figure, error) {
	fields := sel.Layers
	if len(fields) == 0 {
		fields = DefaultLayers
	}
	if len(fields) > MaxLayers {
		return nil, fmt.Errorf("%w: %d requested, at most %d", ErrTooManyLayers, len(fields), MaxLayers)
	}
	for _, f := range fields {
		if _, ok := Palettes[f]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, f)
		}
	}

	mapbox, err := c.baseMap(sel.Style)
	if err != nil {
		return nil, err
	}

	traces := make([]Trace, 0, len(fields)+len(sel.Zones))
	lat := Series(ds.Latitudes())
	lon := Series(ds.Longitudes())
	custom := ds.Attributes()
	for i, f := range fields {
		z, err := ds.Column(f)
		if err != nil {
			return nil, err
		}
		y, length, _ := ColorBarPlacement(i, len(fields))
		traces = append(traces, Trace{
			Type:       TraceDensity,
			Name:       string(f),
			Lat:        lat,
			Lon:        lon,
			Z:          Series(z),
			Colorscale: Palettes[f],
			Radius:     25,
			Opacity:    0.6,
			LegendRank: i + 1,
			HoverInfo:  "lon+lat",
			ColorBar: &ColorBar{
				X:        1,
				Y:        y,
				Len:      length,
				Title:    Title{Text: string(f)},
				TickFont: Font{Size: 16},
			},
			CustomData: custom,
			Field:      f,
		})
	}

	seen := make(map[string]struct{}, len(sel.Zones))
	for _, id := range sel.Zones {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		d, err := c.zones.Lookup(id)
		if err != nil {
			return nil, err
		}
		switch d.Kind {
		case zones.KindBoundary:
			b, err := c.zones.Boundary(id)
			if err != nil {
				return nil, err
			}
			mapbox.Layers = append(mapbox.Layers, boundaryLayer(d, b))
		case zones.KindPoint:
			pts, err := c.zones.Points(id)
			if err != nil {
				return nil, err
			}
			traces = append(traces, pointTrace(d, pts))
		}
	}

	return &Figure{
		Data: traces,
		Layout: Layout{
			Height: c.cfg.View.Height,
			Mapbox: mapbox,
		},
	}, nil
}

func (c *Composer) baseMap(style Style) (Mapbox, error) {
	// outdoors is a hosted vector style too, so a configured token is always
	// sent. Only the raster base refuses to render without one.
	m := Mapbox{
		Style:       mapboxStyleOutdoors,
		AccessToken: c.cfg.AccessToken,
		Center:      c.cfg.View.Center,
		Zoom:        c.cfg.View.Zoom,
		Bounds:      c.cfg.View.Bounds,
		Layers:      []MapLayer{},
	}
	if style != StyleSatellite {
		return m, nil
	}
	if c.cfg.AccessToken == "" {
		return Mapbox{}, ErrAccessTokenRequired
	}
	m.Style = mapboxStyleBlank
	m.Layers = append(m.Layers, MapLayer{
		Below:             "traces",
		SourceType:        "raster",
		SourceAttribution: c.cfg.Basemap.Attribution,
		Source:            []string{c.cfg.Basemap.TileURL},
	})
	return m, nil
}

func boundaryLayer(d zones.Descriptor, b zones.Boundary) MapLayer {
	return MapLayer{
		Below:      "traces",
		SourceType: "geojson",
		Source:     b.Raw,
		Type:       "fill",
		Color:      d.Color,
		Opacity:    d.Opacity,
		Fill:       &Fill{OutlineColor: d.OutlineColor},
		Zone:       d.ID,
	}
}

func pointTrace(d zones.Descriptor, pts []zones.Point) Trace {
	lat := make(Series, len(pts))
	lon := make(Series, len(pts))
	for i, p := range pts {
		lat[i] = p.Latitude
		lon[i] = p.Longitude
	}
	return Trace{
		Type:   TraceScatter,
		Name:   d.Label,
		Lat:    lat,
		Lon:    lon,
		Mode:   "markers",
		Marker: &Marker{Size: d.MarkerSize, Symbol: d.MarkerSymbol},
		Zone:   d.ID,
	}
}

package figure

import (
	"math"
	"strconv"

	"github.com/krillmap/dashboard/measurements"
)

// Figure is a plotly mapbox figure: traces in draw order plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Series encodes missing readings as null so the browser skips them.
type Series []float64

func (s Series) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 2+len(s)*8)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

const (
	TraceDensity = "densitymapbox"
	TraceScatter = "scattermapbox"
)

type Trace struct {
	Type       string                    `json:"type"`
	Name       string                    `json:"name"`
	Lat        Series                    `json:"lat"`
	Lon        Series                    `json:"lon"`
	Z          Series                    `json:"z,omitempty"`
	Mode       string                    `json:"mode,omitempty"`
	Marker     *Marker                   `json:"marker,omitempty"`
	Colorscale string                    `json:"colorscale,omitempty"`
	Radius     int                       `json:"radius,omitempty"`
	Opacity    float64                   `json:"opacity,omitempty"`
	LegendRank int                       `json:"legendrank,omitempty"`
	HoverInfo  string                    `json:"hoverinfo,omitempty"`
	ColorBar   *ColorBar                 `json:"colorbar,omitempty"`
	CustomData []measurements.Attributes `json:"customdata,omitempty"`

	// Field is set on density traces, Zone on zone point traces.
	Field measurements.Field `json:"-"`
	Zone  string             `json:"-"`
}

type Marker struct {
	Size   int    `json:"size"`
	Symbol string `json:"symbol"`
}

type ColorBar struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Len      float64 `json:"len"`
	Title    Title   `json:"title"`
	TickFont Font    `json:"tickfont"`
}

type Title struct {
	Text string `json:"text"`
}

type Font struct {
	Size int `json:"size"`
}

type Layout struct {
	Margin Margin `json:"margin"`
	Height int    `json:"height"`
	Mapbox Mapbox `json:"mapbox"`
}

type Margin struct {
	R int `json:"r"`
	T int `json:"t"`
	L int `json:"l"`
	B int `json:"b"`
}

type Mapbox struct {
	Style       string     `json:"style"`
	Center      LatLon     `json:"center"`
	Zoom        float64    `json:"zoom"`
	Bounds      Bounds     `json:"bounds"`
	AccessToken string     `json:"accesstoken,omitempty"`
	Layers      []MapLayer `json:"layers"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Bounds struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// MapLayer is a mapbox layer drawn below the traces. Source holds tile URLs
// for raster layers and a GeoJSON document for fill layers.
type MapLayer struct {
	Below             string  `json:"below,omitempty"`
	SourceType        string  `json:"sourcetype,omitempty"`
	SourceAttribution string  `json:"sourceattribution,omitempty"`
	Source            any     `json:"source,omitempty"`
	Type              string  `json:"type,omitempty"`
	Color             string  `json:"color,omitempty"`
	Opacity           float64 `json:"opacity,omitempty"`
	Fill              *Fill   `json:"fill,omitempty"`

	Zone string `json:"-"`
}

type Fill struct {
	OutlineColor string `json:"outlinecolor,omitempty"`
}

func (l MapLayer) IsRaster() bool {
	return l.SourceType == "raster"
}

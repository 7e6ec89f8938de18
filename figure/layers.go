package figure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/krillmap/dashboard/measurements"
)

var (
	ErrUnknownLayer        = errors.New("unknown data layer")
	ErrTooManyLayers       = errors.New("too many data layers")
	ErrAccessTokenRequired = errors.New("basemap access token required")
)

// AllLayers is the selection value that expands to DefaultLayers.
const AllLayers = "all"

// MaxLayers is the largest stack the colorbar offset table covers.
const MaxLayers = 4

var DefaultLayers = []measurements.Field{
	measurements.FieldTemperature,
	measurements.FieldKrill,
}

// Palettes maps every renderable field to a plotly colorscale.
var Palettes = map[measurements.Field]string{
	measurements.FieldTemperature:      "thermal",
	measurements.FieldKrill:            "darkmint",
	measurements.FieldCurrentSpeed:     "redor",
	measurements.FieldSalinity:         "haline",
	measurements.FieldSeaSurfaceHeight: "deep",
	measurements.FieldChlorophyll:      "algae",
}

// Option is one entry of a UI selector.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var LayerOptions = []Option{
	{Value: AllLayers, Label: "All"},
	{Value: string(measurements.FieldKrill), Label: "Krill"},
	{Value: string(measurements.FieldTemperature), Label: "Surface Temperature"},
	{Value: string(measurements.FieldSalinity), Label: "Surface Salinity"},
	{Value: string(measurements.FieldSeaSurfaceHeight), Label: "Sea Surface Height"},
	{Value: string(measurements.FieldChlorophyll), Label: "Chlorophyll"},
	{Value: string(measurements.FieldCurrentSpeed), Label: "Current Speed"},
}

var StyleOptions = []Option{
	{Value: string(StyleSimple), Label: "Simple"},
	{Value: string(StyleSatellite), Label: "Bathymetry"},
}

// ParseLayers resolves a layer selection: "all" (or nothing), one field
// name, or a comma separated list of field names.
func ParseLayers(raw string) ([]measurements.Field, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, AllLayers) {
		return append([]measurements.Field(nil), DefaultLayers...), nil
	}

	seen := make(map[measurements.Field]struct{})
	var out []measurements.Field
	for _, part := range strings.Split(trimmed, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		f, ok := lookupLayer(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		return append([]measurements.Field(nil), DefaultLayers...), nil
	}
	if len(out) > MaxLayers {
		return nil, fmt.Errorf("%w: %d requested, at most %d", ErrTooManyLayers, len(out), MaxLayers)
	}
	return out, nil
}

func lookupLayer(name string) (measurements.Field, bool) {
	for f := range Palettes {
		if strings.EqualFold(string(f), name) {
			return f, true
		}
	}
	return "", false
}

// colorbarOffset shifts a stack of n colorbars so it stays centred; plotly
// does not stack colorbars of sibling traces on its own.
var colorbarOffset = map[int]float64{
	1: 0.375,
	2: 0.125,
	3: 0.125 / 3,
	4: 0,
}

// ColorBarPlacement returns the centre and length of the index-th colorbar
// in a stack of count. ok is false outside the offset table.
func ColorBarPlacement(index, count int) (y, length float64, ok bool) {
	offset, ok := colorbarOffset[count]
	if !ok || index < 0 || index >= count {
		return 0, 0, false
	}
	n := float64(count)
	return 0.875 - float64(index)/n - offset, 1 / n, true
}

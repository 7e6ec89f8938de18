// Package inspect formats the attribute bundle of a clicked map point.
package inspect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/krillmap/dashboard/measurements"
)

// ErrInvalidClick is returned for click payloads that are not JSON or carry a
// malformed attribute bundle.
var ErrInvalidClick = errors.New("invalid click payload")

// Placeholder stands in for missing values.
const Placeholder = "-"

// Detail is one formatted popup row.
type Detail struct {
	Field measurements.Field `json:"field"`
	Label string             `json:"label"`
	Value string             `json:"value"`
	Unit  string             `json:"unit"`
	Text  string             `json:"text"`
}

type attribute struct {
	field measurements.Field
	label string
	unit  string
}

var attributes = []attribute{
	{measurements.FieldKrill, "Krill", " g/m²"},
	{measurements.FieldSalinity, "Salinity", " psu"},
	{measurements.FieldTemperature, "Temperature", "°C"},
	{measurements.FieldSeaSurfaceHeight, "Sea surface height", " m"},
	{measurements.FieldChlorophyll, "Chlorophyll", " mg/m³"},
}

// Format renders every tracked attribute. A nil bundle yields placeholders.
func Format(a *measurements.Attributes) []Detail {
	out := make([]Detail, 0, len(attributes))
	for _, attr := range attributes {
		value := Placeholder
		if a != nil {
			v, _ := a.Get(attr.field)
			value = FormatValue(v)
		}
		out = append(out, Detail{
			Field: attr.field,
			Label: attr.label,
			Value: value,
			Unit:  attr.unit,
			Text:  value + attr.unit,
		})
	}
	return out
}

// Texts returns only the display strings of details.
func Texts(details []Detail) []string {
	out := make([]string, len(details))
	for i, d := range details {
		out[i] = d.Text
	}
	return out
}

// FormatValue rounds to three decimals and prints the shortest form that
// keeps at least one fractional digit.
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0
	}
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type clickPoint struct {
	CustomData json.RawMessage `json:"customdata"`
}

type clickEvent struct {
	Points     []clickPoint    `json:"points"`
	CustomData json.RawMessage `json:"customdata"`
}

// ParseClick extracts the attribute bundle from a click payload. It accepts
// {"points":[{"customdata":...}]}, {"customdata":...}, or the bundle itself.
// A payload without a point returns nil and no error.
func ParseClick(data []byte) (*measurements.Attributes, error) {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil, nil
	}
	if data[0] == '{' {
		var ev clickEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidClick, err)
		}
		switch {
		case ev.Points != nil:
			if len(ev.Points) == 0 {
				return nil, nil
			}
			return decodeBundle(ev.Points[0].CustomData)
		case ev.CustomData != nil:
			return decodeBundle(ev.CustomData)
		}
	}
	return decodeBundle(data)
}

func decodeBundle(raw json.RawMessage) (*measurements.Attributes, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil, nil
	}
	var a measurements.Attributes
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClick, err)
	}
	return &a, nil
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

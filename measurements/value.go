package measurements

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a measurement that encodes missing readings (NaN, ±Inf) as JSON
// null and decodes null back to NaN.
type Value float64

func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" {
		*v = Value(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("measurement value %s: %w", s, err)
	}
	*v = Value(f)
	return nil
}

// Attributes is the point bundle carried by every rendered density trace so
// a click reports all tracked values, not only the displayed layer.
type Attributes struct {
	Krill            Value `json:"Krill"`
	Salinity         Value `json:"SSSm"`
	Temperature      Value `json:"SSTm"`
	SeaSurfaceHeight Value `json:"ZOSm"`
	Chlorophyll      Value `json:"CHLm"`
}

// AttributeOrder is the positional layout accepted from array-shaped bundles.
var AttributeOrder = []Field{
	FieldKrill,
	FieldSalinity,
	FieldTemperature,
	FieldSeaSurfaceHeight,
	FieldChlorophyll,
}

func (a Attributes) Get(f Field) (float64, bool) {
	switch f {
	case FieldKrill:
		return float64(a.Krill), true
	case FieldSalinity:
		return float64(a.Salinity), true
	case FieldTemperature:
		return float64(a.Temperature), true
	case FieldSeaSurfaceHeight:
		return float64(a.SeaSurfaceHeight), true
	case FieldChlorophyll:
		return float64(a.Chlorophyll), true
	}
	return 0, false
}

func (a *Attributes) set(f Field, v Value) {
	switch f {
	case FieldKrill:
		a.Krill = v
	case FieldSalinity:
		a.Salinity = v
	case FieldTemperature:
		a.Temperature = v
	case FieldSeaSurfaceHeight:
		a.SeaSurfaceHeight = v
	case FieldChlorophyll:
		a.Chlorophyll = v
	}
}

// UnmarshalJSON accepts the named object form and the positional array form
// ordered as AttributeOrder. Keys or positions that are absent decode to NaN.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	nan := Value(math.NaN())
	*a = Attributes{Krill: nan, Salinity: nan, Temperature: nan, SeaSurfaceHeight: nan, Chlorophyll: nan}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var values []Value
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return err
		}
		if len(values) > len(AttributeOrder) {
			return fmt.Errorf("attribute bundle has %d values, want at most %d", len(values), len(AttributeOrder))
		}
		for i, v := range values {
			a.set(AttributeOrder[i], v)
		}
		return nil
	}

	type plain Attributes
	return json.Unmarshal(trimmed, (*plain)(a))
}

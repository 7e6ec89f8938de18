package measurements

import (
	"fmt"
	"math"

	"github.com/krillmap/dashboard/internal/period"
)

// Field names a scalar measured (or derived) at every sample point. The
// values double as dataset column names, API layer names and colorbar titles.
type Field string

const (
	FieldKrill            Field = "Krill"
	FieldSalinity         Field = "SSSm"
	FieldTemperature      Field = "SSTm"
	FieldSeaSurfaceHeight Field = "ZOSm"
	FieldChlorophyll      Field = "CHLm"
	FieldCurrentU         Field = "Um"
	FieldCurrentV         Field = "Vm"
	FieldCurrentSpeed     Field = "Speed"
)

// SourceFields are read from data files; FieldCurrentSpeed is derived.
var SourceFields = []Field{
	FieldKrill,
	FieldSalinity,
	FieldTemperature,
	FieldSeaSurfaceHeight,
	FieldChlorophyll,
	FieldCurrentU,
	FieldCurrentV,
}

// Record is one sample point of a monthly snapshot.
type Record struct {
	Latitude         float64
	Longitude        float64
	Krill            float64
	Salinity         float64
	Temperature      float64
	SeaSurfaceHeight float64
	Chlorophyll      float64
	CurrentU         float64
	CurrentV         float64
	CurrentSpeed     float64
	// CurrentDirection is atan2(V, U) in radians.
	CurrentDirection float64
}

func (r *Record) set(f Field, v float64) {
	switch f {
	case FieldKrill:
		r.Krill = v
	case FieldSalinity:
		r.Salinity = v
	case FieldTemperature:
		r.Temperature = v
	case FieldSeaSurfaceHeight:
		r.SeaSurfaceHeight = v
	case FieldChlorophyll:
		r.Chlorophyll = v
	case FieldCurrentU:
		r.CurrentU = v
	case FieldCurrentV:
		r.CurrentV = v
	}
}

// Value returns the named field; ok is false for names that are not fields.
func (r Record) Value(f Field) (float64, bool) {
	switch f {
	case FieldKrill:
		return r.Krill, true
	case FieldSalinity:
		return r.Salinity, true
	case FieldTemperature:
		return r.Temperature, true
	case FieldSeaSurfaceHeight:
		return r.SeaSurfaceHeight, true
	case FieldChlorophyll:
		return r.Chlorophyll, true
	case FieldCurrentU:
		return r.CurrentU, true
	case FieldCurrentV:
		return r.CurrentV, true
	case FieldCurrentSpeed:
		return r.CurrentSpeed, true
	}
	return 0, false
}

func (r *Record) derive() {
	r.CurrentSpeed = math.Sqrt(r.CurrentU*r.CurrentU + r.CurrentV*r.CurrentV)
	r.CurrentDirection = math.Atan2(r.CurrentV, r.CurrentU)
}

// Attributes is the per-point bundle attached to rendered traces.
func (r Record) Attributes() Attributes {
	return Attributes{
		Krill:            Value(r.Krill),
		Salinity:         Value(r.Salinity),
		Temperature:      Value(r.Temperature),
		SeaSurfaceHeight: Value(r.SeaSurfaceHeight),
		Chlorophyll:      Value(r.Chlorophyll),
	}
}

// Dataset holds every record of one period. It is never mutated after a
// source returns it, so cached instances are shared between requests.
type Dataset struct {
	Period  period.Period
	Records []Record
}

// NewDataset derives current speed and direction for every record.
func NewDataset(p period.Period, records []Record) *Dataset {
	for i := range records {
		records[i].derive()
	}
	return &Dataset{Period: p, Records: records}
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

func (d *Dataset) Latitudes() []float64 {
	out := make([]float64, d.Len())
	for i := range out {
		out[i] = d.Records[i].Latitude
	}
	return out
}

func (d *Dataset) Longitudes() []float64 {
	out := make([]float64, d.Len())
	for i := range out {
		out[i] = d.Records[i].Longitude
	}
	return out
}

// Column extracts one field across all records.
func (d *Dataset) Column(f Field) ([]float64, error) {
	if _, ok := (Record{}).Value(f); !ok {
		return nil, fmt.Errorf("unknown field %q", f)
	}
	out := make([]float64, d.Len())
	for i := range out {
		out[i], _ = d.Records[i].Value(f)
	}
	return out, nil
}

func (d *Dataset) Attributes() []Attributes {
	out := make([]Attributes, d.Len())
	for i := range out {
		out[i] = d.Records[i].Attributes()
	}
	return out
}

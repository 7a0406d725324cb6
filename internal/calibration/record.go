// Package calibration manages persistent sensor calibration: the durable
// calibration record, the file-backed store, the tare and known-load
// calibration procedures, and the raw-to-physical unit conversion.
package calibration

import (
	"fmt"
	"time"

	"github.com/forcelab/forcemon/internal/units"
)

// SchemaVersion tags persisted records so older documents can be back-filled
// on load as fields are added.
const SchemaVersion = "2.0"

// KnownPoint records the known-load leg of a two-point calibration.
type KnownPoint struct {
	// AppliedValue is the known physical load (Newtons or grams).
	AppliedValue float64 `json:"applied_value"`

	// RawDelta is the observed raw-domain change from empty to loaded.
	RawDelta float64 `json:"raw_delta"`

	// RawPerUnit is the derived raw change per physical unit.
	RawPerUnit float64 `json:"raw_per_unit"`
}

// Record is the persisted calibration document, one per sensor family.
//
// The raw domain differs per family: volts for FC2231, grams (raw pounds
// times the fixed pound-to-gram constant) for OpenScale. TareReference,
// RangeMin/RangeMax and Stability are all expressed in that raw domain.
type Record struct {
	SensorFamily units.Family `json:"sensor_family"`

	// TareReference is the raw-domain zero point.
	TareReference float64 `json:"tare_reference"`

	// ScaleFactor maps raw-domain change to physical units for the
	// scale-factor form: physical = (raw - tare) / scale. Must never be
	// exactly zero after validation.
	ScaleFactor float64 `json:"scale_factor"`

	// MaxPhysicalValue is the physical value at the top of the raw range
	// for the range form used by FC2231.
	MaxPhysicalValue float64 `json:"max_physical_value"`

	// RangeMin and RangeMax bound the raw domain for clamping.
	RangeMin float64 `json:"range_min"`
	RangeMax float64 `json:"range_max"`

	// CalibratedAt is the time of the last calibration; nil means never.
	CalibratedAt *time.Time `json:"calibration_timestamp"`

	// Stability is the sample standard deviation of the readings that
	// produced this record; nil when unknown. Lower is better.
	Stability *float64 `json:"calibration_stability"`

	// KnownPoint is set by two-point calibration, nil otherwise.
	KnownPoint *KnownPoint `json:"known_point,omitempty"`

	Schema string `json:"schema_version"`
}

// DefaultRecord returns the factory calibration for a sensor family. It is
// used on first run and as the fallback when the persisted file is missing
// or corrupt.
func DefaultRecord(family units.Family) *Record {
	switch family {
	case units.FamilyOpenScale:
		return &Record{
			SensorFamily:     units.FamilyOpenScale,
			TareReference:    0.0,
			ScaleFactor:      1.0,
			MaxPhysicalValue: 0,
			RangeMin:         -20000,
			RangeMax:         20000,
			Schema:           SchemaVersion,
		}
	default:
		// FC2231: 0.5-4.5 V linear output, 100 N full scale.
		return &Record{
			SensorFamily:     units.FamilyFC2231,
			TareReference:    0.5,
			ScaleFactor:      1.0,
			MaxPhysicalValue: 100.0,
			RangeMin:         0.5,
			RangeMax:         4.5,
			Schema:           SchemaVersion,
		}
	}
}

// Validate reports whether the record is usable for conversion. A failing
// record must not be used; callers fall back to DefaultRecord.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("nil calibration record")
	}
	if !units.IsValid(r.SensorFamily) {
		return fmt.Errorf("unknown sensor family %q: expected one of %s", r.SensorFamily, units.ValidFamiliesString())
	}
	if r.ScaleFactor == 0 {
		return fmt.Errorf("scale factor must be nonzero")
	}
	if r.ScaleFactor > 1000 || r.ScaleFactor < -1000 {
		return fmt.Errorf("scale factor %g out of sane range [-1000, 1000]", r.ScaleFactor)
	}
	if r.RangeMax <= r.RangeMin {
		return fmt.Errorf("raw range [%g, %g] is empty", r.RangeMin, r.RangeMax)
	}

	if r.SensorFamily == units.FamilyFC2231 {
		if r.TareReference < 0.4 || r.TareReference > 5.0 {
			return fmt.Errorf("tare voltage %g outside plausible range [0.4, 5.0]", r.TareReference)
		}
		if r.MaxPhysicalValue <= 0 || r.MaxPhysicalValue > 10000 {
			return fmt.Errorf("max force %g outside plausible range (0, 10000]", r.MaxPhysicalValue)
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	if r.CalibratedAt != nil {
		t := *r.CalibratedAt
		out.CalibratedAt = &t
	}
	if r.Stability != nil {
		s := *r.Stability
		out.Stability = &s
	}
	if r.KnownPoint != nil {
		kp := *r.KnownPoint
		out.KnownPoint = &kp
	}
	return &out
}

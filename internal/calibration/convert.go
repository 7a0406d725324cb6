package calibration

import (
	"github.com/forcelab/forcemon/internal/units"
)

// Convert maps a raw wire value through the calibration record to the
// family's primary physical unit. It is pure: no side effects, deterministic
// for a given record.
//
// FC2231 (range form): the tared voltage is clamped into the configured raw
// range and scaled linearly into [0, MaxPhysicalValue]. Clamping holds for
// arbitrarily out-of-range input, so the output is always within that
// interval. The record validates RangeMax > RangeMin at load time, so the
// divisor here cannot be zero.
//
// OpenScale (scale-factor form): the raw pounds are first converted to grams
// with the fixed unit constant, then tared and divided by the scale factor.
// A zero scale factor cannot pass validation, but conversion still guards
// it, falling back to the tare-only form.
func Convert(raw float64, rec *Record) float64 {
	switch rec.SensorFamily {
	case units.FamilyOpenScale:
		grams := units.PoundsToGrams(raw)
		tared := grams - rec.TareReference
		if rec.ScaleFactor == 0 {
			return tared
		}
		return tared / rec.ScaleFactor

	default:
		adjusted := raw - rec.TareReference + rec.RangeMin
		if adjusted < rec.RangeMin {
			adjusted = rec.RangeMin
		}
		if adjusted > rec.RangeMax {
			adjusted = rec.RangeMax
		}
		ratio := (adjusted - rec.RangeMin) / (rec.RangeMax - rec.RangeMin)
		return ratio * rec.MaxPhysicalValue
	}
}

// RawDomain maps a raw wire value into the domain the calibration record is
// expressed in: volts pass through for FC2231; pounds become grams for
// OpenScale. Calibration sample buffers collect values in this domain.
func RawDomain(raw float64, family units.Family) float64 {
	if family == units.FamilyOpenScale {
		return units.PoundsToGrams(raw)
	}
	return raw
}

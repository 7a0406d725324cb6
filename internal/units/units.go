// Package units provides shared constants and pure conversions for force and
// weight units, plus the per-sensor-family numeric thresholds used by the
// reading pipeline.
package units

// Fixed physical conversion constants. These are properties of the units
// themselves and are never part of calibration state.
const (
	// GramsForcePerNewton converts Newtons to grams-force.
	GramsForcePerNewton = 101.97

	// GramsPerPound converts pounds to grams.
	GramsPerPound = 453.592
)

// Unit name constants.
const (
	Newtons    = "N"
	GramsForce = "gf"
	Grams      = "g"
	Pounds     = "lbs"
	Volts      = "V"
)

// NewtonsToGramsForce converts a force in Newtons to grams-force.
func NewtonsToGramsForce(n float64) float64 {
	return n * GramsForcePerNewton
}

// PoundsToGrams converts a weight in pounds to grams.
func PoundsToGrams(lbs float64) float64 {
	return lbs * GramsPerPound
}

// Family identifies a supported sensor family.
type Family string

const (
	// FamilyFC2231 is the FC2231 amplified force sensor (voltage output,
	// forces in Newtons).
	FamilyFC2231 Family = "fc2231"

	// FamilyOpenScale is the SparkFun OpenScale load-cell interface (raw
	// pounds output, weights in grams).
	FamilyOpenScale Family = "openscale"
)

// ValidFamilies contains all supported sensor families.
var ValidFamilies = []Family{FamilyFC2231, FamilyOpenScale}

// IsValid checks if the given family is supported.
func IsValid(f Family) bool {
	for _, v := range ValidFamilies {
		if f == v {
			return true
		}
	}
	return false
}

// ValidFamiliesString returns a comma-separated list of supported families
// for error messages.
func ValidFamiliesString() string {
	return "fc2231, openscale"
}

// Thresholds bundles the family-specific numeric breakpoints. The two
// families operate at very different scales (Newtons vs grams), so every
// threshold is carried per family rather than hard-coded.
type Thresholds struct {
	// PrimaryUnit is the unit of calibrated readings (N or g).
	PrimaryUnit string

	// SecondaryUnit is the derived display unit (gf for Newtons; empty when
	// the primary is already grams).
	SecondaryUnit string

	// RawUnit is the unit tag expected on the wire (V or lbs).
	RawUnit string

	// Zero is the magnitude below which a smoothed reading is reported as
	// exactly zero.
	Zero float64

	// StatsFloor is the magnitude a reading must exceed to be retained for
	// session statistics.
	StatsFloor float64

	// Light and Medium are the upper bounds of the LIGHT and MEDIUM
	// classification buckets (FC2231 only; OpenScale uses WEIGHT).
	Light  float64
	Medium float64

	// DriftStable and DriftModerate are the upper bounds of the STABLE and
	// MODERATE drift tiers.
	DriftStable   float64
	DriftModerate float64

	// StabilityExcellent, StabilityGood and StabilityFair are the upper
	// bounds of the calibration stability tiers, in raw-domain units
	// (volts for FC2231, grams for OpenScale).
	StabilityExcellent float64
	StabilityGood      float64
	StabilityFair      float64
}

var fc2231Thresholds = Thresholds{
	PrimaryUnit:        Newtons,
	SecondaryUnit:      GramsForce,
	RawUnit:            Volts,
	Zero:               0.1,
	StatsFloor:         0.05,
	Light:              1.0,
	Medium:             10.0,
	DriftStable:        0.1,
	DriftModerate:      0.5,
	StabilityExcellent: 0.001, // 1 mV
	StabilityGood:      0.005, // 5 mV
	StabilityFair:      0.02,  // 20 mV
}

var openScaleThresholds = Thresholds{
	PrimaryUnit:        Grams,
	SecondaryUnit:      "",
	RawUnit:            Pounds,
	Zero:               10.0,
	StatsFloor:         5.0,
	Light:              0,
	Medium:             0,
	DriftStable:        1.0,
	DriftModerate:      5.0,
	StabilityExcellent: 10.0,
	StabilityGood:      50.0,
	StabilityFair:      200.0,
}

// ThresholdsFor returns the threshold set for the given family. Unknown
// families fall back to the FC2231 set.
func ThresholdsFor(f Family) Thresholds {
	switch f {
	case FamilyOpenScale:
		return openScaleThresholds
	default:
		return fc2231Thresholds
	}
}

// Secondary converts a calibrated value in the family's primary unit to its
// secondary display unit. For FC2231 this is Newtons to grams-force; for
// OpenScale the primary unit is already grams and the value passes through.
func Secondary(value float64, f Family) float64 {
	if f == FamilyFC2231 {
		return NewtonsToGramsForce(value)
	}
	return value
}

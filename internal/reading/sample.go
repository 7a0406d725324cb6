// Package reading holds the in-flight data model of the pipeline: parsed raw
// samples, calibrated readings with their classification, the median
// smoothing filter, the drift monitor, and session statistics.
package reading

import (
	"time"

	"github.com/forcelab/forcemon/internal/units"
)

// RawSample is one parsed data line from the sensor stream. It is transient:
// it exists only for the duration of one read cycle.
type RawSample struct {
	// Seq is the device-side reading number.
	Seq int64

	// Value is the raw sensor value as it appeared on the wire (volts for
	// FC2231, pounds for OpenScale).
	Value float64

	// Unit is the raw unit tag from the line.
	Unit string

	// Temperature is the on-board temperature in degrees Celsius.
	Temperature float64

	// Fields holds any trailing fields beyond the ones parsed above.
	Fields []string

	// ReceivedAt is the host-side receive time.
	ReceivedAt time.Time
}

// Class buckets a smoothed reading by sign and magnitude.
type Class string

const (
	ClassZero     Class = "ZERO"
	ClassLight    Class = "LIGHT"
	ClassMedium   Class = "MEDIUM"
	ClassStrong   Class = "STRONG"
	ClassWeight   Class = "WEIGHT"
	ClassNegative Class = "NEGATIVE"
)

// CalibratedReading is a raw sample pushed through calibration and
// smoothing. Value carries the instantaneous calibrated value; Smoothed the
// median-filtered one used for display, classification, and statistics.
type CalibratedReading struct {
	Sample RawSample

	// Value is the calibrated value in the family's primary unit.
	Value float64

	// Secondary is Value in the family's secondary unit (grams-force for
	// Newtons; equal to Value for gram-scale sensors).
	Secondary float64

	// Smoothed is the de-noised value. Forced to exactly 0 when classified
	// ZERO.
	Smoothed float64

	// SmoothedSecondary is Smoothed in the secondary unit.
	SmoothedSecondary float64

	Class Class
}

// Classify buckets a smoothed value for the given family and returns the
// class together with the display value, which is forced to exactly zero
// inside the zero band.
func Classify(value float64, family units.Family) (Class, float64) {
	th := units.ThresholdsFor(family)

	if value < th.Zero && value > -th.Zero {
		return ClassZero, 0
	}
	if value < 0 {
		return ClassNegative, value
	}

	if family == units.FamilyFC2231 {
		switch {
		case value < th.Light:
			return ClassLight, value
		case value < th.Medium:
			return ClassMedium, value
		default:
			return ClassStrong, value
		}
	}
	return ClassWeight, value
}

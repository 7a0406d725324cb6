package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/forcelab/forcemon/internal/units"
)

// MinSamples is the minimum number of raw samples required per calibration
// measurement.
const MinSamples = 5

var (
	// ErrInsufficientData indicates a calibration was attempted with too few
	// samples.
	ErrInsufficientData = errors.New("insufficient calibration data")

	// ErrInvalidCalibrationInput indicates a degenerate calibration input,
	// such as a zero known load, that would produce an unusable mapping.
	ErrInvalidCalibrationInput = errors.New("invalid calibration input")
)

// Point is one measurement of a multi-point calibration: the known applied
// load and the raw-domain samples observed under it.
type Point struct {
	// Known is the applied physical load (Newtons or grams). Zero is valid
	// here: the unloaded measurement anchors the fit.
	Known float64

	// Samples are the raw-domain readings taken under that load.
	Samples []float64
}

// Tare produces a new record from the current one with the zero point moved
// to the mean of the given raw-domain samples. Scale factor and raw range
// are left untouched; a tare never changes the slope of the mapping.
func Tare(current *Record, samples []float64) (*Record, error) {
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("%w: need at least %d samples, got %d", ErrInsufficientData, MinSamples, len(samples))
	}

	rec := current.Clone()
	rec.TareReference = stat.Mean(samples, nil)
	stability := stat.StdDev(samples, nil)
	rec.Stability = &stability
	return rec, nil
}

// TwoPoint produces a new record from an empty measurement, a loaded
// measurement, and the known physical value of the load. A zero known value
// is rejected outright rather than silently mapped to an identity factor.
//
// Stability is the worse (larger) of the two sample sets' standard
// deviations. For FC2231 the maximum physical value is re-derived by
// extrapolating the raw slope to the 4.5 V hardware rail.
func TwoPoint(current *Record, empty, loaded []float64, known float64) (*Record, error) {
	if len(empty) < MinSamples || len(loaded) < MinSamples {
		return nil, fmt.Errorf("%w: need at least %d samples for each state, got %d empty and %d loaded",
			ErrInsufficientData, MinSamples, len(empty), len(loaded))
	}
	if known == 0 {
		return nil, fmt.Errorf("%w: known load must be nonzero", ErrInvalidCalibrationInput)
	}

	emptyBaseline := stat.Mean(empty, nil)
	loadedBaseline := stat.Mean(loaded, nil)
	delta := loadedBaseline - emptyBaseline
	rawPerUnit := delta / known

	rec, err := fit(current, emptyBaseline, rawPerUnit)
	if err != nil {
		return nil, err
	}

	stability := math.Max(stat.StdDev(empty, nil), stat.StdDev(loaded, nil))
	rec.Stability = &stability
	rec.KnownPoint = &KnownPoint{
		AppliedValue: known,
		RawDelta:     delta,
		RawPerUnit:   rawPerUnit,
	}
	return rec, nil
}

// MultiPoint produces a new record from a least-squares fit across two or
// more known loads. The fit is raw = tare + slope*load; the intercept
// becomes the tare reference and the slope the raw-per-unit factor.
func MultiPoint(current *Record, points []Point) (*Record, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 calibration points, got %d", ErrInsufficientData, len(points))
	}

	loads := make([]float64, len(points))
	baselines := make([]float64, len(points))
	worst := 0.0
	for i, p := range points {
		if len(p.Samples) < MinSamples {
			return nil, fmt.Errorf("%w: point %d has %d samples, need at least %d",
				ErrInsufficientData, i, len(p.Samples), MinSamples)
		}
		loads[i] = p.Known
		baselines[i] = stat.Mean(p.Samples, nil)
		if s := stat.StdDev(p.Samples, nil); s > worst {
			worst = s
		}
	}
	if allEqual(loads) {
		return nil, fmt.Errorf("%w: calibration points must span at least two distinct loads", ErrInvalidCalibrationInput)
	}

	tare, slope := stat.LinearRegression(loads, baselines, nil, false)

	rec, err := fit(current, tare, slope)
	if err != nil {
		return nil, err
	}
	rec.Stability = &worst
	rec.KnownPoint = nil
	return rec, nil
}

// fit applies a raw-domain intercept and slope to a copy of the current
// record, per family. A vanishing slope means the sensor did not respond to
// the load and no usable mapping exists.
func fit(current *Record, tare, rawPerUnit float64) (*Record, error) {
	if math.Abs(rawPerUnit) < 1e-12 || math.IsNaN(rawPerUnit) {
		return nil, fmt.Errorf("%w: no raw response to applied load", ErrInvalidCalibrationInput)
	}

	rec := current.Clone()
	rec.TareReference = tare

	switch rec.SensorFamily {
	case units.FamilyFC2231:
		// Extrapolate full-scale force from the remaining voltage headroom.
		rec.MaxPhysicalValue = (rec.RangeMax - tare) / rawPerUnit
		if rec.MaxPhysicalValue <= 0 {
			return nil, fmt.Errorf("%w: derived max force %g is not positive", ErrInvalidCalibrationInput, rec.MaxPhysicalValue)
		}
	default:
		rec.ScaleFactor = rawPerUnit
	}
	return rec, nil
}

func allEqual(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

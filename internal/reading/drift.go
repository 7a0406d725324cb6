package reading

import (
	"math"

	"github.com/forcelab/forcemon/internal/units"
)

// driftWindow caps the rolling deviation buffer.
const driftWindow = 100

// DriftTier classifies how far readings have wandered from the baseline.
type DriftTier string

const (
	DriftStable   DriftTier = "STABLE"
	DriftModerate DriftTier = "MODERATE"
	DriftHigh     DriftTier = "HIGH"
)

// DriftReport is the result of one drift update.
type DriftReport struct {
	// Current is the absolute deviation of the latest value from the
	// baseline.
	Current float64

	// Max is the largest deviation observed since the baseline was set.
	Max float64

	// RollingMean is the mean deviation over the last driftWindow updates.
	RollingMean float64

	// Tier classifies Max against the family's drift thresholds.
	Tier DriftTier
}

// DriftMonitor tracks deviation from a user-established baseline to expose
// mechanical creep and thermal drift. It is a no-op until a baseline is set.
type DriftMonitor struct {
	family     units.Family
	baseline   float64
	hasBase    bool
	deviations []float64
	head       int
	size       int
	sum        float64
	max        float64
}

// NewDriftMonitor creates a monitor using the given family's drift tiers.
func NewDriftMonitor(family units.Family) *DriftMonitor {
	return &DriftMonitor{
		family:     family,
		deviations: make([]float64, driftWindow),
	}
}

// SetBaseline establishes the reference value and resets all drift state.
func (m *DriftMonitor) SetBaseline(value float64) {
	m.baseline = value
	m.hasBase = true
	m.head = 0
	m.size = 0
	m.sum = 0
	m.max = 0
}

// ClearBaseline discards the baseline; subsequent updates are no-ops.
func (m *DriftMonitor) ClearBaseline() {
	m.hasBase = false
	m.head = 0
	m.size = 0
	m.sum = 0
	m.max = 0
}

// HasBaseline reports whether a baseline is currently set.
func (m *DriftMonitor) HasBaseline() bool { return m.hasBase }

// Baseline returns the current baseline value; only meaningful when
// HasBaseline is true.
func (m *DriftMonitor) Baseline() float64 { return m.baseline }

// Update records a new smoothed value and returns the drift report, or nil
// when no baseline has been set.
func (m *DriftMonitor) Update(value float64) *DriftReport {
	if !m.hasBase {
		return nil
	}

	drift := math.Abs(value - m.baseline)

	if m.size == driftWindow {
		m.sum -= m.deviations[m.head]
	} else {
		m.size++
	}
	m.deviations[m.head] = drift
	m.head = (m.head + 1) % driftWindow
	m.sum += drift

	if drift > m.max {
		m.max = drift
	}

	th := units.ThresholdsFor(m.family)
	tier := DriftHigh
	switch {
	case m.max < th.DriftStable:
		tier = DriftStable
	case m.max < th.DriftModerate:
		tier = DriftModerate
	}

	return &DriftReport{
		Current:     drift,
		Max:         m.max,
		RollingMean: m.sum / float64(m.size),
		Tier:        tier,
	}
}

package reading

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/forcelab/forcemon/internal/timeutil"
	"github.com/forcelab/forcemon/internal/units"
)

// Stats summarises the retained (non-near-zero) readings of a session.
type Stats struct {
	Min   float64
	Max   float64
	Mean  float64
	Stdev float64

	// Count is the number of readings retained for statistics, which can be
	// smaller than the session's total reading count.
	Count int
}

// SessionAggregator accumulates the readings of one continuous
// connect-to-disconnect interval. Near-zero readings are counted but
// excluded from statistics so that an idle sensor does not drag the numbers
// toward zero.
type SessionAggregator struct {
	id        string
	family    units.Family
	clock     timeutil.Clock
	startedAt time.Time
	values    []float64
	total     int64
}

// NewSessionAggregator starts a fresh session.
func NewSessionAggregator(family units.Family, clock timeutil.Clock) *SessionAggregator {
	return &SessionAggregator{
		id:        uuid.NewString(),
		family:    family,
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// ID returns the session identifier.
func (s *SessionAggregator) ID() string { return s.id }

// StartedAt returns the session start time.
func (s *SessionAggregator) StartedAt() time.Time { return s.startedAt }

// Record adds a smoothed reading. The total counter always advances; the
// value itself is retained for statistics only when its magnitude clears
// the family's statistics floor.
func (s *SessionAggregator) Record(value float64) {
	s.total++
	if math.Abs(value) > units.ThresholdsFor(s.family).StatsFloor {
		s.values = append(s.values, value)
	}
}

// TotalCount returns the number of readings seen, including near-zero ones.
func (s *SessionAggregator) TotalCount() int64 { return s.total }

// Values returns a copy of the retained readings, oldest first.
func (s *SessionAggregator) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Stats computes min/max/mean/stdev over the retained readings. ok is false
// when nothing has cleared the statistics floor yet.
func (s *SessionAggregator) Stats() (stats Stats, ok bool) {
	if len(s.values) == 0 {
		return Stats{}, false
	}

	stats.Count = len(s.values)
	stats.Min = s.values[0]
	stats.Max = s.values[0]
	for _, v := range s.values[1:] {
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = stat.Mean(s.values, nil)
	if len(s.values) > 1 {
		stats.Stdev = stat.StdDev(s.values, nil)
	}
	return stats, true
}

// Elapsed returns the time since the session started.
func (s *SessionAggregator) Elapsed() time.Duration {
	return s.clock.Since(s.startedAt)
}

// Reset discards all history and starts a new session with a fresh
// identifier and clock start.
func (s *SessionAggregator) Reset() {
	s.id = uuid.NewString()
	s.startedAt = s.clock.Now()
	s.values = nil
	s.total = 0
}

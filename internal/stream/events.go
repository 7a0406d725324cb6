package stream

import (
	"github.com/forcelab/forcemon/internal/calibration"
	"github.com/forcelab/forcemon/internal/reading"
)

// State names the reader's position in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
)

// Event is a discrete notification from the reader. Consumers switch on the
// concrete type.
type Event interface {
	event()
}

// ConnectionChanged reports a lifecycle transition.
type ConnectionChanged struct {
	State State
}

// ReadingAvailable carries one calibrated reading plus the drift report for
// it, nil when no baseline is set.
type ReadingAvailable struct {
	Reading reading.CalibratedReading
	Drift   *reading.DriftReport
}

// CalibrationProgress reports live-calibration sample collection.
type CalibrationProgress struct {
	Collected int
	Target    int
}

// CalibrationComplete reports a successful calibration. Record is the
// newly-active record; Status is its human-readable summary. Persisted is
// false when the record is active for this session but could not be written
// to disk.
type CalibrationComplete struct {
	Record    *calibration.Record
	Status    string
	Persisted bool
}

// CalibrationFailed reports an aborted calibration. The previously-saved
// record remains in effect.
type CalibrationFailed struct {
	Err error
}

// StreamError reports an unrecoverable transport error. It is emitted at
// most once per start; streaming halts and is not retried automatically.
type StreamError struct {
	Err error
}

func (ConnectionChanged) event()   {}
func (ReadingAvailable) event()    {}
func (CalibrationProgress) event() {}
func (CalibrationComplete) event() {}
func (CalibrationFailed) event()   {}
func (StreamError) event()         {}

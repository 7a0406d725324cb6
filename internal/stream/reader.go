package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forcelab/forcemon/internal/calibration"
	"github.com/forcelab/forcemon/internal/monitoring"
	"github.com/forcelab/forcemon/internal/reading"
	"github.com/forcelab/forcemon/internal/serialmux"
	"github.com/forcelab/forcemon/internal/timeutil"
	"github.com/forcelab/forcemon/internal/units"
)

var (
	// ErrAlreadyStarted is returned by Start on a reader that is running or
	// has been stopped. A stopped reader is not restartable: its port is
	// released, so a new start needs a fresh reader on a fresh port.
	ErrAlreadyStarted = errors.New("stream reader already started")

	// ErrNotRunning is returned by commands issued outside the running
	// state.
	ErrNotRunning = errors.New("stream reader is not running")

	// ErrCommandQueueFull is returned when the consumer loop has fallen
	// behind on commands.
	ErrCommandQueueFull = errors.New("stream reader command queue is full")
)

// Options configures a Reader. Zero values fall back to defaults.
type Options struct {
	Family             units.Family
	SmoothingWindow    int
	SettleDelay        time.Duration
	DiscardLines       int
	PollInterval       time.Duration
	CalibrationSamples int
}

func (o Options) withDefaults() Options {
	opts := o
	if opts.Family == "" {
		opts.Family = units.FamilyFC2231
	}
	if opts.SmoothingWindow <= 0 {
		opts.SmoothingWindow = reading.DefaultWindow
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 2 * time.Second
	}
	if opts.DiscardLines < 0 {
		opts.DiscardLines = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.CalibrationSamples <= 0 {
		opts.CalibrationSamples = 20
	}
	return opts
}

// SessionSnapshot is a point-in-time copy of the current session, safe to
// use from any goroutine.
type SessionSnapshot struct {
	ID        string
	Family    units.Family
	StartedAt time.Time
	Elapsed   time.Duration
	Total     int64
	Stats     reading.Stats
	HasStats  bool
	Values    []float64
}

// Reader consumes a line stream from a serial mux and emits typed events.
//
// Concurrency model: a worker goroutine parses lines and appends raw samples
// to a bounded channel; the consumer loop polls that channel on a short
// ticker and owns all aggregation state (calibration record, filter, drift
// monitor, session). Commands run as closures on the consumer loop, so no
// state needs locking beyond the channels themselves.
type Reader struct {
	mux   serialmux.Muxer
	store *calibration.Store
	clock timeutil.Clock
	opts  Options

	events   chan Event
	samples  chan reading.RawSample
	cmds     chan func()
	readErrs chan error
	done     chan struct{}

	running  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc

	// Consumer-owned state. Touched only by the consumer loop after Start.
	record      *calibration.Record
	filter      *reading.SmoothingFilter
	drift       *reading.DriftMonitor
	session     *reading.SessionAggregator
	calibrating bool
	calSamples  []float64
}

// NewReader creates a Reader over the given mux and calibration store.
func NewReader(mux serialmux.Muxer, store *calibration.Store, clock timeutil.Clock, opts Options) *Reader {
	return &Reader{
		mux:      mux,
		store:    store,
		clock:    clock,
		opts:     opts.withDefaults(),
		events:   make(chan Event, 256),
		samples:  make(chan reading.RawSample, 256),
		cmds:     make(chan func(), 16),
		readErrs: make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Events returns the reader's event channel. It is buffered; a consumer
// that stops draining loses events rather than stalling the pipeline.
func (r *Reader) Events() <-chan Event { return r.events }

// Start loads the calibration record and begins streaming. It returns
// immediately; connection progress arrives as ConnectionChanged events.
func (r *Reader) Start(ctx context.Context) error {
	if r.stopped.Load() || !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	r.record = r.store.Load()
	r.filter = reading.NewSmoothingFilter(r.opts.SmoothingWindow)
	r.drift = reading.NewDriftMonitor(r.opts.Family)
	r.session = reading.NewSessionAggregator(r.opts.Family, r.clock)

	ctx, r.cancel = context.WithCancel(ctx)

	r.emit(ConnectionChanged{State: StateConnecting})

	// Subscribe before Monitor starts reading, so no early line is fanned
	// out while there is nobody to receive it.
	subID, lines := r.mux.Subscribe()

	go func() {
		err := r.mux.Monitor(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("serial stream closed")
		}
		select {
		case r.readErrs <- err:
		default:
		}
	}()

	go r.work(ctx, subID, lines)
	go r.consume(ctx)

	return nil
}

// Stop halts streaming and releases the port. It is idempotent, never
// blocks, and is safe to call from any goroutine.
func (r *Reader) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		if r.cancel != nil {
			r.cancel()
		}
		if err := r.mux.Close(); err != nil {
			monitoring.Logf("stream: closing serial mux: %v", err)
		}
	})
}

// Done is closed when the consumer loop has exited.
func (r *Reader) Done() <-chan struct{} { return r.done }

// work is the producer: it settles the connection, then parses data lines
// into the samples channel. It never touches aggregation state. The
// subscription is established by Start; work only drains and releases it.
func (r *Reader) work(ctx context.Context, subID string, lines chan string) {
	defer r.mux.Unsubscribe(subID)

	// The board resets when the port opens and prints startup noise for a
	// couple of seconds. Wait it out, then drop a bounded number of banner
	// lines; a READY control message ends the discard phase early.
	r.clock.Sleep(r.opts.SettleDelay)
	discardBudget := r.opts.DiscardLines
	settled := discardBudget == 0

	if settled {
		r.emit(ConnectionChanged{State: StateStreaming})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}

			if ctrl, isCtrl := ParseControl(line); isCtrl {
				monitoring.Logf("stream: device control message %s", ctrl.Kind)
				if !settled && ctrl.Kind == ControlReady {
					settled = true
					r.emit(ConnectionChanged{State: StateStreaming})
				}
				continue
			}

			if !settled {
				discardBudget--
				if discardBudget <= 0 {
					settled = true
					r.emit(ConnectionChanged{State: StateStreaming})
				}
				continue
			}

			sample, ok := ParseLine(line, r.opts.Family, r.clock.Now())
			if !ok {
				continue
			}

			select {
			case r.samples <- sample:
			default:
				// Consumer has fallen behind; dropping is preferable to
				// blocking the read loop.
			}
		}
	}
}

// consume is the consumer loop: it drains parsed samples on a short poll
// interval and executes commands. All aggregation state is owned here.
func (r *Reader) consume(ctx context.Context) {
	defer close(r.done)
	defer r.running.Store(false)

	ticker := r.clock.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.emit(ConnectionChanged{State: StateIdle})
			return

		case err := <-r.readErrs:
			r.emit(StreamError{Err: err})
			r.emit(ConnectionChanged{State: StateIdle})
			r.Stop()
			return

		case fn := <-r.cmds:
			fn()

		case <-ticker.C():
			r.drainSamples()
		}
	}
}

func (r *Reader) drainSamples() {
	for {
		select {
		case sample := <-r.samples:
			r.process(sample)
		default:
			return
		}
	}
}

// process pushes one raw sample through calibration, smoothing,
// classification, session statistics, and drift tracking.
func (r *Reader) process(sample reading.RawSample) {
	if r.calibrating {
		// Calibration buffers collect in the record's domain (grams for
		// load cells), the domain the tare reference is expressed in.
		r.calSamples = append(r.calSamples, calibration.RawDomain(sample.Value, r.opts.Family))
		r.emit(CalibrationProgress{Collected: len(r.calSamples), Target: r.opts.CalibrationSamples})
		if len(r.calSamples) >= r.opts.CalibrationSamples {
			r.finishCalibration()
		}
	}

	// Convert takes the wire value as-is; it performs the unit mapping
	// into the record's domain itself.
	value := calibration.Convert(sample.Value, r.record)
	r.filter.Push(value)
	class, display := reading.Classify(r.filter.Smoothed(), r.opts.Family)

	r.session.Record(display)
	report := r.drift.Update(display)

	r.emit(ReadingAvailable{
		Reading: reading.CalibratedReading{
			Sample:            sample,
			Value:             value,
			Secondary:         units.Secondary(value, r.opts.Family),
			Smoothed:          display,
			SmoothedSecondary: units.Secondary(display, r.opts.Family),
			Class:             class,
		},
		Drift: report,
	})
}

// finishCalibration runs the tare procedure over the collected samples. On
// failure the previous record stays in effect; on success the new record is
// active immediately even if the save fails, but the caller is told it did
// not persist.
func (r *Reader) finishCalibration() {
	samples := r.calSamples
	r.calibrating = false
	r.calSamples = nil

	rec, err := calibration.Tare(r.record, samples)
	if err != nil {
		r.emit(CalibrationFailed{Err: err})
		return
	}

	r.store.Backup()
	persistErr := r.store.Save(rec)
	if persistErr != nil {
		monitoring.Logf("stream: calibration not persisted: %v", persistErr)
	}

	r.record = rec
	r.emit(CalibrationComplete{
		Record:    rec.Clone(),
		Status:    r.store.Status(rec),
		Persisted: persistErr == nil,
	})
}

// TareCalibrate begins collecting live samples for a tare calibration. A
// calibration already in progress is left alone.
func (r *Reader) TareCalibrate() error {
	return r.do(func() {
		if r.calibrating {
			return
		}
		r.calibrating = true
		r.calSamples = make([]float64, 0, r.opts.CalibrationSamples)
		r.emit(CalibrationProgress{Collected: 0, Target: r.opts.CalibrationSamples})
	})
}

// SetBaseline pins the drift baseline to the current smoothed value.
func (r *Reader) SetBaseline() error {
	return r.do(func() {
		_, display := reading.Classify(r.filter.Smoothed(), r.opts.Family)
		r.drift.SetBaseline(display)
	})
}

// ClearBaseline removes the drift baseline.
func (r *Reader) ClearBaseline() error {
	return r.do(func() { r.drift.ClearBaseline() })
}

// ResetSession starts a fresh session with a new ID and empty statistics.
func (r *Reader) ResetSession() error {
	return r.do(func() { r.session.Reset() })
}

// SendDeviceCommand writes a raw command to the sensor itself, for boards
// with their own command handlers (the force sensor firmware runs an
// on-device tare and acknowledges it with TARE control lines).
func (r *Reader) SendDeviceCommand(command string) error {
	if !r.running.Load() {
		return ErrNotRunning
	}
	return r.mux.SendCommand(command)
}

// Snapshot returns a copy of the current session state.
func (r *Reader) Snapshot() (SessionSnapshot, error) {
	reply := make(chan SessionSnapshot, 1)
	if err := r.do(func() { reply <- r.snapshot() }); err != nil {
		return SessionSnapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return SessionSnapshot{}, ErrNotRunning
	}
}

func (r *Reader) snapshot() SessionSnapshot {
	stats, ok := r.session.Stats()
	return SessionSnapshot{
		ID:        r.session.ID(),
		Family:    r.opts.Family,
		StartedAt: r.session.StartedAt(),
		Elapsed:   r.session.Elapsed(),
		Total:     r.session.TotalCount(),
		Stats:     stats,
		HasStats:  ok,
		Values:    r.session.Values(),
	}
}

// do schedules fn on the consumer loop.
func (r *Reader) do(fn func()) error {
	if !r.running.Load() {
		return ErrNotRunning
	}
	select {
	case r.cmds <- fn:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// emit delivers an event without ever blocking the pipeline.
func (r *Reader) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		monitoring.Logf("stream: event channel full, dropping %T", ev)
	}
}

package serialmux

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/forcelab/forcemon/internal/units"
)

// simPort emits synthetic sensor lines for development without hardware.
type simPort struct {
	io.Reader
	w *io.PipeWriter
}

func (s *simPort) Write(p []byte) (int, error) {
	// Commands sent to the simulated sensor are acknowledged and dropped.
	return len(p), nil
}

func (s *simPort) Close() error {
	return s.w.Close()
}

// NewSimulatedMux creates a Mux backed by a synthetic sensor that emits one
// line every interval in the wire format of the given family. The signal is
// a slow sine sweep with small gaussian noise, so smoothing and drift
// behaviour are visible in dev mode.
func NewSimulatedMux(family units.Family, interval time.Duration) *Mux[*simPort] {
	r, w := io.Pipe()
	port := &simPort{Reader: r, w: w}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		seq := 0
		start := time.Now()
		for range ticker.C {
			seq++
			t := time.Since(start).Seconds()
			noise := rand.NormFloat64()
			temp := 23.0 + 0.5*math.Sin(t/60)

			var line string
			switch family {
			case units.FamilyOpenScale:
				// reading#,value,lbs,temp
				lbs := 0.5 + 0.4*math.Sin(t/10) + 0.002*noise
				line = fmt.Sprintf("%d,%.4f,lbs,%.2f\n", seq, lbs, temp)
			default:
				// reading#,voltage,V,temp plus the raw ADC fields a real
				// board appends
				volts := 1.5 + 1.0*math.Sin(t/10) + 0.003*noise
				line = fmt.Sprintf("%d,%.4f,V,%.2f,0,0,0,0,0\n", seq, volts, temp)
			}
			if _, err := w.Write([]byte(line)); err != nil {
				return
			}
		}
	}()

	return New(port)
}

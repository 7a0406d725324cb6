package serialmux

import (
	"io"
	"time"
)

// SerialPorter is the minimal interface needed for a serial port. The
// abstraction enables unit testing without real sensor hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with a read timeout. Ports that
// implement it get a finite read timeout applied on open so that a stop
// request is observed within one timeout period.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// SerialPortFactory creates serial ports; injected so tests can substitute
// a scripted port for real hardware.
type SerialPortFactory interface {
	Open(path string, opts PortOptions) (SerialPorter, error)
}

package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// HardwareSerialPortFactory opens real serial devices via go.bug.st/serial.
type HardwareSerialPortFactory struct{}

// Open opens the device at path with the given options and applies the
// default read timeout so a silent sensor does not block reads forever.
func (HardwareSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting read timeout on %s: %w", path, err)
	}
	return port, nil
}

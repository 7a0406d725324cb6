// Package serialmux provides an abstraction over a serial port with the
// ability for multiple clients to subscribe to lines from the port and send
// commands to the single attached sensor device.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// ErrWriteFailed indicates a short write to the serial port.
var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// Muxer is the interface the stream reader consumes; satisfied by Mux and by
// the test doubles in this package.
type Muxer interface {
	// Subscribe creates a channel receiving line events from the port. The
	// returned ID identifies the subscription for Unsubscribe.
	Subscribe() (string, chan string)

	// Unsubscribe removes a subscriber and closes its channel.
	Unsubscribe(id string)

	// SendCommand writes a newline-terminated command to the port.
	SendCommand(command string) error

	// Monitor reads lines from the port and fans them out to subscribers
	// until the context is cancelled, the port fails, or Close is called.
	Monitor(ctx context.Context) error

	// Close closes all subscriber channels and releases the port. It is
	// idempotent.
	Close() error
}

// Mux fans lines read from a single serial port out to any number of
// subscribers. Slow subscribers miss lines rather than stalling the read
// loop.
type Mux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closeOnce    sync.Once
	closeErr     error
	closing      bool
	closingMu    sync.Mutex
}

// New creates a Mux backed by the given port.
func New[T SerialPorter](port T) *Mux[T] {
	return &Mux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// subscriberID generates a random channel ID (8 random bytes, hex encoded).
func subscriberID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new line channel.
func (m *Mux[T]) Subscribe() (string, chan string) {
	id := subscriberID()
	ch := make(chan string, 64)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand writes a command to the serial port, appending a newline when
// the caller did not include one.
func (m *Mux[T]) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := m.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the serial port and fans them out to subscribers.
// The blocking scan runs on its own goroutine so context cancellation is
// observed between lines.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				// Scanner finished: either clean EOF or a scan error.
				return scan.Err()
			}

			m.closingMu.Lock()
			closing := m.closing
			m.closingMu.Unlock()
			if closing {
				return nil
			}

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// Skip full subscriber channels so one stalled consumer
					// cannot block the read loop.
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

// Close closes all subscribed channels and the underlying port. Repeated
// calls release the port only once and return the first result.
func (m *Mux[T]) Close() error {
	m.closeOnce.Do(func() {
		m.closingMu.Lock()
		m.closing = true
		m.closingMu.Unlock()

		m.subscriberMu.Lock()
		for id, ch := range m.subscribers {
			close(ch)
			delete(m.subscribers, id)
		}
		m.subscriberMu.Unlock()

		m.closeErr = m.port.Close()
	})
	return m.closeErr
}

package serialmux

import (
	"errors"
	"io"
	"testing"
)

func TestTestableSerialPort_ReadWrite(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddLine("1,0.5,V,23.0,0,0,0,0,0")

	buf := make([]byte, 64)
	n, err := port.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := string(buf[:n]); got != "1,0.5,V,23.0,0,0,0,0,0\n" {
		t.Errorf("Unexpected read data: %q", got)
	}

	if _, err := port.Write([]byte("tare\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := string(port.WrittenData()); got != "tare\n" {
		t.Errorf("Expected written data %q, got %q", "tare\n", got)
	}
	if port.ReadCalls != 1 || port.WriteCalls != 1 {
		t.Errorf("Expected 1 read and 1 write call, got %d and %d", port.ReadCalls, port.WriteCalls)
	}
}

func TestTestableSerialPort_InjectedErrors(t *testing.T) {
	port := NewTestableSerialPort()

	port.ReadError = errors.New("read boom")
	if _, err := port.Read(make([]byte, 8)); err == nil {
		t.Error("Expected injected read error")
	}
	// Injected errors are one-shot.
	if _, err := port.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Expected EOF after injected error consumed, got %v", err)
	}

	port.WriteError = errors.New("write boom")
	if _, err := port.Write([]byte("x")); err == nil {
		t.Error("Expected injected write error")
	}
	if _, err := port.Write([]byte("x")); err != nil {
		t.Errorf("Expected write to succeed after injected error consumed, got %v", err)
	}
}

func TestTestableSerialPort_BlockReadsUnblocksOnClose(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true

	done := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 8))
		done <- err
	}()

	port.Close()
	if err := <-done; err == nil {
		t.Error("Expected error from read on closed port")
	}
}

func TestTestableSerialPort_SetReadTimeout(t *testing.T) {
	port := NewTestableSerialPort()
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		t.Fatalf("SetReadTimeout failed: %v", err)
	}
	if port.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultReadTimeout, port.ReadTimeout)
	}
}

func TestMockSerialPortFactory(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	opened, err := factory.Open("/dev/ttyUSB0", PortOptions{BaudRate: 115200})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != SerialPorter(port) {
		t.Error("Expected configured port to be returned")
	}

	last := factory.LastCall()
	if last == nil {
		t.Fatal("Expected a recorded Open call")
	}
	if last.Path != "/dev/ttyUSB0" {
		t.Errorf("Expected path /dev/ttyUSB0, got %q", last.Path)
	}
	if last.Opts.BaudRate != 115200 {
		t.Errorf("Expected baud rate 115200, got %d", last.Opts.BaudRate)
	}
}

func TestMockSerialPortFactory_Error(t *testing.T) {
	factory := NewMockSerialPortFactory(nil)
	factory.Error = errors.New("no such device")

	if _, err := factory.Open("/dev/missing", PortOptions{}); err == nil {
		t.Error("Expected configured error from Open")
	}
	if len(factory.OpenCalls) != 1 {
		t.Errorf("Expected failed Open to be recorded, got %d calls", len(factory.OpenCalls))
	}
}

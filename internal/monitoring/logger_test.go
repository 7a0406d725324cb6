package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("reading %d dropped", 42)

	if len(captured) != 1 {
		t.Fatalf("Expected 1 captured message, got %d", len(captured))
	}
	if captured[0] != "reading 42 dropped" {
		t.Errorf("Expected formatted message, got %q", captured[0])
	}
}

func TestSetLogger_NilMutes(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	SetLogger(nil)

	// Must neither panic nor invoke the previously-installed logger.
	Logf("muted message")

	if called {
		t.Error("Muted logger still invoked the previous callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf must not be nil by default")
	}
}

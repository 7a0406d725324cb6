package sessiondb

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to open session database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSession() (Session, []Reading) {
	started := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	session := Session{
		ID:           "f3b9a1c2-0000-4000-8000-000000000001",
		SensorFamily: "fc2231",
		StartedAt:    started,
		EndedAt:      started.Add(90 * time.Second),
		ReadingCount: 3,
	}
	readings := []Reading{
		{Seq: 1, Value: 0.02, Secondary: 2.0, Smoothed: 0, Class: "ZERO", Temperature: 23.5, RecordedAt: started.Add(time.Second)},
		{Seq: 2, Value: 5.5, Secondary: 560.8, Smoothed: 5.4, Class: "MEDIUM", Temperature: 23.5, RecordedAt: started.Add(2 * time.Second)},
		{Seq: 3, Value: 12.1, Secondary: 1233.8, Smoothed: 12.0, Class: "STRONG", Temperature: 23.6, RecordedAt: started.Add(3 * time.Second)},
	}
	return session, readings
}

func TestNew_AppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count)
	if err != nil {
		t.Fatalf("sessions table missing after migration: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty sessions table, got %d rows", count)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	session, readings := sampleSession()
	if err := db.ExportSession(session, readings); err != nil {
		t.Fatalf("ExportSession failed: %v", err)
	}
	db.Close()

	// Reopening an already-migrated database must not fail or lose data.
	db, err = New(path)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer db.Close()

	sessions, err := db.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session after reopen, got %d", len(sessions))
	}
}

func TestExportSession_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	session, readings := sampleSession()

	if err := db.ExportSession(session, readings); err != nil {
		t.Fatalf("ExportSession failed: %v", err)
	}

	sessions, err := db.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ID != session.ID {
		t.Errorf("Expected session ID %s, got %s", session.ID, got.ID)
	}
	if got.SensorFamily != "fc2231" {
		t.Errorf("Expected family fc2231, got %s", got.SensorFamily)
	}
	if !got.StartedAt.Equal(session.StartedAt) {
		t.Errorf("Expected start %v, got %v", session.StartedAt, got.StartedAt)
	}
	if !got.EndedAt.Equal(session.EndedAt) {
		t.Errorf("Expected end %v, got %v", session.EndedAt, got.EndedAt)
	}
	if got.ReadingCount != 3 {
		t.Errorf("Expected reading count 3, got %d", got.ReadingCount)
	}

	stored, err := db.Readings(session.ID)
	if err != nil {
		t.Fatalf("Readings failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(stored))
	}
	for i, r := range stored {
		if r.Seq != readings[i].Seq {
			t.Errorf("Reading %d: expected seq %d, got %d", i, readings[i].Seq, r.Seq)
		}
		if r.Value != readings[i].Value {
			t.Errorf("Reading %d: expected value %f, got %f", i, readings[i].Value, r.Value)
		}
		if r.Class != readings[i].Class {
			t.Errorf("Reading %d: expected class %s, got %s", i, readings[i].Class, r.Class)
		}
		if !r.RecordedAt.Equal(readings[i].RecordedAt) {
			t.Errorf("Reading %d: expected time %v, got %v", i, readings[i].RecordedAt, r.RecordedAt)
		}
	}
}

func TestExportSession_EmptyReadings(t *testing.T) {
	db := newTestDB(t)
	session, _ := sampleSession()
	session.ReadingCount = 0

	if err := db.ExportSession(session, nil); err != nil {
		t.Fatalf("ExportSession with no readings failed: %v", err)
	}

	readings, err := db.Readings(session.ID)
	if err != nil {
		t.Fatalf("Readings failed: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("Expected no readings, got %d", len(readings))
	}
}

func TestExportSession_DuplicateRollsBack(t *testing.T) {
	db := newTestDB(t)
	session, readings := sampleSession()

	if err := db.ExportSession(session, readings); err != nil {
		t.Fatalf("First export failed: %v", err)
	}

	// The same session ID again violates the primary key; nothing from the
	// second export may land.
	if err := db.ExportSession(session, readings); err == nil {
		t.Fatal("Expected duplicate export to fail")
	}

	stored, err := db.Readings(session.ID)
	if err != nil {
		t.Fatalf("Readings failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("Expected 3 readings after failed re-export, got %d", len(stored))
	}
}

func TestReadings_UnknownSession(t *testing.T) {
	db := newTestDB(t)

	readings, err := db.Readings("no-such-session")
	if err != nil {
		t.Fatalf("Readings failed: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("Expected no readings for unknown session, got %d", len(readings))
	}
}

// Package sessiondb persists exported measurement sessions to sqlite.
// Sessions are in-memory while live and written out only on an explicit
// export, so the database holds exactly what the user chose to keep.
package sessiondb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// migrationsFS holds the schema migration files applied on open.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Session is one exported session row.
type Session struct {
	ID           string
	SensorFamily string
	StartedAt    time.Time
	EndedAt      time.Time
	ReadingCount int64
}

// Reading is one exported reading row.
type Reading struct {
	Seq         int64
	Value       float64
	Secondary   float64
	Smoothed    float64
	Class       string
	Temperature float64
	RecordedAt  time.Time
}

type DB struct {
	*sql.DB
}

// New opens (or creates) the session database at path and applies any
// pending schema migrations.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	sdb := &DB{db}
	if err := sdb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	return sdb, nil
}

// migrateUp runs all pending migrations from the embedded filesystem.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: m is not closed because that would close the underlying DB
	// connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// ExportSession writes one session and its readings in a single
// transaction. A failure leaves the database unchanged.
func (db *DB) ExportSession(session Session, readings []Reading) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin export transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (session_id, sensor_family, started_at, ended_at, reading_count)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.SensorFamily, formatTime(session.StartedAt), formatTime(session.EndedAt), session.ReadingCount)
	if err != nil {
		return fmt.Errorf("failed to insert session: %v", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO readings (session_id, seq, value, secondary, smoothed, class, temperature, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare reading insert: %v", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		_, err := stmt.Exec(session.ID, r.Seq, r.Value, r.Secondary, r.Smoothed, r.Class, r.Temperature, formatTime(r.RecordedAt))
		if err != nil {
			return fmt.Errorf("failed to insert reading %d: %v", r.Seq, err)
		}
	}

	return tx.Commit()
}

// Sessions returns all exported sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT session_id, sensor_family, started_at, ended_at, reading_count
		FROM sessions
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %v", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started, ended string
		if err := rows.Scan(&s.ID, &s.SensorFamily, &started, &ended, &s.ReadingCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %v", err)
		}
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if s.EndedAt, err = parseTime(ended); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Readings returns the readings of one session in sequence order.
func (db *DB) Readings(sessionID string) ([]Reading, error) {
	rows, err := db.Query(`
		SELECT seq, value, secondary, smoothed, class, temperature, recorded_at
		FROM readings
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %v", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		var recorded string
		if err := rows.Scan(&r.Seq, &r.Value, &r.Secondary, &r.Smoothed, &r.Class, &r.Temperature, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %v", err)
		}
		if r.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// Timestamps are stored as RFC3339 text so rows stay readable in the sqlite
// shell and round-trip exactly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %v", s, err)
	}
	return t, nil
}

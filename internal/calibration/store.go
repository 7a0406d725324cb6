package calibration

import (
	"encoding/json"
	"fmt"

	"github.com/forcelab/forcemon/internal/fsutil"
	"github.com/forcelab/forcemon/internal/monitoring"
	"github.com/forcelab/forcemon/internal/timeutil"
	"github.com/forcelab/forcemon/internal/units"
)

// Store loads and saves the calibration record for one sensor family. Load
// never fails: a missing, corrupt, or partially populated file degrades to
// the factory defaults with a logged warning so the reader always has a
// usable record.
type Store struct {
	path   string
	family units.Family
	fs     fsutil.FileSystem
	clock  timeutil.Clock
}

// NewStore creates a Store persisting to path for the given family.
func NewStore(path string, family units.Family, fs fsutil.FileSystem, clock timeutil.Clock) *Store {
	return &Store{path: path, family: family, fs: fs, clock: clock}
}

// legacyFields mirrors the key names used by schema 1.0 documents so old
// files migrate transparently at load time.
type legacyFields struct {
	TareVoltage     *float64 `json:"tare_voltage"`
	MaxForceNewtons *float64 `json:"max_force_newtons"`
	VoltageMin      *float64 `json:"voltage_min"`
	VoltageMax      *float64 `json:"voltage_max"`
	TareOffset      *float64 `json:"tare_offset"`
}

// Load reads the persisted record. Missing fields are back-filled from the
// family defaults; legacy schema 1.0 key names are migrated; any read or
// parse failure falls back to defaults with a warning. The returned record
// always validates.
func (s *Store) Load() *Record {
	rec := DefaultRecord(s.family)

	if !s.fs.Exists(s.path) {
		monitoring.Logf("calibration: no file at %s, using %s defaults", s.path, s.family)
		return rec
	}

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		monitoring.Logf("calibration: failed to read %s: %v, using defaults", s.path, err)
		return DefaultRecord(s.family)
	}

	// Unmarshal over a default-populated record: keys absent from an older
	// document keep their default values.
	if err := json.Unmarshal(data, rec); err != nil {
		monitoring.Logf("calibration: corrupt file %s: %v, using defaults", s.path, err)
		return DefaultRecord(s.family)
	}

	var legacy legacyFields
	if err := json.Unmarshal(data, &legacy); err == nil {
		s.applyLegacy(rec, legacy)
	}

	// A document written for a different family or with broken values is as
	// unusable as a corrupt one.
	rec.SensorFamily = s.family
	if err := rec.Validate(); err != nil {
		monitoring.Logf("calibration: invalid record in %s: %v, using defaults", s.path, err)
		return DefaultRecord(s.family)
	}

	if rec.Schema != SchemaVersion {
		monitoring.Logf("calibration: migrated %s from schema %q", s.path, rec.Schema)
		rec.Schema = SchemaVersion
	}
	return rec
}

// applyLegacy overlays schema 1.0 key names onto the record.
func (s *Store) applyLegacy(rec *Record, legacy legacyFields) {
	if legacy.TareVoltage != nil {
		rec.TareReference = *legacy.TareVoltage
	}
	if legacy.TareOffset != nil {
		rec.TareReference = *legacy.TareOffset
	}
	if legacy.MaxForceNewtons != nil {
		rec.MaxPhysicalValue = *legacy.MaxForceNewtons
	}
	if legacy.VoltageMin != nil {
		rec.RangeMin = *legacy.VoltageMin
	}
	if legacy.VoltageMax != nil {
		rec.RangeMax = *legacy.VoltageMax
	}
}

// Save stamps the record with the current time and writes it atomically: a
// serialized copy goes to a temp sibling which is then renamed over the
// destination. The in-memory record remains usable even when the write
// fails; the caller should warn that the change will not survive a restart.
func (s *Store) Save(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid calibration: %w", err)
	}

	now := s.clock.Now()
	rec.CalibratedAt = &now
	rec.Schema = SchemaVersion

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		monitoring.Logf("calibration: failed to serialize record: %v", err)
		return fmt.Errorf("serialize calibration: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := s.fs.WriteFile(tmp, data, 0o644); err != nil {
		monitoring.Logf("calibration: failed to write %s: %v", tmp, err)
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		monitoring.Logf("calibration: failed to replace %s: %v", s.path, err)
		return fmt.Errorf("replace calibration file: %w", err)
	}
	return nil
}

// Backup copies the current persisted file to a timestamped sibling. A
// failed or pointless backup (no file yet) is logged and otherwise ignored.
func (s *Store) Backup() {
	if !s.fs.Exists(s.path) {
		return
	}
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		monitoring.Logf("calibration: backup read failed: %v", err)
		return
	}
	name := fmt.Sprintf("%s.backup.%s", s.path, s.clock.Now().Format("20060102_150405"))
	if err := s.fs.WriteFile(name, data, 0o644); err != nil {
		monitoring.Logf("calibration: backup write failed: %v", err)
		return
	}
	monitoring.Logf("calibration: backed up %s to %s", s.path, name)
}

// Status returns a deterministic human-readable summary of calibration age
// and stability, e.g. "calibrated 3 days ago | good stability".
func (s *Store) Status(rec *Record) string {
	if rec == nil || rec.CalibratedAt == nil {
		return "never calibrated"
	}

	days := int(s.clock.Since(*rec.CalibratedAt).Hours() / 24)
	var age string
	switch {
	case days <= 0:
		age = "today"
	case days == 1:
		age = "yesterday"
	case days < 7:
		age = fmt.Sprintf("%d days ago", days)
	case days < 30:
		age = fmt.Sprintf("%d weeks ago", days/7)
	default:
		age = fmt.Sprintf("%d months ago", days/30)
	}

	return fmt.Sprintf("calibrated %s | %s stability", age, stabilityTier(rec))
}

// stabilityTier buckets the record's stability stdev against the family
// thresholds (volt-scale for FC2231, gram-scale for OpenScale).
func stabilityTier(rec *Record) string {
	if rec.Stability == nil {
		return "unknown"
	}
	th := units.ThresholdsFor(rec.SensorFamily)
	stdev := *rec.Stability
	switch {
	case stdev < th.StabilityExcellent:
		return "excellent"
	case stdev < th.StabilityGood:
		return "good"
	case stdev < th.StabilityFair:
		return "fair"
	default:
		return "poor"
	}
}

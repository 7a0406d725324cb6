package calibration

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/forcelab/forcemon/internal/units"
)

func TestDefaultRecord_Validates(t *testing.T) {
	for _, family := range units.ValidFamilies {
		t.Run(string(family), func(t *testing.T) {
			rec := DefaultRecord(family)
			if err := rec.Validate(); err != nil {
				t.Errorf("default %s record does not validate: %v", family, err)
			}
			if rec.CalibratedAt != nil {
				t.Error("factory record should have no calibration timestamp")
			}
		})
	}
}

func TestDefaultRecord_FC2231Constants(t *testing.T) {
	rec := DefaultRecord(units.FamilyFC2231)
	if rec.TareReference != 0.5 {
		t.Errorf("tare = %g, want 0.5", rec.TareReference)
	}
	if rec.RangeMin != 0.5 || rec.RangeMax != 4.5 {
		t.Errorf("range = [%g, %g], want [0.5, 4.5]", rec.RangeMin, rec.RangeMax)
	}
	if rec.MaxPhysicalValue != 100.0 {
		t.Errorf("max force = %g, want 100", rec.MaxPhysicalValue)
	}
}

func TestRecord_Validate(t *testing.T) {
	base := func() *Record { return DefaultRecord(units.FamilyFC2231) }

	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr string
	}{
		{"valid", func(r *Record) {}, ""},
		{"unknown family", func(r *Record) { r.SensorFamily = "hx711" }, "unknown sensor family"},
		{"zero scale", func(r *Record) { r.ScaleFactor = 0 }, "scale factor must be nonzero"},
		{"huge scale", func(r *Record) { r.ScaleFactor = 1001 }, "out of sane range"},
		{"negative huge scale", func(r *Record) { r.ScaleFactor = -2000 }, "out of sane range"},
		{"empty range", func(r *Record) { r.RangeMax = r.RangeMin }, "range"},
		{"inverted range", func(r *Record) { r.RangeMin, r.RangeMax = 4.5, 0.5 }, "range"},
		{"implausible tare", func(r *Record) { r.TareReference = 6.0 }, "tare voltage"},
		{"tare below floor", func(r *Record) { r.TareReference = 0.3 }, "tare voltage"},
		{"zero max force", func(r *Record) { r.MaxPhysicalValue = 0 }, "max force"},
		{"absurd max force", func(r *Record) { r.MaxPhysicalValue = 20000 }, "max force"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_ValidateNil(t *testing.T) {
	var rec *Record
	if err := rec.Validate(); err == nil {
		t.Error("nil record should not validate")
	}
}

func TestRecord_OpenScaleSkipsVoltageChecks(t *testing.T) {
	rec := DefaultRecord(units.FamilyOpenScale)
	rec.TareReference = -15901.7 // gram-scale tare, far outside voltage bounds
	if err := rec.Validate(); err != nil {
		t.Errorf("gram-scale tare rejected: %v", err)
	}
}

func TestRecord_Clone(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	stability := 0.002
	rec := DefaultRecord(units.FamilyFC2231)
	rec.CalibratedAt = &now
	rec.Stability = &stability
	rec.KnownPoint = &KnownPoint{AppliedValue: 50, RawDelta: 2.0, RawPerUnit: 0.04}

	clone := rec.Clone()
	if diff := cmp.Diff(rec, clone); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}

	// Mutating the clone's pointer fields must not touch the original.
	*clone.Stability = 9.9
	clone.KnownPoint.AppliedValue = 1
	if *rec.Stability != 0.002 {
		t.Error("clone shares Stability pointer with original")
	}
	if rec.KnownPoint.AppliedValue != 50 {
		t.Error("clone shares KnownPoint pointer with original")
	}
}

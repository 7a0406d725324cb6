// Package stream turns a line-oriented serial byte stream into calibrated
// reading events. It holds the wire-format parsers for both sensor
// protocols and the Reader state machine that orchestrates calibration,
// smoothing, drift tracking, and session statistics.
package stream

import (
	"strconv"
	"strings"
	"time"

	"github.com/forcelab/forcemon/internal/reading"
	"github.com/forcelab/forcemon/internal/units"
)

// controlPrefix marks device control messages on the force-sensor protocol.
// Anything starting with it is a banner or command acknowledgement, never a
// data line.
const controlPrefix = "FC2231,"

// loadCellUnitTag is the unit literal expected at field 2 of a load-cell
// data line. A different tag there means the line is menu output, not data.
const loadCellUnitTag = "lbs"

// ControlKind enumerates recognized device control messages.
type ControlKind string

const (
	// ControlReady is the boot banner that marks the end of startup noise.
	ControlReady ControlKind = "READY"

	// ControlTareReading acknowledges one sample taken during an on-device
	// tare.
	ControlTareReading ControlKind = "TARE_READING"

	// ControlTareComplete acknowledges the end of an on-device tare.
	ControlTareComplete ControlKind = "TARE_COMPLETE"

	// ControlUnknown covers any other control-prefixed line.
	ControlUnknown ControlKind = "UNKNOWN"
)

// Control is a parsed device control message.
type Control struct {
	Kind ControlKind

	// Fields holds the raw comma fields after the device prefix.
	Fields []string
}

// ParseControl recognizes control lines on the force-sensor protocol. It
// returns false for data lines and for anything on the load-cell protocol,
// which has no control messages.
func ParseControl(line string) (Control, bool) {
	if !strings.HasPrefix(line, controlPrefix) {
		return Control{}, false
	}

	fields := strings.Split(strings.TrimPrefix(line, controlPrefix), ",")
	ctrl := Control{Kind: ControlUnknown, Fields: fields}

	switch fields[0] {
	case "READY":
		ctrl.Kind = ControlReady
	case "TARE":
		if len(fields) > 1 {
			switch fields[1] {
			case "READING":
				ctrl.Kind = ControlTareReading
			case "COMPLETE":
				ctrl.Kind = ControlTareComplete
			}
		}
	}

	return ctrl, true
}

// ParseLine parses one data line in the given family's wire format. It
// returns false for control lines, malformed lines, and lines whose numeric
// fields fail to parse; such lines are skipped, never fatal.
func ParseLine(line string, family units.Family, receivedAt time.Time) (reading.RawSample, bool) {
	if family == units.FamilyOpenScale {
		return parseLoadCellLine(line, receivedAt)
	}
	return parseForceLine(line, receivedAt)
}

// parseForceLine parses the force-sensor protocol:
//
//	reading#,voltage,V,temperature,force_N,N,force_g,g,timestamp
//
// At least 9 comma fields are required. The device computes its own force
// fields from a fixed onboard tare; only the raw voltage and temperature are
// trusted, conversion happens host-side against the current calibration.
func parseForceLine(line string, receivedAt time.Time) (reading.RawSample, bool) {
	if strings.HasPrefix(line, controlPrefix) {
		return reading.RawSample{}, false
	}

	fields := strings.Split(line, ",")
	if len(fields) < 9 {
		return reading.RawSample{}, false
	}

	seq, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return reading.RawSample{}, false
	}
	volts, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return reading.RawSample{}, false
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return reading.RawSample{}, false
	}

	return reading.RawSample{
		Seq:         seq,
		Value:       volts,
		Unit:        strings.TrimSpace(fields[2]),
		Temperature: temp,
		Fields:      fields[4:],
		ReceivedAt:  receivedAt,
	}, true
}

// parseLoadCellLine parses the load-cell protocol:
//
//	reading#,raw_value,lbs,temperature
//
// At least 4 comma fields are required and field 2 must carry the expected
// unit tag; the board prints configuration menus on the same port and those
// lines fail the tag check.
func parseLoadCellLine(line string, receivedAt time.Time) (reading.RawSample, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return reading.RawSample{}, false
	}

	if strings.TrimSpace(fields[2]) != loadCellUnitTag {
		return reading.RawSample{}, false
	}

	seq, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return reading.RawSample{}, false
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return reading.RawSample{}, false
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return reading.RawSample{}, false
	}

	return reading.RawSample{
		Seq:         seq,
		Value:       raw,
		Unit:        loadCellUnitTag,
		Temperature: temp,
		Fields:      fields[4:],
		ReceivedAt:  receivedAt,
	}, true
}

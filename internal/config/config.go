// Package config loads runtime settings for the sensor monitor. Every field
// is optional: Load accepts partial JSON files and the Get* accessors fill in
// defaults, so the same file can carry one override or a full profile.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forcelab/forcemon/internal/serialmux"
	"github.com/forcelab/forcemon/internal/units"
)

// Config represents the root configuration for the monitor.
type Config struct {
	// Sensor selection
	SensorFamily *string `json:"sensor_family,omitempty"`

	// Serial connection
	PortPath    *string `json:"port_path,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty"`
	SettleDelay *string `json:"settle_delay,omitempty"` // duration string like "2s"

	// Startup lines to drop while the board resets and prints its banner
	DiscardLines *int `json:"discard_lines,omitempty"`

	// Reading pipeline
	SmoothingWindow *int    `json:"smoothing_window,omitempty"`
	PollInterval    *string `json:"poll_interval,omitempty"` // duration string like "50ms"

	// Calibration
	CalibrationPath    *string `json:"calibration_path,omitempty"`
	CalibrationSamples *int    `json:"calibration_samples,omitempty"`

	// Session storage
	DatabasePath *string `json:"database_path,omitempty"`

	// MQTT publishing
	MQTTBroker      *string `json:"mqtt_broker,omitempty"`
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under the max file size. Fields omitted from the JSON retain their
// defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that any set values are usable.
func (c *Config) Validate() error {
	if c.SensorFamily != nil {
		if !units.IsValid(units.Family(*c.SensorFamily)) {
			return fmt.Errorf("unknown sensor_family %q: expected one of %s", *c.SensorFamily, units.ValidFamiliesString())
		}
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}

	if c.DiscardLines != nil && *c.DiscardLines < 0 {
		return fmt.Errorf("discard_lines must be non-negative, got %d", *c.DiscardLines)
	}

	if c.CalibrationSamples != nil && *c.CalibrationSamples < 1 {
		return fmt.Errorf("calibration_samples must be at least 1, got %d", *c.CalibrationSamples)
	}

	if c.SettleDelay != nil && *c.SettleDelay != "" {
		if _, err := time.ParseDuration(*c.SettleDelay); err != nil {
			return fmt.Errorf("invalid settle_delay '%s': %w", *c.SettleDelay, err)
		}
	}

	if c.PollInterval != nil && *c.PollInterval != "" {
		if _, err := time.ParseDuration(*c.PollInterval); err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
	}

	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}

	return nil
}

// GetSensorFamily returns the configured sensor family or the default.
func (c *Config) GetSensorFamily() units.Family {
	if c.SensorFamily == nil {
		return units.FamilyFC2231
	}
	return units.Family(*c.SensorFamily)
}

// GetPortPath returns the serial device path or the default.
func (c *Config) GetPortPath() string {
	if c.PortPath == nil || *c.PortPath == "" {
		return "/dev/ttyUSB0"
	}
	return *c.PortPath
}

// PortOptions assembles the serial connection parameters. Unset fields stay
// zero so serialmux applies its own 9600 8N1 defaults.
func (c *Config) PortOptions() serialmux.PortOptions {
	opts := serialmux.PortOptions{}
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetSettleDelay returns how long to wait after opening the port before
// trusting lines, covering the Arduino auto-reset on connect.
func (c *Config) GetSettleDelay() time.Duration {
	if c.SettleDelay == nil || *c.SettleDelay == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.SettleDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetDiscardLines returns how many startup lines to drop or the default.
func (c *Config) GetDiscardLines() int {
	if c.DiscardLines == nil {
		return 20
	}
	return *c.DiscardLines
}

// GetSmoothingWindow returns the median filter window size or the default.
func (c *Config) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 10
	}
	return *c.SmoothingWindow
}

// GetPollInterval returns how often the reader polls its subscription.
func (c *Config) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return 50 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil {
		return 50 * time.Millisecond
	}
	return d
}

// GetCalibrationPath returns the calibration file path for the configured
// family. The default keeps one file per family so switching sensors does not
// clobber the other's calibration.
func (c *Config) GetCalibrationPath() string {
	if c.CalibrationPath != nil && *c.CalibrationPath != "" {
		return *c.CalibrationPath
	}
	return fmt.Sprintf("calibration_%s.json", c.GetSensorFamily())
}

// GetCalibrationSamples returns how many samples a live calibration capture
// collects per step.
func (c *Config) GetCalibrationSamples() int {
	if c.CalibrationSamples == nil {
		return 20
	}
	return *c.CalibrationSamples
}

// GetDatabasePath returns the session database path or the default.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "sessions.db"
	}
	return *c.DatabasePath
}

// GetMQTTBroker returns the MQTT broker URL; empty disables publishing.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopicPrefix returns the topic prefix or the default.
func (c *Config) GetMQTTTopicPrefix() string {
	if c.MQTTTopicPrefix == nil || *c.MQTTTopicPrefix == "" {
		return "forcemon"
	}
	return *c.MQTTTopicPrefix
}

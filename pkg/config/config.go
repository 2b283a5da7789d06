// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads cardiostat settings from YAML. Command line flags
// are applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Defaults
const (
	DefaultBaud          = 115200
	DefaultReadTimeout   = 100 * time.Millisecond
	DefaultSinkBuffer    = 1024
	DefaultMQTTServer    = "tcp://localhost:1883"
	DefaultMQTTTopic     = "cardiostat"
	DefaultMQTTEncoding  = EncodingJSON
	DefaultLogLevel      = "info"
	DefaultWaveformWidth = telemetry.DefaultWaveformWindow
)

// MQTT payload encodings
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// SerialConfig selects and tunes the transport. URL takes precedence over
// Port when both are set.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	URL         string        `yaml:"url"`
	Username    string        `yaml:"username"`
	NoSSLVerify bool          `yaml:"no_ssl_verify"`
}

// AcquisitionConfig tunes the acquisition loop
type AcquisitionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	SinkBuffer   int           `yaml:"sink_buffer"`
	Window       int           `yaml:"window"`
}

// CalibrationConfig controls zero-offset calibration passes
type CalibrationConfig struct {
	Samples   int           `yaml:"samples"`
	Timeout   time.Duration `yaml:"timeout"`
	Estimator string        `yaml:"estimator"`
	OnStart   bool          `yaml:"on_start"`
}

// ChannelConfig is the two-point calibration of one sensor line
type ChannelConfig struct {
	Name      string  `yaml:"name"`
	TargetMin float64 `yaml:"target_min"`
	TargetMax float64 `yaml:"target_max"`
	RawMin    int     `yaml:"raw_min"`
	RawMax    int     `yaml:"raw_max"`
}

// MQTTConfig configures the bridge output
type MQTTConfig struct {
	Server   string `yaml:"server"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	Encoding string `yaml:"encoding"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete cardiostat configuration
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Channels    []ChannelConfig   `yaml:"channels"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Log         LogConfig         `yaml:"log"`
}

// Default returns the built-in configuration for the reference sensor set
func Default() Config {
	channels := make([]ChannelConfig, telemetry.NumChannels)
	for i := range channels {
		rawMin, rawMax := telemetry.DefaultRawPoints(uint8(i))
		channels[i] = ChannelConfig{
			Name:      telemetry.ChannelName(uint8(i)),
			TargetMin: telemetry.DefaultTargetMin,
			TargetMax: telemetry.DefaultTargetMax,
			RawMin:    rawMin,
			RawMax:    rawMax,
		}
	}
	return Config{
		Serial: SerialConfig{
			Baud:        DefaultBaud,
			ReadTimeout: DefaultReadTimeout,
		},
		Acquisition: AcquisitionConfig{
			PollInterval: time.Millisecond,
			SinkBuffer:   DefaultSinkBuffer,
			Window:       DefaultWaveformWidth,
		},
		Calibration: CalibrationConfig{
			Samples:   telemetry.DefaultCalibrationSamples,
			Timeout:   telemetry.DefaultCalibrationTimeout * time.Second,
			Estimator: telemetry.EstimatorMode,
		},
		Channels: channels,
		MQTT: MQTTConfig{
			Server:   DefaultMQTTServer,
			Topic:    DefaultMQTTTopic,
			Encoding: DefaultMQTTEncoding,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result. Keys
// left out of the document keep their default value.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the tools cannot run with
func (c Config) Validate() error {
	var errs []error

	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be > 0, got %d", c.Serial.Baud))
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("serial.read_timeout must be > 0, got %s", c.Serial.ReadTimeout))
	}
	if c.Acquisition.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("acquisition.poll_interval must not be negative"))
	}
	if c.Acquisition.SinkBuffer <= 0 {
		errs = append(errs, fmt.Errorf("acquisition.sink_buffer must be > 0, got %d", c.Acquisition.SinkBuffer))
	}
	if c.Acquisition.Window <= 0 {
		errs = append(errs, fmt.Errorf("acquisition.window must be > 0, got %d", c.Acquisition.Window))
	}
	if c.Calibration.Samples <= 0 {
		errs = append(errs, fmt.Errorf("calibration.samples must be > 0, got %d", c.Calibration.Samples))
	}
	if c.Calibration.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("calibration.timeout must be > 0, got %s", c.Calibration.Timeout))
	}
	if _, err := telemetry.EstimatorByName(c.Calibration.Estimator); err != nil {
		errs = append(errs, fmt.Errorf("calibration.estimator: %w", err))
	}

	if len(c.Channels) != telemetry.NumChannels {
		errs = append(errs, fmt.Errorf("channels: expected %d entries, got %d", telemetry.NumChannels, len(c.Channels)))
	}
	for i, ch := range c.Channels {
		if ch.RawMin < 0 || ch.RawMin > telemetry.MaxRaw || ch.RawMax < 0 || ch.RawMax > telemetry.MaxRaw {
			errs = append(errs, fmt.Errorf("channels[%d]: raw points must be within 0..%d", i, telemetry.MaxRaw))
		}
		if ch.RawMin == ch.RawMax {
			errs = append(errs, fmt.Errorf("channels[%d]: %w", i, telemetry.ErrDegenerateCalibration))
		}
		if ch.TargetMin == ch.TargetMax {
			errs = append(errs, fmt.Errorf("channels[%d]: target_min and target_max are equal", i))
		}
	}

	switch strings.ToLower(c.MQTT.Encoding) {
	case EncodingJSON, EncodingCBOR:
	default:
		errs = append(errs, fmt.Errorf("mqtt.encoding must be %q or %q, got %q", EncodingJSON, EncodingCBOR, c.MQTT.Encoding))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Calibrator builds the channel calibration described by the config
func (c Config) Calibrator() (*telemetry.Calibrator, error) {
	if len(c.Channels) != telemetry.NumChannels {
		return nil, fmt.Errorf("channels: expected %d entries, got %d", telemetry.NumChannels, len(c.Channels))
	}
	var channels [telemetry.NumChannels]telemetry.Channel
	for i, ch := range c.Channels {
		cal, err := telemetry.NewChannel(ch.TargetMin, ch.TargetMax, ch.RawMin, ch.RawMax)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		channels[i] = cal
	}
	return telemetry.NewCalibrator(channels), nil
}

// Estimator returns the configured offset estimator
func (c Config) Estimator() (telemetry.OffsetEstimator, error) {
	return telemetry.EstimatorByName(c.Calibration.Estimator)
}

// LogLevel returns the parsed log level
func (c Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

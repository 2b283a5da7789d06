// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqtt publishes calibrated samples and calibration results to an
// MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/config"
	"github.com/Thermoquad/cardiostat/pkg/output"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
)

const (
	clientIDPrefix   = "cardiostat"
	calibrationTopic = "calibration"
	unitMMHg         = "mmHg"
	connectTimeout   = 10 * time.Second
	disconnectQuiesc = 250 // ms
)

// SamplePayload is the message body of a per-channel sample
type SamplePayload struct {
	Channel   string  `json:"channel" cbor:"channel"`
	Raw       uint16  `json:"raw" cbor:"raw"`
	Value     float64 `json:"value" cbor:"value"`
	Unit      string  `json:"unit" cbor:"unit"`
	Timestamp int64   `json:"ts" cbor:"ts"` // unix milliseconds
}

// CalibrationPayload is the retained message body of the last calibration
type CalibrationPayload struct {
	Offsets    map[string]int `json:"offsets" cbor:"offsets"`
	Counts     map[string]int `json:"counts" cbor:"counts"`
	Starved    []string       `json:"starved,omitempty" cbor:"starved,omitempty"`
	TimedOut   bool           `json:"timed_out" cbor:"timed_out"`
	DurationMs int64          `json:"duration_ms" cbor:"duration_ms"`
}

// publisher is the subset of paho.Client the output needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Output publishes to <topic>/<channel-name> and <topic>/calibration
type Output struct {
	client  publisher
	names   [telemetry.NumChannels]string
	topics  [telemetry.NumChannels]string
	calib   string
	marshal func(v interface{}) ([]byte, error)
}

var (
	_ output.Output               = (*Output)(nil)
	_ output.CalibrationPublisher = (*Output)(nil)
)

// New connects to the broker described by cfg. Channel names come from
// the channel configuration; missing names fall back to the defaults.
func New(cfg config.MQTTConfig, channels []config.ChannelConfig) (*Output, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Server).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newOutput(client, cfg, channels)
}

func newOutput(client publisher, cfg config.MQTTConfig, channels []config.ChannelConfig) (*Output, error) {
	marshal, err := Marshaler(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(cfg.Topic, "/")
	if base == "" {
		base = config.DefaultMQTTTopic
	}
	m := &Output{
		client:  client,
		calib:   base + "/" + calibrationTopic,
		marshal: marshal,
	}
	for ch := range m.topics {
		m.names[ch] = channelName(uint8(ch), channels)
		m.topics[ch] = ChannelTopic(base, m.names[ch])
	}
	return m, nil
}

// DefaultClientID derives a stable client id from the host machine id
func DefaultClientID() string {
	id, err := machineid.ProtectedID(clientIDPrefix)
	if err != nil {
		return fmt.Sprintf("%s-%d", clientIDPrefix, os.Getpid())
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return clientIDPrefix + "-" + id
}

// Marshaler returns the payload encoder for an encoding name
func Marshaler(encoding string) (func(v interface{}) ([]byte, error), error) {
	switch strings.ToLower(encoding) {
	case config.EncodingJSON, "":
		return json.Marshal, nil
	case config.EncodingCBOR:
		return cbor.Marshal, nil
	default:
		return nil, fmt.Errorf("unsupported mqtt encoding: %q", encoding)
	}
}

// ChannelTopic builds the per-channel state topic
func ChannelTopic(base, name string) string {
	return base + "/" + strings.ToLower(name)
}

func channelName(ch uint8, channels []config.ChannelConfig) string {
	if int(ch) < len(channels) && channels[ch].Name != "" {
		return channels[ch].Name
	}
	return telemetry.ChannelName(ch)
}

// NewSamplePayload converts a sample to its message body, labeled with
// the channel's configured name
func NewSamplePayload(name string, s telemetry.Sample) SamplePayload {
	return SamplePayload{
		Channel:   name,
		Raw:       s.Raw,
		Value:     s.Value,
		Unit:      unitMMHg,
		Timestamp: s.Timestamp.UnixMilli(),
	}
}

// NewCalibrationPayload converts a calibration result to its message body,
// keyed by the configured channel names
func NewCalibrationPayload(names [telemetry.NumChannels]string, r telemetry.CalibrationResult) CalibrationPayload {
	p := CalibrationPayload{
		Offsets:    make(map[string]int, telemetry.NumChannels),
		Counts:     make(map[string]int, telemetry.NumChannels),
		TimedOut:   r.TimedOut,
		DurationMs: r.Duration.Milliseconds(),
	}
	for ch := uint8(0); ch < telemetry.NumChannels; ch++ {
		name := names[ch]
		p.Offsets[name] = r.Offsets[ch]
		p.Counts[name] = r.Counts[ch]
		if r.Starved[ch] {
			p.Starved = append(p.Starved, name)
		}
	}
	return p
}

// Topic returns the state topic for a channel
func (m *Output) Topic(ch uint8) string {
	if int(ch) < len(m.topics) {
		return m.topics[ch]
	}
	return ""
}

func (m *Output) Publish(s telemetry.Sample) error {
	topic := m.Topic(s.Channel)
	if topic == "" {
		return fmt.Errorf("no topic for channel %d", s.Channel)
	}
	b, err := m.marshal(NewSamplePayload(m.names[s.Channel], s))
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	return m.send(topic, false, b)
}

// PublishCalibration publishes the result retained, so late subscribers
// see the offsets in force
func (m *Output) PublishCalibration(r telemetry.CalibrationResult) error {
	b, err := m.marshal(NewCalibrationPayload(m.names, r))
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}
	return m.send(m.calib, true, b)
}

func (m *Output) send(topic string, retained bool, payload []byte) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

func (m *Output) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesc)
		m.client = nil
	}
	return nil
}

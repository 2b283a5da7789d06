// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/config"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

type doneToken struct{ err error }

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	messages     []message
	err          error
	disconnected bool
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.messages = append(f.messages, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &doneToken{err: f.err}
}

func (f *fakeClient) Disconnect(uint) { f.disconnected = true }

var _ paho.Token = (*doneToken)(nil)

func newTestOutput(t *testing.T, encoding string) (*Output, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	cfg := config.Default().MQTT
	cfg.Topic = "lab/bench1/"
	cfg.Encoding = encoding
	out, err := newOutput(client, cfg, config.Default().Channels)
	require.NoError(t, err)
	return out, client
}

func TestTopics(t *testing.T) {
	out, _ := newTestOutput(t, config.EncodingJSON)
	require.Equal(t, "lab/bench1/lvp", out.Topic(telemetry.ChannelLVP))
	require.Equal(t, "lab/bench1/aop", out.Topic(telemetry.ChannelAOP))
	require.Equal(t, "lab/bench1/lap", out.Topic(telemetry.ChannelLAP))
	require.Empty(t, out.Topic(telemetry.ReservedChannel))

	custom := []config.ChannelConfig{{Name: "Ventricle"}, {}, {}}
	out, err := newOutput(&fakeClient{}, config.MQTTConfig{}, custom)
	require.NoError(t, err)
	require.Equal(t, "cardiostat/ventricle", out.Topic(0))
	require.Equal(t, "cardiostat/aop", out.Topic(1))
}

func TestPublishJSON(t *testing.T) {
	out, client := newTestOutput(t, config.EncodingJSON)
	ts := time.UnixMilli(1_700_000_000_123)

	require.NoError(t, out.Publish(telemetry.Sample{Channel: 2, Raw: 140, Value: 7.1, Timestamp: ts}))
	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	require.Equal(t, "lab/bench1/lap", msg.topic)
	require.False(t, msg.retained)

	var got SamplePayload
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	require.Equal(t, SamplePayload{Channel: "LAP", Raw: 140, Value: 7.1, Unit: "mmHg", Timestamp: 1_700_000_000_123}, got)
}

func TestPublishCBOR(t *testing.T) {
	out, client := newTestOutput(t, config.EncodingCBOR)
	require.NoError(t, out.Publish(telemetry.Sample{Channel: 0, Raw: 600, Value: -3.25, Timestamp: time.UnixMilli(5)}))

	var got SamplePayload
	require.NoError(t, cbor.Unmarshal(client.messages[0].payload, &got))
	require.Equal(t, "LVP", got.Channel)
	require.Equal(t, -3.25, got.Value)
}

func TestPublishCalibrationRetained(t *testing.T) {
	out, client := newTestOutput(t, config.EncodingJSON)
	r := telemetry.CalibrationResult{
		Offsets:  [telemetry.NumChannels]int{512, 140, 0},
		Counts:   [telemetry.NumChannels]int{2000, 1500, 0},
		Starved:  [telemetry.NumChannels]bool{false, false, true},
		TimedOut: true,
		Duration: 10 * time.Second,
	}
	require.NoError(t, out.PublishCalibration(r))

	msg := client.messages[0]
	require.Equal(t, "lab/bench1/calibration", msg.topic)
	require.True(t, msg.retained)

	var got CalibrationPayload
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	require.Equal(t, map[string]int{"LVP": 512, "AOP": 140, "LAP": 0}, got.Offsets)
	require.Equal(t, []string{"LAP"}, got.Starved)
	require.True(t, got.TimedOut)
	require.Equal(t, int64(10000), got.DurationMs)
}

func TestPublishErrors(t *testing.T) {
	out, client := newTestOutput(t, config.EncodingJSON)
	client.err = errors.New("broker gone")
	require.EqualError(t, out.Publish(telemetry.Sample{}), "broker gone")
	require.Error(t, out.Publish(telemetry.Sample{Channel: telemetry.ReservedChannel}))

	require.NoError(t, out.Close())
	require.True(t, client.disconnected)
	require.Error(t, out.Publish(telemetry.Sample{}))
	require.NoError(t, out.Close())
}

func TestMarshaler(t *testing.T) {
	_, err := Marshaler("xml")
	require.Error(t, err)

	_, err = newOutput(&fakeClient{}, config.MQTTConfig{Encoding: "xml"}, nil)
	require.Error(t, err)
}

func TestDefaultClientID(t *testing.T) {
	id := DefaultClientID()
	require.True(t, strings.HasPrefix(id, "cardiostat-"))
	require.Equal(t, id, DefaultClientID(), "client id is stable")
}

func TestPublishUsesConfiguredNames(t *testing.T) {
	client := &fakeClient{}
	channels := []config.ChannelConfig{{Name: "Ventricle"}, {}, {}}
	out, err := newOutput(client, config.MQTTConfig{Topic: "loop"}, channels)
	require.NoError(t, err)

	require.NoError(t, out.Publish(telemetry.Sample{Channel: 0, Raw: 300, Value: 12.5}))
	require.Equal(t, "loop/ventricle", client.messages[0].topic)
	var sample SamplePayload
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &sample))
	require.Equal(t, "Ventricle", sample.Channel)

	r := telemetry.CalibrationResult{
		Offsets: [telemetry.NumChannels]int{510, 140, 120},
		Starved: [telemetry.NumChannels]bool{true, false, false},
	}
	require.NoError(t, out.PublishCalibration(r))
	var calib CalibrationPayload
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &calib))
	require.Equal(t, map[string]int{"Ventricle": 510, "AOP": 140, "LAP": 120}, calib.Offsets)
	require.Equal(t, []string{"Ventricle"}, calib.Starved)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/stretchr/testify/require"
)

func TestConsolePublish(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	ts := time.Date(2025, 9, 19, 14, 41, 54, 250_000_000, time.UTC)

	require.NoError(t, c.Publish(telemetry.Sample{Channel: 1, Raw: 300, Value: -12.5, Timestamp: ts}))
	require.Equal(t, "[14:41:54.250] AOP (ch1) raw= 300   -12.50 mmHg\n", buf.String())
	require.NoError(t, c.Close())
}

func TestConsolePublishCalibration(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	r := telemetry.CalibrationResult{
		Offsets:  [telemetry.NumChannels]int{512, 130, 0},
		Counts:   [telemetry.NumChannels]int{2000, 2000, 0},
		Starved:  [telemetry.NumChannels]bool{false, false, true},
		TimedOut: true,
		Duration: 10 * time.Second,
	}
	require.NoError(t, c.PublishCalibration(r))
	out := buf.String()
	require.Contains(t, out, "Calibration timed out after 10.00s")
	require.Contains(t, out, "LVP: offset= 512 samples=2000")
	require.Contains(t, out, "LAP: offset=   0 samples=0 (no data, offset reset to 0)")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"time"
)

// RawSample is a reconstructed 10-bit reading for one channel
type RawSample struct {
	Channel uint8
	Raw     uint16
}

// Sample is a calibrated reading published by the acquisition loop
type Sample struct {
	Channel   uint8
	Raw       uint16
	Value     float64 // mmHg
	Timestamp time.Time
}

// CalibrationResult is the outcome of one zero-offset calibration pass
type CalibrationResult struct {
	Offsets  [NumChannels]int
	Counts   [NumChannels]int
	Starved  [NumChannels]bool // no samples collected, offset forced to 0
	TimedOut bool
	Duration time.Duration
}

// ChannelName returns the display name for a channel id
func ChannelName(ch uint8) string {
	if int(ch) < len(channelNames) {
		return channelNames[ch]
	}
	return fmt.Sprintf("CH%d", ch)
}

// ChannelByName resolves a display name back to its channel id
func ChannelByName(name string) (uint8, bool) {
	for i, n := range channelNames {
		if n == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateCalibration is returned when both calibration points share
// the same raw reading.
var ErrDegenerateCalibration = errors.New("calibration points have equal raw values")

// Channel holds the linear conversion for one sensor line
type Channel struct {
	K      float64 // mmHg per ADC count
	Offset int     // raw ADC reading at zero pressure
}

// NewChannel derives the scale from two calibration points. The initial
// offset is the raw reading at zero pressure, extrapolated from rawMin
// when targetMin is not zero.
func NewChannel(targetMin, targetMax float64, rawMin, rawMax int) (Channel, error) {
	if rawMax == rawMin {
		return Channel{}, fmt.Errorf("%w: %d", ErrDegenerateCalibration, rawMin)
	}
	k := (targetMax - targetMin) / float64(rawMax-rawMin)
	return Channel{
		K:      k,
		Offset: rawMin - int(math.Round(targetMin/k)),
	}, nil
}

// Physical converts a raw reading to mmHg. Negative results are kept.
func (c Channel) Physical(raw uint16) float64 {
	return c.K * float64(int(raw)-c.Offset)
}

// Raw converts a pressure back to the nearest ADC reading, clamped to the
// 10-bit range
func (c Channel) Raw(value float64) uint16 {
	if c.K == 0 {
		return 0
	}
	raw := math.Round(value/c.K) + float64(c.Offset)
	if raw < 0 {
		return 0
	}
	if raw > MaxRaw {
		return MaxRaw
	}
	return uint16(raw)
}

// Calibrator applies per-channel calibration. It is owned by the
// acquisition loop and not safe for concurrent use.
type Calibrator struct {
	channels [NumChannels]Channel
}

// NewCalibrator creates a calibrator from explicit channel settings
func NewCalibrator(channels [NumChannels]Channel) *Calibrator {
	return &Calibrator{channels: channels}
}

// DefaultCalibrator returns the reference sensor calibration
func DefaultCalibrator() *Calibrator {
	var channels [NumChannels]Channel
	for i, pts := range defaultRawPoints {
		// Reference points are distinct, error is impossible
		channels[i], _ = NewChannel(DefaultTargetMin, DefaultTargetMax, pts[0], pts[1])
	}
	return NewCalibrator(channels)
}

// DefaultRawPoints returns the reference sensor readings at
// DefaultTargetMin and DefaultTargetMax for a channel
func DefaultRawPoints(ch uint8) (rawMin, rawMax int) {
	return defaultRawPoints[ch][0], defaultRawPoints[ch][1]
}

// Channel returns the settings for one channel
func (c *Calibrator) Channel(ch uint8) Channel {
	return c.channels[ch]
}

// Physical converts a raw reading on a channel to mmHg
func (c *Calibrator) Physical(ch uint8, raw uint16) float64 {
	return c.channels[ch].Physical(raw)
}

// Offsets returns the current zero offsets
func (c *Calibrator) Offsets() [NumChannels]int {
	var out [NumChannels]int
	for i, ch := range c.channels {
		out[i] = ch.Offset
	}
	return out
}

// SetOffsets installs new zero offsets; scales are unchanged
func (c *Calibrator) SetOffsets(offsets [NumChannels]int) {
	for i, off := range offsets {
		c.channels[i].Offset = off
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"sync/atomic"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
)

// SampleSink receives calibrated samples on the loop goroutine. It must
// not block.
type SampleSink interface {
	OnSample(s telemetry.Sample)
}

// CalibrationSink receives the result of every completed calibration pass
// on the loop goroutine. It must not block.
type CalibrationSink interface {
	OnCalibrationDone(r telemetry.CalibrationResult)
}

// SampleSinkFunc adapts a function to SampleSink.
type SampleSinkFunc func(s telemetry.Sample)

// OnSample implements SampleSink.
func (f SampleSinkFunc) OnSample(s telemetry.Sample) { f(s) }

// CalibrationSinkFunc adapts a function to CalibrationSink.
type CalibrationSinkFunc func(r telemetry.CalibrationResult)

// OnCalibrationDone implements CalibrationSink.
func (f CalibrationSinkFunc) OnCalibrationDone(r telemetry.CalibrationResult) { f(r) }

type discard struct{}

func (discard) OnSample(telemetry.Sample)                     {}
func (discard) OnCalibrationDone(telemetry.CalibrationResult) {}

// ChannelSink hands samples and calibration results to another goroutine
// through buffered channels. Sends never block: when a buffer is full the
// item is dropped and counted.
type ChannelSink struct {
	samples      chan telemetry.Sample
	calibrations chan telemetry.CalibrationResult
	dropped      atomic.Uint64
}

// NewChannelSink creates a sink buffering up to size samples
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 1
	}
	return &ChannelSink{
		samples:      make(chan telemetry.Sample, size),
		calibrations: make(chan telemetry.CalibrationResult, 4),
	}
}

// OnSample implements SampleSink.
func (c *ChannelSink) OnSample(s telemetry.Sample) {
	select {
	case c.samples <- s:
	default:
		c.dropped.Add(1)
	}
}

// OnCalibrationDone implements CalibrationSink.
func (c *ChannelSink) OnCalibrationDone(r telemetry.CalibrationResult) {
	select {
	case c.calibrations <- r:
	default:
		c.dropped.Add(1)
	}
}

// Samples returns the receive side of the sample buffer.
func (c *ChannelSink) Samples() <-chan telemetry.Sample {
	return c.samples
}

// Calibrations returns the receive side of the calibration buffer.
func (c *ChannelSink) Calibrations() <-chan telemetry.CalibrationResult {
	return c.calibrations
}

// Dropped returns how many items were discarded because a buffer was full.
func (c *ChannelSink) Dropped() uint64 {
	return c.dropped.Load()
}

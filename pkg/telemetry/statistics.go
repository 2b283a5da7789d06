// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"time"
)

// Statistics tracks sample counts and rates on the consumer side
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalSamples   uint64
	ChannelSamples [NumChannels]uint64
	Calibrations   uint64
	Starvations    uint64
	DroppedSamples uint64
	Saturated      uint64
	OutOfRange     uint64

	// Last completed calibration
	LastCalibration *CalibrationResult

	// Rates (calculated)
	SampleRate float64 // samples/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records a sample and its validation results
func (s *Statistics) Update(sample Sample, validationErrors []ValidationError) {
	s.TotalSamples++
	if int(sample.Channel) < NumChannels {
		s.ChannelSamples[sample.Channel]++
	}
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalySaturated:
			s.Saturated++
		case AnomalyOutOfRange:
			s.OutOfRange++
		}
	}
	s.LastUpdateTime = time.Now()
}

// UpdateCalibration records a completed calibration pass
func (s *Statistics) UpdateCalibration(result CalibrationResult) {
	s.Calibrations++
	for _, starved := range result.Starved {
		if starved {
			s.Starvations++
		}
	}
	r := result
	s.LastCalibration = &r
}

// SetDropped records the sink's dropped sample count
func (s *Statistics) SetDropped(n uint64) {
	s.DroppedSamples = n
}

// AnomalousValues returns the total number of flagged samples
func (s *Statistics) AnomalousValues() uint64 {
	return s.Saturated + s.OutOfRange
}

// CalculateRates calculates the sample rate
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.SampleRate = float64(s.TotalSamples) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Samples:   %8d\n", s.TotalSamples)
	for ch, n := range s.ChannelSamples {
		result += fmt.Sprintf("  %-4s           %8d\n", ChannelName(uint8(ch))+":", n)
	}
	if s.DroppedSamples > 0 {
		result += fmt.Sprintf("Dropped:         %8d\n", s.DroppedSamples)
	}
	if anomalies := s.AnomalousValues(); anomalies > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d\n", anomalies)
		if s.Saturated > 0 {
			result += fmt.Sprintf("  Saturated:        %5d\n", s.Saturated)
		}
		if s.OutOfRange > 0 {
			result += fmt.Sprintf("  Out of Range:     %5d\n", s.OutOfRange)
		}
	}
	if s.Calibrations > 0 {
		result += fmt.Sprintf("Calibrations:    %8d\n", s.Calibrations)
		if s.LastCalibration != nil {
			result += fmt.Sprintf("  Offsets:        %v\n", s.LastCalibration.Offsets)
		}
	}
	result += fmt.Sprintf("Sample Rate:     %8.1f samples/sec\n", s.SampleRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

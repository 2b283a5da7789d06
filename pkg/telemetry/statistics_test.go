// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"strings"
	"testing"
)

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	s.Update(Sample{Channel: 0, Raw: 500, Value: 100}, nil)
	s.Update(Sample{Channel: 2, Raw: 0, Value: -60}, ValidateSample(Sample{Channel: 2, Raw: 0, Value: -60}))
	s.Update(Sample{Channel: 2, Raw: 600, Value: 120}, nil)

	if s.TotalSamples != 3 {
		t.Errorf("TotalSamples = %d, want 3", s.TotalSamples)
	}
	if s.ChannelSamples != [NumChannels]uint64{1, 0, 2} {
		t.Errorf("ChannelSamples = %v", s.ChannelSamples)
	}
	if s.Saturated != 1 || s.OutOfRange != 1 {
		t.Errorf("Saturated=%d OutOfRange=%d, want 1 and 1", s.Saturated, s.OutOfRange)
	}
	if s.AnomalousValues() != 2 {
		t.Errorf("AnomalousValues = %d, want 2", s.AnomalousValues())
	}
}

func TestStatistics_UpdateCalibration(t *testing.T) {
	s := NewStatistics()
	s.UpdateCalibration(CalibrationResult{
		Offsets: [NumChannels]int{512, 0, 130},
		Starved: [NumChannels]bool{false, true, false},
	})

	if s.Calibrations != 1 || s.Starvations != 1 {
		t.Errorf("Calibrations=%d Starvations=%d", s.Calibrations, s.Starvations)
	}
	if s.LastCalibration == nil || s.LastCalibration.Offsets[0] != 512 {
		t.Errorf("LastCalibration = %+v", s.LastCalibration)
	}

	out := s.String()
	if !strings.Contains(out, "Calibrations:") || !strings.Contains(out, "[512 0 130]") {
		t.Errorf("summary missing calibration block:\n%s", out)
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.Update(Sample{Channel: 1, Raw: 400, Value: 80}, nil)
	s.SetDropped(7)

	out := s.String()
	for _, want := range []string{"Total Samples:", "AOP:", "Dropped:", "Sample Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalSamples != 0 || s.DroppedSamples != 0 || s.LastCalibration != nil {
		t.Errorf("Reset left counters: %+v", s)
	}
}

// ============================================================
// Waveform Tests
// ============================================================

func TestWaveform_Stats(t *testing.T) {
	w := NewWaveform(4)
	if _, ok := w.Stats(0); ok {
		t.Fatal("empty channel should report ok=false")
	}

	for _, v := range []float64{80, 120, -2, 60} {
		w.Add(Sample{Channel: 0, Value: v})
	}
	stats, ok := w.Stats(0)
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.Systole != 120 || stats.Diastole != -2 || stats.Mean != 64.5 || stats.Count != 4 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWaveform_RollingEviction(t *testing.T) {
	w := NewWaveform(3)
	for _, v := range []float64{200, 10, 20, 30} {
		w.Add(Sample{Channel: 1, Value: v})
	}
	stats, _ := w.Stats(1)
	if stats.Systole != 30 || stats.Diastole != 10 || stats.Count != 3 {
		t.Errorf("oldest value not evicted: %+v", stats)
	}

	w.Add(Sample{Channel: 1, Value: 5})
	stats, _ = w.Stats(1)
	if stats.Diastole != 5 || stats.Mean != (20+30+5)/3.0 {
		t.Errorf("second eviction wrong: %+v", stats)
	}
}

func TestWaveform_ChannelsIndependentAndClear(t *testing.T) {
	w := NewWaveform(0)
	w.Add(Sample{Channel: 0, Value: 1})
	w.Add(Sample{Channel: 2, Value: 3})
	w.Add(Sample{Channel: ReservedChannel, Value: 99})

	if s, _ := w.Stats(2); s.Systole != 3 || s.Count != 1 {
		t.Errorf("channel 2 stats = %+v", s)
	}
	if _, ok := w.Stats(1); ok {
		t.Error("channel 1 should be empty")
	}
	if _, ok := w.Stats(ReservedChannel); ok {
		t.Error("reserved channel should never have stats")
	}

	w.Clear()
	if _, ok := w.Stats(0); ok {
		t.Error("Clear did not empty channel 0")
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"testing"
)

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestModeEstimator(t *testing.T) {
	tests := []struct {
		name    string
		samples []uint16
		want    int
	}{
		{"empty", nil, 0},
		{"single", []uint16{700}, 700},
		{"dominant", append(append(repeat(512, 5), repeat(511, 3)...), 900, 2, 513), 512},
		{"tie resolves to lowest", []uint16{300, 200, 300, 200, 100}, 200},
		{"all distinct picks lowest", []uint16{9, 4, 7}, 4},
		{"zero is a valid mode", []uint16{0, 0, 1}, 0},
		{"top of range", []uint16{MaxRaw, MaxRaw, 5}, MaxRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (ModeEstimator{}).Estimate(tt.samples); got != tt.want {
				t.Errorf("Estimate = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestModeEstimator_OutOfRangeFallsBackToMedian(t *testing.T) {
	samples := []uint16{5, 5, 2000, 3000, 4000}
	if got := (ModeEstimator{}).Estimate(samples); got != 2000 {
		t.Errorf("Estimate = %d, want median 2000", got)
	}
}

func TestMedianEstimator(t *testing.T) {
	tests := []struct {
		name    string
		samples []uint16
		want    int
	}{
		{"empty", nil, 0},
		{"odd", []uint16{3, 1, 2}, 2},
		{"even takes lower middle", []uint16{4, 1, 3, 2}, 2},
		{"unsorted input", []uint16{900, 100, 500, 500, 120}, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (MedianEstimator{}).Estimate(tt.samples); got != tt.want {
				t.Errorf("Estimate = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMedianEstimator_DoesNotMutateInput(t *testing.T) {
	samples := []uint16{3, 1, 2}
	(MedianEstimator{}).Estimate(samples)
	if samples[0] != 3 || samples[1] != 1 || samples[2] != 2 {
		t.Errorf("input modified: %v", samples)
	}
}

func TestEstimatorByName(t *testing.T) {
	for _, name := range []string{"", EstimatorMode, EstimatorMedian} {
		e, err := EstimatorByName(name)
		if err != nil {
			t.Errorf("EstimatorByName(%q): %v", name, err)
			continue
		}
		want := name
		if want == "" {
			want = EstimatorMode
		}
		if e.Name() != want {
			t.Errorf("EstimatorByName(%q).Name() = %q", name, e.Name())
		}
	}

	if _, err := EstimatorByName("mean"); err == nil {
		t.Error("expected error for unknown estimator")
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// OffsetEstimator reduces a calibration sample set to a zero offset.
// Implementations must be deterministic and return 0 for an empty set.
type OffsetEstimator interface {
	Estimate(samples []uint16) int
	Name() string
}

// Estimator names accepted by EstimatorByName
const (
	EstimatorMode   = "mode"
	EstimatorMedian = "median"
)

// EstimatorByName returns the estimator registered under name
func EstimatorByName(name string) (OffsetEstimator, error) {
	switch name {
	case EstimatorMode, "":
		return ModeEstimator{}, nil
	case EstimatorMedian:
		return MedianEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown offset estimator: %q (want %q or %q)", name, EstimatorMode, EstimatorMedian)
	}
}

// ModeEstimator picks the most frequent value; ties go to the lowest
// value. Values outside the 10-bit range cannot be histogrammed and make
// it fall back to the median.
type ModeEstimator struct{}

// Name implements OffsetEstimator
func (ModeEstimator) Name() string { return EstimatorMode }

// Estimate implements OffsetEstimator
func (ModeEstimator) Estimate(samples []uint16) int {
	if len(samples) == 0 {
		return 0
	}
	var hist [MaxRaw + 1]int
	for _, v := range samples {
		if v > MaxRaw {
			return MedianEstimator{}.Estimate(samples)
		}
		hist[v]++
	}
	best := 0
	for v := 1; v <= MaxRaw; v++ {
		if hist[v] > hist[best] {
			best = v
		}
	}
	return best
}

// MedianEstimator returns the lower median of the sample set
type MedianEstimator struct{}

// Name implements OffsetEstimator
func (MedianEstimator) Name() string { return EstimatorMedian }

// Estimate implements OffsetEstimator
func (MedianEstimator) Estimate(samples []uint16) int {
	if len(samples) == 0 {
		return 0
	}
	x := make([]float64, len(samples))
	for i, v := range samples {
		x[i] = float64(v)
	}
	sort.Float64s(x)
	return int(stat.Quantile(0.5, stat.Empirical, x, nil))
}

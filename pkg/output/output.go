// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package output defines destinations for calibrated samples. Concrete
// outputs live in subpackages.
package output

import "github.com/Thermoquad/cardiostat/pkg/telemetry"

// Output receives calibrated samples
type Output interface {
	Publish(s telemetry.Sample) error
	Close() error
}

// CalibrationPublisher is implemented by outputs that also record
// calibration results
type CalibrationPublisher interface {
	PublishCalibration(r telemetry.CalibrationResult) error
}

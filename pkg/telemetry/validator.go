// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "fmt"

// AnomalyType represents different types of sample anomalies
type AnomalyType int

const (
	AnomalySaturated AnomalyType = iota
	AnomalyOutOfRange
)

// Plausible physical range for a mock-loop pressure line
const (
	MinPlausiblePressure = -50.0
	MaxPlausiblePressure = 400.0
)

// ValidationError represents an implausible sample
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateSample flags readings at the ADC rails or outside the plausible
// pressure range. Flagged samples are still valid telemetry.
func ValidateSample(s Sample) []ValidationError {
	errors := []ValidationError{}

	if s.Raw == 0 || s.Raw >= MaxRaw {
		errors = append(errors, ValidationError{
			Type:    AnomalySaturated,
			Message: fmt.Sprintf("%s saturated at raw=%d", ChannelName(s.Channel), s.Raw),
			Details: map[string]interface{}{"channel": s.Channel, "raw": s.Raw},
		})
	}

	if s.Value < MinPlausiblePressure || s.Value > MaxPlausiblePressure {
		errors = append(errors, ValidationError{
			Type:    AnomalyOutOfRange,
			Message: fmt.Sprintf("%s pressure=%.1f mmHg out of range", ChannelName(s.Channel), s.Value),
			Details: map[string]interface{}{
				"channel": s.Channel,
				"value":   s.Value,
				"min":     MinPlausiblePressure,
				"max":     MaxPlausiblePressure,
			},
		})
	}

	return errors
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry implements the mock-loop pressure telemetry link.
//
// The sensor board streams one byte per half-sample with no delimiters,
// length fields or checksums. Each byte carries a low/high flag, a 2-bit
// channel id and a 5-bit payload; two halves for the same channel form a
// 10-bit ADC reading. This package provides the byte decoder, the wire
// encoder, channel calibration, zero-offset estimation, statistics and
// formatting.
package telemetry

// Wire byte layout (bit 0 = LSB)
const (
	FlagMask     = 0x01 // bit 0: 0 = low half, 1 = high half
	ChannelShift = 1
	ChannelMask  = 0x03 // bits 1-2
	PayloadShift = 3
	PayloadMask  = 0x1F // bits 3-7
)

// Half selectors carried in the flag bit
const (
	FlagLow  = 0
	FlagHigh = 1
)

// Sample limits
const (
	PayloadBits = 5
	MaxRaw      = 1<<(2*PayloadBits) - 1 // 1023
	NumChannels = 3
	// ReservedChannel is encodable in the 2-bit id field but never sent.
	ReservedChannel = 3
)

// Channel ids
const (
	ChannelLVP = 0 // left ventricular pressure
	ChannelAOP = 1 // aortic pressure
	ChannelLAP = 2 // left atrial pressure
)

// Calibration defaults
const (
	DefaultCalibrationSamples = 2000
	DefaultCalibrationTimeout = 10 // seconds
)

// Default two-point calibration: 0..330 mmHg against raw ADC readings
// measured on the reference sensor set.
const (
	DefaultTargetMin = 0.0
	DefaultTargetMax = 330.0
)

var defaultRawPoints = [NumChannels][2]int{
	{118, 932}, // LVP
	{135, 920}, // AOP
	{123, 914}, // LAP
}

var channelNames = [NumChannels]string{"LVP", "AOP", "LAP"}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"strings"
)

// FormatSample formats a sample as a single log line
func FormatSample(s Sample) string {
	timestamp := s.Timestamp.Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (ch%d) raw=%4d %8.2f mmHg\n",
		timestamp, ChannelName(s.Channel), s.Channel, s.Raw, s.Value)
}

// FormatRawByte describes a wire byte, for link debugging
func FormatRawByte(b byte) string {
	flag, ch, payload := SplitByte(b)
	kind := "LOW"
	if flag == FlagHigh {
		kind = "HIGH"
	}
	if ch == ReservedChannel {
		return fmt.Sprintf("0x%02X %-4s ch=%d (reserved) payload=%d", b, kind, ch, payload)
	}
	return fmt.Sprintf("0x%02X %-4s ch=%d (%s) payload=%d", b, kind, ch, ChannelName(ch), payload)
}

// FormatCalibration formats a calibration result
func FormatCalibration(r CalibrationResult) string {
	var sb strings.Builder
	status := "complete"
	if r.TimedOut {
		status = "timed out"
	}
	fmt.Fprintf(&sb, "Calibration %s after %.2fs\n", status, r.Duration.Seconds())
	for ch := 0; ch < NumChannels; ch++ {
		fmt.Fprintf(&sb, "  %-4s offset=%4d samples=%d", ChannelName(uint8(ch))+":", r.Offsets[ch], r.Counts[ch])
		if r.Starved[ch] {
			sb.WriteString(" (no data, offset reset to 0)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatWaveform formats systole/diastole/mean the way the bedside labels
// show them
func FormatWaveform(ch uint8, stats WaveformStats) string {
	return fmt.Sprintf("%s %d/%d (mean %.1f)", ChannelName(ch), int(stats.Systole), int(stats.Diastole), stats.Mean)
}

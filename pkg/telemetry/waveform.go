// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// DefaultWaveformWindow matches the plot history length of the bedside
// display.
const DefaultWaveformWindow = 200

// WaveformStats summarizes the samples currently in a window
type WaveformStats struct {
	Systole  float64 // maximum
	Diastole float64 // minimum
	Mean     float64
	Count    int
}

// Waveform keeps a rolling window of physical values per channel
type Waveform struct {
	window int
	values [NumChannels][]float64
	next   [NumChannels]int
}

// NewWaveform creates a rolling window of the given size per channel.
// A non-positive size selects DefaultWaveformWindow.
func NewWaveform(window int) *Waveform {
	if window <= 0 {
		window = DefaultWaveformWindow
	}
	w := &Waveform{window: window}
	for i := range w.values {
		w.values[i] = make([]float64, 0, window)
	}
	return w
}

// Add appends a sample, evicting the oldest once the window is full
func (w *Waveform) Add(s Sample) {
	if int(s.Channel) >= NumChannels {
		return
	}
	ch := s.Channel
	if len(w.values[ch]) < w.window {
		w.values[ch] = append(w.values[ch], s.Value)
		return
	}
	w.values[ch][w.next[ch]] = s.Value
	w.next[ch] = (w.next[ch] + 1) % w.window
}

// Stats returns systole, diastole and mean for a channel. ok is false
// when the channel has no samples yet.
func (w *Waveform) Stats(ch uint8) (stats WaveformStats, ok bool) {
	if int(ch) >= NumChannels || len(w.values[ch]) == 0 {
		return WaveformStats{}, false
	}
	vals := w.values[ch]
	stats.Systole = vals[0]
	stats.Diastole = vals[0]
	sum := 0.0
	for _, v := range vals {
		stats.Systole = max(stats.Systole, v)
		stats.Diastole = min(stats.Diastole, v)
		sum += v
	}
	stats.Count = len(vals)
	stats.Mean = sum / float64(len(vals))
	return stats, true
}

// Clear empties every channel window
func (w *Waveform) Clear() {
	for i := range w.values {
		w.values[i] = w.values[i][:0]
		w.next[i] = 0
	}
}

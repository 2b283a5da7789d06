// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"testing"
)

// feed runs bytes through a decoder and collects emitted samples
func feed(d *Decoder, data ...byte) []RawSample {
	var out []RawSample
	for _, b := range data {
		if s, ok := d.DecodeByte(b); ok {
			out = append(out, s)
		}
	}
	return out
}

func mustEncode(t *testing.T, ch uint8, raw uint16) [2]byte {
	t.Helper()
	pair, err := EncodeSample(ch, raw)
	if err != nil {
		t.Fatalf("EncodeSample(%d, %d): %v", ch, raw, err)
	}
	return pair
}

// ============================================================
// Byte Layout Tests
// ============================================================

func TestSplitByte(t *testing.T) {
	tests := []struct {
		name    string
		b       byte
		flag    uint8
		ch      uint8
		payload uint8
	}{
		{"zero", 0x00, FlagLow, 0, 0},
		{"high flag only", 0x01, FlagHigh, 0, 0},
		{"channel 2 low", 0b00000100, FlagLow, 2, 0},
		{"reserved channel", 0b00000110, FlagLow, 3, 0},
		{"max payload high ch1", 0b11111011, FlagHigh, 1, 31},
		{"payload 1 high ch0", 0b00001001, FlagHigh, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag, ch, payload := SplitByte(tt.b)
			if flag != tt.flag || ch != tt.ch || payload != tt.payload {
				t.Errorf("SplitByte(0x%02X) = (%d, %d, %d), want (%d, %d, %d)",
					tt.b, flag, ch, payload, tt.flag, tt.ch, tt.payload)
			}
		})
	}
}

// ============================================================
// Reconstruction Tests
// ============================================================

func TestDecoder_RoundTripAllValues(t *testing.T) {
	for ch := uint8(0); ch < NumChannels; ch++ {
		for v := uint16(0); v <= MaxRaw; v++ {
			pair := mustEncode(t, ch, v)

			for _, order := range [][2]byte{{pair[0], pair[1]}, {pair[1], pair[0]}} {
				d := NewDecoder()
				got := feed(d, order[0], order[1])
				if len(got) != 1 {
					t.Fatalf("ch=%d v=%d: expected 1 sample, got %d", ch, v, len(got))
				}
				if got[0].Channel != ch || got[0].Raw != v {
					t.Fatalf("ch=%d v=%d: got %+v", ch, v, got[0])
				}
			}
		}
	}
}

func TestDecoder_OrderIndependence(t *testing.T) {
	pair := mustEncode(t, ChannelAOP, 777)

	lowFirst := feed(NewDecoder(), pair[0], pair[1])
	highFirst := feed(NewDecoder(), pair[1], pair[0])

	if len(lowFirst) != 1 || len(highFirst) != 1 {
		t.Fatalf("expected one sample each, got %d and %d", len(lowFirst), len(highFirst))
	}
	if lowFirst[0] != highFirst[0] {
		t.Errorf("order changed result: %+v vs %+v", lowFirst[0], highFirst[0])
	}
}

func TestDecoder_EndToEndScenario(t *testing.T) {
	// low=0 and high=1 on channel 0
	d := NewDecoder()
	got := feed(d, 0b00000000, 0b00001001)
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
	if got[0].Channel != 0 || got[0].Raw != 32 {
		t.Errorf("expected ch0 raw=32, got %+v", got[0])
	}
}

func TestDecoder_TwoHighHalvesDoNotPair(t *testing.T) {
	// 0b00000001 carries the high flag, so this is high=0 followed by high=1
	d := NewDecoder()
	if got := feed(d, 0b00000001, 0b00001001); len(got) != 0 {
		t.Fatalf("expected no sample from two high halves, got %+v", got)
	}
	if low, high := d.Pending(0); low || !high {
		t.Errorf("Pending(0) = (%v, %v), want (false, true)", low, high)
	}
	if d.Counters().Overwrites != 1 {
		t.Errorf("expected 1 overwrite, got %d", d.Counters().Overwrites)
	}

	got := feed(d, 0b00000000)
	if len(got) != 1 || got[0].Raw != 32 {
		t.Errorf("expected raw=32 from latest high half, got %+v", got)
	}
}

// ============================================================
// Synchronization Tests
// ============================================================

func TestDecoder_CrossChannelIndependence(t *testing.T) {
	values := [NumChannels]uint16{100, 513, 1023}
	var pairs [NumChannels][2]byte
	for ch := range values {
		pairs[ch] = mustEncode(t, uint8(ch), values[ch])
	}

	// Every channel starts a pair before any completes
	stream := []byte{
		pairs[2][1], pairs[0][0], pairs[1][1],
		pairs[1][0], pairs[2][0], pairs[0][1],
	}

	got := feed(NewDecoder(), stream...)
	if len(got) != NumChannels {
		t.Fatalf("expected %d samples, got %d", NumChannels, len(got))
	}

	expectedOrder := []uint8{1, 2, 0}
	for i, s := range got {
		if s.Channel != expectedOrder[i] {
			t.Errorf("sample %d: channel %d, want %d", i, s.Channel, expectedOrder[i])
		}
		if s.Raw != values[s.Channel] {
			t.Errorf("channel %d: raw %d, want %d", s.Channel, s.Raw, values[s.Channel])
		}
	}
}

func TestDecoder_PartialPairNoEmission(t *testing.T) {
	d := NewDecoder()
	pair := mustEncode(t, ChannelLVP, 300)

	if got := feed(d, pair[0]); len(got) != 0 {
		t.Fatalf("low half alone emitted %+v", got)
	}
	// More low halves on the same channel only overwrite
	if got := feed(d, pair[0], pair[0]); len(got) != 0 {
		t.Fatalf("repeated low halves emitted %+v", got)
	}
	if low, high := d.Pending(ChannelLVP); !low || high {
		t.Errorf("Pending = (%v, %v), want (true, false)", low, high)
	}
}

func TestDecoder_SelfHealingAfterByteLoss(t *testing.T) {
	d := NewDecoder()
	a := mustEncode(t, ChannelLVP, 200)
	b := mustEncode(t, ChannelLAP, 900)

	// low(A), high(A) lost, then a full pair on B
	got := feed(d, a[0], b[0], b[1])
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
	if got[0].Channel != ChannelLAP || got[0].Raw != 900 {
		t.Errorf("expected LAP raw=900, got %+v", got[0])
	}
	if low, high := d.Pending(ChannelLVP); !low || high {
		t.Errorf("channel A should still hold its low half, Pending = (%v, %v)", low, high)
	}

	// A resumes with a fresh pair: the stale low is overwritten
	a2 := mustEncode(t, ChannelLVP, 201)
	got = feed(d, a2[0], a2[1])
	if len(got) != 1 || got[0].Raw != 201 {
		t.Errorf("expected recovered raw=201, got %+v", got)
	}
}

func TestDecoder_SlotsClearedAfterSample(t *testing.T) {
	d := NewDecoder()
	pair := mustEncode(t, ChannelAOP, 42)
	feed(d, pair[0], pair[1])

	if low, high := d.Pending(ChannelAOP); low || high {
		t.Errorf("slots not cleared: (%v, %v)", low, high)
	}
	if got := feed(d, pair[1]); len(got) != 0 {
		t.Errorf("high half after completed sample emitted %+v", got)
	}
}

func TestDecoder_ReservedChannelIgnored(t *testing.T) {
	d := NewDecoder()
	reservedLow := EncodeHalf(FlagLow, ReservedChannel, 5)
	reservedHigh := EncodeHalf(FlagHigh, ReservedChannel, 7)

	if got := feed(d, reservedLow, reservedHigh); len(got) != 0 {
		t.Fatalf("reserved channel emitted %+v", got)
	}
	for ch := uint8(0); ch < NumChannels; ch++ {
		if low, high := d.Pending(ch); low || high {
			t.Errorf("reserved byte touched channel %d", ch)
		}
	}
	c := d.Counters()
	if c.Reserved != 2 || c.Bytes != 2 {
		t.Errorf("counters = %+v, want Reserved=2 Bytes=2", c)
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	pair := mustEncode(t, ChannelLVP, 512)
	feed(d, pair[0])
	d.Reset()

	if got := feed(d, pair[1]); len(got) != 0 {
		t.Errorf("pending half survived Reset: %+v", got)
	}
}

func TestDecoder_Counters(t *testing.T) {
	d := NewDecoder()
	enc := NewEncoder()
	stream, err := enc.EncodeFrame([NumChannels]uint16{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	feed(d, stream...)

	c := d.Counters()
	if c.Bytes != 6 || c.Samples != 3 || c.Overwrites != 0 {
		t.Errorf("counters = %+v", c)
	}

	d.ResetCounters()
	if d.Counters() != (DecoderCounters{}) {
		t.Errorf("ResetCounters left %+v", d.Counters())
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// half is a pending 5-bit fragment slot
type half struct {
	value uint8
	set   bool
}

type channelSlots struct {
	low  half
	high half
}

// DecoderCounters reports link-level counts since the last ResetCounters.
// Overwrites is the number of halves that replaced an unpaired half of the
// same kind, which is the only visible trace of a dropped byte.
type DecoderCounters struct {
	Bytes      uint64
	Samples    uint64
	Overwrites uint64
	Reserved   uint64
}

// Decoder reassembles 10-bit samples from the half-sample byte stream.
// It is not safe for concurrent use.
type Decoder struct {
	slots    [NumChannels]channelSlots
	counters DecoderCounters
}

// NewDecoder creates a decoder with all channel slots empty
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset clears every pending half
func (d *Decoder) Reset() {
	d.slots = [NumChannels]channelSlots{}
}

// Counters returns the current link counters
func (d *Decoder) Counters() DecoderCounters {
	return d.counters
}

// ResetCounters zeroes the link counters without touching slot state
func (d *Decoder) ResetCounters() {
	d.counters = DecoderCounters{}
}

// Pending reports which halves are waiting for a partner on a channel
func (d *Decoder) Pending(ch uint8) (low, high bool) {
	if int(ch) >= NumChannels {
		return false, false
	}
	s := &d.slots[ch]
	return s.low.set, s.high.set
}

// SplitByte extracts the flag, channel id and payload of a wire byte
func SplitByte(b byte) (flag, ch, payload uint8) {
	flag = b & FlagMask
	ch = (b >> ChannelShift) & ChannelMask
	payload = (b >> PayloadShift) & PayloadMask
	return
}

// DecodeByte processes a single byte.
// Returns the reconstructed sample and true once both halves of a channel
// are present; the channel's slots are then cleared.
func (d *Decoder) DecodeByte(b byte) (RawSample, bool) {
	d.counters.Bytes++

	flag, ch, payload := SplitByte(b)
	if ch == ReservedChannel {
		d.counters.Reserved++
		return RawSample{}, false
	}

	s := &d.slots[ch]
	target := &s.low
	if flag == FlagHigh {
		target = &s.high
	}
	if target.set {
		d.counters.Overwrites++
	}
	target.value = payload
	target.set = true

	if !s.low.set || !s.high.set {
		return RawSample{}, false
	}

	raw := uint16(s.high.value)<<PayloadBits | uint16(s.low.value)
	*s = channelSlots{}
	d.counters.Samples++
	return RawSample{Channel: ch, Raw: raw}, true
}

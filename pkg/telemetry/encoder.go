// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "fmt"

// EncodeHalf builds one wire byte
func EncodeHalf(flag, ch, payload uint8) byte {
	return (payload&PayloadMask)<<PayloadShift | (ch&ChannelMask)<<ChannelShift | flag&FlagMask
}

// EncodeSample splits a raw reading into its low and high wire bytes, in
// that order.
func EncodeSample(ch uint8, raw uint16) ([2]byte, error) {
	if ch >= NumChannels {
		return [2]byte{}, fmt.Errorf("invalid channel: %d (max %d)", ch, NumChannels-1)
	}
	if raw > MaxRaw {
		return [2]byte{}, fmt.Errorf("raw value out of range: %d (max %d)", raw, MaxRaw)
	}
	low := uint8(raw) & PayloadMask
	high := uint8(raw>>PayloadBits) & PayloadMask
	return [2]byte{
		EncodeHalf(FlagLow, ch, low),
		EncodeHalf(FlagHigh, ch, high),
	}, nil
}

// Encoder converts samples to the wire stream. HighFirst swaps the order
// of the two halves, which the decoder accepts equally.
type Encoder struct {
	HighFirst bool
}

// NewEncoder creates a new wire encoder emitting low halves first
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Append encodes one sample onto buf
func (e *Encoder) Append(buf []byte, ch uint8, raw uint16) ([]byte, error) {
	pair, err := EncodeSample(ch, raw)
	if err != nil {
		return buf, err
	}
	if e.HighFirst {
		return append(buf, pair[1], pair[0]), nil
	}
	return append(buf, pair[0], pair[1]), nil
}

// EncodeFrame encodes one reading per channel, in channel order
func (e *Encoder) EncodeFrame(raws [NumChannels]uint16) ([]byte, error) {
	buf := make([]byte, 0, 2*NumChannels)
	for ch, raw := range raws {
		var err error
		buf, err = e.Append(buf, uint8(ch), raw)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

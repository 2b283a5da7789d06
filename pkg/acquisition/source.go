// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"io"
)

// ByteSource is the transport feeding the loop.
//
// TryReadOne returns ok=false with a nil error when no byte is available
// yet (for example a read timeout). Any error is treated as unrecoverable.
type ByteSource interface {
	TryReadOne() (b byte, ok bool, err error)
	IsOpen() bool
}

// ReaderSource adapts an io.Reader to a ByteSource. Reads are chunked
// into an internal buffer and handed out one byte at a time. The reader
// should return (0, nil) on timeout, as go.bug.st/serial does once a read
// timeout is configured.
type ReaderSource struct {
	r      io.Reader
	buf    []byte
	start  int
	end    int
	closed bool
	err    error
}

// NewReaderSource wraps r with a read buffer of the given size
func NewReaderSource(r io.Reader, bufSize int) *ReaderSource {
	if bufSize <= 0 {
		bufSize = 128
	}
	return &ReaderSource{r: r, buf: make([]byte, bufSize)}
}

// TryReadOne implements ByteSource
func (s *ReaderSource) TryReadOne() (byte, bool, error) {
	if s.start < s.end {
		b := s.buf[s.start]
		s.start++
		return b, true, nil
	}
	if s.closed {
		return 0, false, s.err
	}

	n, err := s.r.Read(s.buf)
	if n < 0 {
		n = 0
	}
	s.start, s.end = 0, n
	if err != nil {
		s.closed = true
		s.err = err
	}
	if n == 0 {
		return 0, false, err
	}
	s.start = 1
	return s.buf[0], true, nil
}

// IsOpen implements ByteSource. A source that failed still drains bytes
// it buffered before the failure.
func (s *ReaderSource) IsOpen() bool {
	return !s.closed || s.start < s.end
}

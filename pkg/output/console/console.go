// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/cardiostat/pkg/output"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
)

// Output prints one line per sample
type Output struct {
	w io.Writer
}

// New creates a console output writing to w, or stdout when w is nil
func New(w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{w: w}
}

var (
	_ output.Output               = (*Output)(nil)
	_ output.CalibrationPublisher = (*Output)(nil)
)

func (c *Output) Publish(s telemetry.Sample) error {
	_, err := io.WriteString(c.w, telemetry.FormatSample(s))
	return err
}

func (c *Output) PublishCalibration(r telemetry.CalibrationResult) error {
	_, err := fmt.Fprint(c.w, telemetry.FormatCalibration(r))
	return err
}

func (c *Output) Close() error { return nil }

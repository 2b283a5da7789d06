// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	calibrateStrict bool
	calibrateGrace  int
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Run one zero-offset calibration and print the offsets",
	Long: `Collect raw samples with the sensors vented to atmosphere and derive the
zero offset of each channel.

The pass ends when every channel has collected the configured number of
samples or the calibration timeout elapses. A channel that delivers no data
gets offset 0 and is reported.

Exit codes:
  0 - Calibration completed
  1 - Calibration incomplete (--strict: timed out or a channel had no data)
  2 - Connection error`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().BoolVar(&calibrateStrict, "strict", false, "Fail if the pass timed out or a channel had no data")
	calibrateCmd.Flags().IntVar(&calibrateGrace, "grace", 5, "Extra seconds to wait beyond the calibration timeout")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	estimator, err := cfg.Estimator()
	if err != nil {
		return err
	}

	fmt.Printf("Cardiostat - Zero Offset Calibration\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Samples per channel: %d\n", cfg.Calibration.Samples)
	fmt.Printf("Timeout: %s\n", cfg.Calibration.Timeout)
	fmt.Printf("Estimator: %s\n", estimator.Name())
	fmt.Printf("Keep the sensors vented to atmosphere...\n\n")

	sink := acquisition.NewChannelSink(cfg.Acquisition.SinkBuffer)
	loop, err := newAcquisition(conn, connInfo, acquisition.WithCalibrationSink(sink))
	if err != nil {
		return err
	}
	loop.RequestCalibration()

	ctx, cancel := signalContext()
	defer cancel()
	errc := startLoop(ctx, loop)

	deadline := cfg.Calibration.Timeout + time.Duration(calibrateGrace)*time.Second
	select {
	case r := <-sink.Calibrations():
		loop.Stop()
		fmt.Print(telemetry.FormatCalibration(r))
		if calibrateStrict && !calibrationComplete(r) {
			fmt.Fprintf(os.Stderr, "\nFAILED: calibration incomplete\n")
			os.Exit(1)
		}
		return nil

	case err := <-errc:
		if err == nil || ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "Calibration interrupted, offsets unchanged\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(deadline):
		loop.Stop()
		fmt.Fprintf(os.Stderr, "TIMEOUT: calibration did not finish within %s\n", deadline)
		os.Exit(1)
	}

	return nil
}

// calibrationComplete reports whether every channel reached its target
func calibrationComplete(r telemetry.CalibrationResult) bool {
	if r.TimedOut {
		return false
	}
	for _, starved := range r.Starved {
		if starved {
			return false
		}
	}
	return true
}

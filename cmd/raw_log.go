// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/Thermoquad/cardiostat/pkg/output/console"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/spf13/cobra"
)

var rawLogCalibrate bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display calibrated samples in human-readable format",
	Long: `Continuously decode and display pressure samples as they arrive.

Each line shows the timestamp, channel, raw 10-bit ADC reading and the
calibrated pressure in mmHg. With --calibrate a zero-offset calibration
pass runs first; keep the sensors at atmospheric pressure while it runs.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogCalibrate, "calibrate", false, "Run a zero-offset calibration before logging")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Cardiostat - Raw Sample Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	sink := acquisition.NewChannelSink(cfg.Acquisition.SinkBuffer)
	loop, err := newAcquisition(conn, connInfo,
		acquisition.WithSampleSink(sink),
		acquisition.WithCalibrationSink(sink),
	)
	if err != nil {
		return err
	}
	if rawLogCalibrate || cfg.Calibration.OnStart {
		fmt.Printf("Calibrating zero offsets (%d samples per channel, %s timeout)...\n\n",
			cfg.Calibration.Samples, cfg.Calibration.Timeout)
		loop.RequestCalibration()
	}

	ctx, cancel := signalContext()
	defer cancel()
	errc := startLoop(ctx, loop)

	out := console.New(os.Stdout)
	onSample := func(s telemetry.Sample) { out.Publish(s) }
	onCalibration := func(r telemetry.CalibrationResult) {
		out.PublishCalibration(r)
		fmt.Println()
	}

	for {
		select {
		case s := <-sink.Samples():
			onSample(s)
		case r := <-sink.Calibrations():
			onCalibration(r)
		case err := <-errc:
			drainSink(sink, onSample, onCalibration)
			if dropped := sink.Dropped(); dropped > 0 {
				logger.WithField("dropped", dropped).Warn("Output could not keep up")
			}
			return loopExitError(err)
		}
	}
}

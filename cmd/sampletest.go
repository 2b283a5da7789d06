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
	sampleTestTimeout int
)

var sampleTestCmd = &cobra.Command{
	Use:   "sample_test",
	Short: "Test connection by waiting for a reconstructed sample",
	Long: `Wait for a complete sample on the connection until timeout.

This command connects to a serial port or WebSocket and waits until both
halves of a reading arrive for any channel. Unpaired bytes and bytes on the
reserved channel are ignored.

Exit codes:
  0 - Sample received before timeout
  1 - Timeout reached without receiving a sample
  2 - Connection error

Useful for checking the sensor board wiring and baud rate.`,
	RunE: runSampleTest,
}

func init() {
	rootCmd.AddCommand(sampleTestCmd)
	sampleTestCmd.Flags().IntVar(&sampleTestTimeout, "timeout", 10, "Timeout in seconds to wait for a sample")
}

func runSampleTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Cardiostat - Sample Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", sampleTestTimeout)
	fmt.Printf("Waiting for a complete sample...\n\n")

	sink := acquisition.NewChannelSink(1)
	loop, err := newAcquisition(conn, connInfo, acquisition.WithSampleSink(sink))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	errc := startLoop(ctx, loop)

	select {
	case s := <-sink.Samples():
		loop.Stop()
		fmt.Printf("SUCCESS: Received sample\n")
		fmt.Printf("  Channel: %s (ch%d)\n", telemetry.ChannelName(s.Channel), s.Channel)
		fmt.Printf("  Raw: %d\n", s.Raw)
		fmt.Printf("  Pressure: %.2f mmHg\n", s.Value)
		os.Exit(0)

	case err := <-errc:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(sampleTestTimeout) * time.Second):
		loop.Stop()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No sample received within %d seconds\n", sampleTestTimeout)
		os.Exit(1)
	}

	return nil
}

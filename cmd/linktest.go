// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	linkTestDuration int
	linkTestVerbose  bool
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw link stability and byte pairing",
	Long: `Read the raw byte stream without calibration and report link quality.

Every second the test prints the bytes received, the samples reassembled,
and how many half-samples were overwritten before their partner arrived
(a sign of dropped bytes). Bytes carrying the reserved channel id are
counted separately. Use --verbose to print every byte.

Exit codes:
  0 - Test completed and samples were reassembled
  1 - Test failed (no samples, or the connection dropped)
  2 - Connection error`,
	RunE: runLinkTest,
}

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
	linkTestCmd.Flags().BoolVar(&linkTestVerbose, "verbose", false, "Print every received byte")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	// Start a goroutine to read from the connection
	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	decoder := telemetry.NewDecoder()
	start := time.Now()
	endTime := start.Add(time.Duration(linkTestDuration) * time.Second)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("Listening for data...\n\n")

	var last telemetry.DecoderCounters
	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			for _, b := range data {
				raw, ok := decoder.DecodeByte(b)
				if linkTestVerbose {
					fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), telemetry.FormatRawByte(b))
					if ok {
						fmt.Printf("  -> %s raw=%d\n", telemetry.ChannelName(raw.Channel), raw.Raw)
					}
				}
			}

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			printLinkResults(decoder.Counters(), time.Since(start))
			fmt.Printf("Result: FAILED (connection error)\n")
			os.Exit(1)

		case <-ticker.C:
			c := decoder.Counters()
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] %d bytes/s, %d samples/s, %d overwrites (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"),
				c.Bytes-last.Bytes, c.Samples-last.Samples, c.Overwrites-last.Overwrites, remaining)
			last = c
		}
	}

	c := decoder.Counters()
	printLinkResults(c, time.Since(start))
	if c.Samples == 0 {
		fmt.Printf("Result: FAILED (no samples reassembled)\n")
		os.Exit(1)
	}
	fmt.Printf("Result: PASSED (link stable)\n")

	return nil
}

func printLinkResults(c telemetry.DecoderCounters, elapsed time.Duration) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Bytes received: %d\n", c.Bytes)
	fmt.Printf("Samples reassembled: %d\n", c.Samples)
	fmt.Printf("Overwritten halves: %d\n", c.Overwrites)
	fmt.Printf("Reserved channel bytes: %d\n", c.Reserved)
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("Sample rate: %.1f samples/s\n", float64(c.Samples)/secs)
	}
}

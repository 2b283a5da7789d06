// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/cardiostat/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Configuration flags
	configPath string
	logLevel   string

	// Loaded in PersistentPreRunE, flags applied
	cfg    = config.Default()
	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "cardiostat",
	Short: "Mock circulatory loop telemetry tool",
	Long: `Cardiostat - A CLI tool for acquiring and calibrating pressure telemetry
from the mock circulatory loop sensor board.

The board streams LVP, AOP and LAP readings as 10-bit ADC values split over
two self-describing bytes. Cardiostat reassembles them, applies the two-point
calibration and zero offsets, and logs, displays or forwards the result.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings can also be read from a YAML file with --config; flags given on the
command line override the file.

For WebSocket authentication, the password is read from the CARDIOSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Configuration flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// loadConfig reads the config file and applies explicitly set flags on top
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Serial.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		loaded.Serial.URL = wsURL
	}
	if flags.Changed("username") {
		loaded.Serial.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.Serial.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = loaded
	setupLogger(cfg.LogLevel())
	return nil
}

func setupLogger(level logrus.Level) {
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

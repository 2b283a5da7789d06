// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Cardiostat - Mock Circulatory Loop Telemetry Tool
//
// A CLI tool for acquiring, calibrating and forwarding pressure telemetry
// from the mock loop sensor board.

package main

import (
	"os"

	"github.com/Thermoquad/cardiostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

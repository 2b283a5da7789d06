// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var (
	portsSerial  string
	portsUSBOnly bool
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Discover serial ports the sensor board may be attached to",
	Long: `List serial ports with their USB vendor, product and serial number.

Use --serial to find the board by its USB serial number, which stays stable
when the device node name changes between reboots.

Examples:
  # List every port
  cardiostat ports

  # Find the board by serial number
  cardiostat ports --serial 5A3F0012

Exit codes:
  0 - At least one matching port found
  1 - No matching ports
  2 - Enumeration error`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().StringVar(&portsSerial, "serial", "", "Only show ports with this USB serial number")
	portsCmd.Flags().BoolVar(&portsUSBOnly, "usb-only", false, "Only show USB ports")
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enumeration error: %v\n", err)
		os.Exit(2)
	}

	matches := filterPorts(ports, portsSerial, portsUSBOnly)

	fmt.Printf("Cardiostat - Port Discovery\n\n")
	for _, p := range matches {
		fmt.Print(formatPort(p))
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Ports found: %d\n", len(matches))

	if len(matches) == 0 {
		if portsSerial != "" {
			fmt.Printf("No port with serial number %s. Check the USB cable and board power.\n", portsSerial)
		} else {
			fmt.Printf("No serial ports found.\n")
		}
		os.Exit(1)
	}

	return nil
}

// filterPorts keeps ports matching the serial number (case-insensitive)
// and, optionally, only USB ports
func filterPorts(ports []*enumerator.PortDetails, serialNumber string, usbOnly bool) []*enumerator.PortDetails {
	out := make([]*enumerator.PortDetails, 0, len(ports))
	for _, p := range ports {
		if usbOnly && !p.IsUSB {
			continue
		}
		if serialNumber != "" && !strings.EqualFold(p.SerialNumber, serialNumber) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func formatPort(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		return fmt.Sprintf("%s\n", p.Name)
	}
	s := fmt.Sprintf("%s\n  USB ID: %s:%s\n", p.Name, p.VID, p.PID)
	if p.SerialNumber != "" {
		s += fmt.Sprintf("  Serial: %s\n", p.SerialNumber)
	}
	if p.Product != "" {
		s += fmt.Sprintf("  Product: %s\n", p.Product)
	}
	return s
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	simulateRate      int
	simulateBPM       float64
	simulateDuration  int
	simulateNoise     int
	simulateHighFirst bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Write a synthetic pressure waveform in wire format",
	Long: `Emit a synthetic three-channel pressure waveform on the connection, encoded
exactly as the sensor board does. Useful for bench testing a receiving
instance (for example through a null-modem cable or a WebSocket bridge)
without the mock loop running.

The waveform approximates left ventricular, aortic and left atrial
pressure at the given heart rate, converted to raw ADC readings with the
configured calibration.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simulateRate, "rate", 200, "Frames per second (one sample per channel per frame)")
	simulateCmd.Flags().Float64Var(&simulateBPM, "bpm", 72, "Heart rate in beats per minute")
	simulateCmd.Flags().IntVar(&simulateDuration, "duration", 0, "Duration in seconds (0 runs until interrupted)")
	simulateCmd.Flags().IntVar(&simulateNoise, "noise", 1, "Peak ADC noise in counts")
	simulateCmd.Flags().BoolVar(&simulateHighFirst, "high-first", false, "Send the high half of each sample first")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateRate <= 0 {
		return fmt.Errorf("--rate must be > 0")
	}
	if simulateBPM <= 0 {
		return fmt.Errorf("--bpm must be > 0")
	}

	calibrator, err := cfg.Calibrator()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Cardiostat - Waveform Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Rate: %d frames/s, %.0f bpm\n", simulateRate, simulateBPM)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, cancel := signalContext()
	defer cancel()

	encoder := &telemetry.Encoder{HighFirst: simulateHighFirst}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	period := time.Second / time.Duration(simulateRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	var frames uint64
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nSent %d frames\n", frames)
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if simulateDuration > 0 && elapsed >= time.Duration(simulateDuration)*time.Second {
				fmt.Printf("Sent %d frames\n", frames)
				return nil
			}

			raws := simulatedFrame(calibrator, elapsed.Seconds(), simulateBPM)
			for ch := range raws {
				raws[ch] = addNoise(raws[ch], simulateNoise, rng)
			}
			frame, err := encoder.EncodeFrame(raws)
			if err != nil {
				return err
			}
			if _, err := conn.Write(frame); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			frames++
			logger.WithField("frame", frames).Trace("frame sent")
		}
	}
}

// simulatedPressures returns LVP, AOP and LAP in mmHg at time t seconds.
// Systole occupies the first third of each beat.
func simulatedPressures(t, bpm float64) [telemetry.NumChannels]float64 {
	beat := 60 / bpm
	phase := math.Mod(t, beat) / beat

	var contraction float64
	if phase < 1.0/3 {
		contraction = math.Sin(math.Pi * phase * 3)
	}

	lvp := 5 + 115*contraction
	aop := 80 + 40*contraction
	if lvp > aop {
		// Aortic valve open
		aop = lvp
	}
	// Atrial kick late in diastole
	lap := 8 + 4*math.Exp(-math.Pow((phase-0.85)/0.05, 2))
	return [telemetry.NumChannels]float64{lvp, aop, lap}
}

// simulatedFrame converts the synthetic pressures to raw readings
func simulatedFrame(c *telemetry.Calibrator, t, bpm float64) [telemetry.NumChannels]uint16 {
	pressures := simulatedPressures(t, bpm)
	var raws [telemetry.NumChannels]uint16
	for ch, p := range pressures {
		raws[ch] = c.Channel(uint8(ch)).Raw(p)
	}
	return raws
}

func addNoise(raw uint16, peak int, rng *rand.Rand) uint16 {
	if peak <= 0 {
		return raw
	}
	v := int(raw) + rng.Intn(2*peak+1) - peak
	if v < 0 {
		return 0
	}
	if v > telemetry.MaxRaw {
		return telemetry.MaxRaw
	}
	return uint16(v)
}

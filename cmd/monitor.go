// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	showAll          bool
	statsInterval    int
	useTUI           bool
	monitorCalibrate bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor pressure waveforms, anomalies and link statistics",
	Long: `Track calibrated pressures, anomalous values and sample statistics.

This command validates each sample and detects:
  - Saturated readings (ADC at 0 or full scale)
  - Out of range pressures (outside -50..400 mmHg)
  - Samples dropped because the display could not keep up

Per-channel systole, diastole and mean are computed over a sliding window.

In the terminal UI, press 'c' to run a zero-offset calibration with the
sensors vented to atmosphere, and 'q' to quit. Use --tui=false for a plain
text log with periodic statistics summaries.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all samples (not just anomalies)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval in seconds (TUI refresh, text mode summaries)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().BoolVar(&monitorCalibrate, "calibrate", false, "Run a zero-offset calibration on start")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := validateMonitorFlags(); err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		return err
	}
	defer conn.Close()

	sink := acquisition.NewChannelSink(cfg.Acquisition.SinkBuffer)
	loop, err := newAcquisition(conn, connInfo,
		acquisition.WithSampleSink(sink),
		acquisition.WithCalibrationSink(sink),
	)
	if err != nil {
		return err
	}
	if monitorCalibrate || cfg.Calibration.OnStart {
		loop.RequestCalibration()
	}

	ctx, cancel := signalContext()
	defer cancel()

	if useTUI {
		return runTUIMode(ctx, cancel, loop, sink, connInfo)
	}
	return runTextMode(ctx, loop, sink, connInfo)
}

func validateMonitorFlags() error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be > 0, got %d", statsInterval)
	}
	return nil
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, cancel context.CancelFunc, loop *acquisition.Loop, sink *acquisition.ChannelSink, connInfo string) error {
	m := initialModel(loop, connInfo, statsInterval, showAll, cfg.Acquisition.Window)
	m.dropped = sink.Dropped
	p := tea.NewProgram(m)

	// Route log output into the event log while the TUI owns the terminal
	hook := newTUILogHook(tuiLogBuffer)
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)
	defer func() {
		logger.ReplaceHooks(make(logrus.LevelHooks))
		logger.SetOutput(os.Stderr)
	}()

	errc := startLoop(ctx, loop)

	// Forward acquisition output to the TUI
	go func() {
		for {
			select {
			case s := <-sink.Samples():
				p.Send(sampleMsg(s))
			case r := <-sink.Calibrations():
				p.Send(calibrationMsg(r))
			case ev := <-hook.Events():
				p.Send(ev)
			case err := <-errc:
				// Deliver the loop's final log entries before the exit
				for pending := true; pending; {
					select {
					case ev := <-hook.Events():
						p.Send(ev)
					default:
						pending = false
					}
				}
				p.Send(loopDoneMsg{err: err})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		loop.Stop()
		return fmt.Errorf("TUI error: %w", err)
	}

	return loopExitError(loop.Stop())
}

// Log entries buffered for the TUI before new ones are dropped
const tuiLogBuffer = 64

// tuiLogHook queues log entries for the TUI event log. Fire never blocks,
// since it runs on whichever goroutine logged, including the acquisition
// loop. Entries are dropped and counted once the buffer is full.
type tuiLogHook struct {
	events  chan logEventMsg
	dropped atomic.Uint64
}

func newTUILogHook(size int) *tuiLogHook {
	if size <= 0 {
		size = 1
	}
	return &tuiLogHook{events: make(chan logEventMsg, size)}
}

// Events returns the queued log entries
func (h *tuiLogHook) Events() <-chan logEventMsg {
	return h.events
}

// Dropped returns how many entries were discarded
func (h *tuiLogHook) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *tuiLogHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (h *tuiLogHook) Fire(entry *logrus.Entry) error {
	select {
	case h.events <- newLogEventMsg(entry):
	default:
		h.dropped.Add(1)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(ctx context.Context, loop *acquisition.Loop, sink *acquisition.ChannelSink, connInfo string) error {
	fmt.Printf("Cardiostat - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All samples\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := telemetry.NewStatistics()
	waveform := telemetry.NewWaveform(cfg.Acquisition.Window)

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	onSample := func(s telemetry.Sample) {
		validationErrors := telemetry.ValidateSample(s)
		stats.Update(s, validationErrors)
		waveform.Add(s)

		if len(validationErrors) > 0 {
			printValidationErrors(s, validationErrors)
		} else if showAll {
			fmt.Print(telemetry.FormatSample(s))
		}
	}
	onCalibration := func(r telemetry.CalibrationResult) {
		stats.UpdateCalibration(r)
		waveform.Clear()
		fmt.Println()
		fmt.Print(telemetry.FormatCalibration(r))
		fmt.Println()
	}

	errc := startLoop(ctx, loop)
	for {
		select {
		case s := <-sink.Samples():
			onSample(s)

		case r := <-sink.Calibrations():
			onCalibration(r)

		case <-statsTicker.C:
			stats.SetDropped(sink.Dropped())
			stats.CalculateRates()
			fmt.Println()
			fmt.Print(stats.String())
			printWaveforms(waveform)
			fmt.Println()

		case err := <-errc:
			drainSink(sink, onSample, onCalibration)
			stats.SetDropped(sink.Dropped())
			stats.CalculateRates()
			fmt.Println()
			fmt.Print(stats.String())
			return loopExitError(err)
		}
	}
}

// printValidationErrors prints anomalies for a sample in highlighted format
func printValidationErrors(s telemetry.Sample, errors []telemetry.ValidationError) {
	timestamp := s.Timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (ch%d) raw=%d %.2f mmHg\n",
		timestamp, telemetry.ChannelName(s.Channel), s.Channel, s.Raw, s.Value)

	for i, err := range errors {
		switch err.Type {
		case telemetry.AnomalySaturated:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case telemetry.AnomalyOutOfRange:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Println()
}

func printWaveforms(w *telemetry.Waveform) {
	for ch := uint8(0); ch < telemetry.NumChannels; ch++ {
		if stats, ok := w.Stats(ch); ok {
			fmt.Printf("  %s\n", telemetry.FormatWaveform(ch, stats))
		}
	}
}

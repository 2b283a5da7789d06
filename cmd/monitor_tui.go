// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for anomalies and failures, false for info
}

// loopController is the part of the acquisition loop the TUI drives
type loopController interface {
	RequestCalibration()
	State() acquisition.State
}

type keyMap struct {
	Calibrate key.Binding
	Clear     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Calibrate, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Calibrate, k.Clear}, {k.Help, k.Quit}}
}

var defaultKeys = keyMap{
	Calibrate: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "calibrate zero offsets")),
	Clear:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset statistics")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// TUI model
type model struct {
	loop          loopController
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *telemetry.Statistics
	waveform      *telemetry.Waveform
	latest        [telemetry.NumChannels]*telemetry.Sample
	eventLog      []eventLogEntry
	maxLogEntries int
	dropped       func() uint64
	keys          keyMap
	help          help.Model
	width         int
	height        int
	quitting      bool
	linkLost      bool
}

// Messages
type tickMsg time.Time
type sampleMsg telemetry.Sample
type calibrationMsg telemetry.CalibrationResult
type loopDoneMsg struct {
	err error
}
type logEventMsg struct {
	message string
	isError bool
}

func newLogEventMsg(entry *logrus.Entry) logEventMsg {
	message := entry.Message
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return logEventMsg{
		message: message,
		isError: entry.Level <= logrus.WarnLevel,
	}
}

func initialModel(loop loopController, connInfo string, statsInterval int, showAll bool, window int) model {
	return model{
		loop:          loop,
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         telemetry.NewStatistics(),
		waveform:      telemetry.NewWaveform(window),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		dropped:       func() uint64 { return 0 },
		keys:          defaultKeys,
		help:          help.New(),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.tickInterval()),
		tea.EnterAltScreen,
	)
}

// tickInterval is how often rates and drop counts are refreshed
func (m model) tickInterval() time.Duration {
	if m.statsInterval <= 0 {
		return time.Second
	}
	return time.Duration(m.statsInterval) * time.Second
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Calibrate):
			if m.linkLost {
				m.addLogEntry("Cannot calibrate: link closed", true)
			} else if m.loop.State() == acquisition.StateCalibrating {
				m.addLogEntry("Calibration already running", false)
			} else {
				m.loop.RequestCalibration()
				m.addLogEntry("Calibration requested, keep sensors vented", false)
			}
		case key.Matches(msg, m.keys.Clear):
			m.stats.Reset()
			m.waveform.Clear()
			m.addLogEntry("Statistics reset", false)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		m.stats.SetDropped(m.dropped())
		m.stats.CalculateRates()
		return m, tickCmd(m.tickInterval())

	case sampleMsg:
		s := telemetry.Sample(msg)
		validationErrors := telemetry.ValidateSample(s)
		m.stats.Update(s, validationErrors)
		m.waveform.Add(s)
		if int(s.Channel) < telemetry.NumChannels {
			m.latest[s.Channel] = &s
		}

		if len(validationErrors) > 0 {
			name := telemetry.ChannelName(s.Channel)
			for _, err := range validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(strings.TrimSuffix(telemetry.FormatSample(s), "\n"), false)
		}

	case calibrationMsg:
		r := telemetry.CalibrationResult(msg)
		m.stats.UpdateCalibration(r)
		m.waveform.Clear()
		status := "Calibration complete"
		if r.TimedOut {
			status = "Calibration timed out"
		}
		m.addLogEntry(fmt.Sprintf("%s: offsets LVP=%d AOP=%d LAP=%d",
			status, r.Offsets[0], r.Offsets[1], r.Offsets[2]), false)
		for ch, starved := range r.Starved {
			if starved {
				m.addLogEntry(fmt.Sprintf("%s: no calibration data, offset reset to 0",
					telemetry.ChannelName(uint8(ch))), true)
			}
		}

	case logEventMsg:
		m.addLogEntry(msg.message, msg.isError)

	case loopDoneMsg:
		m.linkLost = true
		switch {
		case msg.err == nil:
			m.addLogEntry("Acquisition stopped", false)
		case errors.Is(msg.err, acquisition.ErrDisconnected):
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		default:
			m.addLogEntry(fmt.Sprintf("Acquisition ended: %v", msg.err), true)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("CARDIOSTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s",
		m.connInfo, func() string {
			if m.showAll {
				return "All samples"
			}
			return "Anomalies only"
		}())))
	s.WriteString("\n\n")

	// Engine state
	switch {
	case m.linkLost:
		s.WriteString(errorStyle.Render("✗ Link closed"))
	case m.loop.State() == acquisition.StateCalibrating:
		s.WriteString(warningStyle.Render("⏳ Calibrating zero offsets..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Acquiring"))
	}
	s.WriteString("\n\n")

	// Pressures
	pressureContent := strings.Builder{}
	for ch := uint8(0); ch < telemetry.NumChannels; ch++ {
		name := statsLabelStyle.Render(fmt.Sprintf("%-4s", telemetry.ChannelName(ch)+":"))
		latest := m.latest[ch]
		if latest == nil {
			pressureContent.WriteString(fmt.Sprintf("%s %s\n", name, headerStyle.Render("(no data)")))
			continue
		}
		line := fmt.Sprintf("%7.1f mmHg  raw=%4d", latest.Value, latest.Raw)
		if wf, ok := m.waveform.Stats(ch); ok {
			line += fmt.Sprintf("   %d/%d (mean %.1f)", int(wf.Systole), int(wf.Diastole), wf.Mean)
		}
		pressureContent.WriteString(fmt.Sprintf("%s %s\n", name, statsValueStyle.Render(line)))
	}
	s.WriteString(boxStyle.Render(strings.TrimSuffix(pressureContent.String(), "\n")))
	s.WriteString("\n\n")

	// Statistics
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalSamples)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f samples/s", m.stats.SampleRate)),
		statsLabelStyle.Render("Dropped:"), func() string {
			if m.stats.DroppedSamples > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.DroppedSamples))
			}
			return statsValueStyle.Render("0")
		}(),
	))

	if m.stats.AnomalousValues() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.AnomalousValues())),
			headerStyle.Render("saturated"), m.stats.Saturated,
			headerStyle.Render("out of range"), m.stats.OutOfRange,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Calibrations:"),
		statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Calibrations))))
	if last := m.stats.LastCalibration; last != nil {
		statsContent.WriteString(fmt.Sprintf("   %s %d/%d/%d",
			statsLabelStyle.Render("Offsets:"), last.Offsets[0], last.Offsets[1], last.Offsets[2]))
	}

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 20 // Reserve space for header, pressures and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

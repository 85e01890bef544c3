// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *geco.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  uint64
	width         int
	height        int
	quitting      bool
	lastStatus    *geco.StatusRecord
	connErr       error
}

// Messages
type tickMsg time.Time
type serialDataMsg busEvent
type syncMsg struct {
	invalidBytes uint64
}
type connectionLostMsg struct {
	err error
}

// statusTemperatures lists the sensors shown in the status box
var statusTemperatures = []struct {
	label string
	get   func(*geco.StatusRecord) float64
}{
	{"T1 ambient", func(r *geco.StatusRecord) float64 { return r.T1 }},
	{"T2 tank bottom", func(r *geco.StatusRecord) float64 { return r.T2 }},
	{"T3 tank top", func(r *geco.StatusRecord) float64 { return r.T3 }},
	{"T6 water in", func(r *geco.StatusRecord) float64 { return r.T6 }},
	{"T7 water out", func(r *geco.StatusRecord) float64 { return r.T7 }},
	{"T8 evaporator", func(r *geco.StatusRecord) float64 { return r.T8 }},
	{"T9 before comp.", func(r *geco.StatusRecord) float64 { return r.T9 }},
	{"T10 after comp.", func(r *geco.StatusRecord) float64 { return r.T10 }},
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         geco.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionLostMsg:
		m.connErr = msg.err
		m.addLogEntry(fmt.Sprintf("CONNECTION LOST: %v", msg.err), true)

	case serialDataMsg:
		if msg.decodeErr != nil {
			m.stats.Update(nil, msg.decodeErr, nil)
			m.stats.AddFalseStarts(1)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		} else if msg.packet != nil {
			m.stats.Update(msg.packet, nil, msg.validationErrors)
			m.parseStatus(msg.packet)

			fnc := geco.FormatFunctionCode(msg.packet.Function())
			if len(msg.validationErrors) > 0 {
				for _, err := range msg.validationErrors {
					m.addLogEntry(fmt.Sprintf("%s: %s", fnc, err.Message), true)
				}
			} else if m.showAll {
				m.addLogEntry(fmt.Sprintf("%s start=%d count=%d (valid)",
					fnc, msg.packet.RegisterStart(), msg.packet.RegisterCount()), false)
			}
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// parseStatus keeps the latest status block seen on the bus
func (m *model) parseStatus(packet *geco.Packet) {
	if packet.Function() != geco.FncStatusResponse || packet.RegisterStart() != geco.StatusBase {
		return
	}
	status := geco.DecodeStatus(packet.Registers())
	m.lastStatus = &status
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "off"
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
	s.WriteString(titleStyle.Render("GECOSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All packets"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats | 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.connErr != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	crcErrors := m.stats.HeaderCRCErrors + m.stats.PayloadCRCErrors
	totalErrors := crcErrors + m.stats.DecodeErrors + m.stats.MalformedPackets + m.stats.AnomalousValues
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d\n",
		statsLabelStyle.Render("Requests:"), m.stats.Requests,
		statsLabelStyle.Render("Responses:"), m.stats.Responses,
		statsLabelStyle.Render("Writes:"), m.stats.Writes,
	))

	if crcErrors > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Header CRC:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.HeaderCRCErrors)),
			statsLabelStyle.Render("Payload CRC:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.PayloadCRCErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}

	if m.stats.MalformedPackets > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.MalformedPackets)),
			headerStyle.Render("length mismatches"), m.stats.LengthMismatches,
			headerStyle.Render("unknown functions"), m.stats.UnknownFunctions,
		))
	}

	if m.stats.AnomalousValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.AnomalousValues)),
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.stats.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest status block (only shown once one was seen)
	if m.lastStatus != nil {
		st := m.lastStatus
		s.WriteString(statsLabelStyle.Render("Latest Status:"))
		s.WriteString("\n")

		statusContent := strings.Builder{}
		statusContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Controller clock:"),
			statsValueStyle.Render(fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
				st.Year, st.Month, st.Day, st.Hour, st.Minute, st.Second)),
		))
		for i, t := range statusTemperatures {
			statusContent.WriteString(fmt.Sprintf("%s %s",
				statsLabelStyle.Render(fmt.Sprintf("%-16s", t.label)),
				statsValueStyle.Render(fmt.Sprintf("%6.1f°C", t.get(st))),
			))
			if i%2 == 1 {
				statusContent.WriteString("\n")
			} else {
				statusContent.WriteString("   ")
			}
		}
		statusContent.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
			statsLabelStyle.Render("Fan:"), statsValueStyle.Render(onOff(st.FanON)),
			statsLabelStyle.Render("Pump:"), statsValueStyle.Render(onOff(st.CirculationPumpON)),
			statsLabelStyle.Render("HP:"), statsValueStyle.Render(onOff(st.HeatPumpON)),
			statsLabelStyle.Render("Compressor:"), statsValueStyle.Render(onOff(st.CompressorON)),
			statsLabelStyle.Render("Heater:"), statsValueStyle.Render(onOff(st.HeaterEON)),
		))

		s.WriteString(boxStyle.Render(statusContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 22 // Reserve space for header, stats and status
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
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

	return s.String()
}

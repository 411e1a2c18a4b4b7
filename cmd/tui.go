// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Messages
type tickMsg time.Time

type batchMsg struct {
	events []frameEvent
	stats  evbox.Statistics
}

type connectionLostMsg struct {
	err error
}

type connectedMsg struct {
	connInfo string
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// monitorState is the receive-side state shared by the TUIs
type monitorState struct {
	connInfo       string
	connectionLost bool
	showAll        bool
	startTime      time.Time

	stats         evbox.Statistics
	lastTelemetry *evbox.Telemetry
	synchronized  bool
	skippedBytes  uint64

	errorLog      []errorLogEntry
	maxLogEntries int
}

func newMonitorState(connInfo string, showAll bool) monitorState {
	return monitorState{
		connInfo:      connInfo,
		showAll:       showAll,
		startTime:     time.Now(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
	}
}

// apply folds a session message into the state. Returns false for messages
// it does not handle.
func (s *monitorState) apply(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case batchMsg:
		s.stats = msg.stats
		for _, ev := range msg.events {
			s.applyEvent(ev)
		}

	case connectionLostMsg:
		s.connectionLost = true
		s.synchronized = false
		s.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case connectedMsg:
		s.connectionLost = false
		s.connInfo = msg.connInfo
		s.addLogEntry("Connected: "+msg.connInfo, false)

	default:
		return false
	}
	return true
}

func (s *monitorState) applyEvent(ev frameEvent) {
	if ev.telemetry != nil {
		if !s.synchronized {
			s.synchronized = true
			s.skippedBytes = s.stats.DroppedBytes
			if s.skippedBytes > 0 {
				s.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", s.skippedBytes), false)
			} else {
				s.addLogEntry("Synchronized", false)
			}
		}
		s.lastTelemetry = ev.telemetry
		if s.showAll {
			s.addLogEntry(fmt.Sprintf("TELEMETRY L1=%.1f L2=%.1f L3=%.1f A, %.3f kWh",
				ev.telemetry.L1Current, ev.telemetry.L2Current, ev.telemetry.L3Current, ev.telemetry.TotalEnergy), false)
		}
		return
	}

	kind := "REJECTED"
	if verr, ok := evbox.AsValidationError(ev.err); ok {
		kind = verr.Type.String()
	}
	s.addLogEntryAt(ev.at, fmt.Sprintf("%s: %v", kind, ev.err), true)
}

func (s *monitorState) addLogEntry(message string, isError bool) {
	s.addLogEntryAt(time.Now(), message, isError)
}

func (s *monitorState) addLogEntryAt(at time.Time, message string, isError bool) {
	s.errorLog = append(s.errorLog, errorLogEntry{
		timestamp: at,
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(s.errorLog) > s.maxLogEntries {
		s.errorLog = s.errorLog[len(s.errorLog)-s.maxLogEntries:]
	}
}

func (s *monitorState) renderStatus() string {
	var b strings.Builder
	switch {
	case s.connectionLost:
		b.WriteString(warningStyle.Render("Reconnecting..."))
	case !s.synchronized:
		b.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		b.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if s.skippedBytes > 0 {
			b.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", s.skippedBytes)))
		}
	}
	b.WriteString(headerStyle.Render("   Session: " + formatUptime(uint64(time.Since(s.startTime).Milliseconds()))))
	return b.String()
}

func (s *monitorState) renderStatistics() string {
	st := s.stats
	st.CalculateRates()

	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(st.Errors()) * 100.0 / float64(st.TotalFrames)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Errors(), errorPercent)),
	))

	if st.ChecksumErrors > 0 {
		b.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumErrors)),
			headerStyle.Render("sum"), st.SumErrors,
			headerStyle.Render("xor"), st.XorErrors,
		))
	}

	if st.LengthErrors > 0 || st.HeaderErrors > 0 || st.MalformedFields > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Length:"), errorStyle.Render(fmt.Sprintf("%d", st.LengthErrors)),
			statsLabelStyle.Render("Header:"), errorStyle.Render(fmt.Sprintf("%d", st.HeaderErrors)),
			statsLabelStyle.Render("Malformed:"), warningStyle.Render(fmt.Sprintf("%d", st.MalformedFields)),
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
		statsLabelStyle.Render("Dropped:"), statsValueStyle.Render(fmt.Sprintf("%d bytes", st.DroppedBytes)),
	))

	return boxStyle.Render(b.String())
}

func (s *monitorState) renderTelemetry() string {
	t := s.lastTelemetry
	if t == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("L1:"), statsValueStyle.Render(fmt.Sprintf("%.1f A", t.L1Current)),
		statsLabelStyle.Render("L2:"), statsValueStyle.Render(fmt.Sprintf("%.1f A", t.L2Current)),
		statsLabelStyle.Render("L3:"), statsValueStyle.Render(fmt.Sprintf("%.1f A", t.L3Current)),
	))
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%.1f A", t.TotalCurrent())),
		statsLabelStyle.Render("Energy:"), statsValueStyle.Render(fmt.Sprintf("%.3f kWh", t.TotalEnergy)),
		statsLabelStyle.Render("Updated:"), headerStyle.Render(t.Timestamp.Format("15:04:05")),
	))
	return statsLabelStyle.Render("Latest Telemetry:") + "\n" + boxStyle.Render(b.String())
}

func (s *monitorState) renderEventLog(width, height int) string {
	logHeight := height
	if logHeight < 5 {
		logHeight = 5
	}

	var b strings.Builder
	startIdx := len(s.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(s.errorLog) == 0 {
		b.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(s.errorLog); i++ {
			entry := s.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	if width < 20 {
		width = 20
	}
	return statsLabelStyle.Render("Recent Events:") + "\n" + boxStyle.Width(width-4).Render(b.String())
}

// model is the error detection TUI
type model struct {
	monitorState
	statsInterval int
	width         int
	height        int
	quitting      bool
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		monitorState:  newMonitorState(connInfo, showAll),
		statsInterval: statsInterval,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.apply(msg) {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Redraw rates and session time
		return m, tickCmd()
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("EVBOXSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	s.WriteString(m.renderStatistics())
	s.WriteString("\n\n")

	if tel := m.renderTelemetry(); tel != "" {
		s.WriteString(tel)
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderEventLog(m.width, m.height-18))
	return s.String()
}

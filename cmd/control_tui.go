// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/evboxstat/internal/config"
	"github.com/Thermoquad/evboxstat/internal/httpserver"
	"github.com/Thermoquad/evboxstat/pkg/evbox"
)

// Focus states
const (
	focusCurrentInput = iota
	focusSetButton
	focusStopButton

	focusCount
)

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	monitorState

	// Control
	setCurrent   func(amp float64) error
	limiter      *rate.Limiter
	currentInput textinput.Model
	focusedField int
	pending      bool
	lastSetpoint *float64

	// UI state
	width    int
	height   int
	quitting bool
}

type commandResultMsg struct {
	amp float64
	err error
}

func initialControlModel(connInfo string, setCurrent func(amp float64) error, cmdCfg config.CommandConfig) controlModel {
	ti := textinput.New()
	ti.Placeholder = "16"
	ti.CharLimit = 5
	ti.Width = 10
	ti.Focus()

	return controlModel{
		monitorState: newMonitorState(connInfo, false),
		setCurrent:   setCurrent,
		limiter:      httpserver.NewLimiter(cmdCfg),
		currentInput: ti,
		focusedField: focusCurrentInput,
		width:        80,
		height:       24,
	}
}

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), textinput.Blink)
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.apply(msg) {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case commandResultMsg:
		m.pending = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Set current failed: %v", msg.err), true)
			return m, nil
		}
		amp := msg.amp
		m.lastSetpoint = &amp
		if amp == evbox.StopCurrent {
			m.addLogEntry("Sent STOP", false)
		} else {
			m.addLogEntry(fmt.Sprintf("Sent maximum current %.1f A", amp), false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusedField == focusCurrentInput {
		m.currentInput, cmd = m.currentInput.Update(msg)
	}
	return m, cmd
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusCurrentInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused component
	if m.focusedField == focusCurrentInput {
		var cmd tea.Cmd
		m.currentInput, cmd = m.currentInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m controlModel) cycleFocus(delta int) controlModel {
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount
	if m.focusedField == focusCurrentInput {
		m.currentInput.Focus()
	} else {
		m.currentInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}
	if m.pending {
		return m, nil
	}

	amp := evbox.StopCurrent
	if m.focusedField != focusStopButton {
		value, err := strconv.ParseFloat(strings.TrimSpace(m.currentInput.Value()), 64)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid current %q", m.currentInput.Value()), true)
			return m, nil
		}
		amp = value
	}

	if !evbox.IsOperatorCurrent(amp) {
		m.addLogEntry(fmt.Sprintf("Current must be 0 or between %.0f and %.0f A", evbox.MinOperatorCurrent, evbox.MaxOperatorCurrent), true)
		return m, nil
	}
	if !m.limiter.Allow() {
		m.addLogEntry("Command rate exceeded, try again shortly", true)
		return m, nil
	}

	m.pending = true
	setCurrent := m.setCurrent
	return m, func() tea.Msg {
		return commandResultMsg{amp: amp, err: setCurrent(amp)}
	}
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("EVBOXSTAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Tab=switch Enter=send Esc=quit", connStatus)))
	s.WriteString("\n")
	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	s.WriteString(m.renderControlPanel())
	s.WriteString("\n\n")

	s.WriteString(m.renderStatistics())
	s.WriteString("\n\n")

	if tel := m.renderTelemetry(); tel != "" {
		s.WriteString(tel)
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderEventLog(m.width, m.height-22))
	return s.String()
}

func (m controlModel) renderControlPanel() string {
	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	button := func(label string, focus int) string {
		if m.focusedField == focus {
			return focusedButtonStyle.Render(label)
		}
		return buttonStyle.Render(label)
	}

	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s A   %s %s\n",
		statsLabelStyle.Render("Max current:"), m.currentInput.View(),
		button("Set", focusSetButton), button("Stop", focusStopButton)))

	setpoint := headerStyle.Render("(none sent)")
	if m.lastSetpoint != nil {
		setpoint = statsValueStyle.Render(fmt.Sprintf("%.1f A", *m.lastSetpoint))
	}
	if m.pending {
		setpoint = warningStyle.Render("sending...")
	}
	s.WriteString(fmt.Sprintf("%s %s   %s",
		statsLabelStyle.Render("Last setpoint:"), setpoint,
		headerStyle.Render(fmt.Sprintf("range %.0f-%.0f A, 0 stops charging", evbox.MinOperatorCurrent, evbox.MaxOperatorCurrent))))

	return boxStyle.Render(s.String())
}

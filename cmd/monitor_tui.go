// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/poller"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusStatus = iota
	focusConfig
	focusInput
)

const statusTableHeight = 14

// configItem is one config register in the list
type configItem struct {
	def   geco.RegisterDefinition
	value string
	known bool
}

// Implement list.Item interface
func (c configItem) Title() string {
	if !c.def.Writable {
		return c.def.Name + " (read-only)"
	}
	return c.def.Name
}

func (c configItem) Description() string {
	value := "?"
	if c.known {
		value = c.value
	}
	if c.def.Range != nil {
		return fmt.Sprintf("%s  [%g..%g]", value, c.def.Range.Min, c.def.Range.Max)
	}
	return value
}

func (c configItem) FilterValue() string { return c.def.Name }

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo string
	mode     poller.Mode
	submit   func(name string, value interface{}) error

	statusTable  table.Model
	configList   list.Model
	valueInput   textinput.Model
	focusedField int
	editing      string

	lastStatus time.Time
	lastConfig time.Time
	lastCycle  *poller.CycleReport
	cycles     int
	failed     int

	errorLog      []errorLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connInfo string, mode poller.Mode, submit func(string, interface{}) error) monitorModel {
	columns := []table.Column{
		{Title: "Register", Width: 22},
		{Title: "Value", Width: 12},
	}
	st := table.New(
		table.WithColumns(columns),
		table.WithHeight(statusTableHeight),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))
	st.SetStyles(styles)

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	configList := list.New(configItems(nil), delegate, 40, statusTableHeight+2)
	configList.Title = "Config"
	configList.SetShowStatusBar(false)
	configList.SetShowHelp(false)
	configList.SetFilteringEnabled(false)

	ti := textinput.New()
	ti.CharLimit = 8
	ti.Width = 10

	return monitorModel{
		connInfo:      connInfo,
		mode:          mode,
		submit:        submit,
		statusTable:   st,
		configList:    configList,
		valueInput:    ti,
		focusedField:  focusStatus,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

// configItems builds list items for every config register, with values when
// a record is available
func configItems(rec *geco.ConfigRecord) []list.Item {
	var fields map[string]interface{}
	if rec != nil {
		fields = rec.Map()
	}
	var items []list.Item
	for _, def := range geco.BlockConfig.Definitions() {
		if def.Type == geco.TypeBitProgram {
			continue
		}
		item := configItem{def: def}
		if v, ok := fields[def.Name]; ok {
			item.value = geco.FormatValue(v)
			item.known = true
		}
		items = append(items, item)
	}
	return items
}

// statusRows renders a status record as sorted table rows
func statusRows(rec geco.StatusRecord) []table.Row {
	fields := rec.Map()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]table.Row, 0, len(names))
	for _, name := range names {
		rows = append(rows, table.Row{name, geco.FormatValue(fields[name])})
	}
	return rows
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.configList.SetSize(m.width-46, statusTableHeight+2)

	case tickMsg:
		return m, tickCmd()

	case statusMsg:
		m.statusTable.SetRows(statusRows(geco.StatusRecord(msg)))
		m.lastStatus = msg.ReceivedAt

	case configMsg:
		rec := geco.ConfigRecord(msg)
		m.lastConfig = rec.ReceivedAt
		cmds = append(cmds, m.configList.SetItems(configItems(&rec)))

	case cycleMsg:
		rep := poller.CycleReport(msg)
		m.lastCycle = &rep
		m.cycles++
		if rep.Err != nil || !rep.StatusOK || !rep.ConfigOK {
			m.failed++
		}
		if rep.WriteFailures > 0 {
			m.addLogEntry(fmt.Sprintf("%d of %d writes failed", rep.WriteFailures, rep.Writes), true)
		} else if rep.Writes > 0 {
			m.addLogEntry(fmt.Sprintf("%d write(s) confirmed", rep.Writes), false)
		}

	case logMsg:
		m.addLogEntry(msg.message, msg.level >= zapcore.WarnLevel)

	case pollerDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focusedField == focusInput {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.stopEditing()
			return m, nil
		case "enter":
			m.submitEdit()
			return m, nil
		}
		var cmd tea.Cmd
		m.valueInput, cmd = m.valueInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.focusedField == focusStatus {
			m.focusedField = focusConfig
			m.statusTable.Blur()
		} else {
			m.focusedField = focusStatus
			m.statusTable.Focus()
		}
		return m, nil

	case "enter":
		if m.focusedField == focusConfig {
			return m, m.startEditing()
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focusedField {
	case focusStatus:
		m.statusTable, cmd = m.statusTable.Update(msg)
	case focusConfig:
		m.configList, cmd = m.configList.Update(msg)
	}
	return m, cmd
}

func (m *monitorModel) startEditing() tea.Cmd {
	item, ok := m.configList.SelectedItem().(configItem)
	if !ok {
		return nil
	}
	if m.mode == poller.ModeEavesdrop {
		m.addLogEntry("Cannot write in eavesdrop mode", true)
		return nil
	}
	if !item.def.Writable {
		m.addLogEntry(item.def.Name+" is read-only", true)
		return nil
	}

	m.editing = item.def.Name
	m.focusedField = focusInput
	m.valueInput.SetValue("")
	m.valueInput.Placeholder = item.value
	return m.valueInput.Focus()
}

func (m *monitorModel) stopEditing() {
	m.editing = ""
	m.valueInput.Blur()
	m.focusedField = focusConfig
}

func (m *monitorModel) submitEdit() {
	name := m.editing
	value := strings.TrimSpace(m.valueInput.Value())
	defer m.stopEditing()

	if value == "" {
		return
	}
	// Shape errors surface now instead of one cycle later
	if _, _, err := geco.EncodeValue(name, value); err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	if err := m.submit(name, value); err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", name, err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Queued %s = %s", name, value), false)
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func age(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Truncate(time.Second).String() + " ago"
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("GECOSTAT MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s mode | q=quit Tab=switch Enter=edit", m.connInfo, m.mode)))
	s.WriteString("\n\n")

	// Status table | config list
	statusStyle, configStyle := boxStyle, boxStyle
	switch m.focusedField {
	case focusStatus:
		statusStyle = focusedBoxStyle
	case focusConfig, focusInput:
		configStyle = focusedBoxStyle
	}
	statusPanel := statusStyle.Render(
		statsLabelStyle.Render("Status") + " " + headerStyle.Render(age(m.lastStatus)) + "\n" + m.statusTable.View())
	configPanel := configStyle.Render(
		headerStyle.Render("updated "+age(m.lastConfig)) + "\n" + m.configList.View())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statusPanel, " ", configPanel))
	s.WriteString("\n")

	// Value input
	if m.focusedField == focusInput {
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			statsLabelStyle.Render("New value for "+m.editing+":"),
			m.valueInput.View(),
			headerStyle.Render("(Enter=queue, Esc=cancel)"),
		))
	}
	s.WriteString("\n")

	// Cycle statistics
	cycleContent := fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Cycles:"), statsValueStyle.Render(fmt.Sprintf("%d", m.cycles)),
		statsLabelStyle.Render("Incomplete:"), func() string {
			if m.failed > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.failed))
			}
			return statsValueStyle.Render("0")
		}(),
	)
	if m.lastCycle != nil {
		ss := m.lastCycle.Session
		cycleContent += fmt.Sprintf("   %s %s   %s %d   %s %d   %s %d",
			statsLabelStyle.Render("Last:"), statsValueStyle.Render(m.lastCycle.Duration.Truncate(time.Millisecond).String()),
			statsLabelStyle.Render("Exchanges:"), ss.Exchanges,
			statsLabelStyle.Render("Timeouts:"), ss.Timeouts,
			statsLabelStyle.Render("Link errors:"), ss.TransportErrors,
		)
	}
	s.WriteString(boxStyle.Render(cycleContent))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - statusTableHeight - 14
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.errorLog); i++ {
		entry := m.errorLog[i]
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

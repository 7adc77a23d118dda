// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// node is a radio heard on the network, or the local module when local is set.
type node struct {
	address   uint64
	network   uint16
	local     bool
	frames    uint64
	lastFrame string
	lastSeen  time.Time
}

// Implement list.Item interface
func (n node) Title() string {
	if n.local {
		return "Local module"
	}
	return fmt.Sprintf("Node %016X", n.address)
}

func (n node) Description() string {
	if n.local {
		return "AT commands to the attached radio"
	}
	return fmt.Sprintf("%04X  %d frames  %s", n.network, n.frames, n.lastFrame)
}

func (n node) FilterValue() string { return fmt.Sprintf("%X", n.address) }

// Focus states
const (
	focusNodeList = iota
	focusCommandInput
)

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo string
	showAll  bool
	writer   *xbee.Writer

	stats         *xbee.Statistics
	eventLog      []logEntry
	maxLogEntries int

	nodes    map[uint64]*node
	nodeList list.Model

	commandInput textinput.Model
	focusedField int

	width        int
	height       int
	synchronized bool
	skipped      uint64
	quitting     bool
	linkClosed   bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// frameMsg carries the outcome of one ReadFrame call.
type frameMsg struct {
	frame   xbee.Frame
	packet  xbee.Packet
	err     error
	skipped uint64
}

type linkClosedMsg struct {
	err error
}

type commandSentMsg struct {
	request xbee.Packet
	err     error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connInfo string, showAll bool, writer *xbee.Writer) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "NI"
	ti.CharLimit = 64
	ti.Width = 24
	ti.Prompt = "AT "

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	nodeList := list.New([]list.Item{node{local: true}}, delegate, 40, 10)
	nodeList.Title = "Nodes"
	nodeList.SetShowStatusBar(false)
	nodeList.SetShowHelp(false)
	nodeList.SetFilteringEnabled(false)

	return monitorModel{
		connInfo:      connInfo,
		showAll:       showAll,
		writer:        writer,
		stats:         xbee.NewStatistics(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		nodes:         make(map[uint64]*node),
		nodeList:      nodeList,
		commandInput:  ti,
		focusedField:  focusNodeList,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.nodeList.SetSize(40, m.listHeight())

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case frameMsg:
		m.handleFrame(msg)

	case linkClosedMsg:
		m.linkClosed = true
		m.addLogEntry(fmt.Sprintf("Connection closed: %v", msg.err), true)

	case commandSentMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("SEND FAILED: %v", msg.err), true)
		} else {
			m.addLogEntry("Sent "+xbee.FormatHeader(msg.request), false)
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusCommandInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focusedField == focusNodeList {
			m.focusedField = focusCommandInput
			m.commandInput.Focus()
		} else {
			m.focusedField = focusNodeList
			m.commandInput.Blur()
		}
		return m, nil

	case "enter":
		if m.focusedField == focusCommandInput {
			return m.sendCommand()
		}
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.commandInput, cmd = m.commandInput.Update(msg)
	} else {
		m.nodeList, cmd = m.nodeList.Update(msg)
	}
	return m, cmd
}

// handleFrame updates statistics, the node table and the event log for one read.
func (m *monitorModel) handleFrame(msg frameMsg) {
	m.stats.Update(msg.packet, msg.err)
	m.stats.SetSkippedBytes(msg.skipped)

	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", msg.err), true)
		return
	}

	if !m.synchronized {
		m.synchronized = true
		m.skipped = msg.skipped
		if msg.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", msg.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	if source, network, ok := sourceAddress(msg.packet); ok {
		m.trackNode(source, network, msg.packet)
	}

	switch p := msg.packet.(type) {
	case *xbee.ATCommandResponsePacket:
		m.addLogEntry(fmt.Sprintf("AT %s: %s %s", p.Command, p.Status, formatCommandValue(p.Value)), p.Status != xbee.ATStatusOK)
	case *xbee.RemoteATCommandResponsePacket:
		m.addLogEntry(fmt.Sprintf("AT %s from %016X: %s %s", p.Command, p.Source64, p.Status, formatCommandValue(p.Value)), p.Status != xbee.ATStatusOK)
	case *xbee.TransmitStatusPacket:
		m.addLogEntry(fmt.Sprintf("TX status: %s", p.Delivery), p.Delivery != xbee.DeliverySuccess)
	case *xbee.ModemStatusPacket:
		m.addLogEntry(fmt.Sprintf("Modem status: %s", p.Status), false)
	default:
		if m.showAll {
			m.addLogEntry(xbee.FormatHeader(msg.packet), false)
		}
	}
}

// sourceAddress returns the sending node of frames that carry one.
func sourceAddress(p xbee.Packet) (uint64, uint16, bool) {
	switch p := p.(type) {
	case *xbee.ReceivePacket:
		return p.Source64, p.Source16, true
	case *xbee.RemoteATCommandResponsePacket:
		return p.Source64, p.Source16, true
	}
	return 0, 0, false
}

func (m *monitorModel) trackNode(address uint64, network uint16, p xbee.Packet) {
	n, ok := m.nodes[address]
	if !ok {
		n = &node{address: address}
		m.nodes[address] = n
		m.addLogEntry(fmt.Sprintf("New node %016X", address), false)
	}
	n.network = network
	n.frames++
	n.lastFrame = xbee.DefaultRegistry().Name(p.FrameType())
	n.lastSeen = time.Now()
	m.updateNodeList()
}

func (m *monitorModel) updateNodeList() {
	addresses := make([]uint64, 0, len(m.nodes))
	for address := range m.nodes {
		addresses = append(addresses, address)
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })

	items := make([]list.Item, 0, len(addresses)+1)
	items = append(items, node{local: true})
	for _, address := range addresses {
		items = append(items, *m.nodes[address])
	}
	m.nodeList.SetItems(items)
}

func (m *monitorModel) selectedNode() node {
	if n, ok := m.nodeList.SelectedItem().(node); ok {
		return n
	}
	return node{local: true}
}

// parseCommandInput splits "CMD [HEXPARAM]" as typed into the command box.
func parseCommandInput(input string) (string, string, error) {
	fields := strings.Fields(input)
	switch len(fields) {
	case 0:
		return "", "", fmt.Errorf("empty command")
	case 1:
		return fields[0], "", nil
	}
	return fields[0], strings.Join(fields[1:], ""), nil
}

func (m monitorModel) sendCommand() (tea.Model, tea.Cmd) {
	if m.linkClosed {
		m.addLogEntry("Cannot send command: connection closed", true)
		return m, nil
	}

	command, param, err := parseCommandInput(m.commandInput.Value())
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}

	target := m.selectedNode()
	remote := ""
	if !target.local {
		remote = fmt.Sprintf("%016X", target.address)
	}
	request, err := buildATRequest(frameIDs.Next(), command, param, remote, false, true)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid command: %v", err), true)
		return m, nil
	}
	m.commandInput.Reset()

	writer := m.writer
	return m, func() tea.Msg {
		return commandSentMsg{request: request, err: writer.WritePacket(request)}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) listHeight() int {
	h := m.height / 3
	if h < 6 {
		h = 6
	}
	return h
}

// formatCommandValue shows printable values as text and everything else as hex.
func formatCommandValue(value []byte) string {
	if len(value) == 0 {
		return ""
	}
	for _, b := range value {
		if b < 0x20 || b > 0x7E {
			return fmt.Sprintf("%X", value)
		}
	}
	return fmt.Sprintf("%q", value)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("MESHSTAT - LINK MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.linkClosed {
		connStatus = errorStyle.Render("CONNECTION CLOSED")
	}
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit Tab=switch", connStatus, mode)))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render("Waiting for synchronization..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skipped)))
		}
	}
	s.WriteString("\n\n")

	// Nodes | command panel
	listStyle := boxStyle.Width(42)
	commandStyle := boxStyle.Width(m.width - 50)
	if m.focusedField == focusNodeList {
		listStyle = focusedBoxStyle.Width(42)
	} else {
		commandStyle = focusedBoxStyle.Width(m.width - 50)
	}

	target := m.selectedNode()
	var command strings.Builder
	command.WriteString(statsLabelStyle.Render("Target: "))
	command.WriteString(statsValueStyle.Render(target.Title()))
	command.WriteString("\n\n")
	command.WriteString(m.commandInput.View())
	command.WriteString("\n\n")
	command.WriteString(headerStyle.Render("e.g. NI, ID 7FFF, D0 05"))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		listStyle.Render(m.nodeList.View()), " ", commandStyle.Render(command.String())))
	s.WriteString("\n\n")

	// Statistics
	s.WriteString(boxStyle.Render(m.renderStatistics(statsLabelStyle, statsValueStyle, errorStyle, headerStyle)))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - m.listHeight() - 18
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func (m monitorModel) renderStatistics(labelStyle, valueStyle, errorStyle, headerStyle lipgloss.Style) string {
	st := m.stats
	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(st.Errors()) * 100.0 / float64(st.TotalFrames)
	}

	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Errors(), errorPercent)),
	))

	if st.Errors() > 0 {
		s.WriteString(fmt.Sprintf("%s %d  %s %d  %s %d  %s %d\n",
			headerStyle.Render("checksum"), st.ChecksumErrors,
			headerStyle.Render("incomplete"), st.IncompleteFrames,
			headerStyle.Render("escape"), st.EscapeErrors,
			headerStyle.Render("decode"), st.DecodeErrors,
		))
	}

	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Unknown:"), valueStyle.Render(fmt.Sprintf("%d", st.UnknownFrames)),
		labelStyle.Render("Broadcast:"), valueStyle.Render(fmt.Sprintf("%d", st.BroadcastFrames)),
		labelStyle.Render("Skipped bytes:"), valueStyle.Render(fmt.Sprintf("%d", st.SkippedBytes)),
	))

	errorRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	s.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		labelStyle.Render("Error Rate:"), errorRate,
	))
	return s.String()
}

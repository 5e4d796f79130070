// Package tui renders the monitor state in the terminal. It is a thin
// consumer of the monitor facade; all protocol and registry logic lives
// below it.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lxmonitor/internal/monitor"
	"lxmonitor/internal/source"
)

// Colors
var (
	cyanColor   = lipgloss.Color("#00FFFF")
	grayColor   = lipgloss.Color("#666666")
	whiteColor  = lipgloss.Color("#FFFFFF")
	yellowColor = lipgloss.Color("#FFFF00")
	redColor    = lipgloss.Color("#FF6666")
	greenColor  = lipgloss.Color("#66FF66")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(whiteColor).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyanColor)

	activeStyle = lipgloss.NewStyle().Foreground(greenColor)
	idleStyle   = lipgloss.NewStyle().Foreground(yellowColor)
	staleStyle  = lipgloss.NewStyle().Foreground(grayColor)
	warnStyle   = lipgloss.NewStyle().Foreground(redColor)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyanColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyanColor).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(grayColor).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(grayColor).
				Padding(0, 1)

	activeCardStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(cyanColor).
			Width(4)

	helpStyle = lipgloss.NewStyle().Foreground(grayColor)
)

// view selects which tab is displayed.
type view int

const (
	viewSources view = iota
	viewUniverse
)

// KeyMap defines keybindings
type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	Tab     key.Binding
	Capture key.Binding
	Poll    key.Binding
	Quit    key.Binding
}

var keys = KeyMap{
	Left:    key.NewBinding(key.WithKeys("left", "h")),
	Right:   key.NewBinding(key.WithKeys("right", "l")),
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Tab:     key.NewBinding(key.WithKeys("tab")),
	Capture: key.NewBinding(key.WithKeys("c")),
	Poll:    key.NewBinding(key.WithKeys("p")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// Model is the main TUI model
type Model struct {
	service          *monitor.Service
	captureInterface string

	view             view
	sources          []source.NetworkSource
	universeList     []uint16
	selectedUniverse uint16
	frame            []byte
	scrollOffset     int
	statusLine       string
	width            int
	height           int
	columnsPerRow    int
}

// NewModel creates a new TUI model
func NewModel(service *monitor.Service, captureInterface string) Model {
	return Model{
		service:          service,
		captureInterface: captureInterface,
		columnsPerRow:    16,
	}
}

// TickMsg is a message for periodic updates
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Tab):
			if m.view == viewSources {
				m.view = viewUniverse
			} else {
				m.view = viewSources
			}
		case key.Matches(msg, keys.Left):
			m.selectAdjacentUniverse(-1)
		case key.Matches(msg, keys.Right):
			m.selectAdjacentUniverse(1)
		case key.Matches(msg, keys.Down):
			m.scrollOffset += m.columnsPerRow
		case key.Matches(msg, keys.Up):
			if m.scrollOffset >= m.columnsPerRow {
				m.scrollOffset -= m.columnsPerRow
			}
		case key.Matches(msg, keys.Capture):
			m.toggleCapture()
		case key.Matches(msg, keys.Poll):
			if err := m.service.SendPoll(); err != nil {
				m.statusLine = "poll failed: " + err.Error()
			} else {
				m.statusLine = "ArtPoll sent"
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if cols := (m.width - 2) / 6; cols > 0 {
			m.columnsPerRow = cols
		}

	case TickMsg:
		m.refresh()
		return m, tickCmd()
	}

	return m, nil
}

func (m *Model) refresh() {
	m.sources = m.service.Sources()

	frames := m.service.Frames()
	m.universeList = m.universeList[:0]
	for u := range frames {
		m.universeList = append(m.universeList, u)
	}
	sort.Slice(m.universeList, func(i, j int) bool { return m.universeList[i] < m.universeList[j] })

	if len(m.universeList) > 0 && !containsUniverse(m.universeList, m.selectedUniverse) {
		m.selectedUniverse = m.universeList[0]
	}
	if frame, ok := frames[m.selectedUniverse]; ok {
		m.frame = frame
	} else {
		m.frame = nil
	}
}

func (m *Model) selectAdjacentUniverse(delta int) {
	if len(m.universeList) == 0 {
		return
	}
	for i, u := range m.universeList {
		if u == m.selectedUniverse {
			next := (i + delta + len(m.universeList)) % len(m.universeList)
			m.selectedUniverse = m.universeList[next]
			return
		}
	}
	m.selectedUniverse = m.universeList[0]
}

func (m *Model) toggleCapture() {
	status := m.service.CaptureStatus()
	if status.Enabled {
		m.service.DisableCapture()
		m.statusLine = "capture stopping"
		return
	}
	if err := m.service.EnableCapture(m.captureInterface); err != nil {
		m.statusLine = "capture: " + err.Error()
		return
	}
	m.statusLine = "capture enabled"
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("LXMonitor") + "  ")
	b.WriteString(m.renderTabs() + "\n\n")

	switch m.view {
	case viewSources:
		b.WriteString(m.renderSources())
	case viewUniverse:
		b.WriteString(m.renderUniverse())
	}

	b.WriteString("\n" + m.renderStatusBar())
	b.WriteString("\n" + helpStyle.Render("Tab: view | ←→: universe | ↑↓: scroll | c: capture | p: poll | q: quit"))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []struct {
		label string
		v     view
	}{
		{"Sources", viewSources},
		{"Universe", viewUniverse},
	}

	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		if t.v == m.view {
			parts = append(parts, tabActiveStyle.Render(t.label))
		} else {
			parts = append(parts, tabInactiveStyle.Render(t.label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderSources() string {
	if len(m.sources) == 0 {
		return helpStyle.Render("Waiting for Art-Net and sACN traffic...") + "\n" +
			helpStyle.Render("Listening on UDP 6454 (broadcast) and 5568 (multicast).") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-24s %-15s %-7s %-7s %-10s %6s %6s %7s  %s",
		"NAME", "IP", "PROTO", "STATUS", "DIRECTION", "FPS", "LOSS%", "JITTER", "UNIVERSES")) + "\n")

	for _, s := range m.sources {
		style := staleStyle
		switch s.Status {
		case source.StatusActive:
			style = activeStyle
		case source.StatusIdle:
			style = idleStyle
		}

		fps := fmt.Sprintf("%.0f", s.FPS)
		if s.FPSWarning != source.FPSWarningNone {
			fps = warnStyle.Render(fps + "!")
		}

		loss := fmt.Sprintf("%.1f", s.PacketLossPercent)
		if s.PacketLossPercent > 1 {
			loss = warnStyle.Render(loss)
		}

		universes := formatUniverses(s.Universes, s.DuplicateUniverses)

		b.WriteString(style.Render(fmt.Sprintf("%-24s %-15s %-7s %-7s %-10s ",
			truncate(s.Name, 24), s.IP, s.Protocol, s.Status, s.Direction)))
		b.WriteString(fmt.Sprintf("%6s %6s %6.1fms  %s\n", fps, loss, s.LatencyJitterMS, universes))
	}
	return b.String()
}

func (m Model) renderUniverse() string {
	if len(m.universeList) == 0 {
		return helpStyle.Render("No DMX frames received yet.") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Universe %d (%d channels)",
		m.selectedUniverse, len(m.frame))) + "\n\n")
	b.WriteString(m.renderChannelGrid())
	return b.String()
}

func (m Model) renderChannelGrid() string {
	channelsPerRow := m.columnsPerRow
	if channelsPerRow < 1 {
		channelsPerRow = 16
	}

	// Reserve space for title, tabs, header and help lines
	availableHeight := m.height - 10
	if availableHeight < 4 {
		availableHeight = 4
	}
	rowsPerScreen := availableHeight / 4
	if rowsPerScreen < 1 {
		rowsPerScreen = 1
	}

	start := m.scrollOffset
	if start >= len(m.frame) {
		start = 0
	}
	end := start + rowsPerScreen*channelsPerRow
	if end > len(m.frame) {
		end = len(m.frame)
	}

	var rows []string
	for i := start; i < end; i += channelsPerRow {
		var cards []string
		for j := 0; j < channelsPerRow && i+j < end; j++ {
			value := m.frame[i+j]
			content := fmt.Sprintf("%3d\n%3d", i+j+1, value)
			cards = append(cards, activeCardStyle.Render(content))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderStatusBar() string {
	status := m.service.CaptureStatus()

	var capture string
	switch {
	case status.Enabled:
		capture = activeStyle.Render(fmt.Sprintf("capture: %s (%d pkts)", status.Interface, status.PacketsCaptured))
	case !status.DriverAvailable:
		capture = staleStyle.Render("capture: driver unavailable")
	case status.LastError != "":
		capture = warnStyle.Render("capture: " + status.LastError)
	default:
		capture = staleStyle.Render("capture: off")
	}

	line := fmt.Sprintf("%d sources | %s", len(m.sources), capture)
	if m.statusLine != "" {
		line += " | " + m.statusLine
	}
	return helpStyle.Render(line)
}

func formatUniverses(universes, duplicates []uint16) string {
	if len(universes) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(universes))
	for _, u := range universes {
		s := fmt.Sprint(u)
		if containsUniverse(duplicates, u) {
			s = warnStyle.Render(s + "*")
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}

func containsUniverse(universes []uint16, u uint16) bool {
	for _, existing := range universes {
		if existing == u {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// Package tui renders the controller monitor: a live view of worker outcomes
// and the async log channel, polled over the controller's tail operation.
//
// It uses bubbletea's model/update/view loop: key and tick messages update the
// model, the view renders the current snapshot to a string.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flowtap/internal/controller"
)

const refreshInterval = 2 * time.Second

// logTailLines bounds the log panel; the service already caps its ring.
const logTailLines = 12

// Tailer is the monitor's view of the controller: anything that can produce
// a tail snapshot. Both the in-process handle and the dialed client satisfy
// it.
type Tailer interface {
	Tail() (controller.TailSnapshot, error)
}

type tailMsg struct {
	snap controller.TailSnapshot
	err  error
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50C878"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	selectStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

// Monitor is the bubbletea model for the controller monitor screen.
type Monitor struct {
	tailer Tailer
	addr   string

	spinner  spinner.Model
	snapshot controller.TailSnapshot
	fetched  bool
	errText  string

	selection   int
	showPayload bool

	width  int
	height int
}

// NewMonitor builds a monitor over a tail source. addr is shown in the header
// so the user can tell which controller they are watching.
func NewMonitor(tailer Tailer, addr string) *Monitor {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	return &Monitor{tailer: tailer, addr: addr, spinner: sp}
}

// Init starts the spinner and issues the first tail request.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchTail())
}

// Update folds one message into the model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tailMsg:
		m.fetched = true
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.errText = ""
			m.snapshot = msg.snap
			if n := len(m.snapshot.Outcomes); n == 0 {
				m.selection = 0
			} else if m.selection >= n {
				m.selection = n - 1
			}
		}
		return m, m.scheduleRefresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetchTail()
		case "up", "k":
			if m.selection > 0 {
				m.selection--
			}
		case "down", "j":
			if m.selection < len(m.snapshot.Outcomes)-1 {
				m.selection++
			}
		case "enter":
			m.showPayload = !m.showPayload
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the header, the outcome panel, and the log tail.
func (m *Monitor) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	header := headerStyle.Render(fmt.Sprintf("⬡ FLOWTAP MONITOR · %s", m.addr))
	sections := []string{
		header,
		panelStyle.Width(max(40, width-2)).Render(m.renderOutcomes()),
		panelStyle.Width(max(40, width-2)).Render(m.renderLogs()),
	}
	footer := "q → quit    r → refresh    ↑/↓ → select    enter → payload"
	if m.errText != "" {
		footer = fmt.Sprintf("⚠ %s", m.errText)
	}
	sections = append(sections, dimStyle.Render(footer))
	return strings.Join(sections, "\n")
}

func (m *Monitor) renderOutcomes() string {
	title := titleStyle.Render(fmt.Sprintf("Workers (%d)", len(m.snapshot.Outcomes)))
	if len(m.snapshot.Outcomes) == 0 {
		note := "No outcomes yet."
		if !m.fetched {
			note = m.spinner.View() + " waiting for controller..."
		}
		return lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render(note))
	}
	var rows []string
	for i, oc := range m.snapshot.Outcomes {
		rows = append(rows, m.renderOutcome(oc, i == m.selection))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"))
}

func (m *Monitor) renderOutcome(oc controller.Outcome, selected bool) string {
	badge := successStyle.Render("✓")
	if oc.Status == controller.OutcomeFailure {
		badge = failureStyle.Render("✗")
	}
	name := oc.Workflow
	if name == "" {
		name = "(default)"
	}
	line := fmt.Sprintf("%s %s · %s", badge, name, shortID(oc.WorkerID))
	if oc.Message != "" {
		line += " · " + oc.Message
	}
	if selected {
		line = selectStyle.Render("> " + line)
		if m.showPayload && oc.Payload != "" {
			line += "\n" + dimStyle.Render("  "+oc.Payload)
		}
	} else {
		line = "  " + line
	}
	return line
}

func (m *Monitor) renderLogs() string {
	title := titleStyle.Render("Log channel")
	logs := m.snapshot.Logs
	if len(logs) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No messages."))
	}
	if len(logs) > logTailLines {
		logs = logs[len(logs)-logTailLines:]
	}
	var lines []string
	for _, entry := range logs {
		lines = append(lines, fmt.Sprintf("%s %-5s %s",
			entry.At.Format("15:04:05"), entry.Level, entry.Text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"))
}

func (m *Monitor) fetchTail() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.tailer.Tail()
		return tailMsg{snap: snap, err: err}
	}
}

func (m *Monitor) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		snap, err := m.tailer.Tail()
		return tailMsg{snap: snap, err: err}
	})
}

// Run blocks inside the bubbletea program until the user quits.
func Run(tailer Tailer, addr string) error {
	program := tea.NewProgram(NewMonitor(tailer, addr), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: monitor: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package ui provides a terminal viewer for an assignee's work queue.
// Uses Bubbletea for the interactive display.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/dispatch/internal/tasks"
)

// Fetcher loads the queue shown by the viewer.
type Fetcher func(ctx context.Context) ([]*tasks.Task, error)

// Model holds the TUI state.
type Model struct {
	// Display state
	width    int
	height   int
	quitting bool

	// Queue
	title    string
	start    int64
	end      int64
	fetch    Fetcher
	tasks    []*tasks.Task
	selected int
	scroll   int
	loading  bool
	err      error
	loadedAt time.Time

	styles *Styles
}

// Styles holds lipgloss styles for the UI.
type Styles struct {
	Border   lipgloss.Style
	Title    lipgloss.Style
	Label    lipgloss.Style
	Header   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Overdue  lipgloss.Style
	Error    lipgloss.Style

	// Priority
	PriorityHigh   lipgloss.Style
	PriorityMedium lipgloss.Style
	PriorityLow    lipgloss.Style

	// Help bar
	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

// NewStyles creates the default style set.
func NewStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}

	return &Styles{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Label:  lipgloss.NewStyle().Foreground(subtle),
		Header: lipgloss.NewStyle().Bold(true).Underline(true),
		Muted:  lipgloss.NewStyle().Foreground(subtle),

		Selected: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Bold(true),

		Overdue: lipgloss.NewStyle().Foreground(red),
		Error:   lipgloss.NewStyle().Foreground(red).Bold(true),

		PriorityHigh:   lipgloss.NewStyle().Foreground(red).Bold(true),
		PriorityMedium: lipgloss.NewStyle().Foreground(yellow),
		PriorityLow:    lipgloss.NewStyle().Foreground(green),

		HelpKey: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		HelpText: lipgloss.NewStyle().
			Foreground(subtle),
	}
}

// PriorityStyle returns the style for a priority.
func (s *Styles) PriorityStyle(p tasks.Priority) lipgloss.Style {
	switch p {
	case tasks.PriorityHigh:
		return s.PriorityHigh
	case tasks.PriorityMedium:
		return s.PriorityMedium
	case tasks.PriorityLow:
		return s.PriorityLow
	default:
		return s.Muted
	}
}

// queueMsg carries the result of a fetch.
type queueMsg struct {
	tasks []*tasks.Task
	err   error
	at    time.Time
}

// New creates a viewer for the window [start, end].
func New(title string, start, end int64, fetch Fetcher) *Model {
	return &Model{
		width:   100,
		height:  24,
		title:   title,
		start:   start,
		end:     end,
		fetch:   fetch,
		loading: true,
		styles:  NewStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.refreshCmd()
}

func (m Model) refreshCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ts, err := fetch(context.Background())
		return queueMsg{tasks: ts, err: err, at: time.Now()}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case queueMsg:
		m.loading = false
		m.err = msg.err
		m.loadedAt = msg.at
		if msg.err == nil {
			m.tasks = msg.tasks
		}
		if m.selected >= len(m.tasks) {
			m.selected = max(len(m.tasks)-1, 0)
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.loading = true
		return m, m.refreshCmd()

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.tasks)-1 {
			m.selected++
		}
	case "home", "g":
		m.selected = 0
	case "end", "G":
		if len(m.tasks) > 0 {
			m.selected = len(m.tasks) - 1
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render(fmt.Sprintf("Window %s .. %s",
		FormatMillis(m.start), FormatMillis(m.end))))
	b.WriteString("\n\n")
	b.WriteString(m.renderQueue(m.height - 9))

	body := m.styles.Border.Width(max(m.width-2, 20)).Render(b.String())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusLine(), m.renderHelpBar())
}

// renderQueue renders up to rows queue lines.
func (m Model) renderQueue(rows int) string {
	if m.err != nil && len(m.tasks) == 0 {
		return m.styles.Error.Render("Error: " + m.err.Error())
	}
	if len(m.tasks) == 0 {
		if m.loading {
			return m.styles.Muted.Render("Loading...")
		}
		return m.styles.Muted.Render("Queue is empty")
	}

	if rows < 1 {
		rows = 1
	}
	if m.selected < m.scroll {
		m.scroll = m.selected
	} else if m.selected >= m.scroll+rows {
		m.scroll = m.selected - rows + 1
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("  %-6s %-14s %-32s %-10s %-8s %s",
		"ID", "REFERENCE", "TASK", "STATUS", "PRIORITY", "DEADLINE")))
	b.WriteString("\n")

	for i := m.scroll; i < len(m.tasks) && i < m.scroll+rows; i++ {
		t := m.tasks[i]
		placement := tasks.Place(t, m.start, m.end)

		marker := " "
		if placement == tasks.CarryOver {
			marker = "!"
		}
		line := fmt.Sprintf("%s %-6d %-14s %-32s %-10s %-8s %s",
			marker, t.ID,
			fmt.Sprintf("%s/%d", t.ReferenceType, t.ReferenceID),
			truncate(string(t.Type), 32),
			t.Status, t.Priority, FormatMillis(t.Deadline))

		switch {
		case i == m.selected:
			line = m.styles.Selected.Render(line)
		case placement == tasks.CarryOver:
			line = m.styles.Overdue.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatusLine() string {
	var overdue int
	for _, t := range m.tasks {
		if tasks.Place(t, m.start, m.end) == tasks.CarryOver {
			overdue++
		}
	}
	status := fmt.Sprintf("  %d task(s), %d overdue", len(m.tasks), overdue)
	if !m.loadedAt.IsZero() {
		status += ", refreshed " + m.loadedAt.Format("15:04:05")
	}
	if m.loading {
		status += ", refreshing..."
	}
	if m.err != nil && len(m.tasks) > 0 {
		return m.styles.Muted.Render(status) + "  " + m.styles.Error.Render(m.err.Error())
	}
	return m.styles.Muted.Render(status)
}

// renderHelpBar renders the help bar at the bottom.
func (m Model) renderHelpBar() string {
	helpItems := []struct {
		key  string
		desc string
	}{
		{"j/k", "up/down"},
		{"r", "refresh"},
		{"q", "quit"},
	}

	var parts []string
	for _, item := range helpItems {
		parts = append(parts, fmt.Sprintf("%s %s",
			m.styles.HelpKey.Render(item.key),
			m.styles.HelpText.Render(item.desc),
		))
	}

	return "  " + strings.Join(parts, "  |  ")
}

// FormatMillis renders an epoch-millis timestamp in local time. Zero renders
// as "-".
func FormatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// Selected returns the highlighted task, or nil.
func (m *Model) Selected() *tasks.Task {
	if m.selected < 0 || m.selected >= len(m.tasks) {
		return nil
	}
	return m.tasks[m.selected]
}

// Run starts the TUI.
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonbystrom/teamboard/internal/config"
	"github.com/simonbystrom/teamboard/internal/team"
)

const maxNotifications = 10

// Source is the read side the viewer pulls from.
type Source interface {
	Teams() []team.Summary
	Overview() []team.OverviewEntry
	Tasks(name string) []team.Task
}

type view int

const (
	viewTeams view = iota
	viewDetail
)

type snapshotMsg struct {
	teams    []team.Summary
	overview []team.OverviewEntry
}

type tasksMsg struct {
	team  string
	tasks []team.Task
}

type tickMsg time.Time

type notification struct {
	text  string
	time  time.Time
	style lipgloss.Style
}

// Model is the terminal viewer.
type Model struct {
	source  Source
	styles  Styles
	refresh time.Duration

	activeView view
	table      table.Model
	teams      []team.Summary
	overview   map[string]team.OverviewEntry
	detail     string
	tasks      []team.Task

	connected     bool
	notifications []notification

	width  int
	height int
}

// NewApp creates the viewer over source.
func NewApp(cfg config.Config, source Source) Model {
	s := NewStyles(cfg.Colors)

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Status", Width: 8},
			{Title: "Team", Width: 24},
			{Title: "Members", Width: 8},
			{Title: "Tasks", Width: 8},
			{Title: "Unread", Width: 7},
			{Title: "Last activity", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(s.Table())

	refresh := cfg.UI.RefreshIntervalDuration()
	if refresh <= 0 {
		refresh = 2 * time.Second
	}

	return Model{
		source:   source,
		styles:   s,
		refresh:  refresh,
		table:    t,
		overview: make(map[string]team.OverviewEntry),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot(), tickCmd(m.refresh))
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadSnapshot() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		return snapshotMsg{teams: src.Teams(), overview: src.Overview()}
	}
}

func (m Model) loadTasks(name string) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		return tasksMsg{team: name, tasks: src.Tasks(name)}
	}
}

// reload re-pulls everything the active view shows.
func (m Model) reload() tea.Cmd {
	if m.activeView == viewDetail {
		return tea.Batch(m.loadSnapshot(), m.loadTasks(m.detail))
	}
	return m.loadSnapshot()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(3, msg.Height-14-len(m.notifications)))
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.reload(), tickCmd(m.refresh))

	case snapshotMsg:
		m.teams = msg.teams
		m.overview = make(map[string]team.OverviewEntry, len(msg.overview))
		for _, o := range msg.overview {
			m.overview[o.Name] = o
		}
		m.table.SetRows(m.rows())
		return m, nil

	case tasksMsg:
		if msg.team == m.detail {
			m.tasks = msg.tasks
		}
		return m, nil

	case connectedMsg:
		m.connected = true
		m.addNotification("connected to change feed", msg.at, m.styles.Notification)
		return m, nil

	case fileChangedMsg:
		text := fmt.Sprintf("%s %s/%s", msg.Event, msg.Area, msg.File)
		m.addNotification(text, time.UnixMilli(msg.Timestamp), m.styles.Notification)
		return m, m.reload()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.reload()
		case "esc":
			if m.activeView == viewDetail {
				m.activeView = viewTeams
				m.detail = ""
				m.tasks = nil
			}
			return m, nil
		case "enter":
			if m.activeView != viewTeams {
				return m, nil
			}
			i := m.table.Cursor()
			if i < 0 || i >= len(m.teams) {
				return m, nil
			}
			m.activeView = viewDetail
			m.detail = m.teams[i].Name
			m.tasks = nil
			return m, m.loadTasks(m.detail)
		}
	}

	if m.activeView == viewTeams {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) addNotification(text string, at time.Time, style lipgloss.Style) {
	m.notifications = append(m.notifications, notification{text: text, time: at, style: style})
	if len(m.notifications) > maxNotifications {
		m.notifications = m.notifications[len(m.notifications)-maxNotifications:]
	}
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.teams))
	for _, t := range m.teams {
		o := m.overview[t.Name]
		rows = append(rows, table.Row{
			string(t.Status),
			t.Name,
			fmt.Sprintf("%d", t.MemberCount),
			fmt.Sprintf("%d/%d", o.CompletedTasks, o.TaskCount),
			fmt.Sprintf("%d", o.UnreadMessages),
			formatAge(t.Activity),
		})
	}
	return rows
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("teamboard"))
	if m.connected {
		b.WriteString(m.styles.Active.Render(" ● live"))
	} else {
		b.WriteString(m.styles.Stale.Render(" ○ waiting for changes"))
	}
	b.WriteString("\n\n")

	switch m.activeView {
	case viewDetail:
		b.WriteString(m.viewDetail())
	default:
		if len(m.teams) == 0 {
			b.WriteString(m.styles.Stale.Render("  No teams found."))
			b.WriteString("\n")
		} else {
			b.WriteString(m.table.View())
			b.WriteString("\n")
		}
	}

	// Notifications (newest first)
	if len(m.notifications) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Header.Render("  ── Changes ──"))
		b.WriteString("\n")
		for i := len(m.notifications) - 1; i >= 0; i-- {
			n := m.notifications[i]
			line := fmt.Sprintf("  %s %s", n.time.Format("15:04:05"), n.text)
			b.WriteString(n.style.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.activeView == viewDetail {
		b.WriteString(m.styles.Help.Render("  esc: back │ r: refresh │ q: quit"))
	} else {
		b.WriteString(m.styles.Help.Render("  ↑/↓: select │ enter: tasks │ r: refresh │ q: quit"))
	}

	maxWidth := m.width - 4
	if maxWidth < 40 {
		maxWidth = 80
	}
	return m.styles.Border.Width(maxWidth).Render(b.String())
}

func (m Model) viewDetail() string {
	var b strings.Builder

	var summary team.Summary
	for _, t := range m.teams {
		if t.Name == m.detail {
			summary = t
			break
		}
	}
	o := m.overview[m.detail]

	b.WriteString(m.styles.Header.Render("  " + m.detail))
	b.WriteString(" ")
	b.WriteString(m.styles.Status(summary.Status).Render(string(summary.Status)))
	b.WriteString("\n")
	if summary.Description != "" {
		b.WriteString("  " + summary.Description + "\n")
	}
	fmt.Fprintf(&b, "  %d members │ %d messages, ", summary.MemberCount, o.TotalMessages)
	b.WriteString(m.styles.Unread.Render(fmt.Sprintf("%d unread", o.UnreadMessages)))
	b.WriteString("\n\n")

	if len(m.tasks) == 0 {
		b.WriteString(m.styles.Stale.Render("  No tasks."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.styles.Header.Render(fmt.Sprintf("  %-6s %-12s %s", "ID", "Status", "Subject")))
	b.WriteString("\n")
	for _, t := range m.tasks {
		status := string(t.Status())
		styled := m.styles.Stale.Render(status)
		switch t.Status() {
		case team.TaskInProgress:
			styled = m.styles.Recent.Render(status)
		case team.TaskCompleted:
			styled = m.styles.Active.Render(status)
		}
		// Pad by visual width; styled text carries ANSI codes.
		if w := lipgloss.Width(styled); w < 12 {
			styled += strings.Repeat(" ", 12-w)
		}
		subject, _ := t["subject"].(string)
		fmt.Fprintf(&b, "  %-6s %s %s\n", truncate(t.ID(), 6), styled, subject)
	}
	return b.String()
}

// formatAge renders how long ago a team was last touched.
func formatAge(a team.Activity) string {
	if a.LastActivityISO == nil {
		return "never"
	}
	d := time.Duration(a.AgeHours * float64(time.Hour))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh ago", a.AgeHours)
	default:
		return fmt.Sprintf("%dd ago", int(a.AgeHours/24))
	}
}

func truncate(s string, max int) string {
	if lipgloss.Width(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

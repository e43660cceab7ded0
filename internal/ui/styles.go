package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonbystrom/teamboard/internal/config"
	"github.com/simonbystrom/teamboard/internal/team"
)

// Styles holds all lipgloss styles used by the viewer.
type Styles struct {
	Title        lipgloss.Style
	Header       lipgloss.Style
	Selected     lipgloss.Style
	Active       lipgloss.Style
	Recent       lipgloss.Style
	Stale        lipgloss.Style
	Unread       lipgloss.Style
	Notification lipgloss.Style
	Help         lipgloss.Style
	Border       lipgloss.Style
	Error        lipgloss.Style
}

// NewStyles builds a Styles from the configured colors.
func NewStyles(c config.Colors) Styles {
	color := func(s string) lipgloss.Color { return lipgloss.Color(s) }

	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(color(c.Title)).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(color(c.Header)),
		Selected: lipgloss.NewStyle().
			Background(color(c.SelectedBG)).
			Foreground(color(c.SelectedFG)),
		Active: lipgloss.NewStyle().
			Foreground(color(c.Active)).
			Bold(true),
		Recent: lipgloss.NewStyle().
			Foreground(color(c.Recent)),
		Stale: lipgloss.NewStyle().
			Foreground(color(c.Stale)),
		Unread: lipgloss.NewStyle().
			Foreground(color(c.Unread)).
			Bold(true),
		Notification: lipgloss.NewStyle().
			Foreground(color(c.Notification)).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(color(c.Help)),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color(c.Border)).
			Padding(1, 2),
		Error: lipgloss.NewStyle().
			Foreground(color(c.Error)).
			Bold(true),
	}
}

// Status returns the style for an activity status.
func (s Styles) Status(status team.ActivityStatus) lipgloss.Style {
	switch status {
	case team.StatusActive:
		return s.Active
	case team.StatusRecent:
		return s.Recent
	default:
		return s.Stale
	}
}

// Table adapts the palette to the bubbles table.
func (s Styles) Table() table.Styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(s.Border.GetBorderBottomForeground()).
		Foreground(s.Header.GetForeground()).
		Bold(true)
	ts.Selected = s.Selected.Bold(false)
	return ts
}

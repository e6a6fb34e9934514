package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title       lipgloss.Style
	roomLabel   lipgloss.Style
	tick        lipgloss.Style
	lane        lipgloss.Style
	segment     lipgloss.Style
	selected    lipgloss.Style
	pending     lipgloss.Style
	dragging    lipgloss.Style
	warning     lipgloss.Style
	prompt      lipgloss.Style
	toast       lipgloss.Style
	destructive lipgloss.Style
	help        lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		roomLabel:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		tick:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		lane:        lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		segment:     lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39")),
		selected:    lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")).Bold(true),
		pending:     lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("245")),
		dragging:    lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("213")),
		warning:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1),
		toast:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 1),
		destructive: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("196")).Padding(0, 1),
		help:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

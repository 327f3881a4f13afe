// Package ui provides the visual styling for surveyor's CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors, shared across commands.
var (
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Destructive = lipgloss.Color("#e53935") // Red
	Info        = lipgloss.Color("#2196F3") // Blue
	Muted       = lipgloss.Color("245")     // Gray
)

var (
	Title = lipgloss.NewStyle().Bold(true)
	Label = lipgloss.NewStyle().Foreground(Muted)
	Count = lipgloss.NewStyle().Bold(true).Foreground(Info)

	Hit   = lipgloss.NewStyle().Foreground(Success)
	Miss  = lipgloss.NewStyle().Foreground(Warning)
	Fail  = lipgloss.NewStyle().Foreground(Destructive)
	Field = lipgloss.NewStyle().Foreground(Info)

	SummaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1)
)

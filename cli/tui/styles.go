// Package tui provides the Bubble Tea interactive views for the
// fft-agent CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI views are read-only (watch command)
//   - TUI renders the same snapshots the plain output renders
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// StatusStyle for the snapshot status line.
	StatusStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// ChangeStyle for recent field-change lines.
	ChangeStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// HPStyle returns a style graded by remaining HP fraction.
func HPStyle(fraction float64) lipgloss.Style {
	switch {
	case fraction <= 0:
		return lipgloss.NewStyle().Foreground(errorColor)
	case fraction < 0.3:
		return lipgloss.NewStyle().Foreground(warningColor)
	default:
		return lipgloss.NewStyle().Foreground(successColor)
	}
}

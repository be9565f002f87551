package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("86")  // Cyan
	colorSuccess = lipgloss.Color("42")  // Green
	colorError   = lipgloss.Color("196") // Red
	colorWarn    = lipgloss.Color("214") // Orange
	colorInfo    = lipgloss.Color("75")  // Blue
	colorMuted   = lipgloss.Color("240") // Gray
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	phaseHeaderStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				MarginTop(1)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarn)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorInfo)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true).
			MarginTop(1)
)

// Icons
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWarning = "⚠"
	iconArrow   = "►"
)

func renderHeader(text string) string {
	return headerStyle.Render(text)
}

func renderSuccess(text string) string {
	return successStyle.Render(iconDone + " " + text)
}

func renderError(text string) string {
	return errorStyle.Render(iconFailed + " " + text)
}

func renderBlocked(text string) string {
	return mutedStyle.Render("  " + text)
}

func renderOption(selected bool, text string) string {
	if selected {
		return selectedStyle.Render(iconArrow + " " + text)
	}
	return "  " + text
}

func renderStatusBar(text string) string {
	return statusBarStyle.Render(text)
}

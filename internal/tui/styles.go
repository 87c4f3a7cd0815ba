package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245"))

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	lowBalanceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)

	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func healthStyleFor(status string) lipgloss.Style {
	switch status {
	case "healthy":
		return healthyStyle
	case "warning":
		return warningStyle
	case "error":
		return errorStyle
	default:
		return unknownStyle
	}
}

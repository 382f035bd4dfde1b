package cli

import "github.com/charmbracelet/lipgloss"

// Shared lipgloss styles for command output.
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Strikethrough(true)
)

// statusStyle picks a color for lifecycle states shared across entities.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed", "mapped", "approved", "active":
		return okStyle
	case "failed", "rejected", "cancelled":
		return failStyle
	case "running", "pending", "paused", "extracting", "mapping", "edited", "rerun_requested", "skipped":
		return warnStyle
	default:
		return dimStyle
	}
}

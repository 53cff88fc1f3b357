package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	neonCyan    = lipgloss.Color("#5FD7FF")
	neonMagenta = lipgloss.Color("#D75FAF")
	neonGreen   = lipgloss.Color("#87D75F")
	neonYellow  = lipgloss.Color("#FFD75F")
	neonOrange  = lipgloss.Color("#FF8700")
	errorRed    = lipgloss.Color("#FF5F5F")
	darkBg      = lipgloss.Color("#101418")
	panelBg     = lipgloss.Color("#1C2128")
	dimWhite    = lipgloss.Color("#A8A8A8")
	faintGray   = lipgloss.Color("#5F5F5F")
)

var (
	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Background(panelBg).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(neonMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().Foreground(neonCyan).Bold(true)
	statsValueStyle = lipgloss.NewStyle().Foreground(neonYellow)
	speedStyle      = lipgloss.NewStyle().Foreground(neonCyan)

	successStyle = lipgloss.NewStyle().Foreground(neonGreen).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(neonOrange).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorRed).Bold(true)

	// download rows
	queueItemActiveStyle = lipgloss.NewStyle().
				Foreground(neonGreen).
				PaddingLeft(2)
	queueItemCompletedStyle = lipgloss.NewStyle().
				Foreground(dimWhite).
				Faint(true).
				PaddingLeft(2)

	logTimestampStyle = lipgloss.NewStyle().Foreground(faintGray)
	logMessageStyle   = lipgloss.NewStyle().Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(faintGray).
			Padding(1, 0, 0, 2)
)

// GetProgressBarStyle colors a source's count by how close it is to its limit
func GetProgressBarStyle(percentage float64) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch {
	case percentage >= 100:
		return style.Foreground(neonGreen)
	case percentage >= 50:
		return style.Foreground(neonYellow)
	case percentage > 0:
		return style.Foreground(neonOrange)
	default:
		return style.Foreground(faintGray)
	}
}

package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔════════════════════════════════════════════════╗
║  W A L L G R A B   ::   wallpaper harvester    ║
╚════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActiveDownloadsPanel(width),
		m.renderRecentPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderSourcesPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" SESSION ")

	elapsed := time.Since(m.sessionStartTime)
	avgSpeed, perMinute := m.downloadStats()

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Images Saved:"), statsValueStyle.Render(fmt.Sprintf("%d files", m.totalDownloaded))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Total Size:"), statsValueStyle.Render(FormatBytes(m.totalSize))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Average Speed:"), speedStyle.Render(FormatSpeed(avgSpeed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), speedStyle.Render(fmt.Sprintf("%.1f/min", perMinute))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Workers:"), statsValueStyle.Render(fmt.Sprintf("%d/%d busy", m.activeDownloads, m.maxConcurrent))),
	}

	if m.isPaused {
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderActiveDownloadsPanel(width int) string {
	title := titleStyle.Render(" ACTIVE DOWNLOADS ")

	active := m.GetActiveDownloads()
	if len(active) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No active downloads")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var lines []string
	for _, download := range active {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			m.spinner.View(),
			statsLabelStyle.Render(download.Source),
			queueItemActiveStyle.Render(truncate(download.URL, width-20)),
		))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" RECENTLY SAVED ")

	completed := m.GetCompletedDownloads()
	if len(completed) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing saved yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	items := []string{successStyle.Render(fmt.Sprintf("✓ %d saved", len(completed)))}
	start := len(completed) - 5
	if start < 0 {
		start = 0
	}
	for _, d := range completed[start:] {
		items = append(items, queueItemCompletedStyle.Render(fmt.Sprintf("✓ %s  %s", baseName(d.Path), FormatBytes(d.Size))))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderSourcesPanel(width int) string {
	title := titleStyle.Render(" SOURCES ")

	sources := m.GetSources()
	if len(sources) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for the first source...")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var lines []string
	for _, s := range sources {
		pct := 0.0
		if s.Limit > 0 {
			pct = float64(s.Accepted) / float64(s.Limit)
		}
		if pct > 1 {
			pct = 1
		}

		header := fmt.Sprintf("%s %s", statsLabelStyle.Render(s.Name),
			GetProgressBarStyle(pct*100).Render(fmt.Sprintf("%d/%d", s.Accepted, s.Limit)))
		if s.Rejected > 0 {
			header += " " + warningStyle.Render(fmt.Sprintf("%d rejected", s.Rejected))
		}
		if s.Failed > 0 {
			header += " " + errorStyle.Render(fmt.Sprintf("%d failed", s.Failed))
		}

		bar := m.progressBars[s.Name]
		bar.Width = width - 8
		lines = append(lines, header, bar.ViewAs(pct))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit
    p/P      - Pause/Resume new downloads
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Colors:
    ` + successStyle.Render("Green") + `    - Saved
    ` + warningStyle.Render("Orange") + `   - Rejected by size, type or resolution
    ` + errorStyle.Render("Red") + `      - Failed
`

	return panelStyle.Width(m.width).Render(help)
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

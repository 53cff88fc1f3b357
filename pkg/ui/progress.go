package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// Bar renders a fixed width progress bar for done out of total
func Bar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// PrintSummary prints the end-of-run banner
func PrintSummary(total int, location, archivePath string) {
	rule := "============================================================"
	printf("\n%s\n", Dim(rule))
	printf("%s\n", Green("Download Complete!"))
	printf("%s %s\n", Green("Total images downloaded:"), Yellow(fmt.Sprint(total)))
	if archivePath != "" {
		printf("%s %s\n", Green("Archive:"), Yellow(archivePath))
	} else {
		printf("%s %s\n", Green("Location:"), Yellow(location))
	}
	printf("%s\n\n", Dim(rule))
}

// Hints are shown when a run saves nothing
var Hints = []string{
	"Check your internet connection",
	"Reddit and Wallhaven work without API keys and should find images",
	"Add free API keys for Pixabay or Pexels with 'wallgrab keys set <source>'",
	"Try a broader query or lower --min-size",
}

// PrintHints prints the zero-download advice list
func PrintHints(query string) {
	printf("%s\n", Yellow("No images were downloaded. Try these options:"))
	for i, h := range Hints {
		printf("%d. %s\n", i+1, h)
	}
	printf("%d. Visit these sites directly:\n", len(Hints)+1)
	printf("   - https://wallhaven.cc (search: %s)\n", query)
	printf("   - https://www.reddit.com/r/wallpaper\n")
	printf("   - https://wall.alphacoders.com\n")
}

package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DownloadState represents the state of a download
type DownloadState int

const (
	DownloadActive DownloadState = iota
	DownloadCompleted
	DownloadRejected
	DownloadFailed
)

// DownloadItem represents a single download
type DownloadItem struct {
	ID        string
	Source    string
	URL       string
	Path      string
	Size      int64
	State     DownloadState
	StartTime time.Time
	Error     error
}

// SourceStats tracks one source's progress toward its limit
type SourceStats struct {
	Name     string
	Limit    int
	Accepted int
	Rejected int
	Failed   int
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner      spinner.Model
	progressBars map[string]progress.Model

	// Download state
	downloads       map[string]*DownloadItem
	downloadOrder   []string
	activeDownloads int
	maxConcurrent   int

	// Per-source progress
	sources     map[string]*SourceStats
	sourceOrder []string

	// Stats
	totalDownloaded  int
	totalSize        int64
	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel(maxConcurrent int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		spinner:          s,
		progressBars:     make(map[string]progress.Model),
		downloads:        make(map[string]*DownloadItem),
		maxConcurrent:    maxConcurrent,
		sources:          make(map[string]*SourceStats),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// StartSource registers a source and its limit
func (m *Model) StartSource(name string, limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sources[name]; !ok {
		m.sourceOrder = append(m.sourceOrder, name)
		p := progress.New(progress.WithDefaultGradient())
		p.Width = 30
		m.progressBars[name] = p
	}
	m.sources[name] = &SourceStats{Name: name, Limit: limit}
}

// StartDownload adds an active download
func (m *Model) StartDownload(id, source, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.downloads[id] = &DownloadItem{
		ID:        id,
		Source:    source,
		URL:       url,
		State:     DownloadActive,
		StartTime: time.Now(),
	}
	m.downloadOrder = append(m.downloadOrder, id)
	m.activeDownloads++
}

// finish moves an active download to its final state. Callers hold mu.
func (m *Model) finish(id string, state DownloadState) *DownloadItem {
	download, ok := m.downloads[id]
	if !ok || download.State != DownloadActive {
		return nil
	}
	download.State = state
	m.activeDownloads--
	return download
}

// CompleteDownload marks a download as saved
func (m *Model) CompleteDownload(id, path string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	download := m.finish(id, DownloadCompleted)
	if download == nil {
		return
	}
	download.Path = path
	download.Size = size
	m.totalDownloaded++
	m.totalSize += size
	if s, ok := m.sources[download.Source]; ok {
		s.Accepted++
	}
}

// RejectDownload marks a download that failed a quality check
func (m *Model) RejectDownload(id string, reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	download := m.finish(id, DownloadRejected)
	if download == nil {
		return
	}
	download.Error = reason
	if s, ok := m.sources[download.Source]; ok {
		s.Rejected++
	}
}

// FailDownload marks a download as failed
func (m *Model) FailDownload(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	download := m.finish(id, DownloadFailed)
	if download == nil {
		return
	}
	download.Error = err
	if s, ok := m.sources[download.Source]; ok {
		s.Failed++
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = errorRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

func (m *Model) downloadsIn(state DownloadState) []*DownloadItem {
	var out []*DownloadItem
	for _, id := range m.downloadOrder {
		if download := m.downloads[id]; download != nil && download.State == state {
			out = append(out, download)
		}
	}
	return out
}

// GetActiveDownloads returns the downloads in flight
func (m *Model) GetActiveDownloads() []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloadsIn(DownloadActive)
}

// GetCompletedDownloads returns the saved downloads in order
func (m *Model) GetCompletedDownloads() []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloadsIn(DownloadCompleted)
}

// GetSources returns a snapshot of per-source progress in start order
func (m *Model) GetSources() []SourceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SourceStats, 0, len(m.sourceOrder))
	for _, name := range m.sourceOrder {
		out = append(out, *m.sources[name])
	}
	return out
}

// downloadStats returns bytes per second and images per minute. Callers hold mu.
func (m *Model) downloadStats() (avgSpeed float64, perMinute float64) {
	elapsed := time.Since(m.sessionStartTime)
	if elapsed <= 0 {
		return 0, 0
	}
	return float64(m.totalSize) / elapsed.Seconds(), float64(m.totalDownloaded) / elapsed.Minutes()
}

// FormatBytes formats bytes to human readable format
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

// FormatSpeed formats speed in bytes per second
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%s/s", FormatBytes(int64(bytesPerSecond)))
}

package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// SourceStartMsg is sent when the scraper moves to a new source
type SourceStartMsg struct {
	Source string
	Limit  int
}

// DownloadStartMsg is sent when a download starts
type DownloadStartMsg struct {
	ID     string
	Source string
	URL    string
}

// DownloadCompleteMsg is sent when an image is saved
type DownloadCompleteMsg struct {
	ID   string
	Path string
	Size int64
}

// DownloadRejectMsg is sent when an image fails a quality check
type DownloadRejectMsg struct {
	ID     string
	Reason error
}

// DownloadErrorMsg is sent when a download fails
type DownloadErrorMsg struct {
	ID    string
	Error error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case SourceStartMsg:
		m.StartSource(msg.Source, msg.Limit)
		m.AddLogMessage("INFO", "Searching "+msg.Source)
		return m, nil

	case DownloadStartMsg:
		m.StartDownload(msg.ID, msg.Source, msg.URL)
		return m, nil

	case DownloadCompleteMsg:
		m.CompleteDownload(msg.ID, msg.Path, msg.Size)
		m.AddLogMessage("SUCCESS", "Saved "+baseName(msg.Path)+" ("+FormatBytes(msg.Size)+")")
		return m, nil

	case DownloadRejectMsg:
		m.RejectDownload(msg.ID, msg.Reason)
		if msg.Reason != nil {
			m.AddLogMessage("WARN", "Rejected: "+msg.Reason.Error())
		}
		return m, nil

	case DownloadErrorMsg:
		m.FailDownload(msg.ID, msg.Error)
		if msg.Error != nil {
			m.AddLogMessage("ERROR", "Failed: "+msg.Error.Error())
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.mu.Lock()
		m.isPaused = !m.isPaused
		paused := m.isPaused
		m.mu.Unlock()
		if paused {
			m.AddLogMessage("WARN", "Downloads paused by user")
		} else {
			m.AddLogMessage("INFO", "Downloads resumed by user")
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

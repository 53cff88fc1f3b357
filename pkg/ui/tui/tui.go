package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance
func NewTUI(maxConcurrent int) *TUI {
	model := NewModel(maxConcurrent)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the TUI until it quits. It blocks.
func (t *TUI) Start() error {
	go func() {
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) StartSource(source string, limit int) {
	t.Send(SourceStartMsg{Source: source, Limit: limit})
}

func (t *TUI) StartDownload(id, source, url string) {
	t.Send(DownloadStartMsg{ID: id, Source: source, URL: url})
}

func (t *TUI) CompleteDownload(id, path string, size int64) {
	t.Send(DownloadCompleteMsg{ID: id, Path: path, Size: size})
}

func (t *TUI) RejectDownload(id string, reason error) {
	t.Send(DownloadRejectMsg{ID: id, Reason: reason})
}

func (t *TUI) FailDownload(id string, err error) {
	t.Send(DownloadErrorMsg{ID: id, Error: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// IsPaused returns whether downloads are paused
func (t *TUI) IsPaused() bool {
	t.model.mu.RLock()
	defer t.model.mu.RUnlock()
	return t.model.isPaused
}

package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelDownloadLifecycle(t *testing.T) {
	model := NewModel(3)

	model.StartSource("wallhaven", 2)
	model.StartDownload("1", "wallhaven", "https://w.wallhaven.cc/full/a.jpg")
	model.StartDownload("2", "wallhaven", "https://w.wallhaven.cc/full/b.jpg")
	model.StartDownload("3", "wallhaven", "https://w.wallhaven.cc/full/c.jpg")
	assert.Equal(t, 3, model.activeDownloads)
	assert.Len(t, model.GetActiveDownloads(), 3)

	model.CompleteDownload("1", "/out/wallhaven_ae86_1.jpg", 300*1024)
	model.RejectDownload("2", errors.New("too small"))
	model.FailDownload("3", errors.New("timeout"))

	assert.Equal(t, 0, model.activeDownloads)
	assert.Equal(t, 1, model.totalDownloaded)
	assert.Equal(t, int64(300*1024), model.totalSize)

	completed := model.GetCompletedDownloads()
	require.Len(t, completed, 1)
	assert.Equal(t, "/out/wallhaven_ae86_1.jpg", completed[0].Path)

	sources := model.GetSources()
	require.Len(t, sources, 1)
	assert.Equal(t, SourceStats{Name: "wallhaven", Limit: 2, Accepted: 1, Rejected: 1, Failed: 1}, sources[0])
}

func TestModelIgnoresUnknownOrFinishedDownloads(t *testing.T) {
	model := NewModel(1)
	model.StartSource("reddit", 1)

	model.CompleteDownload("missing", "/x.jpg", 10)
	assert.Equal(t, 0, model.totalDownloaded)

	model.StartDownload("1", "reddit", "https://i.redd.it/a.jpg")
	model.CompleteDownload("1", "/a.jpg", 10)
	model.FailDownload("1", errors.New("late"))

	assert.Equal(t, 0, model.activeDownloads)
	assert.Equal(t, 1, model.GetSources()[0].Accepted)
	assert.Equal(t, 0, model.GetSources()[0].Failed)
}

func TestModelSourceOrder(t *testing.T) {
	model := NewModel(1)
	model.StartSource("wallhaven", 10)
	model.StartSource("reddit", 10)
	model.StartSource("unsplash", 5)

	var names []string
	for _, s := range model.GetSources() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"wallhaven", "reddit", "unsplash"}, names)
}

func TestModelLogTrimming(t *testing.T) {
	model := NewModel(1)
	for i := 0; i < model.maxLogMessages+10; i++ {
		model.AddLogMessage("INFO", "line")
	}
	assert.Len(t, model.logMessages, model.maxLogMessages)
}

func TestUpdateHandlesMessages(t *testing.T) {
	model := NewModel(2)

	model.Update(SourceStartMsg{Source: "pexels", Limit: 4})
	model.Update(DownloadStartMsg{ID: "a", Source: "pexels", URL: "https://images.pexels.com/a.jpeg"})
	model.Update(DownloadCompleteMsg{ID: "a", Path: "/out/pexels_cat_1.jpeg", Size: 2048})

	assert.Equal(t, 1, model.totalDownloaded)
	assert.Equal(t, 1, model.GetSources()[0].Accepted)

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	assert.True(t, model.isPaused)
	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	assert.False(t, model.isPaused)
}

func TestViewRenders(t *testing.T) {
	model := NewModel(2)
	assert.Equal(t, "Initializing...", model.View())

	model.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	model.StartSource("reddit", 3)
	model.StartDownload("1", "reddit", "https://i.redd.it/a.jpg")

	view := model.View()
	assert.Contains(t, view, "SOURCES")
	assert.Contains(t, view, "reddit")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, FormatBytes(test.bytes))
	}
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "1.0 KB/s", FormatSpeed(1024))
	assert.Equal(t, "512.0 KB/s", FormatSpeed(512*1024))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

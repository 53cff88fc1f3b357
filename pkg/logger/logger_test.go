package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wallgrab/pkg/config"
)

func newJSONLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level, Format: "json"}, &buf)
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "wallgrab.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
		err   bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if tt.err {
			assert.Error(t, err, tt.input)
			continue
		}
		assert.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestJSONOutput(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")

	l.WithField("source", "reddit").InfoWithFields("Image saved", map[string]interface{}{
		"size":     int64(204800),
		"accepted": true,
		"elapsed":  150 * time.Millisecond,
	})

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Image saved", entry["message"])
	assert.Equal(t, "wallgrab", entry["app"])
	assert.Equal(t, "reddit", entry["source"])
	assert.Equal(t, float64(204800), entry["size"])
	assert.Equal(t, true, entry["accepted"])
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newJSONLogger(t, "warn")

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "also shown", entries[1]["message"])
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	l, buf := newJSONLogger(t, "info")

	child := l.WithFields(map[string]interface{}{"query": "mountains"})
	child.WithField("source", "pexels").Info("child")
	l.Info("parent")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "mountains", entries[0]["query"])
	assert.Equal(t, "pexels", entries[0]["source"])
	assert.NotContains(t, entries[1], "query")
	assert.NotContains(t, entries[1], "source")
}

func TestWithError(t *testing.T) {
	l, buf := newJSONLogger(t, "info")

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection reset")).Error("fetch failed")
	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "connection reset", entries[0]["error"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallgrab.log")
	var console bytes.Buffer

	l, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path, Format: "json"}, &console)
	require.NoError(t, err)
	l.Info("to both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, console.String(), "to both")
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	Info("global info")
	WithField("k", "v").Warn("global warn")

	assert.True(t, tl.HasMessage("global info"))
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "v", warns[0].Fields["k"])
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, "wallhaven", "https://w.wallhaven.cc/a.jpg", "/tmp/a.jpg", "accepted", nil)
	LogDownload(tl, "reddit", "https://i.redd.it/b.png", "", "failed", errors.New("timeout"))
	LogRequest(tl, "GET", "https://api.example.com", 503, time.Second)
	LogRateLimit(tl, "pexels", 2*time.Second)
	LogMetrics(tl, "search", map[string]interface{}{"saved": 3})

	assert.True(t, tl.HasMessage("Image saved"))
	assert.True(t, tl.HasMessage("Download failed"))
	assert.True(t, tl.HasMessage("HTTP request server error"))
	assert.True(t, tl.HasMessage("Rate limit reached, backing off"))

	failed := tl.GetMessagesByLevel("WARN")[0]
	assert.EqualError(t, failed.Error, "timeout")
	assert.Equal(t, "reddit", failed.Fields["source"])

	metrics := tl.GetMessagesByLevel("INFO")
	last := metrics[len(metrics)-1]
	assert.Equal(t, 3, last.Fields["saved"])
	assert.Equal(t, "search", last.Fields["operation"])
}

func TestTestLoggerSharesRecordWithChildren(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("a", 1).WithError(errors.New("boom")).Error("child error")

	assert.True(t, tl.HasError())
	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Fields["a"])
	assert.Contains(t, tl.String(), "error=boom")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("x", 1).WithError(errors.New("ignored")).Info("nothing")
	assert.NotNil(t, l.GetZerolog())
}

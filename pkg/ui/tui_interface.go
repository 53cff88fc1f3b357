package ui

// TUI receives progress from a scraper run. Both the bubbletea interface and
// ProgressDisplay implement it.
type TUI interface {
	StartSource(source string, limit int)
	StartDownload(id, source, url string)
	CompleteDownload(id, path string, size int64)
	RejectDownload(id string, reason error)
	FailDownload(id string, err error)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
	IsPaused() bool
}

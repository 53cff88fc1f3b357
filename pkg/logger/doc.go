// Package logger wraps zerolog behind a small Logger interface.
//
// Console output is colored and goes to stderr so that stdout stays free
// for the progress display and the end-of-run summary. Setting
// logging.format to "json" switches to raw zerolog JSON lines, and
// logging.file tees every entry into an append-only file.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("source", "reddit").Info("Searching")
//
// Loggers are passed explicitly to components; the package-level
// functions use a lazily created global for code paths without one.
package logger

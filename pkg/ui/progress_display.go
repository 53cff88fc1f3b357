package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay is the plain terminal progress reporter. In verbose mode
// it prints one line per download, otherwise it redraws a single status line.
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	source    string
	limit     int
	accepted  int
	rejected  int
	failed    int
	bytes     int64
	urls      map[string]string
	startTime time.Time
}

// NewProgressDisplay creates a progress display writing to out
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		verbose:   verbose,
		urls:      make(map[string]string),
		startTime: time.Now(),
	}
}

// StartSource resets the per-source counters
func (p *ProgressDisplay) StartSource(source string, limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source != "" && !p.verbose {
		fmt.Fprintln(p.out)
	}
	p.source = source
	p.limit = limit
	p.accepted, p.rejected, p.failed = 0, 0, 0
}

// StartDownload marks the start of a download
func (p *ProgressDisplay) StartDownload(id, source, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.urls[id] = url
	if !p.verbose {
		p.printProgress()
	}
}

// CompleteDownload marks a download as saved
func (p *ProgressDisplay) CompleteDownload(id, path string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.urls, id)
	p.accepted++
	p.bytes += size

	if p.verbose {
		fmt.Fprintf(p.out, "%s %s (%s)\n", Green("✓"), filepath.Base(path), FormatBytes(size))
		return
	}
	p.printProgress()
}

// RejectDownload marks a download that failed a quality check
func (p *ProgressDisplay) RejectDownload(id string, reason error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	url := p.urls[id]
	delete(p.urls, id)
	p.rejected++

	if p.verbose {
		fmt.Fprintf(p.out, "%s %s - %v\n", Yellow("✗"), url, reason)
		return
	}
	p.printProgress()
}

// FailDownload marks a download as failed
func (p *ProgressDisplay) FailDownload(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	url := p.urls[id]
	delete(p.urls, id)
	p.failed++

	if p.verbose {
		fmt.Fprintf(p.out, "%s %s - %v\n", Red("✗"), url, err)
		return
	}
	p.printProgress()
}

// printProgress redraws the status line
func (p *ProgressDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.accepted) / elapsed.Minutes()
	}

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s",
		Cyan(p.source),
		Bar(p.accepted, p.limit, 20),
		p.accepted,
		p.limit,
		rate,
		FormatBytes(p.bytes),
	)
	if p.rejected > 0 {
		line += fmt.Sprintf(" • %s", Yellow(fmt.Sprintf("%d rejected", p.rejected)))
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.failed)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) log(color func(string) string, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if p.verbose {
		fmt.Fprintln(p.out, color(msg))
		return
	}
	fmt.Fprintf(p.out, "\r%s\r%s\n", strings.Repeat(" ", 120), color(msg))
}

func (p *ProgressDisplay) LogInfo(format string, args ...interface{}) {
	p.log(Cyan, format, args...)
}

func (p *ProgressDisplay) LogSuccess(format string, args ...interface{}) {
	p.log(Green, format, args...)
}

func (p *ProgressDisplay) LogWarning(format string, args ...interface{}) {
	p.log(Yellow, format, args...)
}

func (p *ProgressDisplay) LogError(format string, args ...interface{}) {
	p.log(Red, format, args...)
}

// IsPaused is always false; the plain display has no pause key
func (p *ProgressDisplay) IsPaused() bool {
	return false
}

// Complete prints the overall totals
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.out, "\n%s %s in %s\n", Dim("•"), FormatBytes(p.bytes), FormatDuration(elapsed))
}

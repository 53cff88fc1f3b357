package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const tempPrefix = ".wallgrab-"

// DefaultPattern names files {source}_{query}_{n}.{ext}
const DefaultPattern = "{source}_{query}_{n}.{ext}"

var (
	unsafeQueryChars = regexp.MustCompile(`[^\p{L}\p{N}_\-. ]`)
	placeholders     = regexp.MustCompile(`\{(source|query|n|ext)\}`)
)

// SanitizeQuery keeps letters, digits, '_', '-', '.' and spaces, then
// turns spaces into underscores
func SanitizeQuery(query string) string {
	safe := unsafeQueryChars.ReplaceAllString(query, "")
	safe = strings.ReplaceAll(strings.TrimSpace(safe), " ", "_")
	if safe == "" {
		return "query"
	}
	return safe
}

// Staged is a fully written temp file awaiting Commit or Discard
type Staged struct {
	Path string
	Size int64
}

// Manager handles file storage for one output directory
type Manager struct {
	outputDir string
	pattern   string

	// matches names produced by pattern; group 1 is {n}
	numbered *regexp.Regexp

	mu        sync.Mutex
	stems     map[string]bool
	highest   int
	committed []string
}

// NewManager creates the output directory if needed and indexes the files
// already in it
func NewManager(outputDir, pattern string) (*Manager, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		pattern:   pattern,
		numbered:  numberedName(pattern),
		stems:     make(map[string]bool),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		m.stems[stem(name)] = true
		if n := m.sequence(name); n > m.highest {
			m.highest = n
		}
	}
	return nil
}

// numberedName builds a matcher for file names made from pattern, whatever
// source or query they were made for
func numberedName(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholders.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		switch pattern[loc[2]:loc[3]] {
		case "n":
			b.WriteString(`(\d+)`)
		case "ext":
			b.WriteString(`[^.]+`)
		default:
			b.WriteString(`.*`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// sequence returns the {n} of a name made from the pattern, or 0
func (m *Manager) sequence(name string) int {
	match := m.numbered.FindStringSubmatch(name)
	if len(match) < 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Stage copies r into a temp file inside the output directory
func (m *Manager) Stage(r io.Reader) (*Staged, error) {
	out, err := os.CreateTemp(m.outputDir, tempPrefix+"*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("failed to close file: %w", closeErr)
	}

	return &Staged{Path: out.Name(), Size: n}, nil
}

// Discard deletes a staged file
func (m *Manager) Discard(s *Staged) error {
	if s == nil {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.Path, err)
	}
	return nil
}

// FileName expands the naming pattern
func (m *Manager) FileName(source, query string, n int, ext string) string {
	r := strings.NewReplacer(
		"{source}", source,
		"{query}", SanitizeQuery(query),
		"{n}", strconv.Itoa(n),
		"{ext}", strings.TrimPrefix(ext, "."),
	)
	return r.Replace(m.pattern)
}

// Commit moves a staged file to the next unused name and returns the final
// path. Numbers are shared by every source and query in the directory.
func (m *Manager) Commit(s *Staged, source, query, ext string) (string, error) {
	if ext == "" {
		ext = "jpg"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.highest
	var name string
	for {
		n++
		name = m.FileName(source, query, n, ext)
		if m.stems[stem(name)] {
			continue
		}
		if _, err := os.Lstat(filepath.Join(m.outputDir, name)); err == nil {
			m.stems[stem(name)] = true
			continue
		}
		break
	}

	final := filepath.Join(m.outputDir, name)
	if err := os.Rename(s.Path, final); err != nil {
		os.Remove(s.Path)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.highest = n
	m.stems[stem(name)] = true
	m.committed = append(m.committed, final)
	return final, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Files returns the paths committed by this manager, sorted
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	files := make([]string, len(m.committed))
	copy(files, m.committed)
	sort.Strings(files)
	return files
}

// Count returns how many files this manager has committed
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

// CleanTemp removes temp files left behind by an interrupted run
func (m *Manager) CleanTemp() error {
	matches, err := filepath.Glob(filepath.Join(m.outputDir, tempPrefix+"*.part"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"wallgrab/pkg/logger"
)

const urlPrefix = "url/"

// Entry records one accepted download
type Entry struct {
	URL          string    `json:"url"`
	Source       string    `json:"source"`
	Query        string    `json:"query"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Store is the on-disk download history
type Store struct {
	db     *pebble.DB
	path   string
	logger logger.Logger
}

// Open opens or creates the history database at path. An empty path uses
// the platform data directory.
func Open(path string, log logger.Logger) (*Store, error) {
	if path == "" {
		dataDir, err := DataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		path = filepath.Join(dataDir, "history")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", path, err)
	}

	log.DebugWithFields("History opened", map[string]interface{}{
		"path": path,
	})

	return &Store{db: db, path: path, logger: log}, nil
}

// Path returns the database directory
func (s *Store) Path() string {
	return s.path
}

func key(url string) []byte {
	return []byte(urlPrefix + url)
}

// Has reports whether url was downloaded before
func (s *Store) Has(url string) (bool, error) {
	_, closer, err := s.db.Get(key(url))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history lookup failed: %w", err)
	}
	closer.Close()
	return true, nil
}

// Record stores an entry, replacing any previous one for the same URL
func (s *Store) Record(e Entry) error {
	if e.URL == "" {
		return errors.New("history entry has no url")
	}
	if e.DownloadedAt.IsZero() {
		e.DownloadedAt = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	if err := s.db.Set(key(e.URL), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// List returns every entry, newest first
func (s *Store) List() ([]Entry, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(urlPrefix),
		UpperBound: prefixUpperBound([]byte(urlPrefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	defer it.Close()

	var entries []Entry
	for ok := it.First(); ok; ok = it.Next() {
		var e Entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			s.logger.WarnWithFields("Skipping corrupt history entry", map[string]interface{}{
				"key":   string(it.Key()),
				"error": err.Error(),
			})
			continue
		}
		entries = append(entries, e)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DownloadedAt.After(entries[j].DownloadedAt)
	})
	return entries, nil
}

// Clear removes every entry
func (s *Store) Clear() error {
	lower := []byte(urlPrefix)
	if err := s.db.DeleteRange(lower, prefixUpperBound(lower), pebble.Sync); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info("History cleared")
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DataDirectory returns the wallgrab data directory for the current OS,
// creating it if needed
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "wallgrab")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "wallgrab")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "wallgrab")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "wallgrab")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}

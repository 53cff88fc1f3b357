// Package auth stores the API keys some image sources require.
//
// Keys are kept in the system keychain when one is available, with an
// encrypted file as fallback. WALLGRAB_<SOURCE>_KEY environment variables
// are read last and can't be written.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// APIKey is a stored key for one source
type APIKey struct {
	Source       string    `json:"source"`
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
}

// KeyStore is the interface for storing and retrieving API keys
type KeyStore interface {
	// Store saves the key for key.Source
	Store(key *APIKey) error

	// Retrieve gets the key for a source
	Retrieve(source string) (*APIKey, error)

	// List returns every stored key
	List() ([]*APIKey, error)

	// Delete removes the key for a source
	Delete(source string) error

	// Exists checks if a key is stored for a source
	Exists(source string) bool
}

// Manager handles key storage with fallback mechanisms
type Manager struct {
	stores []KeyStore
}

// NewManager creates a key manager with the keychain, an encrypted file and
// the environment, in that order
func NewManager() (*Manager, error) {
	var stores []KeyStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores
func NewManagerWithStores(stores ...KeyStore) *Manager {
	return &Manager{stores: stores}
}

func normalize(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

// Store saves a key using the first store that accepts it
func (m *Manager) Store(source, key string) error {
	source = normalize(source)
	key = strings.TrimSpace(key)
	if source == "" {
		return errors.New("source is required")
	}
	if key == "" {
		return errors.New("API key is required")
	}

	entry := &APIKey{Source: source, Key: key, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(entry); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store API key: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the key from the first store that has it
func (m *Manager) Retrieve(source string) (*APIKey, error) {
	source = normalize(source)
	for _, store := range m.stores {
		if key, err := store.Retrieve(source); err == nil && key != nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, source)
}

// Lookup returns the key for a source, or "" when none is stored
func (m *Manager) Lookup(source string) string {
	key, err := m.Retrieve(source)
	if err != nil {
		return ""
	}
	return key.Key
}

// KeyFunc adapts the manager to a source registry lookup
func (m *Manager) KeyFunc() func(source string) string {
	return m.Lookup
}

// List returns every stored key, one per source, sorted by source
func (m *Manager) List() ([]*APIKey, error) {
	bySource := make(map[string]*APIKey)

	for _, store := range m.stores {
		keys, err := store.List()
		if err != nil {
			continue
		}
		for _, key := range keys {
			if existing, ok := bySource[key.Source]; !ok || key.LastModified.After(existing.LastModified) {
				bySource[key.Source] = key
			}
		}
	}

	result := make([]*APIKey, 0, len(bySource))
	for _, key := range bySource {
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Source < result[j].Source })
	return result, nil
}

// Delete removes a key from every store
func (m *Manager) Delete(source string) error {
	source = normalize(source)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(source); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrKeyNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete API key: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, source)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "wallgrab")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "wallgrab")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "wallgrab")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "wallgrab")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskKey masks all but the first 4 and last 4 characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrKeyNotFound      = errors.New("API key not found")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)

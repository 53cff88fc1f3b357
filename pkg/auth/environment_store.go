package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore implements KeyStore over WALLGRAB_<SOURCE>_KEY variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based key store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvVar returns the variable holding a source's key
func EnvVar(source string) string {
	return "WALLGRAB_" + strings.ToUpper(source) + "_KEY"
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(key *APIKey) error {
	return ErrStoreUnavailable
}

// Retrieve reads a key from the environment
func (e *EnvironmentStore) Retrieve(source string) (*APIKey, error) {
	if source == "" {
		return nil, ErrInvalidKey
	}
	value := os.Getenv(EnvVar(source))
	if value == "" {
		return nil, ErrKeyNotFound
	}
	return &APIKey{Source: source, Key: value, LastModified: time.Now()}, nil
}

// List returns the keyed sources that have a variable set
func (e *EnvironmentStore) List() ([]*APIKey, error) {
	var keys []*APIKey
	for _, source := range KeyedSources() {
		if key, err := e.Retrieve(source); err == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(source string) error {
	return ErrStoreUnavailable
}

// Exists checks if the variable is set
func (e *EnvironmentStore) Exists(source string) bool {
	return source != "" && os.Getenv(EnvVar(source)) != ""
}

package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "wallgrab"
	keyringPrefix  = "apikey_"
)

// KeyringStore implements KeyStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store after checking the keychain
// accepts writes
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves a key to the system keychain
func (k *KeyringStore) Store(key *APIKey) error {
	if key == nil || key.Source == "" || key.Key == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+key.Source, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets a key from the system keychain
func (k *KeyringStore) Retrieve(source string) (*APIKey, error) {
	if source == "" {
		return nil, ErrInvalidKey
	}

	data, err := keyring.Get(keyringService, keyringPrefix+source)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var key APIKey
	if err := json.Unmarshal([]byte(data), &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key: %w", err)
	}
	return &key, nil
}

// List checks every known source, since go-keyring can't enumerate entries
func (k *KeyringStore) List() ([]*APIKey, error) {
	var keys []*APIKey
	for _, source := range KeyedSources() {
		if key, err := k.Retrieve(source); err == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Delete removes a key from the system keychain
func (k *KeyringStore) Delete(source string) error {
	if source == "" {
		return ErrInvalidKey
	}

	err := keyring.Delete(keyringService, keyringPrefix+source)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if a key is in the keychain
func (k *KeyringStore) Exists(source string) bool {
	if source == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+source)
	return err == nil
}

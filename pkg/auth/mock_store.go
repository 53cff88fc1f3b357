package auth

import "sync"

// MockStore implements KeyStore in memory for tests
type MockStore struct {
	keys map[string]*APIKey
	mu   sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new in-memory key store
func NewMockStore() *MockStore {
	return &MockStore{keys: make(map[string]*APIKey)}
}

// Store saves a copy of key
func (m *MockStore) Store(key *APIKey) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if key == nil || key.Source == "" || key.Key == "" {
		return ErrInvalidKey
	}
	k := *key
	m.keys[key.Source] = &k
	return nil
}

// Retrieve returns a copy of the stored key
func (m *MockStore) Retrieve(source string) (*APIKey, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key, exists := m.keys[source]
	if !exists {
		return nil, ErrKeyNotFound
	}
	k := *key
	return &k, nil
}

// List returns copies of every stored key
func (m *MockStore) List() ([]*APIKey, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]*APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		k := *key
		keys = append(keys, &k)
	}
	return keys, nil
}

// Delete removes a stored key
func (m *MockStore) Delete(source string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keys[source]; !exists {
		return ErrKeyNotFound
	}
	delete(m.keys, source)
	return nil
}

// Exists checks if a key is stored
func (m *MockStore) Exists(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.keys[source]
	return exists
}

// Count returns the number of stored keys
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// NewMockManager creates a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

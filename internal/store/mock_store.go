package store

import (
	"sync"
)

// MockStore provides an in-memory Store for testing, with error
// injection and write tracking.
type MockStore struct {
	mu   sync.Mutex
	data map[string][]byte

	// Error injection
	GetErr error
	SetErr error

	// Write tracking
	SetCalls    int
	RemoveCalls int
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

// Seed places a value without counting as a tracked write.
func (m *MockStore) Seed(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

func (m *MockStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MockStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}

	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStore) MultiGet(keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := m.data[key]; ok {
			result[key] = append([]byte(nil), value...)
		}
	}
	return result, nil
}

func (m *MockStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoveCalls++
	delete(m.data, key)
	return nil
}

func (m *MockStore) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}

	tx := &mockTx{data: m.data}
	return fn(tx)
}

func (m *MockStore) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *MockStore) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, value := range m.data {
		total += int64(len(value))
	}
	return total, nil
}

func (m *MockStore) Migrate(target Store) error {
	m.mu.Lock()
	snapshot := make(map[string][]byte, len(m.data))
	for key, value := range m.data {
		snapshot[key] = append([]byte(nil), value...)
	}
	m.mu.Unlock()

	for key, value := range snapshot {
		if err := target.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

type mockTx struct {
	data map[string][]byte
}

func (t *mockTx) Get(key string) ([]byte, error) {
	value, ok := t.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (t *mockTx) Set(key string, value []byte) error {
	t.data[key] = append([]byte(nil), value...)
	return nil
}

func (t *mockTx) Remove(key string) error {
	delete(t.data, key)
	return nil
}

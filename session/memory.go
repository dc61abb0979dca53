package session

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process Storage. All reconcilers sharing one
// instance observe each other's writes, which is what a browser's tabs get
// from localStorage.
type MemoryStorage struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[int]func(key string)
	nextID   int
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		values:   make(map[string]string),
		watchers: make(map[int]func(key string)),
	}
}

// Get implements Storage.
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	watchers := m.watcherList()
	m.mu.Unlock()
	notify(watchers, key)
	return nil
}

// Del implements Storage.
func (m *MemoryStorage) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.values[key]
	delete(m.values, key)
	watchers := m.watcherList()
	m.mu.Unlock()
	if existed {
		notify(watchers, key)
	}
	return nil
}

// Watch implements Storage.
func (m *MemoryStorage) Watch(fn func(key string)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}, nil
}

func (m *MemoryStorage) watcherList() []func(key string) {
	list := make([]func(key string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		list = append(list, fn)
	}
	return list
}

func notify(watchers []func(key string), key string) {
	for _, fn := range watchers {
		fn(key)
	}
}

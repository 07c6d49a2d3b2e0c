package storage

import "sync"

var _ Storage = (*Memory)(nil)

// Memory is an in-process Storage, used by the CLI and by tests. Contents
// do not survive a restart; hosts that need persistence supply their own
// implementation.
type Memory struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	value, ok := m.values[key]
	return value, ok
}

func (m *Memory) Set(key, value string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.values[key] = value
}

func (m *Memory) Remove(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.values, key)
}

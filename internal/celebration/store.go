package celebration

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrStorageUnavailable = errors.New("celebration storage unavailable")

// KeyValueStore is durable string storage. Get reports ok=false for a key
// that was never set. Implementations wrap their failures in
// ErrStorageUnavailable.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore is an in-process KeyValueStore. Reads and writes can be made
// to fail for exercising the degraded paths.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]string
	failReads  bool
	failWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failReads {
		return "", false, fmt.Errorf("%w: read %s", ErrStorageUnavailable, key)
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites {
		return fmt.Errorf("%w: write %s", ErrStorageUnavailable, key)
	}
	m.data[key] = value
	return nil
}

func (m *MemoryStore) FailReads(fail bool) {
	m.mu.Lock()
	m.failReads = fail
	m.mu.Unlock()
}

func (m *MemoryStore) FailWrites(fail bool) {
	m.mu.Lock()
	m.failWrites = fail
	m.mu.Unlock()
}

package prefs

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps envelopes in process memory. It supports deletion and
// synchronous reads.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var (
	_ Backend    = (*MemoryBackend)(nil)
	_ Deleter    = (*MemoryBackend)(nil)
	_ SyncLoader = (*MemoryBackend)(nil)
)

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: map[string][]byte{}}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	return b.LoadSync(key)
}

// LoadSync implements SyncLoader.
func (b *MemoryBackend) LoadSync(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	payload, ok := b.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.records == nil {
		b.records = map[string][]byte{}
	}
	b.records[key] = append([]byte(nil), payload...)
	return nil
}

// Delete implements Deleter.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (b *MemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.records))
	for key := range b.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SaveOnly hides every optional capability of backend, leaving Load and Save.
func SaveOnly(backend Backend) Backend {
	return saveOnly{backend: backend}
}

type saveOnly struct {
	backend Backend
}

func (s saveOnly) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return s.backend.Load(ctx, key)
}

func (s saveOnly) Save(ctx context.Context, key string, payload []byte) error {
	return s.backend.Save(ctx, key, payload)
}

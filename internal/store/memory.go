package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pcc-go/internal/pcc"
)

// MemoryStore is an in-memory implementation of the BlobStore interface.
// It is useful for testing and safe for concurrent use.
type MemoryStore struct {
	name   string
	blobs  map[string][]byte
	writes int
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with the given name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:  name,
		blobs: make(map[string][]byte),
	}
}

// Put stores a blob under key.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	m.writes++
	return nil
}

// Get retrieves the blob at key and writes it to w.
func (m *MemoryStore) Get(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("blob %s: %w", key, pcc.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// Exists reports whether a blob exists at key.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}

// List returns all keys with the given prefix.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error { return nil }

// WriteCount returns how many physical writes the store has accepted.
// Tests use it to assert that deduplicated uploads cause no extra writes.
func (m *MemoryStore) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Corrupt overwrites the blob stored at key with data, bypassing all
// integrity checks. Tests use it to simulate storage corruption.
func (m *MemoryStore) Corrupt(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
}

// Compile-time check that MemoryStore implements pcc.BlobStore.
var _ pcc.BlobStore = (*MemoryStore)(nil)

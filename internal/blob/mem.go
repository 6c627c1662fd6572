package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory [Store]. It is used as the test double for the
// table engine and is also handy for throwaway environments. Tags are
// per-path revision counters.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

type memBlob struct {
	data []byte
	rev  uint64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string]memBlob)}
}

// Exists implements [Store].
func (ms *MemStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, ok := ms.blobs[path]
	return ok, nil
}

// ReadAll implements [Store].
func (ms *MemStore) ReadAll(ctx context.Context, path string) ([]byte, Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	b, ok := ms.blobs[path]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return data, revTag(b.rev), nil
}

// WriteAll implements [Store].
func (ms *MemStore) WriteAll(ctx context.Context, path string, data []byte, expect Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	b, ok := ms.blobs[path]
	var current Tag
	if ok {
		current = revTag(b.rev)
	}
	if current != expect {
		return fmt.Errorf("%w: %s", ErrConflict, path)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	ms.blobs[path] = memBlob{data: stored, rev: b.rev + 1}
	return nil
}

func revTag(rev uint64) Tag {
	return Tag(fmt.Sprintf("rev:%d", rev))
}

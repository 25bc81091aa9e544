package product

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository is an in-memory product store for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Reference
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[string]Reference)}
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.storage[id]
	if !ok {
		return Reference{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return ref, nil
}

// Put stores or replaces a listing.
func (r *MemoryRepository) Put(ref Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[ref.ID] = ref
}

// Package cartslot implements the cart persistence port: one key-value
// slot per identity, holding the serialized cart. The in-memory store
// serves single-process deployments and tests; the redis store shares
// slots across instances.
package cartslot

import (
	"context"
	"sync"

	"github.com/averlon/storefront/internal/domain/cart"
)

var _ cart.Slots = (*MemoryStore)(nil)

// MemoryStore keeps cart slots in a process-local map.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]cart.Cart
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]cart.Cart)}
}

// Load implements cart.Slots.
func (m *MemoryStore) Load(_ context.Context, key string) (*cart.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.slots[key]
	if !ok {
		return nil, nil
	}
	out := cart.Cart{Lines: append([]cart.Line(nil), c.Lines...)}
	return &out, nil
}

// Save implements cart.Slots.
func (m *MemoryStore) Save(_ context.Context, key string, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[key] = cart.Cart{Lines: append([]cart.Line(nil), c.Lines...)}
	return nil
}

// Clear implements cart.Slots.
func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, key)
	return nil
}

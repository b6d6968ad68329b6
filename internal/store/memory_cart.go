package store

import (
	"context"
	"sync"

	"storefront-service/internal/domain"
)

type cartEntry struct {
	mu   sync.Mutex // serializes read-modify-write of this cart
	cart *domain.Cart
}

// MemoryCartStore implements CartStorer in process memory. Carts live for the
// lifetime of the process.
//
// The map itself is guarded by mu; each cart has its own lock so that updates
// to one cart never wait on another.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string]*cartEntry
}

// NewMemoryCartStore creates an empty in-memory cart store.
func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]*cartEntry)}
}

func (s *MemoryCartStore) CreateCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.carts[cart.ID]; exists {
		return nil, ErrCartExists
	}
	s.carts[cart.ID] = &cartEntry{cart: cart.Clone()}
	return cart.Clone(), nil
}

func (s *MemoryCartStore) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	entry := s.entry(id)
	if entry == nil {
		return nil, ErrCartNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.cart == nil { // deleted while we waited
		return nil, ErrCartNotFound
	}
	return entry.cart.Clone(), nil
}

func (s *MemoryCartStore) UpdateCart(ctx context.Context, id string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	entry := s.entry(id)
	if entry == nil {
		return nil, ErrCartNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.cart == nil {
		return nil, ErrCartNotFound
	}

	working := entry.cart.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.cart = working
	return working.Clone(), nil
}

func (s *MemoryCartStore) DeleteCart(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.carts[id]
	delete(s.carts, id)
	s.mu.Unlock()

	if !ok {
		return ErrCartNotFound
	}
	entry.mu.Lock()
	entry.cart = nil
	entry.mu.Unlock()
	return nil
}

// Len returns the number of carts held.
func (s *MemoryCartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

func (s *MemoryCartStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryCartStore) Close() error { return nil }

func (s *MemoryCartStore) entry(id string) *cartEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[id]
}

package carts

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]Cart{}}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return Empty(userID), nil
	}
	return c.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, c Cart) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts[c.UserID].Version != c.Version {
		return Cart{}, apperr.ErrConflict
	}
	c = c.clone()
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	s.carts[c.UserID] = c
	return c.clone(), nil
}

package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[string]User{}}
}

func (s *MemoryStore) emailTaken(email, except string) bool {
	for id, u := range s.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Create(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok || s.emailTaken(u.Email, "") {
		return User{}, apperr.ErrConflict
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, apperr.ErrNotFound
}

func (s *MemoryStore) Update(_ context.Context, id string, upd Update) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, apperr.ErrNotFound
	}
	if upd.Email != nil && s.emailTaken(*upd.Email, id) {
		return User{}, apperr.ErrConflict
	}
	upd.apply(&u)
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) ListByType(_ context.Context, t Type) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []User{}
	for _, u := range s.users {
		if u.UserType == t {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

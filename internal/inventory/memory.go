package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

// MemoryStore keeps products and reservations in maps under one mutex, so
// the check and the decrement in Reserve can never interleave.
type MemoryStore struct {
	mu           sync.Mutex
	products     map[string]Product
	reservations map[string]Reservation
	now          func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     map[string]Product{},
		reservations: map[string]Reservation{},
		now:          time.Now,
	}
}

func (s *MemoryStore) CheckAvailability(_ context.Context, productID string, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return false, apperr.ErrNotFound
	}
	return p.Quantity >= quantity, nil
}

func (s *MemoryStore) Reserve(_ context.Context, orderID, productID string, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, apperr.Invalid("quantity must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return Reservation{}, apperr.ErrNotFound
	}
	if p.Quantity < quantity {
		return Reservation{}, &apperr.InsufficientStockError{ProductID: productID, Available: p.Quantity}
	}
	p.Quantity -= quantity
	p.UpdatedAt = s.now()
	s.products[productID] = p

	r := Reservation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    ReservationReserved,
		CreatedAt: s.now(),
	}
	s.reservations[r.ID] = r
	return r, nil
}

func (s *MemoryStore) Release(_ context.Context, r Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(r.ID)
	return nil
}

func (s *MemoryStore) releaseLocked(id string) {
	cur, ok := s.reservations[id]
	if !ok || cur.Status != ReservationReserved {
		return
	}
	cur.Status = ReservationReleased
	s.reservations[id] = cur
	if p, ok := s.products[cur.ProductID]; ok {
		p.Quantity += cur.Quantity
		p.UpdatedAt = s.now()
		s.products[cur.ProductID] = p
	}
}

func (s *MemoryStore) Commit(_ context.Context, r Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reservations[r.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	switch cur.Status {
	case ReservationCommitted:
		return nil
	case ReservationReleased:
		return apperr.Invalid("reservation %s already released", r.ID)
	}
	cur.Status = ReservationCommitted
	s.reservations[r.ID] = cur
	return nil
}

func (s *MemoryStore) Stale(_ context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reservation
	for _, r := range s.reservations {
		if r.Status == ReservationReserved && r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, exists := s.products[p.ID]; exists {
		return Product{}, apperr.ErrConflict
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return p, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, apperr.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if f.match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, p := range s.products {
		if p.Category != "" {
			seen[p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u ProductUpdate) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, apperr.ErrNotFound
	}
	if err := u.apply(&p); err != nil {
		return Product{}, err
	}
	p.UpdatedAt = s.now()
	s.products[id] = p
	return p, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) Restock(_ context.Context, id string, quantity int) (Product, error) {
	if quantity <= 0 {
		return Product{}, apperr.Invalid("restock quantity must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, apperr.ErrNotFound
	}
	p.Quantity += quantity
	p.UpdatedAt = s.now()
	s.products[id] = p
	return p, nil
}

package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]Order{}, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, orderID, userID string, lines []Line, total decimal.Decimal) (Order, error) {
	if err := Validate(userID, lines, total); err != nil {
		return Order{}, err
	}
	if orderID == "" {
		orderID = uuid.NewString()
	}
	now := s.now().UTC()
	o := Order{
		ID:          orderID,
		UserID:      userID,
		Items:       append([]Line(nil), lines...),
		TotalAmount: total,
		Status:      StatusPending,
		History:     []StatusChange{{To: StatusPending, At: now}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.orders[o.ID]; taken {
		return Order{}, apperr.ErrConflict
	}
	s.orders[o.ID] = o
	return clone(o), nil
}

func (s *MemoryStore) SetStatus(_ context.Context, orderID string, to Status) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, apperr.ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return Order{}, apperr.ErrInvalidTransition
	}
	now := s.now().UTC()
	o.History = append(append([]StatusChange(nil), o.History...), StatusChange{From: o.Status, To: to, At: now})
	o.Status = to
	o.UpdatedAt = now
	s.orders[orderID] = o
	return clone(o), nil
}

func (s *MemoryStore) GetByID(_ context.Context, orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, apperr.ErrNotFound
	}
	return clone(o), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, clone(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

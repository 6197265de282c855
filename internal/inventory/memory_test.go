package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/logging"
)

func seed(t *testing.T, s *MemoryStore, id string, qty int) Product {
	t.Helper()
	p, err := s.Create(context.Background(), Product{
		ID:       id,
		SellerID: "seller-1",
		Name:     "Product " + id,
		Price:    decimal.RequireFromString("10.00"),
		Quantity: qty,
		Category: "Laptops",
	})
	require.NoError(t, err)
	return p
}

func quantity(t *testing.T, s *MemoryStore, id string) int {
	t.Helper()
	p, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func TestReserveNoOversell(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "A", 5)

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, short := 0, 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reserve(context.Background(), "", "A", 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if _, ok := apperr.AsInsufficientStock(err); ok {
				short++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, callers-5, short)
	assert.Equal(t, 0, quantity(t, s, "A"))
}

func TestReserveInsufficientReportsAvailable(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "B", 2)

	_, err := s.Reserve(context.Background(), "", "B", 10)
	e, ok := apperr.AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, "B", e.ProductID)
	assert.Equal(t, 2, e.Available)
	assert.Equal(t, 2, quantity(t, s, "B"))

	_, err = s.Reserve(context.Background(), "", "missing", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Reserve(context.Background(), "", "B", 0)
	assert.True(t, apperr.IsValidation(err))
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 5)

	r, err := s.Reserve(ctx, "", "A", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, quantity(t, s, "A"))

	require.NoError(t, s.Release(ctx, r))
	require.NoError(t, s.Release(ctx, r))
	assert.Equal(t, 5, quantity(t, s, "A"))

	require.NoError(t, s.Release(ctx, Reservation{ID: "unknown"}))
	assert.True(t, apperr.IsValidation(s.Commit(ctx, r)))
}

func TestCommitMakesReservationPermanent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 5)

	r, err := s.Reserve(ctx, "", "A", 2)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, r))
	require.NoError(t, s.Commit(ctx, r))
	require.NoError(t, s.Release(ctx, r))
	assert.Equal(t, 3, quantity(t, s, "A"))

	assert.ErrorIs(t, s.Commit(ctx, Reservation{ID: "unknown"}), apperr.ErrNotFound)
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 2)

	ok, err := s.CheckAvailability(ctx, "A", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.CheckAvailability(ctx, "A", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweeperReleasesStaleReservations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 5)

	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := s.Reserve(ctx, "", "A", 2)
	require.NoError(t, err)
	committed, err := s.Reserve(ctx, "", "A", 1)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, committed))
	s.now = time.Now
	fresh, err := s.Reserve(ctx, "", "A", 1)
	require.NoError(t, err)

	swept := 0
	sw := &Sweeper{Store: s, TTL: 10 * time.Minute, Log: logging.Discard(), OnSwept: func(n, _ int) { swept += n }}
	assert.Equal(t, SweepResult{Released: 1}, sw.SweepOnce(ctx))
	assert.Equal(t, 1, swept)
	assert.Equal(t, 3, quantity(t, s, "A"))

	// the stale one is gone, the fresh one still counts against stock
	require.NoError(t, s.Release(ctx, stale))
	require.NoError(t, s.Release(ctx, fresh))
	assert.Equal(t, 4, quantity(t, s, "A"))
}

func TestSweeperCommitsReservationsOfPlacedOrders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 5)

	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	placed, err := s.Reserve(ctx, "order-placed", "A", 2)
	require.NoError(t, err)
	abandoned, err := s.Reserve(ctx, "order-abandoned", "A", 1)
	require.NoError(t, err)
	unknown, err := s.Reserve(ctx, "order-unknown", "A", 1)
	require.NoError(t, err)
	s.now = time.Now

	lookup := OrderLookupFunc(func(_ context.Context, id string) (bool, error) {
		switch id {
		case "order-placed":
			return true, nil
		case "order-abandoned":
			return false, nil
		}
		return false, apperr.Unavailable("order-service", errors.New("connection refused"))
	})
	var released, committed int
	sw := &Sweeper{Store: s, Orders: lookup, TTL: 10 * time.Minute, Log: logging.Discard(),
		OnSwept: func(r, c int) { released, committed = released+r, committed+c }}

	assert.Equal(t, SweepResult{Released: 1, Committed: 1, Skipped: 1}, sw.SweepOnce(ctx))
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, committed)
	// placed stays sold, abandoned is back, unknown is still held
	assert.Equal(t, 2, quantity(t, s, "A"))

	require.NoError(t, s.Release(ctx, placed))
	require.NoError(t, s.Release(ctx, abandoned))
	assert.Equal(t, 2, quantity(t, s, "A"))

	left, err := s.Stale(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, unknown.ID, left[0].ID)
	assert.Equal(t, "order-unknown", left[0].OrderID)
}

func TestSweeperLeavesOrderReservationsWithoutLookup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 1)

	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err := s.Reserve(ctx, "order-1", "A", 1)
	require.NoError(t, err)
	s.now = time.Now

	sw := &Sweeper{Store: s, TTL: time.Minute, Log: logging.Discard()}
	assert.Equal(t, SweepResult{Skipped: 1}, sw.SweepOnce(ctx))
	assert.Equal(t, 0, quantity(t, s, "A"))
}

func TestStaleOldestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 5)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		r, err := s.Reserve(ctx, "", "A", 1)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	s.now = time.Now

	got, err := s.Stale(ctx, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
}

func TestCatalogOperations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "A", 5)
	_, err := s.Create(ctx, Product{ID: "C", SellerID: "seller-2", Name: "Gaming Mouse", Price: decimal.RequireFromString("49.99"), Category: "Accessories"})
	require.NoError(t, err)

	_, err = s.Create(ctx, Product{ID: "A", SellerID: "s", Name: "dup", Price: decimal.Zero})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = s.Create(ctx, Product{SellerID: "s", Name: "neg", Price: decimal.RequireFromString("-1")})
	assert.True(t, apperr.IsValidation(err))

	floor := decimal.RequireFromString("20")
	got, err := s.List(ctx, Filter{Query: "mouse", MinPrice: &floor})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].ID)

	got, err = s.List(ctx, Filter{SellerID: "seller-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Accessories", "Laptops"}, cats)

	name := "Renamed"
	p, err := s.Update(ctx, "A", ProductUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, 5, p.Quantity)

	p, err = s.Restock(ctx, "A", 4)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Quantity)
	_, err = s.Restock(ctx, "A", 0)
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, s.Delete(ctx, "C"))
	assert.ErrorIs(t, s.Delete(ctx, "C"), apperr.ErrNotFound)
}

package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/carts"
	"github.com/ariefcatur/techguru-shop/internal/events"
	"github.com/ariefcatur/techguru-shop/internal/inventory"
	"github.com/ariefcatur/techguru-shop/internal/logging"
	"github.com/ariefcatur/techguru-shop/internal/metrics"
	"github.com/ariefcatur/techguru-shop/internal/orders"
)

type published struct {
	topic, name string
	payload     []byte
}

type recorder struct {
	mu  sync.Mutex
	got []published
	err error
}

func (r *recorder) Publish(_ context.Context, topic, name string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, published{topic, name, payload})
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.got {
		out = append(out, p.name)
	}
	return out
}

// ctxLedger honours cancellation the way a network ledger would and lets a
// test hook in after each successful reserve.
type ctxLedger struct {
	*inventory.MemoryStore
	afterReserve func(n int)
	block        map[string]bool

	mu       sync.Mutex
	reserved int
}

func (l *ctxLedger) Reserve(ctx context.Context, orderID, productID string, quantity int) (inventory.Reservation, error) {
	if l.block[productID] {
		<-ctx.Done()
		return inventory.Reservation{}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return inventory.Reservation{}, err
	}
	r, err := l.MemoryStore.Reserve(ctx, orderID, productID, quantity)
	if err == nil && l.afterReserve != nil {
		l.mu.Lock()
		l.reserved++
		n := l.reserved
		l.mu.Unlock()
		l.afterReserve(n)
	}
	return r, err
}

func (l *ctxLedger) Release(ctx context.Context, r inventory.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.MemoryStore.Release(ctx, r)
}

type failingOrders struct {
	*orders.MemoryStore
	err error
}

func (f failingOrders) Create(context.Context, string, string, []orders.Line, decimal.Decimal) (orders.Order, error) {
	return orders.Order{}, f.err
}

// commitDown reserves and releases normally but can never commit.
type commitDown struct{ *ctxLedger }

func (commitDown) Commit(context.Context, inventory.Reservation) error {
	return apperr.Unavailable("inventory", errors.New("connection reset"))
}

type brokenCart struct{ CartReader }

func (brokenCart) Clear(context.Context, string) error {
	return apperr.Unavailable("cart-service", errors.New("connection refused"))
}

type downCart struct{}

func (downCart) GetCart(context.Context, string) (carts.Cart, error) {
	return carts.Cart{}, apperr.Unavailable("cart-service", errors.New("connection refused"))
}

func (downCart) Clear(context.Context, string) error { return nil }

type fixture struct {
	stock   *inventory.MemoryStore
	ledger  *ctxLedger
	orders  *orders.MemoryStore
	carts   *carts.Service
	events  *recorder
	metrics *metrics.CheckoutMetrics
	o       *Orchestrator
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()
	f := &fixture{
		stock:   inventory.NewMemoryStore(),
		orders:  orders.NewMemoryStore(),
		events:  &recorder{},
		metrics: metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
	}
	f.ledger = &ctxLedger{MemoryStore: f.stock, block: map[string]bool{}}
	f.carts = &carts.Service{Store: carts.NewMemoryStore(), Notifier: events.Discard{}, Log: logging.Discard()}
	for id, q := range stock {
		_, err := f.stock.Create(context.Background(), inventory.Product{
			ID: id, SellerID: "s1", Name: "product " + id, Price: decimal.NewFromInt(10), Quantity: q,
		})
		require.NoError(t, err)
	}
	f.o = &Orchestrator{
		Ledger:      f.ledger,
		Orders:      f.orders,
		Carts:       f.carts,
		Notifier:    f.events,
		Metrics:     f.metrics,
		Log:         logging.Discard(),
		Producer:    "order-service",
		CallTimeout: time.Second,
	}
	return f
}

func (f *fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	p, err := f.stock.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) orderCount(t *testing.T, userID string) int {
	t.Helper()
	list, err := f.orders.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	return len(list)
}

func (f *fixture) cartLine(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, carts.Line{
		ProductID: productID, Quantity: qty, Price: decimal.RequireFromString("10.00"), Name: "product " + productID,
	})
	require.NoError(t, err)
}

func line(id string, qty int) orders.Line {
	return orders.Line{ProductID: id, Quantity: qty, Price: decimal.RequireFromString("10.00"), Name: "product " + id}
}

func TestCheckoutCartPlacesOrder(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5})
	f.cartLine(t, "u1", "A", 2)

	order, err := f.o.CheckoutCart(context.Background(), "u1")
	require.NoError(t, err)
	f.o.Wait()

	assert.Equal(t, orders.StatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, 3, f.quantity(t, "A"))

	cart, err := f.carts.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	assert.Equal(t, []string{events.OrderCreated}, f.events.names())
	env, p, err := events.Decode[orders.CreatedPayload](f.events.got[0].payload)
	require.NoError(t, err)
	assert.Equal(t, events.TopicOrders, f.events.got[0].topic)
	assert.Equal(t, order.ID, env.CorrelationID)
	assert.Equal(t, order.ID, p.OrderID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues(metrics.ResultSuccess)))

	// committed reservations are out of the sweeper's reach
	stale, err := f.stock.Stale(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
	assert.Equal(t, 3, f.quantity(t, "A"))
}

func TestUncommittedReservationIsSettledBySweeper(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"A": 1})
	f.o.Ledger = commitDown{f.ledger}

	order, err := f.o.Checkout(ctx, "u1", []orders.Line{line("A", 1)}, decimal.NewFromInt(10))
	require.NoError(t, err)
	f.o.Wait()
	assert.Zero(t, f.quantity(t, "A"))

	held, err := f.stock.Stale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, order.ID, held[0].OrderID)

	lookup := inventory.OrderLookupFunc(func(ctx context.Context, id string) (bool, error) {
		_, err := f.orders.GetByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})
	sw := &inventory.Sweeper{Store: f.stock, Orders: lookup, Log: logging.Discard()}
	res := sw.SweepBefore(ctx, time.Now().Add(time.Minute))
	assert.Equal(t, inventory.SweepResult{Committed: 1}, res)
	assert.Zero(t, f.quantity(t, "A"))

	// the unit stays sold
	_, err = f.o.Checkout(ctx, "u2", []orders.Line{line("A", 1)}, decimal.NewFromInt(10))
	_, short := apperr.AsInsufficientStock(err)
	assert.True(t, short, "got %v", err)
	assert.Zero(t, f.orderCount(t, "u2"))
}

func TestCheckoutCartCountsEarlyFailures(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5})

	_, err := f.o.CheckoutCart(context.Background(), "nobody")
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues(metrics.ResultValidation)))

	f.o.Carts = downCart{}
	_, err = f.o.CheckoutCart(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues(metrics.ResultDependency)))
	assert.Equal(t, 5, f.quantity(t, "A"))
}

func TestCheckoutInsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t, map[string]int{"B": 2})
	f.cartLine(t, "u1", "B", 10)

	_, err := f.o.CheckoutCart(context.Background(), "u1")
	f.o.Wait()

	e, ok := apperr.AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "B", e.ProductID)
	assert.Equal(t, 2, e.Available)
	assert.Equal(t, 2, f.quantity(t, "B"))
	assert.Zero(t, f.orderCount(t, "u1"))

	cart, err := f.carts.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 10, cart.Items[0].Quantity)
	assert.Empty(t, f.events.names())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues(metrics.ResultInsufficientStock)))
}

func TestCheckoutRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5, "B": 5, "C": 1})
	lines := []orders.Line{line("A", 2), line("B", 3), line("C", 4)}

	_, err := f.o.Checkout(context.Background(), "u1", lines, orders.Total(lines))
	_, ok := apperr.AsInsufficientStock(err)
	require.True(t, ok)

	assert.Equal(t, 5, f.quantity(t, "A"))
	assert.Equal(t, 5, f.quantity(t, "B"))
	assert.Equal(t, 1, f.quantity(t, "C"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Rollbacks))
}

func TestCheckoutStoreFailureReleases(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5})
	storeErr := apperr.Unavailable("order-store", errors.New("no primary"))
	f.o.Orders = failingOrders{MemoryStore: f.orders, err: storeErr}

	_, err := f.o.Checkout(context.Background(), "u1", []orders.Line{line("A", 2)}, decimal.NewFromInt(20))
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
	assert.Equal(t, 5, f.quantity(t, "A"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues(metrics.ResultDependency)))
}

func TestCheckoutRejectsBadTotalWithoutReserving(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5})

	_, err := f.o.Checkout(context.Background(), "u1", []orders.Line{line("A", 3)}, decimal.NewFromInt(25))
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 5, f.quantity(t, "A"))

	_, err = f.o.Checkout(context.Background(), "u1", nil, decimal.Zero)
	assert.True(t, apperr.IsValidation(err))

	_, err = f.o.CheckoutCart(context.Background(), "nobody")
	assert.True(t, apperr.IsValidation(err))
}

func TestSideEffectFailuresDoNotFailCheckout(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5})
	f.cartLine(t, "u1", "A", 1)
	f.o.Carts = brokenCart{CartReader: f.carts}
	f.events.err = errors.New("broker down")

	order, err := f.o.CheckoutCart(context.Background(), "u1")
	require.NoError(t, err)
	f.o.Wait()

	assert.Equal(t, orders.StatusPending, order.Status)
	assert.Equal(t, 4, f.quantity(t, "A"))
	assert.Equal(t, 1, f.orderCount(t, "u1"))
}

func TestCancelledCheckoutStillReleases(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5, "B": 5})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ledger.afterReserve = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	_, err := f.o.Checkout(ctx, "u1", []orders.Line{line("A", 2), line("B", 1)}, decimal.NewFromInt(30))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, f.quantity(t, "A"))
	assert.Equal(t, 5, f.quantity(t, "B"))
	assert.Zero(t, f.orderCount(t, "u1"))
}

func TestSlowLedgerTimesOut(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 5, "slow": 5})
	f.ledger.block["slow"] = true
	f.o.CallTimeout = 20 * time.Millisecond

	_, err := f.o.Checkout(context.Background(), "u1", []orders.Line{line("A", 1), line("slow", 1)}, decimal.NewFromInt(20))
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 5, f.quantity(t, "A"))
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newFixture(t, map[string]int{"A": 1})

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.o.Checkout(context.Background(), "u1", []orders.Line{line("A", 1)}, decimal.NewFromInt(10))
			if err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	f.o.Wait()

	assert.Equal(t, 1, placed)
	assert.Zero(t, f.quantity(t, "A"))
	assert.Equal(t, 1, f.orderCount(t, "u1"))
}

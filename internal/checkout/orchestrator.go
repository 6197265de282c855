// Package checkout turns a user's cart into an order with its stock held.
//
// Every line is reserved in order, then the order is created, then the
// reservations are committed. Any failure before the order exists releases
// whatever was reserved, even when the caller has gone away.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/carts"
	"github.com/ariefcatur/techguru-shop/internal/events"
	"github.com/ariefcatur/techguru-shop/internal/inventory"
	"github.com/ariefcatur/techguru-shop/internal/metrics"
	"github.com/ariefcatur/techguru-shop/internal/orders"
)

const defaultCallTimeout = 3 * time.Second

// CartReader is the slice of the cart service checkout needs.
type CartReader interface {
	GetCart(ctx context.Context, userID string) (carts.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type Orchestrator struct {
	Ledger   inventory.Ledger
	Orders   orders.Store
	Carts    CartReader
	Notifier events.Notifier
	Metrics  *metrics.CheckoutMetrics
	Log      *slog.Logger
	Producer string
	// CallTimeout bounds every ledger, store and cart call.
	CallTimeout time.Duration

	wg sync.WaitGroup
}

// Checkout places an order for explicit lines. total must equal the sum of
// the line subtotals.
func (o *Orchestrator) Checkout(ctx context.Context, userID string, lines []orders.Line, total decimal.Decimal) (orders.Order, error) {
	start := time.Now()
	order, err := o.checkout(ctx, userID, lines, total)
	return o.finish(userID, start, order, err)
}

// CheckoutCart checks out the current contents of the user's cart.
func (o *Orchestrator) CheckoutCart(ctx context.Context, userID string) (orders.Order, error) {
	start := time.Now()
	cart, err := call(ctx, o.timeout(), func(ctx context.Context) (carts.Cart, error) {
		return o.Carts.GetCart(ctx, userID)
	})
	if err != nil {
		return o.finish(userID, start, orders.Order{}, fmt.Errorf("read cart: %w", dependency("cart-service", err)))
	}
	if len(cart.Items) == 0 {
		return o.finish(userID, start, orders.Order{}, apperr.Invalid("cart is empty"))
	}
	lines := make([]orders.Line, 0, len(cart.Items))
	for _, l := range cart.Items {
		lines = append(lines, orders.Line{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price, Name: l.Name})
	}
	order, err := o.checkout(ctx, userID, lines, cart.TotalAmount)
	return o.finish(userID, start, order, err)
}

// finish records the outcome of one checkout attempt.
func (o *Orchestrator) finish(userID string, start time.Time, order orders.Order, err error) (orders.Order, error) {
	o.Metrics.Observe(result(err), time.Since(start))
	if err != nil {
		if _, stock := apperr.AsInsufficientStock(err); stock || apperr.IsValidation(err) {
			o.Log.Info("checkout rejected", "user_id", userID, "err", err)
		} else {
			o.Log.Error("checkout failed", "user_id", userID, "err", err)
		}
		return orders.Order{}, err
	}
	o.Log.Info("checkout completed", "user_id", userID, "order_id", order.ID, "total", order.TotalAmount.String())
	return order, nil
}

// Wait blocks until the post-checkout side effects started so far are done.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) checkout(ctx context.Context, userID string, lines []orders.Line, total decimal.Decimal) (orders.Order, error) {
	if err := orders.Validate(userID, lines, total); err != nil {
		return orders.Order{}, err
	}

	// Reservations carry the order id so the product service can tell a
	// placed order's stock from an abandoned one.
	orderID := uuid.NewString()
	held := make([]inventory.Reservation, 0, len(lines))
	placed := false
	defer func() {
		if !placed {
			o.release(ctx, held)
		}
	}()

	for _, l := range lines {
		r, err := call(ctx, o.timeout(), func(ctx context.Context) (inventory.Reservation, error) {
			return o.Ledger.Reserve(ctx, orderID, l.ProductID, l.Quantity)
		})
		if err != nil {
			return orders.Order{}, fmt.Errorf("reserve %s: %w", l.ProductID, dependency("inventory", err))
		}
		held = append(held, r)
	}

	order, err := call(ctx, o.timeout(), func(ctx context.Context) (orders.Order, error) {
		return o.Orders.Create(ctx, orderID, userID, lines, total)
	})
	if err != nil {
		return orders.Order{}, fmt.Errorf("create order: %w", dependency("order-store", err))
	}
	placed = true

	o.commit(ctx, order.ID, held)
	o.afterPlaced(ctx, order)
	return order, nil
}

// release undoes held in reverse order on a context the caller cannot cancel.
func (o *Orchestrator) release(ctx context.Context, held []inventory.Reservation) {
	if len(held) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	released := 0
	for i := len(held) - 1; i >= 0; i-- {
		r := held[i]
		_, err := call(bg, o.timeout(), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.Ledger.Release(ctx, r)
		})
		if err != nil {
			o.Log.Error("release reservation", "reservation_id", r.ID, "product_id", r.ProductID, "quantity", r.Quantity, "err", err)
			continue
		}
		released++
	}
	o.Metrics.Released(released)
}

// commit finalizes the reservations of a placed order. The order already
// stands, so a reservation that still fails after one retry is left
// RESERVED; the product service's sweeper commits it once it sees the order.
func (o *Orchestrator) commit(ctx context.Context, orderID string, held []inventory.Reservation) {
	bg := context.WithoutCancel(ctx)
	for _, r := range held {
		var err error
		for attempt := 0; attempt < 2; attempt++ {
			_, err = call(bg, o.timeout(), func(ctx context.Context) (struct{}, error) {
				return struct{}{}, o.Ledger.Commit(ctx, r)
			})
			if err == nil {
				break
			}
		}
		if err != nil {
			o.Log.Error("commit reservation", "order_id", orderID, "reservation_id", r.ID, "product_id", r.ProductID, "err", err)
		}
	}
}

// afterPlaced clears the cart and announces the order in the background.
// Neither outcome changes the result the caller already has.
func (o *Orchestrator) afterPlaced(ctx context.Context, order orders.Order) {
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if o.Carts != nil {
			_, err := call(bg, o.timeout(), func(ctx context.Context) (struct{}, error) {
				return struct{}{}, o.Carts.Clear(ctx, order.UserID)
			})
			if err != nil {
				o.Log.Warn("clear cart after checkout", "order_id", order.ID, "user_id", order.UserID, "err", err)
			}
		}
		payload, err := events.Encode(events.OrderCreated, o.Producer, order.ID, orders.CreatedPayload{
			OrderID:     order.ID,
			UserID:      order.UserID,
			TotalAmount: order.TotalAmount,
			Status:      order.Status,
			Items:       order.Items,
		})
		if err == nil {
			err = o.Notifier.Publish(bg, events.TopicOrders, events.OrderCreated, payload)
		}
		if err != nil {
			o.Log.Warn("publish order.created", "order_id", order.ID, "err", err)
		}
	}()
}

func (o *Orchestrator) timeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return defaultCallTimeout
}

func call[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// dependency turns a timed out call into a DependencyError for name. Errors
// already carrying a kind pass through.
func dependency(name string, err error) error {
	var de *apperr.DependencyError
	if errors.As(err, &de) || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Unavailable(name, err)
}

func result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case apperr.IsValidation(err):
		return metrics.ResultValidation
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		return metrics.ResultDependency
	}
	if _, ok := apperr.AsInsufficientStock(err); ok {
		return metrics.ResultInsufficientStock
	}
	return metrics.ResultStoreError
}

package inventory

import (
	"context"
	"log/slog"
	"time"
)

const sweepBatch = 500

// OrderLookup tells the sweeper whether the order a reservation was taken
// for was actually placed.
type OrderLookup interface {
	OrderExists(ctx context.Context, orderID string) (bool, error)
}

type OrderLookupFunc func(ctx context.Context, orderID string) (bool, error)

func (f OrderLookupFunc) OrderExists(ctx context.Context, orderID string) (bool, error) {
	return f(ctx, orderID)
}

type SweepResult struct {
	Released  int
	Committed int
	Skipped   int
}

// Sweeper settles reservations nobody committed or released within TTL,
// e.g. when an order service crashed mid-checkout or its commit call was
// lost. A reservation whose order exists is committed; one without an
// order is released. When the order cannot be looked up the reservation
// is left for the next pass.
type Sweeper struct {
	Store    Store
	Orders   OrderLookup
	TTL      time.Duration
	Interval time.Duration
	Log      *slog.Logger
	OnSwept  func(released, committed int)
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) SweepResult {
	return s.SweepBefore(ctx, time.Now().Add(-s.TTL))
}

// SweepBefore settles RESERVED reservations created before cutoff.
func (s *Sweeper) SweepBefore(ctx context.Context, cutoff time.Time) SweepResult {
	var res SweepResult
	stale, err := s.Store.Stale(ctx, cutoff, sweepBatch)
	if err != nil {
		s.Log.Warn("list stale reservations", "err", err)
		return res
	}
	for _, r := range stale {
		switch s.settle(ctx, r) {
		case ReservationReleased:
			res.Released++
		case ReservationCommitted:
			res.Committed++
		default:
			res.Skipped++
		}
	}
	if res.Released+res.Committed > 0 {
		s.Log.Info("settled stale reservations", "released", res.Released, "committed", res.Committed, "skipped", res.Skipped)
		if s.OnSwept != nil {
			s.OnSwept(res.Released, res.Committed)
		}
	}
	return res
}

func (s *Sweeper) settle(ctx context.Context, r Reservation) ReservationStatus {
	log := s.Log.With("reservation_id", r.ID, "order_id", r.OrderID, "product_id", r.ProductID)
	placed := false
	if r.OrderID != "" {
		if s.Orders == nil {
			log.Warn("stale reservation has an order but no order lookup is configured")
			return ReservationReserved
		}
		ok, err := s.Orders.OrderExists(ctx, r.OrderID)
		if err != nil {
			log.Warn("look up order for stale reservation", "err", err)
			return ReservationReserved
		}
		placed = ok
	}
	if placed {
		if err := s.Store.Commit(ctx, r); err != nil {
			log.Warn("commit stale reservation", "err", err)
			return ReservationReserved
		}
		return ReservationCommitted
	}
	if err := s.Store.Release(ctx, r); err != nil {
		log.Warn("release stale reservation", "err", err)
		return ReservationReserved
	}
	return ReservationReleased
}

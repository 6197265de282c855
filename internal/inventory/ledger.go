// Package inventory owns product quantities. The Ledger is the only writer
// of quantity: stock leaves through Reserve and comes back through Release
// or Restock.
package inventory

import (
	"context"
	"time"
)

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

type Reservation struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"orderId,omitempty"`
	ProductID string            `json:"productId"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

type Ledger interface {
	// CheckAvailability reports whether quantity units are on hand right now.
	CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error)
	// Reserve decrements atomically or fails with *apperr.InsufficientStockError.
	// orderID names the order the units are held for and may be empty.
	Reserve(ctx context.Context, orderID, productID string, quantity int) (Reservation, error)
	// Release restores a RESERVED reservation; anything else is a no-op.
	Release(ctx context.Context, r Reservation) error
	// Commit makes a reservation permanent so Release can no longer undo it.
	Commit(ctx context.Context, r Reservation) error
}

type Catalog interface {
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, f Filter) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id string, u ProductUpdate) (Product, error)
	Delete(ctx context.Context, id string) error
	Restock(ctx context.Context, id string, quantity int) (Product, error)
}

// Store is what the product service runs on.
type Store interface {
	Ledger
	Catalog
	// Stale lists up to limit RESERVED reservations created before cutoff, oldest first.
	Stale(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)
}

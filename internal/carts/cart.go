// Package carts holds per-user carts. A cart line is a snapshot of the
// product's name and price at the moment it was added.
package carts

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

type Cart struct {
	UserID      string          `json:"userId"`
	Items       []Line          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Version     int64           `json:"version"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}

// Store loads and saves whole carts. Save must fail with apperr.ErrConflict
// when the stored version is not c.Version; Version 0 means "not stored yet".
type Store interface {
	Get(ctx context.Context, userID string) (Cart, error)
	Save(ctx context.Context, c Cart) (Cart, error)
}

func Empty(userID string) Cart {
	return Cart{UserID: userID, Items: []Line{}, TotalAmount: decimal.Zero}
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	c.TotalAmount = total
}

func (l Line) validate() error {
	switch {
	case strings.TrimSpace(l.ProductID) == "":
		return apperr.Invalid("productId is required")
	case l.Quantity <= 0:
		return apperr.Invalid("quantity must be positive")
	case l.Price.IsNegative():
		return apperr.Invalid("price must not be negative")
	}
	return nil
}

// Add merges into an existing line for the same product by raising its quantity.
func (c *Cart) Add(l Line) error {
	if err := l.validate(); err != nil {
		return err
	}
	for i := range c.Items {
		if c.Items[i].ProductID == l.ProductID {
			c.Items[i].Quantity += l.Quantity
			c.recompute()
			return nil
		}
	}
	c.Items = append(c.Items, l)
	c.recompute()
	return nil
}

// Remove reports whether a line was dropped.
func (c *Cart) Remove(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i:i], c.Items[i+1:]...)
			c.recompute()
			return true
		}
	}
	return false
}

func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.Invalid("quantity must be positive")
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.recompute()
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (c *Cart) Clear() bool {
	if len(c.Items) == 0 {
		return false
	}
	c.Items = []Line{}
	c.recompute()
	return true
}

func (c Cart) clone() Cart {
	items := make([]Line, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

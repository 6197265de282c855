package orders

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

// Line is captured at order time and never follows later product edits.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type StatusChange struct {
	From Status    `json:"from,omitempty"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Items       []Line          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      Status          `json:"status"`
	History     []StatusChange  `json:"history"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Store persists orders. Orders are never deleted and only Status (plus its
// history) changes after Create.
type Store interface {
	// Create stores a new PENDING order under orderID, or under a fresh id
	// when orderID is empty. A taken id is apperr.ErrConflict.
	Create(ctx context.Context, orderID, userID string, lines []Line, total decimal.Decimal) (Order, error)
	SetStatus(ctx context.Context, orderID string, to Status) (Order, error)
	GetByID(ctx context.Context, orderID string) (Order, error)
	// ListByUser returns newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return apperr.Invalid("order must have at least one item")
	}
	for i, l := range lines {
		switch {
		case strings.TrimSpace(l.ProductID) == "":
			return apperr.Invalid("item %d: productId is required", i)
		case l.Quantity <= 0:
			return apperr.Invalid("item %d: quantity must be positive", i)
		case l.Price.IsNegative():
			return apperr.Invalid("item %d: price must not be negative", i)
		}
	}
	return nil
}

// Validate rejects a client total that disagrees with the line subtotals.
func Validate(userID string, lines []Line, total decimal.Decimal) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Invalid("userId is required")
	}
	if err := ValidateLines(lines); err != nil {
		return err
	}
	if want := Total(lines); !want.Equal(total) {
		return apperr.Invalid("totalAmount %s does not match item total %s", total.StringFixed(2), want.StringFixed(2))
	}
	return nil
}

func clone(o Order) Order {
	o.Items = append([]Line(nil), o.Items...)
	o.History = append([]StatusChange(nil), o.History...)
	return o
}

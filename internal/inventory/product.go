package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"sellerId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return apperr.Invalid("product name is required")
	case strings.TrimSpace(p.SellerID) == "":
		return apperr.Invalid("sellerId is required")
	case p.Price.IsNegative():
		return apperr.Invalid("price must not be negative")
	case p.Quantity < 0:
		return apperr.Invalid("quantity must not be negative")
	}
	return nil
}

// ProductUpdate carries the mutable catalog fields. Quantity is absent on
// purpose: it only moves through reservations and Restock.
type ProductUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

func (u ProductUpdate) apply(p *Product) error {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	return p.Validate()
}

type Filter struct {
	Query    string
	Category string
	SellerID string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (f Filter) match(p Product) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.SellerID != "" && p.SellerID != f.SellerID {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Products are always handled by pointer and
// compared by identity; two products with equal fields are still distinct.
//
// Capabilities are carried by value: a product is perishable when ExpiresOn
// is set and shippable when RequiresShipping is true. WeightKg may be set on
// products that never ship.
type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int             `json:"quantity"`
	ExpiresOn        *time.Time      `json:"expires_on,omitempty"`
	WeightKg         decimal.Decimal `json:"weight_kg"`
	RequiresShipping bool            `json:"requires_shipping"`
}

// IsAvailable reports whether the requested quantity is in stock.
func (p *Product) IsAvailable(requested int) bool {
	return p.Quantity >= requested
}

// IsOutOfStock reports whether the product has no stock left.
func (p *Product) IsOutOfStock() bool {
	return p.Quantity <= 0
}

// ReduceStock removes n units from stock. It refuses to drive stock negative.
func (p *Product) ReduceStock(n int) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	if p.Quantity < n {
		return &StockError{Kind: ErrInsufficientStock, Product: p.Name, Requested: n, Available: p.Quantity}
	}
	p.Quantity -= n
	return nil
}

// Restock adds n units back to stock.
func (p *Product) Restock(n int) {
	p.Quantity += n
}

func (p *Product) String() string {
	s := fmt.Sprintf("%s - $%s (Qty: %d", p.Name, p.Price.StringFixed(2), p.Quantity)
	if p.ExpiresOn != nil {
		s += ", Expires: " + p.ExpiresOn.Format(time.DateOnly)
	}
	if p.RequiresShipping {
		s += ", Weight: " + p.WeightKg.StringFixed(1) + "kg"
	}
	return s + ")"
}

// IsPerishable reports whether p carries an expiry date.
func IsPerishable(p *Product) bool {
	return p.ExpiresOn != nil
}

// IsExpired reports whether today's calendar date is strictly after the
// product's expiry date. A product expiring today is still valid.
// Non-perishable products never expire.
func IsExpired(p *Product, today time.Time) bool {
	if p.ExpiresOn == nil {
		return false
	}
	return dateOf(today).After(dateOf(*p.ExpiresOn))
}

// IsShippable reports whether p must be physically shipped.
func IsShippable(p *Product) bool {
	return p.RequiresShipping
}

// Date returns midnight UTC of the calendar date (year, month, day).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// dateOf drops the clock part of t, keeping the calendar date in t's location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

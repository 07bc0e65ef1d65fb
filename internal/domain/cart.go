package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine pairs a product with the quantity requested for it.
type CartLine struct {
	Product  *Product `json:"product"`
	Quantity int      `json:"quantity"`
}

// Total returns unit price times quantity.
func (l CartLine) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered set of lines with at most one line per product.
// Adding stock to a cart only reserves it logically; products are not
// mutated until checkout commits.
type Cart struct {
	lines []CartLine
	now   func() time.Time
}

// CartOption configures a Cart.
type CartOption func(*Cart)

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) CartOption {
	return func(c *Cart) {
		c.now = now
	}
}

// NewCart creates an empty cart.
func NewCart(opts ...CartOption) *Cart {
	c := &Cart{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add puts quantity units of p in the cart, merging with an existing line for
// the same product. The check covers the quantity already in the cart, so a
// product with 3 in stock accepts Add(p, 3) but then rejects Add(p, 1).
func (c *Cart) Add(p *Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	idx := c.indexOf(p)
	existing := 0
	if idx >= 0 {
		existing = c.lines[idx].Quantity
	}

	switch {
	case p.IsOutOfStock():
		return &StockError{Kind: ErrOutOfStock, Product: p.Name, Requested: quantity, Available: p.Quantity, addTime: true}
	case quantity+existing > p.Quantity:
		return &StockError{Kind: ErrInsufficientStock, Product: p.Name, Requested: quantity, Available: p.Quantity, addTime: true}
	case IsExpired(p, c.now()):
		return &ExpiryError{Product: p.Name, ExpiresOn: *p.ExpiresOn}
	}

	if idx >= 0 {
		c.lines[idx].Quantity += quantity
		return nil
	}
	c.lines = append(c.lines, CartLine{Product: p, Quantity: quantity})
	return nil
}

// Remove deletes every line referencing p. Removing an absent product is a no-op.
func (c *Cart) Remove(p *Product) {
	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.Product != p {
			kept = append(kept, l)
		}
	}
	clear(c.lines[len(kept):])
	c.lines = kept
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// QuantityOf returns the quantity of p already in the cart.
func (c *Cart) QuantityOf(p *Product) int {
	if idx := c.indexOf(p); idx >= 0 {
		return c.lines[idx].Quantity
	}
	return 0
}

// TotalItemCount returns the sum of quantities across all lines.
func (c *Cart) TotalItemCount() int {
	var n int
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal returns the sum of unit price times quantity across all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Total())
	}
	return total
}

// ShippableLines derives the shipping view of the cart: one entry per line
// whose product requires shipping, in cart order.
func (c *Cart) ShippableLines() []ShippableLine {
	var out []ShippableLine
	for _, l := range c.lines {
		if IsShippable(l.Product) {
			out = append(out, ShippableLine{
				Name:         l.Product.Name,
				UnitWeightKg: l.Product.WeightKg,
				Quantity:     l.Quantity,
			})
		}
	}
	return out
}

func (c *Cart) indexOf(p *Product) int {
	for i := range c.lines {
		if c.lines[i].Product == p {
			return i
		}
	}
	return -1
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt summarizes a committed checkout. Rendering is left to the caller.
type Receipt struct {
	CheckoutID       string          `json:"checkout_id"`
	Customer         string          `json:"customer"`
	Lines            []ReceiptLine   `json:"lines"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingFee      decimal.Decimal `json:"shipping_fee"`
	Total            decimal.Decimal `json:"total"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ReceiptLine is one priced line on a receipt.
type ReceiptLine struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// ItemCount returns the sum of quantities on the receipt.
func (r *Receipt) ItemCount() int {
	var n int
	for _, l := range r.Lines {
		n += l.Quantity
	}
	return n
}

// Shipment is the record handed to shipping once a checkout commits.
type Shipment struct {
	CheckoutID    string          `json:"checkout_id"`
	Lines         []ShippableLine `json:"lines"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
}

// NewShipment builds a shipment from shippable lines.
func NewShipment(checkoutID string, lines []ShippableLine) *Shipment {
	return &Shipment{
		CheckoutID:    checkoutID,
		Lines:         lines,
		TotalWeightKg: TotalWeight(lines),
	}
}

// ItemCount returns the number of units to ship.
func (s *Shipment) ItemCount() int {
	var n int
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

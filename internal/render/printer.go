// Package render writes checkout documents as plain text.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storecheckout/internal/domain"
)

const separator = "----------------------"

var grams = decimal.NewFromInt(1000)

// Printer writes receipts and shipment notices to an io.Writer. It
// implements both checkout sinks.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// DispatchShipment prints the shipment notice. Weights are listed per unit
// in grams, followed by the package total in kilograms.
func (p *Printer) DispatchShipment(_ context.Context, shipment *domain.Shipment) error {
	var b strings.Builder
	b.WriteString("** Shipment notice **\n")
	for _, l := range shipment.Lines {
		fmt.Fprintf(&b, "%dx %s %sg\n", l.Quantity, l.Name, l.UnitWeightKg.Mul(grams).StringFixed(0))
	}
	fmt.Fprintf(&b, "Total package weight %skg\n", shipment.TotalWeightKg.StringFixed(1))
	return p.write(b.String())
}

// DeliverReceipt prints the checkout receipt.
func (p *Printer) DeliverReceipt(_ context.Context, receipt *domain.Receipt) error {
	var b strings.Builder
	b.WriteString("** Checkout receipt **\n")
	for _, l := range receipt.Lines {
		fmt.Fprintf(&b, "%dx %s %s\n", l.Quantity, l.Name, l.LineTotal.StringFixed(0))
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Subtotal %s\n", receipt.Subtotal.StringFixed(0))
	fmt.Fprintf(&b, "Shipping %s\n", receipt.ShippingFee.StringFixed(0))
	fmt.Fprintf(&b, "Amount %s\n", receipt.Total.StringFixed(0))
	fmt.Fprintf(&b, "Customer balance after payment: $%s\n", receipt.RemainingBalance.StringFixed(2))
	return p.write(b.String())
}

func (p *Printer) write(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, s); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Cart formats the cart contents with line totals and the subtotal.
func Cart(cart *domain.Cart) string {
	if cart.IsEmpty() {
		return "Cart is empty"
	}
	var b strings.Builder
	b.WriteString("Cart Contents:\n")
	for _, l := range cart.Lines() {
		fmt.Fprintf(&b, "- %dx %s ($%s)\n", l.Quantity, l.Product.Name, l.Total().StringFixed(2))
	}
	fmt.Fprintf(&b, "Subtotal: $%s", cart.Subtotal().StringFixed(2))
	return b.String()
}

package domain

import (
	"github.com/shopspring/decimal"
)

// Default shipping policy values.
var (
	DefaultBaseFee   = decimal.NewFromInt(5)
	DefaultRatePerKg = decimal.NewFromInt(25)
)

// ShippableLine is the shipping view of a cart line.
type ShippableLine struct {
	Name         string          `json:"name"`
	UnitWeightKg decimal.Decimal `json:"unit_weight_kg"`
	Quantity     int             `json:"quantity"`
}

// WeightKg returns unit weight times quantity.
func (l ShippableLine) WeightKg() decimal.Decimal {
	return l.UnitWeightKg.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ShippingPolicy computes a weight-based shipping fee.
type ShippingPolicy struct {
	BaseFee   decimal.Decimal
	RatePerKg decimal.Decimal
}

// DefaultShippingPolicy returns the standard 5 + 25/kg policy.
func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{BaseFee: DefaultBaseFee, RatePerKg: DefaultRatePerKg}
}

// Fee returns 0 for no items, otherwise BaseFee + RatePerKg * total weight.
func (p ShippingPolicy) Fee(items []ShippableLine) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	return p.BaseFee.Add(p.RatePerKg.Mul(TotalWeight(items)))
}

// TotalWeight returns the sum of weight times quantity over items.
func TotalWeight(items []ShippableLine) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.WeightKg())
	}
	return total
}

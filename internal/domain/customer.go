package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Customer holds a spendable balance. The balance only changes through
// Debit and Credit; a debit that would overdraw is rejected, never clamped.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	balance decimal.Decimal
}

// NewCustomer creates a customer with an opening balance.
func NewCustomer(id, name string, balance decimal.Decimal) *Customer {
	return &Customer{ID: id, Name: name, balance: balance}
}

// DisplayName returns the name printed on receipts.
func (c *Customer) DisplayName() string {
	return c.Name
}

// Balance returns the current balance.
func (c *Customer) Balance() decimal.Decimal {
	return c.balance
}

// HasSufficientBalance reports whether the balance covers amount.
func (c *Customer) HasSufficientBalance(amount decimal.Decimal) bool {
	return c.balance.GreaterThanOrEqual(amount)
}

// Debit subtracts amount from the balance.
func (c *Customer) Debit(amount decimal.Decimal) error {
	if !c.HasSufficientBalance(amount) {
		return &BalanceError{Required: amount, Available: c.balance}
	}
	c.balance = c.balance.Sub(amount)
	return nil
}

// Credit adds amount to the balance.
func (c *Customer) Credit(amount decimal.Decimal) {
	c.balance = c.balance.Add(amount)
}

func (c *Customer) String() string {
	return fmt.Sprintf("Customer: %s (Balance: $%s)", c.Name, c.balance.StringFixed(2))
}

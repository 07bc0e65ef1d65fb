package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for cart and checkout failures. The typed errors below
// unwrap to one of these so callers can use errors.Is.
var (
	ErrInvalidQuantity     = errors.New("quantity must be greater than 0")
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrExpired             = errors.New("product is expired")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// StockError reports a stock shortfall for a single product.
// Kind is either ErrOutOfStock or ErrInsufficientStock.
type StockError struct {
	Kind      error
	Product   string
	Requested int
	Available int
	// addTime marks errors raised by Cart.Add, which use the shorter message.
	addTime bool
}

func (e *StockError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrOutOfStock):
		return fmt.Sprintf("product %s is out of stock", e.Product)
	case e.addTime:
		return fmt.Sprintf("product %s has only %d available", e.Product, e.Requested)
	default:
		return fmt.Sprintf("product %s is not available in requested quantity: available %d, requested %d",
			e.Product, e.Available, e.Requested)
	}
}

func (e *StockError) Unwrap() error {
	return e.Kind
}

// ExpiryError reports a perishable product past its expiry date.
type ExpiryError struct {
	Product   string
	ExpiresOn time.Time
}

func (e *ExpiryError) Error() string {
	return fmt.Sprintf("product %s is expired (expired on %s)", e.Product, e.ExpiresOn.Format(time.DateOnly))
}

func (e *ExpiryError) Unwrap() error {
	return ErrExpired
}

// BalanceError reports that a customer cannot cover an amount.
type BalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *BalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

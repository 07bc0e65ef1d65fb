// Package catalog creates validated products and indexes the products a
// checkout session can sell.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storecheckout/internal/domain"
	apperrors "github.com/utafrali/storecheckout/pkg/errors"
	"github.com/utafrali/storecheckout/pkg/validator"
)

// ProductSpec describes a product to create.
type ProductSpec struct {
	Name             string          `json:"name" validate:"required,min=1,max=255"`
	Price            decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity         int             `json:"quantity" validate:"gte=0"`
	ExpiresOn        *time.Time      `json:"expires_on"`
	WeightKg         decimal.Decimal `json:"weight_kg" validate:"gte=0"`
	RequiresShipping bool            `json:"requires_shipping"`
}

// New validates spec and returns a product with a generated ID. Expiry
// dates are truncated to the calendar day.
func New(spec ProductSpec) (*domain.Product, error) {
	if err := validator.Validate(spec); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	p := &domain.Product{
		ID:               uuid.New().String(),
		Name:             spec.Name,
		Price:            spec.Price,
		Quantity:         spec.Quantity,
		WeightKg:         spec.WeightKg,
		RequiresShipping: spec.RequiresShipping,
	}
	if spec.ExpiresOn != nil {
		day := domain.Date(spec.ExpiresOn.Date())
		p.ExpiresOn = &day
	}
	return p, nil
}

// Cheese creates a perishable, shippable product.
func Cheese(name string, price decimal.Decimal, quantity int, expiresOn time.Time, weightKg decimal.Decimal) (*domain.Product, error) {
	return New(ProductSpec{
		Name:             name,
		Price:            price,
		Quantity:         quantity,
		ExpiresOn:        &expiresOn,
		WeightKg:         weightKg,
		RequiresShipping: true,
	})
}

// Biscuits creates a perishable, shippable product.
func Biscuits(name string, price decimal.Decimal, quantity int, expiresOn time.Time, weightKg decimal.Decimal) (*domain.Product, error) {
	return Cheese(name, price, quantity, expiresOn, weightKg)
}

// TV creates a non-perishable, shippable product.
func TV(name string, price decimal.Decimal, quantity int, weightKg decimal.Decimal) (*domain.Product, error) {
	return New(ProductSpec{
		Name:             name,
		Price:            price,
		Quantity:         quantity,
		WeightKg:         weightKg,
		RequiresShipping: true,
	})
}

// Mobile creates a product that carries a weight but is never shipped.
func Mobile(name string, price decimal.Decimal, quantity int, weightKg decimal.Decimal) (*domain.Product, error) {
	return New(ProductSpec{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		WeightKg: weightKg,
	})
}

// scratchCardWeightKg is the nominal weight of a scratch card.
var scratchCardWeightKg = decimal.RequireFromString("0.001")

// ScratchCard creates a digital product that is never shipped.
func ScratchCard(name string, price decimal.Decimal, quantity int) (*domain.Product, error) {
	return New(ProductSpec{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		WeightKg: scratchCardWeightKg,
	})
}

// Catalog indexes products by ID, keeping insertion order for listing.
// The index is safe for concurrent use. The products it holds are shared by
// pointer and their stock is only changed by checkout under the engine lock,
// so carts must be filled while no checkout is running.
type Catalog struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Product
	products []*domain.Product
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*domain.Product)}
}

// Add registers a product.
func (c *Catalog) Add(p *domain.Product) error {
	if p == nil || p.ID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[p.ID]; ok {
		return apperrors.AlreadyExists("product", "id", p.ID)
	}
	c.byID[p.ID] = p
	c.products = append(c.products, p)
	return nil
}

// Get returns the product with the given ID.
func (c *Catalog) Get(id string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return p, nil
}

// ByName returns the first product with the given name.
func (c *Catalog) ByName(name string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("product", name)
}

// List returns the products in insertion order.
func (c *Catalog) List() []*domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Demo product names.
const (
	DemoCheese      = "Cheddar Cheese"
	DemoBiscuits    = "Oreo Biscuits"
	DemoTV          = "Samsung Smart TV"
	DemoMobile      = "iPhone 14"
	DemoScratchCard = "Mobile Credit Card"
)

// Demo builds the demonstration inventory relative to now.
func Demo(now time.Time) (*Catalog, error) {
	today := domain.Date(now.Date())

	builders := []func() (*domain.Product, error){
		func() (*domain.Product, error) {
			return Cheese(DemoCheese, decimal.NewFromInt(100), 10, today.AddDate(0, 0, 7), decimal.RequireFromString("0.2"))
		},
		func() (*domain.Product, error) {
			return Biscuits(DemoBiscuits, decimal.NewFromInt(75), 15, today.AddDate(0, 0, 30), decimal.RequireFromString("0.35"))
		},
		func() (*domain.Product, error) {
			return TV(DemoTV, decimal.NewFromInt(800), 5, decimal.NewFromInt(15))
		},
		func() (*domain.Product, error) {
			return Mobile(DemoMobile, decimal.NewFromInt(1200), 8, decimal.RequireFromString("0.2"))
		},
		func() (*domain.Product, error) {
			return ScratchCard(DemoScratchCard, decimal.NewFromInt(50), 20)
		},
	}

	c := NewCatalog()
	for _, build := range builders {
		p, err := build()
		if err != nil {
			return nil, fmt.Errorf("build demo product: %w", err)
		}
		if err := c.Add(p); err != nil {
			return nil, fmt.Errorf("add demo product: %w", err)
		}
	}
	return c, nil
}

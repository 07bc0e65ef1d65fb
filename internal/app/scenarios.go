package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storecheckout/internal/catalog"
	"github.com/utafrali/storecheckout/internal/domain"
	"github.com/utafrali/storecheckout/internal/render"
	"github.com/utafrali/storecheckout/internal/service"
	apperrors "github.com/utafrali/storecheckout/pkg/errors"
	"github.com/utafrali/storecheckout/pkg/logger"
)

// Demo plays the scripted checkout sessions against a shared catalog.
// Stock sold in one session is gone for the next.
type Demo struct {
	svc     *service.CheckoutService
	catalog *catalog.Catalog
	out     io.Writer
	now     func() time.Time
}

// NewDemo creates a demo over the given service and catalog.
func NewDemo(svc *service.CheckoutService, c *catalog.Catalog, out io.Writer, now func() time.Time) *Demo {
	return &Demo{svc: svc, catalog: c, out: out, now: now}
}

// demoProducts holds the catalog entries the sessions use.
type demoProducts struct {
	cheese, biscuits, tv, mobile, card *domain.Product
}

func (d *Demo) lookup() (*demoProducts, error) {
	var p demoProducts
	for name, dst := range map[string]**domain.Product{
		catalog.DemoCheese:      &p.cheese,
		catalog.DemoBiscuits:    &p.biscuits,
		catalog.DemoTV:          &p.tv,
		catalog.DemoMobile:      &p.mobile,
		catalog.DemoScratchCard: &p.card,
	} {
		product, err := d.catalog.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}
		*dst = product
	}
	return &p, nil
}

// Run plays every session in order.
func (d *Demo) Run(ctx context.Context) error {
	p, err := d.lookup()
	if err != nil {
		return err
	}

	first := domain.NewCustomer("cust-1", "Mohamed Hesham", decimal.NewFromInt(2000))
	second := domain.NewCustomer("cust-2", "Abdelrahman Hesham", decimal.NewFromInt(100))

	d.printf("=== Checkout Demo ===\n\n")

	d.printf("=== Demo 1: Successful Checkout ===\n")
	d.successfulCheckout(ctx, first, p)

	d.printf("\n=== Demo 2: Error Cases ===\n")
	d.errorCases(ctx, second, p)

	d.printf("\n=== Demo 3: Edge Cases ===\n")
	if err := d.edgeCases(ctx, first, p); err != nil {
		return err
	}

	d.printf("\n=== Demo 4: Product Expiration ===\n")
	return d.expiredProducts(ctx, first)
}

func (d *Demo) newCart() *domain.Cart {
	return domain.NewCart(domain.WithClock(d.now))
}

func (d *Demo) checkout(ctx context.Context, customer *domain.Customer, cart *domain.Cart) (*domain.Receipt, error) {
	return d.svc.Checkout(logger.WithCustomerID(ctx, customer.ID), customer, cart)
}

func (d *Demo) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

func (d *Demo) successfulCheckout(ctx context.Context, customer *domain.Customer, p *demoProducts) {
	d.printf("%s\n", customer)
	d.printf("Adding products to cart...\n")

	cart := d.newCart()
	for _, item := range []struct {
		product  *domain.Product
		quantity int
	}{
		{p.cheese, 2},
		{p.biscuits, 1},
		{p.tv, 1},
		{p.card, 1},
	} {
		if err := cart.Add(item.product, item.quantity); err != nil {
			d.printf("Error during checkout: %s\n", apperrors.MessageOf(err))
			return
		}
	}
	d.printf("%s\n", render.Cart(cart))

	d.printf("\nProcessing checkout...\n")
	if _, err := d.checkout(ctx, customer, cart); err != nil {
		d.printf("Error during checkout: %s\n", apperrors.MessageOf(err))
		return
	}

	d.printf("\nCheckout completed successfully!\n")
	d.printf("Updated %s\n", customer)
}

func (d *Demo) errorCases(ctx context.Context, customer *domain.Customer, p *demoProducts) {
	d.printf("Test 1: Empty Cart\n")
	if _, err := d.checkout(ctx, customer, d.newCart()); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
	}

	d.printf("\nTest 2: Insufficient Balance\n")
	cart := d.newCart()
	if err := cart.Add(p.tv, 1); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
	} else if _, err := d.checkout(ctx, customer, cart); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
	}

	d.printf("\nTest 3: Out of Stock\n")
	cart = d.newCart()
	if err := cart.Add(p.cheese, 50); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
	} else if _, err := d.checkout(ctx, customer, cart); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
	}
}

func (d *Demo) edgeCases(ctx context.Context, customer *domain.Customer, p *demoProducts) error {
	d.printf("Test 1: Non-shippable items only (Mobile + Scratch Card)\n")
	giftCard, err := catalog.ScratchCard("Google Play Card", decimal.NewFromInt(25), 10)
	if err != nil {
		return fmt.Errorf("create gift card: %w", err)
	}
	if err := d.catalog.Add(giftCard); err != nil {
		return fmt.Errorf("add gift card: %w", err)
	}

	cart := d.newCart()
	if err := cart.Add(p.mobile, 1); err != nil {
		d.printf("Error: %s\n", apperrors.MessageOf(err))
	} else if err := cart.Add(giftCard, 2); err != nil {
		d.printf("Error: %s\n", apperrors.MessageOf(err))
	} else {
		d.printf("Cart contents: %d items\n", cart.TotalItemCount())
		if _, err := d.checkout(ctx, customer, cart); err != nil {
			d.printf("Error: %s\n", apperrors.MessageOf(err))
		}
	}

	d.printf("\nTest 2: Adding same product multiple times\n")
	cart = d.newCart()
	if err := cart.Add(p.cheese, 1); err != nil {
		d.printf("Error: %s\n", apperrors.MessageOf(err))
		return nil
	}
	if err := cart.Add(p.cheese, 2); err != nil {
		d.printf("Error: %s\n", apperrors.MessageOf(err))
		return nil
	}
	d.printf("Total cheese in cart: %d units\n", cart.QuantityOf(p.cheese))
	return nil
}

func (d *Demo) expiredProducts(ctx context.Context, customer *domain.Customer) error {
	yesterday := domain.Date(d.now().Date()).AddDate(0, 0, -1)
	expired, err := catalog.Cheese("Expired Cheese", decimal.NewFromInt(50), 5, yesterday, decimal.RequireFromString("0.3"))
	if err != nil {
		return fmt.Errorf("create expired cheese: %w", err)
	}

	cart := d.newCart()
	if err := cart.Add(expired, 1); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
		return nil
	}

	d.printf("Attempting to checkout with expired cheese...\n")
	if _, err := d.checkout(ctx, customer, cart); err != nil {
		d.printf("Expected error: %s\n", apperrors.MessageOf(err))
	}
	return nil
}

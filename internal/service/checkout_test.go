package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/utafrali/storecheckout/internal/domain"
	apperrors "github.com/utafrali/storecheckout/pkg/errors"
)

// --- Mock Sinks ---

type mockReceiptSink struct {
	mock.Mock
}

func (m *mockReceiptSink) DeliverReceipt(ctx context.Context, receipt *domain.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

type mockShipmentSink struct {
	mock.Mock
}

func (m *mockShipmentSink) DispatchShipment(ctx context.Context, shipment *domain.Shipment) error {
	args := m.Called(ctx, shipment)
	return args.Error(0)
}

// --- Test Helpers ---

var testToday = domain.Date(2026, time.March, 10)

func testClock() time.Time {
	return testToday.Add(12 * time.Hour)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	svc       *CheckoutService
	metrics   *Metrics
	receipts  *mockReceiptSink
	shipments *mockShipmentSink
	spans     *tracetest.SpanRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		metrics:   NewMetrics(prometheus.NewRegistry()),
		receipts:  new(mockReceiptSink),
		shipments: new(mockShipmentSink),
		spans:     tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(env.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	env.svc = NewCheckoutService(domain.DefaultShippingPolicy(), newTestLogger(),
		WithReceiptSink(env.receipts),
		WithShipmentSink(env.shipments),
		WithClock(testClock),
		WithMetrics(env.metrics),
		WithTracerProvider(tp),
	)
	return env
}

func newCart() *domain.Cart {
	return domain.NewCart(domain.WithClock(testClock))
}

func product(name string, price int64, qty int) *domain.Product {
	return &domain.Product{Name: name, Price: decimal.NewFromInt(price), Quantity: qty}
}

func shippable(name string, price int64, qty int, weightKg string) *domain.Product {
	p := product(name, price, qty)
	p.RequiresShipping = true
	p.WeightKg = decimal.RequireFromString(weightKg)
	return p
}

func perishable(name string, price int64, qty int, expiresOn time.Time) *domain.Product {
	p := product(name, price, qty)
	p.ExpiresOn = &expiresOn
	return p
}

func customer(balance int64) *domain.Customer {
	return domain.NewCustomer("cust-1", "Mohamed Hesham", decimal.NewFromInt(balance))
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// ============================================================================
// Successful checkout
// ============================================================================

func TestCheckout_MixedCart(t *testing.T) {
	env := newTestEnv(t)
	cheese := perishable("Cheese", 100, 10, testToday.AddDate(0, 0, 7))
	biscuits := perishable("Biscuits", 75, 15, testToday.AddDate(0, 0, 30))
	tv := shippable("TV", 800, 5, "15")
	card := product("Scratch Card", 50, 20)
	cust := customer(2000)

	cart := newCart()
	require.NoError(t, cart.Add(cheese, 2))
	require.NoError(t, cart.Add(biscuits, 1))
	require.NoError(t, cart.Add(tv, 1))
	require.NoError(t, cart.Add(card, 1))

	var shipped *domain.Shipment
	env.shipments.On("DispatchShipment", mock.Anything, mock.AnythingOfType("*domain.Shipment")).
		Run(func(args mock.Arguments) { shipped = args.Get(1).(*domain.Shipment) }).
		Return(nil).Once()
	env.receipts.On("DeliverReceipt", mock.Anything, mock.AnythingOfType("*domain.Receipt")).Return(nil).Once()

	receipt, err := env.svc.Checkout(context.Background(), cust, cart)

	require.NoError(t, err)
	require.NotNil(t, receipt)
	assertDecimal(t, "1125", receipt.Subtotal)
	assertDecimal(t, "380", receipt.ShippingFee)
	assertDecimal(t, "1505", receipt.Total)
	assertDecimal(t, "495", receipt.RemainingBalance)
	assertDecimal(t, "495", cust.Balance())
	assert.Equal(t, "Mohamed Hesham", receipt.Customer)
	assert.NotEmpty(t, receipt.CheckoutID)
	assert.Equal(t, testClock().UTC(), receipt.CreatedAt)
	assert.Equal(t, 5, receipt.ItemCount())

	require.Len(t, receipt.Lines, 4)
	assert.Equal(t, "Cheese", receipt.Lines[0].Name)
	assertDecimal(t, "200", receipt.Lines[0].LineTotal)
	assert.Equal(t, "Scratch Card", receipt.Lines[3].Name)

	assert.Equal(t, 8, cheese.Quantity)
	assert.Equal(t, 14, biscuits.Quantity)
	assert.Equal(t, 4, tv.Quantity)
	assert.Equal(t, 19, card.Quantity)
	assert.True(t, cart.IsEmpty())

	require.NotNil(t, shipped)
	assert.Equal(t, receipt.CheckoutID, shipped.CheckoutID)
	require.Len(t, shipped.Lines, 1)
	assert.Equal(t, "TV", shipped.Lines[0].Name)
	assertDecimal(t, "15", shipped.TotalWeightKg)

	env.shipments.AssertExpectations(t)
	env.receipts.AssertExpectations(t)
}

func TestCheckout_NonShippableOnly(t *testing.T) {
	env := newTestEnv(t)
	mobile := product("Mobile", 1200, 8)
	mobile.WeightKg = decimal.RequireFromString("0.2")
	card := product("Scratch Card", 50, 20)
	cust := customer(2000)

	cart := newCart()
	require.NoError(t, cart.Add(mobile, 1))
	require.NoError(t, cart.Add(card, 2))

	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(nil).Once()

	receipt, err := env.svc.Checkout(context.Background(), cust, cart)

	require.NoError(t, err)
	assert.True(t, receipt.ShippingFee.IsZero())
	assert.True(t, receipt.Total.Equal(receipt.Subtotal))
	assertDecimal(t, "1300", receipt.Total)
	assertDecimal(t, "700", cust.Balance())
	env.shipments.AssertNotCalled(t, "DispatchShipment", mock.Anything, mock.Anything)
}

func TestCheckout_ExactBalanceLeavesZero(t *testing.T) {
	env := newTestEnv(t)
	tv := shippable("TV", 800, 5, "10")
	cust := customer(800 + 255)

	cart := newCart()
	require.NoError(t, cart.Add(tv, 1))

	env.shipments.On("DispatchShipment", mock.Anything, mock.Anything).Return(nil)
	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(nil)

	receipt, err := env.svc.Checkout(context.Background(), cust, cart)

	require.NoError(t, err)
	assertDecimal(t, "255", receipt.ShippingFee)
	assert.True(t, cust.Balance().IsZero())
	assert.True(t, receipt.RemainingBalance.IsZero())
}

func TestCheckout_ReservedStockCanBeBought(t *testing.T) {
	env := newTestEnv(t)
	widget := product("Widget", 5, 3)
	cart := newCart()
	require.NoError(t, cart.Add(widget, 3))
	require.ErrorIs(t, cart.Add(widget, 1), domain.ErrInsufficientStock)
	assert.Equal(t, 3, widget.Quantity)

	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(nil)

	_, err := env.svc.Checkout(context.Background(), customer(100), cart)

	require.NoError(t, err)
	assert.Equal(t, 0, widget.Quantity)
}

// ============================================================================
// Rejected checkouts
// ============================================================================

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)
	cust := customer(100)

	receipt, err := env.svc.Checkout(context.Background(), cust, newCart())

	assert.Nil(t, receipt)
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, CodeEmptyCart, apperrors.CodeOf(err))
	assert.Equal(t, 422, apperrors.HTTPStatus(err))
	assertDecimal(t, "100", cust.Balance())
	env.receipts.AssertNotCalled(t, "DeliverReceipt", mock.Anything, mock.Anything)
}

func TestCheckout_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	tv := shippable("TV", 800, 5, "15")
	cust := customer(100)
	cart := newCart()
	require.NoError(t, cart.Add(tv, 1))

	_, err := env.svc.Checkout(context.Background(), cust, cart)

	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, CodeInsufficientBalance, apperrors.CodeOf(err))

	var balErr *domain.BalanceError
	require.ErrorAs(t, err, &balErr)
	assertDecimal(t, "1180", balErr.Required)
	assertDecimal(t, "100", balErr.Available)

	assertDecimal(t, "100", cust.Balance())
	assert.Equal(t, 5, tv.Quantity)
	assert.Equal(t, 1, cart.TotalItemCount())
	env.shipments.AssertNotCalled(t, "DispatchShipment", mock.Anything, mock.Anything)
	env.receipts.AssertNotCalled(t, "DeliverReceipt", mock.Anything, mock.Anything)
}

func TestCheckout_ExpiredSinceAddedIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	tv := shippable("TV", 800, 5, "15")
	milk := perishable("Milk", 10, 5, testToday.AddDate(0, 0, -1))
	cust := customer(2000)

	cart := domain.NewCart(domain.WithClock(func() time.Time { return testToday.AddDate(0, 0, -1) }))
	require.NoError(t, cart.Add(tv, 1))
	require.NoError(t, cart.Add(milk, 2))

	_, err := env.svc.Checkout(context.Background(), cust, cart)

	require.ErrorIs(t, err, domain.ErrExpired)
	assert.Equal(t, CodeProductExpired, apperrors.CodeOf(err))
	var expErr *domain.ExpiryError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, "Milk", expErr.Product)

	// The TV line validated first, but nothing was committed.
	assert.Equal(t, 5, tv.Quantity)
	assert.Equal(t, 5, milk.Quantity)
	assertDecimal(t, "2000", cust.Balance())
	assert.Equal(t, 3, cart.TotalItemCount())
}

func TestCheckout_StockSoldToAnotherCart(t *testing.T) {
	env := newTestEnv(t)
	tv := shippable("TV", 800, 3, "15")
	env.shipments.On("DispatchShipment", mock.Anything, mock.Anything).Return(nil)
	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(nil)

	first, second := newCart(), newCart()
	require.NoError(t, first.Add(tv, 2))
	require.NoError(t, second.Add(tv, 2))

	_, err := env.svc.Checkout(context.Background(), customer(5000), first)
	require.NoError(t, err)
	assert.Equal(t, 1, tv.Quantity)

	late := customer(5000)
	_, err = env.svc.Checkout(context.Background(), late, second)

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, CodeInsufficientStock, apperrors.CodeOf(err))
	assert.EqualError(t, err, "INSUFFICIENT_STOCK: product TV is not available in requested quantity: available 1, requested 2")
	assert.Equal(t, 1, tv.Quantity)
	assertDecimal(t, "5000", late.Balance())
	assert.False(t, second.IsEmpty())
}

// interferingAccount runs onDebit after a successful debit, standing in for
// another engine changing shared stock mid-commit.
type interferingAccount struct {
	*domain.Customer
	onDebit func()
}

func (a *interferingAccount) Debit(amount decimal.Decimal) error {
	if err := a.Customer.Debit(amount); err != nil {
		return err
	}
	a.onDebit()
	return nil
}

func TestCheckout_StockLostDuringCommitRollsBack(t *testing.T) {
	env := newTestEnv(t)
	first := product("A", 10, 5)
	second := product("B", 10, 5)
	account := &interferingAccount{
		Customer: customer(100),
		onDebit:  func() { second.Quantity = 0 },
	}

	cart := newCart()
	require.NoError(t, cart.Add(first, 1))
	require.NoError(t, cart.Add(second, 1))

	receipt, err := env.svc.Checkout(context.Background(), account, cart)

	assert.Nil(t, receipt)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, CodeInsufficientStock, apperrors.CodeOf(err))
	assertDecimal(t, "100", account.Balance())
	assert.Equal(t, 5, first.Quantity)
	assert.Equal(t, 0, second.Quantity)
	assert.Equal(t, 2, cart.TotalItemCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Checkouts.WithLabelValues(outcomeInsufficientStock)))
	env.receipts.AssertNotCalled(t, "DeliverReceipt", mock.Anything, mock.Anything)
}

func TestCheckout_RemainingBalanceIsPostDebitSnapshot(t *testing.T) {
	env := newTestEnv(t)
	cust := customer(2000)
	cart := newCart()
	require.NoError(t, cart.Add(shippable("TV", 800, 5, "10"), 1))

	// A later charge on the same account lands before the receipt is built.
	env.shipments.On("DispatchShipment", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { require.NoError(t, cust.Debit(decimal.NewFromInt(100))) }).
		Return(nil)
	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(nil)

	receipt, err := env.svc.Checkout(context.Background(), cust, cart)

	require.NoError(t, err)
	assertDecimal(t, "945", receipt.RemainingBalance)
	assertDecimal(t, "845", cust.Balance())
}

// ============================================================================
// Sinks, metrics and tracing
// ============================================================================

func TestCheckout_SinkFailureDoesNotFailCommittedCheckout(t *testing.T) {
	env := newTestEnv(t)
	tv := shippable("TV", 800, 5, "15")
	cust := customer(2000)
	cart := newCart()
	require.NoError(t, cart.Add(tv, 1))

	env.shipments.On("DispatchShipment", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(errors.New("printer jammed"))

	receipt, err := env.svc.Checkout(context.Background(), cust, cart)

	require.NoError(t, err)
	require.NotNil(t, receipt)
	assertDecimal(t, "820", cust.Balance())
	assert.Equal(t, 4, tv.Quantity)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SinkFailures.WithLabelValues("shipment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SinkFailures.WithLabelValues("receipt")))
}

func TestCheckout_SinksCalledInOrder(t *testing.T) {
	var calls []string
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { calls = append(calls, name) }
	}
	first, second := new(mockReceiptSink), new(mockReceiptSink)
	ship := new(mockShipmentSink)
	first.On("DeliverReceipt", mock.Anything, mock.Anything).Run(record("receipt-1")).Return(nil)
	second.On("DeliverReceipt", mock.Anything, mock.Anything).Run(record("receipt-2")).Return(nil)
	ship.On("DispatchShipment", mock.Anything, mock.Anything).Run(record("shipment")).Return(nil)

	svc := NewCheckoutService(domain.DefaultShippingPolicy(), newTestLogger(),
		WithReceiptSink(first),
		WithReceiptSink(second),
		WithShipmentSink(ship),
		WithClock(testClock),
	)
	cart := newCart()
	require.NoError(t, cart.Add(shippable("TV", 800, 5, "10"), 1))

	_, err := svc.Checkout(context.Background(), customer(2000), cart)

	require.NoError(t, err)
	assert.Equal(t, []string{"shipment", "receipt-1", "receipt-2"}, calls)
}

func TestCheckout_RecordsMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.receipts.On("DeliverReceipt", mock.Anything, mock.Anything).Return(nil)

	cart := newCart()
	require.NoError(t, cart.Add(product("Mobile", 1200, 8), 1))
	_, err := env.svc.Checkout(context.Background(), customer(2000), cart)
	require.NoError(t, err)

	_, err = env.svc.Checkout(context.Background(), customer(2000), newCart())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Checkouts.WithLabelValues(outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Checkouts.WithLabelValues(outcomeEmptyCart)))
	assert.Equal(t, 1200.0, testutil.ToFloat64(env.metrics.Revenue))
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.ShippingFees))
	assert.Equal(t, 2, testutil.CollectAndCount(env.metrics.Checkouts))
}

func TestCheckout_RecordsSpan(t *testing.T) {
	env := newTestEnv(t)
	cart := newCart()
	require.NoError(t, cart.Add(shippable("TV", 800, 5, "10"), 1))

	_, err := env.svc.Checkout(context.Background(), customer(100), cart)
	require.Error(t, err)

	spans := env.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "checkout", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("checkout.outcome", outcomeInsufficientBalance))
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestCheckout_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc := NewCheckoutService(domain.DefaultShippingPolicy(), newTestLogger(), WithClock(testClock))
	tv := product("TV", 800, 5)

	const buyers = 12
	carts := make([]*domain.Cart, buyers)
	for i := range carts {
		carts[i] = newCart()
		require.NoError(t, carts[i].Add(tv, 1))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range carts {
		wg.Add(1)
		go func(cart *domain.Cart) {
			defer wg.Done()
			if _, err := svc.Checkout(context.Background(), customer(1000), cart); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(carts[i])
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, tv.Quantity)
}

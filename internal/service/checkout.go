package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storecheckout/internal/domain"
	apperrors "github.com/utafrali/storecheckout/pkg/errors"
	"github.com/utafrali/storecheckout/pkg/logger"
)

const tracerName = "github.com/utafrali/storecheckout/internal/service"

// Error codes carried by checkout failures.
const (
	CodeEmptyCart           = "EMPTY_CART"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeProductExpired      = "PRODUCT_EXPIRED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
)

// Account is the paying side of a checkout. *domain.Customer satisfies it.
type Account interface {
	DisplayName() string
	Balance() decimal.Decimal
	Debit(amount decimal.Decimal) error
	Credit(amount decimal.Decimal)
}

// ReceiptSink receives the receipt of every committed checkout.
type ReceiptSink interface {
	DeliverReceipt(ctx context.Context, receipt *domain.Receipt) error
}

// ShipmentSink receives the shipment record of a committed checkout that
// contains shippable lines.
type ShipmentSink interface {
	DispatchShipment(ctx context.Context, shipment *domain.Shipment) error
}

// Option configures a CheckoutService.
type Option func(*CheckoutService)

// WithReceiptSink registers a receipt sink. Sinks are called in
// registration order.
func WithReceiptSink(sink ReceiptSink) Option {
	return func(s *CheckoutService) {
		s.receiptSinks = append(s.receiptSinks, sink)
	}
}

// WithShipmentSink registers a shipment sink. Sinks are called in
// registration order.
func WithShipmentSink(sink ShipmentSink) Option {
	return func(s *CheckoutService) {
		s.shipmentSinks = append(s.shipmentSinks, sink)
	}
}

// WithClock sets the clock used for expiry checks and receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CheckoutService) {
		s.now = now
	}
}

// WithMetrics sets the collectors the service records to.
func WithMetrics(m *Metrics) Option {
	return func(s *CheckoutService) {
		s.metrics = m
	}
}

// WithTracerProvider sets the provider the checkout span is created from.
// The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *CheckoutService) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// CheckoutService settles carts against customer balances.
type CheckoutService struct {
	// mu serializes validation, balance check and commit so two checkouts
	// over the same products cannot both pass validation.
	mu            sync.Mutex
	policy        domain.ShippingPolicy
	receiptSinks  []ReceiptSink
	shipmentSinks []ShipmentSink
	metrics       *Metrics
	tracer        trace.Tracer
	now           func() time.Time
	logger        *slog.Logger
}

// NewCheckoutService creates a checkout service using the given shipping policy.
func NewCheckoutService(policy domain.ShippingPolicy, logger *slog.Logger, opts ...Option) *CheckoutService {
	s := &CheckoutService{
		policy: policy,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return s
}

// quote is the priced view of a cart computed before commit.
type quote struct {
	lines     []domain.CartLine
	shippable []domain.ShippableLine
	subtotal  decimal.Decimal
	fee       decimal.Decimal
	total     decimal.Decimal
	remaining decimal.Decimal
}

// Checkout validates the cart, charges the account, decrements stock,
// dispatches the shipment, delivers the receipt and clears the cart. A
// failed checkout leaves account, products and cart as they were: a stock
// decrement failing after the debit refunds the account and restocks the
// lines already decremented.
// Sink failures after the commit are logged and do not fail the checkout.
func (s *CheckoutService) Checkout(ctx context.Context, account Account, cart *domain.Cart) (receipt *domain.Receipt, err error) {
	start := time.Now()
	checkoutID := uuid.New().String()

	ctx, span := s.tracer.Start(ctx, "checkout",
		trace.WithAttributes(attribute.String("checkout.id", checkoutID)),
	)
	defer func() {
		outcome := outcomeOf(err)
		span.SetAttributes(attribute.String("checkout.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.Checkouts.WithLabelValues(outcome).Inc()
		s.metrics.Duration.Observe(time.Since(start).Seconds())
	}()

	if logger.CorrelationIDFromContext(ctx) == "" {
		ctx = logger.WithCorrelationID(ctx, checkoutID)
	}
	log := logger.WithContext(ctx, s.logger)

	if cart.IsEmpty() {
		return nil, apperrors.Unprocessable(CodeEmptyCart, domain.ErrEmptyCart)
	}

	q, err := s.commit(account, cart)
	if err != nil {
		log.InfoContext(ctx, "checkout rejected",
			slog.String("customer", account.DisplayName()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("checkout.lines", len(q.lines)),
		attribute.String("checkout.total", q.total.String()),
	)
	s.metrics.Revenue.Add(q.total.InexactFloat64())
	s.metrics.ShippingFees.Add(q.fee.InexactFloat64())

	if len(q.shippable) > 0 {
		shipment := domain.NewShipment(checkoutID, q.shippable)
		for _, sink := range s.shipmentSinks {
			if err := sink.DispatchShipment(ctx, shipment); err != nil {
				s.metrics.SinkFailures.WithLabelValues("shipment").Inc()
				log.ErrorContext(ctx, "failed to dispatch shipment",
					slog.String("error", err.Error()),
				)
				// The checkout is already committed.
			}
		}
	}

	receipt = &domain.Receipt{
		CheckoutID:       checkoutID,
		Customer:         account.DisplayName(),
		Lines:            receiptLines(q.lines),
		Subtotal:         q.subtotal,
		ShippingFee:      q.fee,
		Total:            q.total,
		RemainingBalance: q.remaining,
		CreatedAt:        s.now().UTC(),
	}
	for _, sink := range s.receiptSinks {
		if err := sink.DeliverReceipt(ctx, receipt); err != nil {
			s.metrics.SinkFailures.WithLabelValues("receipt").Inc()
			log.ErrorContext(ctx, "failed to deliver receipt",
				slog.String("error", err.Error()),
			)
		}
	}

	cart.Clear()

	log.InfoContext(ctx, "checkout completed",
		slog.String("customer", receipt.Customer),
		slog.Int("items", receipt.ItemCount()),
		slog.String("subtotal", q.subtotal.StringFixed(2)),
		slog.String("shipping_fee", q.fee.StringFixed(2)),
		slog.String("total", q.total.StringFixed(2)),
		slog.String("remaining_balance", receipt.RemainingBalance.StringFixed(2)),
	)

	return receipt, nil
}

// commit runs the validate, price, balance and mutate steps under the
// engine lock.
func (s *CheckoutService) commit(account Account, cart *domain.Cart) (*quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := cart.Lines()
	if err := s.validate(lines); err != nil {
		return nil, err
	}

	q := s.price(cart, lines)

	if balance := account.Balance(); balance.LessThan(q.total) {
		return nil, apperrors.Unprocessable(CodeInsufficientBalance,
			&domain.BalanceError{Required: q.total, Available: balance})
	}

	if err := account.Debit(q.total); err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, apperrors.Unprocessable(CodeInsufficientBalance, err)
		}
		return nil, fmt.Errorf("debit account: %w", err)
	}

	for i, l := range lines {
		if err := l.Product.ReduceStock(l.Quantity); err != nil {
			// Stock changed outside the engine since validation.
			s.rollback(account, q.total, lines[:i])
			return nil, apperrors.Unprocessable(CodeInsufficientStock, err)
		}
	}

	q.remaining = account.Balance()
	return q, nil
}

// rollback refunds amount and restocks the lines already decremented.
func (s *CheckoutService) rollback(account Account, amount decimal.Decimal, reduced []domain.CartLine) {
	for _, l := range reduced {
		l.Product.Restock(l.Quantity)
	}
	account.Credit(amount)
	s.logger.Warn("checkout rolled back after partial commit",
		slog.String("customer", account.DisplayName()),
		slog.String("refunded", amount.StringFixed(2)),
		slog.Int("restocked_lines", len(reduced)),
	)
}

// validate checks every line before anything is mutated. Each line is
// checked against current stock on its own.
func (s *CheckoutService) validate(lines []domain.CartLine) error {
	today := s.now()
	for _, l := range lines {
		p := l.Product
		if !p.IsAvailable(l.Quantity) {
			return apperrors.Unprocessable(CodeInsufficientStock, &domain.StockError{
				Kind:      domain.ErrInsufficientStock,
				Product:   p.Name,
				Requested: l.Quantity,
				Available: p.Quantity,
			})
		}
		if domain.IsExpired(p, today) {
			return apperrors.Unprocessable(CodeProductExpired, &domain.ExpiryError{
				Product:   p.Name,
				ExpiresOn: *p.ExpiresOn,
			})
		}
	}
	return nil
}

func (s *CheckoutService) price(cart *domain.Cart, lines []domain.CartLine) *quote {
	shippable := cart.ShippableLines()
	subtotal := cart.Subtotal()
	fee := s.policy.Fee(shippable)
	return &quote{
		lines:     lines,
		shippable: shippable,
		subtotal:  subtotal,
		fee:       fee,
		total:     subtotal.Add(fee),
	}
}

func receiptLines(lines []domain.CartLine) []domain.ReceiptLine {
	out := make([]domain.ReceiptLine, len(lines))
	for i, l := range lines {
		out[i] = domain.ReceiptLine{
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			LineTotal: l.Total(),
		}
	}
	return out
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrEmptyCart):
		return outcomeEmptyCart
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrOutOfStock):
		return outcomeInsufficientStock
	case errors.Is(err, domain.ErrExpired):
		return outcomeExpired
	case errors.Is(err, domain.ErrInsufficientBalance):
		return outcomeInsufficientBalance
	default:
		return outcomeError
	}
}

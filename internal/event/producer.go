package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storecheckout/internal/domain"
	pkgkafka "github.com/utafrali/storecheckout/pkg/kafka"
	"github.com/utafrali/storecheckout/pkg/logger"
)

// Kafka topic constants for checkout domain events.
const (
	TopicShipmentRequested = "ecommerce.shipment.requested"
	TopicCheckoutCompleted = "ecommerce.checkout.completed"
)

// Aggregate type constant.
const AggregateTypeCheckout = "checkout"

// Source identifier for events originating from the checkout engine.
const SourceCheckoutService = "checkout-service"

// Metadata keys set on every checkout event.
const (
	MetaCustomerID    = "customer_id"
	MetaItemCount     = "item_count"
	MetaTotalWeightKg = "total_weight_kg"
)

// ShipmentRequestedData is the payload for a shipment.requested event.
type ShipmentRequestedData struct {
	CheckoutID    string             `json:"checkout_id"`
	Items         []ShipmentItemData `json:"items"`
	TotalWeightKg decimal.Decimal    `json:"total_weight_kg"`
}

// ShipmentItemData is the event payload for one shipped line.
type ShipmentItemData struct {
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitWeightKg decimal.Decimal `json:"unit_weight_kg"`
}

// CheckoutCompletedData is the payload for a checkout.completed event.
type CheckoutCompletedData struct {
	CheckoutID       string            `json:"checkout_id"`
	Customer         string            `json:"customer"`
	Items            []ReceiptItemData `json:"items"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	ShippingFee      decimal.Decimal   `json:"shipping_fee"`
	Total            decimal.Decimal   `json:"total"`
	RemainingBalance decimal.Decimal   `json:"remaining_balance"`
}

// ReceiptItemData is the event payload for one receipt line.
type ReceiptItemData struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Producer publishes checkout domain events. It implements both checkout
// sinks.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the checkout engine.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// DispatchShipment publishes a shipment.requested event.
func (p *Producer) DispatchShipment(ctx context.Context, shipment *domain.Shipment) error {
	items := make([]ShipmentItemData, len(shipment.Lines))
	for i, l := range shipment.Lines {
		items[i] = ShipmentItemData{
			Name:         l.Name,
			Quantity:     l.Quantity,
			UnitWeightKg: l.UnitWeightKg,
		}
	}

	data := ShipmentRequestedData{
		CheckoutID:    shipment.CheckoutID,
		Items:         items,
		TotalWeightKg: shipment.TotalWeightKg,
	}

	err := p.publish(ctx, TopicShipmentRequested, shipment.CheckoutID, data,
		pkgkafka.Annotated(MetaItemCount, strconv.Itoa(shipment.ItemCount())),
		pkgkafka.Annotated(MetaTotalWeightKg, shipment.TotalWeightKg.String()),
	)
	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published shipment.requested event",
		slog.String("checkout_id", shipment.CheckoutID),
		slog.Int("items", len(items)),
	)
	return nil
}

// DeliverReceipt publishes a checkout.completed event with the receipt
// snapshot.
func (p *Producer) DeliverReceipt(ctx context.Context, receipt *domain.Receipt) error {
	items := make([]ReceiptItemData, len(receipt.Lines))
	for i, l := range receipt.Lines {
		items[i] = ReceiptItemData{
			Name:      l.Name,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal,
		}
	}

	data := CheckoutCompletedData{
		CheckoutID:       receipt.CheckoutID,
		Customer:         receipt.Customer,
		Items:            items,
		Subtotal:         receipt.Subtotal,
		ShippingFee:      receipt.ShippingFee,
		Total:            receipt.Total,
		RemainingBalance: receipt.RemainingBalance,
	}

	err := p.publish(ctx, TopicCheckoutCompleted, receipt.CheckoutID, data,
		pkgkafka.Annotated(MetaItemCount, strconv.Itoa(receipt.ItemCount())),
	)
	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published checkout.completed event",
		slog.String("checkout_id", receipt.CheckoutID),
		slog.String("total", receipt.Total.StringFixed(2)),
	)
	return nil
}

// publish wraps data in an envelope carrying the correlation and customer IDs
// from ctx plus any extra annotations.
func (p *Producer) publish(ctx context.Context, topic, checkoutID string, data any, opts ...pkgkafka.EventOption) error {
	opts = append(opts,
		pkgkafka.Correlated(logger.CorrelationIDFromContext(ctx)),
		pkgkafka.Annotated(MetaCustomerID, logger.CustomerIDFromContext(ctx)),
	)
	event, err := pkgkafka.NewEvent(topic, checkoutID, AggregateTypeCheckout, SourceCheckoutService, data, opts...)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

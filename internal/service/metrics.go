package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcome label values.
const (
	outcomeSuccess             = "success"
	outcomeEmptyCart           = "empty_cart"
	outcomeInsufficientStock   = "insufficient_stock"
	outcomeExpired             = "expired"
	outcomeInsufficientBalance = "insufficient_balance"
	outcomeError               = "error"
)

// Metrics holds the checkout engine collectors.
type Metrics struct {
	Checkouts    *prometheus.CounterVec
	Revenue      prometheus.Counter
	ShippingFees prometheus.Counter
	Duration     prometheus.Histogram
	SinkFailures *prometheus.CounterVec
}

// NewMetrics registers the checkout collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Checkouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_total",
				Help: "Total number of checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		Revenue: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_revenue_total",
				Help: "Sum of amounts charged by committed checkouts",
			},
		),
		ShippingFees: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_shipping_fees_total",
				Help: "Sum of shipping fees charged by committed checkouts",
			},
		),
		Duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "checkout_duration_seconds",
				Help:    "Checkout duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SinkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_sink_failures_total",
				Help: "Receipt and shipment deliveries that failed after commit",
			},
			[]string{"sink"},
		),
	}
}

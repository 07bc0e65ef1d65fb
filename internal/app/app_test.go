package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storecheckout/internal/catalog"
	"github.com/utafrali/storecheckout/internal/config"
	"github.com/utafrali/storecheckout/internal/domain"
	"github.com/utafrali/storecheckout/internal/render"
	"github.com/utafrali/storecheckout/internal/service"
	pkgconfig "github.com/utafrali/storecheckout/pkg/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func newTestDemo(t *testing.T, out io.Writer) *Demo {
	t.Helper()
	inventory, err := catalog.Demo(fixedNow())
	require.NoError(t, err)

	printer := render.NewPrinter(out)
	svc := service.NewCheckoutService(domain.DefaultShippingPolicy(), newTestLogger(),
		service.WithShipmentSink(printer),
		service.WithReceiptSink(printer),
		service.WithClock(fixedNow),
		service.WithMetrics(service.NewMetrics(prometheus.NewRegistry())),
	)
	return NewDemo(svc, inventory, out, fixedNow)
}

func TestDemo_Run(t *testing.T) {
	var out bytes.Buffer
	demo := newTestDemo(t, &out)

	require.NoError(t, demo.Run(context.Background()))

	text := out.String()
	for _, want := range []string{
		"=== Demo 1: Successful Checkout ===",
		"Customer: Mohamed Hesham (Balance: $2000.00)",
		"- 2x Cheddar Cheese ($200.00)",
		"Subtotal: $1125.00",
		"** Shipment notice **\n2x Cheddar Cheese 200g\n1x Oreo Biscuits 350g\n1x Samsung Smart TV 15000g\nTotal package weight 15.8kg\n",
		"** Checkout receipt **\n",
		"Subtotal 1125\nShipping 399\nAmount 1524\nCustomer balance after payment: $476.25\n",
		"Updated Customer: Mohamed Hesham (Balance: $476.25)",
		"Expected error: cart is empty",
		"Expected error: insufficient balance: required 1180.00, available 100.00",
		"Expected error: product Cheddar Cheese has only 50 available",
		"Cart contents: 3 items",
		"Error: insufficient balance: required 1250.00, available 476.25",
		"Total cheese in cart: 3 units",
		"Expected error: product Expired Cheese is expired (expired on 2026-03-09)",
	} {
		assert.Contains(t, text, want)
	}
}

func TestDemo_StockCarriesAcrossSessions(t *testing.T) {
	demo := newTestDemo(t, io.Discard)

	require.NoError(t, demo.Run(context.Background()))

	tv, err := demo.catalog.ByName(catalog.DemoTV)
	require.NoError(t, err)
	assert.Equal(t, 4, tv.Quantity)

	cheese, err := demo.catalog.ByName(catalog.DemoCheese)
	require.NoError(t, err)
	assert.Equal(t, 8, cheese.Quantity)

	gift, err := demo.catalog.ByName("Google Play Card")
	require.NoError(t, err)
	assert.Equal(t, 10, gift.Quantity)
}

func newTestApp(t *testing.T, out io.Writer) *App {
	t.Helper()
	cfg, err := config.Load(pkgconfig.WithEnvironment(map[string]string{}))
	require.NoError(t, err)

	a, err := NewApp(cfg, newTestLogger(), out)
	require.NoError(t, err)
	return a
}

func TestApp_RunWithoutOpsServer(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(t, &out)

	require.NoError(t, a.Run(context.Background()))

	assert.Nil(t, a.opsServer)
	assert.Contains(t, out.String(), "Checkout completed successfully!")
	assert.Contains(t, out.String(), "=== Demo 4: Product Expiration ===")
}

func TestApp_OpsRouter(t *testing.T) {
	a := newTestApp(t, io.Discard)
	require.NoError(t, a.Run(context.Background()))
	router := a.opsRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"catalog"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkout_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `checkout_total{outcome="empty_cart"} 1`)
}

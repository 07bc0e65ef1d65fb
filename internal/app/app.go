package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storecheckout/internal/catalog"
	"github.com/utafrali/storecheckout/internal/config"
	"github.com/utafrali/storecheckout/internal/event"
	"github.com/utafrali/storecheckout/internal/render"
	"github.com/utafrali/storecheckout/internal/service"
	"github.com/utafrali/storecheckout/pkg/health"
	pkgkafka "github.com/utafrali/storecheckout/pkg/kafka"
	"github.com/utafrali/storecheckout/pkg/middleware"
	"github.com/utafrali/storecheckout/pkg/tracing"
)

// App wires together all dependencies and runs the checkout demo.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	registry       *prometheus.Registry
	catalog        *catalog.Catalog
	checkout       *service.CheckoutService
	health         *health.Handler
	producer       *pkgkafka.Producer
	opsServer      *http.Server
	out            io.Writer
	now            func() time.Time
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance. Documents are printed to out.
func NewApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "checkout-demo",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	now := time.Now
	inventory, err := catalog.Demo(now())
	if err != nil {
		return nil, fmt.Errorf("build demo catalog: %w", err)
	}
	logger.Info("demo catalog loaded", slog.Int("products", inventory.Len()))

	registry := prometheus.NewRegistry()
	printer := render.NewPrinter(out)
	opts := []service.Option{
		service.WithMetrics(service.NewMetrics(registry)),
		service.WithShipmentSink(printer),
		service.WithReceiptSink(printer),
		service.WithClock(now),
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("catalog", func(context.Context) error {
		if inventory.Len() == 0 {
			return errors.New("catalog is empty")
		}
		return nil
	})

	// Initialize the Kafka event sink behind a circuit breaker.
	var producer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		breaker := pkgkafka.NewBreakerPublisher(producer, pkgkafka.BreakerConfig{
			Name:         "checkout-events",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     cfg.BreakerInterval(),
			Timeout:      cfg.BreakerTimeout(),
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}, logger)
		eventProducer := event.NewProducer(breaker, logger)
		opts = append(opts,
			service.WithShipmentSink(eventProducer),
			service.WithReceiptSink(eventProducer),
		)
		healthHandler.Register("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	checkoutService := service.NewCheckoutService(cfg.ShippingPolicy(), logger, opts...)

	a := &App{
		cfg:            cfg,
		logger:         logger,
		registry:       registry,
		catalog:        inventory,
		checkout:       checkoutService,
		health:         healthHandler,
		producer:       producer,
		out:            out,
		now:            now,
		tracerShutdown: tracerShutdown,
	}

	if cfg.OpsHTTPPort > 0 {
		a.opsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.OpsHTTPPort),
			Handler:           a.opsRouter(),
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return a, nil
}

// opsRouter serves metrics and health probes.
func (a *App) opsRouter() http.Handler {
	httpMetrics := middleware.NewHTTPMetrics(a.registry)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(a.logger))
	r.Use(httpMetrics.Middleware)

	r.Get("/health/live", a.health.LivenessHandler())
	r.Get("/health/ready", a.health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{a.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	))
	return r
}

// Run plays the demonstration scenarios. With the ops server enabled it
// then keeps serving until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.opsServer != nil {
		go func() {
			a.logger.Info("starting ops HTTP server",
				slog.String("addr", a.opsServer.Addr),
			)
			if err := a.opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("ops http server: %w", err)
			}
		}()
	}

	if resp := a.health.Check(ctx); resp.Status != health.StatusUp {
		a.logger.Warn("dependencies not ready", slog.Any("checks", resp.Checks))
	}

	demo := NewDemo(a.checkout, a.catalog, a.out, a.now)
	if err := demo.Run(ctx); err != nil {
		_ = a.Shutdown()
		return fmt.Errorf("run demo: %w", err)
	}

	if a.opsServer != nil {
		select {
		case <-ctx.Done():
			a.logger.Info("shutdown signal received")
		case err := <-errCh:
			_ = a.Shutdown()
			return err
		}
	}

	return a.Shutdown()
}

// Shutdown stops all components in order:
// 1. Ops HTTP server
// 2. Tracer (flush pending spans)
// 3. Kafka producer
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.opsServer != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer httpCancel()
		if err := a.opsServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("ops http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

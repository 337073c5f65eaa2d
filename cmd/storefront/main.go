package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("storefront stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger.Named("migrate")); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// --- catalog ---
	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the catalog still works from Postgres, just uncached
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cache = catalog.NewRedisCache(rdb, cfg.CatalogCacheTTL)
	}
	catalogRepo := catalog.NewPostgresRepository(sqlDB)
	catalogSvc := catalog.NewService(catalogRepo, cache, logger.Named("catalog"))

	// --- cart + orders ---
	carts := cart.NewPostgresRepository(pool, cfg.MaxLineQuantity)
	orders := order.NewPostgresRepository(pool)
	reconciler := cart.NewReconciler(carts, catalogSvc, logger.Named("cart"))

	calc := pricing.NewCalculator(pricing.Config{
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShippingFee:       cfg.Pricing.FlatShippingFee,
		TaxRate:               cfg.Pricing.TaxRate,
	})

	// --- AMQP ---
	var (
		conn      *amqp.Connection
		orderPubs checkout.OrderEvents
	)
	if cfg.RabbitURL != "" {
		conn, err = amqp.Dial(cfg.RabbitURL)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer conn.Close()

		publisher, err := events.NewPublisher(conn, events.NewSequenceRepository(pool), events.PublisherOptions{
			PublishEnveloped: cfg.PublishEnveloped,
		})
		if err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		defer publisher.Close()
		orderPubs = publisher
	} else {
		logger.Info("RABBITMQ_URL not set, order events disabled")
	}

	svc := checkout.NewService(checkout.Deps{
		Store:   checkout.NewPostgresStore(pool, carts, orders),
		Orders:  orders,
		Carts:   carts,
		Catalog: catalogSvc,
		Live:    catalogRepo,
		Pricing: calc,
		Events:  orderPubs,
		Logger:  logger.Named("checkout"),
	})

	if conn != nil {
		eventsLogger := logger.Named("events")
		handler := events.OrderStatusHandler(pool, events.NewDedupRepository(pool), svc, eventsLogger)
		consumer, err := events.StartStatusConsumer(ctx, conn, handler, eventsLogger)
		if err != nil {
			return fmt.Errorf("start status consumer: %w", err)
		}
		defer func() { _ = consumer.Close() }()
	}

	// --- HTTP ---
	router := httpapi.NewRouter(httpapi.Deps{
		Cart:             reconciler,
		Orders:           svc,
		Catalog:          catalogSvc,
		Ping:             pool.Ping,
		Logger:           logger.Named("http"),
		RequestTimeout:   cfg.RequestTimeout,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		AdminToken:       cfg.AdminToken,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "storefront"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("http server failed", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Info("shutdown complete")
	return runErr
}

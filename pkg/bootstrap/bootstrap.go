// Package bootstrap wires configuration, clients and services for the Lambda
// entry points.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/pkg/cache"
	"gitlab.connectwisedev.com/backoffice-service/pkg/cart"
	"gitlab.connectwisedev.com/backoffice-service/pkg/catalog"
	"gitlab.connectwisedev.com/backoffice-service/pkg/clock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/config"
	"gitlab.connectwisedev.com/backoffice-service/pkg/database"
	"gitlab.connectwisedev.com/backoffice-service/pkg/event"
	"gitlab.connectwisedev.com/backoffice-service/pkg/logging"
	"gitlab.connectwisedev.com/backoffice-service/pkg/order"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
	"gitlab.connectwisedev.com/backoffice-service/pkg/report"
	"gitlab.connectwisedev.com/backoffice-service/pkg/stock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/storage/postgres"
	"gitlab.connectwisedev.com/backoffice-service/pkg/telemetry"
)

// App holds the services one Lambda process shares across invocations.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Clock  clock.Clock

	Catalog *catalog.Service
	Ledger  *stock.Ledger
	Carts   *cart.Service
	Orders  *order.Coordinator
	Events  *event.Manager
	Reports *report.Aggregator

	db       *database.DBClient
	redis    *cache.RedisClient
	shutdown telemetry.Shutdown
}

// New builds the application for the named service. Redis is optional; without
// REDIS_ADDR the product listing reads straight from Postgres.
func New(serviceName string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("service", serviceName))

	shutdown, err := telemetry.Setup(serviceName, cfg.TracingEnabled)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, Clock: clock.NewSystem(), shutdown: shutdown}

	app.db, err = database.NewPostgresClient(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.Migrate(ctx, app.db.GetDB()); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	var productCache *cache.ProductCache
	if cfg.Redis.Addr != "" {
		app.redis, err = cache.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		productCache = cache.NewProductCache(app.redis.GetClient(), cfg.ProductCacheTTL, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, product cache disabled")
	}

	store := postgres.New(app.db.GetDB())
	engine := pack.NewEngine()

	catalogOpts := []catalog.Option{catalog.WithLogger(logger)}
	ledgerOpts := []stock.Option{stock.WithLogger(logger)}
	if productCache != nil {
		catalogOpts = append(catalogOpts, catalog.WithCache(productCache))
		ledgerOpts = append(ledgerOpts, stock.WithCache(productCache))
	}

	app.Catalog = catalog.NewService(store, engine, catalogOpts...)
	app.Ledger = stock.NewLedger(store, engine, ledgerOpts...)
	app.Carts = cart.NewService(store, engine, cart.WithLogger(logger))
	app.Orders = order.NewCoordinator(store, app.Ledger, engine, order.WithLogger(logger))
	app.Events = event.NewManager(store, app.Ledger, event.WithLogger(logger))
	app.Reports = report.NewAggregator(store, report.WithTopProducts(cfg.TopProducts), report.WithLogger(logger))
	return app, nil
}

// Close flushes traces and releases the database and Redis connections.
func (a *App) Close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.Logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.Logger.Sync()
}

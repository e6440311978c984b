package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	_ "github.com/jeovahfialho/trading-backend/docs"
	"github.com/jeovahfialho/trading-backend/internal/api"
	"github.com/jeovahfialho/trading-backend/internal/bootstrap"
	"github.com/jeovahfialho/trading-backend/internal/config"
	"github.com/jeovahfialho/trading-backend/internal/ingestion"
	"github.com/jeovahfialho/trading-backend/internal/service"
	pkglogger "github.com/jeovahfialho/trading-backend/pkg/logger"
)

// @title Trading Backend API
// @version 1.0
// @description Paper trading engine: market orders, portfolios, quotes and price history.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.Development()); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer pkglogger.Close()

	ctx := context.Background()

	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		pkglogger.Fatal("failed to open storage", zap.Error(err))
	}
	defer stores.Close()

	checks := map[string]api.HealthCheck{}
	for name, check := range stores.Checks {
		checks[name] = check
	}

	// A nil *RedisCache must not reach the services as a non-nil interface.
	var quoteCache service.QuoteCache
	var invalidator api.CacheInvalidator
	if redisCache := bootstrap.ConnectCache(cfg); redisCache != nil {
		defer redisCache.Close()
		quoteCache = redisCache
		invalidator = redisCache
		checks["redis"] = redisCache.HealthCheck
	}

	// Services
	userService := service.NewUserService(stores.Users)
	quoteService := service.NewQuoteService(stores.Catalog, quoteCache, cfg.QuoteCacheTTL)
	tradeService := service.NewTradeService(stores.UnitOfWork, stores.Ledger, stores.Users, stores.Catalog)
	portfolioService := service.NewPortfolioService(stores.Positions, quoteService)
	historyService := service.NewHistoryService(quoteService)

	// Catalog seed
	if cfg.SeedCatalog {
		parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
		loader := ingestion.NewCatalogLoader(stores.Catalog, cfg.BatchSize)
		ingestionService := service.NewIngestionService(parser, loader, tradeService, cfg.Workers)
		if _, err := ingestionService.SeedDefaults(ctx); err != nil {
			pkglogger.Fatal("failed to seed catalog", zap.Error(err))
		}
	}

	var poolStats api.PoolStats
	if stores.DB != nil {
		poolStats = stores.DB
	}

	handler := api.NewHandler(
		userService,
		tradeService,
		portfolioService,
		quoteService,
		historyService,
		invalidator,
		poolStats,
		checks,
	)

	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Trading-Backend",
		AppName:                 "Trading Backend v1.0.0",
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	api.SetupRoutes(app, handler, api.RouteOptions{
		RateLimitMax:   cfg.RateLimitMax,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			pkglogger.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("starting server",
		zap.String("addr", addr),
		zap.String("storage", cfg.StorageDriver))

	if err := app.Listen(addr); err != nil {
		pkglogger.Fatal("server error", zap.Error(err))
	}
}

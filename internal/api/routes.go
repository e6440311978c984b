package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteOptions struct {
	RateLimitMax   int
	MetricsEnabled bool
}

func SetupRoutes(app *fiber.App, handler *Handler, opts RouteOptions) {
	// Global middlewares
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks and docs are not rate limited
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	if opts.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	if opts.RateLimitMax > 0 {
		v1.Use(RateLimiter(opts.RateLimitMax))
	}
	v1.Use(PrometheusMiddleware())

	users := v1.Group("/users")
	users.Post("/register", handler.RegisterUser)
	users.Get("/", handler.ListUsers)
	users.Get("/username/:username", handler.GetUserByUsername)
	users.Get("/:userId", handler.GetUser)
	users.Delete("/:userId", handler.DeleteUser)

	trading := v1.Group("/trading")
	trading.Post("/buy", handler.Buy)
	trading.Post("/sell", handler.Sell)
	trading.Get("/transactions/:userId", handler.GetTransactions)
	trading.Get("/portfolio/:userId", handler.GetPortfolio)
	trading.Get("/feed", handler.GetFeed)

	stocks := v1.Group("/stocks")
	stocks.Get("/quote/:symbol", handler.GetQuote)
	stocks.Get("/all", handler.ListStocks)
	stocks.Get("/history/:symbol/:timeframe", handler.GetHistory)

	admin := v1.Group("/admin")
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
	admin.Get("/stats", handler.GetSystemStats)
}

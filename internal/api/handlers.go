package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/internal/service"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"go.uber.org/zap"
)

const version = "1.0.0"

// HealthCheck pings one dependency for the readiness endpoint.
type HealthCheck = func(ctx context.Context) error

type CacheInvalidator interface {
	DeletePattern(ctx context.Context, pattern string) error
}

// PoolStats is satisfied by the postgres DB.
type PoolStats interface {
	Stats() *pgxpool.Stat
}

type Handler struct {
	userService      *service.UserService
	tradeService     *service.TradeService
	portfolioService *service.PortfolioService
	quoteService     *service.QuoteService
	historyService   *service.HistoryService
	cache            CacheInvalidator
	db               PoolStats
	checks           map[string]HealthCheck
}

// NewHandler accepts a nil cache, in which case the cache admin route reports
// 503, and a nil db when trades are kept in memory.
func NewHandler(
	userService *service.UserService,
	tradeService *service.TradeService,
	portfolioService *service.PortfolioService,
	quoteService *service.QuoteService,
	historyService *service.HistoryService,
	cache CacheInvalidator,
	db PoolStats,
	checks map[string]HealthCheck,
) *Handler {
	return &Handler{
		userService:      userService,
		tradeService:     tradeService,
		portfolioService: portfolioService,
		quoteService:     quoteService,
		historyService:   historyService,
		cache:            cache,
		db:               db,
		checks:           checks,
	}
}

// Buy godoc
// @Summary Buy stock
// @Tags trading
// @Accept json
// @Produce json
// @Param request body TradeRequest true "trade"
// @Success 200 {object} TradeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /trading/buy [post]
func (h *Handler) Buy(c *fiber.Ctx) error {
	return h.trade(c, domain.SideBuy)
}

// Sell godoc
// @Summary Sell stock
// @Tags trading
// @Accept json
// @Produce json
// @Param request body TradeRequest true "trade"
// @Success 200 {object} TradeResponse
// @Failure 409 {object} ErrorResponse
// @Router /trading/sell [post]
func (h *Handler) Sell(c *fiber.Ctx) error {
	return h.trade(c, domain.SideSell)
}

func (h *Handler) trade(c *fiber.Ctx, side domain.Side) error {
	var req TradeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return badRequest(c, "symbol is required")
	}

	ctx := c.UserContext()

	var confirmation *domain.Confirmation
	var err error
	if side == domain.SideBuy {
		confirmation, err = h.tradeService.Buy(ctx, req.UserID, req.Symbol, req.Quantity)
	} else {
		confirmation, err = h.tradeService.Sell(ctx, req.UserID, req.Symbol, req.Quantity)
	}
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(TradeResponse{
		Message: confirmation.Message,
		Trade:   confirmation.Trade,
	})
}

// GetTransactions godoc
// @Summary Get transaction history
// @Tags trading
// @Produce json
// @Param userId path int true "user id"
// @Success 200 {array} string
// @Router /trading/transactions/{userId} [get]
func (h *Handler) GetTransactions(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	lines, err := h.tradeService.GetTransactions(c.UserContext(), userID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(lines)
}

// GetPortfolio godoc
// @Summary Get user portfolio
// @Tags trading
// @Produce json
// @Param userId path int true "user id"
// @Success 200 {object} PortfolioResponse
// @Router /trading/portfolio/{userId} [get]
func (h *Handler) GetPortfolio(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	entries, err := h.portfolioService.GetPortfolio(c.UserContext(), userID)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(PortfolioResponse{
		UserID:     userID,
		Positions:  entries,
		TotalValue: service.TotalValue(entries),
		Count:      len(entries),
	})
}

// GetFeed godoc
// @Summary Get live trade feed
// @Tags trading
// @Produce json
// @Success 200 {array} domain.FeedEntry
// @Router /trading/feed [get]
func (h *Handler) GetFeed(c *fiber.Ctx) error {
	feed, err := h.tradeService.GetRecentTransactions(c.UserContext())
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(feed)
}

// RegisterUser godoc
// @Summary Register a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body RegisterUserRequest true "user"
// @Success 201 {object} domain.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users/register [post]
func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req RegisterUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.userService.Register(c.UserContext(), req.Username)
	if err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {object} UsersResponse
// @Router /users [get]
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.userService.List(c.UserContext())
	if err != nil {
		return engineError(c, err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(UsersResponse{Users: users, Count: len(users)})
}

// GetUser godoc
// @Summary Get a user by id
// @Tags users
// @Produce json
// @Param userId path int true "user id"
// @Success 200 {object} domain.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId} [get]
func (h *Handler) GetUser(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	user, err := h.userService.Get(c.UserContext(), userID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(user)
}

// GetUserByUsername godoc
// @Summary Get a user by username
// @Tags users
// @Produce json
// @Param username path string true "username"
// @Success 200 {object} domain.User
// @Failure 404 {object} ErrorResponse
// @Router /users/username/{username} [get]
func (h *Handler) GetUserByUsername(c *fiber.Ctx) error {
	user, err := h.userService.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser godoc
// @Summary Delete a user
// @Description The user's trades stay in the ledger.
// @Tags users
// @Param userId path int true "user id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId} [delete]
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.userService.Delete(c.UserContext(), userID); err != nil {
		return engineError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetQuote godoc
// @Summary Get stock quote
// @Tags stocks
// @Produce json
// @Param symbol path string true "symbol"
// @Success 200 {object} domain.Quote
// @Router /stocks/quote/{symbol} [get]
func (h *Handler) GetQuote(c *fiber.Ctx) error {
	quote, err := h.quoteService.GetQuote(c.UserContext(), c.Params("symbol"))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(quote)
}

// ListStocks godoc
// @Summary Get all stocks
// @Tags stocks
// @Produce json
// @Success 200 {array} domain.Stock
// @Router /stocks/all [get]
func (h *Handler) ListStocks(c *fiber.Ctx) error {
	stocks, err := h.quoteService.ListStocks(c.UserContext())
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(stocks)
}

// GetHistory godoc
// @Summary Get stock history graph data
// @Tags stocks
// @Produce json
// @Param symbol path string true "symbol"
// @Param timeframe path string true "1D, 1W, 1M or 1Y"
// @Success 200 {object} HistoryResponse
// @Router /stocks/history/{symbol}/{timeframe} [get]
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	timeframe := domain.ParseTimeframe(c.Params("timeframe"))

	history, err := h.historyService.GenerateHistory(c.UserContext(), symbol, timeframe.Name)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(HistoryResponse{
		Symbol:    domain.NormalizeSymbol(symbol),
		Timeframe: timeframe.Name,
		History:   history,
		Count:     len(history),
	})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth, len(h.checks))
	status := "ready"

	for name, check := range h.checks {
		start := time.Now()
		if err := check(ctx); err != nil {
			services[name] = ServiceHealth{Status: "unhealthy", Error: err.Error()}
			status = "not_ready"
			continue
		}
		services[name] = ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
	}

	response := HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:     "cache is not configured",
			Code:      fiber.StatusServiceUnavailable,
			RequestID: getRequestID(c),
			Timestamp: time.Now(),
		})
	}

	pattern := c.Params("pattern", "*")
	if err := h.cache.DeletePattern(c.UserContext(), pattern); err != nil {
		logger.Error("failed to invalidate cache", zap.String("pattern", pattern), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:     "failed to invalidate cache",
			Code:      fiber.StatusInternalServerError,
			RequestID: getRequestID(c),
			Timestamp: time.Now(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("cache invalidated for pattern: %s", pattern),
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		API: APIStats{
			ActiveGoroutines: runtime.NumGoroutine(),
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
		},
	}

	if h.db != nil {
		dbStats := h.db.Stats()
		response.Database = &DatabaseStats{
			ActiveConnections: dbStats.AcquiredConns(),
			IdleConnections:   dbStats.IdleConns(),
			TotalConnections:  dbStats.TotalConns(),
			WaitCount:         dbStats.EmptyAcquireCount(),
			WaitDuration:      dbStats.AcquireDuration().String(),
		}
	}

	return c.JSON(response)
}

func userIDParam(c *fiber.Ctx) (int64, error) {
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", c.Params("userId"))
	}
	return userID, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:     message,
		Code:      fiber.StatusBadRequest,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

// engineError maps engine errors to status codes. Precondition failures keep
// their message; storage failures are logged and reported generically.
func engineError(c *fiber.Ctx, err error) error {
	kind := domain.ErrorKind(err)
	code := statusFor(err)

	message := err.Error()
	if code == fiber.StatusInternalServerError {
		logger.WithContext(c.UserContext()).Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		message = "internal error"
		if errors.Is(err, domain.ErrPersistence) {
			message = domain.ErrPersistence.Error()
		}
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		Kind:      kind,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

func statusFor(err error) int {
	switch domain.ErrorKind(err) {
	case domain.KindInvalidQuantity, domain.KindInvalidUsername:
		return fiber.StatusBadRequest
	case domain.KindUserNotFound, domain.KindSymbolNotFound:
		return fiber.StatusNotFound
	case domain.KindInsufficientShares, domain.KindUsernameTaken:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

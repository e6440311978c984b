package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"github.com/jeovahfialho/trading-backend/pkg/metrics"
	"go.uber.org/zap"
)

// QuoteCache is the subset of cache.RedisCache the quote lookups use.
type QuoteCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
}

// QuoteSource resolves symbols to quotes.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

type QuoteService struct {
	catalog  domain.StockCatalog
	cache    QuoteCache
	cacheTTL time.Duration
}

// NewQuoteService accepts a nil cache.
func NewQuoteService(catalog domain.StockCatalog, cache QuoteCache, cacheTTL time.Duration) *QuoteService {
	return &QuoteService{
		catalog:  catalog,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// GetQuote never reports unknown symbols as errors: they resolve to a zero
// quote carrying the normalized symbol. Errors are storage failures only.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	cacheKey := quoteCacheKey(symbol)

	var cached domain.Quote
	if s.getFromCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	stock, ok, err := s.catalog.FindBySymbol(ctx, symbol)
	if err != nil {
		return domain.Quote{}, domain.NewPersistenceError("find stock", err)
	}
	if !ok {
		return domain.ZeroQuote(symbol), nil
	}

	quote := stock.Quote()
	s.saveToCache(ctx, cacheKey, quote)

	return quote, nil
}

func (s *QuoteService) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	var cached []domain.Stock
	if s.getFromCache(ctx, stocksCacheKey, &cached) {
		return cached, nil
	}

	stocks, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("list stocks", err)
	}

	s.saveToCache(ctx, stocksCacheKey, stocks)
	return stocks, nil
}

const stocksCacheKey = "stocks:all"

func quoteCacheKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

func (s *QuoteService) getFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	if err := s.cache.Get(ctx, key, dest); err != nil {
		metrics.RecordCacheMiss()
		return false
	}

	metrics.RecordCacheHit()
	return true
}

func (s *QuoteService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	// A cache write failure never fails the lookup.
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

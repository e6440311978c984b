package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMiss = errors.New("miss")

// mapCache round-trips values through JSON like the Redis cache does.
type mapCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	ttls    map[string]time.Duration
	failSet bool
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return errMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error {
	if c.failSet {
		return errors.New("redis down")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	if len(ttl) > 0 {
		c.ttls[key] = ttl[0]
	}
	return nil
}

func testCatalog() *memory.Catalog {
	return memory.NewCatalog(
		domain.NewStock("AAA", "Triple A Corp", decimal.NewFromInt(50), decimal.NewFromInt(1)),
		domain.NewStock("BBB", "Double B Ltd", decimal.RequireFromString("12.5"), decimal.Zero),
	)
}

func TestGetQuote(t *testing.T) {
	svc := NewQuoteService(testCatalog(), nil, 0)

	q, err := svc.GetQuote(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA", q.Symbol)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(50)))
	assert.True(t, q.ChangeAmount.Equal(decimal.NewFromInt(1)))
}

func TestGetQuoteUnknownSymbolIsZero(t *testing.T) {
	cache := newMapCache()
	svc := NewQuoteService(testCatalog(), cache, time.Second)

	q, err := svc.GetQuote(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "NOPE", q.Symbol)
	assert.True(t, q.Price.IsZero())
	assert.True(t, q.ChangeAmount.IsZero())
	assert.NotContains(t, cache.values, "quote:NOPE", "zero quotes are not cached")
}

func TestGetQuoteUsesCache(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()
	cache := newMapCache()
	svc := NewQuoteService(catalog, cache, 5*time.Second)

	_, err := svc.GetQuote(ctx, "AAA")
	require.NoError(t, err)
	assert.Contains(t, cache.values, "quote:AAA")
	assert.Equal(t, 5*time.Second, cache.ttls["quote:AAA"])

	// The cached quote is served until it expires, even after a price change.
	_, err = catalog.Upsert(ctx, []domain.Stock{domain.NewStock("AAA", "Triple A Corp", decimal.NewFromInt(60), decimal.Zero)})
	require.NoError(t, err)

	q, err := svc.GetQuote(ctx, "AAA")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(50)))
}

func TestCacheWriteFailureIsIgnored(t *testing.T) {
	cache := newMapCache()
	cache.failSet = true
	svc := NewQuoteService(testCatalog(), cache, time.Second)

	q, err := svc.GetQuote(context.Background(), "BBB")
	require.NoError(t, err)
	assert.Equal(t, "12.5", q.Price.String())

	stocks, err := svc.ListStocks(context.Background())
	require.NoError(t, err)
	assert.Len(t, stocks, 2)
}

func TestListStocks(t *testing.T) {
	cache := newMapCache()
	svc := NewQuoteService(testCatalog(), cache, time.Second)

	stocks, err := svc.ListStocks(context.Background())
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "AAA", stocks[0].Symbol)
	assert.Contains(t, cache.values, "stocks:all")

	cached, err := svc.ListStocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stocks[1].Symbol, cached[1].Symbol)
	assert.True(t, stocks[1].CurrentPrice.Equal(cached[1].CurrentPrice))
}

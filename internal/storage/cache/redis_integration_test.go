//go:build integration

package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jeovahfialho/trading-backend/internal/config"
	"github.com/jeovahfialho/trading-backend/internal/domain"
)

func startRedis(t *testing.T, ctx context.Context) *RedisCache {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := NewRedisCache(&config.Config{
		RedisURL:      fmt.Sprintf("redis://%s:%s", host, port.Port()),
		QuoteCacheTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := startRedis(t, ctx)

	quote := domain.Quote{Symbol: "TCS", Price: decimal.RequireFromString("3789.20"), ChangeAmount: decimal.RequireFromString("2.89")}
	require.NoError(t, c.Set(ctx, "quote:TCS", quote))

	var got domain.Quote
	require.NoError(t, c.Get(ctx, "quote:TCS", &got))
	assert.Equal(t, "TCS", got.Symbol)
	assert.True(t, got.Price.Equal(quote.Price))

	err := c.Get(ctx, "quote:NOPE", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisCacheTTLAndPatterns(t *testing.T) {
	ctx := context.Background()
	c := startRedis(t, ctx)

	require.NoError(t, c.Set(ctx, "quote:AAA", 1, 50*time.Millisecond))
	require.NoError(t, c.Set(ctx, "quote:BBB", 2))
	require.NoError(t, c.Set(ctx, "stocks:all", []int{1, 2}))

	time.Sleep(100 * time.Millisecond)
	var v int
	assert.ErrorIs(t, c.Get(ctx, "quote:AAA", &v), ErrCacheMiss)

	require.NoError(t, c.DeletePattern(ctx, "quote:*"))
	assert.ErrorIs(t, c.Get(ctx, "quote:BBB", &v), ErrCacheMiss)

	var all []int
	require.NoError(t, c.Get(ctx, "stocks:all", &all))
	assert.Equal(t, []int{1, 2}, all)

	require.NoError(t, c.Delete(ctx, "stocks:all"))
	assert.ErrorIs(t, c.Get(ctx, "stocks:all", &all), ErrCacheMiss)
	assert.NoError(t, c.HealthCheck(ctx))
}

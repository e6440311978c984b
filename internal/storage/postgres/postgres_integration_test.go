//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jeovahfialho/trading-backend/internal/config"
	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/internal/service"
)

func startPostgres(t *testing.T, ctx context.Context) *DB {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "trading",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres")
	t.Cleanup(func() {
		// the test context may already be cancelled
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &config.Config{
		DatabaseURL:         fmt.Sprintf("postgres://test:test@%s:%s/trading?sslmode=disable", host, port.Port()),
		DatabaseMaxConns:    10,
		DatabaseMinConns:    1,
		DatabaseMaxConnLife: time.Hour,
	}

	db, err := NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	// Migrate is idempotent.
	require.NoError(t, db.Migrate(ctx))

	return db
}

type env struct {
	db      *DB
	users   *UserStore
	catalog *Catalog
	ledger  *Ledger
	trades  *service.TradeService
	userID  int64
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db := startPostgres(t, ctx)

	users := NewUserStore(db)
	catalog := NewCatalog(db)
	ledger := NewLedger(db)

	user, err := users.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = catalog.Upsert(ctx, []domain.Stock{
		domain.NewStock("AAA", "Triple A Corp", decimal.NewFromInt(50), decimal.NewFromInt(1)),
		domain.NewStock("BBB", "Double B Ltd", decimal.RequireFromString("12.50"), decimal.Zero),
	})
	require.NoError(t, err)

	return &env{
		db:      db,
		users:   users,
		catalog: catalog,
		ledger:  ledger,
		trades:  service.NewTradeService(NewTxManager(db), ledger, users, catalog),
		userID:  user.ID,
	}
}

func TestTradeLifecycle(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	positions := NewPositionStore(e.db)

	_, err := e.trades.Buy(ctx, e.userID, "AAA", 10)
	require.NoError(t, err)
	_, err = e.trades.Sell(ctx, e.userID, "AAA", 4)
	require.NoError(t, err)

	p, held, err := positions.FindByUserIDAndSymbol(ctx, e.userID, "AAA")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, int64(6), p.Quantity)

	_, err = e.trades.Sell(ctx, e.userID, "AAA", 6)
	require.NoError(t, err)
	_, held, err = positions.FindByUserIDAndSymbol(ctx, e.userID, "AAA")
	require.NoError(t, err)
	assert.False(t, held)

	_, err = e.trades.Sell(ctx, e.userID, "AAA", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	trades, err := e.ledger.FindByUserID(ctx, e.userID)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, domain.SideBuy, trades[0].Side)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(50)))

	lines, err := e.trades.GetTransactions(ctx, e.userID)
	require.NoError(t, err)
	assert.Contains(t, lines[2], "SELL 6 AAA @ $50.00")
}

func TestConcurrentSellsNeverOversell(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.trades.Buy(ctx, e.userID, "BBB", 5)
	require.NoError(t, err)

	// Two services share nothing but the database, so only row locks
	// keep them from overselling.
	other := service.NewTradeService(NewTxManager(e.db), e.ledger, e.users, e.catalog)

	var wg sync.WaitGroup
	var sold atomic.Int64
	for i := 0; i < 12; i++ {
		svc := e.trades
		if i%2 == 1 {
			svc = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sell(ctx, e.userID, "BBB", 1)
			if err == nil {
				sold.Add(1)
				return
			}
			if !errors.Is(err, domain.ErrInsufficientShares) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), sold.Load())

	var sum int64
	trades, err := e.ledger.FindByUserID(ctx, e.userID)
	require.NoError(t, err)
	for _, tr := range trades {
		sum += tr.SignedQuantity()
	}
	assert.Zero(t, sum)
}

func TestConcurrentFirstBuysKeepEveryShare(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	positions := NewPositionStore(e.db)

	other := service.NewTradeService(NewTxManager(e.db), e.ledger, e.users, e.catalog)

	// No portfolio row exists yet, so there is nothing for FOR UPDATE to lock.
	var wg sync.WaitGroup
	var want int64
	for i := 0; i < 10; i++ {
		svc := e.trades
		if i%2 == 1 {
			svc = other
		}
		qty := int64(i + 1)
		want += qty
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Buy(ctx, e.userID, "BBB", qty); err != nil {
				t.Errorf("buy failed: %v", err)
			}
		}()
	}
	wg.Wait()

	p, held, err := positions.FindByUserIDAndSymbol(ctx, e.userID, "BBB")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, want, p.Quantity)

	trades, err := e.ledger.FindByUserID(ctx, e.userID)
	require.NoError(t, err)
	assert.Len(t, trades, 10)
}

func TestUserRegistry(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.users.Create(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	_, err = e.users.Create(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)

	bob, err := e.users.Create(ctx, "bob")
	require.NoError(t, err)

	got, ok, err := e.users.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bob.ID, got.ID)

	all, err := e.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, e.userID, all[0].ID)

	_, err = e.trades.Buy(ctx, bob.ID, "AAA", 2)
	require.NoError(t, err)

	removed, err := e.users.Delete(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = e.users.Delete(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err = e.users.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	feed, err := e.trades.GetRecentTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, service.UnknownUsername, feed[0].Username)
}

func TestLedgerIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.trades.Buy(ctx, e.userID, "AAA", 1)
	require.NoError(t, err)

	_, err = e.db.Pool().Exec(ctx, `UPDATE trade_transactions SET quantity = 99`)
	assert.Error(t, err)
	_, err = e.db.Pool().Exec(ctx, `DELETE FROM trade_transactions`)
	assert.Error(t, err)
}

func TestFeedAndUsers(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	bob, err := e.users.Create(ctx, "bob")
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		userID := e.userID
		if i%2 == 1 {
			userID = bob.ID
		}
		_, err := e.trades.Buy(ctx, userID, "AAA", int64(i+1))
		require.NoError(t, err)
	}

	feed, err := e.trades.GetRecentTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, feed, service.FeedSize)
	assert.Equal(t, int64(12), feed[0].Quantity)
	assert.Equal(t, "bob", feed[0].Username)

	_, ok, err := e.users.FindUsernameByID(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogUpsert(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	n, err := e.catalog.Upsert(ctx, []domain.Stock{
		domain.NewStock("AAA", "Triple A Corp", decimal.NewFromInt(55), decimal.NewFromInt(5)),
		domain.NewStock("CCC", "Triple C", decimal.NewFromInt(7), decimal.Zero),
		domain.NewStock("CCC", "Triple C", decimal.NewFromInt(8), decimal.Zero),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := e.catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	stock, ok, err := e.catalog.FindBySymbol(ctx, "aaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stock.CurrentPrice.Equal(decimal.NewFromInt(55)))

	ccc, ok, err := e.catalog.FindBySymbol(ctx, "CCC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ccc.CurrentPrice.Equal(decimal.NewFromInt(8)))

	all, err := e.catalog.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

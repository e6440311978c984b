package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(userID int64, symbol string, qty int64, side domain.Side, at time.Time) domain.Trade {
	return domain.Trade{
		UserID:    userID,
		Symbol:    symbol,
		Quantity:  qty,
		Price:     decimal.NewFromInt(50),
		Side:      side,
		Timestamp: at,
	}
}

func TestStoreCommitPublishesTradeAndPosition(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
		tr := trade(1, "AAA", 10, domain.SideBuy, now)
		require.NoError(t, tx.AppendTrade(ctx, &tr))
		assert.Equal(t, int64(1), tr.ID)

		// Staged writes are invisible outside the transaction.
		_, held, err := store.FindByUserIDAndSymbol(ctx, 1, "AAA")
		require.NoError(t, err)
		assert.False(t, held)

		return tx.SavePosition(ctx, domain.Position{UserID: 1, Symbol: "AAA", Quantity: 10})
	})
	require.NoError(t, err)

	p, held, err := store.FindByUserIDAndSymbol(ctx, 1, "AAA")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, int64(10), p.Quantity)
	assert.Equal(t, 1, store.Trades().Len())
}

func TestStoreRollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("boom")

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
		tr := trade(1, "AAA", 10, domain.SideBuy, time.Now())
		require.NoError(t, tx.AppendTrade(ctx, &tr))
		require.NoError(t, tx.SavePosition(ctx, domain.Position{UserID: 1, Symbol: "AAA", Quantity: 10}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, store.Trades().Len())
	positions, err := store.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestStoreCommitAfterCancelFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewStore()

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
		tr := trade(1, "AAA", 1, domain.SideBuy, time.Now())
		require.NoError(t, tx.AppendTrade(ctx, &tr))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 0, store.Trades().Len())
}

func TestStagedDeleteHidesPosition(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
		return tx.SavePosition(ctx, domain.Position{UserID: 1, Symbol: "AAA", Quantity: 5})
	}))

	require.NoError(t, store.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
		require.NoError(t, tx.DeletePosition(ctx, 1, "AAA"))
		_, held, err := tx.FindPosition(ctx, 1, "AAA")
		require.NoError(t, err)
		assert.False(t, held)
		return nil
	}))

	_, held, err := store.FindByUserIDAndSymbol(ctx, 1, "AAA")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestTradesFindRecent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		require.NoError(t, store.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
			tr := trade(int64(i%3+1), "AAA", 1, domain.SideBuy, base.Add(time.Duration(i)*time.Minute))
			return tx.AppendTrade(ctx, &tr)
		}))
	}

	recent, err := store.Trades().FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, int64(12), recent[0].ID)
	assert.Equal(t, int64(3), recent[9].ID)

	mine, err := store.Trades().FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 4)
	for i := 1; i < len(mine); i++ {
		assert.True(t, mine[i-1].Before(mine[i]))
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()

	alice, err := users.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)

	_, err = users.Create(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	_, err = users.Create(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)

	exists, err := users.ExistsByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	name, ok, err := users.FindUsernameByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	_, ok, err = users.FindUsernameByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUsersLookupAndDelete(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()

	alice, err := users.Create(ctx, "alice")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob")
	require.NoError(t, err)

	got, ok, err := users.FindByUsername(ctx, " bob ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bob.ID, got.ID)

	all, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, alice.ID, all[0].ID)

	removed, err := users.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = users.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err = users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	carol, err := users.Create(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(3), carol.ID)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(domain.NewStock("bbb", "B", decimal.NewFromInt(2), decimal.Zero))

	n, err := catalog.Upsert(ctx, []domain.Stock{
		domain.NewStock("AAA", "A", decimal.NewFromInt(1), decimal.Zero),
		domain.NewStock("BBB", "B", decimal.NewFromInt(3), decimal.Zero),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	all, err := catalog.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAA", all[0].Symbol)
	assert.True(t, all[1].CurrentPrice.Equal(decimal.NewFromInt(3)))

	catalog.Remove("aaa")
	_, ok, err := catalog.FindBySymbol(ctx, "AAA")
	require.NoError(t, err)
	assert.False(t, ok)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"go.uber.org/zap"
)

var _ domain.UnitOfWork = (*TxManager)(nil)

// TxManager runs a trade's ledger append and position write in one
// database transaction.
type TxManager struct {
	db *DB
}

func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTransaction commits when fn returns nil. It rolls back when fn
// returns an error, when fn panics (the panic is re-raised), or when the
// commit itself fails.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.TradeTx) error) error {
	tx, err := m.db.pool.Begin(ctx)
	if err != nil {
		return domain.NewPersistenceError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(ctx, tx, nil)
			panic(p)
		}
	}()

	if err := fn(ctx, &tradeTx{tx: tx}); err != nil {
		rollback(ctx, tx, err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewPersistenceError("commit", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) {
	// the request context may already be done; rollback still has to reach the server
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error("failed to rollback transaction", zap.Error(err), zap.NamedError("cause", cause))
	}
}

type tradeTx struct {
	tx pgx.Tx
}

func (t *tradeTx) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	start := time.Now()
	err := t.tx.QueryRow(ctx, `
		INSERT INTO trade_transactions (user_id, symbol, quantity, price, side, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, trade.UserID, trade.Symbol, trade.Quantity, trade.Price, string(trade.Side), trade.Timestamp).Scan(&trade.ID)
	observe("append_trade", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// FindPosition holds the (user, symbol) key until the transaction ends. A
// row lock alone misses the first buy, when there is no row to lock yet, so
// the key is also taken as a transaction-scoped advisory lock.
func (t *tradeTx) FindPosition(ctx context.Context, userID int64, symbol string) (domain.Position, bool, error) {
	if err := t.lockKey(ctx, userID, symbol); err != nil {
		return domain.Position{}, false, err
	}

	start := time.Now()
	p := domain.Position{UserID: userID, Symbol: symbol}
	err := t.tx.QueryRow(ctx, `
		SELECT quantity FROM portfolio
		WHERE user_id = $1 AND symbol = $2
		FOR UPDATE
	`, userID, symbol).Scan(&p.Quantity)

	if errors.Is(err, pgx.ErrNoRows) {
		observe("find_position_for_update", start, nil)
		return domain.Position{}, false, nil
	}
	observe("find_position_for_update", start, err)
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("failed to select position: %w", err)
	}
	return p, true, nil
}

func (t *tradeTx) lockKey(ctx context.Context, userID int64, symbol string) error {
	start := time.Now()
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, positionLockKey(userID, symbol))
	observe("lock_position_key", start, err)
	if err != nil {
		return fmt.Errorf("failed to lock position key: %w", err)
	}
	return nil
}

func positionLockKey(userID int64, symbol string) string {
	return fmt.Sprintf("portfolio:%d:%s", userID, symbol)
}

func (t *tradeTx) SavePosition(ctx context.Context, position domain.Position) error {
	start := time.Now()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO portfolio (user_id, symbol, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, symbol) DO UPDATE SET quantity = EXCLUDED.quantity
	`, position.UserID, position.Symbol, position.Quantity)
	observe("save_position", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

func (t *tradeTx) DeletePosition(ctx context.Context, userID int64, symbol string) error {
	start := time.Now()
	_, err := t.tx.Exec(ctx, `DELETE FROM portfolio WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	observe("delete_position", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

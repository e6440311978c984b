package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jeovahfialho/trading-backend/internal/domain"
)

var (
	_ domain.Ledger        = (*Ledger)(nil)
	_ domain.PositionStore = (*PositionStore)(nil)
)

type Ledger struct {
	db *DB
}

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

const tradeColumns = `id, user_id, symbol, quantity, price, side, executed_at`

// FindByUserID returns trades in insertion order.
func (l *Ledger) FindByUserID(ctx context.Context, userID int64) ([]domain.Trade, error) {
	start := time.Now()
	rows, err := l.db.pool.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trade_transactions
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		observe("trades_by_user", start, err)
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}

	trades, err := scanTrades(rows)
	observe("trades_by_user", start, err)
	return trades, err
}

func (l *Ledger) FindRecent(ctx context.Context, limit int) ([]domain.Trade, error) {
	start := time.Now()
	rows, err := l.db.pool.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trade_transactions
		ORDER BY executed_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		observe("recent_trades", start, err)
		return nil, fmt.Errorf("failed to query recent trades: %w", err)
	}

	trades, err := scanTrades(rows)
	observe("recent_trades", start, err)
	return trades, err
}

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Quantity, &t.Price, &side, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		t.Timestamp = t.Timestamp.UTC()
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}

type PositionStore struct {
	db *DB
}

func NewPositionStore(db *DB) *PositionStore {
	return &PositionStore{db: db}
}

func (s *PositionStore) FindByUserID(ctx context.Context, userID int64) ([]domain.Position, error) {
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, `
		SELECT user_id, symbol, quantity
		FROM portfolio
		WHERE user_id = $1
		ORDER BY symbol
	`, userID)
	if err != nil {
		observe("positions_by_user", start, err)
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.UserID, &p.Symbol, &p.Quantity); err != nil {
			observe("positions_by_user", start, err)
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	err = rows.Err()
	observe("positions_by_user", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

func (s *PositionStore) FindByUserIDAndSymbol(ctx context.Context, userID int64, symbol string) (domain.Position, bool, error) {
	start := time.Now()
	p := domain.Position{UserID: userID, Symbol: symbol}
	err := s.db.pool.QueryRow(ctx, `
		SELECT quantity FROM portfolio WHERE user_id = $1 AND symbol = $2
	`, userID, symbol).Scan(&p.Quantity)

	if errors.Is(err, pgx.ErrNoRows) {
		observe("find_position", start, nil)
		return domain.Position{}, false, nil
	}
	observe("find_position", start, err)
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("failed to select position: %w", err)
	}
	return p, true, nil
}

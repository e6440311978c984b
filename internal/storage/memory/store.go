// Package memory holds in-process implementations of the storage ports. They back
// the memory storage driver and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jeovahfialho/trading-backend/internal/domain"
)

var (
	_ domain.PositionStore = (*Store)(nil)
	_ domain.UnitOfWork    = (*Store)(nil)
)

// Store keeps the ledger and the positions behind one lock so a commit
// publishes both at once.
type Store struct {
	mu        sync.RWMutex
	trades    []domain.Trade
	positions map[domain.PositionKey]domain.Position
	nextID    atomic.Int64
}

func NewStore() *Store {
	return &Store{
		positions: make(map[domain.PositionKey]domain.Position),
	}
}

func (s *Store) FindByUserID(ctx context.Context, userID int64) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]domain.Position, 0)
	for key, p := range s.positions {
		if key.UserID == userID {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

func (s *Store) FindByUserIDAndSymbol(ctx context.Context, userID int64, symbol string) (domain.Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[domain.PositionKey{UserID: userID, Symbol: symbol}]
	return p, ok, nil
}

// Trades is the ledger view. It is its own type because Ledger and
// PositionStore share method names.
func (s *Store) Trades() *Trades {
	return &Trades{store: s}
}

type Trades struct {
	store *Store
}

var _ domain.Ledger = (*Trades)(nil)

func (t *Trades) FindByUserID(ctx context.Context, userID int64) ([]domain.Trade, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	trades := make([]domain.Trade, 0)
	for _, trade := range t.store.trades {
		if trade.UserID == userID {
			trades = append(trades, trade)
		}
	}
	return trades, nil
}

func (t *Trades) FindRecent(ctx context.Context, limit int) ([]domain.Trade, error) {
	t.store.mu.RLock()
	trades := make([]domain.Trade, len(t.store.trades))
	copy(trades, t.store.trades)
	t.store.mu.RUnlock()

	sort.Slice(trades, func(i, j int) bool {
		return trades[j].Before(trades[i])
	})
	if limit >= 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

// Len is the number of committed trades.
func (t *Trades) Len() int {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return len(t.store.trades)
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.TradeTx) error) error {
	tx := &stagedTx{
		store:     s,
		positions: make(map[domain.PositionKey]stagedPosition),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("commit", err)
	}

	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *stagedTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, tx.trades...)
	for key, staged := range tx.positions {
		if staged.deleted {
			delete(s.positions, key)
			continue
		}
		s.positions[key] = staged.position
	}
}

type stagedPosition struct {
	position domain.Position
	deleted  bool
}

type stagedTx struct {
	store     *Store
	trades    []domain.Trade
	positions map[domain.PositionKey]stagedPosition
}

// IDs are reserved on append, so a rolled back trade leaves a gap like a
// database sequence would.
func (tx *stagedTx) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	trade.ID = tx.store.nextID.Add(1)
	tx.trades = append(tx.trades, *trade)
	return nil
}

func (tx *stagedTx) FindPosition(ctx context.Context, userID int64, symbol string) (domain.Position, bool, error) {
	key := domain.PositionKey{UserID: userID, Symbol: symbol}
	if staged, ok := tx.positions[key]; ok {
		if staged.deleted {
			return domain.Position{}, false, nil
		}
		return staged.position, true, nil
	}
	return tx.store.FindByUserIDAndSymbol(ctx, userID, symbol)
}

func (tx *stagedTx) SavePosition(ctx context.Context, position domain.Position) error {
	tx.positions[position.Key()] = stagedPosition{position: position}
	return nil
}

func (tx *stagedTx) DeletePosition(ctx context.Context, userID int64, symbol string) error {
	tx.positions[domain.PositionKey{UserID: userID, Symbol: symbol}] = stagedPosition{deleted: true}
	return nil
}

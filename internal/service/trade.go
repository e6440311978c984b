package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"github.com/jeovahfialho/trading-backend/pkg/metrics"
	"go.uber.org/zap"
)

// FeedSize is how many trades the recent feed returns.
const FeedSize = 10

// UnknownUsername is shown in the feed when the trader's record is gone.
const UnknownUsername = "Unknown User"

// TransactionTimeLayout formats ledger timestamps in transaction lines.
const TransactionTimeLayout = time.RFC3339

// TradeService executes buy and sell orders. It is the only writer of the
// ledger and the positions.
type TradeService struct {
	uow     domain.UnitOfWork
	ledger  domain.Ledger
	users   domain.UserStore
	catalog domain.StockCatalog
	locks   *KeyedMutex
	now     func() time.Time
}

type TradeOption func(*TradeService)

func WithClock(now func() time.Time) TradeOption {
	return func(s *TradeService) {
		s.now = now
	}
}

func NewTradeService(
	uow domain.UnitOfWork,
	ledger domain.Ledger,
	users domain.UserStore,
	catalog domain.StockCatalog,
	opts ...TradeOption,
) *TradeService {
	s := &TradeService{
		uow:     uow,
		ledger:  ledger,
		users:   users,
		catalog: catalog,
		locks:   NewKeyedMutex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TradeService) Buy(ctx context.Context, userID int64, symbol string, quantity int64) (*domain.Confirmation, error) {
	return s.execute(ctx, domain.SideBuy, userID, symbol, quantity)
}

func (s *TradeService) Sell(ctx context.Context, userID int64, symbol string, quantity int64) (*domain.Confirmation, error) {
	return s.execute(ctx, domain.SideSell, userID, symbol, quantity)
}

// Execute dispatches on side. Used by order replay.
func (s *TradeService) Execute(ctx context.Context, side domain.Side, userID int64, symbol string, quantity int64) (*domain.Confirmation, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("invalid trade side %q", side)
	}
	return s.execute(ctx, side, userID, symbol, quantity)
}

func (s *TradeService) execute(ctx context.Context, side domain.Side, userID int64, symbol string, quantity int64) (*domain.Confirmation, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradeExecutionDuration.WithLabelValues(string(side)))

	symbol = domain.NormalizeSymbol(symbol)
	log := logger.WithContext(ctx).With(
		zap.String("side", string(side)),
		zap.Int64("user_id", userID),
		zap.String("symbol", symbol),
		zap.Int64("quantity", quantity))

	confirmation, err := s.executeLocked(ctx, side, userID, symbol, quantity)
	if err != nil {
		kind := domain.ErrorKind(err)
		metrics.RecordTrade(string(side), kind, quantity)

		if kind == domain.KindPersistenceFailure {
			log.Error("trade rolled back", zap.Error(err))
		} else {
			log.Info("trade rejected", zap.String("reason", kind))
		}
		return nil, err
	}

	metrics.RecordTrade(string(side), "success", quantity)
	log.Info("trade executed",
		zap.Int64("trade_id", confirmation.Trade.ID),
		zap.String("price", confirmation.Trade.Price.String()))

	return confirmation, nil
}

func (s *TradeService) executeLocked(ctx context.Context, side domain.Side, userID int64, symbol string, quantity int64) (*domain.Confirmation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	exists, err := s.users.ExistsByID(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("find user", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", domain.ErrUserNotFound, userID)
	}

	unlock := s.locks.Lock(domain.PositionKey{UserID: userID, Symbol: symbol})
	defer unlock()

	stock, ok, err := s.catalog.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, domain.NewPersistenceError("find stock", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}

	trade := domain.Trade{
		UserID:    userID,
		Symbol:    stock.Symbol,
		Quantity:  quantity,
		Price:     stock.CurrentPrice,
		Side:      side,
		Timestamp: s.now().UTC(),
	}

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, tx domain.TradeTx) error {
		current, held, err := tx.FindPosition(ctx, userID, trade.Symbol)
		if err != nil {
			return domain.NewPersistenceError("find position", err)
		}

		next, err := domain.NextPosition(current, held, trade)
		if err != nil {
			return err
		}

		if err := tx.AppendTrade(ctx, &trade); err != nil {
			return domain.NewPersistenceError("append trade", err)
		}

		if next.Quantity == 0 {
			if err := tx.DeletePosition(ctx, userID, trade.Symbol); err != nil {
				return domain.NewPersistenceError("delete position", err)
			}
			return nil
		}

		if err := tx.SavePosition(ctx, next); err != nil {
			return domain.NewPersistenceError("save position", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientShares) {
			return nil, err
		}
		return nil, domain.NewPersistenceError("commit trade", err)
	}

	return &domain.Confirmation{
		Message: confirmationMessage(trade),
		Trade:   trade,
	}, nil
}

func confirmationMessage(trade domain.Trade) string {
	verb := "bought"
	if trade.Side == domain.SideSell {
		verb = "sold"
	}
	return fmt.Sprintf("Successfully %s %d shares of %s", verb, trade.Quantity, trade.Symbol)
}

// GetTransactions lists the user's trades as display lines in ledger order.
func (s *TradeService) GetTransactions(ctx context.Context, userID int64) ([]string, error) {
	trades, err := s.ledger.FindByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("find trades", err)
	}

	lines := make([]string, 0, len(trades))
	for _, t := range trades {
		lines = append(lines, FormatTransaction(t))
	}
	return lines, nil
}

func FormatTransaction(t domain.Trade) string {
	return fmt.Sprintf("%s: %s %d %s @ $%s",
		t.Timestamp.Format(TransactionTimeLayout), t.Side, t.Quantity, t.Symbol, t.Price.StringFixed(2))
}

// GetRecentTransactions is the social feed: the latest trades system-wide.
func (s *TradeService) GetRecentTransactions(ctx context.Context) ([]domain.FeedEntry, error) {
	trades, err := s.ledger.FindRecent(ctx, FeedSize)
	if err != nil {
		return nil, domain.NewPersistenceError("find recent trades", err)
	}

	usernames := make(map[int64]string)
	feed := make([]domain.FeedEntry, 0, len(trades))

	for _, t := range trades {
		username, ok := usernames[t.UserID]
		if !ok {
			username = s.resolveUsername(ctx, t.UserID)
			usernames[t.UserID] = username
		}

		feed = append(feed, domain.FeedEntry{
			Username:  username,
			Symbol:    t.Symbol,
			Quantity:  t.Quantity,
			Price:     t.Price,
			Side:      t.Side,
			Timestamp: t.Timestamp,
		})
	}
	return feed, nil
}

func (s *TradeService) resolveUsername(ctx context.Context, userID int64) string {
	username, ok, err := s.users.FindUsernameByID(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Warn("username lookup failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return UnknownUsername
	}
	if !ok {
		return UnknownUsername
	}
	return username
}

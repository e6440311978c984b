package domain

import (
	"context"
	"time"
)

// Ledger is the read side of the append-only trade log.
type Ledger interface {
	// FindByUserID returns the user's trades in storage order.
	FindByUserID(ctx context.Context, userID int64) ([]Trade, error)
	// FindRecent returns up to limit trades, newest first.
	FindRecent(ctx context.Context, limit int) ([]Trade, error)
}

type PositionStore interface {
	FindByUserID(ctx context.Context, userID int64) ([]Position, error)
	FindByUserIDAndSymbol(ctx context.Context, userID int64, symbol string) (Position, bool, error)
}

// TradeTx is the transactional view handed to a unit of work. Nothing written
// through it is visible to readers until the unit of work commits.
type TradeTx interface {
	AppendTrade(ctx context.Context, trade *Trade) error
	FindPosition(ctx context.Context, userID int64, symbol string) (Position, bool, error)
	SavePosition(ctx context.Context, position Position) error
	DeletePosition(ctx context.Context, userID int64, symbol string) error
}

// UnitOfWork commits everything fn staged when fn returns nil and discards it otherwise.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx TradeTx) error) error
}

type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type UserStore interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
	FindUsernameByID(ctx context.Context, id int64) (string, bool, error)
}

// UserRegistry manages accounts. Deleting a user leaves their trades in the
// ledger; the feed then shows them under the unknown-user name.
type UserRegistry interface {
	UserStore
	Create(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id int64) (User, bool, error)
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	List(ctx context.Context) ([]User, error)
	// Delete reports whether a user was removed.
	Delete(ctx context.Context, id int64) (bool, error)
}

type StockCatalog interface {
	FindBySymbol(ctx context.Context, symbol string) (Stock, bool, error)
	ListAll(ctx context.Context) ([]Stock, error)
}

type CatalogWriter interface {
	StockCatalog
	Count(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, stocks []Stock) (int64, error)
}

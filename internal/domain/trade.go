package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s Side) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func ParseSide(raw string) (Side, bool) {
	side := Side(strings.ToUpper(strings.TrimSpace(raw)))
	return side, side.Valid()
}

type Trade struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Symbol    string          `db:"symbol" json:"symbol"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Side      Side            `db:"side" json:"side"`
	Timestamp time.Time       `db:"executed_at" json:"timestamp"`
}

// SignedQuantity is the trade's contribution to the holding.
func (t Trade) SignedQuantity() int64 {
	return t.Side.Sign() * t.Quantity
}

// Before reports whether t sorts ahead of other in ledger order.
func (t Trade) Before(other Trade) bool {
	if t.Timestamp.Equal(other.Timestamp) {
		return t.ID < other.ID
	}
	return t.Timestamp.Before(other.Timestamp)
}

type Position struct {
	UserID   int64  `db:"user_id" json:"user_id"`
	Symbol   string `db:"symbol" json:"symbol"`
	Quantity int64  `db:"quantity" json:"quantity"`
}

type PositionKey struct {
	UserID int64
	Symbol string
}

func (p Position) Key() PositionKey {
	return PositionKey{UserID: p.UserID, Symbol: p.Symbol}
}

type Confirmation struct {
	Message string `json:"message"`
	Trade   Trade  `json:"trade"`
}

type PortfolioEntry struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

type FeedEntry struct {
	Username  string          `json:"username"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Side      Side            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// NormalizeSymbol is the canonical catalog form of a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NextPosition applies trade to the current holding. A result with Quantity 0
// means the position must be deleted. A sell larger than the holding is
// rejected with ErrInsufficientShares.
func NextPosition(current Position, held bool, trade Trade) (Position, error) {
	if !held {
		current = Position{UserID: trade.UserID, Symbol: trade.Symbol}
	}

	if trade.Side == SideSell && (!held || current.Quantity < trade.Quantity) {
		return current, ErrInsufficientShares
	}

	current.Quantity += trade.SignedQuantity()
	return current, nil
}

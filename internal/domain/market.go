package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Stock struct {
	Symbol           string          `db:"symbol" json:"symbol"`
	CompanyName      string          `db:"company_name" json:"company_name"`
	CurrentPrice     decimal.Decimal `db:"current_price" json:"current_price"`
	ChangeAmount     decimal.Decimal `db:"change_amount" json:"change_amount"`
	ChangePercentage decimal.Decimal `db:"change_percentage" json:"change_percentage"`
}

// NewStock derives ChangePercentage from price and change.
func NewStock(symbol, companyName string, price, change decimal.Decimal) Stock {
	pct := decimal.Zero
	if !price.IsZero() {
		pct = change.Div(price).Mul(decimal.NewFromInt(100))
	}
	return Stock{
		Symbol:           NormalizeSymbol(symbol),
		CompanyName:      companyName,
		CurrentPrice:     price,
		ChangeAmount:     change,
		ChangePercentage: pct,
	}
}

func (s Stock) Quote() Quote {
	return Quote{
		Symbol:       s.Symbol,
		Price:        s.CurrentPrice,
		ChangeAmount: s.ChangeAmount,
	}
}

type Quote struct {
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	ChangeAmount decimal.Decimal `json:"change"`
}

// ZeroQuote is what unknown symbols resolve to.
func ZeroQuote(symbol string) Quote {
	return Quote{
		Symbol:       NormalizeSymbol(symbol),
		Price:        decimal.Zero,
		ChangeAmount: decimal.Zero,
	}
}

type HistoryPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

type Timeframe struct {
	Name     string
	Points   int
	Interval time.Duration
}

var (
	Timeframe1D = Timeframe{Name: "1D", Points: 24, Interval: 60 * time.Minute}
	Timeframe1W = Timeframe{Name: "1W", Points: 7, Interval: 1440 * time.Minute}
	Timeframe1M = Timeframe{Name: "1M", Points: 30, Interval: 1440 * time.Minute}
	Timeframe1Y = Timeframe{Name: "1Y", Points: 12, Interval: 43200 * time.Minute}
)

// ParseTimeframe is case-insensitive and falls back to 1D.
func ParseTimeframe(raw string) Timeframe {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1W":
		return Timeframe1W
	case "1M":
		return Timeframe1M
	case "1Y":
		return Timeframe1Y
	default:
		return Timeframe1D
	}
}

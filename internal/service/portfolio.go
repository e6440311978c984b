package service

import (
	"context"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/shopspring/decimal"
)

type PortfolioService struct {
	positions domain.PositionStore
	quotes    QuoteSource
}

func NewPortfolioService(positions domain.PositionStore, quotes QuoteSource) *PortfolioService {
	return &PortfolioService{
		positions: positions,
		quotes:    quotes,
	}
}

// GetPortfolio values every held position at its current quote. A symbol the
// catalog no longer knows is valued at zero instead of failing the call.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID int64) ([]domain.PortfolioEntry, error) {
	positions, err := s.positions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("find positions", err)
	}

	entries := make([]domain.PortfolioEntry, 0, len(positions))
	for _, p := range positions {
		quote, err := s.quotes.GetQuote(ctx, p.Symbol)
		if err != nil {
			return nil, err
		}

		entries = append(entries, domain.PortfolioEntry{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			CurrentPrice: quote.Price,
			TotalValue:   quote.Price.Mul(decimal.NewFromInt(p.Quantity)),
		})
	}
	return entries, nil
}

// TotalValue sums the entries' values.
func TotalValue(entries []domain.PortfolioEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.TotalValue)
	}
	return total
}

package ingestion

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultStocks is the catalog a fresh installation starts with.
func DefaultStocks() []domain.Stock {
	seed := []struct {
		symbol  string
		company string
		price   string
		change  string
	}{
		{"RELIANCE", "Reliance Industries Ltd.", "2456.75", "3.45"},
		{"TCS", "Tata Consultancy Services", "3789.20", "2.89"},
		{"INFY", "Infosys Limited", "1654.30", "2.67"},
		{"HDFCBANK", "HDFC Bank Limited", "1589.90", "2.34"},
		{"WIPRO", "Wipro Limited", "456.85", "2.15"},
		{"TATAMOTORS", "Tata Motors Limited", "789.45", "-3.21"},
		{"BHARTIARTL", "Bharti Airtel Limited", "934.20", "-2.87"},
		{"AXISBANK", "Axis Bank Limited", "1023.45", "-2.45"},
		{"ICICIBANK", "ICICI Bank Limited", "1089.30", "-2.12"},
		{"SBIN", "State Bank of India", "623.75", "-1.98"},
	}

	stocks := make([]domain.Stock, 0, len(seed))
	for _, s := range seed {
		stocks = append(stocks, domain.NewStock(
			s.symbol, s.company,
			decimal.RequireFromString(s.price),
			decimal.RequireFromString(s.change)))
	}
	return stocks
}

type CatalogLoader struct {
	catalog   domain.CatalogWriter
	batchSize int
}

func NewCatalogLoader(catalog domain.CatalogWriter, batchSize int) *CatalogLoader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &CatalogLoader{
		catalog:   catalog,
		batchSize: batchSize,
	}
}

// LoadStocks upserts stocks in batches and returns how many were written.
func (l *CatalogLoader) LoadStocks(ctx context.Context, stocks []domain.Stock) (int64, error) {
	var total int64
	for _, chunk := range l.splitIntoChunks(stocks) {
		count, err := l.catalog.Upsert(ctx, chunk)
		if err != nil {
			return total, fmt.Errorf("failed to upsert stocks: %w", err)
		}
		total += count
	}
	return total, nil
}

// SeedDefaults loads DefaultStocks only into an empty catalog.
func (l *CatalogLoader) SeedDefaults(ctx context.Context) (int64, error) {
	count, err := l.catalog.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count stocks: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	return l.LoadStocks(ctx, DefaultStocks())
}

func (l *CatalogLoader) splitIntoChunks(stocks []domain.Stock) [][]domain.Stock {
	var chunks [][]domain.Stock

	for i := 0; i < len(stocks); i += l.batchSize {
		end := i + l.batchSize
		if end > len(stocks) {
			end = len(stocks)
		}
		chunks = append(chunks, stocks[i:end])
	}

	return chunks
}

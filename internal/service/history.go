package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Volatility bounds for one step of the synthetic walk.
const (
	maxStepVolatility = 0.02
	fallbackAnchor    = 100
)

// HistoryService synthesizes chart series that end at the live quote. The
// walk is random on every call; only the most recent point is fixed.
type HistoryService struct {
	quotes QuoteSource
	random func() float64
	now    func() time.Time
}

type HistoryOption func(*HistoryService)

// WithRandom replaces the source of uniform [0, 1) draws.
func WithRandom(random func() float64) HistoryOption {
	return func(s *HistoryService) {
		s.random = random
	}
}

func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(s *HistoryService) {
		s.now = now
	}
}

func NewHistoryService(quotes QuoteSource, opts ...HistoryOption) *HistoryService {
	s := &HistoryService{
		quotes: quotes,
		random: rand.Float64,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateHistory returns the series oldest first.
func (s *HistoryService) GenerateHistory(ctx context.Context, symbol, timeframe string) ([]domain.HistoryPoint, error) {
	tf := domain.ParseTimeframe(timeframe)
	metrics.RecordHistoryRequest(tf.Name)

	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	anchor := quote.Price
	if anchor.IsZero() {
		anchor = decimal.NewFromInt(fallbackAnchor)
	}

	now := s.now().UTC()
	points := make([]domain.HistoryPoint, tf.Points)
	price := anchor

	// Walk backwards from the anchor, filling the slice from the end so the
	// result is already chronological.
	for i := 0; i < tf.Points; i++ {
		v := s.random()*2*maxStepVolatility - maxStepVolatility
		prior := price.Div(decimal.NewFromFloat(1 + v))

		points[tf.Points-1-i] = domain.HistoryPoint{
			Timestamp: now.Add(-time.Duration(i) * tf.Interval),
			Price:     price,
		}
		price = prior
	}

	return points, nil
}

package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeovahfialho/trading-backend/internal/ingestion"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"go.uber.org/zap"
)

type IngestionService struct {
	parser  *ingestion.Parser
	loader  *ingestion.CatalogLoader
	trades  ingestion.OrderExecutor
	workers int
}

func NewIngestionService(parser *ingestion.Parser, loader *ingestion.CatalogLoader, trades ingestion.OrderExecutor, workers int) *IngestionService {
	return &IngestionService{
		parser:  parser,
		loader:  loader,
		trades:  trades,
		workers: workers,
	}
}

type ProcessFileResult struct {
	FilePath     string
	RecordsCount int64
	Errors       []error
}

func (s *IngestionService) SeedDefaults(ctx context.Context) (int64, error) {
	count, err := s.loader.SeedDefaults(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("catalog seeded", zap.Int64("stocks", count))
	}
	return count, nil
}

func (s *IngestionService) ProcessCatalogFile(ctx context.Context, filePath string) (*ProcessFileResult, error) {
	logger.Info("loading catalog file", zap.String("file", filePath))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.ProcessCatalog(ctx, filePath, file)
}

func (s *IngestionService) ProcessCatalog(ctx context.Context, name string, reader io.Reader) (*ProcessFileResult, error) {
	parsed, err := s.parser.ParseCatalog(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	count, err := s.loader.LoadStocks(ctx, parsed.Records)
	if err != nil {
		return nil, err
	}

	return &ProcessFileResult{
		FilePath:     name,
		RecordsCount: count,
		Errors:       parsed.Errors,
	}, nil
}

type ReplayResult struct {
	FilePath string
	Executed int
	Rejected int
	Results  []ingestion.JobResult
	Errors   []error
}

func (s *IngestionService) ReplayOrdersFile(ctx context.Context, filePath string) (*ReplayResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.ReplayOrders(ctx, filePath, file)
}

func (s *IngestionService) ReplayOrders(ctx context.Context, name string, reader io.Reader) (*ReplayResult, error) {
	parsed, err := s.parser.ParseOrders(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse orders: %w", err)
	}

	results := ingestion.Replay(ctx, s.workers, s.trades, parsed.Records)

	replay := &ReplayResult{
		FilePath: name,
		Results:  results,
		Errors:   parsed.Errors,
	}
	for _, r := range results {
		if r.Error != nil {
			replay.Rejected++
			continue
		}
		replay.Executed++
	}

	logger.Info("orders replayed",
		zap.String("file", name),
		zap.Int("executed", replay.Executed),
		zap.Int("rejected", replay.Rejected),
		zap.Int("parse_errors", len(parsed.Errors)))

	return replay, nil
}

// Package bootstrap wires the storage backends selected by config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/config"
	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/internal/storage/cache"
	"github.com/jeovahfialho/trading-backend/internal/storage/memory"
	"github.com/jeovahfialho/trading-backend/internal/storage/postgres"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"go.uber.org/zap"
)

type Stores struct {
	UnitOfWork domain.UnitOfWork
	Ledger     domain.Ledger
	Positions  domain.PositionStore
	Users      domain.UserRegistry
	Catalog    domain.CatalogWriter

	// Checks feeds the readiness endpoint and the health command.
	Checks map[string]func(ctx context.Context) error

	// DB is nil for the memory driver.
	DB *postgres.DB

	closers []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Open builds the stores for cfg.StorageDriver. The postgres driver applies
// the schema before returning.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return openMemory(), nil
	case config.StoragePostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func openMemory() *Stores {
	store := memory.NewStore()
	return &Stores{
		UnitOfWork: store,
		Ledger:     store.Trades(),
		Positions:  store,
		Users:      memory.NewUsers(),
		Catalog:    memory.NewCatalog(),
		Checks:     map[string]func(ctx context.Context) error{},
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Stores, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.Migrate(migrateCtx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to postgres")

	return &Stores{
		UnitOfWork: postgres.NewTxManager(db),
		Ledger:     postgres.NewLedger(db),
		Positions:  postgres.NewPositionStore(db),
		Users:      postgres.NewUserStore(db),
		Catalog:    postgres.NewCatalog(db),
		Checks: map[string]func(ctx context.Context) error{
			"postgres": db.HealthCheck,
		},
		DB:      db,
		closers: []func(){db.Close},
	}, nil
}

// ConnectCache returns nil when Redis is disabled or unreachable; callers
// run without a cache in that case.
func ConnectCache(cfg *config.Config) *cache.RedisCache {
	if !cfg.RedisEnabled {
		return nil
	}

	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Warn("redis not available, continuing without cache", zap.Error(err))
		return nil
	}

	logger.Info("connected to redis")
	return redisCache
}

package main

import (
	"context"
	"fmt"

	"categorybot/internal/caching"
	"categorybot/internal/config"
	"categorybot/internal/repositories"
	"categorybot/internal/services"
	"categorybot/pkg/database"

	"go.uber.org/zap"
)

// app holds the components shared by every subcommand
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	repo       repositories.CategoryRepository
	cache      caching.CacheService
	storage    services.MinioService
	categories services.CategoryService
	snapshots  services.SnapshotService
	closers    []func()
}

// newApp opens the configured store, applying migrations, and wires the
// services on top of it. Redis and MinIO are optional.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.cache = caching.NewNoopCacheService()
	if cfg.CacheEnabled() {
		a.cache = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger.Named("cache"))
		cache := a.cache
		a.closers = append(a.closers, func() { _ = cache.Close() })
	}

	if cfg.Minio.Endpoint != "" {
		storage, err := services.NewMinioService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize MinIO service: %w", err)
		}
		a.storage = storage
	}

	renderer := services.NewTreeRenderer(cfg.Tree.MaxNodes)
	a.categories = services.NewCategoryService(a.repo, a.cache, renderer, cfg.Redis.TTL, logger.Named("categories"))
	a.snapshots = services.NewSnapshotService(a.categories, a.storage, cfg.Minio.Bucket, cfg.Snapshots.URLExpiry,
		cfg.Snapshots.Retain, logger.Named("snapshots"))
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, a.cfg.Store.DatabaseURL, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.MigratePool(pool); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.repo = repositories.NewCategoryRepo(pool)

	case config.DriverSQLite:
		db, err := database.OpenSQLite(a.cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := database.Migrate(db, database.DialectSQLite); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.repo = repositories.NewSQLiteCategoryRepo(db)
		a.logger.Info("database opened", zap.String("driver", database.DialectSQLite), zap.String("path", a.cfg.Store.SQLitePath))

	case config.DriverMemory:
		a.repo = repositories.NewMemoryCategoryRepo()
		a.logger.Warn("using in-memory category store; data is lost on exit")

	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

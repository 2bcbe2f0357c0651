package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/config"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewDBPool builds a pgxpool and checks connectivity.
func NewDBPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// OpenStore opens the configured backend together with a migrator for it.
// Closing the store releases everything; the migrator must be closed first.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, *Migrator, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		migrator, err := NewSQLiteMigrator(store.DB(), logger)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.Info("Using SQLite store", zap.String("path", cfg.SQLitePath))
		return store, migrator, nil

	case config.DriverPostgres:
		pool, err := NewDBPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		migrator, err := NewPostgresMigrator(pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Using Postgres store")
		return &pooledStore{PostgresStore: repository.NewPostgresStore(pool), pool: pool}, migrator, nil
	}
	return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// pooledStore owns the pool the Postgres store borrows.
type pooledStore struct {
	*repository.PostgresStore
	pool *pgxpool.Pool
}

func (s *pooledStore) Close() error {
	s.pool.Close()
	return nil
}

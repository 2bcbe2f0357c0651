package app

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/Freeeeeet/advising_portal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrator applies the embedded goose migrations.
type Migrator struct {
	db       *sql.DB
	ownsDB   bool
	provider *goose.Provider
	logger   *zap.Logger
}

// NewPostgresMigrator migrates through a *sql.DB view of the pool. Closing the
// migrator does not close the pool.
func NewPostgresMigrator(pool *pgxpool.Pool, logger *zap.Logger) (*Migrator, error) {
	db := stdlib.OpenDBFromPool(pool)
	m, err := newMigrator(db, goose.DialectPostgres, "postgres", logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	m.ownsDB = true
	return m, nil
}

// NewSQLiteMigrator migrates an embedded database. db stays owned by the caller.
func NewSQLiteMigrator(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	return newMigrator(db, goose.DialectSQLite3, "sqlite", logger)
}

func newMigrator(db *sql.DB, dialect goose.Dialect, dir string, logger *zap.Logger) (*Migrator, error) {
	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}

	return &Migrator{db: db, provider: provider, logger: logger}, nil
}

// Run applies every pending migration.
func (mg *Migrator) Run(ctx context.Context) error {
	mg.logger.Info("Applying database migrations")

	results, err := mg.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, r := range results {
		mg.logger.Info("Migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("took", r.Duration),
		)
	}
	return nil
}

// Version returns the current schema version.
func (mg *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := mg.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// Pending reports whether any migration has not been applied yet.
func (mg *Migrator) Pending(ctx context.Context) (bool, error) {
	pending, err := mg.provider.HasPending(ctx)
	if err != nil {
		return false, fmt.Errorf("check pending migrations: %w", err)
	}
	return pending, nil
}

func (mg *Migrator) Close() error {
	if mg.ownsDB && mg.db != nil {
		return mg.db.Close()
	}
	return nil
}

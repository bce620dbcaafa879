package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kyleking/hr-insight/internal/config"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/logging"
)

// OptionsFromConfig maps database settings onto read-only store options
func OptionsFromConfig(cfg config.DatabaseConfig, logger *logging.Logger) (Options, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return Options{}, hrerrors.NewConfigError(err.Error(), "database.driver")
	}

	return Options{
		Driver:          driver,
		DSN:             cfg.Path,
		MaxRows:         cfg.MaxRows,
		QueryTimeout:    cfg.QueryTimeoutDuration(),
		MaxOpenConns:    cfg.MaxConnections,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetimeDuration(),
		Logger:          logger,
	}, nil
}

// OpenFromConfig opens the configured store read-only
func OpenFromConfig(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (*Executor, error) {
	opts, err := OptionsFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	return OpenReadOnly(ctx, opts)
}

// OpenWritable opens a local store for schema setup. Only file-backed
// drivers are supported; remote databases are provisioned out of band.
func OpenWritable(ctx context.Context, driver Driver, path string) (*sql.DB, error) {
	if !driver.SupportsMigrations() {
		return nil, hrerrors.Newf(hrerrors.ErrTypeInvalidInput, "%s databases cannot be initialized locally", driver)
	}

	if path == "" {
		return nil, hrerrors.NewConfigError("database path is required", "database.path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeFileSystem, "failed to create database directory")
	}

	db, err := sql.Open(driver.sqlName(), path)
	if err != nil {
		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, fmt.Sprintf("failed to open %s", path))
	}

	return db, nil
}

// Initialize migrates a local store and optionally loads the demo dataset
func Initialize(ctx context.Context, driver Driver, path string, demo bool, logger *logging.Logger) (int, error) {
	db, err := OpenWritable(ctx, driver, path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	applied, err := NewMigrationManager(db, logger).MigrateUp(ctx)
	if err != nil {
		return applied, hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "failed to create schema")
	}

	if demo {
		if err := SeedDemoData(ctx, db); err != nil {
			return applied, hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "failed to load demo data")
		}
	}

	return applied, nil
}

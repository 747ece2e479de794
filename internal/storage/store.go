package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"salmonrun-notifier/internal/config"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrCorruptLedger indicates a stored ledger that cannot be decoded.
	ErrCorruptLedger = errors.New("storage: ledger corrupt")
)

// LedgerStore persists the alert ledger as an ordered list, oldest first.
type LedgerStore interface {
	LoadLedger(ctx context.Context) ([]AlertRecord, error)
	SaveLedger(ctx context.Context, records []AlertRecord) error
	Close() error
}

// LedgerPeeker is implemented by stores whose LoadLedger repairs damaged
// data. PeekLedger reads without repairing.
type LedgerPeeker interface {
	PeekLedger(ctx context.Context) ([]AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Open initialises the ledger backend selected by cfg.LedgerDriver.
func Open(ctx context.Context, cfg config.StorageConfig, fs afero.Fs, logger zerolog.Logger) (LedgerStore, error) {
	driver := cfg.Driver()
	switch driver {
	case "file":
		return NewFile(fs, cfg.LedgerPath, logger), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewPostgres(pool)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

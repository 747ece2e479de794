package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLite stores the ledger in a local SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ LedgerStore = (*SQLite)(nil)

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage.sqlite_path is required for the sqlite driver")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = FULL")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// LoadLedger returns records in insertion order.
func (s *SQLite) LoadLedger(ctx context.Context) ([]AlertRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx, `SELECT start_time FROM alert_ledger ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		start, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse ledger start_time %q: %w", raw, err)
		}
		records = append(records, AlertRecord{StartTime: start})
	}
	return records, rows.Err()
}

// SaveLedger replaces all stored rows in one transaction.
func (s *SQLite) SaveLedger(ctx context.Context, records []AlertRecord) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alert_ledger`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	for _, record := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alert_ledger(start_time) VALUES(?)`,
			record.StartTime.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert ledger row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

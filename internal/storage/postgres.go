package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createLedgerTableSQL = `CREATE TABLE IF NOT EXISTS alert_ledger (
        seq        BIGSERIAL PRIMARY KEY,
        start_time TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	listLedgerSQL = `SELECT start_time
    FROM alert_ledger
    ORDER BY seq;`

	clearLedgerSQL = `DELETE FROM alert_ledger;`

	insertLedgerSQL = `INSERT INTO alert_ledger (start_time) VALUES ($1);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Postgres keeps the ledger in a shared database so several hosts can
// coordinate through an advisory lock.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ LedgerStore    = (*Postgres)(nil)
	_ AdvisoryLocker = (*Postgres)(nil)
)

// NewPostgres wires a pgx pool into a ledger store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the ledger table when absent.
func (s *Postgres) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createLedgerTableSQL); err != nil {
		return fmt.Errorf("create alert_ledger: %w", err)
	}
	return nil
}

// LoadLedger returns records in insertion order.
func (s *Postgres) LoadLedger(ctx context.Context) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listLedgerSQL)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var start time.Time
		if err := rows.Scan(&start); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		records = append(records, AlertRecord{StartTime: start})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return records, nil
}

// SaveLedger replaces the stored rows in one transaction.
func (s *Postgres) SaveLedger(ctx context.Context, records []AlertRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, clearLedgerSQL); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(insertLedgerSQL, record.StartTime)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert ledger rows: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Postgres) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Postgres) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

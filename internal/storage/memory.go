package storage

import (
	"context"
	"sync"
)

// Memory is an in-process ledger store. LoadErr and SaveErr, when set, are
// returned by the matching calls.
type Memory struct {
	mu      sync.Mutex
	records []AlertRecord
	saves   int

	LoadErr error
	SaveErr error
}

var _ LedgerStore = (*Memory)(nil)

// NewMemory seeds a memory store with records.
func NewMemory(records ...AlertRecord) *Memory {
	return &Memory{records: append([]AlertRecord(nil), records...)}
}

func (m *Memory) LoadLedger(ctx context.Context) ([]AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return append([]AlertRecord(nil), m.records...), nil
}

func (m *Memory) SaveLedger(ctx context.Context, records []AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.records = append([]AlertRecord(nil), records...)
	m.saves++
	return nil
}

// Saves reports how many successful SaveLedger calls were made.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }

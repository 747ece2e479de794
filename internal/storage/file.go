package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// File keeps the ledger as a JSON array in a single file.
type File struct {
	fs     afero.Fs
	path   string
	now    func() time.Time
	logger zerolog.Logger
}

var (
	_ LedgerStore  = (*File)(nil)
	_ LedgerPeeker = (*File)(nil)
)

// NewFile returns a file-backed ledger store rooted at path.
func NewFile(fs afero.Fs, path string, logger zerolog.Logger) *File {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &File{
		fs:     fs,
		path:   path,
		now:    time.Now,
		logger: logger.With().Str("component", "ledger_file").Logger(),
	}
}

// LoadLedger reads the stored records. A missing or empty file yields no
// records. A file that cannot be decoded is moved aside and treated as empty.
func (f *File) LoadLedger(ctx context.Context) ([]AlertRecord, error) {
	records, err := f.PeekLedger(ctx)
	if errors.Is(err, ErrCorruptLedger) {
		f.quarantine(err)
		return nil, nil
	}
	return records, err
}

// PeekLedger reads the stored records without touching the file. A file that
// cannot be decoded is reported with ErrCorruptLedger.
func (f *File) PeekLedger(ctx context.Context) ([]AlertRecord, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []AlertRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLedger, f.path, err)
	}
	return records, nil
}

// SaveLedger atomically replaces the file with records.
func (f *File) SaveLedger(ctx context.Context, records []AlertRecord) error {
	if records == nil {
		records = []AlertRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return WriteFileAtomic(f.fs, f.path, data, 0o644)
}

// Close is a no-op for the file backend.
func (f *File) Close() error { return nil }

func (f *File) quarantine(cause error) {
	target := fmt.Sprintf("%s.corrupt.%d", f.path, f.now().Unix())
	if err := f.fs.Rename(f.path, target); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("ledger unreadable and could not be moved aside")
		return
	}
	f.logger.Warn().Err(cause).Str("path", f.path).Str("moved_to", target).Msg("ledger unreadable; starting empty")
}

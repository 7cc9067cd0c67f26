package badger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/storage"
)

// StagingLog implements storage.StagingLog on BadgerDB.
type StagingLog struct {
	backend *Backend
	seq     *badger.Sequence
	mu      sync.Mutex // serialises appends so batches stay contiguous
	logger  *slog.Logger
}

var _ storage.StagingLog = (*StagingLog)(nil)

// NewStagingLog creates a staging log on backend. The backend stays owned by
// the caller.
func NewStagingLog(backend *Backend) (storage.StagingLog, error) {
	return newStagingLog(backend)
}

func newStagingLog(backend *Backend) (*StagingLog, error) {
	seq, err := backend.GetSequence(stagingSeq)
	if err != nil {
		return nil, err
	}
	return &StagingLog{
		backend: backend,
		seq:     seq,
		logger:  slog.Default().With("component", "badger-staging"),
	}, nil
}

// Append implements storage.StagingLog.
func (s *StagingLog) Append(ctx context.Context, records []core.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := core.ValidateChunkRecords(records); err != nil {
		return err
	}

	values := make([][]byte, len(records))
	for i := range records {
		data, err := storage.MarshalChunkRecord(&records[i])
		if err != nil {
			return err
		}
		values[i] = data
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend.IsClosed() {
		return fmt.Errorf("append %d records: %w", len(records), storage.ErrStorageClosed)
	}
	pairs := make([]kv, len(values))
	for i, value := range values {
		n, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("append %d records: %w", len(records), err)
		}
		pairs[i] = kv{key: makeStagingKey(n), value: value}
	}

	if err := s.backend.setAll(pairs); err != nil {
		return fmt.Errorf("append %d records: %w", len(records), err)
	}

	s.logger.Debug("appended records", "count", len(records))
	return nil
}

// Location implements storage.StagingLog.
func (s *StagingLog) Location() string {
	return s.backend.Location()
}

// ReadAll implements storage.StagingLog.
func (s *StagingLog) ReadAll(ctx context.Context) ([]core.ChunkRecord, error) {
	records, _, err := s.ReadFrom(ctx, 0)
	return records, err
}

// ReadFrom implements storage.StagingLog.
func (s *StagingLog) ReadFrom(ctx context.Context, offset int) ([]core.ChunkRecord, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: %d", storage.ErrInvalidOffset, offset)
	}

	records := []core.ChunkRecord{}
	position := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(stagingRecordPrefix), func(key, val []byte) error {
			position++
			if position <= offset {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := storage.UnmarshalChunkRecord(val)
			if err != nil {
				return fmt.Errorf("%w: record %d: %w", storage.ErrCorruptLog, position, err)
			}
			records = append(records, *record)
			return nil
		})
	}, false)
	if err != nil {
		return nil, offset, err
	}

	return records, max(position, offset), nil
}

// Close releases the sequence lease. The backend is left open.
func (s *StagingLog) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.seq.Release()
}

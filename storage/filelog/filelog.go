// Package filelog implements the staging log as a JSON Lines file.
//
// Every line is one core.ChunkRecord. Appends hold an exclusive lock on a
// sibling ".lock" file for the whole batch and write the batch with a single
// write call, so batches from concurrent runs never interleave. Reads hold a
// shared lock and never observe a half-written batch.
package filelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/jsonl"
	"github.com/poiesic/docstage/storage"
)

// FileName is the staging file name inside a dated directory.
const FileName = "data.jsonl"

// ErrLockTimeout indicates the lock could not be taken before ctx ended.
var ErrLockTimeout = errors.New("timed out waiting for staging log lock")

// DatedPath returns dir/<YYYY-MM-DD>/data.jsonl for the day of t.
func DatedPath(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format(time.DateOnly), FileName)
}

// Log is a file backed storage.StagingLog.
type Log struct {
	path       string
	location   string
	lockPath   string
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ storage.StagingLog = (*Log)(nil)

// Option configures a Log.
type Option func(*Log) error

// WithRetryDelay sets how often a blocked append retries the lock.
// Default is 10ms.
func WithRetryDelay(d time.Duration) Option {
	return func(l *Log) error {
		if d <= 0 {
			return fmt.Errorf("%w: lock retry delay must be positive", core.ErrConfiguration)
		}
		l.retryDelay = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// Open prepares a staging log at path, creating parent directories. The file
// itself is created by the first append.
func Open(path string, opts ...Option) (storage.StagingLog, error) {
	return open(path, opts...)
}

func open(path string, opts ...Option) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: staging log path is empty", core.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	location, err := filepath.Abs(path)
	if err != nil {
		location = path
	}

	l := &Log{
		path:       path,
		location:   location,
		lockPath:   path + ".lock",
		retryDelay: 10 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "filelog", "path", path)
	return l, nil
}

// Path returns the staging file path.
func (l *Log) Path() string {
	return l.path
}

// Location implements storage.StagingLog. It is the absolute file path.
func (l *Log) Location() string {
	return l.location
}

// lock takes the file lock. Each call uses its own descriptor so locks
// exclude each other within one process as well as across processes.
func (l *Log) lock(ctx context.Context, shared bool) (*flock.Flock, error) {
	fl := flock.New(l.lockPath)
	var ok bool
	var err error
	if shared {
		ok, err = fl.TryRLockContext(ctx, l.retryDelay)
	} else {
		ok, err = fl.TryLockContext(ctx, l.retryDelay)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctxErr)
		}
		return nil, err
	}
	if !ok {
		return nil, ErrLockTimeout
	}
	return fl, nil
}

// Append implements storage.StagingLog.
func (l *Log) Append(ctx context.Context, records []core.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := core.ValidateChunkRecords(records); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := jsonl.Encode(&buf, records); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	fl, err := l.lock(ctx, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := checkTail(f); err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append %d records: %w", len(records), err)
	}
	if err := f.Sync(); err != nil {
		return err
	}

	l.logger.Debug("appended records", "count", len(records), "bytes", buf.Len())
	return nil
}

// checkTail refuses to append after a torn final line.
func checkTail(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if last[0] != '\n' {
		return fmt.Errorf("%w: final line is incomplete", storage.ErrCorruptLog)
	}
	return nil
}

// ReadAll implements storage.StagingLog.
func (l *Log) ReadAll(ctx context.Context) ([]core.ChunkRecord, error) {
	records, _, err := l.ReadFrom(ctx, 0)
	return records, err
}

// ReadFrom implements storage.StagingLog. The offset counts records.
func (l *Log) ReadFrom(ctx context.Context, offset int) ([]core.ChunkRecord, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: %d", storage.ErrInvalidOffset, offset)
	}

	fl, err := l.lock(ctx, true)
	if err != nil {
		return nil, offset, err
	}
	defer fl.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []core.ChunkRecord{}, offset, nil
	}
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	records := []core.ChunkRecord{}
	position := 0
	err = jsonl.Scan(f, func(record core.ChunkRecord) error {
		position++
		if position <= offset {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		if errors.Is(err, jsonl.ErrMalformedLine) {
			return nil, offset, fmt.Errorf("%w: %s: %w", storage.ErrCorruptLog, l.path, err)
		}
		return nil, offset, err
	}

	return records, max(position, offset), nil
}

// Close is a no-op; no descriptors are held between calls.
func (l *Log) Close() error {
	return nil
}

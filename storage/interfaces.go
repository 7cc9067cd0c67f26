package storage

import (
	"context"

	"github.com/poiesic/docstage/core"
)

// StagingLog is the append-only record of embedded chunks.
// Implementations must be thread-safe and support concurrent access.
type StagingLog interface {
	// Append validates and durably writes records as one batch. An invalid
	// record fails the batch before anything is written. Records from
	// concurrent appends never interleave within a batch.
	Append(ctx context.Context, records []core.ChunkRecord) error

	// ReadAll returns every record in log order. An empty or missing log
	// yields an empty slice.
	ReadAll(ctx context.Context) ([]core.ChunkRecord, error)

	// ReadFrom returns the records after the first offset records, and the
	// offset to pass next time.
	ReadFrom(ctx context.Context, offset int) ([]core.ChunkRecord, int, error)

	// Location identifies the underlying log, so offsets saved against one
	// log are never applied to another.
	Location() string

	// Close releases the log's resources.
	Close() error
}

// CheckpointRepository persists read positions in the staging log.
type CheckpointRepository interface {
	// SaveCheckpoint stores checkpoint, replacing any previous value.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the named checkpoint, or nil, nil if none exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)
}

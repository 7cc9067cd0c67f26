package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/docstage/ai"
	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/dedup"
	"github.com/poiesic/docstage/index"
	"github.com/poiesic/docstage/storage"
)

// SyncResult describes one sync of the staging log into a collection.
type SyncResult struct {
	dedup.Stats
	// Upserted is the number of entries written to the collection.
	Upserted int
	// Offset is the staging log position the sync read up to.
	Offset int
}

// Sync reconciles the whole staging log and upserts one entry per id.
// Nothing is written when the log is empty.
func (p *Pipeline) Sync(ctx context.Context, collection index.Collection) (*SyncResult, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}

	records, err := p.stagingLog.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read staging log: %w", err)
	}

	reconciled, stats := dedup.ReconcileWithStats(records)
	if err := p.upsert(ctx, collection, reconciled); err != nil {
		return nil, err
	}

	p.logger.Info("synced staging log",
		"collection", collection.Name(),
		"records", stats.Records,
		"unique", stats.Unique,
		"superseded", stats.Superseded)

	return &SyncResult{Stats: stats, Upserted: len(reconciled), Offset: len(records)}, nil
}

// SyncSince upserts only the ids staged after the named checkpoint and then
// advances it. Winners are still chosen against the whole log, so a late
// record with an older timestamp never replaces a newer entry. A checkpoint
// saved against a different staging log starts over at offset zero.
func (p *Pipeline) SyncSince(ctx context.Context, collection index.Collection, checkpoints storage.CheckpointRepository, name string) (*SyncResult, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}

	checkpoint, err := checkpoints.LoadCheckpoint(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	location := p.stagingLog.Location()
	if checkpoint == nil {
		checkpoint = &core.Checkpoint{Name: name, Log: location}
	}
	if checkpoint.Log != location {
		// The offset counts records of another log, for example the
		// previous day's staging file.
		p.logger.Info("staging log changed, syncing from the start",
			"checkpoint", name,
			"previous", checkpoint.Log,
			"current", location)
		checkpoint.Log = location
		checkpoint.Offset = 0
	}

	fresh, next, err := p.stagingLog.ReadFrom(ctx, checkpoint.Offset)
	if err != nil {
		return nil, fmt.Errorf("read staging log: %w", err)
	}
	if len(fresh) == 0 {
		p.logger.Debug("nothing staged since checkpoint", "checkpoint", name, "offset", checkpoint.Offset)
		return &SyncResult{Offset: next}, nil
	}

	touched := make(map[string]struct{}, len(fresh))
	for _, r := range fresh {
		touched[r.ID] = struct{}{}
	}

	all, err := p.stagingLog.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read staging log: %w", err)
	}
	reconciled, stats := dedup.ReconcileWithStats(all)

	selected := make([]core.ChunkRecord, 0, len(touched))
	for _, r := range reconciled {
		if _, ok := touched[r.ID]; ok {
			selected = append(selected, r)
		}
	}

	if err := p.upsert(ctx, collection, selected); err != nil {
		return nil, err
	}

	checkpoint.Offset = next
	if err := checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return nil, fmt.Errorf("save checkpoint %s: %w", name, err)
	}

	p.logger.Info("synced staging log since checkpoint",
		"collection", collection.Name(),
		"checkpoint", name,
		"fresh", len(fresh),
		"upserted", len(selected),
		"offset", next)

	return &SyncResult{Stats: stats, Upserted: len(selected), Offset: next}, nil
}

// upsert validates the whole set before the first write so a bad record
// never leaves the collection half updated.
func (p *Pipeline) upsert(ctx context.Context, collection index.Collection, records []core.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := core.ValidateChunkRecords(records); err != nil {
		return err
	}

	batch := index.BatchFromRecords(records)
	if err := batch.Validate(); err != nil {
		return err
	}
	if err := ai.CheckEmbeddings(batch.Len(), batch.Embeddings); err != nil {
		return err
	}

	start := time.Now()
	for _, chunk := range batch.Chunks(p.upsertBatchSize) {
		if err := collection.Upsert(ctx, chunk); err != nil {
			return fmt.Errorf("upsert into %s: %w", collection.Name(), err)
		}
	}
	p.logger.Debug("upserted entries", "collection", collection.Name(), "entries", batch.Len(), "elapsed", time.Since(start))
	return nil
}

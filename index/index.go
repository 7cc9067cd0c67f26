package index

import (
	"context"
	"fmt"

	"github.com/poiesic/docstage/core"
)

// Client opens collections on an index.
type Client interface {
	// GetOrCreateCollection returns the named collection, creating it if needed.
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)

	// Close releases the client's resources.
	Close() error
}

// Collection is a named set of embedded documents.
// Implementations must be thread-safe.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Upsert inserts new ids and replaces existing ones.
	Upsert(ctx context.Context, batch Batch) error

	// Add inserts entries. Existing ids are rejected.
	Add(ctx context.Context, batch Batch) error

	// Query returns up to topK entries nearest to embedding, best first.
	// Fewer results are returned when the collection is smaller than topK.
	Query(ctx context.Context, embedding []float32, topK int) ([]core.Match, error)

	// Get returns every entry in the collection.
	Get(ctx context.Context) (*core.Snapshot, error)

	// Count returns the number of entries in the collection.
	Count(ctx context.Context) (int, error)
}

// Batch holds parallel slices describing entries to write.
type Batch struct {
	IDs        []string
	Documents  []string
	Metadatas  []core.ChunkMetadata
	Embeddings [][]float32
}

// Len returns the number of entries in the batch.
func (b Batch) Len() int {
	return len(b.IDs)
}

// Validate checks that all slices have equal length and that ids are unique
// and non-empty.
func (b Batch) Validate() error {
	n := len(b.IDs)
	if len(b.Documents) != n || len(b.Metadatas) != n || len(b.Embeddings) != n {
		return fmt.Errorf("%w: ids=%d documents=%d metadatas=%d embeddings=%d",
			core.ErrLengthMismatch, n, len(b.Documents), len(b.Metadatas), len(b.Embeddings))
	}
	seen := make(map[string]struct{}, n)
	for _, id := range b.IDs {
		if id == "" {
			return fmt.Errorf("%w: empty id in batch", core.ErrLengthMismatch)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q in batch", core.ErrLengthMismatch, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Entries converts the batch to index entries. The batch must be valid.
func (b Batch) Entries() []core.IndexEntry {
	entries := make([]core.IndexEntry, len(b.IDs))
	for i := range b.IDs {
		entries[i] = core.IndexEntry{
			ID:        b.IDs[i],
			Document:  b.Documents[i],
			Metadata:  b.Metadatas[i],
			Embedding: b.Embeddings[i],
		}
	}
	return entries
}

// BatchFromRecords builds a batch from staged records, preserving their order.
func BatchFromRecords(records []core.ChunkRecord) Batch {
	b := Batch{
		IDs:        make([]string, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]core.ChunkMetadata, len(records)),
		Embeddings: make([][]float32, len(records)),
	}
	for i, r := range records {
		b.IDs[i] = r.ID
		b.Documents[i] = r.Chunk
		b.Metadatas[i] = r.Metadata
		b.Embeddings[i] = r.Embeddings
	}
	return b
}

// Chunks splits the batch into consecutive batches of at most size entries.
func (b Batch) Chunks(size int) []Batch {
	if size <= 0 || b.Len() <= size {
		return []Batch{b}
	}
	var out []Batch
	for start := 0; start < b.Len(); start += size {
		end := min(start+size, b.Len())
		out = append(out, Batch{
			IDs:        b.IDs[start:end],
			Documents:  b.Documents[start:end],
			Metadatas:  b.Metadatas[start:end],
			Embeddings: b.Embeddings[start:end],
		})
	}
	return out
}

package badger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/index"
	"github.com/poiesic/docstage/storage"
)

// IndexClient implements index.Client with collections stored in BadgerDB.
// Ranking is an exact scan by cosine distance.
type IndexClient struct {
	backend *Backend
	logger  *slog.Logger
}

var _ index.Client = (*IndexClient)(nil)

// NewIndexClient creates an index client on backend. The backend stays owned
// by the caller.
func NewIndexClient(backend *Backend) *IndexClient {
	return &IndexClient{
		backend: backend,
		logger:  slog.Default().With("component", "badger-index"),
	}
}

type collectionMeta struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

// GetOrCreateCollection implements index.Client.
func (c *IndexClient) GetOrCreateCollection(ctx context.Context, name string) (index.Collection, error) {
	if err := index.ValidateCollectionName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexRejected, err)
	}
	if c.backend.IsClosed() {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, storage.ErrStorageClosed)
	}

	var meta collectionMeta
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		found, err := loadMeta(tx, name, &meta)
		if err != nil || found {
			return err
		}
		meta = collectionMeta{Name: name}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Set(makeCollectionKey(name), data); err != nil {
			return err
		}
		c.logger.Info("created collection", "collection", name)
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, wrapIndexErr(err)
	}

	return &Collection{
		backend: c.backend,
		name:    name,
		logger:  c.logger.With("collection", name),
	}, nil
}

// Close is a no-op; the backend is closed by its owner.
func (c *IndexClient) Close() error {
	return nil
}

func loadMeta(tx *badger.Txn, name string, meta *collectionMeta) (bool, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, meta)
	})
}

// Collection implements index.Collection on BadgerDB.
type Collection struct {
	backend *Backend
	name    string
	mu      sync.Mutex // serialises writes
	logger  *slog.Logger
}

var _ index.Collection = (*Collection)(nil)

// Name implements index.Collection.
func (c *Collection) Name() string {
	return c.name
}

// Upsert implements index.Collection.
func (c *Collection) Upsert(ctx context.Context, batch index.Batch) error {
	return c.write(ctx, batch, true)
}

// Add implements index.Collection.
func (c *Collection) Add(ctx context.Context, batch index.Batch) error {
	return c.write(ctx, batch, false)
}

func (c *Collection) write(ctx context.Context, batch index.Batch, replace bool) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := batch.Entries()
	var meta collectionMeta
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := loadMeta(tx, c.name, &meta); err != nil {
			return err
		}
		dim := meta.Dimension
		if dim == 0 {
			dim = len(batch.Embeddings[0])
		}
		for i, emb := range batch.Embeddings {
			if len(emb) == 0 || len(emb) != dim {
				return fmt.Errorf("%w: %s: embedding has %d dimensions, collection expects %d",
					core.ErrIndexRejected, batch.IDs[i], len(emb), dim)
			}
		}
		if replace {
			return nil
		}
		for i := range entries {
			if _, err := tx.Get(makeEntryKey(c.name, entries[i].ID)); err == nil {
				return fmt.Errorf("%w: id %q already exists", core.ErrIndexRejected, entries[i].ID)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return wrapIndexErr(err)
	}

	// Checks passed under c.mu, so the write itself may span transactions.
	pairs := make([]kv, 0, len(entries)+1)
	for i := range entries {
		data, err := storage.MarshalIndexEntry(&entries[i])
		if err != nil {
			return err
		}
		pairs = append(pairs, kv{key: makeEntryKey(c.name, entries[i].ID), value: data})
	}
	if meta.Dimension == 0 {
		data, err := json.Marshal(collectionMeta{Name: c.name, Dimension: len(batch.Embeddings[0])})
		if err != nil {
			return err
		}
		pairs = append(pairs, kv{key: makeCollectionKey(c.name), value: data})
	}

	if err := c.backend.setAll(pairs); err != nil {
		return wrapIndexErr(err)
	}

	c.logger.Debug("wrote entries", "count", len(entries), "replace", replace)
	return nil
}

// Query implements index.Collection. Similarity is the cosine distance,
// so smaller values rank first.
func (c *Collection) Query(ctx context.Context, embedding []float32, topK int) ([]core.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", core.ErrIndexRejected, topK)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", core.ErrIndexRejected)
	}

	type scored struct {
		id       string
		text     string
		distance float64
	}
	var hits []scored
	err := c.scan(ctx, func(entry *core.IndexEntry) error {
		if len(entry.Embedding) != len(embedding) {
			return fmt.Errorf("%w: query has %d dimensions, entry %s has %d",
				core.ErrIndexRejected, len(embedding), entry.ID, len(entry.Embedding))
		}
		hits = append(hits, scored{
			id:       entry.ID,
			text:     entry.Document,
			distance: cosineDistance(embedding, entry.Embedding),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b scored) int {
		if d := cmp.Compare(a.distance, b.distance); d != 0 {
			return d
		}
		return cmp.Compare(a.id, b.id)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	matches := make([]core.Match, len(hits))
	for i, h := range hits {
		matches[i] = core.Match{Text: h.text, Similarity: h.distance}
	}
	return matches, nil
}

// Get implements index.Collection. Entries are returned in id order.
func (c *Collection) Get(ctx context.Context) (*core.Snapshot, error) {
	snap := &core.Snapshot{}
	err := c.scan(ctx, func(entry *core.IndexEntry) error {
		snap.IDs = append(snap.IDs, entry.ID)
		snap.Documents = append(snap.Documents, entry.Document)
		snap.Metadatas = append(snap.Metadatas, entry.Metadata)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Count implements index.Collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryPrefix(c.name)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	}, false)
	if err != nil {
		return 0, wrapIndexErr(err)
	}
	return n, nil
}

func (c *Collection) scan(ctx context.Context, fn func(*core.IndexEntry) error) error {
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeEntryPrefix(c.name), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := storage.UnmarshalIndexEntry(val)
			if err != nil {
				return fmt.Errorf("%w: %w", core.ErrIndexRejected, err)
			}
			return fn(entry)
		})
	}, false)
	return wrapIndexErr(err)
}

// wrapIndexErr classifies storage failures for index callers. A closed
// backend is transient; errors already classified pass through.
func wrapIndexErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrIndexRejected), errors.Is(err, core.ErrIndexUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, storage.ErrStorageClosed), errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrIndexRejected, err)
	}
}

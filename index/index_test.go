package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/retry"
)

func batchOf(ids ...string) Batch {
	b := Batch{}
	for _, id := range ids {
		b.IDs = append(b.IDs, id)
		b.Documents = append(b.Documents, "doc "+id)
		b.Metadatas = append(b.Metadatas, core.ChunkMetadata{Source: "s"})
		b.Embeddings = append(b.Embeddings, []float32{1})
	}
	return b
}

func TestBatch_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, batchOf("a", "b").Validate())
		assert.NoError(t, Batch{}.Validate())
	})

	t.Run("unequal lengths", func(t *testing.T) {
		b := batchOf("a", "b")
		b.Embeddings = b.Embeddings[:1]
		assert.ErrorIs(t, b.Validate(), core.ErrLengthMismatch)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		assert.ErrorIs(t, batchOf("a", "a").Validate(), core.ErrLengthMismatch)
	})

	t.Run("empty id", func(t *testing.T) {
		assert.ErrorIs(t, batchOf("").Validate(), core.ErrLengthMismatch)
	})
}

func TestBatchFromRecords(t *testing.T) {
	records := []core.ChunkRecord{
		{ID: "x", Chunk: "one", Metadata: core.ChunkMetadata{ChunkIndex: 0}, Embeddings: []float32{1}},
		{ID: "y", Chunk: "two", Metadata: core.ChunkMetadata{ChunkIndex: 1}, Embeddings: []float32{2}},
	}

	b := BatchFromRecords(records)
	require.NoError(t, b.Validate())
	assert.Equal(t, []string{"x", "y"}, b.IDs)
	assert.Equal(t, []string{"one", "two"}, b.Documents)

	entries := b.Entries()
	assert.Equal(t, "y", entries[1].ID)
	assert.Equal(t, []float32{2}, entries[1].Embedding)
}

func TestBatch_Chunks(t *testing.T) {
	b := batchOf("a", "b", "c", "d", "e")

	parts := b.Chunks(2)
	require.Len(t, parts, 3)
	assert.Equal(t, []string{"e"}, parts[2].IDs)

	assert.Len(t, b.Chunks(0), 1)
	assert.Len(t, b.Chunks(10), 1)
}

type fakeClient struct {
	errs  []error
	calls int
}

func (f *fakeClient) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return nil, nil
}

func (f *fakeClient) Close() error { return nil }

// pingingClient reports heartbeat failures before any collection call.
type pingingClient struct {
	fakeClient
	pingErrs []error
	pings    int
}

func (p *pingingClient) Heartbeat(ctx context.Context) error {
	p.pings++
	if p.pings <= len(p.pingErrs) {
		return p.pingErrs[p.pings-1]
	}
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("retries unavailable then succeeds", func(t *testing.T) {
		client := &fakeClient{errs: []error{core.ErrIndexUnavailable, core.ErrIndexUnavailable}}

		_, err := Connect(ctx, client, "docs", fastPolicy())
		require.NoError(t, err)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		unavailable := core.ErrIndexUnavailable
		client := &fakeClient{errs: []error{unavailable, unavailable, unavailable, unavailable}}

		_, err := Connect(ctx, client, "docs", fastPolicy())
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("rejected is not retried", func(t *testing.T) {
		client := &fakeClient{errs: []error{core.ErrIndexRejected}}

		_, err := Connect(ctx, client, "docs", fastPolicy())
		assert.ErrorIs(t, err, core.ErrIndexRejected)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("heartbeat gates collection calls", func(t *testing.T) {
		client := &pingingClient{pingErrs: []error{core.ErrIndexUnavailable}}

		_, err := Connect(ctx, client, "docs", fastPolicy())
		require.NoError(t, err)
		assert.Equal(t, 2, client.pings)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("rejected heartbeat is not retried", func(t *testing.T) {
		client := &pingingClient{pingErrs: []error{core.ErrIndexRejected}}

		_, err := Connect(ctx, client, "docs", fastPolicy())
		assert.ErrorIs(t, err, core.ErrIndexRejected)
		assert.Equal(t, 1, client.pings)
		assert.Equal(t, 0, client.calls)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := Connect(ctx, nil, "docs", fastPolicy())
		assert.ErrorIs(t, err, ErrClientRequired)

		_, err = Connect(ctx, &fakeClient{}, " ", fastPolicy())
		assert.ErrorIs(t, err, core.ErrConfiguration)

		_, err = Connect(ctx, &fakeClient{}, "docs", retry.Policy{})
		assert.True(t, errors.Is(err, retry.ErrInvalidMaxAttempts))
	})
}

func TestValidateCollectionName(t *testing.T) {
	for _, name := range []string{"my_collection", "docs", "a.b-c", "A12"} {
		assert.NoError(t, ValidateCollectionName(name), name)
	}
	for _, name := range []string{"", "ab", "_docs", "docs-", "has:colon", "white space"} {
		assert.ErrorIs(t, ValidateCollectionName(name), core.ErrConfiguration, name)
	}
}

package docstage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docstage/ai/mock"
	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/ingestion"
	"github.com/poiesic/docstage/retry"
)

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider()
	base := []Option{
		WithProvider(provider),
		WithInMemoryStore(),
		WithStagingFile(filepath.Join(t.TempDir(), "data.jsonl")),
	}
	rt, err := NewRuntime(append(base, opts...)...)
	require.NoError(t, err)
	return rt, provider
}

func TestNewRuntime(t *testing.T) {
	t.Run("create with file staging", func(t *testing.T) {
		rt, _ := newTestRuntime(t)
		defer rt.Close()

		assert.NotNil(t, rt.Provider())
		assert.NotNil(t, rt.StagingLog())
		assert.NotNil(t, rt.CheckpointRepository())
	})

	t.Run("create with badger staging on disk", func(t *testing.T) {
		rt, err := NewRuntime(
			WithProvider(mock.NewMockProvider()),
			WithStoreDir(filepath.Join(t.TempDir(), "store")),
			WithBadgerStaging(),
		)
		require.NoError(t, err)
		assert.NoError(t, rt.Close())
	})

	t.Run("error with invalid store path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		provider := mock.NewMockProvider()
		rt, err := NewRuntime(WithProvider(provider), WithStoreDir(tmpFile))
		assert.Error(t, err)
		assert.Nil(t, rt)
		assert.True(t, provider.Closed(), "provider is released on failure")
	})

	t.Run("invalid collection name", func(t *testing.T) {
		_, err := NewRuntime(WithProvider(mock.NewMockProvider()), WithCollection("x"))
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("invalid connect policy", func(t *testing.T) {
		_, err := NewRuntime(WithProvider(mock.NewMockProvider()), WithConnectPolicy(retry.Policy{}))
		assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)
	})

	t.Run("invalid chroma url", func(t *testing.T) {
		_, err := NewRuntime(
			WithProvider(mock.NewMockProvider()),
			WithInMemoryStore(),
			WithBadgerStaging(),
			WithChromaIndex("not a url"),
		)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestRuntime_CloseReleasesProvider(t *testing.T) {
	rt, provider := newTestRuntime(t)

	require.NoError(t, rt.Close())
	assert.True(t, provider.Closed())
}

func TestRuntime_CollectionIsCached(t *testing.T) {
	rt, _ := newTestRuntime(t, WithCollection("docs"))
	defer rt.Close()

	ctx := context.Background()
	first, err := rt.Collection(ctx)
	require.NoError(t, err)
	second, err := rt.Collection(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "docs", first.Name())
}

func TestRuntime_EndToEnd(t *testing.T) {
	rt, _ := newTestRuntime(t)
	defer rt.Close()
	ctx := context.Background()

	pipeline, err := rt.NewIngestionPipeline(ingestion.WithChunkSize(10))
	require.NoError(t, err)
	defer pipeline.Release()

	path := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello World, this is a test."), 0o644))

	result, err := pipeline.Ingest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Chunks)

	// A second run restages every chunk with a later timestamp.
	time.Sleep(time.Millisecond)
	_, err = pipeline.Ingest(ctx, path)
	require.NoError(t, err)

	collection, err := rt.Collection(ctx)
	require.NoError(t, err)
	synced, err := pipeline.Sync(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 6, synced.Records)
	assert.Equal(t, 3, synced.Unique)

	n, err := collection.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	runner, err := rt.NewRunner(ctx)
	require.NoError(t, err)
	answers, err := runner.Run(ctx, []string{"a test."})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Len(t, answers[0].Results, 3)
	assert.Equal(t, "a test.", answers[0].Results[0].Text)
}

func TestRuntime_OnlyQueryEmbeddingsAreCached(t *testing.T) {
	rt, provider := newTestRuntime(t)
	defer rt.Close()
	ctx := context.Background()
	embedder := provider.GetMockEmbedder()

	pipeline, err := rt.NewIngestionPipeline(ingestion.WithChunkSize(10))
	require.NoError(t, err)
	defer pipeline.Release()

	path := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello World, this is a test."), 0o644))

	for range 2 {
		_, err = pipeline.Ingest(ctx, path)
		require.NoError(t, err)
	}
	assert.Equal(t, 6, embedder.TextCount(), "chunks are embedded on every run")

	collection, err := rt.Collection(ctx)
	require.NoError(t, err)
	_, err = pipeline.Sync(ctx, collection)
	require.NoError(t, err)

	for range 2 {
		runner, err := rt.NewRunner(ctx)
		require.NoError(t, err)
		_, err = runner.Run(ctx, []string{"a test."})
		require.NoError(t, err)
	}
	assert.Equal(t, 7, embedder.TextCount(), "a repeated query is served from the cache")
}

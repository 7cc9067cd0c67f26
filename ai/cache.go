package ai

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/poiesic/docstage/core"
)

type cacheEntry struct {
	text   string
	vector []float32
}

// CachingEmbedder serves repeated texts from an LRU cache keyed by a
// BLAKE2b fingerprint of the text.
type CachingEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[uint64, cacheEntry]
	logger *slog.Logger
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps inner with a cache holding up to size vectors.
func NewCachingEmbedder(inner Embedder, size int) (*CachingEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}
	cache, err := lru.New[uint64, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{
		inner:  inner,
		cache:  cache,
		logger: slog.Default().With("component", "embedding-cache"),
	}, nil
}

func (c *CachingEmbedder) lookup(text string) ([]float32, bool) {
	entry, ok := c.cache.Get(core.Fingerprint(text))
	if !ok || entry.text != text {
		return nil, false
	}
	return entry.vector, true
}

func (c *CachingEmbedder) store(text string, vector []float32) {
	c.cache.Add(core.Fingerprint(text), cacheEntry{text: text, vector: vector})
}

// EmbedText implements Embedder.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.lookup(text); ok {
		return vector, nil
	}
	vector, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, vector)
	return vector, nil
}

// EmbedTexts implements Embedder. Only cache misses reach the wrapped embedder,
// in one batch call.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vector, ok := c.lookup(text); ok {
			result[i] = vector
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	c.logger.Debug("embedding cache misses", "hits", len(texts)-len(missing), "misses", len(missing))
	vectors, err := c.inner.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := CheckEmbeddings(len(missing), vectors); err != nil {
		return nil, err
	}
	for j, vector := range vectors {
		result[missingIdx[j]] = vector
		c.store(missing[j], vector)
	}
	return result, nil
}

// Len returns the number of cached vectors.
func (c *CachingEmbedder) Len() int {
	return c.cache.Len()
}

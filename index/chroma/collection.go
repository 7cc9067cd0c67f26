package chroma

import (
	"context"
	"fmt"
	"net/http"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/index"
)

// Collection implements index.Collection for one Chroma collection.
type Collection struct {
	client *Client
	id     string
	name   string
	path   string
}

var _ index.Collection = (*Collection)(nil)

// Name implements index.Collection.
func (c *Collection) Name() string {
	return c.name
}

// ID returns the server-assigned collection id.
func (c *Collection) ID() string {
	return c.id
}

type writeRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

func toWriteRequest(batch index.Batch) writeRequest {
	metas := make([]map[string]any, len(batch.Metadatas))
	for i, m := range batch.Metadatas {
		metas[i] = metadataMap(m)
	}
	return writeRequest{
		IDs:        batch.IDs,
		Embeddings: batch.Embeddings,
		Documents:  batch.Documents,
		Metadatas:  metas,
	}
}

// metadataMap flattens metadata for the server. Chroma does not accept null
// values, so an absent title is omitted.
func metadataMap(m core.ChunkMetadata) map[string]any {
	out := map[string]any{
		"source":      m.Source,
		"chunk_index": m.ChunkIndex,
		"chunk_size":  m.ChunkSize,
	}
	if m.Title != nil {
		out["title"] = *m.Title
	}
	return out
}

func metadataFromMap(raw map[string]any) core.ChunkMetadata {
	var m core.ChunkMetadata
	if v, ok := raw["source"].(string); ok {
		m.Source = v
	}
	if v, ok := raw["chunk_index"].(float64); ok {
		m.ChunkIndex = int(v)
	}
	if v, ok := raw["chunk_size"].(float64); ok {
		m.ChunkSize = int(v)
	}
	if v, ok := raw["title"].(string); ok {
		title := v
		m.Title = &title
	}
	return m
}

func (c *Collection) write(ctx context.Context, op string, batch index.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrIndexRejected, err)
	}
	if batch.Len() == 0 {
		return nil
	}
	_, err := c.client.do(ctx, http.MethodPost, c.path+"/"+op, toWriteRequest(batch), nil)
	if err != nil {
		return err
	}
	c.client.logger.Debug("wrote entries", "collection", c.name, "op", op, "count", batch.Len())
	return nil
}

// Upsert implements index.Collection.
func (c *Collection) Upsert(ctx context.Context, batch index.Batch) error {
	return c.write(ctx, "upsert", batch)
}

// Add implements index.Collection.
func (c *Collection) Add(ctx context.Context, batch index.Batch) error {
	return c.write(ctx, "add", batch)
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string  `json:"ids"`
	Documents [][]*string `json:"documents"`
	Distances [][]float64 `json:"distances"`
}

// Query implements index.Collection. Similarity is the server's distance,
// so lower is closer.
func (c *Collection) Query(ctx context.Context, embedding []float32, topK int) ([]core.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be at least 1, got %d", core.ErrIndexRejected, topK)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexRejected, core.ErrEmptyEmbedding)
	}

	var out queryResponse
	_, err := c.client.do(ctx, http.MethodPost, c.path+"/query", queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"documents", "distances"},
	}, &out)
	if err != nil {
		return nil, err
	}

	if len(out.IDs) == 0 {
		return []core.Match{}, nil
	}
	ids := out.IDs[0]
	if len(out.Documents) == 0 || len(out.Distances) == 0 ||
		len(out.Documents[0]) != len(ids) || len(out.Distances[0]) != len(ids) {
		return nil, fmt.Errorf("%w: malformed query response for %s", core.ErrIndexRejected, c.name)
	}

	matches := make([]core.Match, 0, len(ids))
	for i := range ids {
		var text string
		if doc := out.Documents[0][i]; doc != nil {
			text = *doc
		}
		matches = append(matches, core.Match{Text: text, Similarity: out.Distances[0][i]})
	}
	return matches, nil
}

type getRequest struct {
	Include []string `json:"include"`
}

type getResponse struct {
	IDs       []string         `json:"ids"`
	Documents []*string        `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// Get implements index.Collection.
func (c *Collection) Get(ctx context.Context) (*core.Snapshot, error) {
	var out getResponse
	_, err := c.client.do(ctx, http.MethodPost, c.path+"/get",
		getRequest{Include: []string{"documents", "metadatas"}}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Documents) != len(out.IDs) || len(out.Metadatas) != len(out.IDs) {
		return nil, fmt.Errorf("%w: malformed get response for %s", core.ErrIndexRejected, c.name)
	}

	snap := &core.Snapshot{
		IDs:       out.IDs,
		Documents: make([]string, len(out.IDs)),
		Metadatas: make([]core.ChunkMetadata, len(out.IDs)),
	}
	for i := range out.IDs {
		if doc := out.Documents[i]; doc != nil {
			snap.Documents[i] = *doc
		}
		snap.Metadatas[i] = metadataFromMap(out.Metadatas[i])
	}
	return snap, nil
}

// Count implements index.Collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	_, err := c.client.do(ctx, http.MethodGet, c.path+"/count", nil, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

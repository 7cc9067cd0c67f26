package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/docstage/ai"
	"github.com/poiesic/docstage/chunker"
	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/document"
	"github.com/poiesic/docstage/storage"
)

// DefaultBatchSize is the number of chunks sent to the embedder per request.
const DefaultBatchSize = 32

// DefaultUpsertBatchSize is the number of entries written to the index per request.
const DefaultUpsertBatchSize = 500

// Pipeline stages documents and syncs the staging log into an index.
// A Pipeline is safe for concurrent use; each Ingest call is one run.
type Pipeline struct {
	stagingLog      storage.StagingLog
	embedder        ai.Embedder
	parser          document.Parser
	chunker         *chunker.Chunker
	embeddingPool   *ants.Pool
	batchSize       int
	upsertBatchSize int
	progress        io.Writer
	clock           func() time.Time
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithChunkSize sets the chunk size in characters.
// Default is chunker.DefaultChunkSize.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		c, err := chunker.New(size)
		if err != nil {
			return err
		}
		p.chunker = c
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per request.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: embedding batch size must be at least 1, got %d", core.ErrConfiguration, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithUpsertBatchSize sets how many entries Sync writes per index request.
// Default is DefaultUpsertBatchSize.
func WithUpsertBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: upsert batch size must be at least 1, got %d", core.ErrConfiguration, size)
		}
		p.upsertBatchSize = size
		return nil
	}
}

// WithParser sets the document parser.
// Default is document.NewFileParser().
func WithParser(parser document.Parser) Option {
	return func(p *Pipeline) error {
		if parser == nil {
			return ErrParserRequired
		}
		p.parser = parser
		return nil
	}
}

// WithProgress reports embedding progress to w.
// Default is no progress output.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithClock sets the source of processed_at timestamps.
// Default is time.Now.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) error {
		if clock == nil {
			clock = time.Now
		}
		p.clock = clock
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(stagingLog storage.StagingLog, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	if stagingLog == nil {
		return nil, ErrStagingLogRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	embedder := provider.Embedder()
	if embedder == nil {
		return nil, ai.ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	defaultChunker, err := chunker.New(chunker.DefaultChunkSize)
	if err != nil {
		embeddingPool.Release()
		return nil, err
	}

	p := &Pipeline{
		stagingLog:      stagingLog,
		embedder:        embedder,
		parser:          document.NewFileParser(),
		chunker:         defaultChunker,
		embeddingPool:   embeddingPool,
		batchSize:       DefaultBatchSize,
		upsertBatchSize: DefaultUpsertBatchSize,
		clock:           time.Now,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Result describes one ingestion run.
type Result struct {
	RunID       string
	Source      string
	Chunks      int
	ProcessedAt time.Time
}

// Ingest parses the document at path and stages one record per chunk.
// The source id is the base name of path and the title is the document name.
func (p *Pipeline) Ingest(ctx context.Context, path string) (*Result, error) {
	source, err := core.SourceID(path)
	if err != nil {
		return nil, err
	}

	doc, err := p.parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return p.IngestDocument(ctx, source, doc)
}

// IngestDocument stages an already parsed document under source.
func (p *Pipeline) IngestDocument(ctx context.Context, source string, doc *document.Document) (*Result, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source id is empty", core.ErrConfiguration)
	}

	runID := uuid.NewString()
	logger := p.logger.With("run", runID, "source", source)

	chunks, err := p.chunker.Split(document.BodyText(doc))
	if err != nil {
		if errors.Is(err, core.ErrEmptyResult) {
			logger.Warn("document has no body text")
		}
		return nil, fmt.Errorf("chunk %s: %w", source, err)
	}
	assigned := core.AssignChunks(source, document.TitleOf(doc), chunks)
	logger.Info("chunked document", "chunks", len(assigned), "chunk_size", p.chunker.Size())

	texts := make([]string, len(assigned))
	for i, c := range assigned {
		texts[i] = c.Text
	}

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", source, err)
	}

	processedAt := core.NewTimestamp(p.clock().UTC())
	records := make([]core.ChunkRecord, len(assigned))
	for i, c := range assigned {
		records[i] = core.ChunkRecord{
			ProcessedAt: processedAt,
			ID:          c.ID,
			Chunk:       c.Text,
			Metadata:    c.Metadata,
			Embeddings:  vectors[i],
		}
	}

	if err := p.stagingLog.Append(ctx, records); err != nil {
		return nil, fmt.Errorf("stage %s: %w", source, err)
	}
	logger.Info("staged records", "records", len(records))

	return &Result{
		RunID:       runID,
		Source:      source,
		Chunks:      len(records),
		ProcessedAt: processedAt.Time,
	}, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}

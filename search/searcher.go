package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docstage/ai"
	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/index"
)

// DefaultTopK is the number of matches requested per query.
const DefaultTopK = 3

// Runner answers queries against one index collection.
type Runner struct {
	collection index.Collection
	embedder   ai.Embedder
	topK       int
	clock      func() time.Time
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner) error

// WithTopK sets how many matches are requested per query.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Runner) error {
		if k < 1 {
			return fmt.Errorf("%w: topK must be at least 1, got %d", core.ErrConfiguration, k)
		}
		r.topK = k
		return nil
	}
}

// WithClock sets the source of processed_at timestamps.
// Default is time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) error {
		if clock == nil {
			clock = time.Now
		}
		r.clock = clock
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithEmbedder embeds queries with embedder instead of the provider's,
// typically an ai.CachingEmbedder shared across runs.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(r *Runner) error {
		if embedder == nil {
			return ai.ErrEmbedderRequired
		}
		r.embedder = embedder
		return nil
	}
}

// NewRunner creates a new query runner.
func NewRunner(collection index.Collection, provider ai.Provider, opts ...Option) (*Runner, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	embedder := provider.Embedder()
	if embedder == nil {
		return nil, ai.ErrEmbedderRequired
	}

	r := &Runner{
		collection: collection,
		embedder:   embedder,
		topK:       DefaultTopK,
		clock:      time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "search", "collection", collection.Name())

	return r, nil
}

// TopK returns the number of matches requested per query.
func (r *Runner) TopK() int {
	return r.topK
}

// Run answers every query in order.
func (r *Runner) Run(ctx context.Context, queries []string) ([]core.AnswerResult, error) {
	return r.RunWithMonitor(ctx, queries, nil)
}

// RunWithMonitor answers every query in order, reporting each step to monitor.
// The first failing query aborts the run and no answers are returned.
func (r *Runner) RunWithMonitor(ctx context.Context, queries []string, monitor Monitor) ([]core.AnswerResult, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	answers := make([]core.AnswerResult, 0, len(queries))
	for i, query := range queries {
		monitor.Start(query)

		answer, err := r.Answer(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		monitor.AfterQuery(query, answer.Results)
		answers = append(answers, *answer)
	}

	monitor.Finish(answers)
	r.logger.Info("answered queries", "queries", len(answers), "top_k", r.topK)
	return answers, nil
}

// Answer embeds one query and returns its ranked matches in index order.
func (r *Runner) Answer(ctx context.Context, query string) (*core.AnswerResult, error) {
	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: query %q", core.ErrEmptyEmbedding, query)
	}

	matches, err := r.collection.Query(ctx, embedding, r.topK)
	if err != nil {
		r.logger.Error("error querying collection", "query", query, "err", err)
		return nil, err
	}
	if matches == nil {
		matches = []core.Match{}
	}

	r.logger.Debug("answered query", "query", query, "matches", len(matches))
	return &core.AnswerResult{
		Query:       query,
		ProcessedAt: core.NewTimestamp(r.clock()),
		Results:     matches,
	}, nil
}

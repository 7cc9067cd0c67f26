package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/poiesic/docstage/ai"
)

// embed returns one vector per text, in input order. Batches run on the
// embedding pool; the first failure cancels the batches still pending.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	batches := embeddings.BatchTexts(texts, p.batchSize)
	results := make([][][]float32, len(batches))

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, len(texts), p.batchSize)
		tracker.Start()
	}

	var wg sync.WaitGroup
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vectors, err := p.embedder.EmbedTexts(ctx, batch)
			if err == nil {
				err = ai.CheckEmbeddings(len(batch), vectors)
			}
			if err != nil {
				p.logger.Error("error generating embeddings", "batch", i, "err", err)
				cancel(fmt.Errorf("batch %d: %w", i, err))
				return
			}
			results[i] = vectors
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		})
		if err != nil {
			wg.Done()
			cancel(fmt.Errorf("submit batch %d: %w", i, err))
			break
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.Finish()
	}

	vectors := make([][]float32, 0, len(texts))
	for _, r := range results {
		vectors = append(vectors, r...)
	}
	if err := ai.CheckEmbeddings(len(texts), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

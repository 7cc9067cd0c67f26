package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docstage"
	"github.com/poiesic/docstage/ai"
	"github.com/poiesic/docstage/index/chroma"
	"github.com/poiesic/docstage/ingestion"
	"github.com/poiesic/docstage/retry"
	"github.com/poiesic/docstage/search"
)

// openRuntime builds a Runtime from the global flags.
func openRuntime(c *cli.Context) (*docstage.Runtime, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("embedding-api-key")),
		ai.WithBatchSize(c.Int("embedding-batch-size")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []docstage.Option{
		docstage.WithAIConfig(aiConfig),
		docstage.WithStoreDir(c.String("store-dir")),
		docstage.WithCollection(c.String("collection")),
		docstage.WithConnectPolicy(retry.Policy{
			MaxAttempts: c.Int("connect-attempts"),
			BaseDelay:   c.Duration("connect-delay"),
			MaxDelay:    retry.DefaultPolicy().MaxDelay,
		}),
	}

	switch backend := strings.ToLower(c.String("staging-backend")); backend {
	case "file":
		if path := c.String("staging-file"); path != "" {
			opts = append(opts, docstage.WithStagingFile(path))
		}
	case "badger":
		opts = append(opts, docstage.WithBadgerStaging())
	default:
		return nil, fmt.Errorf("invalid staging backend %q: must be file or badger", backend)
	}

	switch kind := strings.ToLower(c.String("index")); kind {
	case "chroma":
		opts = append(opts, docstage.WithChromaIndex(c.String("chroma-url"),
			chroma.WithTenant(c.String("chroma-tenant")),
			chroma.WithDatabase(c.String("chroma-database")),
			chroma.WithToken(c.String("chroma-token")),
		))
	case "badger":
	default:
		return nil, fmt.Errorf("invalid index %q: must be chroma or badger", kind)
	}

	return docstage.NewRuntime(opts...)
}

func ingestCommand(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	return ingest(c.Context, c, rt, c.App.Writer)
}

func ingest(ctx context.Context, c *cli.Context, rt *docstage.Runtime, out io.Writer) error {
	opts := []ingestion.Option{
		ingestion.WithChunkSize(c.Int("chunk-size")),
		ingestion.WithBatchSize(c.Int("embedding-batch-size")),
	}
	if workers := c.Int("workers"); workers > 0 {
		opts = append(opts, ingestion.WithPoolSize(workers))
	}
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(os.Stderr))
	}

	pipeline, err := rt.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	for _, source := range c.StringSlice("source") {
		result, err := pipeline.Ingest(ctx, source)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Staged %d chunks from %s (run %s)\n", result.Chunks, result.Source, result.RunID)
	}
	return nil
}

func syncCommand(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := syncIndex(c.Context, c, rt, c.App.Writer); err != nil {
		return err
	}
	return printCount(c.Context, rt, c.App.Writer)
}

func syncIndex(ctx context.Context, c *cli.Context, rt *docstage.Runtime, out io.Writer) error {
	collection, err := rt.Collection(ctx)
	if err != nil {
		return err
	}

	pipeline, err := rt.NewIngestionPipeline(ingestion.WithUpsertBatchSize(c.Int("upsert-batch-size")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	var result *ingestion.SyncResult
	if c.Bool("incremental") {
		result, err = pipeline.SyncSince(ctx, collection, rt.CheckpointRepository(), c.String("checkpoint"))
	} else {
		result, err = pipeline.Sync(ctx, collection)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Upserted %d entries into %s (%d staged records, %d superseded)\n",
		result.Upserted, collection.Name(), result.Records, result.Superseded)
	return nil
}

func queryCommand(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	return answerQueries(c.Context, c, rt, c.App.Writer)
}

func answerQueries(ctx context.Context, c *cli.Context, rt *docstage.Runtime, out io.Writer) error {
	queries := search.DefaultQueries
	if path := c.String("queries"); path != "" {
		var err error
		queries, err = search.LoadQueries(path)
		if err != nil {
			return err
		}
	}

	runner, err := rt.NewRunner(ctx, search.WithTopK(c.Int("top-k")))
	if err != nil {
		return err
	}

	var monitor search.Monitor
	if c.Bool("verbose") {
		monitor = search.NewPrintMonitor(out)
	}
	answers, err := runner.RunWithMonitor(ctx, queries, monitor)
	if err != nil {
		return err
	}

	path := c.String("answers")
	if err := search.WriteAnswers(path, answers, c.Bool("overwrite")); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %d answers in %s\n", len(answers), path)
	return nil
}

func runCommand(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := c.Context
	out := c.App.Writer
	if err := ingest(ctx, c, rt, out); err != nil {
		return err
	}
	if err := syncIndex(ctx, c, rt, out); err != nil {
		return err
	}
	if err := printCount(ctx, rt, out); err != nil {
		return err
	}
	return answerQueries(ctx, c, rt, out)
}

func countCommand(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	return printCount(c.Context, rt, c.App.Writer)
}

// printCount reports the entry count as seen by a full get.
func printCount(ctx context.Context, rt *docstage.Runtime, out io.Writer) error {
	collection, err := rt.Collection(ctx)
	if err != nil {
		return err
	}
	snapshot, err := collection.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Total entries in %s: %d\n", collection.Name(), snapshot.Len())
	return nil
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/poiesic/docstage"
	"github.com/poiesic/docstage/chunker"
	"github.com/poiesic/docstage/index/chroma"
	"github.com/poiesic/docstage/ingestion"
	"github.com/poiesic/docstage/search"
)

func main() {
	if err := loadEnv(".env"); err != nil {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadEnv reads KEY=value pairs from path into the environment. Variables
// that are already set win, and a missing file is not an error.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// globalFlags can also be set from the YAML file named by --config.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "Set logging level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"DOCSTAGE_LOG_LEVEL"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "store-dir",
			Usage:   "BadgerDB directory for checkpoints, the embedded index and badger staging",
			Value:   docstage.DefaultStoreDir,
			EnvVars: []string{"DOCSTAGE_STORE_DIR"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  "staging-backend",
			Usage: "Staging log backend (file, badger)",
			Value: "file",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  "staging-file",
			Usage: "Staging log file (default: data/output/<date>/data.jsonl)",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "index",
			Usage:   "Index backend (chroma, badger)",
			Value:   "chroma",
			EnvVars: []string{"DOCSTAGE_INDEX"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "chroma-url",
			Usage:   "Chroma server URL",
			Value:   chroma.DefaultURL,
			EnvVars: []string{"CHROMA_URL"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "chroma-token",
			Usage:   "Chroma bearer token",
			EnvVars: []string{"CHROMA_TOKEN"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  "chroma-tenant",
			Usage: "Chroma tenant",
			Value: chroma.DefaultTenant,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  "chroma-database",
			Usage: "Chroma database",
			Value: chroma.DefaultDatabase,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "collection",
			Aliases: []string{"c"},
			Usage:   "Index collection name",
			Value:   docstage.DefaultCollection,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:  "connect-attempts",
			Usage: "Maximum attempts to reach the index",
			Value: 5,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  "connect-delay",
			Usage: "Base delay for exponential backoff while the index is unavailable",
			Value: 500 * time.Millisecond,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"EMBEDDING_HOST"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   "nomic-embed-text",
			EnvVars: []string{"EMBEDDING_MODEL"},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "embedding-api-key",
			Usage:   "API key for the embedding service",
			EnvVars: []string{"EMBEDDING_API_KEY"},
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:  "embedding-batch-size",
			Usage: "Number of texts per embedding request",
			Value: ingestion.DefaultBatchSize,
		}),
	}
}

func ingestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Document to ingest (repeatable)",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Chunk size in characters",
			Value: chunker.DefaultChunkSize,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent embedding requests (default: half the CPUs)",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Print embedding progress to stderr",
		},
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "incremental",
			Usage: "Only upsert ids staged since the last incremental sync",
		},
		&cli.StringFlag{
			Name:  "checkpoint",
			Usage: "Checkpoint name for incremental sync",
			Value: "index",
		},
		&cli.IntFlag{
			Name:  "upsert-batch-size",
			Usage: "Entries per index upsert request",
			Value: ingestion.DefaultUpsertBatchSize,
		},
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "queries",
			Aliases: []string{"q"},
			Usage:   "YAML file with a 'queries' list (default: built-in queries)",
		},
		&cli.StringFlag{
			Name:  "answers",
			Usage: "Answers output file",
			Value: search.DefaultAnswersPath,
		},
		&cli.IntFlag{
			Name:  "top-k",
			Usage: "Matches per query",
			Value: search.DefaultTopK,
		},
		&cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Replace an existing answers file",
			Value: true,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Print each query and its matches",
		},
	}
}

func newApp() *cli.App {
	flags := append(globalFlags(), &cli.StringFlag{
		Name:  "config",
		Usage: "YAML file providing values for global flags",
	})

	return &cli.App{
		Name:   "docstage",
		Usage:  "Chunk, embed, stage and index documents, then answer queries against the index",
		Flags:  flags,
		Before: beforeApp(flags),
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Chunk and embed documents into the staging log",
				Flags:  ingestFlags(),
				Action: ingestCommand,
			},
			{
				Name:   "sync",
				Usage:  "Reconcile the staging log and upsert it into the index",
				Flags:  syncFlags(),
				Action: syncCommand,
			},
			{
				Name:   "query",
				Usage:  "Run the query list against the index and save the answers",
				Flags:  queryFlags(),
				Action: queryCommand,
			},
			{
				Name:   "run",
				Usage:  "Ingest, sync, count and query in one go",
				Flags:  concatFlags(ingestFlags(), syncFlags(), queryFlags()),
				Action: runCommand,
			},
			{
				Name:   "count",
				Usage:  "Print the number of entries in the index collection",
				Action: countCommand,
			},
		},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func beforeApp(flags []cli.Flag) cli.BeforeFunc {
	loadConfig := altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config"))
	return func(c *cli.Context) error {
		if err := loadConfig(c); err != nil {
			return err
		}
		return setupLogger(c)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

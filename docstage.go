// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package docstage stages chunked, embedded documents and serves semantic
// queries from a similarity index built from the staged records.
package docstage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/docstage/ai"
	"github.com/poiesic/docstage/ai/openai"
	"github.com/poiesic/docstage/index"
	"github.com/poiesic/docstage/index/chroma"
	"github.com/poiesic/docstage/ingestion"
	"github.com/poiesic/docstage/retry"
	"github.com/poiesic/docstage/search"
	"github.com/poiesic/docstage/storage"
	"github.com/poiesic/docstage/storage/badger"
	"github.com/poiesic/docstage/storage/filelog"
)

// Defaults used when a Runtime option is not given.
const (
	DefaultCollection = "my_collection"
	DefaultStoreDir   = "data/store"
	DefaultOutputDir  = "data/output"
)

// Runtime owns every long-lived dependency of the pipeline: the embedding
// provider, the staging log, the badger store and the index client. Each is
// opened once; Close releases them in reverse order.
type Runtime struct {
	provider    ai.Provider
	queries     ai.Embedder
	backend     *badger.Backend
	stagingLog  storage.StagingLog
	checkpoints storage.CheckpointRepository
	client      index.Client
	policy      retry.Policy
	name        string
	logger      *slog.Logger

	mu         sync.Mutex
	collection index.Collection
}

// Option configures a Runtime.
type Option func(*runtimeOptions) error

type runtimeOptions struct {
	aiConfig      *ai.Config
	provider      ai.Provider
	storeDir      string
	inMemory      bool
	stagingPath   string
	badgerStaging bool
	chromaURL     string
	chromaOpts    []chroma.Option
	collection    string
	policy        retry.Policy
	logger        *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) Option {
	return func(o *runtimeOptions) error {
		if config == nil {
			return fmt.Errorf("%w: ai config is nil", ai.ErrInvalidConfig)
		}
		o.aiConfig = config
		return nil
	}
}

// WithProvider uses an existing provider instead of building one from the
// AI config. The Runtime takes ownership and closes it.
func WithProvider(provider ai.Provider) Option {
	return func(o *runtimeOptions) error {
		o.provider = provider
		return nil
	}
}

// WithStoreDir sets the badger directory holding checkpoints, the embedded
// index and, with WithBadgerStaging, the staging log.
// Default is DefaultStoreDir.
func WithStoreDir(dir string) Option {
	return func(o *runtimeOptions) error {
		if dir == "" {
			return errors.New("store directory is empty")
		}
		o.storeDir = dir
		return nil
	}
}

// WithInMemoryStore keeps the badger store in memory.
func WithInMemoryStore() Option {
	return func(o *runtimeOptions) error {
		o.inMemory = true
		return nil
	}
}

// WithStagingFile stages records in the JSON Lines file at path.
// Default is today's file under DefaultOutputDir.
func WithStagingFile(path string) Option {
	return func(o *runtimeOptions) error {
		if path == "" {
			return errors.New("staging path is empty")
		}
		o.stagingPath = path
		o.badgerStaging = false
		return nil
	}
}

// WithBadgerStaging stages records in the badger store instead of a file.
func WithBadgerStaging() Option {
	return func(o *runtimeOptions) error {
		o.badgerStaging = true
		return nil
	}
}

// WithChromaIndex serves the index from a Chroma server at url.
// Default is the embedded badger index.
func WithChromaIndex(url string, opts ...chroma.Option) Option {
	return func(o *runtimeOptions) error {
		o.chromaURL = url
		o.chromaOpts = opts
		return nil
	}
}

// WithCollection sets the index collection name.
// Default is DefaultCollection.
func WithCollection(name string) Option {
	return func(o *runtimeOptions) error {
		if err := index.ValidateCollectionName(name); err != nil {
			return err
		}
		o.collection = name
		return nil
	}
}

// WithConnectPolicy sets the retry policy for opening the collection.
// Default is retry.DefaultPolicy().
func WithConnectPolicy(policy retry.Policy) Option {
	return func(o *runtimeOptions) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		o.policy = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewRuntime opens every dependency. Nothing is contacted over the network
// until the collection is first requested.
func NewRuntime(opts ...Option) (*Runtime, error) {
	options := &runtimeOptions{
		aiConfig:   ai.DefaultConfig(),
		storeDir:   DefaultStoreDir,
		collection: DefaultCollection,
		policy:     retry.DefaultPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	logger := options.logger.With("component", "runtime")

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		provider: provider,
		policy:   options.policy,
		name:     options.collection,
		logger:   logger,
	}

	// Only query embeddings are cached. Chunk texts rarely repeat and
	// would evict the queries.
	if size := options.aiConfig.CacheSize; size > 0 && provider.Embedder() != nil {
		cached, err := ai.NewCachingEmbedder(provider.Embedder(), size)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.queries = cached
	}

	storeDir := options.storeDir
	if options.inMemory {
		storeDir = ""
	}
	backend, err := badger.OpenBackend(storeDir, options.inMemory)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.backend = backend
	rt.checkpoints = badger.NewCheckpointRepository(backend)

	if options.badgerStaging {
		rt.stagingLog, err = badger.NewStagingLog(backend)
	} else {
		path := options.stagingPath
		if path == "" {
			path = filelog.DatedPath(DefaultOutputDir, time.Now())
		}
		rt.stagingLog, err = filelog.Open(path, filelog.WithLogger(options.logger))
	}
	if err != nil {
		rt.Close()
		return nil, err
	}

	if options.chromaURL != "" {
		chromaOpts := append([]chroma.Option{chroma.WithLogger(options.logger)}, options.chromaOpts...)
		rt.client, err = chroma.NewClient(options.chromaURL, chromaOpts...)
		if err != nil {
			rt.Close()
			return nil, err
		}
	} else {
		rt.client = badger.NewIndexClient(backend)
	}

	return rt, nil
}

// Close releases the index client, the staging log, the store and the
// provider, in that order. Every failure is logged and returned.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.client != nil {
		if err := rt.client.Close(); err != nil {
			rt.logger.Error("error closing index client", "err", err)
			errs = append(errs, err)
		}
	}
	if rt.stagingLog != nil {
		if err := rt.stagingLog.Close(); err != nil {
			rt.logger.Error("error closing staging log", "err", err)
			errs = append(errs, err)
		}
	}
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	if rt.provider != nil {
		if err := rt.provider.Close(); err != nil {
			rt.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Provider returns the embedding provider.
func (rt *Runtime) Provider() ai.Provider {
	return rt.provider
}

// StagingLog returns the staging log.
func (rt *Runtime) StagingLog() storage.StagingLog {
	return rt.stagingLog
}

// CheckpointRepository returns the checkpoint store.
func (rt *Runtime) CheckpointRepository() storage.CheckpointRepository {
	return rt.checkpoints
}

// Collection opens the configured collection on first use, retrying while
// the index is unavailable.
func (rt *Runtime) Collection(ctx context.Context) (index.Collection, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.collection != nil {
		return rt.collection, nil
	}
	collection, err := index.Connect(ctx, rt.client, rt.name, rt.policy)
	if err != nil {
		return nil, err
	}
	rt.collection = collection
	return collection, nil
}

// NewIngestionPipeline creates a pipeline over the runtime's staging log and provider.
func (rt *Runtime) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(rt.stagingLog, rt.provider, opts...)
}

// NewRunner creates a query runner over the runtime's collection.
func (rt *Runtime) NewRunner(ctx context.Context, opts ...search.Option) (*search.Runner, error) {
	collection, err := rt.Collection(ctx)
	if err != nil {
		return nil, err
	}
	if rt.queries != nil {
		opts = append([]search.Option{search.WithEmbedder(rt.queries)}, opts...)
	}
	return search.NewRunner(collection, rt.provider, opts...)
}

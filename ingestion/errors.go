package ingestion

import "errors"

var (
	// ErrStagingLogRequired is returned when a staging log is not provided.
	ErrStagingLogRequired = errors.New("staging log required")

	// ErrCollectionRequired is returned when Sync is called without a collection.
	ErrCollectionRequired = errors.New("index collection required")

	// ErrCheckpointRepositoryRequired is returned when a checkpoint repository is not provided.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrParserRequired is returned when WithParser is given a nil parser.
	ErrParserRequired = errors.New("document parser required")
)

package ai

import "errors"

var (
	// ErrEmbedderRequired indicates a nil Embedder was supplied.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidConfig indicates the AI configuration failed validation.
	ErrInvalidConfig = errors.New("invalid ai config")
)

package document

import "errors"

var (
	// ErrSourceRequired indicates Parse was called without a source.
	ErrSourceRequired = errors.New("document source is required")

	// ErrMalformedSegment indicates a JSONL segment line could not be decoded.
	ErrMalformedSegment = errors.New("malformed segment")
)

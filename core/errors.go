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


package core

import "errors"

// Pipeline error kinds. Callers match them with errors.Is.
var (
	// ErrEmptyResult indicates a document produced no usable chunks.
	ErrEmptyResult = errors.New("empty result")

	// ErrConfiguration indicates an invalid setting such as a non-positive
	// chunk size or a malformed source path.
	ErrConfiguration = errors.New("configuration error")

	// ErrIndexUnavailable indicates the similarity index could not be reached.
	// It is the only index error that is retried.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrIndexRejected indicates the similarity index refused a request.
	ErrIndexRejected = errors.New("index rejected request")

	// ErrLengthMismatch indicates parallel inputs of unequal length or
	// duplicate ids within one batch.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrSinkConflict indicates the output target exists and overwrite is off.
	ErrSinkConflict = errors.New("sink conflict")

	// ErrDimensionMismatch indicates embeddings of differing dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Record validation errors
var (
	// ErrInvalidChunkRecord indicates a ChunkRecord failed validation.
	ErrInvalidChunkRecord = errors.New("invalid chunk record")

	// ErrEmptyID indicates the record id is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyContent indicates the chunk text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyEmbedding indicates the record carries no embedding.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")

	// ErrChunkSizeMismatch indicates metadata.chunk_size disagrees with the text.
	ErrChunkSizeMismatch = errors.New("chunk size does not match text length")

	// ErrMissingTimestamp indicates processed_at was never stamped.
	ErrMissingTimestamp = errors.New("processed_at not set")
)

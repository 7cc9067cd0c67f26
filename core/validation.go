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

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateChunkRecord validates a ChunkRecord before it is staged.
//
// Validation rules:
//   - ID must not be empty
//   - Chunk must not be empty after trimming
//   - Metadata.ChunkSize must equal the character length of Chunk
//   - Embeddings must not be empty
//   - ProcessedAt must be set
func ValidateChunkRecord(record *ChunkRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidChunkRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyID)
	}

	if strings.TrimSpace(record.Chunk) == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidChunkRecord, record.ID, ErrEmptyContent)
	}

	if n := utf8.RuneCountInString(record.Chunk); record.Metadata.ChunkSize != n {
		return fmt.Errorf("%w: %s: %w (metadata %d, text %d)",
			ErrInvalidChunkRecord, record.ID, ErrChunkSizeMismatch, record.Metadata.ChunkSize, n)
	}

	if len(record.Embeddings) == 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidChunkRecord, record.ID, ErrEmptyEmbedding)
	}

	if record.ProcessedAt.IsZero() {
		return fmt.Errorf("%w: %s: %w", ErrInvalidChunkRecord, record.ID, ErrMissingTimestamp)
	}

	return nil
}

// ValidateChunkRecords validates every record, stopping at the first failure.
func ValidateChunkRecords(records []ChunkRecord) error {
	for i := range records {
		if err := ValidateChunkRecord(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/docstage/core"
)

// MarshalChunkRecord serializes a ChunkRecord to its staging line format.
func MarshalChunkRecord(record *core.ChunkRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalChunkRecord deserializes a ChunkRecord.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	var record core.ChunkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

type indexEntryWire struct {
	ID        string             `json:"id"`
	Document  string             `json:"document"`
	Metadata  core.ChunkMetadata `json:"metadata"`
	Embedding []float32          `json:"embedding"`
}

// MarshalIndexEntry serializes an IndexEntry.
func MarshalIndexEntry(entry *core.IndexEntry) ([]byte, error) {
	data, err := json.Marshal(indexEntryWire{
		ID:        entry.ID,
		Document:  entry.Document,
		Metadata:  entry.Metadata,
		Embedding: entry.Embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalIndexEntry deserializes an IndexEntry.
func UnmarshalIndexEntry(data []byte) (*core.IndexEntry, error) {
	var w indexEntryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.IndexEntry{
		ID:        w.ID,
		Document:  w.Document,
		Metadata:  w.Metadata,
		Embedding: w.Embedding,
	}, nil
}

// MarshalCheckpoint serializes a Checkpoint.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalCheckpoint deserializes a Checkpoint.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	var checkpoint core.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}

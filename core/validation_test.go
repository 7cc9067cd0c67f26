package core

import (
	"errors"
	"testing"
	"time"
)

func validRecord() ChunkRecord {
	return ChunkRecord{
		ProcessedAt: NewTimestamp(time.Now()),
		ID:          "doc_chunk_0",
		Chunk:       "Hello",
		Metadata:    BuildMetadata("doc", 0, nil, "Hello"),
		Embeddings:  []float32{0.1, 0.2},
	}
}

func TestValidateChunkRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ChunkRecord)
		wantErr error
	}{
		{
			name:    "valid record",
			mutate:  func(r *ChunkRecord) {},
			wantErr: nil,
		},
		{
			name:    "empty id",
			mutate:  func(r *ChunkRecord) { r.ID = "" },
			wantErr: ErrEmptyID,
		},
		{
			name:    "whitespace chunk",
			mutate:  func(r *ChunkRecord) { r.Chunk = "   "; r.Metadata.ChunkSize = 3 },
			wantErr: ErrEmptyContent,
		},
		{
			name:    "chunk size disagrees",
			mutate:  func(r *ChunkRecord) { r.Metadata.ChunkSize = 99 },
			wantErr: ErrChunkSizeMismatch,
		},
		{
			name:    "no embedding",
			mutate:  func(r *ChunkRecord) { r.Embeddings = nil },
			wantErr: ErrEmptyEmbedding,
		},
		{
			name:    "zero timestamp",
			mutate:  func(r *ChunkRecord) { r.ProcessedAt = Timestamp{} },
			wantErr: ErrMissingTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := ValidateChunkRecord(&rec)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunkRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunkRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidChunkRecord) {
				t.Errorf("error should wrap ErrInvalidChunkRecord")
			}
		})
	}
}

func TestValidateChunkRecord_Nil(t *testing.T) {
	if err := ValidateChunkRecord(nil); !errors.Is(err, ErrInvalidChunkRecord) {
		t.Errorf("ValidateChunkRecord(nil) error = %v", err)
	}
}

func TestValidateChunkRecords(t *testing.T) {
	good := validRecord()
	bad := validRecord()
	bad.Embeddings = nil

	if err := ValidateChunkRecords([]ChunkRecord{good, good}); err != nil {
		t.Errorf("unexpected error = %v", err)
	}
	if err := ValidateChunkRecords([]ChunkRecord{good, bad}); !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("error = %v, want ErrEmptyEmbedding", err)
	}
}

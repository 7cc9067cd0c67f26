package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docstage/core"
)

func TestMarshalUnmarshalChunkRecord(t *testing.T) {
	title := "Report"
	record := &core.ChunkRecord{
		ProcessedAt: core.NewTimestamp(time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)),
		ID:          "report.pdf_chunk_3",
		Chunk:       "quarterly results",
		Metadata:    core.BuildMetadata("report.pdf", 3, &title, "quarterly results"),
		Embeddings:  []float32{0.125, -0.5, 1e-7},
	}

	data, err := MarshalChunkRecord(record)
	require.NoError(t, err)

	decoded, err := UnmarshalChunkRecord(data)
	require.NoError(t, err)

	assert.Equal(t, record.ID, decoded.ID)
	assert.Equal(t, record.Chunk, decoded.Chunk)
	assert.Equal(t, record.Metadata, decoded.Metadata)
	assert.True(t, record.ProcessedAt.Equal(decoded.ProcessedAt.Time))
	require.Len(t, decoded.Embeddings, 3)
	for i := range record.Embeddings {
		assert.InDelta(t, record.Embeddings[i], decoded.Embeddings[i], 1e-9)
	}
}

func TestUnmarshalChunkRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", []byte(`{"id":"x","chunk":`)},
		{"bad timestamp", []byte(`{"processed_at":"later","id":"x"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalChunkRecord(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalIndexEntry(t *testing.T) {
	entry := &core.IndexEntry{
		ID:        "a_chunk_0",
		Document:  "text",
		Metadata:  core.BuildMetadata("a", 0, nil, "text"),
		Embedding: []float32{0.25, 0.75},
	}

	data, err := MarshalIndexEntry(entry)
	require.NoError(t, err)

	decoded, err := UnmarshalIndexEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)

	_, err = UnmarshalIndexEntry([]byte("nope"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

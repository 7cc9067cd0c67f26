package core

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// chunkSeparator joins a source identifier and a chunk ordinal.
const chunkSeparator = "_chunk_"

// SourceID derives the source identifier for a document path. The identifier
// is the final path element, so the same file always maps to the same ids
// regardless of the directory it was read from.
func SourceID(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("%w: source path is empty", ErrConfiguration)
	}
	if strings.HasSuffix(trimmed, "/") || strings.HasSuffix(trimmed, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: source path %q names a directory", ErrConfiguration, path)
	}
	base := filepath.Base(trimmed)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: source path %q has no file name", ErrConfiguration, path)
	}
	return base, nil
}

// Title derives a document title from its path: the file name without extension.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkID builds the identifier of the chunk at ordinal within source.
func ChunkID(source string, ordinal int) string {
	return source + chunkSeparator + strconv.Itoa(ordinal)
}

// BuildMetadata returns the metadata for a chunk of text at ordinal.
// ChunkSize is measured in characters, not bytes.
func BuildMetadata(source string, ordinal int, title *string, text string) ChunkMetadata {
	return ChunkMetadata{
		Source:     source,
		ChunkIndex: ordinal,
		Title:      title,
		ChunkSize:  utf8.RuneCountInString(text),
	}
}

// AssignChunks pairs every chunk with its id and metadata. Ids come from each
// chunk's Ordinal so the assignment does not depend on slice order.
func AssignChunks(source string, title *string, chunks []Chunk) []AssignedChunk {
	assigned := make([]AssignedChunk, len(chunks))
	for i, c := range chunks {
		assigned[i] = AssignedChunk{
			ID:       ChunkID(source, c.Ordinal),
			Text:     c.Text,
			Metadata: BuildMetadata(source, c.Ordinal, title, c.Text),
		}
	}
	return assigned
}

// Package chunker splits body text into fixed-size, non-overlapping chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/poiesic/docstage/core"
)

// DefaultChunkSize is the number of characters per window when none is configured.
const DefaultChunkSize = 100

// Chunker cuts each segment into consecutive windows of at most Size
// characters. Windows are trimmed and dropped when nothing is left.
type Chunker struct {
	size int
}

// New creates a Chunker. Size must be positive.
func New(size int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be greater than zero, got %d", core.ErrConfiguration, size)
	}
	return &Chunker{size: size}, nil
}

// Size returns the configured window size in characters.
func (c *Chunker) Size() int {
	return c.size
}

// Windows returns the raw windows of text before trimming. Concatenating them
// yields text unchanged.
func (c *Chunker) Windows(text string) []string {
	runes := []rune(text)
	windows := make([]string, 0, len(runes)/c.size+1)
	for start := 0; start < len(runes); start += c.size {
		end := min(start+c.size, len(runes))
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// Split chunks every segment in order. Ordinals count kept chunks across all
// segments. It returns core.ErrEmptyResult when no chunk survives trimming.
func (c *Chunker) Split(segments []string) ([]core.Chunk, error) {
	var chunks []core.Chunk
	for segIdx, segment := range segments {
		for _, window := range c.Windows(segment) {
			text := strings.TrimSpace(window)
			if text == "" {
				continue
			}
			chunks = append(chunks, core.Chunk{
				Text:    text,
				Segment: segIdx,
				Ordinal: len(chunks),
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text chunks found in %d segments", core.ErrEmptyResult, len(segments))
	}
	return chunks, nil
}

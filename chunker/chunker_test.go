package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docstage/core"
)

func TestNew(t *testing.T) {
	for _, size := range []int{0, -5} {
		_, err := New(size)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	}

	c, err := New(10)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Size())
}

func TestSplit_Windows(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	chunks, err := c.Split([]string{"Hello World, this is a test."})
	require.NoError(t, err)

	var texts []string
	for _, ch := range chunks {
		texts = append(texts, ch.Text)
	}
	assert.Equal(t, []string{"Hello Worl", "d, this is", "a test."}, texts)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, 0, ch.Segment)
	}
}

func TestSplit_OrdinalsSpanSegments(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	chunks, err := c.Split([]string{"abcdefg", "    ", "xyz"})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, core.Chunk{Text: "abcd", Segment: 0, Ordinal: 0}, chunks[0])
	assert.Equal(t, core.Chunk{Text: "efg", Segment: 0, Ordinal: 1}, chunks[1])
	assert.Equal(t, core.Chunk{Text: "xyz", Segment: 2, Ordinal: 2}, chunks[2])
}

func TestSplit_DropsBlankWindows(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)

	chunks, err := c.Split([]string{"ab    cd"})
	require.NoError(t, err)

	var texts []string
	for _, ch := range chunks {
		texts = append(texts, ch.Text)
	}
	// windows: "ab ", "   ", "cd"
	assert.Equal(t, []string{"ab", "cd"}, texts)
}

func TestSplit_Empty(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	tests := []struct {
		name     string
		segments []string
	}{
		{name: "no segments", segments: nil},
		{name: "whitespace only", segments: []string{"   ", "\n\t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := c.Split(tt.segments)
			assert.ErrorIs(t, err, core.ErrEmptyResult)
			assert.Empty(t, chunks)
		})
	}
}

func TestSplit_Properties(t *testing.T) {
	text := strings.Repeat("Ünïcödé text with spaces. ", 40)

	for _, size := range []int{1, 7, 50, 1000} {
		c, err := New(size)
		require.NoError(t, err)

		// Windows reassemble the original segment.
		assert.Equal(t, text, strings.Join(c.Windows(text), ""))

		chunks, err := c.Split([]string{text})
		require.NoError(t, err)
		for _, ch := range chunks {
			assert.NotEmpty(t, ch.Text)
			assert.Equal(t, strings.TrimSpace(ch.Text), ch.Text)
			assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), size)
		}
	}
}

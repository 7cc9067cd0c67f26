package jsonl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docstage/core"
)

type row struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestWrite_OneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []row{{"a", 1}, {"b<c", 2.5}}))

	assert.Equal(t, "{\"name\":\"a\",\"score\":1}\n{\"name\":\"b<c\",\"score\":2.5}\n", buf.String())
}

func TestRead(t *testing.T) {
	t.Run("skips blank lines", func(t *testing.T) {
		rows, err := Read[row](strings.NewReader("{\"name\":\"a\"}\n\n  \n{\"name\":\"b\"}\n"))
		require.NoError(t, err)
		assert.Equal(t, []row{{Name: "a"}, {Name: "b"}}, rows)
	})

	t.Run("partial line", func(t *testing.T) {
		_, err := Read[row](strings.NewReader("{\"name\":\"a\"}\n{\"name\":"))
		assert.ErrorIs(t, err, ErrMalformedLine)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "answers.jsonl")
	rows := []row{{"x", 0.1}}

	require.NoError(t, WriteFile(path, rows, false))

	got, err := ReadFile[row](path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	t.Run("conflict without overwrite", func(t *testing.T) {
		err := WriteFile(path, []row{{"y", 0.2}}, false)
		assert.ErrorIs(t, err, core.ErrSinkConflict)

		got, err := ReadFile[row](path)
		require.NoError(t, err)
		assert.Equal(t, rows, got, "existing file must be untouched")
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		require.NoError(t, WriteFile(path, []row{{"y", 0.2}}, true))

		got, err := ReadFile[row](path)
		require.NoError(t, err)
		assert.Equal(t, []row{{"y", 0.2}}, got)
	})

	t.Run("empty list", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.jsonl")
		require.NoError(t, WriteFile[row](empty, nil, false))
		data, err := os.ReadFile(empty)
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile[row](filepath.Join(t.TempDir(), "none.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// Package jsonl reads and writes JSON Lines: one JSON object per line.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/poiesic/docstage/core"
)

// ErrMalformedLine indicates a line that is not a valid JSON object of the
// expected shape.
var ErrMalformedLine = errors.New("malformed jsonl line")

// maxLineSize bounds a single line. Embedding vectors make lines long.
const maxLineSize = 64 * 1024 * 1024

// Encode appends one line per item to buf.
func Encode[T any](buf *bytes.Buffer, items []T) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("encode item %d: %w", i, err)
		}
	}
	return nil
}

// Write encodes items and writes them to w in a single call.
func Write[T any](w io.Writer, items []T) error {
	var buf bytes.Buffer
	if err := Encode(&buf, items); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Read decodes every non-blank line of r.
func Read[T any](r io.Reader) ([]T, error) {
	var items []T
	err := Scan(r, func(item T) error {
		items = append(items, item)
		return nil
	})
	return items, err
}

// Scan decodes r line by line and calls fn for each item. Blank lines are
// skipped.
func Scan[T any](r io.Reader, fn func(T) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrMalformedLine, line, err)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadFile decodes the file at path.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	items, err := Read[T](f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// WriteFile writes items to path, creating parent directories. When overwrite
// is false and path already exists it returns core.ErrSinkConflict without
// touching the file.
func WriteFile[T any](path string, items []T, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s already exists", core.ErrSinkConflict, path)
		}
		return err
	}

	if err := Write(f, items); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

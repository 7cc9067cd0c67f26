package document

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docstage/core"
)

// FileParser reads documents from the local filesystem.
//
// Files ending in .jsonl hold one Segment object per line. Markdown files are
// split into paragraphs and '#' headings become section headers. Anything else
// is read as plain text with paragraphs separated by blank lines.
type FileParser struct{}

var _ Parser = FileParser{}

// NewFileParser creates a FileParser.
func NewFileParser() FileParser {
	return FileParser{}
}

// Parse implements Parser.
func (FileParser) Parse(ctx context.Context, source string) (*Document, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrSourceRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	doc := &Document{Name: core.Title(source)}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".jsonl":
		doc.Segments, err = parseSegments(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	case ".md", ".markdown":
		doc.Segments = parseParagraphs(string(data), true)
	default:
		doc.Segments = parseParagraphs(string(data), false)
	}
	return doc, nil
}

func parseSegments(data []byte) ([]Segment, error) {
	var segments []Segment
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var seg Segment
		if err := json.Unmarshal(raw, &seg); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedSegment, line, err)
		}
		if seg.Label == "" {
			seg.Label = LabelText
		}
		segments = append(segments, seg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

func parseParagraphs(text string, markdown bool) []Segment {
	var segments []Segment
	var para []string

	flush := func() {
		if len(para) == 0 {
			return
		}
		segments = append(segments, Segment{Text: strings.Join(para, " "), Label: LabelText})
		para = para[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case markdown && strings.HasPrefix(trimmed, "#"):
			flush()
			segments = append(segments, Segment{
				Text:  strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
				Label: LabelSectionHeader,
			})
		default:
			para = append(para, trimmed)
		}
	}
	flush()
	return segments
}

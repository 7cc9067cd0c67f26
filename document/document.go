package document

import (
	"context"
	"strings"
)

// Segment labels produced by the file parser.
const (
	LabelText          = "text"
	LabelSectionHeader = "section_header"
)

// Segment is one labelled span of a parsed document.
type Segment struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Document is the output of a Parser.
type Document struct {
	// Name is the human readable document name, used as the chunk title.
	Name     string
	Segments []Segment
}

// Parser turns a source location into a Document.
type Parser interface {
	Parse(ctx context.Context, source string) (*Document, error)
}

// BodyText returns the trimmed text of every body segment, in order.
// Segments that are empty after trimming are skipped.
func BodyText(doc *Document) []string {
	if doc == nil {
		return nil
	}
	body := make([]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		if seg.Label != LabelText {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		body = append(body, text)
	}
	return body
}

// TitleOf returns a pointer to the document name, or nil when it is unknown.
func TitleOf(doc *Document) *string {
	if doc == nil || doc.Name == "" {
		return nil
	}
	name := doc.Name
	return &name
}

package search

import (
	"fmt"
	"io"

	"github.com/poiesic/docstage/core"
)

// Monitor provides hooks to observe a query run.
type Monitor interface {
	Start(query string)
	AfterQuery(query string, matches []core.Match)
	Finish(answers []core.AnswerResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterQuery(_ string, _ []core.Match) {}
func (n *noopMonitor) Finish(_ []core.AnswerResult)        {}

// PrintMonitor writes every query and its matches to a writer.
type PrintMonitor struct {
	w io.Writer
}

var _ Monitor = (*PrintMonitor)(nil)

// NewPrintMonitor creates a monitor that prints to w.
func NewPrintMonitor(w io.Writer) *PrintMonitor {
	return &PrintMonitor{w: w}
}

func (p *PrintMonitor) Start(query string) {
	fmt.Fprintf(p.w, "Query: %s\n", query)
}

func (p *PrintMonitor) AfterQuery(_ string, matches []core.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(p.w, "  (no matches)")
		return
	}
	for i, m := range matches {
		fmt.Fprintf(p.w, "  %d. [%.4f] %s\n", i+1, m.Similarity, m.Text)
	}
}

func (p *PrintMonitor) Finish(answers []core.AnswerResult) {
	fmt.Fprintf(p.w, "%d queries answered\n", len(answers))
}

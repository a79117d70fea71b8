// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/archive-importer/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintOutcome outputs a human-readable summary of a finished pipeline run.
func (p *Printer) PrintOutcome(importID uuid.UUID, outcome *pipeline.Outcome) {
	if outcome == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Import:  %s\n", importID))
	sb.WriteString(fmt.Sprintf("Status:  %s", outcome.Status))
	if outcome.Status != pipeline.OutcomeAlreadyCommitted {
		sb.WriteString(fmt.Sprintf("\nPending: %d review items", outcome.PendingReviewItems))
	}
	if outcome.DegenerateRetry {
		sb.WriteString("\nNote:    re-ran a committed import with zero extracted files")
	}

	p.printBox("Pipeline Result", sb.String())
}

// PrintStats outputs the per-stage stats accumulated on the import record,
// in pipeline order.
func (p *Printer) PrintStats(stats pipeline.Stats) {
	if len(stats) == 0 {
		return
	}

	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return statsRank(keys[i]) < statsRank(keys[j])
	})

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", key, compactJSON(stats[key])))
	}

	p.printBox("Stage Stats", sb.String())
}

// statsRank orders stage keys by pipeline position, with non-stage keys
// (like the pending review count) sorted last.
func statsRank(key string) int {
	if idx, ok := pipeline.StageIndex(key); ok {
		return idx
	}
	return len(pipeline.Stages())
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Package output provides consistent CLI output formatting for search
// results and history listings.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/search"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results prints a ranked list of search results with scores and notes.
func (w *Writer) Results(results []*search.ScoredResult) {
	if len(results) == 0 {
		w.Status("", "no results")
		return
	}

	for i, r := range results {
		title := r.Chunk.Title
		if title == "" {
			title = r.Chunk.URL
		}
		_, _ = fmt.Fprintf(w.out, "%2d. %s\n", i+1, title)
		_, _ = fmt.Fprintf(w.out, "    %s\n", r.Chunk.URL)
		_, _ = fmt.Fprintf(w.out, "    [%s] score=%.3f", r.SearchType, displayScore(r))
		if len(r.RelevanceNotes) > 0 {
			_, _ = fmt.Fprintf(w.out, "  (%s)", strings.Join(r.RelevanceNotes, "; "))
		}
		_, _ = fmt.Fprintln(w.out)

		if snippet := firstLine(r.Chunk.ChunkText); snippet != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", snippet)
		}
		_, _ = fmt.Fprintln(w.out)
	}
}

// History prints history entries as a compact table.
func (w *Writer) History(entries []*store.HistoryEntry) {
	if len(entries) == 0 {
		w.Status("", "no history")
		return
	}

	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "(untitled)"
		}
		_, _ = fmt.Fprintf(w.out, "%-19s  %3dx  %s\n    %s\n", e.LastVisitTime, e.VisitCount, title, e.URL)
	}
}

// DomainStats prints per-domain aggregates.
func (w *Writer) DomainStats(stats []*store.DomainStat) {
	if len(stats) == 0 {
		w.Status("", "no stats")
		return
	}

	_, _ = fmt.Fprintf(w.out, "%-40s %8s %8s\n", "DOMAIN", "PAGES", "VISITS")
	for _, st := range stats {
		_, _ = fmt.Fprintf(w.out, "%-40s %8d %8d\n", st.Domain, st.PageCount, st.TotalVisits)
	}
}

// displayScore picks the most meaningful score for a result: post-rerank
// when present, otherwise the fusion score.
func displayScore(r *search.ScoredResult) float64 {
	if r.FinalScore != 0 {
		return r.FinalScore
	}
	return r.CombinedScore
}

// firstLine returns the first non-empty line of text, truncated for display.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 120 {
			return line[:117] + "..."
		}
		return line
	}
	return ""
}

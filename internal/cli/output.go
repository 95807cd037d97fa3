// Package cli provides output formatting for the psearch command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/psearch-dev/psearch/internal/models"
)

// OutputFormat selects how search results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "compact":
		return OutputCompact, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes results to w in the given format.
func WriteSearchResults(w io.Writer, query string, results []models.SearchResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Query   string                `json:"query"`
			Results []models.SearchResult `json:"results"`
		}{Query: query, Results: results})
	case OutputCompact:
		for _, r := range results {
			fmt.Fprintf(w, "%.4f\t%s\t#%d\t%s\n", r.Score, r.Source, r.ChunkIndex, oneLine(Truncate(r.Content, 120)))
		}
		return nil
	default:
		writeSearchResultsText(w, query, results)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, query string, results []models.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", query)
		return
	}
	fmt.Fprintf(w, "\n%d result(s) for %q\n\n", len(results), query)
	for _, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "File: %s (chunk %d)\n", r.Source, r.ChunkIndex)
		fmt.Fprintf(w, "\n%s\n\n", Truncate(strings.TrimSpace(r.Content), 300))
	}
}

// WriteRefreshSummary writes the outcome of a refresh run.
func WriteRefreshSummary(w io.Writer, sum *models.RefreshSummary) {
	fmt.Fprintf(w, "indexed: %d, skipped: %d, removed: %d", sum.Indexed, sum.Skipped, sum.Removed)
	if sum.Errors > 0 {
		fmt.Fprintf(w, ", errors: %d", sum.Errors)
	}
	fmt.Fprintln(w)
}

// WriteStatus writes index status in the given format (text or json).
func WriteStatus(w io.Writer, st *models.IndexStatus, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "files:      %d\n", st.Sources)
	fmt.Fprintf(w, "fragments:  %d\n", st.Fragments)
	if st.Model != "" {
		fmt.Fprintf(w, "model:      %s\n", st.Model)
	}
	return nil
}

// Truncate shortens s to at most maxLen bytes, appending "..." when cut.
// The cut never lands inside a multi-byte rune.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

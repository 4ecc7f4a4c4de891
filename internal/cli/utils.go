// Package cli provides CLI utilities for vecbridge.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/vecbridge/internal/models"
	"github.com/hyperjump/vecbridge/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	total := 0
	for _, list := range response.Results {
		total += len(list)
	}
	fmt.Fprintf(w, "\nFound %d results for %d queries in %dms\n\n", total, len(response.Queries), response.QueryTime)
	for i, query := range response.Queries {
		if len(response.Queries) > 1 {
			fmt.Fprintf(w, "--- %s ---\n", query)
		}
		if i >= len(response.Results) || len(response.Results[i]) == 0 {
			fmt.Fprintln(w, "(no results)")
			fmt.Fprintln(w)
			continue
		}
		for _, result := range response.Results[i] {
			writeOneResult(w, result)
		}
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %d\n", result.Rank, result.Score, result.ID)
	fmt.Fprintf(w, "UID: %s\n", result.UID)
	if result.Tags != "" {
		fmt.Fprintf(w, "Tags: %s\n", result.Tags)
	}
	fmt.Fprintf(w, "\n%s\n", Truncate(result.Text, 200))
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	return utils.Truncate(s, maxLen)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/vecbridge/internal/cli"
	"github.com/hyperjump/vecbridge/internal/models"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search documents by similarity",
		Long: `Search documents. The arguments are joined into one query, so multi-word
queries work with or without quotes. With --batch every argument is its own
query and all of them are searched in one backend call.

Examples:
  vecbridge search machine learning
  vecbridge search --batch "cats" "rockets" --limit 3
  vecbridge search --output json "query"
  vecbridge search --server http://localhost:8080 "query"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			output, _ := cmd.Flags().GetString("output")
			serverURL, _ := cmd.Flags().GetString("server")
			batch, _ := cmd.Flags().GetBool("batch")

			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			query := buildSearchQuery(args, batch)
			query.Limit = limit
			if err := query.Validate(); err != nil {
				return err
			}

			var response *models.SearchResponse
			if serverURL != "" {
				response, err = searchViaHTTP(serverURL, query)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
			} else {
				components, err := initializeComponents(cmd)
				if err != nil {
					return err
				}
				defer components.Close()

				start := time.Now()
				texts := query.Texts()
				results, err := components.Embeddings.BatchSearch(cmd.Context(), texts, query.Limit)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				response = &models.SearchResponse{
					Queries:   texts,
					Results:   results,
					QueryTime: time.Since(start).Milliseconds(),
				}
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
		},
	}
	cmd.Flags().Int("limit", 10, "number of results per query")
	cmd.Flags().String("output", "text", "output format: text or json")
	cmd.Flags().String("server", "", "server URL (empty = open the index directly)")
	cmd.Flags().Bool("batch", false, "treat each argument as a separate query")
	return cmd
}

func parseOutputFormat(s string) (cli.SearchOutputFormat, error) {
	switch s {
	case "json":
		return cli.OutputJSON, nil
	case "text", "":
		return cli.OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting. In batch mode each arg is a query.
func buildSearchQuery(args []string, batch bool) *models.SearchQuery {
	if batch {
		queries := make([]string, 0, len(args))
		for _, a := range args {
			if q := strings.TrimSpace(a); q != "" {
				queries = append(queries, q)
			}
		}
		return &models.SearchQuery{Queries: queries}
	}
	return &models.SearchQuery{Query: strings.TrimSpace(strings.Join(args, " "))}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/vecbridge/internal/storage"
	"github.com/spf13/cobra"
)

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	Backend      string `json:"backend"`
	Dimensions   int    `json:"dimensions"`
	Metric       string `json:"metric"`
	Embedding    string `json:"embedding"`
	DatabasePath string `json:"database_path,omitempty"`
	IndexPath    string `json:"index_path,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Vectors        int64                 `json:"vectors"`
	Documents      int64                 `json:"documents"`
	Offset         int64                 `json:"offset"`
	Persistence    string                `json:"persistence"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func newCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of indexed vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			if serverURL != "" {
				var out struct {
					Count int64 `json:"count"`
				}
				if err := getJSON(serverURL, "/api/v1/count", &out); err != nil {
					return fmt.Errorf("count failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Count)
				return nil
			}
			components, err := initializeComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()
			n, err := components.Embeddings.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().String("server", "", "server URL (empty = open the index directly)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend, storage and index status",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			output, _ := cmd.Flags().GetString("output")

			var status statusResponse
			if serverURL != "" {
				if err := getJSON(serverURL, "/api/v1/status", &status); err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
			} else {
				components, err := initializeComponents(cmd)
				if err != nil {
					return err
				}
				defer components.Close()
				st, err := components.Embeddings.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
				cfg := components.Config
				status = statusResponse{
					Vectors:     st.Vectors,
					Documents:   st.Documents,
					Offset:      st.Offset,
					Persistence: st.Persistence,
					Config: &statusConfigResponse{
						Backend:      cfg.ANN.Backend,
						Dimensions:   cfg.ANN.Dimensions,
						Metric:       cfg.ANN.Metric,
						Embedding:    cfg.Embedding.Provider,
						DatabasePath: cfg.Storage.DatabasePath,
						IndexPath:    cfg.Storage.IndexPath,
					},
				}
				if usage, err := storage.DiskUsage(cfg.Storage.DatabasePath, cfg.Storage.IndexPath); err == nil {
					total := usage.Total()
					status.DiskUsageBytes = &total
				}
			}
			return writeStatus(cmd.OutOrStdout(), &status, output)
		},
	}
	cmd.Flags().String("server", "", "server URL (empty = open the index directly)")
	cmd.Flags().String("output", "text", "output format: text or json")
	return cmd
}

func writeStatus(w io.Writer, status *statusResponse, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "text", "":
		fmt.Fprintf(w, "vectors:        %d   # count reported by the backend\n", status.Vectors)
		fmt.Fprintf(w, "documents:      %d   # count of stored documents\n", status.Documents)
		fmt.Fprintf(w, "offset:         %d   # next id assigned on append\n", status.Offset)
		fmt.Fprintf(w, "persistence:    %s\n", status.Persistence)
		if status.DiskUsageBytes != nil {
			fmt.Fprintf(w, "disk_usage:     %d bytes\n", *status.DiskUsageBytes)
		}
		if c := status.Config; c != nil {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "# configuration")
			fmt.Fprintf(w, "backend:        %s\n", c.Backend)
			fmt.Fprintf(w, "dimensions:     %d\n", c.Dimensions)
			fmt.Fprintf(w, "metric:         %s\n", c.Metric)
			fmt.Fprintf(w, "embedding:      %s\n", c.Embedding)
			if c.DatabasePath != "" {
				fmt.Fprintf(w, "database_path:  %s\n", c.DatabasePath)
			}
			if c.IndexPath != "" {
				fmt.Fprintf(w, "index_path:     %s\n", c.IndexPath)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q; use text or json", output)
	}
}

func getJSON(serverURL, path string, out interface{}) error {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

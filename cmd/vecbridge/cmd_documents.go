package main

import (
	"fmt"
	"os"

	"github.com/hyperjump/vecbridge/internal/feed"
	"github.com/hyperjump/vecbridge/internal/models"
	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index FILE",
		Short: "Replace the index with the documents in FILE",
		Long: `Replace everything with the documents in FILE, one JSON object per line:

  {"uid": "doc-1", "text": "...", "tags": "news", "metadata": {"lang": "en"}}

Use "-" to read from stdin. Documents are assigned ids 0..N-1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocumentsFile(args[0])
			if err != nil {
				return err
			}
			components, err := initializeComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			indexed, err := components.Embeddings.Index(cmd.Context(), docs)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d document(s)\n", len(indexed))
			return nil
		},
	}
}

func newUpsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upsert FILE",
		Short: "Add or replace the documents in FILE",
		Long: `Add the documents in FILE (JSON lines, "-" for stdin). Documents whose uid
already exists replace the stored version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocumentsFile(args[0])
			if err != nil {
				return err
			}
			components, err := initializeComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			upserted, err := components.Embeddings.Upsert(cmd.Context(), docs)
			if err != nil {
				return fmt.Errorf("upsert failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Upserted %d document(s)\n", len(upserted))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete UID...",
		Short: "Delete documents by uid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := initializeComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			ids, err := components.Embeddings.Delete(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("deletion failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d document(s)\n", len(ids))
			return nil
		},
	}
}

func readDocumentsFile(path string) ([]*models.DocumentInput, error) {
	if path == "-" {
		return feed.ReadDocuments(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return feed.ReadDocuments(f)
}

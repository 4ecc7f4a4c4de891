package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/vecbridge/internal/feed"
	"github.com/hyperjump/vecbridge/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP API. File-backed indices are loaded from storage.index_path
on start and saved there on shutdown.

With --watch (or watch.directories in the config) every .jsonl file in the
given directories is upserted on start and whenever it changes; removing a
file deletes its documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := initializeComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()
			logger := components.Logger
			cfg := components.Config

			if host, _ := cmd.Flags().GetString("host"); host != "" {
				cfg.Server.Host = host
			}
			if port, _ := cmd.Flags().GetInt("port"); port != 0 {
				cfg.Server.Port = port
			}

			watchDirs, _ := cmd.Flags().GetStringSlice("watch")
			watchDirs = append(cfg.Watch.Directories, watchDirs...)
			if len(watchDirs) > 0 {
				f := feed.New(components.Embeddings, watchDirs, logger,
					feed.WithChunking(cfg.Watch.ChunkSize, cfg.Watch.ChunkOverlap))
				watchCtx, watchCancel := context.WithCancel(context.Background())
				defer watchCancel()
				if err := f.Start(watchCtx); err != nil {
					return err
				}
				defer f.Stop()
			}

			srv := server.NewServer(components.Embeddings, cfg, logger)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigChan:
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			logger.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("server shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().String("host", "", "listen host (overrides server.host)")
	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	cmd.Flags().StringSlice("watch", nil, "directory of .jsonl document files to keep in sync (repeatable)")
	return cmd
}

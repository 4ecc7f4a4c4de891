// Package main is the vecbridge CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/config"
	"github.com/hyperjump/vecbridge/internal/embedding"
	"github.com/hyperjump/vecbridge/internal/embeddings"
	"github.com/hyperjump/vecbridge/internal/storage"
	"github.com/hyperjump/vecbridge/internal/vector"
	"github.com/hyperjump/vecbridge/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vecbridge/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vecbridge",
		Short: "Embeddings index over pluggable ANN backends",
		Long: `vecbridge embeds documents and stores their vectors in a pluggable
approximate nearest neighbor backend (memory, hnsw or qdrant).

Documents live in a local SQLite store; the vectors live in the configured
backend and are searched by similarity.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newIndexCmd(),
		newUpsertCmd(),
		newDeleteCmd(),
		newSearchCmd(),
		newCountCmd(),
		newStatusCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vecbridge version %s\n", version)
		},
	}
}

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, so running from a project directory
// picks up the project's config; with neither present the defaults are used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized services.
type Components struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger
	Embeddings *embeddings.Embeddings
}

// Close checkpoints file-backed indices and releases everything.
func (c *Components) Close() {
	if c.Embeddings == nil {
		return
	}
	if err := c.Embeddings.Save(c.Config.Storage.IndexPath); err != nil {
		c.Logger.Warn("index save failed", zap.String("path", c.Config.Storage.IndexPath), zap.Error(err))
	}
	if err := c.Embeddings.Close(); err != nil {
		c.Logger.Warn("close failed", zap.Error(err))
	}
	_ = c.Logger.Sync()
}

// initializeComponents loads config from the command's flags and builds the
// embeddings host over the configured store, embedder and backend.
func initializeComponents(cmd *cobra.Command) (*Components, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	e, err := buildEmbeddings(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Components{Config: cfg, ConfigPath: resolved, Logger: logger, Embeddings: e}, nil
}

func buildEmbeddings(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*embeddings.Embeddings, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Embedding.Dimensions != cfg.ANN.Dimensions {
		return nil, ann.Configurationf("embedding dimensions %d do not match ann dimensions %d",
			cfg.Embedding.Dimensions, cfg.ANN.Dimensions)
	}
	if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	backend, err := vector.NewBackend(ctx, &cfg.ANN, logger)
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.ANN.Backend, err)
	}
	logger.Info("ann backend initialized",
		zap.String("backend", cfg.ANN.Backend),
		zap.String("metric", cfg.ANN.Metric),
		zap.Int("dimensions", cfg.ANN.Dimensions),
		zap.Int64("offset", backend.Offset()),
	)

	e := embeddings.New(store, embedder, backend, embeddings.WithLogger(logger))
	if err := e.Load(ctx, cfg.Storage.IndexPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

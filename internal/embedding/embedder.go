// Package embedding turns text into vectors for the ANN backends.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/vecbridge/internal/config"
	"go.uber.org/zap"
)

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder named by cfg.Provider ("mock" or "openai"),
// wrapped in an LRU cache when cfg.CacheSize is positive.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		e   Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "mock", "":
		e = NewMockEmbedder(cfg.Dimensions)
	case "openai":
		e, err = NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, openai)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", e.Dimensions()),
	)
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}

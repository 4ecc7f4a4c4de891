// Package vector wires the available ANN backends into a registry and builds
// the one selected by configuration.
package vector

import (
	"context"
	"sync"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/ann/hnsw"
	"github.com/hyperjump/vecbridge/internal/ann/memory"
	"github.com/hyperjump/vecbridge/internal/ann/qdrant"
	"github.com/hyperjump/vecbridge/internal/config"
	"go.uber.org/zap"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *ann.Registry
)

// DefaultRegistry returns the registry holding every built-in backend:
// "memory" (exact, file-backed), "hnsw" (approximate, file-backed) and
// "qdrant" (server-backed).
func DefaultRegistry() *ann.Registry {
	defaultOnce.Do(func() {
		r := ann.NewRegistry()
		for name, f := range map[string]ann.Factory{
			memory.Name: memory.Factory,
			hnsw.Name:   hnsw.Factory,
			qdrant.Name: qdrant.Factory,
		} {
			if err := r.Register(name, f); err != nil {
				panic(err)
			}
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewBackend creates the backend named by cfg.Backend.
// Supported: "memory" (default), "hnsw", "qdrant".
func NewBackend(ctx context.Context, cfg *config.ANNConfig, logger *zap.Logger) (ann.Backend, error) {
	if cfg != nil && cfg.Backend == "" {
		c := *cfg
		c.Backend = memory.Name
		cfg = &c
	}
	return DefaultRegistry().New(ctx, cfg, logger)
}

// Backends lists the registered backend names.
func Backends() []string {
	return DefaultRegistry().Names()
}

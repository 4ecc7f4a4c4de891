package ann

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/vecbridge/internal/config"
	"go.uber.org/zap"
)

// Factory builds a Backend from the engine configuration.
type Factory func(ctx context.Context, cfg *config.ANNConfig, logger *zap.Logger) (Backend, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Names are case-insensitive and must be unique.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || f == nil {
		return fmt.Errorf("register backend: name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("register backend: %q already registered", key)
	}
	r.factories[key] = f
	return nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the backend named by cfg.Backend.
func (r *Registry) New(ctx context.Context, cfg *config.ANNConfig, logger *zap.Logger) (Backend, error) {
	if cfg == nil {
		return nil, Configurationf("ann configuration is required")
	}
	key := strings.ToLower(strings.TrimSpace(cfg.Backend))
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, Configurationf("unknown backend %q (supported: %s)", cfg.Backend, strings.Join(r.Names(), ", "))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return f(ctx, cfg, logger.With(zap.String("backend", key)))
}

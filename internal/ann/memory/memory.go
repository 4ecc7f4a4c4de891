// Package memory provides an exact, in-process ANN backend using brute-force search.
// Suitable for tests and small collections; persisted with explicit Save/Load.
package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/ann/snapshot"
	"github.com/hyperjump/vecbridge/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Name is the registry name of this backend.
const Name = "memory"

// Index is an in-memory vector index scoring every stored vector per query.
type Index struct {
	dimensions int
	metric     ann.Metric
	ids        []int64
	vectors    [][]float32
	offset     ann.Offset
	logger     *zap.Logger
	mu         sync.RWMutex
}

var _ ann.Backend = (*Index)(nil)

// New creates an empty in-memory index from the engine configuration.
func New(cfg *config.ANNConfig, logger *zap.Logger) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, ann.Configurationf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	metric, err := ann.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		dimensions: cfg.Dimensions,
		metric:     metric,
		ids:        make([]int64, 0),
		vectors:    make([][]float32, 0),
		logger:     logger,
	}, nil
}

// Factory adapts New to ann.Factory.
func Factory(_ context.Context, cfg *config.ANNConfig, logger *zap.Logger) (ann.Backend, error) {
	return New(cfg, logger)
}

// Index discards all vectors, resets the offset and appends vectors from id 0.
func (m *Index) Index(ctx context.Context, vectors [][]float32) error {
	if err := ann.CheckDimensions(vectors, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make([]int64, 0, len(vectors))
	m.vectors = make([][]float32, 0, len(vectors))
	m.offset.Reset()
	m.appendLocked(vectors)
	return nil
}

// Append stores vectors with ids starting at the current offset.
func (m *Index) Append(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := ann.CheckDimensions(vectors, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(vectors)
	return nil
}

func (m *Index) appendLocked(vectors [][]float32) {
	for i, id := range m.offset.IDs(len(vectors)) {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	m.offset.Advance(len(vectors))
}

// Delete removes vectors by id by rebuilding the slices. Unknown ids are ignored.
func (m *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	removeSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newIDs := make([]int64, 0, len(m.ids))
	newVectors := make([][]float32, 0, len(m.vectors))
	for i, id := range m.ids {
		if !removeSet[id] {
			newIDs = append(newIDs, id)
			newVectors = append(newVectors, m.vectors[i])
		}
	}
	m.ids = newIDs
	m.vectors = newVectors
	return nil
}

// Search scores every stored vector against each query. Queries are scored in
// parallel within the call.
func (m *Index) Search(ctx context.Context, queries [][]float32, limit int) ([][]ann.Result, error) {
	if err := ann.CheckDimensions(queries, m.dimensions); err != nil {
		return nil, err
	}
	out := ann.EmptyResults(len(queries))
	if limit <= 0 || len(queries) == 0 {
		return out, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.ids) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for qi, query := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[qi] = m.topK(query, limit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// topK must be called with m.mu held for reading.
func (m *Index) topK(query []float32, k int) []ann.Result {
	scores := make([]ann.Result, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = ann.Result{ID: m.ids[i], Score: m.metric.Similarity(query, vec)}
	}
	ann.SortResults(scores)
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}

// Count returns the number of stored vectors.
func (m *Index) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.ids)), nil
}

// Offset returns the next id Append will assign.
func (m *Index) Offset() int64 {
	return m.offset.Current()
}

// Persistence reports that this index must be saved to a file explicitly.
func (m *Index) Persistence() ann.Persistence {
	return ann.FileBacked
}

// Save writes a checkpoint of all vectors and the offset to path.
func (m *Index) Save(path string) error {
	if path == "" {
		return ann.Configurationf("save path is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	err := snapshot.Write(path, &snapshot.Snapshot{
		Dimensions: m.dimensions,
		Metric:     m.metric,
		Offset:     m.offset.Current(),
		IDs:        m.ids,
		Vectors:    m.vectors,
	})
	if err != nil {
		return fmt.Errorf("save memory index: %w", err)
	}
	m.logger.Debug("memory index saved", zap.String("path", path), zap.Int("count", len(m.ids)))
	return nil
}

// Load replaces the in-memory contents with the checkpoint at path.
// Dimension and metric must match the configuration.
func (m *Index) Load(path string) error {
	if path == "" {
		return ann.Configurationf("load path is required")
	}
	s, err := snapshot.Read(path)
	if err != nil {
		return fmt.Errorf("load memory index: %w", err)
	}
	if err := s.Validate(m.dimensions, m.metric); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = s.IDs
	m.vectors = s.Vectors
	m.offset.Set(s.NextID())
	m.logger.Debug("memory index loaded",
		zap.String("path", path),
		zap.Int("count", len(m.ids)),
		zap.Int64("offset", m.offset.Current()),
	)
	return nil
}

// Close is a no-op for the in-memory index.
func (m *Index) Close() error {
	return nil
}

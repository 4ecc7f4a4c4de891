// Package hnsw provides an approximate, in-process ANN backend built on a
// Hierarchical Navigable Small World graph (github.com/coder/hnsw).
//
// The graph's own Delete can leave dangling neighbor pointers that panic during
// Search, so the index keeps a shadow map of every vector and rebuilds the
// graph whenever nodes are removed.
package hnsw

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/ann/snapshot"
	"github.com/hyperjump/vecbridge/internal/config"
	"go.uber.org/zap"
)

// Name is the registry name of this backend.
const Name = "hnsw"

const (
	defaultM        = 16
	defaultMl       = 0.25
	defaultEfSearch = 100
)

// Index is an approximate vector index over an in-memory HNSW graph.
type Index struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[int64]
	vectors    map[int64][]float32
	dimensions int
	metric     ann.Metric
	params     config.HNSWConfig
	offset     ann.Offset
	logger     *zap.Logger
}

var _ ann.Backend = (*Index)(nil)

// New creates an empty graph index. Zero tuning values fall back to
// m=16, ml=0.25, ef_search=100.
func New(cfg *config.ANNConfig, logger *zap.Logger) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, ann.Configurationf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	metric, err := ann.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	params := cfg.HNSW
	if params.M < 0 || params.Ml < 0 || params.EfSearch < 0 {
		return nil, ann.Configurationf("hnsw parameters must not be negative")
	}
	if params.M == 0 {
		params.M = defaultM
	}
	if params.Ml == 0 {
		params.Ml = defaultMl
	}
	if params.EfSearch == 0 {
		params.EfSearch = defaultEfSearch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Index{
		vectors:    make(map[int64][]float32),
		dimensions: cfg.Dimensions,
		metric:     metric,
		params:     params,
		logger:     logger,
	}
	h.graph = h.newGraph()
	return h, nil
}

// Factory adapts New to ann.Factory.
func Factory(_ context.Context, cfg *config.ANNConfig, logger *zap.Logger) (ann.Backend, error) {
	return New(cfg, logger)
}

func (h *Index) newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = h.params.M
	g.Ml = h.params.Ml
	g.EfSearch = h.params.EfSearch
	g.Distance = distanceFunc(h.metric)
	return g
}

// distanceFunc maps a metric onto a graph distance where smaller is nearer.
func distanceFunc(m ann.Metric) hnsw.DistanceFunc {
	switch m {
	case ann.L2:
		return hnsw.EuclideanDistance
	case ann.InnerProduct:
		return func(a, b []float32) float32 {
			return float32(-ann.InnerProductOf(a, b))
		}
	default:
		return hnsw.CosineDistance
	}
}

// rebuild constructs a fresh graph from the shadow map, inserting in id order
// so the layout does not depend on map iteration. Caller must hold h.mu.
func (h *Index) rebuild() {
	ids := make([]int64, 0, len(h.vectors))
	for id := range h.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]hnsw.Node[int64], 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, hnsw.MakeNode(id, h.vectors[id]))
	}
	h.graph = h.newGraph()
	if len(nodes) > 0 {
		h.graph.Add(nodes...)
	}
}

// Index discards the graph, resets the offset and appends vectors from id 0.
func (h *Index) Index(ctx context.Context, vectors [][]float32) error {
	if err := ann.CheckDimensions(vectors, h.dimensions); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vectors = make(map[int64][]float32, len(vectors))
	h.graph = h.newGraph()
	h.offset.Reset()
	h.appendLocked(vectors)
	return nil
}

// Append inserts vectors with ids starting at the current offset.
func (h *Index) Append(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := ann.CheckDimensions(vectors, h.dimensions); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(vectors)
	return nil
}

func (h *Index) appendLocked(vectors [][]float32) {
	if len(vectors) == 0 {
		return
	}
	nodes := make([]hnsw.Node[int64], 0, len(vectors))
	for i, id := range h.offset.IDs(len(vectors)) {
		cp := make([]float32, h.dimensions)
		copy(cp, vectors[i])
		h.vectors[id] = cp
		nodes = append(nodes, hnsw.MakeNode(id, cp))
	}
	h.graph.Add(nodes...)
	h.offset.Advance(len(vectors))
}

// Delete removes vectors by id. Unknown ids are ignored; the graph is only
// rebuilt when something was removed.
func (h *Index) Delete(ctx context.Context, ids []int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := h.vectors[id]; ok {
			delete(h.vectors, id)
			removed++
		}
	}
	if removed > 0 {
		h.rebuild()
		h.logger.Debug("hnsw graph rebuilt after delete", zap.Int("removed", removed), zap.Int("remaining", len(h.vectors)))
	}
	return nil
}

// Search returns up to limit neighbors per query ordered by descending score.
func (h *Index) Search(ctx context.Context, queries [][]float32, limit int) ([][]ann.Result, error) {
	if err := ann.CheckDimensions(queries, h.dimensions); err != nil {
		return nil, err
	}
	out := ann.EmptyResults(len(queries))
	if limit <= 0 {
		return out, nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph.Len() == 0 {
		return out, nil
	}
	for qi, query := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes := h.graph.Search(query, limit)
		hits := make([]ann.Result, 0, len(nodes))
		for _, n := range nodes {
			hits = append(hits, ann.Result{ID: n.Key, Score: h.metric.Similarity(query, n.Value)})
		}
		ann.SortResults(hits)
		out[qi] = hits
	}
	return out, nil
}

// Count returns the number of stored vectors.
func (h *Index) Count(ctx context.Context) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.vectors)), nil
}

// Offset returns the next id Append will assign.
func (h *Index) Offset() int64 {
	return h.offset.Current()
}

// Persistence reports that the graph must be saved to a file explicitly.
func (h *Index) Persistence() ann.Persistence {
	return ann.FileBacked
}

// Save writes the shadow vectors and offset to path. The graph itself is
// rebuilt on Load.
func (h *Index) Save(path string) error {
	if path == "" {
		return ann.Configurationf("save path is required")
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := &snapshot.Snapshot{
		Dimensions: h.dimensions,
		Metric:     h.metric,
		Offset:     h.offset.Current(),
		IDs:        make([]int64, 0, len(h.vectors)),
		Vectors:    make([][]float32, 0, len(h.vectors)),
	}
	for id := range h.vectors {
		s.IDs = append(s.IDs, id)
	}
	sort.Slice(s.IDs, func(i, j int) bool { return s.IDs[i] < s.IDs[j] })
	for _, id := range s.IDs {
		s.Vectors = append(s.Vectors, h.vectors[id])
	}
	if err := snapshot.Write(path, s); err != nil {
		return fmt.Errorf("save hnsw index: %w", err)
	}
	h.logger.Debug("hnsw index saved", zap.String("path", path), zap.Int("count", len(s.IDs)))
	return nil
}

// Load replaces the graph with the checkpoint at path.
func (h *Index) Load(path string) error {
	if path == "" {
		return ann.Configurationf("load path is required")
	}
	s, err := snapshot.Read(path)
	if err != nil {
		return fmt.Errorf("load hnsw index: %w", err)
	}
	if err := s.Validate(h.dimensions, h.metric); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vectors = make(map[int64][]float32, len(s.IDs))
	for i, id := range s.IDs {
		h.vectors[id] = s.Vectors[i]
	}
	h.rebuild()
	h.offset.Set(s.NextID())
	h.logger.Debug("hnsw index loaded",
		zap.String("path", path),
		zap.Int("count", len(h.vectors)),
		zap.Int64("offset", h.offset.Current()),
	)
	return nil
}

// Close releases the graph.
func (h *Index) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = h.newGraph()
	h.vectors = make(map[int64][]float32)
	return nil
}

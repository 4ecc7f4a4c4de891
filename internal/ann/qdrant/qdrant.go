// Package qdrant adapts a Qdrant collection, reached over gRPC, to ann.Backend.
//
// Host ids map to numeric point ids. The collection lives on the server, so
// Save and Load do nothing beyond logging.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/config"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Name is the registry name of this backend.
const Name = "qdrant"

const defaultCollection = "embeddings"

var distances = map[ann.Metric]qdrant.Distance{
	ann.Cosine:       qdrant.Distance_Cosine,
	ann.L2:           qdrant.Distance_Euclid,
	ann.InnerProduct: qdrant.Distance_Dot,
}

// client is the subset of *qdrant.Client used by the adapter.
type client interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	QueryBatch(ctx context.Context, req *qdrant.QueryBatchPoints) ([]*qdrant.BatchResult, error)
	Close() error
}

// Index is a server-backed collection in Qdrant.
type Index struct {
	client     client
	collection string
	dimensions int
	metric     ann.Metric
	distance   qdrant.Distance
	tuning     config.QdrantHNSW
	timeout    time.Duration
	offset     ann.Offset
	mu         sync.Mutex
	logger     *zap.Logger
}

var _ ann.Backend = (*Index)(nil)

// New connects to the configured server and reconciles the offset with the
// collection's current point count.
func New(ctx context.Context, cfg *config.ANNConfig, logger *zap.Logger) (*Index, error) {
	host, port, useTLS, err := endpoint(&cfg.Qdrant)
	if err != nil {
		return nil, err
	}
	if _, _, err := validate(cfg); err != nil {
		return nil, err
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 cfg.Qdrant.APIKey,
		UseTLS:                 useTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, ann.Unavailable("connect", err)
	}
	idx, err := newWithClient(ctx, cfg, c, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return idx, nil
}

// Factory adapts New to ann.Factory.
func Factory(ctx context.Context, cfg *config.ANNConfig, logger *zap.Logger) (ann.Backend, error) {
	return New(ctx, cfg, logger)
}

func newWithClient(ctx context.Context, cfg *config.ANNConfig, c client, logger *zap.Logger) (*Index, error) {
	metric, distance, err := validate(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collection := cfg.Qdrant.Collection
	if collection == "" {
		collection = defaultCollection
	}
	q := &Index{
		client:     c,
		collection: collection,
		dimensions: cfg.Dimensions,
		metric:     metric,
		distance:   distance,
		tuning:     cfg.Qdrant.HNSW,
		timeout:    cfg.Qdrant.Timeout,
		logger:     logger.With(zap.String("collection", collection)),
	}

	n, err := q.count(ctx)
	switch {
	case err == nil:
		q.offset.Set(n)
	case status.Code(err) == codes.NotFound:
		q.logger.Debug("collection does not exist yet, starting at offset 0")
	default:
		return nil, err
	}
	q.logger.Debug("qdrant backend ready", zap.Int64("offset", q.offset.Current()))
	return q, nil
}

func validate(cfg *config.ANNConfig) (ann.Metric, qdrant.Distance, error) {
	if cfg.Dimensions <= 0 {
		return "", 0, ann.Configurationf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	metric, err := ann.ParseMetric(cfg.Metric)
	if err != nil {
		return "", 0, err
	}
	distance, ok := distances[metric]
	if !ok {
		return "", 0, ann.Configurationf("metric %q has no qdrant distance", metric)
	}
	return metric, distance, nil
}

// endpoint resolves host, port and TLS from either url or host/port.
func endpoint(cfg *config.QdrantConfig) (string, int, bool, error) {
	host, port, useTLS := cfg.Host, cfg.Port, cfg.UseTLS
	if cfg.URL == "" {
		return host, port, useTLS, nil
	}
	raw := cfg.URL
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", 0, false, ann.Configurationf("invalid qdrant url %q: %v", raw, err)
		}
		switch u.Scheme {
		case "https":
			useTLS = true
		case "http", "grpc":
		default:
			return "", 0, false, ann.Configurationf("unsupported qdrant url scheme %q", u.Scheme)
		}
		raw = u.Host
	}
	h, p, err := net.SplitHostPort(raw)
	if err != nil {
		return raw, port, useTLS, nil
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 {
		return "", 0, false, ann.Configurationf("invalid qdrant port %q", p)
	}
	return h, n, useTLS, nil
}

// callCtx applies the per-call timeout, if any.
func (q *Index) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout > 0 {
		return context.WithTimeout(ctx, q.timeout)
	}
	return context.WithCancel(ctx)
}

// classify wraps transport failures with ann.ErrBackendUnavailable and leaves
// engine errors unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ann.Unavailable(op, err)
	}
	return fmt.Errorf("qdrant %s: %w", op, err)
}

// Index drops and recreates the collection, then uploads vectors from id 0.
func (q *Index) Index(ctx context.Context, vectors [][]float32) error {
	if err := ann.CheckDimensions(vectors, q.dimensions); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.recreate(ctx); err != nil {
		return err
	}
	q.offset.Reset()
	q.logger.Info("collection recreated", zap.Int("dimensions", q.dimensions), zap.String("metric", string(q.metric)))
	return q.appendLocked(ctx, vectors)
}

func (q *Index) recreate(ctx context.Context) error {
	cctx, cancel := q.callCtx(ctx)
	defer cancel()

	exists, err := q.client.CollectionExists(cctx, q.collection)
	if err != nil {
		return classify("collection exists", err)
	}
	if exists {
		if err := q.client.DeleteCollection(cctx, q.collection); err != nil {
			return classify("delete collection", err)
		}
	}
	req := &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: q.distance,
		}),
	}
	if t := q.tuning; t.M != nil || t.EfConstruct != nil || t.FullScanThreshold != nil {
		req.HnswConfig = &qdrant.HnswConfigDiff{
			M:                 t.M,
			EfConstruct:       t.EfConstruct,
			FullScanThreshold: t.FullScanThreshold,
		}
	}
	if err := q.client.CreateCollection(cctx, req); err != nil {
		return classify("create collection", err)
	}
	return nil
}

// Append uploads vectors in one upsert with ids starting at the current offset.
func (q *Index) Append(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := ann.CheckDimensions(vectors, q.dimensions); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.appendLocked(ctx, vectors)
}

func (q *Index) appendLocked(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	ids := q.offset.IDs(len(vectors))
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, vec := range vectors {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(ids[i])),
			Vectors: qdrant.NewVectorsDense(vec),
		}
	}

	cctx, cancel := q.callCtx(ctx)
	defer cancel()
	_, err := q.client.Upsert(cctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return classify("upsert", err)
	}
	q.offset.Advance(len(vectors))
	q.logger.Debug("points upserted", zap.Int("count", len(vectors)), zap.Int64("offset", q.offset.Current()))
	return nil
}

// Delete removes points by host id. Negative ids cannot exist and are skipped.
func (q *Index) Delete(ctx context.Context, ids []int64) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		if id >= 0 {
			pointIDs = append(pointIDs, qdrant.NewIDNum(uint64(id)))
		}
	}
	if len(pointIDs) == 0 {
		return nil
	}
	cctx, cancel := q.callCtx(ctx)
	defer cancel()
	_, err := q.client.Delete(cctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return classify("delete", err)
	}
	q.logger.Debug("points deleted", zap.Int("count", len(pointIDs)))
	return nil
}

// Search runs all queries in one batch request. Euclidean distances are
// converted to 1/(1+d) so higher is always better.
func (q *Index) Search(ctx context.Context, queries [][]float32, limit int) ([][]ann.Result, error) {
	if err := ann.CheckDimensions(queries, q.dimensions); err != nil {
		return nil, err
	}
	out := ann.EmptyResults(len(queries))
	if limit <= 0 || len(queries) == 0 {
		return out, nil
	}

	var params *qdrant.SearchParams
	if q.tuning.EfSearch != nil {
		params = &qdrant.SearchParams{HnswEf: q.tuning.EfSearch}
	}
	reqs := make([]*qdrant.QueryPoints, len(queries))
	for i, vec := range queries {
		reqs[i] = &qdrant.QueryPoints{
			CollectionName: q.collection,
			Query:          qdrant.NewQuery(vec...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			Params:         params,
		}
	}

	cctx, cancel := q.callCtx(ctx)
	defer cancel()
	batches, err := q.client.QueryBatch(cctx, &qdrant.QueryBatchPoints{
		CollectionName: q.collection,
		QueryPoints:    reqs,
	})
	if err != nil {
		return nil, classify("query batch", err)
	}
	if len(batches) != len(queries) {
		return nil, fmt.Errorf("qdrant query batch: got %d result sets for %d queries", len(batches), len(queries))
	}

	for i, batch := range batches {
		hits := make([]ann.Result, 0, len(batch.GetResult()))
		for _, p := range batch.GetResult() {
			score := float64(p.GetScore())
			if q.metric == ann.L2 {
				score = ann.L2Similarity(score)
			}
			hits = append(hits, ann.Result{ID: int64(p.GetId().GetNum()), Score: score})
		}
		ann.SortResults(hits)
		if len(hits) > limit {
			hits = hits[:limit]
		}
		out[i] = hits
	}
	return out, nil
}

// Count returns the exact number of points in the collection.
func (q *Index) Count(ctx context.Context) (int64, error) {
	return q.count(ctx)
}

func (q *Index) count(ctx context.Context) (int64, error) {
	cctx, cancel := q.callCtx(ctx)
	defer cancel()
	n, err := q.client.Count(cctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify("count", err)
	}
	return int64(n), nil
}

// Offset returns the next id Append will assign.
func (q *Index) Offset() int64 {
	return q.offset.Current()
}

// Persistence reports that the server owns durability.
func (q *Index) Persistence() ann.Persistence {
	return ann.ServerBacked
}

// Save is a no-op; the server persists the collection.
func (q *Index) Save(path string) error {
	q.logger.Debug("save skipped for server-backed collection", zap.String("path", path))
	return nil
}

// Load cannot restore a server collection from a file. It logs a warning and
// returns nil.
func (q *Index) Load(path string) error {
	q.logger.Warn("load ignored for server-backed collection",
		zap.String("path", path),
		zap.Error(fmt.Errorf("%w: load from file", ann.ErrUnsupportedOperation)),
	)
	return nil
}

// Close releases the gRPC connections.
func (q *Index) Close() error {
	return q.client.Close()
}

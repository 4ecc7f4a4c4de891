package hnsw

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, dim int, metric string) *Index {
	t.Helper()
	idx, err := New(&config.ANNConfig{Dimensions: dim, Metric: metric}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestNew_Defaults(t *testing.T) {
	idx := newIndex(t, 4, "cosine")
	assert.Equal(t, 16, idx.params.M)
	assert.Equal(t, 0.25, idx.params.Ml)
	assert.Equal(t, 100, idx.params.EfSearch)

	custom, err := New(&config.ANNConfig{
		Dimensions: 4,
		Metric:     "l2",
		HNSW:       config.HNSWConfig{M: 8, EfSearch: 40},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, custom.graph.M)
	assert.Equal(t, 40, custom.graph.EfSearch)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&config.ANNConfig{Dimensions: -1, Metric: "cosine"}, nil)
	assert.True(t, ann.IsConfiguration(err))
	_, err = New(&config.ANNConfig{Dimensions: 4, Metric: "jaccard"}, nil)
	assert.True(t, ann.IsConfiguration(err))
	_, err = New(&config.ANNConfig{Dimensions: 4, Metric: "ip", HNSW: config.HNSWConfig{M: -2}}, nil)
	assert.True(t, ann.IsConfiguration(err))
}

func TestIndex_AppendSearch(t *testing.T) {
	for _, metric := range []string{"cosine", "l2", "ip"} {
		t.Run(metric, func(t *testing.T) {
			idx := newIndex(t, 3, metric)
			ctx := context.Background()

			require.NoError(t, idx.Append(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}))
			require.NoError(t, idx.Append(ctx, [][]float32{{0, 0, 1}}))
			assert.Equal(t, int64(3), idx.Offset())

			res, err := idx.Search(ctx, [][]float32{{0, 0, 1}, {1, 0, 0}}, 2)
			require.NoError(t, err)
			require.Len(t, res, 2)
			require.NotEmpty(t, res[0])
			assert.Equal(t, int64(2), res[0][0].ID)
			assert.Equal(t, int64(0), res[1][0].ID)
			for _, hits := range res {
				assert.LessOrEqual(t, len(hits), 2)
				for i := 1; i < len(hits); i++ {
					assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
				}
			}
		})
	}
}

func TestIndex_IndexResets(t *testing.T) {
	idx := newIndex(t, 2, "cosine")
	ctx := context.Background()
	require.NoError(t, idx.Append(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}}))

	require.NoError(t, idx.Index(ctx, [][]float32{{0, 1}}))
	assert.Equal(t, int64(1), idx.Offset())
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := idx.Search(ctx, [][]float32{{0, 1}}, 3)
	require.NoError(t, err)
	require.Len(t, res[0], 1)
	assert.Equal(t, int64(0), res[0][0].ID)
}

func TestIndex_DeleteRebuilds(t *testing.T) {
	idx := newIndex(t, 2, "l2")
	ctx := context.Background()
	require.NoError(t, idx.Append(ctx, [][]float32{{0, 0}, {1, 1}, {5, 5}}))

	require.NoError(t, idx.Delete(ctx, []int64{1, 42}))
	n, _ := idx.Count(ctx)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(3), idx.Offset())

	res, err := idx.Search(ctx, [][]float32{{1, 1}}, 3)
	require.NoError(t, err)
	for _, r := range res[0] {
		assert.NotEqual(t, int64(1), r.ID)
	}

	require.NoError(t, idx.Delete(ctx, []int64{0, 2}))
	res, err = idx.Search(ctx, [][]float32{{1, 1}}, 3)
	require.NoError(t, err)
	assert.Empty(t, res[0], "search after deleting everything must not panic")
}

func TestIndex_EmptyAndLimit(t *testing.T) {
	idx := newIndex(t, 2, "cosine")
	ctx := context.Background()

	res, err := idx.Search(ctx, [][]float32{{1, 0}, {0, 1}}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Empty(t, res[0])

	require.NoError(t, idx.Append(ctx, [][]float32{{1, 0}}))
	res, err = idx.Search(ctx, [][]float32{{1, 0}}, 0)
	require.NoError(t, err)
	assert.Empty(t, res[0])

	_, err = idx.Search(ctx, [][]float32{{1, 0, 0}}, 1)
	assert.True(t, ann.IsConfiguration(err))
}

func TestIndex_SaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vecs := make([][]float32, 50)
	for i := range vecs {
		vecs[i] = []float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
	}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.snap")

	idx := newIndex(t, 4, "cosine")
	require.NoError(t, idx.Index(ctx, vecs))
	require.NoError(t, idx.Delete(ctx, []int64{10}))
	require.NoError(t, idx.Save(path))

	restored := newIndex(t, 4, "cosine")
	require.NoError(t, restored.Load(path))
	assert.Equal(t, int64(50), restored.Offset())
	n, _ := restored.Count(ctx)
	assert.Equal(t, int64(49), n)

	res, err := restored.Search(ctx, [][]float32{vecs[3]}, 1)
	require.NoError(t, err)
	require.Len(t, res[0], 1)
	assert.Equal(t, int64(3), res[0][0].ID)
	assert.InDelta(t, 1.0, res[0][0].Score, 1e-5)

	mismatch := newIndex(t, 4, "ip")
	assert.True(t, ann.IsConfiguration(mismatch.Load(path)))
	assert.Error(t, restored.Load(filepath.Join(t.TempDir(), "none.snap")))
}

package ann

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hyperjump/vecbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOffset(t *testing.T) {
	var o Offset
	assert.Equal(t, int64(0), o.Current())

	assert.Equal(t, []int64{0, 1, 2}, o.IDs(3))
	o.Advance(3)
	assert.Equal(t, int64(3), o.Current())

	o.Advance(0)
	o.Advance(-5)
	assert.Equal(t, int64(3), o.Current(), "offset never decreases on advance")

	o.Set(10)
	assert.Equal(t, []int64{10, 11}, o.IDs(2))

	o.Set(-1)
	assert.Equal(t, int64(0), o.Current())

	o.Set(7)
	o.Reset()
	assert.Equal(t, int64(0), o.Current())
}

func TestOffset_ConcurrentAdvance(t *testing.T) {
	var o Offset
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Advance(2)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), o.Current())
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"cosine", Cosine, false},
		{"L2", L2, false},
		{" ip ", InnerProduct, false},
		{"", "", true},
		{"manhattan", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMetric(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetric_Similarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 1.0, Cosine.Similarity(a, c), 1e-9)
	assert.InDelta(t, 0.0, Cosine.Similarity(a, b), 1e-9)
	assert.Equal(t, 0.0, Cosine.Similarity(a, []float32{0, 0}))

	assert.InDelta(t, 2.0, InnerProduct.Similarity(a, c), 1e-9)
	assert.True(t, math.IsNaN(Metric("manhattan").Similarity(a, c)), "unknown metrics must not fall back to a real score")

	assert.InDelta(t, 1.0, L2.Similarity(a, a), 1e-9)
	assert.InDelta(t, 1/(1+math.Sqrt2), L2.Similarity(a, b), 1e-9)
	assert.Greater(t, L2.Similarity(a, c), L2.Similarity(a, []float32{5, 0}),
		"nearer vectors must score higher")
}

func TestL2Similarity_Monotonic(t *testing.T) {
	prev := L2Similarity(0)
	assert.Equal(t, 1.0, prev)
	for _, d := range []float64{0.1, 0.5, 1, 10, 1000} {
		s := L2Similarity(d)
		assert.Less(t, s, prev)
		assert.Greater(t, s, 0.0)
		prev = s
	}
}

func TestSortResults(t *testing.T) {
	results := []Result{{ID: 1, Score: 0.2}, {ID: 2, Score: 0.9}, {ID: 3, Score: 0.2}, {ID: 4, Score: 0.5}}
	SortResults(results)
	assert.Equal(t, []Result{{ID: 2, Score: 0.9}, {ID: 4, Score: 0.5}, {ID: 1, Score: 0.2}, {ID: 3, Score: 0.2}}, results)
}

func TestCheckDimensions(t *testing.T) {
	require.NoError(t, CheckDimensions([][]float32{{1, 2}, {3, 4}}, 2))
	err := CheckDimensions([][]float32{{1, 2}, {3}}, 2)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("count", cause)
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsConfiguration(err))
	assert.Nil(t, Unavailable("count", nil))
}

type stubBackend struct {
	Backend
	name string
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(name string) Factory {
		return func(_ context.Context, _ *config.ANNConfig, _ *zap.Logger) (Backend, error) {
			return &stubBackend{name: name}, nil
		}
	}
	require.NoError(t, r.Register("memory", factory("memory")))
	require.NoError(t, r.Register("Qdrant", factory("qdrant")))
	assert.Error(t, r.Register("memory", factory("again")))
	assert.Error(t, r.Register("", factory("empty")))
	assert.Equal(t, []string{"memory", "qdrant"}, r.Names())

	b, err := r.New(context.Background(), &config.ANNConfig{Backend: "QDRANT"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "qdrant", b.(*stubBackend).name)

	_, err = r.New(context.Background(), &config.ANNConfig{Backend: "pinecone"}, nil)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.Contains(t, err.Error(), "memory, qdrant")

	_, err = r.New(context.Background(), nil, nil)
	assert.True(t, IsConfiguration(err))
}

func TestPersistenceString(t *testing.T) {
	assert.Equal(t, "file", FileBacked.String())
	assert.Equal(t, "server", ServerBacked.String())
}

func TestEmptyResults(t *testing.T) {
	out := EmptyResults(2)
	require.Len(t, out, 2)
	assert.NotNil(t, out[0])
	assert.Empty(t, out[1])
}

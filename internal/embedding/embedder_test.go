package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/vecbridge/internal/config"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "The quick brown fox!")
	c, _ := e.Embed(ctx, "lorem ipsum dolor")
	if len(a) != 64 {
		t.Fatalf("len=%d, want 64", len(a))
	}
	if cosine(a, b) < 0.999 {
		t.Errorf("same tokens should embed identically, cosine=%f", cosine(a, b))
	}
	if cosine(a, c) >= cosine(a, b) {
		t.Error("unrelated text should be less similar")
	}

	var norm float64
	for _, v := range a {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}

	empty, _ := e.Embed(ctx, "...")
	for _, v := range empty {
		if v != 0 {
			t.Fatal("text without tokens should embed to zero vector")
		}
	}

	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimension should be 384")
	}
}

func TestNew(t *testing.T) {
	e, err := New(&config.EmbeddingConfig{Provider: "mock", Dimensions: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*MockEmbedder); !ok {
		t.Errorf("expected *MockEmbedder, got %T", e)
	}

	e, err = New(&config.EmbeddingConfig{Provider: "mock", Dimensions: 8, CacheSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected *CachedEmbedder, got %T", e)
	}

	if _, err := New(&config.EmbeddingConfig{Provider: "onnx"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(&config.EmbeddingConfig{Provider: "openai", Dimensions: 8}, nil); err == nil {
		t.Error("expected error for openai without api key")
	}
}

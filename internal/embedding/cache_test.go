package embedding

import (
	"context"
	"sync/atomic"
	"testing"
)

// countingEmbedder wraps MockEmbedder and counts inner calls.
type countingEmbedder struct {
	*MockEmbedder
	calls atomic.Int64
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	return e.MockEmbedder.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(int64(len(texts)))
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Embed(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(32)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.Embed(ctx, "hello world")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Embed(ctx, "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached embedding differs from original")
		}
	}
}

func TestCachedEmbedder_BatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(32)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d", len(out))
	}
	for i, emb := range out {
		if len(emb) != 32 {
			t.Errorf("embedding %d has dimension %d", i, len(emb))
		}
	}
	// "a" was cached; only "b" and "c" should hit the inner embedder.
	if inner.calls.Load() != 3 {
		t.Errorf("inner calls = %d, want 3 (1 warm + 2 misses)", inner.calls.Load())
	}

	// Batch result order must match input order.
	direct, _ := inner.MockEmbedder.Embed(ctx, "b")
	for i := range direct {
		if out[1][i] != direct[i] {
			t.Fatal("batch result out of order")
		}
	}
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := c.Embed(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("cache size = %d, want 2", c.Len())
	}
	// "one" was evicted; embedding it again hits the inner embedder.
	before := inner.calls.Load()
	if _, err := c.Embed(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != before+1 {
		t.Error("evicted entry should be re-embedded")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a1, _ := e.Embed(ctx, "async generators in python")
	a2, _ := e.Embed(ctx, "async generators in python")
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("mock embedding should be deterministic")
		}
	}
}

func TestMockEmbedder_OverlapSimilarity(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "python async")
	related, _ := e.Embed(ctx, "async generators in python")
	unrelated, _ := e.Embed(ctx, "deploying with docker compose")

	dot := func(a, b []float32) float64 {
		var d float64
		for i := range a {
			d += float64(a[i] * b[i])
		}
		return d
	}
	if dot(query, related) <= dot(query, unrelated) {
		t.Error("query should be more similar to text sharing its words")
	}
}

func TestMockEmbedder_Normalized(t *testing.T) {
	e := NewMockEmbedder(64)
	emb, _ := e.Embed(context.Background(), "some note text")
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("embedding norm^2 = %f, want 1", sum)
	}
}

// Package embedding provides text embedding providers and caching.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text.
// EmbedBatch must be semantically equal to calling Embed per item; it exists
// so providers can amortize request overhead. Model returns a stable
// identifier recorded alongside the index and checked at query time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
	Close() error
}

// Pinger is implemented by embedders that can verify provider availability
// up front. Refresh and search fail fast when Ping reports the provider
// unreachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

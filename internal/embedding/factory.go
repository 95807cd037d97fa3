package embedding

import (
	"fmt"

	"github.com/psearch-dev/psearch/internal/config"
)

// New creates the embedder described by cfg, wrapped in an LRU cache.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "", "ollama":
		inner = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

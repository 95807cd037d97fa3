// Package search answers natural-language queries against the fragment store.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/psearch-dev/psearch/internal/embedding"
	"github.com/psearch-dev/psearch/internal/models"
	"github.com/psearch-dev/psearch/internal/vector"
)

// ErrEmptyQuery is returned for queries that are empty or whitespace.
var ErrEmptyQuery = errors.New("query is empty")

// ErrInvalidLimit is returned when the requested result count is not positive.
var ErrInvalidLimit = errors.New("result limit must be positive")

// Engine embeds a query and ranks stored fragments against it.
type Engine struct {
	embedder embedding.Embedder
	store    vector.Store
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine over the given embedder and store.
func NewEngine(emb embedding.Embedder, store vector.Store, opts ...Option) *Engine {
	e := &Engine{
		embedder: emb,
		store:    store,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns up to k fragments ranked by similarity to query, best
// first. Scores are cosine similarities, higher is better. An empty index
// yields an empty result, not an error. Searching an index that was built
// with a different embedding model is refused with vector.ErrModelMismatch.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := vector.VerifyModel(ctx, e.store, e.embedder.Model()); err != nil {
		return nil, err
	}

	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := e.store.Query(ctx, emb, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = models.SearchResult{
			FragmentID: h.ID,
			Source:     h.Source,
			ChunkIndex: h.ChunkIndex,
			Content:    h.Content,
			Score:      h.Score,
			Rank:       i + 1,
		}
	}
	e.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

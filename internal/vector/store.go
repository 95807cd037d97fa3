// Package vector provides the persistent fragment store and similarity search.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/psearch-dev/psearch/internal/models"
)

// ErrModelMismatch is returned when the embedding model recorded in the
// store differs from the one configured. Querying or refreshing with a
// different model would silently produce wrong similarities, so the
// operation is refused instead.
var ErrModelMismatch = errors.New("embedding model does not match index")

// Meta keys maintained by the store.
const (
	MetaModel      = "embedding_model"
	MetaDimensions = "embedding_dimensions"
	MetaInstanceID = "instance_id"
)

// Hit is a single nearest-neighbor match.
type Hit struct {
	ID         string
	Source     string
	ChunkIndex int
	Content    string
	// Score is cosine similarity: higher is better. Query returns hits
	// best-first, ties broken by fragment ID.
	Score float64
}

// Store persists fragments with their embeddings and answers k-nearest-
// neighbor queries. Fragment inserts are upserts keyed by fragment ID;
// per-source deletion matches the stored source path, never an in-memory
// list, so an interrupted refresh converges when re-run.
type Store interface {
	// UpsertSource replaces the bookkeeping row for rec.Path and upserts
	// frags in one transaction. Fragments previously stored for the path
	// but absent from frags are NOT removed; callers delete the source
	// first when its content changed.
	UpsertSource(ctx context.Context, rec models.SourceRecord, frags []models.Fragment) error
	// TouchSource refreshes the stored mtime and size for an unchanged
	// source so future refreshes can keep skipping the hash.
	TouchSource(ctx context.Context, path string, modTimeNS, size int64) error
	// DeleteSource removes the source row and every fragment whose stored
	// source path matches.
	DeleteSource(ctx context.Context, path string) error
	// DeleteSourcesUnder removes every source (and its fragments) whose
	// stored path equals dir or lies inside it. Returns how many sources
	// were removed. Filesystem watches report a moved-away directory as a
	// single event for the directory itself, so removal has to cascade by
	// path prefix.
	DeleteSourcesUnder(ctx context.Context, dir string) (int64, error)
	// Query returns up to k hits for the embedding, best-first.
	Query(ctx context.Context, embedding []float32, k int) ([]Hit, error)
	// Sources returns all per-source bookkeeping rows.
	Sources(ctx context.Context) ([]models.SourceRecord, error)
	// GetSource returns the bookkeeping row for path; ok is false when the
	// path is not indexed.
	GetSource(ctx context.Context, path string) (rec models.SourceRecord, ok bool, err error)
	CountFragments(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)
	// Clear removes all fragments, sources, and index metadata.
	Clear(ctx context.Context) error
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	Close() error
}

// EnsureModel records model as the index's embedding model if none is
// recorded yet, and returns ErrModelMismatch if a different one is.
func EnsureModel(ctx context.Context, s Store, model string) error {
	recorded, err := s.GetMeta(ctx, MetaModel)
	if err != nil {
		return fmt.Errorf("read index model: %w", err)
	}
	if recorded == "" {
		return s.SetMeta(ctx, MetaModel, model)
	}
	if recorded != model {
		return fmt.Errorf("%w: index built with %q, configured %q", ErrModelMismatch, recorded, model)
	}
	return nil
}

// VerifyModel returns ErrModelMismatch if the store records an embedding
// model different from model. An empty record (fresh index) passes.
func VerifyModel(ctx context.Context, s Store, model string) error {
	recorded, err := s.GetMeta(ctx, MetaModel)
	if err != nil {
		return fmt.Errorf("read index model: %w", err)
	}
	if recorded != "" && recorded != model {
		return fmt.Errorf("%w: index built with %q, configured %q", ErrModelMismatch, recorded, model)
	}
	return nil
}

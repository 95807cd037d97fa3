package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/psearch-dev/psearch/internal/config"
	"github.com/psearch-dev/psearch/internal/embedding"
	"github.com/psearch-dev/psearch/internal/fileid"
	"github.com/psearch-dev/psearch/internal/models"
	"github.com/psearch-dev/psearch/internal/scanner"
	"github.com/psearch-dev/psearch/internal/vector"
)

// Manager keeps the vector store in sync with the notes directory. A refresh
// compares what is on disk against the store's bookkeeping and only indexes
// files whose content actually changed; deleted files are pruned. Refresh is
// idempotent and safe to interrupt: fragment IDs are deterministic, inserts
// are upserts, and per-source deletion matches stored paths, so an aborted
// run converges on the next one.
type Manager struct {
	scanner  *scanner.Scanner
	embedder embedding.Embedder
	store    vector.Store
	chunker  *Chunker
	workers  int
	logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for per-file progress and errors.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager over the given collaborators. cfg supplies
// chunking parameters and the refresh worker count.
func NewManager(sc *scanner.Scanner, emb embedding.Embedder, store vector.Store, cfg *config.IndexConfig, opts ...Option) *Manager {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		scanner:  sc,
		embedder: emb,
		store:    store,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		workers:  workers,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refresh brings the index up to date with the notes directory. With force
// set, every candidate file is re-indexed regardless of stored state.
//
// Per-file failures (unreadable, non-text, embedding error) are counted in
// the summary and logged, but do not abort the run. Failures of the store or
// the embedding provider preflight are fatal and return an error alongside
// whatever summary was accumulated.
func (m *Manager) Refresh(ctx context.Context, force bool) (*models.RefreshSummary, error) {
	summary := &models.RefreshSummary{}

	// Fail fast before touching any state: the provider must be reachable
	// and the store must have been built with the configured model.
	if p, ok := m.embedder.(embedding.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return summary, fmt.Errorf("embedding provider unavailable: %w", err)
		}
	}
	if err := vector.EnsureModel(ctx, m.store, m.embedder.Model()); err != nil {
		return summary, err
	}

	files, fileErrs, err := m.scanner.Scan(ctx)
	if err != nil {
		return summary, err
	}
	for _, fe := range fileErrs {
		m.logger.Warn("skipping unreadable file", zap.String("path", fe.Path), zap.Error(fe.Err))
	}
	summary.Errors += len(fileErrs)

	known, err := m.store.Sources(ctx)
	if err != nil {
		return summary, fmt.Errorf("list indexed sources: %w", err)
	}
	byPath := make(map[string]models.SourceRecord, len(known))
	for _, rec := range known {
		byPath[rec.Path] = rec
	}

	seen := make(map[string]struct{}, len(files))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, sf := range files {
		seen[sf.Path] = struct{}{}
		rec, exists := byPath[sf.Path]

		// Cheapest check first: an unchanged mtime and size means the
		// content is unchanged, no hashing needed.
		if !force && exists && rec.ModTimeNS == sf.ModTime.UnixNano() && rec.Size == sf.Size {
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			continue
		}

		sf := sf
		g.Go(func() error {
			outcome, err := m.refreshOne(gctx, sf, rec, exists, force)
			if err != nil {
				return err
			}
			mu.Lock()
			switch outcome {
			case outcomeIndexed:
				summary.Indexed++
			case outcomeSkipped:
				summary.Skipped++
			case outcomeFailed:
				summary.Errors++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	// Prune sources that are indexed but no longer on disk. A path the
	// scanner could not read is not gone, only unreachable right now, so
	// anything at or under an errored path keeps its index data.
	for path := range byPath {
		if _, ok := seen[path]; ok {
			continue
		}
		if underScanError(path, fileErrs) {
			m.logger.Warn("keeping unreachable file in index", zap.String("path", path))
			continue
		}
		if err := m.store.DeleteSource(ctx, path); err != nil {
			return summary, fmt.Errorf("prune %s: %w", path, err)
		}
		m.logger.Info("removed deleted file from index", zap.String("path", path))
		summary.Removed++
	}

	m.logger.Info("refresh complete",
		zap.Int("indexed", summary.Indexed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("removed", summary.Removed),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

// underScanError reports whether path is one of the errored paths or lies
// inside an errored directory.
func underScanError(path string, fileErrs []scanner.FileError) bool {
	for _, fe := range fileErrs {
		if path == fe.Path || strings.HasPrefix(path, fe.Path+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

type refreshOutcome int

const (
	outcomeIndexed refreshOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// refreshOne hashes, and if needed re-indexes, a single candidate file.
// A non-nil error is fatal for the whole refresh (store or context failure);
// problems local to the file yield outcomeFailed instead.
func (m *Manager) refreshOne(ctx context.Context, sf models.SourceFile, rec models.SourceRecord, exists, force bool) (refreshOutcome, error) {
	if err := ctx.Err(); err != nil {
		return outcomeFailed, err
	}
	fp, err := scanner.Fingerprint(sf.Path)
	if err != nil {
		m.logger.Warn("cannot fingerprint file", zap.String("path", sf.Path), zap.Error(err))
		return outcomeFailed, nil
	}
	if !force && exists && fp == rec.Fingerprint {
		// Touched but unchanged (mtime bumped by an editor save, a sync
		// tool, or a copy). Record the new stat so the next refresh skips
		// the hash again.
		if err := m.store.TouchSource(ctx, sf.Path, sf.ModTime.UnixNano(), sf.Size); err != nil {
			return outcomeFailed, fmt.Errorf("touch %s: %w", sf.Path, err)
		}
		return outcomeSkipped, nil
	}
	if err := m.indexFile(ctx, sf, fp, exists); err != nil {
		if ctx.Err() != nil || isStoreError(err) {
			return outcomeFailed, err
		}
		m.logger.Warn("cannot index file", zap.String("path", sf.Path), zap.Error(err))
		return outcomeFailed, nil
	}
	m.logger.Info("indexed file", zap.String("path", sf.Path))
	return outcomeIndexed, nil
}

// storeError marks failures of the persistence layer as fatal for a refresh.
type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }
func (e storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	_, ok := err.(storeError)
	return ok
}

// indexFile reads, chunks, embeds, and stores one file. When the file was
// previously indexed its old fragments are deleted first, so a file that
// shrank does not leave stale trailing fragments behind.
func (m *Manager) indexFile(ctx context.Context, sf models.SourceFile, fingerprint string, existed bool) error {
	data, err := os.ReadFile(sf.Path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("content is not valid UTF-8")
	}

	chunks := m.chunker.Split(string(data))
	frags := make([]models.Fragment, 0, len(chunks))
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		embs, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(embs) != len(chunks) {
			return fmt.Errorf("embed: got %d vectors for %d chunks", len(embs), len(chunks))
		}
		for i, ch := range chunks {
			frags = append(frags, models.Fragment{
				ID:          fileid.FragmentID(sf.Path, ch.Index),
				Source:      sf.Path,
				ChunkIndex:  ch.Index,
				Content:     ch.Text,
				StartOffset: ch.Start,
				Embedding:   embs[i],
			})
		}
	}

	if existed {
		if err := m.store.DeleteSource(ctx, sf.Path); err != nil {
			return storeError{fmt.Errorf("delete old fragments: %w", err)}
		}
	}
	rec := models.SourceRecord{
		Path:        sf.Path,
		Fingerprint: fingerprint,
		ModTimeNS:   sf.ModTime.UnixNano(),
		Size:        sf.Size,
		IndexedAt:   time.Now().UTC(),
	}
	if err := m.store.UpsertSource(ctx, rec, frags); err != nil {
		return storeError{fmt.Errorf("store fragments: %w", err)}
	}
	return nil
}

// RefreshFile re-indexes a single path, used by watch mode. A path that no
// longer exists, or is no longer a candidate (for example replaced by a
// binary file), is removed from the index instead.
func (m *Manager) RefreshFile(ctx context.Context, path string) error {
	sf, ok, err := m.scanner.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m.RemoveFile(ctx, path)
		}
		return err
	}
	if !ok {
		return m.RemoveFile(ctx, path)
	}
	rec, exists, err := m.store.GetSource(ctx, sf.Path)
	if err != nil {
		return err
	}
	outcome, err := m.refreshOne(ctx, sf, rec, exists, false)
	if err != nil {
		return err
	}
	if outcome == outcomeFailed {
		return fmt.Errorf("could not index %s", sf.Path)
	}
	return nil
}

// RemoveFile drops a path from the index if it is present. A removed
// directory arrives from the watcher as a single event for the directory
// itself, so when no source matches the exact path, everything indexed
// underneath it is dropped instead.
func (m *Manager) RemoveFile(ctx context.Context, path string) error {
	cleaned, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	cleaned = filepath.Clean(cleaned)
	_, exists, err := m.store.GetSource(ctx, cleaned)
	if err != nil {
		return err
	}
	if exists {
		if err := m.store.DeleteSource(ctx, cleaned); err != nil {
			return err
		}
		m.logger.Info("removed deleted file from index", zap.String("path", cleaned))
		return nil
	}
	removed, err := m.store.DeleteSourcesUnder(ctx, cleaned)
	if err != nil {
		return err
	}
	if removed > 0 {
		m.logger.Info("removed deleted directory from index",
			zap.String("path", cleaned), zap.Int64("sources", removed))
	}
	return nil
}

// Clear wipes all indexed data.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Status reports current index contents.
func (m *Manager) Status(ctx context.Context) (*models.IndexStatus, error) {
	sources, err := m.store.CountSources(ctx)
	if err != nil {
		return nil, err
	}
	fragments, err := m.store.CountFragments(ctx)
	if err != nil {
		return nil, err
	}
	model, err := m.store.GetMeta(ctx, vector.MetaModel)
	if err != nil {
		return nil, err
	}
	return &models.IndexStatus{
		Sources:   sources,
		Fragments: fragments,
		Model:     model,
	}, nil
}

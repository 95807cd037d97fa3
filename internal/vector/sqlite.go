package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/psearch-dev/psearch/internal/models"
	"github.com/psearch-dev/psearch/pkg/utils"
)

// SQLiteStore implements Store using SQLite. Embeddings are stored as
// little-endian float32 blobs and compared by brute-force inner product in
// Go; per-source deletes are plain SQL matches on the source column.
type SQLiteStore struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist. A fresh database is stamped with a random instance ID.
func NewSQLiteStore(dbPath string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, dimensions: dimensions}
	if err := s.stamp(dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		path TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		mtime_ns INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		start_offset INTEGER NOT NULL DEFAULT 0,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fragments_source ON fragments(source);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// stamp records instance ID and dimensions for a fresh database, and
// verifies dimensions for an existing one.
func (s *SQLiteStore) stamp(dimensions int) error {
	ctx := context.Background()
	recorded, err := s.GetMeta(ctx, MetaDimensions)
	if err != nil {
		return err
	}
	if recorded == "" {
		if err := s.SetMeta(ctx, MetaDimensions, fmt.Sprintf("%d", dimensions)); err != nil {
			return err
		}
		return s.SetMeta(ctx, MetaInstanceID, uuid.New().String())
	}
	if recorded != fmt.Sprintf("%d", dimensions) {
		return fmt.Errorf("index has embedding dimension %s, configured %d", recorded, dimensions)
	}
	return nil
}

// InstanceID returns the random ID minted when the database was created.
func (s *SQLiteStore) InstanceID(ctx context.Context) (string, error) {
	return s.GetMeta(ctx, MetaInstanceID)
}

// UpsertSource replaces the source bookkeeping row and upserts frags in one
// transaction.
func (s *SQLiteStore) UpsertSource(ctx context.Context, rec models.SourceRecord, frags []models.Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sources (path, fingerprint, mtime_ns, size_bytes, indexed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   mtime_ns = excluded.mtime_ns,
		   size_bytes = excluded.size_bytes,
		   indexed_at = excluded.indexed_at`,
		rec.Path, rec.Fingerprint, rec.ModTimeNS, rec.Size, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", rec.Path, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fragments (id, source, chunk_index, content, start_offset, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   source = excluded.source,
		   chunk_index = excluded.chunk_index,
		   content = excluded.content,
		   start_offset = excluded.start_offset,
		   embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare fragment upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frags {
		if len(f.Embedding) != s.dimensions {
			return fmt.Errorf("fragment %s has embedding dimension %d, expected %d", f.ID, len(f.Embedding), s.dimensions)
		}
		emb := make([]float32, len(f.Embedding))
		copy(emb, f.Embedding)
		utils.NormalizeL2(emb)
		if _, err := stmt.ExecContext(ctx, f.ID, f.Source, f.ChunkIndex, f.Content, f.StartOffset, float32SliceToBytes(emb)); err != nil {
			return fmt.Errorf("upsert fragment %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// TouchSource refreshes mtime and size for an unchanged source row.
func (s *SQLiteStore) TouchSource(ctx context.Context, path string, modTimeNS, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET mtime_ns = ?, size_bytes = ? WHERE path = ?`,
		modTimeNS, size, path,
	)
	return err
}

// DeleteSource removes the source row and all fragments stored for path.
func (s *SQLiteStore) DeleteSource(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE source = ?`, path); err != nil {
		return fmt.Errorf("delete fragments for %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete source %s: %w", path, err)
	}
	return tx.Commit()
}

// DeleteSourcesUnder removes every source stored at dir or below it, with
// its fragments, and returns the number of sources removed. The prefix
// match uses substr rather than LIKE so paths containing wildcard
// characters need no escaping.
func (s *SQLiteStore) DeleteSourcesUnder(ctx context.Context, dir string) (int64, error) {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fragments WHERE source = ? OR substr(source, 1, ?) = ?`,
		dir, len(prefix), prefix,
	); err != nil {
		return 0, fmt.Errorf("delete fragments under %s: %w", dir, err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM sources WHERE path = ? OR substr(path, 1, ?) = ?`,
		dir, len(prefix), prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("delete sources under %s: %w", dir, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

// Query scans all stored embeddings and returns the top-k by cosine
// similarity, best-first, ties broken by fragment ID. An empty index
// returns an empty result, not an error.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query dimension %d, expected %d", len(embedding), s.dimensions)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	query := make([]float32, len(embedding))
	copy(query, embedding)
	utils.NormalizeL2(query)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, chunk_index, content, embedding FROM fragments`)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Source, &h.ChunkIndex, &h.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		h.Score = Dot(query, bytesToFloat32Slice(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Sources returns all per-source bookkeeping rows.
func (s *SQLiteStore) Sources(ctx context.Context) ([]models.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, fingerprint, mtime_ns, size_bytes, indexed_at FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var recs []models.SourceRecord
	for rows.Next() {
		var rec models.SourceRecord
		if err := rows.Scan(&rec.Path, &rec.Fingerprint, &rec.ModTimeNS, &rec.Size, &rec.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetSource returns the bookkeeping row for path, if indexed.
func (s *SQLiteStore) GetSource(ctx context.Context, path string) (models.SourceRecord, bool, error) {
	var rec models.SourceRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT path, fingerprint, mtime_ns, size_bytes, indexed_at FROM sources WHERE path = ?`, path,
	).Scan(&rec.Path, &rec.Fingerprint, &rec.ModTimeNS, &rec.Size, &rec.IndexedAt)
	if err == sql.ErrNoRows {
		return models.SourceRecord{}, false, nil
	}
	if err != nil {
		return models.SourceRecord{}, false, err
	}
	return rec, true, nil
}

// CountFragments returns the number of stored fragments.
func (s *SQLiteStore) CountFragments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&n)
	return n, err
}

// CountSources returns the number of indexed source files.
func (s *SQLiteStore) CountSources(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n)
	return n, err
}

// Clear removes all fragments, sources, and the recorded embedding model.
// The instance ID and dimensions survive so the database stays attributable.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, MetaModel); err != nil {
		return err
	}
	return tx.Commit()
}

// GetMeta returns a metadata value by key, or "" if not set.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMeta sets a metadata key-value pair.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

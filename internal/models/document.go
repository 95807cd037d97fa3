// Package models defines core data structures for source files, fragments, and search results.
package models

import "time"

// SourceFile describes a candidate file discovered on disk by the scanner.
// Content hashing happens later and only when needed (files whose stored
// mtime and size are unchanged are skipped without hashing).
type SourceFile struct {
	Path    string // absolute, cleaned
	Ext     string // lowercase extension including the dot; "" for sniffed files
	ModTime time.Time
	Size    int64
}

// Fragment is one chunk of a source file's text, the unit of embedding
// and retrieval. IDs are derived deterministically from (source path,
// chunk index) so re-indexing an unchanged file is an idempotent upsert.
type Fragment struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	StartOffset int       `json:"start_offset"`
	Embedding   []float32 `json:"-"`
}

// SourceRecord is the per-source bookkeeping row persisted alongside
// fragments. Fingerprint is the SHA-256 hex of the file content; mtime and
// size let a refresh skip hashing files that have not been touched.
type SourceRecord struct {
	Path        string
	Fingerprint string
	ModTimeNS   int64
	Size        int64
	IndexedAt   time.Time
}

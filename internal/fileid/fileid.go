// Package fileid derives deterministic fragment identifiers from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const fragmentPrefix = "frag:"

// SourceKey returns the stable key for the file at absolutePath. The same
// path always yields the same key.
func SourceKey(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// FragmentID returns a stable fragment ID for the chunk at chunkIndex of the
// file at absolutePath. Re-chunking the same content at the same path yields
// the same IDs, which makes fragment insertion an idempotent upsert. The
// zero-padded index keeps IDs for one source in chunk order when sorted
// lexicographically.
func FragmentID(absolutePath string, chunkIndex int) string {
	return fmt.Sprintf("%s%s:%06d", fragmentPrefix, SourceKey(absolutePath), chunkIndex)
}

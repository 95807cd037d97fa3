// Package indexer orchestrates scanning, chunking, embedding, and the vector store.
package indexer

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one piece of a split text. Start is the byte offset of Text in
// the original input, so consecutive chunks overlap by design and the input
// can be reconstructed by dropping each chunk's overlapping prefix.
type Chunk struct {
	Index int
	Text  string
	Start int
}

// Chunker splits text into overlapping chunks of roughly chunkSize bytes.
// Boundaries prefer a paragraph break, then a line break, then a word break
// inside the second half of the window; a hard cut at the size limit is the
// fallback. Splitting is deterministic: identical input always yields the
// identical chunk sequence, which keeps fragment IDs stable across runs.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// separators in preference order, the paragraph break first.
var separators = []string{"\n\n", "\n", " "}

// NewChunker creates a chunker with the given size and overlap in bytes.
// Nonsensical values are clamped: overlap must stay below the chunk size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split splits text into chunks. Empty text yields no chunks; text shorter
// than one chunk yields exactly one.
func (c *Chunker) Split(text string) []Chunk {
	if len(text) == 0 {
		return nil
	}
	var chunks []Chunk
	start := 0
	for i := 0; ; i++ {
		if len(text)-start <= c.chunkSize {
			chunks = append(chunks, Chunk{Index: i, Text: text[start:], Start: start})
			return chunks
		}
		end := c.cut(text, start)
		chunks = append(chunks, Chunk{Index: i, Text: text[start:end], Start: start})
		next := end - c.chunkOverlap
		// Step forward to a rune boundary; the overlap shrinks by at
		// most three bytes.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
}

// cut returns the exclusive end of the chunk starting at start. The caller
// guarantees more than chunkSize bytes remain.
func (c *Chunker) cut(text string, start int) int {
	hard := start + c.chunkSize
	for hard > start && !utf8.RuneStart(text[hard]) {
		hard--
	}
	// Only accept a natural break in the later part of the window, and
	// always past the overlap so the next chunk makes progress.
	lo := start + c.chunkSize/2
	if m := start + c.chunkOverlap + 1; lo < m {
		lo = m
	}
	if lo >= hard {
		return hard
	}
	window := text[lo:hard]
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return lo + i + len(sep)
		}
	}
	return hard
}

package indexer

import (
	"strings"
	"testing"
)

// reconstruct concatenates chunks with their overlapping prefixes removed,
// using the recorded start offsets.
func reconstruct(chunks []Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, ch := range chunks {
		b.WriteString(ch.Text[prevEnd-ch.Start:])
		prevEnd = ch.Start + len(ch.Text)
	}
	return b.String()
}

func TestSplit_Reconstruction(t *testing.T) {
	texts := []string{
		"short",
		strings.Repeat("lorem ipsum dolor sit amet ", 100),
		strings.Repeat("paragraph one\n\nparagraph two\n\n", 40),
		strings.Repeat("line\n", 500),
		strings.Repeat("x", 5000), // no separators at all
		strings.Repeat("日本語のテキストです。", 300),
	}
	c := NewChunker(200, 40)
	for i, text := range texts {
		chunks := c.Split(text)
		if got := reconstruct(chunks); got != text {
			t.Errorf("text %d: reconstruction mismatch (len %d vs %d)", i, len(got), len(text))
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("some note content with words\n", 50)
	c := NewChunker(150, 30)
	a := c.Split(text)
	b := c.Split(text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := NewChunker(100, 20).Split(""); chunks != nil {
		t.Errorf("empty text should yield no chunks, got %d", len(chunks))
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks := NewChunker(1000, 200).Split("just one small note")
	if len(chunks) != 1 {
		t.Fatalf("short text should yield exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "just one small note" || chunks[0].Start != 0 || chunks[0].Index != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestSplit_ChunkIndicesAndOffsets(t *testing.T) {
	text := strings.Repeat("word ", 400)
	chunks := NewChunker(100, 20).Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if i > 0 {
			prev := chunks[i-1]
			if ch.Start <= prev.Start {
				t.Errorf("chunk %d does not advance: start %d after %d", i, ch.Start, prev.Start)
			}
			if ch.Start > prev.Start+len(prev.Text) {
				t.Errorf("chunk %d leaves a gap", i)
			}
		}
	}
}

func TestSplit_PrefersParagraphBreaks(t *testing.T) {
	// A paragraph break sits inside the second half of the first window;
	// the cut should land right after it rather than at the hard limit.
	para := strings.Repeat("a", 70) + "\n\n" + strings.Repeat("b", 200)
	chunks := NewChunker(100, 10).Split(para)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Errorf("first chunk should end at the paragraph break, got %q...", chunks[0].Text[:20])
	}
}

func TestSplit_FallsBackToLineAndWordBreaks(t *testing.T) {
	line := strings.Repeat("a", 70) + "\n" + strings.Repeat("b", 200)
	chunks := NewChunker(100, 10).Split(line)
	if !strings.HasSuffix(chunks[0].Text, "\n") {
		t.Error("first chunk should end at the line break")
	}

	words := strings.Repeat("a", 70) + " " + strings.Repeat("b", 200)
	chunks = NewChunker(100, 10).Split(words)
	if !strings.HasSuffix(chunks[0].Text, " ") {
		t.Error("first chunk should end at the word break")
	}
}

func TestSplit_HardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 350)
	chunks := NewChunker(100, 0).Split(text)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks (100+100+100+50), got %d", len(chunks))
	}
	for i, ch := range chunks[:3] {
		if len(ch.Text) != 100 {
			t.Errorf("chunk %d length %d, want 100", i, len(ch.Text))
		}
	}
}

func TestSplit_NeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("日本語テキスト ", 200)
	chunks := NewChunker(100, 20).Split(text)
	for i, ch := range chunks {
		if !strings.Contains(text, ch.Text) {
			t.Fatalf("chunk %d is not a substring; rune was split", i)
		}
	}
	if reconstruct(chunks) != text {
		t.Error("reconstruction mismatch for multi-byte text")
	}
}

func TestNewChunker_ClampsOverlap(t *testing.T) {
	c := NewChunker(100, 100)
	if c.chunkOverlap >= c.chunkSize {
		t.Errorf("overlap %d should be clamped below size %d", c.chunkOverlap, c.chunkSize)
	}
	text := strings.Repeat("y", 1000)
	if got := reconstruct(c.Split(text)); got != text {
		t.Error("clamped chunker should still reconstruct input")
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/psearch-dev/psearch/internal/models"
)

func sampleResults() []models.SearchResult {
	return []models.SearchResult{
		{FragmentID: "frag:abc:000000", Source: "/n/a.md", ChunkIndex: 0, Content: "python asyncio notes", Score: 0.91, Rank: 1},
		{FragmentID: "frag:def:000002", Source: "/n/b.md", ChunkIndex: 2, Content: "docker compose\nwith newlines", Score: 0.42, Rank: 2},
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "python", sampleResults(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"2 result(s)", "/n/a.md", "Score: 0.9100", "chunk 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "nothing", nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No results") {
		t.Errorf("empty output: %q", buf.String())
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "q", sampleResults(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("compact output should be one line per result, got %d", len(lines))
	}
	if strings.Contains(lines[1], "\n") || !strings.Contains(lines[1], "docker compose with newlines") {
		t.Errorf("compact line not flattened: %q", lines[1])
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "python", sampleResults(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Query   string                `json:"query"`
		Results []models.SearchResult `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "python" || len(decoded.Results) != 2 {
		t.Errorf("decoded: %+v", decoded)
	}
	if decoded.Results[0].Source != "/n/a.md" {
		t.Errorf("first result: %+v", decoded.Results[0])
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "compact": OutputCompact, "json": OutputJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("unknown format should error")
	}
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	st := &models.IndexStatus{Sources: 3, Fragments: 17, Model: "nomic-embed-text"}
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "3") || !strings.Contains(out, "17") || !strings.Contains(out, "nomic-embed-text") {
		t.Errorf("status output: %q", out)
	}

	buf.Reset()
	if err := WriteStatus(&buf, st, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.IndexStatus
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != *st {
		t.Errorf("round trip: %+v", decoded)
	}
}

func TestWriteRefreshSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteRefreshSummary(&buf, &models.RefreshSummary{Indexed: 2, Skipped: 5, Removed: 1})
	if strings.Contains(buf.String(), "errors") {
		t.Errorf("errors shown when zero: %q", buf.String())
	}
	buf.Reset()
	WriteRefreshSummary(&buf, &models.RefreshSummary{Errors: 3})
	if !strings.Contains(buf.String(), "errors: 3") {
		t.Errorf("errors missing: %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("abcdefgh", 4); got != "abcd..." {
		t.Errorf("Truncate = %q", got)
	}
	// Cut point inside a multi-byte rune moves back to the rune start.
	s := "日本語"
	got := Truncate(s, 4)
	if !strings.HasSuffix(got, "...") || !strings.HasPrefix(s, strings.TrimSuffix(got, "...")) {
		t.Errorf("rune-safe truncate = %q", got)
	}
}

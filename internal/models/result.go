package models

// SearchResult is a single ranked fragment returned for a query.
// Score is cosine similarity: higher is better, results are ordered
// best-first.
type SearchResult struct {
	FragmentID string  `json:"fragment_id"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// RefreshSummary reports the outcome of one refresh run. A refresh returns
// a summary even on partial failure; Errors counts files that could not be
// scanned, read, chunked, or embedded.
type RefreshSummary struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Removed int `json:"removed"`
	Errors  int `json:"errors"`
}

// IndexStatus describes the current state of the persisted index.
type IndexStatus struct {
	Sources   int64  `json:"sources"`
	Fragments int64  `json:"fragments"`
	Model     string `json:"model,omitempty"`
}

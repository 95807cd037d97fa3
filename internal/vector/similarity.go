package vector

// Dot returns the inner product of two vectors. Stored and query embeddings
// are L2-normalized, so this equals cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

package vectorstore

import "math"

// Cosine computes the cosine similarity dot(a,b) / (||a|| * ||b||).
//
// Mismatched dimensionality and zero-norm vectors both yield exactly 0,
// so a query can never divide by zero or fail on a stale document.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

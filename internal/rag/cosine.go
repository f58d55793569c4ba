package rag

import "math"

// Cosine returns the cosine similarity dot(a,b)/(‖a‖·‖b‖) in [-1, 1].
// A zero vector on either side scores 0 rather than dividing by zero, and
// mismatched dimensions score 0: indexes assert uniform dimensionality at
// build time, so a mismatch here is a degenerate query, not a panic.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

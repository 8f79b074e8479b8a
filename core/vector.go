package core

import "math"

// NormalizeVector scales a vector to unit length and returns a new slice.
// Stored vectors must be unit length so that the inner product used by
// similarity search equals cosine similarity. A zero or empty vector cannot
// be normalized and comes back as a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}

	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

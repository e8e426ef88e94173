package utils

import (
	"errors"
	"fmt"
	"math"
)

var ErrDimensionMismatch = errors.New("vectors must have the same dimension")

// dotProduct calculates the dot product of two vectors.
func dotProduct(vec1, vec2 []float32) (float64, error) {
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(vec1), len(vec2))
	}
	var product float64
	for i := range vec1 {
		product += float64(vec1[i]) * float64(vec2[i])
	}
	return product, nil
}

// magnitude calculates the L2 norm (magnitude) of a vector.
func magnitude(vec []float32) float64 {
	var sumOfSquares float64
	for _, val := range vec {
		sumOfSquares += float64(val) * float64(val)
	}
	return math.Sqrt(sumOfSquares)
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Empty vectors and vectors with zero magnitude score 0. The result is
// clamped to [-1, 1] to absorb rounding.
func CosineSimilarity(vec1, vec2 []float32) (float32, error) {
	dot, err := dotProduct(vec1, vec2)
	if err != nil {
		return 0, err
	}

	mag1 := magnitude(vec1)
	mag2 := magnitude(vec2)
	if mag1 == 0 || mag2 == 0 {
		return 0, nil
	}

	sim := dot / (mag1 * mag2)
	return float32(math.Max(-1, math.Min(1, sim))), nil
}

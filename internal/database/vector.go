package database

import "math"

// Normalize returns a copy of v scaled to unit L2 length. Vectors are
// normalized at insertion time so that inner products over stored vectors
// equal cosine similarity. A zero vector is returned as a copy unchanged
// since it has no direction.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// InnerProduct computes the dot product of two equal-length vectors.
// For unit-length vectors this equals cosine similarity. The result is
// clamped to [-1, 1] to absorb floating point drift; mismatched or empty
// inputs score -1, the minimum similarity.
func InnerProduct(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	return float32(dot)
}

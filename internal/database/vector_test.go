package database

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
	}{
		{"already unit", []float32{1, 0, 0}},
		{"needs scaling", []float32{3, 4}},
		{"negative components", []float32{-2, 2, -2, 2}},
		{"tiny values", []float32{1e-4, 1e-4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.input)
			var sum float64
			for _, x := range out {
				sum += float64(x) * float64(x)
			}
			if math.Abs(sum-1) > 1e-5 {
				t.Errorf("Normalize(%v) has squared length %f, want 1", tt.input, sum)
			}
		})
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	input := []float32{0, 0, 0}
	out := Normalize(input)
	for i, x := range out {
		if x != 0 {
			t.Errorf("Normalize zero vector changed component %d to %f", i, x)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	input := []float32{3, 4}
	Normalize(input)
	if input[0] != 3 || input[1] != 4 {
		t.Errorf("Normalize mutated its input: %v", input)
	}
}

func TestInnerProduct(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"identical unit vectors", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched length", []float32{1, 0}, []float32{1, 0, 0}, -1},
		{"empty", []float32{}, []float32{}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InnerProduct(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 1e-6 {
				t.Errorf("InnerProduct(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestInnerProductClamped(t *testing.T) {
	// Accumulated float drift can push the dot product of a normalized
	// vector with itself slightly above 1.
	v := Normalize(make512(7))
	got := InnerProduct(v, v)
	if got > 1 {
		t.Errorf("InnerProduct(v, v) = %f, want <= 1", got)
	}
	if got < 0.9999 {
		t.Errorf("InnerProduct(v, v) = %f, want ~1", got)
	}
}

// make512 builds a deterministic 512-dimensional test vector.
func make512(seed int64) []float32 {
	v := make([]float32, 512)
	x := seed
	for i := range v {
		x = (x*6364136223846793005 + 1442695040888963407) % (1 << 31)
		v[i] = float32(x%1000)/1000 - 0.5
	}
	return v
}

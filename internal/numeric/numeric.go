// Package numeric holds the distance and random-number primitives shared by
// every index family: L2/dot on raw float32 spans and a seeded generator
// with normal and uniform draws.
package numeric

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
)

// L2Squared returns the squared Euclidean distance between a and b. Callers
// that only need relative ordering (nearest-centroid, partial sort) should
// prefer this over L2 to avoid the sqrt.
func L2Squared(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2 returns the Euclidean distance between a and b.
func L2(a, b []float32) float64 {
	return math.Sqrt(L2Squared(a, b))
}

// Dot returns the inner product of a and b. It fails when the spans differ
// in length.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("numeric: dot product length mismatch: %d vs %d: %w", len(a), len(b), annerrors.ErrShapeMismatch)
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// NormL2 returns the Euclidean norm of v.
func NormL2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit length. A zero vector is returned
// unchanged since it cannot be scaled.
func Normalize(v []float32) []float32 {
	norm := NormL2(v)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Rand is a seeded pseudo-random source for building index structures
// (random projections, k-means++ sampling, hypercube bit labels). Each
// index owns its own Rand rather than sharing a process-wide generator, so
// concurrent builds stay independent and deterministic.
type Rand struct {
	r *rand.Rand
}

// NewRand creates a seeded generator.
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Normal draws from the standard normal distribution N(0,1).
func (rn *Rand) Normal() float64 {
	return rn.r.NormFloat64()
}

// Uniform draws from the uniform distribution U[a,b).
func (rn *Rand) Uniform(a, b float64) float64 {
	return a + rn.r.Float64()*(b-a)
}

// Float64 draws from U[0,1).
func (rn *Rand) Float64() float64 {
	return rn.r.Float64()
}

// Intn draws a uniform integer in [0,n).
func (rn *Rand) Intn(n int) int {
	return rn.r.Intn(n)
}

// Shuffle permutes a slice of length n in place using swap(i, j).
func (rn *Rand) Shuffle(n int, swap func(i, j int)) {
	rn.r.Shuffle(n, swap)
}

// GaussianVector returns a length-d vector with i.i.d. N(0,1) entries.
func (rn *Rand) GaussianVector(d int) []float32 {
	v := make([]float32, d)
	for i := range v {
		v[i] = float32(rn.Normal())
	}
	return v
}

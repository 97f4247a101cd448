// Package pq implements product quantization: a vector is split into M
// equal-width subspaces, each quantized independently against its own
// codebook of 2^nbits centroids, yielding a fixed-size byte code. Query
// time uses asymmetric distance computation (ADC): a per-subspace lookup
// table of squared distances from the query to every codeword, summed
// per candidate code without ever reconstructing the candidate vector.
package pq

import (
	"fmt"
	"math"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/kmeans"
)

// Codebooks holds one trained centroid table per subspace. C[i] is an
// s x dsub matrix: s = 2^nbits codewords, each dsub-dimensional. When
// fewer than s training rows are available, C[i] has one row per
// training row instead, and S still reports 2^nbits.
type Codebooks struct {
	M     int // number of subspaces
	NBits int // bits per code, 1..8 (codes are packed one byte each)
	S     int // codewords per subspace, 2^NBits
	Dsub  int // dimensions per subspace, d/M
	C     []dataset.Matrix
}

// TrainParams configures codebook training.
type TrainParams struct {
	M           int
	NBits       int
	Seed        int64
	KMeansIters int
	// TrainSubset, if > 0 and < n, restricts codebook training to the
	// first TrainSubset rows (a fixed prefix, not a random sample) for
	// reproducibility across runs with the same input ordering.
	TrainSubset int
}

// Train fits one codebook per subspace against vectors (typically IVF
// residuals: the original vector minus its coarse centroid).
func Train(vectors dataset.Matrix, p TrainParams) (Codebooks, error) {
	if p.M <= 0 {
		return Codebooks{}, fmt.Errorf("pq: M must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if vectors.D%p.M != 0 {
		return Codebooks{}, fmt.Errorf("pq: dimension %d not divisible by M=%d: %w", vectors.D, p.M, annerrors.ErrInvalidConfig)
	}
	if p.NBits <= 0 || p.NBits > 8 {
		return Codebooks{}, fmt.Errorf("pq: nbits=%d must be in [1,8]: %w", p.NBits, annerrors.ErrInvalidConfig)
	}

	dsub := vectors.D / p.M
	s := 1 << uint(p.NBits)

	trainRows := vectors
	if p.TrainSubset > 0 && p.TrainSubset < vectors.N {
		trainRows = dataset.Matrix{N: p.TrainSubset, D: vectors.D, A: vectors.A[:p.TrainSubset*vectors.D]}
	}

	codebooks := make([]dataset.Matrix, p.M)
	for m := 0; m < p.M; m++ {
		sub := dataset.NewMatrix(trainRows.N, dsub)
		for i := 0; i < trainRows.N; i++ {
			copy(sub.Row(i), trainRows.Row(i)[m*dsub:(m+1)*dsub])
		}

		kp := kmeans.Params{
			K:           s,
			MaxIters:    p.KMeansIters,
			Tol:         1e-4,
			Seed:        p.Seed + 1234 + int64(m),
			UseKMeansPP: true,
			TrainSubset: -1,
		}
		if kp.K > sub.N {
			kp.K = sub.N
		}
		result, err := kmeans.Train(sub, kp)
		if err != nil {
			return Codebooks{}, fmt.Errorf("pq: training subspace %d: %w", m, err)
		}
		codebooks[m] = result.Centroids
	}

	return Codebooks{M: p.M, NBits: p.NBits, S: s, Dsub: dsub, C: codebooks}, nil
}

// Encode quantizes vec into an M-byte code, one byte per subspace
// holding the index of its nearest codeword.
func (cb Codebooks) Encode(vec []float32) ([]byte, error) {
	if len(vec) != cb.M*cb.Dsub {
		return nil, fmt.Errorf("pq: vector length %d does not match M*dsub=%d: %w", len(vec), cb.M*cb.Dsub, annerrors.ErrShapeMismatch)
	}
	code := make([]byte, cb.M)
	for m := 0; m < cb.M; m++ {
		sub := vec[m*cb.Dsub : (m+1)*cb.Dsub]
		book := cb.C[m]
		best := 0
		bd := math.Inf(1)
		for c := 0; c < book.N; c++ {
			d := l2sq(book.Row(c), sub)
			if d < bd {
				bd = d
				best = c
			}
		}
		code[m] = byte(best)
	}
	return code, nil
}

func l2sq(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// DistanceTable is the per-subspace lookup table of squared distances
// from a query to every codeword: LUT[m][c] = ||query_sub_m -
// codeword_{m,c}||^2.
type DistanceTable [][]float64

// ComputeDistanceTable builds the LUT for a query vector, to be reused
// across every candidate code scored against that query.
func (cb Codebooks) ComputeDistanceTable(query []float32) (DistanceTable, error) {
	if len(query) != cb.M*cb.Dsub {
		return nil, fmt.Errorf("pq: query length %d does not match M*dsub=%d: %w", len(query), cb.M*cb.Dsub, annerrors.ErrShapeMismatch)
	}
	lut := make(DistanceTable, cb.M)
	for m := 0; m < cb.M; m++ {
		sub := query[m*cb.Dsub : (m+1)*cb.Dsub]
		book := cb.C[m]
		row := make([]float64, book.N)
		for c := 0; c < book.N; c++ {
			row[c] = l2sq(book.Row(c), sub)
		}
		lut[m] = row
	}
	return lut, nil
}

// AsymmetricDistance returns the Euclidean distance estimate for a code
// given a precomputed lookup table: the square root of the sum of
// per-subspace squared distances.
func (lut DistanceTable) AsymmetricDistance(code []byte) float64 {
	var sum float64
	for m, c := range code {
		sum += lut[m][int(c)]
	}
	return math.Sqrt(sum)
}

// CodeSize returns the number of bytes one encoded vector occupies.
func (cb Codebooks) CodeSize() int { return cb.M }

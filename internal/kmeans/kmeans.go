// Package kmeans implements Lloyd's algorithm with k-means++ or uniform
// random seeding, optional training-subset sampling, and worst-point
// reseeding of empty clusters. It backs the coarse quantizer shared by
// IVF-Flat and IVF-PQ, and the per-subspace codebooks inside product
// quantization.
package kmeans

import (
	"fmt"
	"math"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/numeric"
)

// Params configures a training run.
type Params struct {
	K            int     // number of clusters
	MaxIters     int     // Lloyd iterations
	Tol          float64 // stop when max centroid shift < tol
	Seed         int64   // RNG seed
	UseKMeansPP  bool    // k-means++ initialization vs uniform random
	TrainSubset  int     // if > 0 and < n, train on this many sampled points
}

// DefaultParams mirrors the defaults used by the original evaluation tool.
func DefaultParams(seed int64) Params {
	return Params{K: 50, MaxIters: 50, Tol: 1e-4, Seed: seed, UseKMeansPP: true, TrainSubset: -1}
}

// Result holds the trained centroids and, for every row of the full
// input matrix (not just the training subset), the index of its
// nearest final centroid.
type Result struct {
	Centroids dataset.Matrix
	Assign    []int
	FinalSSE  float64
	Iters     int
}

func l2sq(a, b []float32) float64 {
	return numeric.L2Squared(a, b)
}

func argminDist2(c dataset.Matrix, x []float32) int {
	best := 0
	bd := math.Inf(1)
	for j := 0; j < c.N; j++ {
		dj := l2sq(c.Row(j), x)
		if dj < bd {
			bd = dj
			best = j
		}
	}
	return best
}

// chooseSubset returns m distinct indices from [0,n) without
// replacement, via a Fisher-Yates shuffle of the identity permutation.
func chooseSubset(n, m int, rn *numeric.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if m >= n {
		return idx
	}
	rn.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[:m]
}

func initKMeansPP(x dataset.Matrix, trainIdx []int, k int, rn *numeric.Rand) dataset.Matrix {
	d := x.D
	c := dataset.NewMatrix(k, d)

	firstIdx := trainIdx[rn.Intn(len(trainIdx))]
	copy(c.Row(0), x.Row(firstIdx))

	d2 := make([]float64, len(trainIdx))
	for i := range d2 {
		d2[i] = math.Inf(1)
	}

	for cc := 1; cc < k; cc++ {
		for i, idx := range trainIdx {
			dist2 := l2sq(x.Row(idx), c.Row(cc-1))
			if dist2 < d2[i] {
				d2[i] = dist2
			}
		}
		var total float64
		for _, v := range d2 {
			total += v
		}
		if total <= 0 {
			picked := trainIdx[rn.Intn(len(trainIdx))]
			copy(c.Row(cc), x.Row(picked))
			continue
		}
		r := rn.Float64() * total
		var acc float64
		chosen := 0
		for ; chosen < len(d2); chosen++ {
			acc += d2[chosen]
			if acc >= r {
				break
			}
		}
		if chosen == len(d2) {
			chosen = len(d2) - 1
		}
		picked := trainIdx[chosen]
		copy(c.Row(cc), x.Row(picked))
	}
	return c
}

func initRandom(x dataset.Matrix, trainIdx []int, k int, rn *numeric.Rand) dataset.Matrix {
	picks := chooseSubset(len(trainIdx), k, rn)
	c := dataset.NewMatrix(k, x.D)
	for cc, p := range picks {
		copy(c.Row(cc), x.Row(trainIdx[p]))
	}
	return c
}

// reseedEmpties finds the single worst-fit training point (largest
// squared distance to its assigned centroid) and reseeds every empty
// cluster's centroid to that point, setting its count to 1.
func reseedEmpties(c dataset.Matrix, x dataset.Matrix, trainIdx []int, assignTrain []int, counts []int) {
	worstI := -1
	worstD2 := -1.0
	for t, idx := range trainIdx {
		cc := assignTrain[t]
		dist2 := l2sq(x.Row(idx), c.Row(cc))
		if dist2 > worstD2 {
			worstD2 = dist2
			worstI = idx
		}
	}
	for cc := 0; cc < c.N; cc++ {
		if counts[cc] == 0 {
			copy(c.Row(cc), x.Row(worstI))
			counts[cc] = 1
		}
	}
}

// Train fits k-means on x. If p.TrainSubset is > 0 and less than x.N,
// it fits on a uniformly-sampled subset but returns nearest-centroid
// assignments for every row of x using the final centroids.
func Train(x dataset.Matrix, p Params) (Result, error) {
	if x.N <= 0 || x.D <= 0 {
		return Result{}, fmt.Errorf("kmeans: empty dataset: %w", annerrors.ErrInvalidConfig)
	}
	if p.K <= 0 {
		return Result{}, fmt.Errorf("kmeans: k must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if p.K > x.N {
		return Result{}, fmt.Errorf("kmeans: k=%d cannot exceed number of points n=%d: %w", p.K, x.N, annerrors.ErrInvalidConfig)
	}

	rn := numeric.NewRand(p.Seed)

	var trainIdx []int
	if p.TrainSubset > 0 && p.TrainSubset < x.N {
		trainIdx = chooseSubset(x.N, p.TrainSubset, rn)
	} else {
		trainIdx = make([]int, x.N)
		for i := range trainIdx {
			trainIdx[i] = i
		}
	}

	var c dataset.Matrix
	if p.UseKMeansPP {
		c = initKMeansPP(x, trainIdx, p.K, rn)
	} else {
		c = initRandom(x, trainIdx, p.K, rn)
	}

	assignTrain := make([]int, len(trainIdx))
	sums := make([]float64, p.K*x.D)
	counts := make([]int, p.K)

	maxIters := p.MaxIters
	if maxIters <= 0 {
		maxIters = 50
	}
	tol := p.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	it := 0
	finalSSE := 0.0

	for ; it < maxIters; it++ {
		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}

		finalSSE = 0
		for t, idx := range trainIdx {
			xi := x.Row(idx)
			best := 0
			bd := math.Inf(1)
			for cc := 0; cc < c.N; cc++ {
				dc := l2sq(xi, c.Row(cc))
				if dc < bd {
					bd = dc
					best = cc
				}
			}
			assignTrain[t] = best
			finalSSE += bd

			srow := sums[best*x.D : (best+1)*x.D]
			for j, v := range xi {
				srow[j] += float64(v)
			}
			counts[best]++
		}

		maxShift := 0.0
		for cc := 0; cc < c.N; cc++ {
			if counts[cc] == 0 {
				continue
			}
			inv := 1.0 / float64(counts[cc])
			crow := c.Row(cc)
			shiftC := 0.0
			for j := range crow {
				oldc := crow[j]
				newc := float32(sums[cc*x.D+j] * inv)
				diff := float64(newc - oldc)
				shiftC += diff * diff
				crow[j] = newc
			}
			if shiftC > maxShift {
				maxShift = shiftC
			}
		}

		hasEmpty := false
		for _, cnt := range counts {
			if cnt == 0 {
				hasEmpty = true
				break
			}
		}
		if hasEmpty {
			reseedEmpties(c, x, trainIdx, assignTrain, counts)
			continue
		}

		if math.Sqrt(maxShift) < tol {
			break
		}
	}

	assign := make([]int, x.N)
	for i := 0; i < x.N; i++ {
		assign[i] = argminDist2(c, x.Row(i))
	}

	if it >= maxIters {
		it = maxIters - 1
	}

	return Result{
		Centroids: c,
		Assign:    assign,
		FinalSSE:  finalSSE,
		Iters:     it + 1,
	}, nil
}

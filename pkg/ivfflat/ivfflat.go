// Package ivfflat implements an inverted-file index over k-means coarse
// centroids: each base vector lives in the inverted list of its nearest
// centroid, and a query probes the nprobe nearest centroids' lists and
// rescores their members by exact L2 distance.
package ivfflat

import (
	"fmt"
	"sort"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/kmeans"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/numeric"
)

// Config configures index construction.
type Config struct {
	NumCentroids int
	Seed         int64
	// TrainSubset, if > 0 and < n, restricts k-means training to a
	// uniformly sampled subset of that size (final assignment still
	// covers the full base).
	TrainSubset int
	KMeansIters int
}

// Index holds coarse centroids and per-centroid inverted lists of base
// row indices.
type Index struct {
	Centroids dataset.Matrix
	Lists     [][]int
	base      dataset.Matrix
	dim       int
}

// Build trains coarse k-means on base and assigns every row to the
// inverted list of its nearest final centroid.
func Build(base dataset.Matrix, cfg Config) (*Index, error) {
	if base.N == 0 {
		return nil, fmt.Errorf("ivfflat: empty base dataset: %w", annerrors.ErrInvalidConfig)
	}
	if cfg.NumCentroids <= 0 {
		return nil, fmt.Errorf("ivfflat: kclusters must be > 0: %w", annerrors.ErrInvalidConfig)
	}

	kp := kmeans.Params{
		K:           cfg.NumCentroids,
		MaxIters:    cfg.KMeansIters,
		Tol:         1e-4,
		Seed:        cfg.Seed,
		UseKMeansPP: true,
		TrainSubset: cfg.TrainSubset,
	}
	result, err := kmeans.Train(base, kp)
	if err != nil {
		return nil, fmt.Errorf("ivfflat: training coarse quantizer: %w", err)
	}

	lists := make([][]int, result.Centroids.N)
	for i, c := range result.Assign {
		lists[c] = append(lists[c], i)
	}

	return &Index{Centroids: result.Centroids, Lists: lists, base: base, dim: base.D}, nil
}

// topNProbeCentroids returns the indices of the nprobe closest centroids
// to q, in increasing distance order.
func (idx *Index) topNProbeCentroids(q []float32, nprobe int) []int {
	k := idx.Centroids.N
	type scored struct {
		dist float64
		idx  int
	}
	dv := make([]scored, k)
	for j := 0; j < k; j++ {
		dv[j] = scored{dist: numeric.L2Squared(q, idx.Centroids.Row(j)), idx: j}
	}
	sort.Slice(dv, func(i, j int) bool { return dv[i].dist < dv[j].dist })
	if nprobe < k {
		dv = dv[:nprobe]
	}

	out := make([]int, len(dv))
	for i, s := range dv {
		out[i] = s.idx
	}
	return out
}

// TopN is a top-N query result: parallel slices of base indices and
// distances, in increasing distance order.
type TopN struct {
	IDs   []int
	Dists []float64
}

// QueryTopN probes the nprobe nearest centroids' lists and returns the N
// closest members by exact L2 distance.
func (idx *Index) QueryTopN(q []float32, nprobe, n int) (TopN, error) {
	if len(q) != idx.dim {
		return TopN{}, fmt.Errorf("ivfflat: query dimension %d does not match index dimension %d: %w", len(q), idx.dim, annerrors.ErrShapeMismatch)
	}
	if nprobe <= 0 {
		nprobe = 1
	}
	if nprobe > idx.Centroids.N {
		nprobe = idx.Centroids.N
	}

	probeIdx := idx.topNProbeCentroids(q, nprobe)

	type scored struct {
		dist float64
		idx  int
	}
	var cands []scored
	for _, c := range probeIdx {
		for _, pid := range idx.Lists[c] {
			cands = append(cands, scored{dist: numeric.L2(q, idx.base.Row(pid)), idx: pid})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].idx < cands[j].idx
	})
	if n < len(cands) {
		cands = cands[:n]
	}

	result := TopN{IDs: make([]int, len(cands)), Dists: make([]float64, len(cands))}
	for i, s := range cands {
		result.IDs[i] = s.idx
		result.Dists[i] = s.dist
	}
	return result, nil
}

// QueryRange probes the nprobe nearest centroids' lists and returns every
// member within radius r of q.
func (idx *Index) QueryRange(q []float32, nprobe int, r float64) ([]int, error) {
	if len(q) != idx.dim {
		return nil, fmt.Errorf("ivfflat: query dimension %d does not match index dimension %d: %w", len(q), idx.dim, annerrors.ErrShapeMismatch)
	}
	if nprobe <= 0 {
		nprobe = 1
	}
	if nprobe > idx.Centroids.N {
		nprobe = idx.Centroids.N
	}

	probeIdx := idx.topNProbeCentroids(q, nprobe)

	var inRange []int
	for _, c := range probeIdx {
		for _, pid := range idx.Lists[c] {
			if numeric.L2(q, idx.base.Row(pid)) <= r {
				inRange = append(inRange, pid)
			}
		}
	}
	return inRange, nil
}

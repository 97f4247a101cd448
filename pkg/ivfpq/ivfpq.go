// Package ivfpq implements IVF-PQ: coarse k-means partitions the base
// the same way ivfflat does, but each inverted list stores
// product-quantized residual codes instead of full vectors. Queries
// score candidates with asymmetric distance computation against a
// per-query lookup table, never reconstructing a candidate's vector.
package ivfpq

import (
	"fmt"
	"math"
	"sort"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/kmeans"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/pq"
)

// Config configures index construction.
type Config struct {
	NumCentroids  int
	NumSubvectors int // M
	NBits         int // bits per code, codewords = 2^NBits
	Seed          int64
	TrainSubset   int // coarse k-means training subset size
	KMeansIters   int
}

// Index holds coarse centroids, shared PQ codebooks, and per-centroid
// inverted lists of (id, packed residual code).
type Index struct {
	Centroids dataset.Matrix
	Codebooks pq.Codebooks
	IDs       [][]int   // IDs[c] = base indices in cluster c
	Codes     [][]byte  // Codes[c] = packed M-byte codes, one per entry in IDs[c]
	dim       int
}

// Build trains coarse k-means, encodes every base vector's residual
// (vector minus its coarse centroid) against freshly trained PQ
// codebooks, and packs the resulting codes into per-cluster lists.
func Build(base dataset.Matrix, cfg Config) (*Index, error) {
	if base.N == 0 {
		return nil, fmt.Errorf("ivfpq: empty base dataset: %w", annerrors.ErrInvalidConfig)
	}
	if cfg.NumCentroids <= 0 {
		return nil, fmt.Errorf("ivfpq: kclusters must be > 0: %w", annerrors.ErrInvalidConfig)
	}

	kp := kmeans.Params{
		K:           cfg.NumCentroids,
		MaxIters:    cfg.KMeansIters,
		Tol:         1e-4,
		Seed:        cfg.Seed,
		UseKMeansPP: true,
		TrainSubset: cfg.TrainSubset,
	}
	coarse, err := kmeans.Train(base, kp)
	if err != nil {
		return nil, fmt.Errorf("ivfpq: training coarse quantizer: %w", err)
	}

	residuals := dataset.NewMatrix(base.N, base.D)
	for i := 0; i < base.N; i++ {
		row := residuals.Row(i)
		centroid := coarse.Centroids.Row(coarse.Assign[i])
		base := base.Row(i)
		for j := range row {
			row[j] = base[j] - centroid[j]
		}
	}

	// residual codebook training prefix is independent of the coarse
	// quantizer's own subset: it must cover at least s = 2^nbits rows so
	// every codeword has a chance to be chosen, per trainN = sqrt(n)
	// clamped up to s and down to n.
	s := 1 << uint(cfg.NBits)
	trainSubset := int(math.Sqrt(float64(base.N)))
	if trainSubset < s {
		trainSubset = s
	}
	if trainSubset > base.N {
		trainSubset = base.N
	}
	codebooks, err := pq.Train(residuals, pq.TrainParams{
		M:           cfg.NumSubvectors,
		NBits:       cfg.NBits,
		Seed:        cfg.Seed,
		KMeansIters: cfg.KMeansIters,
		TrainSubset: trainSubset,
	})
	if err != nil {
		return nil, fmt.Errorf("ivfpq: training PQ codebooks: %w", err)
	}

	ids := make([][]int, coarse.Centroids.N)
	codes := make([][]byte, coarse.Centroids.N)
	for i := 0; i < base.N; i++ {
		c := coarse.Assign[i]
		code, err := codebooks.Encode(residuals.Row(i))
		if err != nil {
			return nil, fmt.Errorf("ivfpq: encoding residual %d: %w", i, err)
		}
		ids[c] = append(ids[c], i)
		codes[c] = append(codes[c], code...)
	}

	return &Index{Centroids: coarse.Centroids, Codebooks: codebooks, IDs: ids, Codes: codes, dim: base.D}, nil
}

func l2sq(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func (idx *Index) topNProbeCentroids(q []float32, nprobe int) []int {
	k := idx.Centroids.N
	type scored struct {
		dist float64
		idx  int
	}
	dv := make([]scored, k)
	for j := 0; j < k; j++ {
		dv[j] = scored{dist: l2sq(q, idx.Centroids.Row(j)), idx: j}
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
// approximate distances, in increasing distance order.
type TopN struct {
	IDs   []int
	Dists []float64
}

// codeAt returns the packed code for the e-th entry of cluster c.
func (idx *Index) codeAt(c, e int) []byte {
	size := idx.Codebooks.CodeSize()
	return idx.Codes[c][e*size : (e+1)*size]
}

// QueryTopN probes the nprobe nearest centroids, builds one residual
// lookup table per probed centroid, and scores every entry's packed code
// against it via asymmetric distance computation.
func (idx *Index) QueryTopN(q []float32, nprobe, n int) (TopN, error) {
	if len(q) != idx.dim {
		return TopN{}, fmt.Errorf("ivfpq: query dimension %d does not match index dimension %d: %w", len(q), idx.dim, annerrors.ErrShapeMismatch)
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
		residual := make([]float32, idx.dim)
		centroid := idx.Centroids.Row(c)
		for j := range residual {
			residual[j] = q[j] - centroid[j]
		}
		lut, err := idx.Codebooks.ComputeDistanceTable(residual)
		if err != nil {
			return TopN{}, fmt.Errorf("ivfpq: computing distance table: %w", err)
		}
		for e, pid := range idx.IDs[c] {
			d := lut.AsymmetricDistance(idx.codeAt(c, e))
			cands = append(cands, scored{dist: d, idx: pid})
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

// QueryRange probes the nprobe nearest centroids and returns every
// member whose approximate (ADC) distance is within r of q.
func (idx *Index) QueryRange(q []float32, nprobe int, r float64) ([]int, error) {
	if len(q) != idx.dim {
		return nil, fmt.Errorf("ivfpq: query dimension %d does not match index dimension %d: %w", len(q), idx.dim, annerrors.ErrShapeMismatch)
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
		residual := make([]float32, idx.dim)
		centroid := idx.Centroids.Row(c)
		for j := range residual {
			residual[j] = q[j] - centroid[j]
		}
		lut, err := idx.Codebooks.ComputeDistanceTable(residual)
		if err != nil {
			return nil, fmt.Errorf("ivfpq: computing distance table: %w", err)
		}
		for e, pid := range idx.IDs[c] {
			if lut.AsymmetricDistance(idx.codeAt(c, e)) <= r {
				inRange = append(inRange, pid)
			}
		}
	}
	return inRange, nil
}

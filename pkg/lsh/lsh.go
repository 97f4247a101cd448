// Package lsh implements Euclidean locality-sensitive hashing: L hash
// tables, each keyed by a G function combining k random-projection H
// functions, with the "querying trick" (an auxiliary per-bucket ID that
// lets a query only consider entries that collide on both bucket and
// ID) used to cut down false positives within a bucket.
package lsh

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/numeric"
)

// coeffModulus is the large prime used to fold G function coefficients
// and hash values into a bounded range.
const coeffModulus int64 = 4294967291

// HFunction is a single random-projection hash h(p) = floor((v.p + t) / w).
type HFunction struct {
	v []float32
	t float64
	w float64
}

func newHFunction(dim int, w float64, rn *numeric.Rand) HFunction {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rn.Normal())
	}
	return HFunction{v: v, t: rn.Uniform(0, w), w: w}
}

func (h HFunction) hash(p []float32) int {
	var proj float64
	for i := range p {
		proj += float64(h.v[i]) * float64(p[i])
	}
	return int(math.Floor((proj + h.t) / h.w))
}

// GFunction combines k H functions into a single bucket assignment plus
// an auxiliary ID used for the querying trick. Its combining coefficients
// are drawn from a fixed seed (42) independent of the index's own seed,
// so every G function in every run uses the same coefficient sequence.
type GFunction struct {
	h         []HFunction
	coeffs    []int64
	tableSize int
}

func newGFunction(dim int, w float64, k, tableSize int, rn *numeric.Rand) GFunction {
	h := make([]HFunction, k)
	for i := range h {
		h[i] = newHFunction(dim, w, rn)
	}

	coeffRand := rand.New(rand.NewSource(42))
	coeffs := make([]int64, k)
	for i := range coeffs {
		coeffs[i] = int64(coeffRand.Intn(1000000000) + 1)
	}

	return GFunction{h: h, coeffs: coeffs, tableSize: tableSize}
}

// computeHashValue returns the bucket index and the auxiliary ID for p.
func (g GFunction) computeHashValue(p []float32) (bucket int, id uint32) {
	var sum int64
	for i, hf := range g.h {
		hi := int64(hf.hash(p))
		sum += (g.coeffs[i] * hi) % coeffModulus
	}
	sum = ((sum % coeffModulus) + coeffModulus) % coeffModulus
	id = uint32(sum)
	return int(id % uint32(g.tableSize)), id
}

type bucketEntry struct {
	index int
	id    uint32
}

// Index is a complete LSH index: L tables, each with its own G function.
type Index struct {
	dim       int
	k         int
	l         int
	w         float64
	tableSize int
	seed      int64

	g      []GFunction
	tables []map[int][]bucketEntry
	base   dataset.Matrix
}

// Neighbor is a scored search result.
type Neighbor struct {
	Index    int
	Distance float64
}

// New constructs an LSH index with k hash functions per table, L tables,
// bucket width w, and an optional explicit table size (<=0 means derive
// it from the dataset size at BuildIndex time).
func New(dim, k, l int, w float64, tableSize int, seed int64) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("lsh: dimension must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if k <= 0 || l <= 0 {
		return nil, fmt.Errorf("lsh: k and L must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if w <= 0 {
		return nil, fmt.Errorf("lsh: bucket width w must be > 0: %w", annerrors.ErrInvalidConfig)
	}

	rn := numeric.NewRand(seed)
	g := make([]GFunction, l)
	for i := range g {
		g[i] = newGFunction(dim, w, k, tableSize, rn)
	}

	return &Index{dim: dim, k: k, l: l, w: w, tableSize: tableSize, seed: seed, g: g}, nil
}

// BuildIndex hashes every row of base into all L tables. If the index
// was constructed with tableSize <= 0, it is derived here as
// max(1, n/8).
func (idx *Index) BuildIndex(base dataset.Matrix) error {
	if base.D != idx.dim {
		return fmt.Errorf("lsh: dataset dimension %d does not match index dimension %d: %w", base.D, idx.dim, annerrors.ErrShapeMismatch)
	}

	n := base.N
	if idx.tableSize <= 0 {
		ts := n / 8
		if ts < 1 {
			ts = 1
		}
		idx.tableSize = ts
		for i := range idx.g {
			idx.g[i].tableSize = ts
		}
	}

	idx.base = base
	idx.tables = make([]map[int][]bucketEntry, idx.l)
	for j := range idx.tables {
		idx.tables[j] = make(map[int][]bucketEntry, idx.tableSize)
	}

	for i := 0; i < n; i++ {
		row := base.Row(i)
		for j := 0; j < idx.l; j++ {
			bucket, id := idx.g[j].computeHashValue(row)
			idx.tables[j][bucket] = append(idx.tables[j][bucket], bucketEntry{index: i, id: id})
		}
	}
	return nil
}

// candidates collects the querying-trick candidate set for query,
// falling back to the entire dataset if no table contributes a match.
func (idx *Index) candidates(query []float32) map[int]struct{} {
	cands := make(map[int]struct{})
	for j := 0; j < idx.l; j++ {
		bucket, queryID := idx.g[j].computeHashValue(query)
		entries, ok := idx.tables[j][bucket]
		if !ok {
			continue
		}
		for _, e := range entries {
			if e.id == queryID {
				cands[e.index] = struct{}{}
			}
		}
	}
	if len(cands) == 0 {
		for i := 0; i < idx.base.N; i++ {
			cands[i] = struct{}{}
		}
	}
	return cands
}

// SearchKNN returns the N nearest candidates to query by true L2
// distance, after reducing to the querying-trick candidate set.
func (idx *Index) SearchKNN(query []float32, n int) ([]Neighbor, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("lsh: query dimension %d does not match index dimension %d: %w", len(query), idx.dim, annerrors.ErrShapeMismatch)
	}
	cands := idx.candidates(query)

	results := make([]Neighbor, 0, len(cands))
	for i := range cands {
		results = append(results, Neighbor{Index: i, Distance: numeric.L2(query, idx.base.Row(i))})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Index < results[j].Index
	})
	if n < len(results) {
		results = results[:n]
	}
	return results, nil
}

// SearchRadius returns the indices of every candidate within radius r of
// query, after the querying-trick reduction.
func (idx *Index) SearchRadius(query []float32, r float64) ([]int, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("lsh: query dimension %d does not match index dimension %d: %w", len(query), idx.dim, annerrors.ErrShapeMismatch)
	}
	cands := idx.candidates(query)

	var neighbors []int
	for i := range cands {
		if numeric.L2(query, idx.base.Row(i)) <= r {
			neighbors = append(neighbors, i)
		}
	}
	return neighbors, nil
}

// TableSize returns the resolved table size (after BuildIndex).
func (idx *Index) TableSize() int { return idx.tableSize }

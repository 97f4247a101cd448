// Package hypercube implements a random-hyperplane hypercube index for
// Euclidean search: k random L2 hash functions each contribute one lazily
// assigned bit, placing every point at a vertex of a k-dimensional
// hypercube. A query visits its home vertex plus nearby vertices in
// increasing Hamming distance until it has gathered enough candidates.
package hypercube

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/numeric"
)

// hFunction is a single random-projection L2 hash, identical in form to
// the one used by the LSH package.
type hFunction struct {
	v []float32
	t float64
	w float64
}

func newHFunction(dim int, w float64, rn *numeric.Rand) hFunction {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rn.Normal())
	}
	return hFunction{v: v, t: rn.Uniform(0, w), w: w}
}

func (h hFunction) hash(p []float32) int {
	var proj float64
	for i := range p {
		proj += float64(h.v[i]) * float64(p[i])
	}
	return int(math.Floor((proj + h.t) / h.w))
}

// Neighbor is a scored search result.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is a complete hypercube index.
type Index struct {
	dim    int
	k      int
	w      float64
	m      int // max candidates examined per query
	probes int // max vertices visited per query
	seed   int64

	h       []hFunction
	fTables []map[int]int // per-bit lazily assigned h_i(p) -> {0,1}
	rn      *numeric.Rand // shared source for lazy bit assignment
	mu      sync.Mutex    // serializes lazy bit assignment across queries

	cube map[string][]int
	base dataset.Matrix
}

// New constructs a hypercube index with k bits, bucket width w, a cap m
// on candidates examined per query, and a cap probes on vertices visited
// per query (the home vertex counts as the first).
func New(dim, k int, w float64, m, probes int, seed int64) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hypercube: dimension must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if k <= 0 {
		return nil, fmt.Errorf("hypercube: k must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if w <= 0 {
		return nil, fmt.Errorf("hypercube: bucket width w must be > 0: %w", annerrors.ErrInvalidConfig)
	}
	if m <= 0 || probes <= 0 {
		return nil, fmt.Errorf("hypercube: M and probes must be > 0: %w", annerrors.ErrInvalidConfig)
	}

	rn := numeric.NewRand(seed)
	h := make([]hFunction, k)
	for i := range h {
		h[i] = newHFunction(dim, w, rn)
	}
	fTables := make([]map[int]int, k)
	for i := range fTables {
		fTables[i] = make(map[int]int)
	}

	return &Index{dim: dim, k: k, w: w, m: m, probes: probes, seed: seed, h: h, fTables: fTables, rn: rn}, nil
}

// hashToVertex computes g(p): the k-bit vertex string for p. Each bit is
// assigned lazily and memoized the first time its underlying h_i(p)
// value is seen, so the labeling is consistent across calls.
func (idx *Index) hashToVertex(p []float32) string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	bits := make([]byte, idx.k)
	for i := 0; i < idx.k; i++ {
		hi := idx.h[i].hash(p)
		bit, ok := idx.fTables[i][hi]
		if !ok {
			if idx.rn.Uniform(0, 1) < 0.5 {
				bit = 0
			} else {
				bit = 1
			}
			idx.fTables[i][hi] = bit
		}
		if bit == 0 {
			bits[i] = '0'
		} else {
			bits[i] = '1'
		}
	}
	return string(bits)
}

// BuildIndex hashes every row of base into its cube vertex.
func (idx *Index) BuildIndex(base dataset.Matrix) error {
	if base.D != idx.dim {
		return fmt.Errorf("hypercube: dataset dimension %d does not match index dimension %d: %w", base.D, idx.dim, annerrors.ErrShapeMismatch)
	}
	idx.base = base
	idx.cube = make(map[string][]int, base.N)
	for i := 0; i < base.N; i++ {
		vertex := idx.hashToVertex(base.Row(i))
		idx.cube[vertex] = append(idx.cube[vertex], i)
	}
	return nil
}

func flip(s string, i int) string {
	b := []byte(s)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}

// enumerateProbes generates up to limit vertices in increasing Hamming
// distance from home, starting with home itself.
func (idx *Index) enumerateProbes(home string, limit int) []string {
	order := make([]string, 0, limit)
	order = append(order, home)
	if limit <= 1 {
		return order
	}

	n := len(home)

	// distance 1: single-bit flips
	for i := 0; i < n && len(order) < limit; i++ {
		order = append(order, flip(home, i))
	}
	if len(order) >= limit {
		return order
	}

	// distance 2: all pair flips, enumerated in lexicographic (i,j) order
	for i := 0; i < n && len(order) < limit; i++ {
		for j := i + 1; j < n && len(order) < limit; j++ {
			str := flip(flip(home, i), j)
			order = append(order, str)
		}
	}
	if len(order) >= limit {
		return order
	}

	// distance 3+: BFS over the Hamming graph
	visited := make(map[string]struct{}, len(order))
	for _, v := range order {
		visited[v] = struct{}{}
	}
	queue := append([]string(nil), order...)
	for len(queue) > 0 && len(order) < limit {
		current := queue[0]
		queue = queue[1:]
		for i := 0; i < n && len(order) < limit; i++ {
			neighbor := flip(current, i)
			if _, seen := visited[neighbor]; !seen {
				visited[neighbor] = struct{}{}
				order = append(order, neighbor)
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func (idx *Index) collectCandidates(query []float32) []int {
	home := idx.hashToVertex(query)
	probes := idx.probes
	if probes < 1 {
		probes = 1
	}
	toVisit := idx.enumerateProbes(home, probes)

	seen := make(map[int]struct{})
	var candidates []int
	for _, vertex := range toVisit {
		entries, ok := idx.cube[vertex]
		if !ok {
			continue
		}
		for _, index := range entries {
			if len(candidates) >= idx.m {
				break
			}
			if _, dup := seen[index]; !dup {
				seen[index] = struct{}{}
				candidates = append(candidates, index)
			}
		}
		if len(candidates) >= idx.m {
			break
		}
	}
	return candidates
}

// SearchKNN returns the N nearest candidates to query by true L2
// distance, drawn from the vertices visited by enumerateProbes.
func (idx *Index) SearchKNN(query []float32, n int) ([]Neighbor, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("hypercube: query dimension %d does not match index dimension %d: %w", len(query), idx.dim, annerrors.ErrShapeMismatch)
	}
	candidates := idx.collectCandidates(query)

	results := make([]Neighbor, len(candidates))
	for i, index := range candidates {
		results[i] = Neighbor{Index: index, Distance: numeric.L2(query, idx.base.Row(index))}
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

// SearchRadius returns the indices of every visited candidate within
// radius r of query.
func (idx *Index) SearchRadius(query []float32, r float64) ([]int, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("hypercube: query dimension %d does not match index dimension %d: %w", len(query), idx.dim, annerrors.ErrShapeMismatch)
	}
	candidates := idx.collectCandidates(query)

	var inRange []int
	for _, index := range candidates {
		if numeric.L2(query, idx.base.Row(index)) <= r {
			inRange = append(inRange, index)
		}
	}
	return inRange, nil
}

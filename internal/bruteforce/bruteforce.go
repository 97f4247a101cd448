// Package bruteforce implements exact nearest-neighbor search by linear
// scan. It is the ground-truth baseline the approximate index families
// are measured against, and it also produces the full base-to-base k-NN
// graph used by offline evaluation tooling.
package bruteforce

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/numeric"
)

// Neighbor is a single scored result: the row index in the dataset and
// its distance to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// KNNSearch returns the N nearest rows of m to query, ordered by
// ascending L2 distance. If N exceeds m.N, all rows are returned.
func KNNSearch(m dataset.Matrix, query []float32, n int) ([]Neighbor, error) {
	if len(query) != m.D {
		return nil, fmt.Errorf("bruteforce: query dimension %d does not match dataset dimension %d: %w", len(query), m.D, annerrors.ErrShapeMismatch)
	}
	results := make([]Neighbor, m.N)
	for i := 0; i < m.N; i++ {
		results[i] = Neighbor{Index: i, Distance: numeric.L2(m.Row(i), query)}
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

// RangeSearch returns the indices of every row within radius r of query.
// The order follows dataset row order, not distance.
func RangeSearch(m dataset.Matrix, query []float32, r float64) ([]int, error) {
	if len(query) != m.D {
		return nil, fmt.Errorf("bruteforce: query dimension %d does not match dataset dimension %d: %w", len(query), m.D, annerrors.ErrShapeMismatch)
	}
	var inRange []int
	for i := 0; i < m.N; i++ {
		if numeric.L2(m.Row(i), query) <= r {
			inRange = append(inRange, i)
		}
	}
	return inRange, nil
}

// KNNGraph computes the full base-to-base k-NN graph: for every row i,
// its k nearest other rows, padded with -1 if fewer than k neighbors
// exist. The result is a flattened n*k array of row indices.
func KNNGraph(m dataset.Matrix, k int) ([]int32, error) {
	if m.N == 0 || k <= 0 {
		return nil, nil
	}
	graph := make([]int32, m.N*k)
	for i := range graph {
		graph[i] = -1
	}

	for i := 0; i < m.N; i++ {
		// request k+1 since the point itself will appear as its own nearest neighbor
		neighbors, err := KNNSearch(m, m.Row(i), k+1)
		if err != nil {
			return nil, err
		}

		row := make([]int32, 0, k)
		for _, nb := range neighbors {
			if nb.Index == i {
				continue
			}
			row = append(row, int32(nb.Index))
			if len(row) == k {
				break
			}
		}
		for len(row) < k {
			row = append(row, -1)
		}
		copy(graph[i*k:(i+1)*k], row)
	}
	return graph, nil
}

// SaveKNNGraph writes a k-NN graph to path in a small binary format:
// int32 n, int32 k, then n*k int32 indices, all little-endian.
func SaveKNNGraph(path string, graph []int32, n, k int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bruteforce: cannot create knn graph file %q: %w: %v", path, annerrors.ErrIO, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, int32(n)); err != nil {
		return fmt.Errorf("bruteforce: writing knn graph header: %w: %v", annerrors.ErrIO, err)
	}
	if err := binary.Write(f, binary.LittleEndian, int32(k)); err != nil {
		return fmt.Errorf("bruteforce: writing knn graph header: %w: %v", annerrors.ErrIO, err)
	}
	if err := binary.Write(f, binary.LittleEndian, graph); err != nil {
		return fmt.Errorf("bruteforce: writing knn graph body: %w: %v", annerrors.ErrIO, err)
	}
	return nil
}

// Recall computes the fraction of groundTruth's entries that also appear
// in approx, as a single ratio |approx ∩ groundTruth| / |groundTruth|. Used to report Recall@N against the brute-force
// baseline.
func Recall(approx, groundTruth []int) float64 {
	if len(groundTruth) == 0 {
		return 0
	}
	set := make(map[int]struct{}, len(groundTruth))
	for _, idx := range groundTruth {
		set[idx] = struct{}{}
	}
	hits := 0
	for _, idx := range approx {
		if _, ok := set[idx]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}

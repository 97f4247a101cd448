package ivfpq

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
)

func fixture() dataset.Matrix {
	m := dataset.NewMatrix(40, 8)
	for i := 0; i < m.N; i++ {
		row := m.Row(i)
		base := float32(0)
		if i >= 20 {
			base = 50
		}
		for j := range row {
			row[j] = base + float32((i*3+j*5)%4)
		}
	}
	return m
}

func TestBuildPacksCodesPerCluster(t *testing.T) {
	base := fixture()
	idx, err := Build(base, Config{NumCentroids: 2, NumSubvectors: 4, NBits: 3, Seed: 1, KMeansIters: 30})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Centroids.N != 2 {
		t.Fatalf("centroid count = %d, want 2", idx.Centroids.N)
	}
	codeSize := idx.Codebooks.CodeSize()
	if codeSize != 4 {
		t.Fatalf("code size = %d, want 4 (NumSubvectors)", codeSize)
	}
	for c, ids := range idx.IDs {
		wantBytes := len(ids) * codeSize
		if len(idx.Codes[c]) != wantBytes {
			t.Fatalf("cluster %d: packed code bytes = %d, want %d (%d entries * %d bytes)",
				c, len(idx.Codes[c]), wantBytes, len(ids), codeSize)
		}
	}
}

func TestQueryTopNReturnsPlausibleNeighbors(t *testing.T) {
	base := fixture()
	idx, err := Build(base, Config{NumCentroids: 2, NumSubvectors: 4, NBits: 4, Seed: 2, KMeansIters: 30})
	if err != nil {
		t.Fatal(err)
	}
	query := make([]float32, 8)
	copy(query, base.Row(0))

	result, err := idx.QueryTopN(query, idx.Centroids.N, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.IDs) == 0 {
		t.Fatal("expected at least one result")
	}
	foundLowCluster := false
	for _, id := range result.IDs {
		if id < 20 {
			foundLowCluster = true
		}
	}
	if !foundLowCluster {
		t.Fatalf("query near the low cluster should surface a low-cluster neighbor, got %v", result.IDs)
	}
}

func TestQueryRangeDimensionMismatch(t *testing.T) {
	base := fixture()
	idx, err := Build(base, Config{NumCentroids: 2, NumSubvectors: 4, NBits: 3, Seed: 1, KMeansIters: 20})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.QueryRange([]float32{1, 2}, 1, 10); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBuildRejectsZeroCentroids(t *testing.T) {
	base := fixture()
	if _, err := Build(base, Config{NumCentroids: 0, NumSubvectors: 4, NBits: 3, Seed: 1}); err == nil {
		t.Fatal("expected error for NumCentroids <= 0")
	}
}

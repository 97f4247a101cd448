package kmeans

import (
	"math"
	"testing"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
)

func twoClusterFixture() dataset.Matrix {
	pts := [][]float32{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{20, 20}, {20, 21}, {21, 20}, {21, 21},
	}
	m := dataset.NewMatrix(len(pts), 2)
	for i, p := range pts {
		copy(m.Row(i), p)
	}
	return m
}

func TestTrainTwoWellSeparatedClusters(t *testing.T) {
	x := twoClusterFixture()
	result, err := Train(x, Params{K: 2, MaxIters: 50, Tol: 1e-6, Seed: 1, UseKMeansPP: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Centroids.N != 2 {
		t.Fatalf("centroid count = %d, want 2", result.Centroids.N)
	}

	// every point in the low cluster should share an assignment, and
	// differ from every point in the high cluster.
	lowLabel := result.Assign[0]
	for i := 0; i < 4; i++ {
		if result.Assign[i] != lowLabel {
			t.Fatalf("point %d not grouped with low cluster: assign=%v", i, result.Assign)
		}
	}
	highLabel := result.Assign[4]
	if highLabel == lowLabel {
		t.Fatalf("high and low clusters were not separated: assign=%v", result.Assign)
	}
	for i := 4; i < 8; i++ {
		if result.Assign[i] != highLabel {
			t.Fatalf("point %d not grouped with high cluster: assign=%v", i, result.Assign)
		}
	}
}

func TestTrainDeterministicWithSameSeed(t *testing.T) {
	x := twoClusterFixture()
	r1, err := Train(x, Params{K: 2, MaxIters: 50, Tol: 1e-6, Seed: 42, UseKMeansPP: true})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Train(x, Params{K: 2, MaxIters: 50, Tol: 1e-6, Seed: 42, UseKMeansPP: true})
	if err != nil {
		t.Fatal(err)
	}
	for i := range r1.Assign {
		if r1.Assign[i] != r2.Assign[i] {
			t.Fatalf("same-seed training runs diverged at point %d: %d vs %d", i, r1.Assign[i], r2.Assign[i])
		}
	}
}

func TestTrainRejectsKGreaterThanN(t *testing.T) {
	x := twoClusterFixture()
	if _, err := Train(x, Params{K: 100, Seed: 1}); err == nil {
		t.Fatal("expected error when k exceeds n")
	}
}

func TestTrainSubsetStillAssignsFullDataset(t *testing.T) {
	x := twoClusterFixture()
	result, err := Train(x, Params{K: 2, MaxIters: 50, Tol: 1e-6, Seed: 3, UseKMeansPP: true, TrainSubset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Assign) != x.N {
		t.Fatalf("assign length = %d, want %d (full dataset, not just the training subset)", len(result.Assign), x.N)
	}
}

func TestReseedEmptiesUsesWorstPoint(t *testing.T) {
	// three colinear points with one centroid placed so the third cluster
	// starts empty; reseeding must pick the globally worst-fit point, not
	// leave the cluster centroid unchanged.
	x := dataset.NewMatrix(3, 1)
	copy(x.Row(0), []float32{0})
	copy(x.Row(1), []float32{1})
	copy(x.Row(2), []float32{100})

	c := dataset.NewMatrix(3, 1)
	copy(c.Row(0), []float32{0})
	copy(c.Row(1), []float32{0.5})
	copy(c.Row(2), []float32{0.5})

	trainIdx := []int{0, 1, 2}
	assignTrain := []int{0, 1, 1} // cluster 2 has no members
	counts := []int{1, 2, 0}

	reseedEmpties(c, x, trainIdx, assignTrain, counts)

	if counts[2] != 1 {
		t.Fatalf("reseeded cluster count = %d, want 1", counts[2])
	}
	if c.Row(2)[0] != 100 {
		t.Fatalf("reseeded centroid = %v, want the globally worst-fit point (100)", c.Row(2))
	}
}

func TestTrainFinishesWithDefaultIterationBudget(t *testing.T) {
	x := twoClusterFixture()
	params := DefaultParams(5)
	params.K = 2
	result, err := Train(x, params)
	if err != nil {
		t.Fatal(err)
	}
	if result.Iters <= 0 {
		t.Fatalf("Iters = %d, want > 0", result.Iters)
	}
	if math.IsNaN(result.FinalSSE) {
		t.Fatal("FinalSSE is NaN")
	}
}

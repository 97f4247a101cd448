package pq

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
)

func fixture(n, d int) dataset.Matrix {
	m := dataset.NewMatrix(n, d)
	for i := 0; i < n; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = float32((i*31 + j*7) % 17)
		}
	}
	return m
}

func TestTrainRejectsIndivisibleDimension(t *testing.T) {
	x := fixture(16, 6)
	if _, err := Train(x, TrainParams{M: 4, NBits: 4, Seed: 1}); err == nil {
		t.Fatal("expected error when dimension is not divisible by M")
	}
}

func TestTrainCodebookShape(t *testing.T) {
	x := fixture(32, 8)
	cb, err := Train(x, TrainParams{M: 4, NBits: 3, Seed: 1, KMeansIters: 10})
	if err != nil {
		t.Fatal(err)
	}
	if cb.M != 4 || cb.Dsub != 2 || cb.S != 8 {
		t.Fatalf("codebook shape M=%d Dsub=%d S=%d, want 4/2/8", cb.M, cb.Dsub, cb.S)
	}
	if len(cb.C) != 4 {
		t.Fatalf("len(C) = %d, want 4", len(cb.C))
	}
	for _, book := range cb.C {
		if book.D != 2 {
			t.Fatalf("subspace codebook dimension = %d, want 2", book.D)
		}
	}
}

func TestEncodeProducesOneBytePerSubspace(t *testing.T) {
	x := fixture(32, 8)
	cb, err := Train(x, TrainParams{M: 4, NBits: 3, Seed: 1, KMeansIters: 10})
	if err != nil {
		t.Fatal(err)
	}
	code, err := cb.Encode(x.Row(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != cb.CodeSize() || len(code) != 4 {
		t.Fatalf("code length = %d, want %d", len(code), cb.CodeSize())
	}
	for _, b := range code {
		if int(b) >= cb.S {
			t.Fatalf("code byte %d out of range [0,%d)", b, cb.S)
		}
	}
}

func TestAsymmetricDistanceMatchesExactForOwnCodeword(t *testing.T) {
	x := fixture(32, 8)
	cb, err := Train(x, TrainParams{M: 4, NBits: 3, Seed: 2, KMeansIters: 20})
	if err != nil {
		t.Fatal(err)
	}

	// build a query out of the codebook's own centroids, so the encoded
	// code's ADC distance back to that same query should be ~0.
	query := make([]float32, cb.M*cb.Dsub)
	code := make([]byte, cb.M)
	for m := 0; m < cb.M; m++ {
		copy(query[m*cb.Dsub:(m+1)*cb.Dsub], cb.C[m].Row(0))
		code[m] = 0
	}

	lut, err := cb.ComputeDistanceTable(query)
	if err != nil {
		t.Fatal(err)
	}
	d := lut.AsymmetricDistance(code)
	if d > 1e-6 {
		t.Fatalf("ADC distance to own codeword = %v, want ~0", d)
	}
}

func TestComputeDistanceTableDimensionMismatch(t *testing.T) {
	x := fixture(32, 8)
	cb, err := Train(x, TrainParams{M: 4, NBits: 3, Seed: 1, KMeansIters: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cb.ComputeDistanceTable([]float32{1, 2, 3}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

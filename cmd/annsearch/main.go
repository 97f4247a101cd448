// Command annsearch is the evaluation CLI: it builds exactly one of the
// four index families over a base dataset, runs every query vector
// against it, and reports per-query results plus aggregate approximation
// factor, recall, and throughput against an exact brute-force baseline.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/bruteforce"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/obs"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/hypercube"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfflat"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfpq"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/lsh"
)

type config struct {
	inputPath  string
	queryPath  string
	outputPath string
	dtype      string
	n          int
	r          float64
	doRange    bool
	seed       int64

	useLSH       bool
	k            int
	l            int
	w            float64

	useHypercube bool
	kproj        int
	m            int
	probes       int

	useIVFFlat bool
	kclusters  int
	nprobe     int

	useIVFPQ bool
	mPQ      int
	nbits    int
}

func parseArgs(args []string) (config, error) {
	fs := flag.NewFlagSet("annsearch", flag.ContinueOnError)
	cfg := config{outputPath: "results.txt", n: 1, r: 2000.0, seed: 1, k: 4, l: 5, w: 4.0, kproj: 14, m: 10, probes: 2, kclusters: 50, nprobe: 5, mPQ: 16, nbits: 8}

	fs.StringVar(&cfg.inputPath, "d", "", "base dataset path")
	fs.StringVar(&cfg.queryPath, "q", "", "query dataset path")
	fs.StringVar(&cfg.outputPath, "o", cfg.outputPath, "output report path (not written: the report is printed to stdout)")
	fs.StringVar(&cfg.dtype, "type", "", "dataset type: mnist|sift")
	fs.IntVar(&cfg.n, "N", cfg.n, "number of nearest neighbors to return")
	fs.Float64Var(&cfg.r, "R", cfg.r, "range search radius")
	fs.BoolVar(&cfg.doRange, "range", false, "run range search instead of top-N")
	seedArg := fs.Int64("seed", cfg.seed, "RNG seed")

	fs.BoolVar(&cfg.useLSH, "lsh", false, "use LSH index")
	fs.IntVar(&cfg.k, "k", cfg.k, "LSH: hash functions per table")
	fs.IntVar(&cfg.l, "L", cfg.l, "LSH: number of tables")
	fs.Float64Var(&cfg.w, "w", cfg.w, "LSH/Hypercube: bucket width")

	fs.BoolVar(&cfg.useHypercube, "hypercube", false, "use hypercube index")
	fs.IntVar(&cfg.kproj, "kproj", cfg.kproj, "hypercube: projection bits")
	mArg := fs.Int("M", cfg.m, "hypercube: max candidates / IVF-PQ: subvectors")
	fs.IntVar(&cfg.probes, "probes", cfg.probes, "hypercube: max vertices visited")

	fs.BoolVar(&cfg.useIVFFlat, "ivfflat", false, "use IVF-Flat index")
	fs.IntVar(&cfg.kclusters, "kclusters", cfg.kclusters, "IVF: number of coarse clusters")
	fs.IntVar(&cfg.nprobe, "nprobe", cfg.nprobe, "IVF: lists probed per query")

	fs.BoolVar(&cfg.useIVFPQ, "ivfpq", false, "use IVF-PQ index")
	fs.IntVar(&cfg.nbits, "nbits", cfg.nbits, "IVF-PQ: bits per code")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	cfg.seed = *seedArg
	cfg.m = *mArg
	cfg.mPQ = *mArg

	methods := boolToInt(cfg.useLSH) + boolToInt(cfg.useHypercube) + boolToInt(cfg.useIVFFlat) + boolToInt(cfg.useIVFPQ)
	if methods != 1 {
		return config{}, fmt.Errorf("select exactly one method: -lsh | -hypercube | -ivfflat | -ivfpq")
	}
	if cfg.inputPath == "" || cfg.queryPath == "" || cfg.dtype == "" {
		return config{}, fmt.Errorf("missing required arguments: -d <input> -q <query> -type <mnist|sift>")
	}
	if !iequals(cfg.dtype, "mnist") && !iequals(cfg.dtype, "sift") {
		return config{}, fmt.Errorf("invalid -type %q, use mnist or sift", cfg.dtype)
	}

	// R's default depends on dataset type: MNIST uses 2000, SIFT uses 2.
	if iequals(cfg.dtype, "sift") && cfg.r == 2000.0 {
		cfg.r = 2.0
	}

	return cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func iequals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseArgs(args)
	if err != nil {
		return err
	}

	logger := obs.NewDefault()
	logger.Info("loading datasets")

	var base, queries dataset.Matrix
	if iequals(cfg.dtype, "mnist") {
		base, err = dataset.LoadMNIST(cfg.inputPath, false)
		if err != nil {
			return err
		}
		queries, err = dataset.LoadMNIST(cfg.queryPath, false)
		if err != nil {
			return err
		}
	} else {
		base, err = dataset.LoadFvecs(cfg.inputPath)
		if err != nil {
			return err
		}
		queries, err = dataset.LoadFvecs(cfg.queryPath)
		if err != nil {
			return err
		}
	}

	if base.D != queries.D {
		return fmt.Errorf("dimension mismatch between base (%d) and query (%d) sets", base.D, queries.D)
	}
	logger.Infof("loaded base n=%d d=%d | queries n=%d", base.N, base.D, queries.N)

	switch {
	case cfg.useLSH:
		return runLSH(base, queries, cfg)
	case cfg.useHypercube:
		return runHypercube(base, queries, cfg)
	case cfg.useIVFFlat:
		return runIVFFlat(base, queries, cfg)
	case cfg.useIVFPQ:
		return runIVFPQ(base, queries, cfg)
	}
	return nil
}

// report accumulates the per-query results printed by each method, then
// prints the aggregate footer shared by all four.
type report struct {
	totalAF     float64
	afCount     int
	totalRecall float64
	recallCount int
	queries     int
	elapsed     time.Duration
}

func (rp *report) addTopN(queryIdx int, approxIDs []int, approxDists []float64, trueTopN []bruteforce.Neighbor) {
	if len(approxIDs) > 0 && len(trueTopN) > 0 && trueTopN[0].Distance > 0 {
		af := approxDists[0] / trueTopN[0].Distance
		rp.totalAF += af
		rp.afCount++
	}
	trueIDs := make([]int, len(trueTopN))
	for i, nb := range trueTopN {
		trueIDs[i] = nb.Index
	}
	recall := bruteforce.Recall(approxIDs, trueIDs)
	rp.totalRecall += recall
	rp.recallCount++

	fmt.Printf("q%d -> got %d results | nn id=%d\n", queryIdx, len(approxIDs), firstOr(approxIDs, -1))
}

func (rp *report) addRange(queryIdx int, ids []int) {
	fmt.Printf("q%d -> %d ids within R\n", queryIdx, len(ids))
}

func firstOr(ids []int, fallback int) int {
	if len(ids) == 0 {
		return fallback
	}
	return ids[0]
}

func (rp *report) printFooter() {
	qps := 0.0
	if rp.elapsed > 0 {
		qps = float64(rp.queries) / rp.elapsed.Seconds()
	}
	avgAF := 0.0
	if rp.afCount > 0 {
		avgAF = rp.totalAF / float64(rp.afCount)
	}
	avgRecall := 0.0
	if rp.recallCount > 0 {
		avgRecall = rp.totalRecall / float64(rp.recallCount)
	}
	fmt.Printf("Average AF: %.4f\n", avgAF)
	fmt.Printf("Recall@N: %.4f\n", avgRecall)
	fmt.Printf("QPS: %.2f\n", qps)
	fmt.Printf("Total time: %s\n", rp.elapsed)
}

func runLSH(base, queries dataset.Matrix, cfg config) error {
	idx, err := lsh.New(base.D, cfg.k, cfg.l, cfg.w, -1, cfg.seed)
	if err != nil {
		return err
	}
	if err := idx.BuildIndex(base); err != nil {
		return err
	}
	fmt.Printf("LSH built: k=%d L=%d tableSize=%d\n", cfg.k, cfg.l, idx.TableSize())

	rp := &report{}
	start := time.Now()
	for i := 0; i < queries.N; i++ {
		q := queries.Row(i)
		if !cfg.doRange {
			results, err := idx.SearchKNN(q, cfg.n)
			if err != nil {
				return err
			}
			trueTopN, err := bruteforce.KNNSearch(base, q, cfg.n)
			if err != nil {
				return err
			}
			ids, dists := splitLSHNeighbors(results)
			rp.addTopN(i, ids, dists, trueTopN)
		} else {
			ids, err := idx.SearchRadius(q, cfg.r)
			if err != nil {
				return err
			}
			rp.addRange(i, ids)
		}
	}
	rp.elapsed = time.Since(start)
	rp.queries = queries.N
	rp.printFooter()
	return nil
}

func runHypercube(base, queries dataset.Matrix, cfg config) error {
	idx, err := hypercube.New(base.D, cfg.kproj, cfg.w, cfg.m, cfg.probes, cfg.seed)
	if err != nil {
		return err
	}
	if err := idx.BuildIndex(base); err != nil {
		return err
	}
	fmt.Printf("Hypercube built: kproj=%d M=%d probes=%d\n", cfg.kproj, cfg.m, cfg.probes)

	rp := &report{}
	start := time.Now()
	for i := 0; i < queries.N; i++ {
		q := queries.Row(i)
		if !cfg.doRange {
			results, err := idx.SearchKNN(q, cfg.n)
			if err != nil {
				return err
			}
			trueTopN, err := bruteforce.KNNSearch(base, q, cfg.n)
			if err != nil {
				return err
			}
			ids, dists := splitHypercubeNeighbors(results)
			rp.addTopN(i, ids, dists, trueTopN)
		} else {
			ids, err := idx.SearchRadius(q, cfg.r)
			if err != nil {
				return err
			}
			rp.addRange(i, ids)
		}
	}
	rp.elapsed = time.Since(start)
	rp.queries = queries.N
	rp.printFooter()
	return nil
}

func runIVFFlat(base, queries dataset.Matrix, cfg config) error {
	trainSubset := int(math.Sqrt(float64(base.N)))
	idx, err := ivfflat.Build(base, ivfflat.Config{NumCentroids: cfg.kclusters, Seed: cfg.seed, TrainSubset: trainSubset})
	if err != nil {
		return err
	}
	fmt.Printf("IVF-Flat built: k=%d, avg list size ~= %.2f\n", cfg.kclusters, float64(base.N)/float64(idx.Centroids.N))

	rp := &report{}
	start := time.Now()
	for i := 0; i < queries.N; i++ {
		q := queries.Row(i)
		if !cfg.doRange {
			result, err := idx.QueryTopN(q, cfg.nprobe, cfg.n)
			if err != nil {
				return err
			}
			trueTopN, err := bruteforce.KNNSearch(base, q, cfg.n)
			if err != nil {
				return err
			}
			rp.addTopN(i, result.IDs, result.Dists, trueTopN)
		} else {
			ids, err := idx.QueryRange(q, cfg.nprobe, cfg.r)
			if err != nil {
				return err
			}
			rp.addRange(i, ids)
		}
	}
	rp.elapsed = time.Since(start)
	rp.queries = queries.N
	rp.printFooter()
	return nil
}

func runIVFPQ(base, queries dataset.Matrix, cfg config) error {
	trainSubset := int(math.Sqrt(float64(base.N)))
	idx, err := ivfpq.Build(base, ivfpq.Config{
		NumCentroids:  cfg.kclusters,
		NumSubvectors: cfg.mPQ,
		NBits:         cfg.nbits,
		Seed:          cfg.seed,
		TrainSubset:   trainSubset,
	})
	if err != nil {
		return err
	}
	fmt.Printf("IVF-PQ built: k=%d, M=%d, nbits=%d\n", cfg.kclusters, cfg.mPQ, cfg.nbits)

	rp := &report{}
	start := time.Now()
	for i := 0; i < queries.N; i++ {
		q := queries.Row(i)
		if !cfg.doRange {
			result, err := idx.QueryTopN(q, cfg.nprobe, cfg.n)
			if err != nil {
				return err
			}
			trueTopN, err := bruteforce.KNNSearch(base, q, cfg.n)
			if err != nil {
				return err
			}
			rp.addTopN(i, result.IDs, result.Dists, trueTopN)
		} else {
			ids, err := idx.QueryRange(q, cfg.nprobe, cfg.r)
			if err != nil {
				return err
			}
			rp.addRange(i, ids)
		}
	}
	rp.elapsed = time.Since(start)
	rp.queries = queries.N
	rp.printFooter()
	return nil
}

func splitLSHNeighbors(results []lsh.Neighbor) ([]int, []float64) {
	ids := make([]int, len(results))
	dists := make([]float64, len(results))
	for i, r := range results {
		ids[i], dists[i] = r.Index, r.Distance
	}
	return ids, dists
}

func splitHypercubeNeighbors(results []hypercube.Neighbor) ([]int, []float64) {
	ids := make([]int, len(results))
	dists := make([]float64, len(results))
	for i, r := range results {
		ids[i], dists[i] = r.Index, r.Distance
	}
	return ids, dists
}

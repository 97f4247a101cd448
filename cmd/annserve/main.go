// Command annserve builds one named index from a dataset on disk and
// serves it over HTTP via pkg/annserve, configured entirely from
// ANN_*-prefixed environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/config"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/obs"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/querycache"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/registry"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/annserve"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/hypercube"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfflat"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfpq"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/lsh"
)

func main() {
	logger := obs.NewDefault()
	if err := run(logger); err != nil {
		logger.Fatalf("annserve: %v", err)
	}
}

func run(logger *obs.Logger) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	indexName := envOr("ANN_INDEX_NAME", "default")
	method := envOr("ANN_INDEX_METHOD", "ivfflat")
	datasetPath := os.Getenv("ANN_DATASET_PATH")
	datasetType := envOr("ANN_DATASET_TYPE", "sift")
	if datasetPath == "" {
		return fmt.Errorf("ANN_DATASET_PATH is required")
	}

	logger.Infof("loading base dataset %s (%s)", datasetPath, datasetType)
	var base dataset.Matrix
	var err error
	if datasetType == "mnist" {
		base, err = dataset.LoadMNIST(datasetPath, false)
	} else {
		base, err = dataset.LoadFvecs(datasetPath)
	}
	if err != nil {
		return err
	}
	logger.Infof("loaded base n=%d d=%d", base.N, base.D)

	reg := registry.New()
	index, err := buildIndex(base, method, cfg, logger)
	if err != nil {
		return fmt.Errorf("building index %q: %w", method, err)
	}
	if err := reg.Register(&registry.Entry{
		Name:     indexName,
		Method:   method,
		Dim:      base.D,
		BaseSize: base.N,
		Index:    index,
	}); err != nil {
		return err
	}

	cache := querycache.New(cfg.Cache.Capacity, cfg.Cache.TTL)

	srv := annserve.NewServer(annserve.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Auth: annserve.AuthConfig{
			Enabled:     os.Getenv("ANN_AUTH_ENABLED") == "true",
			JWTSecret:   os.Getenv("ANN_JWT_SECRET"),
			PublicPaths: []string{"/health", "/metrics"},
		},
		RateLimit: annserve.RateLimitConfig{
			Enabled:        os.Getenv("ANN_RATE_LIMIT_ENABLED") == "true",
			RequestsPerSec: 50,
			Burst:          100,
		},
	}, reg, cache, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Stop(ctx)
	}
}

func buildIndex(base dataset.Matrix, method string, cfg *config.Config, logger *obs.Logger) (interface{}, error) {
	switch method {
	case "lsh":
		idx, err := lsh.New(base.D, cfg.LSH.K, cfg.LSH.L, cfg.LSH.W, cfg.LSH.TableSize, cfg.Seed)
		if err != nil {
			return nil, err
		}
		if err := idx.BuildIndex(base); err != nil {
			return nil, err
		}
		return idx, nil
	case "hypercube":
		idx, err := hypercube.New(base.D, cfg.Hypercube.KProj, cfg.Hypercube.W, cfg.Hypercube.M, cfg.Hypercube.Probes, cfg.Seed)
		if err != nil {
			return nil, err
		}
		if err := idx.BuildIndex(base); err != nil {
			return nil, err
		}
		return idx, nil
	case "ivfflat":
		logger.Info("training IVF-Flat coarse quantizer")
		return ivfflat.Build(base, ivfflat.Config{
			NumCentroids: cfg.IVF.KClusters,
			Seed:         cfg.Seed,
			TrainSubset:  cfg.IVF.TrainSubset,
		})
	case "ivfpq":
		logger.Info("training IVF-PQ coarse quantizer and codebooks")
		return ivfpq.Build(base, ivfpq.Config{
			NumCentroids:  cfg.IVF.KClusters,
			NumSubvectors: cfg.PQ.M,
			NBits:         cfg.PQ.NBits,
			Seed:          cfg.Seed,
			TrainSubset:   cfg.IVF.TrainSubset,
		})
	default:
		return nil, fmt.Errorf("unknown index method %q", method)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

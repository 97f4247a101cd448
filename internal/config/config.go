// Package config assembles build and service parameters from defaults,
// overridable by ANN_* environment variables, with a Validate step that
// rejects out-of-range values before any index build starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every parameter needed to build and serve an index.
type Config struct {
	Server    ServerConfig
	LSH       LSHConfig
	Hypercube HypercubeConfig
	IVF       IVFConfig
	PQ        PQConfig
	Cache     CacheConfig
	Seed      int64
}

// ServerConfig holds query-service listener settings.
type ServerConfig struct {
	Host            string        // listen host (default "0.0.0.0")
	Port            int           // listen port (default 8080)
	MaxConnections  int           // max concurrent in-flight requests
	RequestTimeout  time.Duration // per-request timeout
	ShutdownTimeout time.Duration // graceful shutdown timeout
}

// LSHConfig holds the LSH index's build parameters.
type LSHConfig struct {
	K         int     // hash functions per table
	L         int     // number of tables
	W         float64 // bucket width
	TableSize int     // explicit table size, <=0 derives from dataset size
}

// HypercubeConfig holds the hypercube index's build parameters.
type HypercubeConfig struct {
	KProj  int     // projection bits (cube dimension)
	W      float64 // bucket width
	M      int     // max candidates examined per query
	Probes int     // max vertices visited per query
}

// IVFConfig holds the coarse quantizer's shared build parameters.
type IVFConfig struct {
	KClusters   int // number of coarse centroids
	NProbe      int // lists probed per query
	TrainSubset int // <=0 trains on the full base
}

// PQConfig holds IVF-PQ's product-quantization parameters.
type PQConfig struct {
	M     int // subvectors
	NBits int // bits per code
}

// CacheConfig holds the query-result LRU cache's settings.
type CacheConfig struct {
	Enabled  bool
	Capacity int
	TTL      time.Duration
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LSH: LSHConfig{
			K:         4,
			L:         5,
			W:         4.0,
			TableSize: -1,
		},
		Hypercube: HypercubeConfig{
			KProj:  14,
			W:      4.0,
			M:      10,
			Probes: 2,
		},
		IVF: IVFConfig{
			KClusters:   100,
			NProbe:      1,
			TrainSubset: -1,
		},
		PQ: PQConfig{
			M:     8,
			NBits: 8,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
		Seed: 1,
	}
}

// LoadFromEnv overlays ANN_*-prefixed environment variables onto the
// default configuration.
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("ANN_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("ANN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if maxConn := os.Getenv("ANN_MAX_CONNECTIONS"); maxConn != "" {
		if mc, err := strconv.Atoi(maxConn); err == nil {
			cfg.Server.MaxConnections = mc
		}
	}
	if timeout := os.Getenv("ANN_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}

	if k := os.Getenv("ANN_LSH_K"); k != "" {
		if v, err := strconv.Atoi(k); err == nil {
			cfg.LSH.K = v
		}
	}
	if l := os.Getenv("ANN_LSH_L"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			cfg.LSH.L = v
		}
	}
	if w := os.Getenv("ANN_LSH_W"); w != "" {
		if v, err := strconv.ParseFloat(w, 64); err == nil {
			cfg.LSH.W = v
		}
	}

	if kproj := os.Getenv("ANN_CUBE_KPROJ"); kproj != "" {
		if v, err := strconv.Atoi(kproj); err == nil {
			cfg.Hypercube.KProj = v
		}
	}
	if m := os.Getenv("ANN_CUBE_M"); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			cfg.Hypercube.M = v
		}
	}
	if probes := os.Getenv("ANN_CUBE_PROBES"); probes != "" {
		if v, err := strconv.Atoi(probes); err == nil {
			cfg.Hypercube.Probes = v
		}
	}

	if kclusters := os.Getenv("ANN_IVF_KCLUSTERS"); kclusters != "" {
		if v, err := strconv.Atoi(kclusters); err == nil {
			cfg.IVF.KClusters = v
		}
	}
	if nprobe := os.Getenv("ANN_IVF_NPROBE"); nprobe != "" {
		if v, err := strconv.Atoi(nprobe); err == nil {
			cfg.IVF.NProbe = v
		}
	}

	if pqm := os.Getenv("ANN_PQ_M"); pqm != "" {
		if v, err := strconv.Atoi(pqm); err == nil {
			cfg.PQ.M = v
		}
	}
	if nbits := os.Getenv("ANN_PQ_NBITS"); nbits != "" {
		if v, err := strconv.Atoi(nbits); err == nil {
			cfg.PQ.NBits = v
		}
	}

	if cacheEnabled := os.Getenv("ANN_CACHE_ENABLED"); cacheEnabled == "false" {
		cfg.Cache.Enabled = false
	}
	if capacity := os.Getenv("ANN_CACHE_CAPACITY"); capacity != "" {
		if v, err := strconv.Atoi(capacity); err == nil {
			cfg.Cache.Capacity = v
		}
	}
	if ttl := os.Getenv("ANN_CACHE_TTL"); ttl != "" {
		if v, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = v
		}
	}

	if seed := os.Getenv("ANN_SEED"); seed != "" {
		if v, err := strconv.ParseInt(seed, 10, 64); err == nil {
			cfg.Seed = v
		}
	}

	return cfg
}

// Validate rejects out-of-range or inconsistent parameters before any
// build starts.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}

	if c.LSH.K < 1 {
		return fmt.Errorf("invalid LSH k: %d (must be > 0)", c.LSH.K)
	}
	if c.LSH.L < 1 {
		return fmt.Errorf("invalid LSH L: %d (must be > 0)", c.LSH.L)
	}
	if c.LSH.W <= 0 {
		return fmt.Errorf("invalid LSH w: %g (must be > 0)", c.LSH.W)
	}

	if c.Hypercube.KProj < 1 {
		return fmt.Errorf("invalid hypercube kproj: %d (must be > 0)", c.Hypercube.KProj)
	}
	if c.Hypercube.M < 1 || c.Hypercube.Probes < 1 {
		return fmt.Errorf("invalid hypercube M/probes: %d/%d (must be > 0)", c.Hypercube.M, c.Hypercube.Probes)
	}

	if c.IVF.KClusters < 1 {
		return fmt.Errorf("invalid IVF kclusters: %d (must be > 0)", c.IVF.KClusters)
	}
	if c.IVF.NProbe < 1 {
		return fmt.Errorf("invalid IVF nprobe: %d (must be > 0)", c.IVF.NProbe)
	}

	if c.PQ.M < 1 {
		return fmt.Errorf("invalid PQ M: %d (must be > 0)", c.PQ.M)
	}
	if c.PQ.NBits < 1 || c.PQ.NBits > 8 {
		return fmt.Errorf("invalid PQ nbits: %d (must be 1-8)", c.PQ.NBits)
	}

	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	return nil
}

// Address returns the server's listen address (host:port).
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

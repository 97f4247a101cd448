package annserve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/obs"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/querycache"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/registry"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/hypercube"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfflat"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfpq"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/lsh"
)

// Config configures the query service's listener and middleware.
type Config struct {
	Host      string
	Port      int
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// Server is the read-only ANN query service.
type Server struct {
	config     Config
	registry   *registry.Registry
	cache      *querycache.Cache
	metrics    *Metrics
	logger     *obs.Logger
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer builds a server over reg, serving every registered index.
func NewServer(config Config, reg *registry.Registry, cache *querycache.Cache, logger *obs.Logger) *Server {
	s := &Server{
		config:   config,
		registry: reg,
		cache:    cache,
		metrics:  NewMetrics(),
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.withMiddleware(s.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/range", s.handleRange)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.loggingMiddleware(handler)

	limiter := NewRateLimiter(s.config.RateLimit)
	handler = RateLimitMiddleware(limiter)(handler)

	handler = AuthMiddleware(s.config.Auth)(handler)
	return handler
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		s.metrics.RecordRequest(r.URL.Path, fmt.Sprintf("%d", wrapped.statusCode), duration)
		s.logger.Info("request", map[string]interface{}{
			"method": r.Method, "path": r.URL.Path, "status": wrapped.statusCode, "duration": duration,
		})
	})
}

// Start begins serving and blocks until the server stops or errors.
func (s *Server) Start() error {
	s.logger.Infof("annserve listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("annserve: listen failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("annserve shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "indexes": names})
}

type searchRequest struct {
	Index  string    `json:"index"`
	Query  []float32 `json:"query"`
	N      int       `json:"n"`
	NProbe int       `json:"nprobe"`
}

type searchResponse struct {
	IDs       []int     `json:"ids"`
	Distances []float64 `json:"distances"`
	Cached    bool      `json:"cached"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.RecordError("/search", "malformed_request")
		writeJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.N <= 0 {
		req.N = 10
	}

	entry, err := s.registry.Get(req.Index)
	if err != nil {
		s.metrics.RecordError("/search", "unknown_index")
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	key := querycache.QueryKey(entry.Method, req.Query, req.N, 0, req.NProbe)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		resp := cached.(searchResponse)
		resp.Cached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.metrics.CacheMisses.Inc()

	start := time.Now()
	ids, dists, err := queryTopN(entry, req.Query, req.N, req.NProbe)
	if err != nil {
		s.metrics.RecordError("/search", "query_failed")
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.metrics.RecordSearch(entry.Method, time.Since(start), len(ids))

	resp := searchResponse{IDs: ids, Distances: dists}
	s.cache.Put(key, resp)
	s.metrics.CacheSize.Set(float64(s.cache.Size()))
	writeJSON(w, http.StatusOK, resp)
}

type rangeRequest struct {
	Index  string    `json:"index"`
	Query  []float32 `json:"query"`
	R      float64   `json:"r"`
	NProbe int       `json:"nprobe"`
}

type rangeResponse struct {
	IDs    []int `json:"ids"`
	Cached bool  `json:"cached"`
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.RecordError("/range", "malformed_request")
		writeJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	entry, err := s.registry.Get(req.Index)
	if err != nil {
		s.metrics.RecordError("/range", "unknown_index")
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	key := querycache.QueryKey(entry.Method, req.Query, 0, req.R, req.NProbe)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		resp := cached.(rangeResponse)
		resp.Cached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.metrics.CacheMisses.Inc()

	start := time.Now()
	ids, err := queryRange(entry, req.Query, req.R, req.NProbe)
	if err != nil {
		s.metrics.RecordError("/range", "query_failed")
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.metrics.RecordSearch(entry.Method, time.Since(start), len(ids))

	resp := rangeResponse{IDs: ids}
	s.cache.Put(key, resp)
	s.metrics.CacheSize.Set(float64(s.cache.Size()))
	writeJSON(w, http.StatusOK, resp)
}

// queryTopN dispatches a top-N query to the concrete index type held by
// entry, per its registered method name.
func queryTopN(entry *registry.Entry, query []float32, n, nprobe int) ([]int, []float64, error) {
	switch entry.Method {
	case "lsh":
		idx := entry.Index.(*lsh.Index)
		results, err := idx.SearchKNN(query, n)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]int, len(results))
		dists := make([]float64, len(results))
		for i, r := range results {
			ids[i], dists[i] = r.Index, r.Distance
		}
		return ids, dists, nil
	case "hypercube":
		idx := entry.Index.(*hypercube.Index)
		results, err := idx.SearchKNN(query, n)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]int, len(results))
		dists := make([]float64, len(results))
		for i, r := range results {
			ids[i], dists[i] = r.Index, r.Distance
		}
		return ids, dists, nil
	case "ivfflat":
		idx := entry.Index.(*ivfflat.Index)
		result, err := idx.QueryTopN(query, nprobe, n)
		if err != nil {
			return nil, nil, err
		}
		return result.IDs, result.Dists, nil
	case "ivfpq":
		idx := entry.Index.(*ivfpq.Index)
		result, err := idx.QueryTopN(query, nprobe, n)
		if err != nil {
			return nil, nil, err
		}
		return result.IDs, result.Dists, nil
	default:
		return nil, nil, fmt.Errorf("annserve: unknown index method %q", entry.Method)
	}
}

func queryRange(entry *registry.Entry, query []float32, r float64, nprobe int) ([]int, error) {
	switch entry.Method {
	case "lsh":
		return entry.Index.(*lsh.Index).SearchRadius(query, r)
	case "hypercube":
		return entry.Index.(*hypercube.Index).SearchRadius(query, r)
	case "ivfflat":
		return entry.Index.(*ivfflat.Index).QueryRange(query, nprobe, r)
	case "ivfpq":
		return entry.Index.(*ivfpq.Index).QueryRange(query, nprobe, r)
	default:
		return nil, fmt.Errorf("annserve: unknown index method %q", entry.Method)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

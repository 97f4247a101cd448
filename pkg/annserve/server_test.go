package annserve

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/dataset"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/obs"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/querycache"
	"github.com/therealutkarshpriyadarshi/annsearch/internal/registry"
	"github.com/therealutkarshpriyadarshi/annsearch/pkg/ivfflat"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	base := dataset.NewMatrix(6, 2)
	pts := [][]float32{{0, 0}, {0.1, 0.1}, {0.2, -0.1}, {10, 10}, {10.1, 9.9}, {9.9, 10.2}}
	for i, p := range pts {
		copy(base.Row(i), p)
	}
	idx, err := ivfflat.Build(base, ivfflat.Config{NumCentroids: 2, Seed: 1, KMeansIters: 20})
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	if err := reg.Register(&registry.Entry{Name: "test-index", Method: "ivfflat", Dim: 2, BaseSize: base.N, Index: idx}); err != nil {
		t.Fatal(err)
	}

	cache := querycache.New(100, time.Minute)
	logger := obs.New(obs.ERROR, &bytes.Buffer{})

	cfg := Config{
		Host: "127.0.0.1",
		Port: 0,
		Auth: AuthConfig{Enabled: false},
		RateLimit: RateLimitConfig{Enabled: false},
	}
	return NewServer(cfg, reg, cache, logger)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status field = %v, want ok", resp["status"])
	}
}

func TestHandleSearchReturnsResults(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(searchRequest{Index: "test-index", Query: []float32{0, 0}, N: 2, NProbe: 2})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.IDs) != 2 {
		t.Fatalf("len(IDs) = %d, want 2", len(resp.IDs))
	}
}

func TestHandleSearchUnknownIndex(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(searchRequest{Index: "nope", Query: []float32{0, 0}, N: 2})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleSearchMalformedBody(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleSearchCachesSecondRequest(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(searchRequest{Index: "test-index", Query: []float32{0, 0}, N: 2, NProbe: 2})

	req1 := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w1 := httptest.NewRecorder()
	s.mux.ServeHTTP(w1, req1)

	req2 := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w2 := httptest.NewRecorder()
	s.mux.ServeHTTP(w2, req2)

	var resp2 searchResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &resp2); err != nil {
		t.Fatal(err)
	}
	if !resp2.Cached {
		t.Fatal("second identical search should be served from cache")
	}
}

func TestHandleRange(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(rangeRequest{Index: "test-index", Query: []float32{0, 0}, R: 1.0, NProbe: 2})
	req := httptest.NewRequest(http.MethodPost, "/range", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleSearchMethodNotAllowed(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

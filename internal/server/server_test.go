package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pairamid-live/internal/lifecycle"
	"github.com/rickgao/pairamid-live/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLifecycle struct {
	status lifecycle.Status
}

func (s stubLifecycle) Status() lifecycle.Status { return s.status }

type stubData struct {
	snap model.Snapshot
}

func (s stubData) Snapshot() (model.Snapshot, bool) { return s.snap, true }

type stubChannel bool

func (c stubChannel) IsConnected() bool { return bool(c) }

type stubDB struct {
	err error
}

func (d stubDB) Ping(context.Context) error { return d.err }

func backend(st lifecycle.Status) *Backend {
	return &Backend{
		Generation: uuid.MustParse("6f1c2a4e-9d1b-4c3f-8a55-0e2b7d9c1f00"),
		Lifecycle:  stubLifecycle{status: st},
		Data: stubData{snap: model.Snapshot{
			Team:  model.Team{ID: "t1", Name: "Platform"},
			Pairs: []model.Pair{{ID: "p1", Info: "API work"}},
		}},
		Channel: stubChannel(true),
	}
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Handler().ServeHTTP(w, req)

	var body map[string]any
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestLive_GateOpenServesSnapshot(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)
	s.Attach(backend(lifecycle.Status{State: lifecycle.StateConnected, Gate: true, View: lifecycle.ViewContent}))

	w, body := do(t, s, http.MethodGet, "/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "content", body["view"])
	snap, ok := body["snapshot"].(map[string]any)
	require.True(t, ok, "snapshot missing: %s", w.Body.String())
	team := snap["team"].(map[string]any)
	assert.Equal(t, "Platform", team["name"])
}

func TestLive_Fallback(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)
	s.Attach(backend(lifecycle.Status{State: lifecycle.StateRecovering, FallbackVisible: true, View: lifecycle.ViewFallback}))

	w, body := do(t, s, http.MethodGet, "/live")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]any{"view": "fallback", "message": "Loading..."}, body)
}

func TestLive_Blank(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)
	s.Attach(backend(lifecycle.Status{State: lifecycle.StateLost, View: lifecycle.ViewBlank}))

	w, body := do(t, s, http.MethodGet, "/live")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]any{"view": "blank"}, body)
}

func TestLive_NoBackend(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)

	w, body := do(t, s, http.MethodGet, "/live")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "blank", body["view"])

	s.Attach(backend(lifecycle.Status{Gate: true, View: lifecycle.ViewContent}))
	s.Attach(nil)
	w, _ = do(t, s, http.MethodGet, "/live")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatus(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)

	w, _ := do(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.Attach(backend(lifecycle.Status{State: lifecycle.StateRecovering, Retries: 3, MaxAttempts: 100}))
	w, body := do(t, s, http.MethodGet, "/status")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6f1c2a4e-9d1b-4c3f-8a55-0e2b7d9c1f00", body["generation"])
	st := body["status"].(map[string]any)
	assert.Equal(t, "recovering", st["state"])
	assert.Equal(t, float64(3), st["retries"])
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		backend  *Backend
		db       Pinger
		wantCode int
		wantDB   any
	}{
		{
			name:     "healthy",
			backend:  backend(lifecycle.Status{State: lifecycle.StateConnected}),
			wantCode: http.StatusOK,
		},
		{
			name:     "healthy with database",
			backend:  backend(lifecycle.Status{State: lifecycle.StateRecovering}),
			db:       stubDB{},
			wantCode: http.StatusOK,
			wantDB:   "ok",
		},
		{
			name:     "abandoned",
			backend:  backend(lifecycle.Status{State: lifecycle.StateAbandoned}),
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "database down",
			backend:  backend(lifecycle.Status{State: lifecycle.StateConnected}),
			db:       stubDB{err: errors.New("connection refused")},
			wantCode: http.StatusServiceUnavailable,
			wantDB:   "connection refused",
		},
		{
			name:     "starting",
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{}, nil, tt.db, nil, nil)
			if tt.backend != nil {
				s.Attach(tt.backend)
			}

			w, body := do(t, s, http.MethodGet, "/health")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantDB, body["database"])
			assert.Contains(t, body, "version")
		})
	}
}

func TestReload(t *testing.T) {
	var mu sync.Mutex
	var reasons []string
	s := New(Config{}, nil, nil, func(reason string) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, reason)
	}, nil)

	w, body := do(t, s, http.MethodPost, "/reload")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "reloading", body["status"])
	assert.Equal(t, []string{"http"}, reasons)

	w, _ = do(t, s, http.MethodGet, "/reload")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReload_Unsupported(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)
	w, _ := do(t, s, http.MethodPost, "/reload")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMetricsPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "pairamid_live_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := New(Config{MetricsPath: "/internal/metrics"}, reg, nil, nil, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pairamid_live_test_total 1")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStop_BeforeStart(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)
	require.NoError(t, s.Stop(context.Background()))
}

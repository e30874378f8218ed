package normalizer

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

func newTestServer(t *testing.T, downstreamURL string) *Server {
	t.Helper()
	cfg := &config.NormalizerConfig{
		Server: config.ServerConfig{Addr: ":0"},
		Log:    config.LogConfig{Level: "error"},
		Forward: config.ForwardConfig{
			URL:            downstreamURL,
			ConnectTimeout: 2 * time.Second,
			ReadTimeout:    2 * time.Second,
		},
		Retry: config.RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
			MaxDelay:    10 * time.Millisecond,
		},
	}
	logger := observability.NewLogger(cfg.Log, "normalizer", "test")
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "normalizer")
	srv, err := New(cfg, logger, metrics)
	require.NoError(t, err)
	return srv
}

func TestHandleLogs_ParsesNormalizesAndForwards(t *testing.T) {
	var forwardedBody []byte
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwardedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accepted":1}`))
	}))
	defer downstream.Close()

	s := newTestServer(t, downstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{"message":"hello world","email":"a@b.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emitter", "checkout")
	req.Header.Set("X-Scenario-Id", "scn-1")
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"accepted":1}`, rr.Body.String())

	var records []map[string]any
	require.NoError(t, json.Unmarshal(forwardedBody, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "checkout", records[0]["emitter"])
	assert.Equal(t, "scn-1", records[0]["scenario_id"])
}

func TestHandleLogs_RejectsUnparseableBody(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer downstream.Close()

	s := newTestServer(t, downstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{not valid json`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleLogs_WrapsNonJSONDownstreamBody(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plain text reply"))
	}))
	defer downstream.Close()

	s := newTestServer(t, downstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "plain text reply", resp["downstream_text"])
}

func TestHandleLogs_SurfacesDownstreamFailure(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer downstream.Close()

	s := newTestServer(t, downstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRouter_ExposesHealthAndMetrics(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer downstream.Close()

	s := newTestServer(t, downstream.URL)
	router := s.Router()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "path %s", path)
	}
}

package sink

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpapi"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.SinkServiceConfig{
		Server: config.ServerConfig{Addr: ":0"},
		Log:    config.LogConfig{Level: "error"},
		Storage: config.SinkStorageConfig{
			Dir:          t.TempDir(),
			MaxBodyBytes: 1 << 20,
			MaxItems:     10,
			RingSize:     5,
		},
	}
	logger := observability.NewLogger(cfg.Log, "sink", "test")
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "sink")
	return New(cfg, logger, metrics)
}

func TestHandleLogs_AcceptsSingleObject(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{"message":"hi"}`))
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["accepted"])
}

func TestHandleLogs_AcceptsArrayOfObjects(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`[{"message":"a"},{"message":"b"}]`))
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["accepted"])
}

func TestHandleLogs_RejectsInvalidJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`not json`))
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", rr.Header().Get(httpapi.ReasonHeader))
}

func TestHandleLogs_RejectsBodyOverLimit(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Storage.MaxBodyBytes = 5

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{"message":"this is far too long"}`))
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandleLogs_RejectsTooManyItems(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Storage.MaxItems = 1

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`[{"a":1},{"a":2}]`))
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "too_many_items", rr.Header().Get(httpapi.ReasonHeader))
}

func TestHandleLogs_RejectsNonObjectArrayElements(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`[1,2,3]`))
	rr := httptest.NewRecorder()

	s.handleLogs(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleRecent_ServesRingBufferAsJSONArray(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(`{"message":"hi"}`))
	s.handleLogs(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	s.handleRecent(rr, httptest.NewRequest(http.MethodGet, "/debug/recent", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var recent []json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recent))
	require.Len(t, recent, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(recent[0], &rec))
	assert.Equal(t, "hi", rec["message"])
}

func TestHandleRecent_HonorsLimitQueryParam(t *testing.T) {
	s := newTestServer(t)

	for _, msg := range []string{"one", "two", "three"} {
		body := bytes.NewReader([]byte(`{"message":"` + msg + `"}`))
		s.handleLogs(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/logs", body))
	}

	rr := httptest.NewRecorder()
	s.handleRecent(rr, httptest.NewRequest(http.MethodGet, "/debug/recent?limit=1", nil))

	var recent []json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recent))
	assert.Len(t, recent, 1)
}

func TestRouter_ExposesHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "path %s", path)
	}
}

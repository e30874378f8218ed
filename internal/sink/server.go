package sink

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AllEyesOnMyPon/OpsLog/internal/apperr"
	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpapi"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

// Server wires the Core Sink's HTTP surface around a Store (spec §4.7).
type Server struct {
	cfg     *config.SinkServiceConfig
	log     *slog.Logger
	metrics *observability.Metrics
	store   *Store
	health  healthcheck.Handler
}

// New builds a Server from cfg.
func New(cfg *config.SinkServiceConfig, logger *slog.Logger, metrics *observability.Metrics) *Server {
	store := NewStore(cfg.Storage.Dir, cfg.Storage.RingSize)
	return &Server{cfg: cfg, log: logger, metrics: metrics, store: store, health: healthcheck.NewHandler()}
}

// Router builds the chi router for the Core Sink.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health.LiveEndpoint)
	r.Get("/readyz", s.health.ReadyEndpoint)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/logs", s.handleLogs)
	r.Get("/debug/recent", s.handleRecent)

	return r
}

// handleLogs implements spec §4.7: body-size and item-count limits,
// JSON array/object parsing, NDJSON append, and the {"accepted": N}
// response.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Storage.MaxBodyBytes

	if r.ContentLength > 0 && r.ContentLength > maxBytes {
		httpapi.WriteError(w, apperr.New(apperr.ReasonTooLargeHeader, "content-length exceeds limit"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		httpapi.WriteError(w, apperr.New(apperr.ReasonBadRequest, "failed to read body"))
		return
	}
	if int64(len(body)) > maxBytes {
		httpapi.WriteError(w, apperr.New(apperr.ReasonTooLarge, "body exceeds limit"))
		return
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		httpapi.WriteError(w, apperr.New(apperr.ReasonBadRequest, "invalid json: "+err.Error()))
		return
	}

	var records []Record
	switch v := generic.(type) {
	case map[string]any:
		records = []Record{Record(v)}
	case []any:
		records = make([]Record, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			records = append(records, Record(obj))
		}
		if len(records) == 0 && len(v) > 0 {
			httpapi.WriteError(w, apperr.NewWithStatus(apperr.ReasonBadRequest, http.StatusUnprocessableEntity, "no valid object records in array"))
			return
		}
	default:
		httpapi.WriteError(w, apperr.New(apperr.ReasonBadRequest, "body must be an object or array of objects"))
		return
	}

	if len(records) > s.cfg.Storage.MaxItems {
		httpapi.WriteError(w, apperr.New(apperr.ReasonTooManyItems, "batch exceeds max_items"))
		return
	}

	accepted, err := s.store.AppendBatch(records)
	if err != nil {
		s.log.ErrorContext(r.Context(), "sink append failed", "error", err)
		httpapi.WriteError(w, apperr.NewWithStatus(apperr.ReasonBadRequest, http.StatusInternalServerError, "failed to persist batch"))
		return
	}

	s.metrics.RecordsAccepted.Add(float64(accepted))
	s.metrics.RequestsTotal.WithLabelValues("/v1/logs", "200").Inc()
	httpapi.WriteJSON(w, http.StatusOK, map[string]int{"accepted": accepted})
}

// handleRecent serves the in-memory diagnostic ring (spec §4.7).
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Storage.RingSize
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	recent := s.store.Recent()
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(recent)
}

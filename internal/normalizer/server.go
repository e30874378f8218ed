// Package normalizer wires the Ingest Normalizer's HTTP handler — parse,
// normalize, enforce labels, forward to the Core Sink (spec §4.5-§4.6) —
// grounded on the same teacher router shape as internal/authgw.
package normalizer

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AllEyesOnMyPon/OpsLog/internal/apperr"
	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/forwarder"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpapi"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpretry"
	"github.com/AllEyesOnMyPon/OpsLog/internal/normalize"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

// Server bundles the Normalizer's dependencies. There is no circuit
// breaker here (spec §9 open question (c): the Normalizer trusts the
// gateway's boundary and applies no nonce or breaker of its own).
type Server struct {
	cfg     *config.NormalizerConfig
	log     *slog.Logger
	metrics *observability.Metrics
	fwd     *forwarder.Forwarder
	encKey  []byte
	health  healthcheck.Handler
}

// New builds a Server from cfg.
func New(cfg *config.NormalizerConfig, logger *slog.Logger, metrics *observability.Metrics) (*Server, error) {
	fwd := forwarder.New(forwarder.Config{
		URL:            cfg.Forward.URL,
		ConnectTimeout: cfg.Forward.ConnectTimeout,
		ReadTimeout:    cfg.Forward.ReadTimeout,
		Retry: httpretry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
	}, nil, metrics)

	var encKey []byte
	if cfg.Encryption.Enabled {
		key, err := cfg.Encryption.Key()
		if err != nil {
			return nil, err
		}
		encKey = key
	}

	return &Server{cfg: cfg, log: logger, metrics: metrics, fwd: fwd, encKey: encKey, health: healthcheck.NewHandler()}, nil
}

// Router builds the chi router for the Normalizer's single ingest route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health.LiveEndpoint)
	r.Get("/readyz", s.health.ReadyEndpoint)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/logs", s.handleLogs)

	return r
}

// handleLogs implements spec §4.5/§4.6: parse by content-type, normalize
// each record, enforce the gateway-authoritative labels, forward the
// batch to the Core Sink with the same retry discipline as §4.4 (no
// breaker), and relay the Core Sink's response verbatim.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpapi.WriteError(w, apperr.New(apperr.ReasonBadRequest, "failed to read body"))
		return
	}

	contentType := r.Header.Get("Content-Type")
	raw, parseErr := normalize.ParseByContentType(contentType, body)
	if parseErr != nil {
		detail := parseErr.Message
		reason := apperr.ReasonBadRequest
		if parseErr.Status == 422 {
			reason = apperr.ReasonBadRequest
			if len(parseErr.InvalidIndices) > 0 {
				detail = detail + ": invalid indices " + normalize.FirstInvalidIndices(parseErr.InvalidIndices)
			}
		}
		httpapi.WriteError(w, apperr.NewWithStatus(reason, parseErr.Status, detail))
		return
	}

	labels := normalize.Labels{
		Emitter:    r.Header.Get("X-Emitter"),
		ScenarioID: firstNonEmpty(r.Header.Get("X-Scenario-Id"), r.Header.Get("X-Scenario")),
	}

	encCfg := normalize.EncryptionConfig{Enabled: s.cfg.Encryption.Enabled, Key: s.encKey, Fields: s.cfg.Encryption.Fields}

	records := make([]*normalize.NormalizedRecord, 0, len(raw))
	for _, rec := range raw {
		n := normalize.Normalize(rec, labels)
		normalize.ApplyRedaction(n, rec, encCfg)
		records = append(records, n)
	}

	payload, err := json.Marshal(records)
	if err != nil {
		httpapi.WriteError(w, apperr.New(apperr.ReasonBadRequest, "failed to encode normalized batch"))
		return
	}

	tctx := forwarder.TemplateContext{
		Emitter:     labels.Emitter,
		ScenarioID:  labels.ScenarioID,
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: "application/json",
	}

	start := time.Now()
	result, fwdErr := s.fwd.Forward(r.Context(), payload, "application/json", tctx)
	s.metrics.RequestDuration.WithLabelValues("/v1/logs").Observe(time.Since(start).Seconds())

	if fwdErr != nil {
		httpapi.WriteError(w, fwdErr)
		s.metrics.RequestsTotal.WithLabelValues("/v1/logs", strconv.Itoa(fwdErr.Status)).Inc()
		return
	}

	if ct := result.Header.Get("Content-Type"); ct == "" || ct != "application/json" {
		if !json.Valid(result.Body) {
			httpapi.WriteJSON(w, result.Status, map[string]string{"downstream_text": string(result.Body)})
			s.metrics.RequestsTotal.WithLabelValues("/v1/logs", strconv.Itoa(result.Status)).Inc()
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
	s.metrics.RequestsTotal.WithLabelValues("/v1/logs", strconv.Itoa(result.Status)).Inc()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

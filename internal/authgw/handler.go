package authgw

import (
	"io"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AllEyesOnMyPon/OpsLog/internal/apperr"
	"github.com/AllEyesOnMyPon/OpsLog/internal/forwarder"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpapi"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

// handleIngest implements spec §4.1-§4.4's pipeline in order: backpressure
// (on Content-Length) -> backpressure (on the bounded body read) ->
// authenticate -> rate-limit -> forward. A request failing an earlier stage
// never reaches a later one, so a size rejection consumes no rate-limit
// token (spec §5 "ordering guarantees").
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Backpressure.MaxBodyBytes

	if r.ContentLength > 0 && r.ContentLength > maxBytes {
		s.reject(w, r, "", "", apperr.New(apperr.ReasonTooLargeHeader, "content-length exceeds limit"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		s.reject(w, r, "", "", apperr.New(apperr.ReasonBadRequest, "failed to read body"))
		return
	}
	if int64(len(body)) > maxBytes {
		s.reject(w, r, "", "", apperr.New(apperr.ReasonTooLarge, "body exceeds limit"))
		return
	}

	authed, authErr := s.authn.Authenticate(r, body)
	if authErr != nil {
		s.reject(w, r, "", "", authErr)
		return
	}

	decision := s.limiter.Allow(r.Context(), authed.Emitter)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	s.metrics.RateLimitRemain.WithLabelValues(authed.Emitter).Set(float64(decision.Remaining))
	if !decision.Admitted {
		retryAfter := decision.RetryAfterSec
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.reject(w, r, authed.Emitter, authed.ScenarioID, apperr.New(apperr.ReasonRateLimited, "rate limit exceeded"))
		return
	}

	tctx := forwarder.TemplateContext{
		ClientIP:    authed.ClientIP,
		Emitter:     authed.Emitter,
		ScenarioID:  authed.ScenarioID,
		APIKey:      authed.APIKey,
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
	}

	start := time.Now()
	result, fwdErr := s.fwd.Forward(r.Context(), authed.Body, r.Header.Get("Content-Type"), tctx)
	s.metrics.RequestDuration.WithLabelValues("/ingest").Observe(time.Since(start).Seconds())
	s.metrics.BreakerState.WithLabelValues(s.cfg.Forward.URL).Set(observability.BreakerStateValue(s.fwd.BreakerState()))

	if fwdErr != nil {
		s.reject(w, r, authed.Emitter, authed.ScenarioID, fwdErr)
		return
	}

	if ct := result.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
	s.metrics.RequestsTotal.WithLabelValues("/ingest", strconv.Itoa(result.Status)).Inc()
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, emitter, scenarioID string, err *apperr.Error) {
	httpapi.WriteError(w, err)
	s.metrics.RejectionsTotal.WithLabelValues(string(err.Reason), orUnknown(emitter), scenarioID).Inc()
	s.metrics.RequestsTotal.WithLabelValues("/ingest", strconv.Itoa(err.Status)).Inc()
	observability.FromContext(r.Context()).WarnContext(r.Context(), "request rejected",
		"reason", err.Reason, "status", err.Status, "emitter", emitter)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// requestLogger attaches a per-request slog.Logger enriched with
// request_id and method/path fields to the context (spec ambient stack:
// "request-scoped fields attached per-request via logger.With at the top
// of the logging middleware").
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := s.log.With("request_id", chimw.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path)
		ctx := observability.WithContext(r.Context(), reqLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}


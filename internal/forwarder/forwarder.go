// Package forwarder implements the downstream POST with retry and an
// optional circuit breaker (spec §4.4), grounded on
// original_source/services/authgw/downstream.py's post_with_retry.
package forwarder

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AllEyesOnMyPon/OpsLog/internal/apperr"
	"github.com/AllEyesOnMyPon/OpsLog/internal/breaker"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpretry"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

// Config configures a Forwarder (spec §6 Forward/Retries/Breaker blocks).
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retry          httpretry.Config
	HeaderTemplate map[string]string
}

// Forwarder POSTs bodies to a single downstream URL with retry and an
// optional breaker gating admission.
type Forwarder struct {
	cfg     Config
	client  *http.Client
	breaker *breaker.Breaker // nil disables circuit breaking (Normalizer->Sink per spec §4.6)
	metrics *observability.Metrics
}

// New builds a Forwarder. brk and metrics may be nil.
func New(cfg Config, brk *breaker.Breaker, metrics *observability.Metrics) *Forwarder {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}
	client := &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
	}
	return &Forwarder{cfg: cfg, client: client, breaker: brk, metrics: metrics}
}

// Result is the outcome of a successful (non-retried-to-exhaustion)
// forward: the downstream's verbatim status code and body.
type Result struct {
	Status int
	Body   []byte
	Header http.Header
}

// Forward sends body to the downstream URL, propagating contentType and
// the forward headers built from ctx (spec §4.4 "Forward headers"). It
// implements the full retry+breaker protocol of spec §4.4 step-by-step.
func (f *Forwarder) Forward(ctx context.Context, body []byte, contentType string, tctx TemplateContext) (*Result, *apperr.Error) {
	if f.breaker != nil && !f.breaker.Allow() {
		return nil, apperr.New(apperr.ReasonCircuitOpen, "downstream circuit open")
	}

	headers := ExpandHeaders(f.cfg.HeaderTemplate, tctx)

	var result *Result
	err := httpretry.Do(ctx, f.cfg.Retry, func(attemptCtx context.Context, attempt int) error {
		if attempt > 1 && f.metrics != nil {
			f.metrics.DownstreamRetries.WithLabelValues(f.cfg.URL).Inc()
		}

		req, reqErr := http.NewRequestWithContext(attemptCtx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
		if reqErr != nil {
			return reqErr // not retryable: malformed request
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if tctx.Emitter != "" {
			req.Header.Set("X-Emitter", tctx.Emitter)
		}
		if tctx.ScenarioID != "" {
			req.Header.Set("X-Scenario-Id", tctx.ScenarioID)
		}
		for name, value := range headers {
			req.Header.Set(name, value)
		}

		resp, doErr := f.client.Do(req)
		if doErr != nil {
			f.recordFailure()
			return httpretry.Retryable(doErr)
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			f.recordFailure()
			return httpretry.Retryable(readErr)
		}

		switch {
		case resp.StatusCode >= 500:
			f.recordFailure()
			return httpretry.Retryable(&downstreamStatusError{Status: resp.StatusCode})
		case resp.StatusCode >= 400:
			// Client error: final, not a downstream fault (spec §4.4 step 3).
			f.recordSuccess()
			result = &Result{Status: resp.StatusCode, Body: respBody, Header: resp.Header}
			return nil
		default:
			f.recordSuccess()
			result = &Result{Status: resp.StatusCode, Body: respBody, Header: resp.Header}
			return nil
		}
	})

	if err == nil {
		return result, nil
	}
	return nil, apperr.New(apperr.ReasonDownstreamError, "downstream request failed after retries")
}

func (f *Forwarder) recordFailure() {
	if f.breaker != nil {
		f.breaker.Record(false)
	}
}

func (f *Forwarder) recordSuccess() {
	if f.breaker != nil {
		f.breaker.Record(true)
	}
}

// BreakerState reports the forwarder's breaker state, or "closed" when no
// breaker is configured (spec §4.6: Normalizer->Sink has no breaker).
func (f *Forwarder) BreakerState() string {
	if f.breaker == nil {
		return string(breaker.StateClosed)
	}
	return string(f.breaker.State())
}

type downstreamStatusError struct{ Status int }

func (e *downstreamStatusError) Error() string {
	return "downstream returned 5xx"
}

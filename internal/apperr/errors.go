// Package apperr defines the error taxonomy shared by all three OpsLog
// services. A Reason maps 1:1 to the X-AuthGW-Reason header value and to
// the Prometheus counter label described in spec §7.
package apperr

import "net/http"

// Reason is a stable taxonomy value. Never reuse a Reason for a different
// failure kind — downstream dashboards and the scenario tests key off it.
type Reason string

const (
	ReasonUnauthorized    Reason = "unauthorized"
	ReasonUnknownClient   Reason = "unknown_client"
	ReasonClockSkew       Reason = "clock_skew"
	ReasonBadNonce        Reason = "bad_nonce"
	ReasonBadSignature    Reason = "bad_signature"
	ReasonBadContentType  Reason = "bad_content_type"
	ReasonTooLarge        Reason = "too_large"
	ReasonTooLargeHeader  Reason = "too_large_hdr"
	ReasonTooManyItems    Reason = "too_many_items"
	ReasonBadRequest      Reason = "bad_request"
	ReasonRateLimited     Reason = "rate_limited"
	ReasonForbidden       Reason = "forbidden"
	ReasonCircuitOpen     Reason = "circuit_open"
	ReasonDownstreamError Reason = "downstream_error"
)

// statusByReason is the canonical HTTP status for each taxonomy value.
// clock_skew is special-cased: an unparseable timestamp is 400, an
// out-of-window timestamp is 401 (§4.1 step 2); callers that need the
// 400 variant construct the Error directly rather than via New.
var statusByReason = map[Reason]int{
	ReasonUnauthorized:    http.StatusUnauthorized,
	ReasonUnknownClient:   http.StatusUnauthorized,
	ReasonClockSkew:       http.StatusUnauthorized,
	ReasonBadNonce:        http.StatusUnauthorized,
	ReasonBadSignature:    http.StatusUnauthorized,
	ReasonBadContentType:  http.StatusUnsupportedMediaType,
	ReasonTooLarge:        http.StatusRequestEntityTooLarge,
	ReasonTooLargeHeader:  http.StatusRequestEntityTooLarge,
	ReasonTooManyItems:    http.StatusRequestEntityTooLarge,
	ReasonBadRequest:      http.StatusBadRequest,
	ReasonRateLimited:     http.StatusTooManyRequests,
	ReasonForbidden:       http.StatusForbidden,
	ReasonCircuitOpen:     http.StatusServiceUnavailable,
	ReasonDownstreamError: http.StatusBadGateway,
}

// Error is a taxonomy-tagged error carrying the HTTP status and the
// client-facing detail message. It is constructed once at the point of
// failure and mapped to the wire response exactly once, at the handler
// seam (spec §9: "map each failure kind to the taxonomy once").
type Error struct {
	Reason Reason
	Status int
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// New builds an Error using the canonical status for reason.
func New(reason Reason, detail string) *Error {
	status, ok := statusByReason[reason]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Reason: reason, Status: status, Detail: detail}
}

// NewWithStatus builds an Error overriding the canonical status, used for
// the clock_skew 400-vs-401 split in §4.1.
func NewWithStatus(reason Reason, status int, detail string) *Error {
	return &Error{Reason: reason, Status: status, Detail: detail}
}

// Package httpapi holds the single wire-response seam shared by all three
// OpsLog services: mapping an *apperr.Error to the literal
// {"detail":...} JSON body and X-AuthGW-Reason header spec §4.1/§7
// mandates, grounded on the teacher's
// internal/transport/http/contract.WriteProblemJSON but trading RFC 7807
// for the flatter contract the scenario tests assert against.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/AllEyesOnMyPon/OpsLog/internal/apperr"
)

// ReasonHeader is read by scenario tests S2/S3/S5 (spec §8).
const ReasonHeader = "X-AuthGW-Reason"

// countedHeader marks a response that has already set ReasonHeader and
// incremented its rejection counter, so a deferred recovery handler never
// double-counts (spec §7: "the reason label is set exactly once per
// response, guarded by the X-AuthGW-Counted marker").
const countedHeader = "X-AuthGW-Counted"

type detailBody struct {
	Detail string `json:"detail"`
}

// WriteError maps err to the wire response exactly once: status, the
// taxonomy reason header, and a single-line {"detail":...} body.
func WriteError(w http.ResponseWriter, err *apperr.Error) {
	if w.Header().Get(countedHeader) == "1" {
		return
	}
	w.Header().Set(countedHeader, "1")
	w.Header().Set(ReasonHeader, string(err.Reason))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(detailBody{Detail: err.Detail})
}

// AlreadyCounted reports whether WriteError has already fired for w, so
// a metrics middleware wrapping the handler chain doesn't double-count
// the rejection.
func AlreadyCounted(w http.ResponseWriter) bool {
	return w.Header().Get(countedHeader) == "1"
}

// WriteJSON writes an arbitrary 2xx JSON payload.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AllEyesOnMyPon/OpsLog/internal/apperr"
)

// Mode selects how strictly a request must be authenticated (spec §4.1).
type Mode string

const (
	ModeNone   Mode = "none"
	ModeAPIKey Mode = "apikey"
	ModeHMAC   Mode = "hmac"
	ModeAny    Mode = "any"
)

// Headers used by the HMAC contract (spec §4.1, §6).
const (
	HeaderAPIKey      = "X-Api-Key"
	HeaderTimestamp   = "X-Timestamp"
	HeaderBodySHA256  = "X-Content-SHA256"
	HeaderSignature   = "X-Signature"
	HeaderNonce       = "X-Nonce"
	HeaderEmitter     = "X-Emitter"
	HeaderScenarioID  = "X-Scenario-Id"
	HeaderScenarioAlt = "X-Scenario"
)

// Authenticated carries everything downstream middleware and handlers
// need about a successfully authenticated request (spec §4.1 step 6).
type Authenticated struct {
	APIKey     string
	Emitter    string
	ClientIP   string
	ScenarioID string
	Body       []byte
}

// Config configures an Authenticator.
type Config struct {
	Mode          Mode
	ClockSkew     time.Duration
	RequireNonce  bool
	NonceTTL      time.Duration // minimum 60s per spec §3; defaults to ClockSkew if zero
	Clients       *Registry
	Nonces        NonceStore
	Now           func() time.Time // overridable for tests
}

// Authenticator verifies inbound requests against the HMAC contract.
type Authenticator struct {
	cfg Config
}

// NewAuthenticator builds an Authenticator. Clients and Nonces (when
// RequireNonce) must be non-nil.
func NewAuthenticator(cfg Config) *Authenticator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = cfg.ClockSkew
	}
	if cfg.NonceTTL < 60*time.Second {
		cfg.NonceTTL = 60 * time.Second
	}
	return &Authenticator{cfg: cfg}
}

// Authenticate runs the procedure in spec §4.1 against r, consuming and
// replacing r's body. On success it returns the Authenticated context and
// the buffered body is re-attached to r so downstream handlers can read it
// again (step 7). On failure it returns a tagged *apperr.Error.
func (a *Authenticator) Authenticate(r *http.Request, body []byte) (*Authenticated, *apperr.Error) {
	switch a.cfg.Mode {
	case ModeNone:
		return &Authenticated{Emitter: "unknown", ClientIP: clientIP(r), Body: body, ScenarioID: scenarioID(r)}, nil
	case ModeAPIKey:
		return a.authenticateAPIKeyOnly(r, body)
	case ModeAny:
		if !hasHMACHeaders(r) {
			return a.authenticateAPIKeyOnly(r, body)
		}
		return a.authenticateHMAC(r, body)
	case ModeHMAC:
		return a.authenticateHMAC(r, body)
	default:
		return a.authenticateHMAC(r, body)
	}
}

func hasHMACHeaders(r *http.Request) bool {
	return r.Header.Get(HeaderTimestamp) != "" &&
		r.Header.Get(HeaderSignature) != "" &&
		r.Header.Get(HeaderBodySHA256) != ""
}

func (a *Authenticator) authenticateAPIKeyOnly(r *http.Request, body []byte) (*Authenticated, *apperr.Error) {
	apiKey := r.Header.Get(HeaderAPIKey)
	if apiKey == "" {
		return nil, apperr.New(apperr.ReasonUnknownClient, "missing X-Api-Key")
	}
	client, ok := a.cfg.Clients.Lookup(apiKey)
	if !ok {
		return nil, apperr.New(apperr.ReasonUnknownClient, "unknown api key")
	}
	return &Authenticated{
		APIKey:     apiKey,
		Emitter:    client.Emitter,
		ClientIP:   clientIP(r),
		ScenarioID: scenarioID(r),
		Body:       body,
	}, nil
}

func (a *Authenticator) authenticateHMAC(r *http.Request, body []byte) (*Authenticated, *apperr.Error) {
	apiKey := r.Header.Get(HeaderAPIKey)
	if apiKey == "" {
		return nil, apperr.New(apperr.ReasonUnknownClient, "missing X-Api-Key")
	}
	client, ok := a.cfg.Clients.Lookup(apiKey)
	if !ok {
		return nil, apperr.New(apperr.ReasonUnknownClient, "unknown api key")
	}

	tsHeader := r.Header.Get(HeaderTimestamp)
	if tsHeader == "" {
		return nil, apperr.New(apperr.ReasonClockSkew, "missing X-Timestamp")
	}
	ts, err := ParseTimestamp(tsHeader)
	if err != nil {
		return nil, apperr.NewWithStatus(apperr.ReasonClockSkew, 400, "unparseable timestamp")
	}

	now := a.cfg.Now()
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	if diff > a.cfg.ClockSkew {
		return nil, apperr.New(apperr.ReasonClockSkew, "timestamp skew")
	}

	nonce := r.Header.Get(HeaderNonce)
	if a.cfg.RequireNonce {
		if nonce == "" {
			return nil, apperr.New(apperr.ReasonBadNonce, "missing X-Nonce")
		}
		replay, storeErr := a.cfg.Nonces.SeenOrRemember(r.Context(), apiKey+":"+nonce, a.cfg.NonceTTL)
		if storeErr != nil {
			return nil, apperr.New(apperr.ReasonBadNonce, "nonce store unavailable")
		}
		if replay {
			return nil, apperr.New(apperr.ReasonBadNonce, "replay detected")
		}
	}

	bodyHashHdr := strings.ToLower(r.Header.Get(HeaderBodySHA256))
	calcHash := BodySHA256Hex(body)
	if bodyHashHdr == "" || bodyHashHdr != calcHash {
		return nil, apperr.New(apperr.ReasonBadSignature, "body hash mismatch")
	}

	canonical := Canonical(r.Method, PathWithoutQuery(r.URL.Path), calcHash, tsHeader, nonce)
	providedSig := r.Header.Get(HeaderSignature)
	if providedSig == "" || !VerifySignature([]byte(client.Secret), canonical, providedSig) {
		return nil, apperr.New(apperr.ReasonBadSignature, "bad signature")
	}

	return &Authenticated{
		APIKey:     apiKey,
		Emitter:    client.Emitter,
		ClientIP:   clientIP(r),
		ScenarioID: scenarioID(r),
		Body:       body,
	}, nil
}

func scenarioID(r *http.Request) string {
	if v := r.Header.Get(HeaderScenarioID); v != "" {
		return v
	}
	return r.Header.Get(HeaderScenarioAlt)
}

func clientIP(r *http.Request) string {
	if idx := strings.IndexByte(r.RemoteAddr, ':'); idx >= 0 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

// ctxKey is an unexported type so context keys never collide across packages.
type ctxKey int

const authCtxKey ctxKey = iota

// WithContext attaches a to ctx.
func WithContext(ctx context.Context, a *Authenticated) context.Context {
	return context.WithValue(ctx, authCtxKey, a)
}

// FromContext retrieves the Authenticated value attached by WithContext.
func FromContext(ctx context.Context) (*Authenticated, bool) {
	a, ok := ctx.Value(authCtxKey).(*Authenticated)
	return a, ok
}

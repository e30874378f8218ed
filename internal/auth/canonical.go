// Package auth implements the HMAC signing contract shared by the Auth
// Gateway and the client-side signer tool: canonical string construction,
// the client registry, and nonce replay protection (spec §4.1, §6).
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"
)

// TimestampLayout is the ISO8601 UTC seconds-precision layout the
// canonical string and the X-Timestamp header use (spec §3, §6).
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t (converted to UTC) in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO8601 UTC timestamp, accepting a literal "Z"
// suffix or an explicit numeric offset, and returns it normalized to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t.UTC(), nil
	}
	// Fall back to RFC3339 for explicit-offset timestamps.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// BodySHA256Hex returns the lowercase hex SHA-256 digest of body.
func BodySHA256Hex(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Canonical builds the exact byte sequence HMAC is computed over (spec §3,
// §6): "METHOD\nPATH\nSHA256_HEX(body)\nTS\nNONCE". method is upper-cased,
// path excludes the query string, and nonce is the empty string when the
// client omitted X-Nonce.
func Canonical(method, path, bodyHashHex, ts, nonce string) []byte {
	parts := []string{
		strings.ToUpper(method),
		path,
		bodyHashHex,
		ts,
		nonce,
	}
	return []byte(strings.Join(parts, "\n"))
}

// Sign computes base64(HMAC-SHA256(secret, canonical)).
func Sign(secret, canonical []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether provided matches the HMAC-SHA256 of
// canonical under secret, in constant time.
func VerifySignature(secret, canonical []byte, provided string) bool {
	expected := Sign(secret, canonical)
	return hmac.Equal([]byte(expected), []byte(provided))
}

// PathWithoutQuery strips everything from the first '?' onward.
func PathWithoutQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

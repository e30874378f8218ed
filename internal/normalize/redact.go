package normalize

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`(?i)\b([A-Z0-9._%+-]+)@([A-Z0-9.-]+\.[A-Z]{2,})\b`)
	ipv4Re  = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
)

// MaskPII replaces email local-parts with "first-char***" and IPv4
// addresses with their first two octets followed by ".x.x" (spec §4.6,
// always applied to msg).
func MaskPII(s string) string {
	s = emailRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := emailRe.FindStringSubmatch(match)
		local, domain := parts[1], parts[2]
		if local == "" {
			return match
		}
		return string(local[0]) + "***@" + domain
	})
	s = ipv4Re.ReplaceAllString(s, "$1.$2.x.x")
	return s
}

// EncryptionConfig enables optional field-level authenticated encryption
// (spec §4.6). No ecosystem AEAD library appears anywhere in the example
// pack, so this is the one deliberate use of stdlib crypto/aes+cipher —
// see DESIGN.md.
type EncryptionConfig struct {
	Enabled bool
	Key     []byte // must be 16, 24, or 32 bytes (AES-128/192/256)
	Fields  []string
}

// Encrypt returns base64(nonce || ciphertext) for plaintext using AES-GCM
// under key (AES-128, -192 or -256 by key length).
func Encrypt(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt; exposed for tests and diagnostics.
func Decrypt(key []byte, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// ApplyRedaction masks n.Msg unconditionally and, when enc is enabled,
// attaches msg_enc plus <field>_enc ciphertexts for each configured field
// present in raw (spec §4.6). raw's own user_email/client_ip are never
// part of the wire output (NormalizedRecord is a fixed field set), so
// ENCRYPT_PII fields meant to survive must be listed in enc.Fields to
// reach the record as ciphertext.
func ApplyRedaction(n *NormalizedRecord, raw RawRecord, enc EncryptionConfig) {
	original := n.Msg
	n.Msg = MaskPII(n.Msg)

	if !enc.Enabled || len(enc.Key) == 0 {
		return
	}

	if ciphertext, err := Encrypt(enc.Key, original); err == nil {
		n.MsgEnc = ciphertext
	}

	n.EncFields = make(map[string]string, len(enc.Fields))
	for _, field := range enc.Fields {
		v, ok := raw[field]
		s, isStr := v.(string)
		if !ok || !isStr || s == "" {
			continue
		}
		if ciphertext, err := Encrypt(enc.Key, s); err == nil {
			n.EncFields[field] = ciphertext
		}
	}
}

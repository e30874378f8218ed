package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NormalizedRecord is the uniform shape emitted to the Core Sink (spec §3).
// EncFields holds the optional <field>_enc ciphertext attachments from
// spec §4.6; it is flattened into top-level keys by MarshalJSON since the
// field set is configuration-dependent.
type NormalizedRecord struct {
	TS         string `json:"ts"`
	Level      string `json:"level"`
	Msg        string `json:"msg"`
	Emitter    string `json:"emitter"`
	ScenarioID string `json:"scenario_id"`
	App        string `json:"app"`
	Source     string `json:"source"`

	MsgEnc    string            `json:"-"`
	EncFields map[string]string `json:"-"`

	MissingTS    bool `json:"_missing_ts"`
	MissingLevel bool `json:"_missing_level"`
}

// MarshalJSON flattens MsgEnc/EncFields into the wire object alongside the
// fixed fields, since encoding/json has no native "inline map" tag.
func (n *NormalizedRecord) MarshalJSON() ([]byte, error) {
	type alias NormalizedRecord
	base, err := json.Marshal((*alias)(n))
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}

	if n.MsgEnc != "" {
		b, _ := json.Marshal(n.MsgEnc)
		obj["msg_enc"] = b
	}
	for field, ciphertext := range n.EncFields {
		b, _ := json.Marshal(ciphertext)
		obj[field+"_enc"] = b
	}

	return json.Marshal(obj)
}

var levelTable = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "ERROR",
	"trace":   "TRACE",
}

// Labels carries the gateway-authoritative, trusted-header-derived labels
// that unconditionally overwrite any record-provided values (spec §4.6).
type Labels struct {
	Emitter    string
	ScenarioID string
}

// Now is overridable for tests.
var Now = time.Now

// Normalize produces a NormalizedRecord from a raw parsed record, applying
// defaults, the canonical level table, and label enforcement (spec §4.6).
func Normalize(r RawRecord, labels Labels) *NormalizedRecord {
	n := &NormalizedRecord{
		App:        "logops",
		Source:     "ingest",
		Emitter:    labels.Emitter,
		ScenarioID: labels.ScenarioID,
	}

	if ts := firstNonEmptyString(r, "ts", "timestamp", "time"); ts != "" {
		n.TS = ts
		n.MissingTS = false
	} else {
		n.TS = Now().UTC().Format(time.RFC3339)
		n.MissingTS = true
	}

	if lvl := firstNonEmptyString(r, "level", "lvl", "severity"); lvl != "" {
		n.MissingLevel = false
		key := strings.ToLower(strings.TrimSpace(lvl))
		if canon, ok := levelTable[key]; ok {
			n.Level = canon
		} else {
			n.Level = "INFO"
		}
	} else {
		n.Level = "INFO"
		n.MissingLevel = true
	}

	n.Msg = coerceString(firstNonEmpty(r, "message", "msg", "log", "raw"))

	return n
}

func firstNonEmpty(r RawRecord, keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmptyString(r RawRecord, keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func coerceString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

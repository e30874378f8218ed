// Package normalize implements the Ingest Normalizer's parsing (spec
// §4.5), record normalization and label enforcement (spec §4.6), grounded
// on original_source/services/ingestgw/parsers.py and normalize.py.
// PII encryption follows the ENCRYPT_PII flag in
// original_source/services/ingestgw/metrics.py and app.py.
package normalize

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// RawRecord is a loosely-typed parsed record, prior to normalization.
type RawRecord map[string]any

// ParseError reports a parse failure, optionally carrying the indices of
// rejected array elements (spec §4.5: "first 50 invalid indices").
type ParseError struct {
	Status         int
	Message        string
	InvalidIndices []int
}

func (e *ParseError) Error() string { return e.Message }

// ParseJSON implements spec §4.5's application/json branch: a bare object
// is treated as a one-element array; a JSON array's non-object elements
// are rejected by index, and if none remain valid the whole batch is
// rejected with 422.
func ParseJSON(body []byte) ([]RawRecord, *ParseError) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, &ParseError{Status: 400, Message: "empty body"}
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, &ParseError{Status: 400, Message: "invalid json: " + err.Error()}
	}

	switch v := generic.(type) {
	case map[string]any:
		return []RawRecord{RawRecord(v)}, nil
	case []any:
		records := make([]RawRecord, 0, len(v))
		var invalid []int
		for i, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				if len(invalid) < 50 {
					invalid = append(invalid, i)
				}
				continue
			}
			records = append(records, RawRecord(obj))
		}
		if len(records) == 0 && len(v) > 0 {
			return nil, &ParseError{Status: 422, Message: "no valid object records in array", InvalidIndices: invalid}
		}
		return records, nil
	default:
		return nil, &ParseError{Status: 400, Message: "json body must be an object or array of objects"}
	}
}

// csvHeaderAliases lists, per column, the names that mark an optional
// header row (spec §4.5).
var csvHeaderAliases = map[int]map[string]bool{
	0: {"ts": true, "timestamp": true},
	1: {"level": true, "lvl": true, "severity": true},
	2: {"msg": true, "message": true, "log": true, "text": true},
}

func isCSVHeader(row []string) bool {
	if len(row) < 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if !csvHeaderAliases[i][strings.ToLower(strings.TrimSpace(row[i]))] {
			return false
		}
	}
	return true
}

// ParseCSV implements spec §4.5's text/csv branch with RFC 4180 semantics
// (quoted fields, embedded commas) via encoding/csv.
func ParseCSV(body []byte) ([]RawRecord, *ParseError) {
	text := string(body)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // rows may have varying column counts

	var records []RawRecord
	headerChecked := false

	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Status: 400, Message: "invalid csv: " + err.Error()}
		}

		if isAllEmpty(row) {
			continue
		}

		if !headerChecked {
			headerChecked = true
			if isCSVHeader(row) {
				continue
			}
		}

		var ts, level, msg string
		if len(row) > 0 {
			ts = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			level = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			msg = strings.TrimSpace(strings.Join(row[2:], ","))
		}

		records = append(records, RawRecord{"ts": ts, "level": level, "msg": msg})
	}

	return records, nil
}

func isAllEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var (
	levelTokenRe  = regexp.MustCompile(`(?i)\b(DEBUG|INFO|WARN|ERROR|TRACE|FATAL)\b`)
	syslogLinePat = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})\s+([A-Z]+)?\s*(.*)$`)
	syslogPrefix  = regexp.MustCompile(`^\S+\s+\S+\[\d+\]:\s+`)
)

// ParseText implements spec §4.5's text/plain branch: one record per
// non-empty line, with best-effort level and syslog-style timestamp
// extraction.
func ParseText(body []byte) []RawRecord {
	lines := strings.Split(string(body), "\n")
	records := make([]RawRecord, 0, len(lines))

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec := RawRecord{"msg": line}

		if m := syslogLinePat.FindStringSubmatch(line); m != nil {
			rec["ts"] = m[1]
			remainder := m[3]
			remainder = syslogPrefix.ReplaceAllString(remainder, "")
			rec["msg"] = remainder
			if m[2] != "" {
				rec["level"] = strings.ToUpper(m[2])
			} else if lvl := levelTokenRe.FindString(remainder); lvl != "" {
				rec["level"] = strings.ToUpper(lvl)
			} else {
				rec["level"] = "INFO"
			}
			records = append(records, rec)
			continue
		}

		if lvl := levelTokenRe.FindString(line); lvl != "" {
			rec["level"] = strings.ToUpper(lvl)
		} else {
			rec["level"] = "INFO"
		}
		records = append(records, rec)
	}

	return records
}

// ParseByContentType dispatches on contentType per spec §4.5, defaulting
// to JSON for anything unrecognized.
func ParseByContentType(contentType string, body []byte) ([]RawRecord, *ParseError) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "text/csv":
		return ParseCSV(body)
	case "text/plain":
		return ParseText(body), nil
	case "application/json", "":
		return ParseJSON(body)
	default:
		return ParseJSON(body)
	}
}

// FirstInvalidIndices renders indices for the {"detail":...} error body.
func FirstInvalidIndices(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return strings.Join(parts, ",")
}

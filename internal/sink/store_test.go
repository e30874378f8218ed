package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t *testing.T, ts time.Time) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return ts }
	t.Cleanup(func() { Now = prev })
}

func TestStore_AppendBatch_WritesNDJSONAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	fixedNow(t, time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	store := NewStore(dir, 10)
	accepted, err := store.AppendBatch([]Record{
		{"message": "hello"},
		{"message": "world", "emitter": "checkout"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	data, err := os.ReadFile(filepath.Join(dir, "20260731.ndjson"))
	require.NoError(t, err)

	lines := splitLines(string(data))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "logops", first["app"])
	assert.Equal(t, "ingest", first["source"])
	assert.Equal(t, "unknown", first["emitter"])
	assert.Equal(t, "", first["scenario_id"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "checkout", second["emitter"])
}

func TestStore_AppendBatch_Empty(t *testing.T) {
	store := NewStore(t.TempDir(), 5)
	accepted, err := store.AppendBatch(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, accepted)
}

func TestStore_AppendBatch_SeparatesDayPartitions(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 10)

	fixedNow(t, time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC))
	_, err := store.AppendBatch([]Record{{"message": "day one"}})
	require.NoError(t, err)

	fixedNow(t, time.Date(2026, 7, 31, 0, 1, 0, 0, time.UTC))
	_, err = store.AppendBatch([]Record{{"message": "day two"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "20260730.ndjson"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "20260731.ndjson"))
	require.NoError(t, err)
}

func TestStore_Recent_WrapsRingBuffer(t *testing.T) {
	store := NewStore(t.TempDir(), 2)

	_, err := store.AppendBatch([]Record{
		{"n": float64(1)},
		{"n": float64(2)},
		{"n": float64(3)},
	})
	require.NoError(t, err)

	recent := store.Recent()
	require.Len(t, recent, 2)

	var r1, r2 map[string]any
	require.NoError(t, json.Unmarshal(recent[0], &r1))
	require.NoError(t, json.Unmarshal(recent[1], &r2))
	assert.Equal(t, float64(2), r1["n"])
	assert.Equal(t, float64(3), r2["n"])
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

package monitoring

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordFetch("glean", "success", 120*time.Millisecond)
	m.RecordFetch("microsoft", "error", time.Second)
	m.RecordChange("glean")
	m.SetScores(map[string]float64{"glean": 81.5})
	m.ObserveRun("weekly", 3*time.Second)

	path := filepath.Join(t.TempDir(), "tracker.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `compete_docs_fetches_total{status="error",vendor="microsoft"} 1`)
	assert.Contains(t, out, `compete_docs_changes_total{vendor="glean"} 1`)
	assert.Contains(t, out, `compete_overall_score{vendor="glean"} 81.5`)
	assert.Contains(t, out, `compete_run_duration_seconds_count{mode="weekly"} 1`)
}

func TestMetrics_WriteTextfileEmptyPath(t *testing.T) {
	assert.NoError(t, NewMetrics().WriteTextfile(""))
}

func TestMetrics_GetStats(t *testing.T) {
	m := NewMetrics()
	m.IncrementCacheHit()
	m.IncrementCacheHit()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.RecordFetch("glean", "error", time.Millisecond)

	stats := m.GetStats()

	assert.Equal(t, int64(3), stats["cache_hits"])
	assert.Equal(t, int64(1), stats["cache_misses"])
	assert.InDelta(t, 75.0, stats["cache_hit_rate_pct"], 1e-9)
	assert.Equal(t, int64(1), stats["fetch_errors"])
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOptions(&buf, ParseLevel("info"), "json")

	logger.StoreLogger("load", "comparison-data", 10, time.Millisecond)
	assert.Empty(t, buf.String())

	logger.ChangeLogger("glean", "https://docs.glean.com/a", "Content changed (hash: abcdef12...)")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Documentation Change Detected", entry["msg"])
	assert.Equal(t, "glean", entry["vendor"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		" error ": "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in).String(), in)
	}
}

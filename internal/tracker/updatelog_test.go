package tracker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

const legacyLog = `{
  "lastCheck": "2026-10-11",
  "documentationState": {
    "glean": {
      "https://docs.glean.com/a": {"status": "success", "hash": "abc", "last_modified": "unknown", "size": 10}
    }
  },
  "updates": [
    {"date": "2026-10-04", "changes": [], "scores": {"glean": 80}, "reviewed": true}
  ],
  "owner": "compete-team"
}`

func TestParseUpdateLog(t *testing.T) {
	l, err := ParseUpdateLog([]byte(legacyLog))
	require.NoError(t, err)

	require.NotNil(t, l.LastCheck)
	assert.Equal(t, "2026-10-11", *l.LastCheck)
	fp, ok := l.DocumentationState.Lookup(types.VendorGlean, "https://docs.glean.com/a")
	require.True(t, ok)
	assert.Equal(t, "abc", fp.Hash)

	require.NoError(t, l.AddUpdate(UpdateEntry{RunID: "r2", Date: "2026-10-18", Scores: map[string]float64{"glean": 81}}))
	data, err := l.Encode()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "compete-team", doc["owner"])
	updates := doc["updates"].([]interface{})
	require.Len(t, updates, 2)
	assert.Equal(t, true, updates[0].(map[string]interface{})["reviewed"])
	assert.Equal(t, []interface{}{}, updates[1].(map[string]interface{})["changes"])

	recent := l.RecentUpdates(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "r2", recent[0].RunID)
}

func TestParseUpdateLog_Absent(t *testing.T) {
	l, err := ParseUpdateLog(nil)
	require.NoError(t, err)
	assert.Nil(t, l.LastCheck)
	assert.Empty(t, l.DocumentationState)

	data, err := l.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"lastCheck": null, "documentationState": {}, "updates": []}`, string(data))
}

func TestUpdateLog_RecordReplacesState(t *testing.T) {
	l, err := ParseUpdateLog([]byte(legacyLog))
	require.NoError(t, err)
	previous := l.DocumentationState

	next := make(changes.State)
	next.Record(types.VendorMicrosoft, "https://learn.microsoft.com/a", changes.Fingerprint{Status: changes.StatusError, Error: "boom"})
	l.Record("2026-10-18", next)

	assert.Equal(t, "2026-10-18", *l.LastCheck)
	_, stillThere := l.DocumentationState.Lookup(types.VendorGlean, "https://docs.glean.com/a")
	assert.False(t, stillThere)
	_, kept := previous.Lookup(types.VendorGlean, "https://docs.glean.com/a")
	assert.True(t, kept)
}

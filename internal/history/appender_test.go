package history

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "snapshots": [
    {
      "date": "2026-10-01",
      "version": "2.3",
      "summary": "Initial curated baseline",
      "scores": {
        "glean": {"overall": 80, "byCategory": {"connectors": 48, "search": 32}},
        "google": {"overall": 60, "byCategory": {"connectors": 36, "search": 24}},
        "microsoft": {"overall": 50, "byCategory": {"connectors": 30, "search": 20}}
      },
      "keyGaps": [
        {"category": "connectors", "gap": "No catalog sync", "impact": "high", "priority": 1}
      ],
      "reviewer": "docs-team"
    }
  ],
  "changeLog": [
    {"date": "2026-10-01", "description": "Baseline"}
  ],
  "schema": 2
}`

var vendors = types.VendorSet{types.VendorGlean, types.VendorGoogle, types.VendorMicrosoft}

var labels = map[types.Vendor]string{
	types.VendorGlean:     "Glean",
	types.VendorGoogle:    "Google",
	types.VendorMicrosoft: "Microsoft",
}

func scores(glean, google, microsoft float64) analysis.ScoreResult {
	return analysis.ScoreResult{
		types.VendorGlean:     {Overall: glean, ByCategory: map[string]float64{}},
		types.VendorGoogle:    {Overall: google, ByCategory: map[string]float64{}},
		types.VendorMicrosoft: {Overall: microsoft, ByCategory: map[string]float64{}},
	}
}

func load(t *testing.T) *History {
	t.Helper()
	h, err := Parse([]byte(fixture))
	require.NoError(t, err)
	return h
}

func dailyTrigger() ScoreDelta {
	return ScoreDelta{Threshold: 0.5, Vendors: vendors, Labels: labels}
}

func TestAppend_SameDayIsNoOp(t *testing.T) {
	h := load(t)

	next, out := Append(h, Input{
		Today:   "2026-10-01",
		Scores:  scores(10, 10, 10),
		Trigger: dailyTrigger(),
	})

	assert.True(t, out.AlreadyCurrent)
	assert.False(t, out.Appended)
	assert.Same(t, h, next)
	assert.Len(t, next.Snapshots, 1)
	assert.Len(t, next.ChangeLog, 1)
}

func TestAppend_Idempotent(t *testing.T) {
	in := Input{
		Today:   "2026-10-02",
		Version: json.RawMessage(`"2.3"`),
		Scores:  scores(82, 60, 49),
		Trigger: dailyTrigger(),
	}

	first, out := Append(load(t), in)
	require.True(t, out.Appended)
	firstJSON, err := first.Encode()
	require.NoError(t, err)

	second, out := Append(first, in)
	assert.True(t, out.AlreadyCurrent)
	secondJSON, err := second.Encode()
	require.NoError(t, err)

	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestAppend_CarriesKeyGapsForward(t *testing.T) {
	h := load(t)

	next, _ := Append(h, Input{Today: "2026-10-02", Scores: scores(80, 60, 50), Trigger: dailyTrigger()})

	require.Len(t, next.Snapshots, 2)
	assert.JSONEq(t, string(h.Snapshots[0].KeyGaps), string(next.Snapshots[1].KeyGaps))
	assert.Len(t, h.Snapshots, 1, "input history must not be modified")
}

func TestAppend_EmptyHistory(t *testing.T) {
	h, err := Parse([]byte(`{"snapshots": [], "changeLog": []}`))
	require.NoError(t, err)

	next, out := Append(h, Input{Today: "2026-10-02", Scores: scores(80, 60, 50), Trigger: dailyTrigger()})

	assert.True(t, out.Appended)
	assert.False(t, out.ChangeLogged)
	assert.Nil(t, out.Previous)
	require.Len(t, next.Snapshots, 1)
	assert.Equal(t, "[]", string(next.Snapshots[0].KeyGaps))
	assert.Equal(t, "Automated daily update - 2026-10-02", next.Snapshots[0].Summary)
}

func TestAppend_DailyTrigger(t *testing.T) {
	tests := []struct {
		name        string
		current     analysis.ScoreResult
		wantLogged  bool
		description string
	}{
		{
			name:       "no movement",
			current:    scores(80, 60, 50),
			wantLogged: false,
		},
		{
			name:       "exactly threshold is not significant",
			current:    scores(80.5, 59.5, 50),
			wantLogged: false,
		},
		{
			name:        "one vendor above threshold",
			current:     scores(81.2, 60.3, 50),
			wantLogged:  true,
			description: "Score changes detected: Glean: +1.2",
		},
		{
			name:        "several vendors in vendor order",
			current:     scores(81.2, 60, 49.2),
			wantLogged:  true,
			description: "Score changes detected: Glean: +1.2, Microsoft: -0.8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, out := Append(load(t), Input{Today: "2026-10-02", Scores: tt.current, Trigger: dailyTrigger()})

			assert.True(t, out.Appended)
			assert.Equal(t, tt.wantLogged, out.ChangeLogged)
			if tt.wantLogged {
				require.Len(t, next.ChangeLog, 2)
				assert.Equal(t, ChangeLogEntry{Date: "2026-10-02", Description: tt.description}, next.ChangeLog[1])
			} else {
				assert.Len(t, next.ChangeLog, 1)
			}
		})
	}
}

func TestAppend_WeeklyTrigger(t *testing.T) {
	events := []changes.Event{
		{Platform: types.VendorGlean, URL: "https://docs.glean.com/a", Description: "Content changed (hash: 01234567...)"},
		{Platform: types.VendorGoogle, URL: "https://cloud.google.com/a", Description: "Content changed (hash: 89abcdef...)"},
	}

	next, out := Append(load(t), Input{
		Today:   "2026-10-05",
		Version: json.RawMessage(`"2.3"`),
		Scores:  scores(80, 60, 50),
		Trigger: DocumentationChanges{Events: events},
	})

	assert.True(t, out.ChangeLogged)
	assert.Equal(t, "Automated weekly update - 2 change(s) detected", next.Latest().Summary)
	assert.Equal(t, "Weekly auto-check: 2 documentation change(s) detected", next.ChangeLog[1].Description)

	_, out = Append(load(t), Input{Today: "2026-10-05", Trigger: DocumentationChanges{}})
	assert.False(t, out.ChangeLogged)
}

func TestHistory_EncodePreservesUnknownFields(t *testing.T) {
	next, _ := Append(load(t), Input{Today: "2026-10-02", Scores: scores(80, 60, 50), Trigger: dailyTrigger()})

	data, err := next.Encode()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, 2, doc["schema"])

	snaps := doc["snapshots"].([]interface{})
	require.Len(t, snaps, 2)
	assert.Equal(t, "docs-team", snaps[0].(map[string]interface{})["reviewer"])
	assert.NotContains(t, snaps[1].(map[string]interface{}), "reviewer")
}

func TestHistory_EncodeKeepsStoredScores(t *testing.T) {
	stored := `{
  "snapshots": [
    {
      "date": "2026-10-01",
      "summary": "Hand curated",
      "scores": {
        "glean": {"overall": 80.0, "rank": 1},
        "servicenow": {"overall": 90}
      },
      "keyGaps": []
    }
  ],
  "changeLog": []
}`
	h, err := Parse([]byte(stored))
	require.NoError(t, err)
	assert.Equal(t, 80.0, h.Latest().Scores[types.VendorGlean].Overall)

	next, out := Append(h, Input{Today: "2026-10-02", Scores: scores(81, 60, 50), Trigger: dailyTrigger()})
	require.True(t, out.Appended)
	assert.Contains(t, out.Description, "Glean: +1.0")

	data, err := next.Encode()
	require.NoError(t, err)

	var doc struct {
		Snapshots []struct {
			Scores json.RawMessage `json:"scores"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Snapshots, 2)
	assert.JSONEq(t, `{"glean": {"overall": 80.0, "rank": 1}, "servicenow": {"overall": 90}}`, string(doc.Snapshots[0].Scores))

	text := string(data)
	assert.Contains(t, text, `"overall": 80.0`)
	assert.Contains(t, text, `"rank": 1`)
	assert.Equal(t, 1, strings.Count(text, `"servicenow"`))
	assert.NotContains(t, text, `"byCategory": null`)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"snapshots not a list", `{"snapshots": {}}`},
		{"snapshot without date", `{"snapshots": [{"summary": "x"}], "changeLog": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse([]byte(tt.data))
			assert.Error(t, err)
			assert.Nil(t, h)
		})
	}
}

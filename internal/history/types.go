package history

import (
	"encoding/json"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
)

// emptyGaps is written when there is no earlier snapshot to carry keyGaps forward from
var emptyGaps = json.RawMessage("[]")

// Snapshot is one dated record of scores. keyGaps is curated by hand and is
// carried forward untouched, so it stays raw.
//
// Scores of a snapshot read from the store are written back exactly as read;
// the decoded Scores only feed delta computation.
type Snapshot struct {
	Date    string               `json:"date"`
	Version json.RawMessage      `json:"version,omitempty"`
	Summary string               `json:"summary"`
	Scores  analysis.ScoreResult `json:"scores"`
	KeyGaps json.RawMessage      `json:"keyGaps"`

	rawScores json.RawMessage
	extra     map[string]json.RawMessage
}

// ChangeLogEntry is a dated human-readable note
type ChangeLogEntry struct {
	Date        string `json:"date"`
	Description string `json:"description"`

	extra map[string]json.RawMessage
}

// History is the historical-log document. Snapshots and ChangeLog only grow.
type History struct {
	Snapshots []Snapshot       `json:"snapshots"`
	ChangeLog []ChangeLogEntry `json:"changeLog"`

	extra map[string]json.RawMessage
}

// Latest returns the most recent snapshot, or nil
func (h *History) Latest() *Snapshot {
	if len(h.Snapshots) == 0 {
		return nil
	}
	return &h.Snapshots[len(h.Snapshots)-1]
}

// Parse decodes a historical-log document
func Parse(data []byte) (*History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, apperrors.NewDataError("historical-log is not valid", map[string]interface{}{
			"document": "historical-log",
			"cause":    err.Error(),
		})
	}
	for i, s := range h.Snapshots {
		if s.Date == "" {
			return nil, apperrors.NewDataError("snapshot has no date", map[string]interface{}{
				"document": "historical-log",
				"index":    i,
			})
		}
	}
	return &h, nil
}

// Encode renders the document for the store
func (h *History) Encode() ([]byte, error) {
	return encoding.MarshalDocument(h)
}

type snapshotFields struct {
	Date    string          `json:"date"`
	Version json.RawMessage `json:"version,omitempty"`
	Summary string          `json:"summary"`
	Scores  json.RawMessage `json:"scores"`
	KeyGaps json.RawMessage `json:"keyGaps"`
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var f snapshotFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var scores analysis.ScoreResult
	if len(f.Scores) > 0 {
		if err := json.Unmarshal(f.Scores, &scores); err != nil {
			return err
		}
	}
	extra, err := encoding.SplitUnknown(data, "date", "version", "summary", "scores", "keyGaps")
	if err != nil {
		return err
	}
	*s = Snapshot{
		Date:      f.Date,
		Version:   f.Version,
		Summary:   f.Summary,
		Scores:    scores,
		KeyGaps:   f.KeyGaps,
		rawScores: f.Scores,
		extra:     extra,
	}
	return nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	gaps := s.KeyGaps
	if len(gaps) == 0 {
		gaps = emptyGaps
	}
	scores := s.rawScores
	if len(scores) == 0 {
		var err error
		if scores, err = json.Marshal(s.Scores); err != nil {
			return nil, err
		}
	}
	return encoding.MergeUnknown(snapshotFields{
		Date:    s.Date,
		Version: s.Version,
		Summary: s.Summary,
		Scores:  scores,
		KeyGaps: gaps,
	}, s.extra)
}

type changeLogFields struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (e *ChangeLogEntry) UnmarshalJSON(data []byte) error {
	var f changeLogFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := encoding.SplitUnknown(data, "date", "description")
	if err != nil {
		return err
	}
	*e = ChangeLogEntry{Date: f.Date, Description: f.Description, extra: extra}
	return nil
}

func (e ChangeLogEntry) MarshalJSON() ([]byte, error) {
	return encoding.MergeUnknown(changeLogFields{Date: e.Date, Description: e.Description}, e.extra)
}

type historyFields struct {
	Snapshots []Snapshot       `json:"snapshots"`
	ChangeLog []ChangeLogEntry `json:"changeLog"`
}

func (h *History) UnmarshalJSON(data []byte) error {
	var f historyFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := encoding.SplitUnknown(data, "snapshots", "changeLog")
	if err != nil {
		return err
	}
	*h = History{Snapshots: f.Snapshots, ChangeLog: f.ChangeLog, extra: extra}
	return nil
}

func (h History) MarshalJSON() ([]byte, error) {
	f := historyFields{Snapshots: h.Snapshots, ChangeLog: h.ChangeLog}
	if f.Snapshots == nil {
		f.Snapshots = []Snapshot{}
	}
	if f.ChangeLog == nil {
		f.ChangeLog = []ChangeLogEntry{}
	}
	return encoding.MergeUnknown(f, h.extra)
}

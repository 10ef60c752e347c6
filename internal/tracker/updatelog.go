package tracker

import (
	"encoding/json"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// UpdateLog is the weekly-update-log document. Earlier update entries are kept verbatim.
type UpdateLog struct {
	LastCheck          *string           `json:"lastCheck"`
	DocumentationState changes.State     `json:"documentationState"`
	Updates            []json.RawMessage `json:"updates"`

	extra map[string]json.RawMessage
}

// UpdateEntry records one weekly run that detected changes
type UpdateEntry struct {
	RunID    string             `json:"runId,omitempty"`
	Date     string             `json:"date"`
	Changes  []changes.Event    `json:"changes"`
	Failures []changes.Failure  `json:"failures,omitempty"`
	Scores   map[string]float64 `json:"scores"`
}

type updateLogFields struct {
	LastCheck          *string           `json:"lastCheck"`
	DocumentationState changes.State     `json:"documentationState"`
	Updates            []json.RawMessage `json:"updates"`
}

// NewUpdateLog is the state before the first weekly run
func NewUpdateLog() *UpdateLog {
	return &UpdateLog{DocumentationState: changes.State{}, Updates: []json.RawMessage{}}
}

// ParseUpdateLog decodes weekly-update-log. nil data yields a fresh log.
func ParseUpdateLog(data []byte) (*UpdateLog, error) {
	if data == nil {
		return NewUpdateLog(), nil
	}
	var l UpdateLog
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, apperrors.NewDataError("weekly-update-log is not valid", map[string]interface{}{
			"document": types.DocUpdateLog,
			"cause":    err.Error(),
		})
	}
	if l.DocumentationState == nil {
		l.DocumentationState = changes.State{}
	}
	return &l, nil
}

func (l *UpdateLog) UnmarshalJSON(data []byte) error {
	var f updateLogFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := encoding.SplitUnknown(data, "lastCheck", "documentationState", "updates")
	if err != nil {
		return err
	}
	*l = UpdateLog{LastCheck: f.LastCheck, DocumentationState: f.DocumentationState, Updates: f.Updates, extra: extra}
	return nil
}

func (l UpdateLog) MarshalJSON() ([]byte, error) {
	f := updateLogFields{LastCheck: l.LastCheck, DocumentationState: l.DocumentationState, Updates: l.Updates}
	if f.DocumentationState == nil {
		f.DocumentationState = changes.State{}
	}
	if f.Updates == nil {
		f.Updates = []json.RawMessage{}
	}
	return encoding.MergeUnknown(f, l.extra)
}

// Record replaces the documentation state and sets lastCheck. The previous state is not modified.
func (l *UpdateLog) Record(date string, state changes.State) {
	d := date
	l.LastCheck = &d
	l.DocumentationState = state
}

// AddUpdate appends an update entry
func (l *UpdateLog) AddUpdate(entry UpdateEntry) error {
	if entry.Changes == nil {
		entry.Changes = []changes.Event{}
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.Updates = append(l.Updates, raw)
	return nil
}

// RecentUpdates decodes up to n of the newest entries, newest first. Entries that do not decode are skipped.
func (l *UpdateLog) RecentUpdates(n int) []UpdateEntry {
	var out []UpdateEntry
	for i := len(l.Updates) - 1; i >= 0 && len(out) < n; i-- {
		var e UpdateEntry
		if err := json.Unmarshal(l.Updates[i], &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Encode renders the document for the store
func (l *UpdateLog) Encode() ([]byte, error) {
	return encoding.MarshalDocument(l)
}

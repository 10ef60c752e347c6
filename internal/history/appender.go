package history

import (
	"encoding/json"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
)

// Input carries everything Append needs for one run
type Input struct {
	Today   string
	Version json.RawMessage
	Scores  analysis.ScoreResult
	Trigger Trigger
}

// Outcome describes what Append did
type Outcome struct {
	// AlreadyCurrent is set when the latest snapshot is dated today and nothing was appended
	AlreadyCurrent bool
	Appended       bool
	ChangeLogged   bool
	Description    string
	Previous       *Snapshot
}

// Append adds today's snapshot and, when the trigger reports something, a changelog entry.
//
// It is a no-op when the latest snapshot is already dated today, so calling it twice
// with the same Today leaves the history as the first call left it. The input history
// is never modified.
func Append(h *History, in Input) (*History, Outcome) {
	prev := h.Latest()
	if prev != nil && prev.Date == in.Today {
		return h, Outcome{AlreadyCurrent: true, Previous: prev}
	}

	next := h.clone()

	gaps := emptyGaps
	if prev != nil && len(prev.KeyGaps) > 0 {
		gaps = append(json.RawMessage(nil), prev.KeyGaps...)
	}

	next.Snapshots = append(next.Snapshots, Snapshot{
		Date:    in.Today,
		Version: in.Version,
		Summary: in.Trigger.Summary(in.Today),
		Scores:  in.Scores,
		KeyGaps: gaps,
	})

	out := Outcome{Appended: true, Previous: prev}
	if desc, ok := in.Trigger.Describe(prev, in.Scores); ok {
		next.ChangeLog = append(next.ChangeLog, ChangeLogEntry{Date: in.Today, Description: desc})
		out.ChangeLogged = true
		out.Description = desc
	}

	return next, out
}

func (h *History) clone() *History {
	c := &History{extra: h.extra}
	c.Snapshots = make([]Snapshot, len(h.Snapshots), len(h.Snapshots)+1)
	copy(c.Snapshots, h.Snapshots)
	c.ChangeLog = make([]ChangeLogEntry, len(h.ChangeLog), len(h.ChangeLog)+1)
	copy(c.ChangeLog, h.ChangeLog)
	return c
}

package history

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// Trigger decides the summary of a new snapshot and whether the run earns a changelog entry.
// Weekly and daily runs share Append and differ only in their trigger.
type Trigger interface {
	Summary(today string) string
	// Describe returns the changelog description, or false when there is nothing to report.
	// previous is nil when the history has no snapshots yet.
	Describe(previous *Snapshot, current analysis.ScoreResult) (string, bool)
}

// DocumentationChanges reports when the weekly check detected changed documentation
type DocumentationChanges struct {
	Events []changes.Event
}

func (t DocumentationChanges) Summary(string) string {
	return fmt.Sprintf("Automated weekly update - %d change(s) detected", len(t.Events))
}

func (t DocumentationChanges) Describe(*Snapshot, analysis.ScoreResult) (string, bool) {
	if len(t.Events) == 0 {
		return "", false
	}
	return fmt.Sprintf("Weekly auto-check: %d documentation change(s) detected", len(t.Events)), true
}

// ScoreDelta reports when any vendor's overall score moved by more than Threshold
// since the previous snapshot
type ScoreDelta struct {
	Threshold float64
	Vendors   types.VendorSet
	Labels    map[types.Vendor]string
}

func (t ScoreDelta) Summary(today string) string {
	return "Automated daily update - " + today
}

func (t ScoreDelta) Describe(previous *Snapshot, current analysis.ScoreResult) (string, bool) {
	if previous == nil {
		return "", false
	}
	parts := make([]string, 0, len(t.Vendors))
	for _, d := range t.Significant(previous, current) {
		parts = append(parts, fmt.Sprintf("%s: %s", t.label(d.Vendor), analysis.FormatDelta(d.Value)))
	}
	if len(parts) == 0 {
		return "", false
	}
	return "Score changes detected: " + strings.Join(parts, ", "), true
}

// Significant returns the deltas above the threshold in vendor order
func (t ScoreDelta) Significant(previous *Snapshot, current analysis.ScoreResult) []analysis.Delta {
	if previous == nil {
		return nil
	}
	var out []analysis.Delta
	for _, d := range analysis.Deltas(current, previous.Scores, t.Vendors) {
		if d.Significant(t.Threshold) {
			out = append(out, d)
		}
	}
	return out
}

func (t ScoreDelta) label(v types.Vendor) string {
	if l, ok := t.Labels[v]; ok && l != "" {
		return l
	}
	return string(v)
}

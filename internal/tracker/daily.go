package tracker

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/history"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// DailyReport summarises a daily history update
type DailyReport struct {
	RunID          string
	Date           string
	AlreadyCurrent bool
	Scores         analysis.ScoreResult
	Deltas         []analysis.Delta
	ChangeLogged   bool
	Description    string
}

// DailyUpdate recomputes scores and appends today's snapshot. A second run on the same
// date writes nothing.
func (t *Tracker) DailyUpdate(ctx context.Context) (*DailyReport, error) {
	start := time.Now()
	report := &DailyReport{RunID: t.runID(), Date: t.today()}

	comparison, scores, err := t.loadComparison(ctx)
	if err != nil {
		return nil, err
	}
	report.Scores = scores

	hist, err := t.loadHistory(ctx, true)
	if err != nil {
		return nil, err
	}

	trigger := t.scoreTrigger()
	next, outcome := history.Append(hist, history.Input{
		Today:   report.Date,
		Version: comparison.Version,
		Scores:  scores,
		Trigger: trigger,
	})
	if outcome.Previous != nil {
		report.Deltas = analysis.Deltas(scores, outcome.Previous.Scores, t.vendors())
	}

	if outcome.AlreadyCurrent {
		report.AlreadyCurrent = true
		t.logger.Info("Historical data already up to date", "date", report.Date)
		t.metrics.RecordSnapshot(ModeDaily, false, false)
		t.finish(ModeDaily, report.RunID, 0, 0, false, scores, start)
		return report, nil
	}
	report.ChangeLogged = outcome.ChangeLogged
	report.Description = outcome.Description

	comparison.Touch(report.Date)
	docs, err := encodeAll(comparison, next, nil)
	if err != nil {
		return nil, err
	}
	// history first, then comparison-data
	docs[0], docs[1] = docs[1], docs[0]
	if err := t.save(ctx, docs...); err != nil {
		return nil, err
	}

	t.metrics.RecordSnapshot(ModeDaily, true, outcome.ChangeLogged)
	t.finish(ModeDaily, report.RunID, 0, 0, true, scores, start)
	return report, nil
}

// ScoreReport is a read-only view of the current scores
type ScoreReport struct {
	Version     string                              `json:"version"`
	LastUpdated string                              `json:"lastUpdated"`
	Scores      analysis.ScoreResult                `json:"scores"`
	Percentages map[types.Vendor]map[string]float64 `json:"categoryPercentages"`
	Standings   []analysis.Standing                 `json:"standings"`
	Labels      map[types.Vendor]string             `json:"labels"`
}

// CurrentScores computes scores from comparison-data without writing anything
func (t *Tracker) CurrentScores(ctx context.Context) (*ScoreReport, error) {
	comparison, scores, err := t.loadComparison(ctx)
	if err != nil {
		return nil, err
	}
	return &ScoreReport{
		Version:     comparison.VersionString(),
		LastUpdated: comparison.LastUpdated,
		Scores:      scores,
		Percentages: analysis.CategoryPercentages(scores, comparison.Matrix),
		Standings:   analysis.Standings(scores, t.vendors()),
		Labels:      t.cfg.Labels(),
	}, nil
}

// History loads the historical log. It is read-only.
func (t *Tracker) History(ctx context.Context) (*history.History, error) {
	return t.loadHistory(ctx, true)
}

// UpdateLog loads the weekly update log, or a fresh one when none was written yet
func (t *Tracker) UpdateLog(ctx context.Context) (*UpdateLog, error) {
	data, err := t.load(ctx, types.DocUpdateLog, false)
	if err != nil {
		return nil, err
	}
	return ParseUpdateLog(data)
}

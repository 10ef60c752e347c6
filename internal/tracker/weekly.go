package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/history"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/store"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// WeeklyReport summarises a weekly documentation check
type WeeklyReport struct {
	RunID            string
	Date             string
	Events           []changes.Event
	Failures         []changes.Failure
	Baselines        int
	Unchanged        int
	Scores           analysis.ScoreResult
	SnapshotAppended bool
	ChangeLogged     bool
}

// Changed is the flag exported to CI
func (r *WeeklyReport) Changed() bool {
	return len(r.Events) > 0
}

// WeeklyCheck fingerprints the watchlist, compares it with the last run and, when
// documentation changed, records a snapshot, a changelog entry and an update entry.
// Every document is read and validated before anything is written.
func (t *Tracker) WeeklyCheck(ctx context.Context) (*WeeklyReport, error) {
	if t.fetcher == nil {
		return nil, apperrors.NewConfigurationError("weekly check requires a fetcher", nil)
	}

	start := time.Now()
	report := &WeeklyReport{RunID: t.runID(), Date: t.today()}

	logData, err := t.load(ctx, types.DocUpdateLog, false)
	if err != nil {
		return nil, err
	}
	updateLog, err := ParseUpdateLog(logData)
	if err != nil {
		return nil, err
	}

	comparison, scores, err := t.loadComparison(ctx)
	if err != nil {
		return nil, err
	}
	report.Scores = scores

	t.logger.Info("Checking documentation URLs", "run_id", report.RunID, "urls", len(t.cfg.Watchlist()))
	current := t.fetcher.FetchAll(ctx, t.cfg.Watchlist())

	result := changes.NewDetector(t.cfg.Watchlist()).Detect(current, updateLog.DocumentationState)
	report.Events = result.Events
	report.Failures = result.Failures
	report.Baselines = len(result.Baselines)
	report.Unchanged = result.Unchanged

	for _, e := range result.Events {
		t.logger.ChangeLogger(string(e.Platform), e.URL, e.Description)
		t.metrics.RecordChange(string(e.Platform))
	}

	updateLog.Record(report.Date, current)

	if !result.Changed() {
		data, err := updateLog.Encode()
		if err != nil {
			return nil, apperrors.NewInternalError("encode weekly-update-log", err)
		}
		if err := t.save(ctx, store.Document{Name: types.DocUpdateLog, Data: data}); err != nil {
			return nil, err
		}
		t.metrics.RecordSnapshot(ModeWeekly, false, false)
		t.finish(ModeWeekly, report.RunID, 0, len(report.Failures), false, scores, start)
		return report, nil
	}

	hist, err := t.loadHistory(ctx, true)
	if err != nil {
		return nil, err
	}

	next, outcome := history.Append(hist, history.Input{
		Today:   report.Date,
		Version: comparison.Version,
		Scores:  scores,
		Trigger: history.DocumentationChanges{Events: result.Events},
	})
	report.SnapshotAppended = outcome.Appended
	report.ChangeLogged = outcome.ChangeLogged
	if outcome.AlreadyCurrent {
		t.logger.Info("History already has a snapshot for today", "date", report.Date)
	}

	if err := updateLog.AddUpdate(UpdateEntry{
		RunID:    report.RunID,
		Date:     report.Date,
		Changes:  result.Events,
		Failures: result.Failures,
		Scores:   scores.Overalls(),
	}); err != nil {
		return nil, apperrors.NewInternalError("encode update entry", err)
	}

	comparison.Touch(report.Date)
	docs, err := encodeAll(comparison, next, updateLog)
	if err != nil {
		return nil, err
	}
	if err := t.save(ctx, docs...); err != nil {
		return nil, err
	}

	t.metrics.RecordSnapshot(ModeWeekly, outcome.Appended, outcome.ChangeLogged)
	t.finish(ModeWeekly, report.RunID, len(report.Events), len(report.Failures), outcome.Appended, scores, start)
	return report, nil
}

func encodeAll(comparison *analysis.Comparison, hist *history.History, updateLog *UpdateLog) ([]store.Document, error) {
	comparisonData, err := comparison.Encode()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("encode %s", types.DocComparison), err)
	}
	historyData, err := hist.Encode()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("encode %s", types.DocHistory), err)
	}
	docs := []store.Document{
		{Name: types.DocComparison, Data: comparisonData},
		{Name: types.DocHistory, Data: historyData},
	}
	if updateLog != nil {
		logData, err := updateLog.Encode()
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("encode %s", types.DocUpdateLog), err)
		}
		docs = append(docs, store.Document{Name: types.DocUpdateLog, Data: logData})
	}
	return docs, nil
}

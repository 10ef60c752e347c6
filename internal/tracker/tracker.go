// Package tracker runs the weekly documentation check and the daily history update.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/config"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/history"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/store"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

const (
	ModeWeekly = "weekly"
	ModeDaily  = "daily"
)

// Fetcher fingerprints every watchlist URL. Failures are recorded in the returned state.
type Fetcher interface {
	FetchAll(ctx context.Context, targets []changes.Target) changes.State
}

// Tracker orchestrates runs against a document store
type Tracker struct {
	cfg     *config.Config
	store   store.Store
	fetcher Fetcher
	metrics *monitoring.Metrics
	logger  *monitoring.Logger

	now   func() time.Time
	runID func() string
}

// New creates a tracker. fetcher may be nil for daily and read-only use.
func New(cfg *config.Config, st store.Store, fetcher Fetcher, metrics *monitoring.Metrics, logger *monitoring.Logger) *Tracker {
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if logger == nil {
		logger = monitoring.Discard()
	}
	return &Tracker{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		runID:   func() string { return uuid.NewString() },
	}
}

func (t *Tracker) today() string {
	return t.cfg.Today(t.now())
}

func (t *Tracker) vendors() types.VendorSet {
	return t.cfg.VendorSet()
}

func (t *Tracker) scoreTrigger() history.ScoreDelta {
	return history.ScoreDelta{
		Threshold: t.cfg.SignificanceThreshold(),
		Vendors:   t.vendors(),
		Labels:    t.cfg.Labels(),
	}
}

func (t *Tracker) load(ctx context.Context, name string, required bool) ([]byte, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	if required {
		data, err = store.LoadRequired(ctx, t.store, name)
	} else {
		data, err = store.LoadOptional(ctx, t.store, name)
	}
	if err != nil {
		return nil, err
	}
	t.logger.StoreLogger("load", name, len(data), time.Since(start))
	return data, nil
}

func (t *Tracker) save(ctx context.Context, docs ...store.Document) error {
	start := time.Now()
	if err := store.SaveAll(ctx, t.store, docs...); err != nil {
		return err
	}
	for _, doc := range docs {
		t.logger.StoreLogger("save", doc.Name, len(doc.Data), time.Since(start))
	}
	return nil
}

func (t *Tracker) loadComparison(ctx context.Context) (*analysis.Comparison, analysis.ScoreResult, error) {
	data, err := t.load(ctx, types.DocComparison, true)
	if err != nil {
		return nil, nil, err
	}
	comparison, err := analysis.ParseComparison(data, t.vendors())
	if err != nil {
		return nil, nil, err
	}
	scores, err := analysis.ComputeScores(comparison.Matrix, t.vendors())
	if err != nil {
		return nil, nil, err
	}
	return comparison, scores, nil
}

func (t *Tracker) loadHistory(ctx context.Context, required bool) (*history.History, error) {
	data, err := t.load(ctx, types.DocHistory, required)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &history.History{}, nil
	}
	return history.Parse(data)
}

func (t *Tracker) finish(mode, runID string, changeCount, failures int, appended bool, scores analysis.ScoreResult, start time.Time) {
	overalls := scores.Overalls()
	duration := time.Since(start)
	t.metrics.SetScores(overalls)
	t.metrics.ObserveRun(mode, duration)
	t.logger.RunLogger(mode, runID, changeCount, failures, appended, overalls, duration)
}

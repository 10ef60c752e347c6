package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/adapters"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/analysis"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/ci"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/config"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/resilience"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/server"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/store"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/tracker"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		apperrors.LogError(slog.Default(), apperrors.ToAppError(err))
		os.Exit(apperrors.ExitCode(err))
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "tracker",
		Usage:     "track competitor ServiceNow connector documentation and feature scores",
		Writer:    stdout,
		ErrWriter: stderr,
		// Errors carry their own exit codes, main decides how to exit.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file; must exist when given explicitly",
				Value:   config.DefaultConfigFile,
				EnvVars: []string{"COMPETE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "weekly",
				Usage:  "fetch every watched page, record changes and append a snapshot when something changed",
				Action: weeklyAction,
			},
			{
				Name:   "daily",
				Usage:  "recompute scores and append today's snapshot",
				Action: dailyAction,
			},
			{
				Name:  "scores",
				Usage: "print the current scores without writing anything",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print the full score report as JSON"},
				},
				Action: scoresAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the read-only dashboard and JSON API",
				Action: serveAction,
			},
		},
	}
}

// runtime holds what every command needs
type runtime struct {
	cfg     *config.Config
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
	store   store.Store
	adapter *adapters.DocsAdapter
	tracker *tracker.Tracker
}

func setup(c *cli.Context, withFetcher bool) (*runtime, error) {
	cfg, err := config.Load(c.String("config"), c.IsSet("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger := monitoring.NewLoggerWithOptions(c.App.ErrWriter, monitoring.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger.Logger)
	metrics := monitoring.NewMetrics()

	st, err := store.Open(c.Context, cfg.Store)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics, store: st}

	var fetcher tracker.Fetcher
	if withFetcher {
		pool := resilience.NewClientPool(resilience.PoolConfig{RequestTimeout: cfg.FetchTimeout()}, nil)
		rt.adapter = adapters.NewDocsAdapter(adapters.DocsOptions{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      cfg.FetchTimeout(),
			ContentMode:  cfg.Fetch.ContentMode,
			RatePerHost:  cfg.Fetch.RatePerHost,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			Breaker:      cfg.BreakerConfig(),
		}, pool, metrics, logger)
		fetcher = rt.adapter
	}

	rt.tracker = tracker.New(cfg, st, fetcher, metrics, logger)
	logger.Debug("Tracker configured",
		"store", cfg.Store.Driver,
		"vendors", len(cfg.Vendors),
		"urls", len(cfg.Watchlist()),
		"timezone", cfg.Timezone,
	)
	return rt, nil
}

func (rt *runtime) close() {
	if rt.adapter != nil {
		rt.logger.Debug("Fetch pool closing",
			"pool", rt.adapter.GetPoolStats(),
			"breakers", rt.adapter.BreakerStates(),
		)
		apperrors.SafeClose(rt.adapter, "docs adapter")
	}
	apperrors.SafeClose(rt.store, "document store")
	if path := rt.cfg.MetricsTextfile; path != "" {
		if err := rt.metrics.WriteTextfile(path); err != nil {
			rt.logger.Warn("Failed to write metrics textfile", "path", path, "error", err)
		}
	}
}

func weeklyAction(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.tracker.WeeklyCheck(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	labels := rt.cfg.Labels()
	if report.Changed() {
		fmt.Fprintf(w, "Detected %d documentation change(s):\n", len(report.Events))
		for _, e := range report.Events {
			fmt.Fprintf(w, "  - %s: %s (%s)\n", labelOf(labels, e.Platform), e.URL, e.Description)
		}
		fmt.Fprintf(w, "Changes by vendor: %s\n", vendorCounts(rt.cfg.VendorSet(), labels, changes.CountByVendor(report.Events)))
	} else {
		fmt.Fprintln(w, "No documentation changes detected")
	}
	if report.Baselines > 0 {
		fmt.Fprintf(w, "Recorded baseline for %d page(s)\n", report.Baselines)
	}
	if len(report.Failures) > 0 {
		fmt.Fprintf(w, "%d page(s) could not be fetched:\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  - %s: %s (%s)\n", labelOf(labels, f.Platform), f.URL, f.Error)
		}
	}
	if report.Changed() && !report.SnapshotAppended {
		fmt.Fprintf(w, "Snapshot for %s already present, not appended\n", report.Date)
	}
	printScores(w, rt.cfg, report.Scores)

	return ci.WriteChangesDetected(rt.cfg.GitHubOutput, report.Changed())
}

func dailyAction(c *cli.Context) error {
	rt, err := setup(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.tracker.DailyUpdate(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if report.AlreadyCurrent {
		fmt.Fprintf(w, "History already has a snapshot for %s, nothing to do\n", report.Date)
		return nil
	}
	fmt.Fprintf(w, "Appended snapshot for %s\n", report.Date)
	if report.ChangeLogged {
		fmt.Fprintln(w, report.Description)
	}
	printScores(w, rt.cfg, report.Scores)
	return nil
}

func scoresAction(c *cli.Context) error {
	rt, err := setup(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.tracker.CurrentScores(c.Context)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		data, err := encoding.MarshalDocument(report)
		if err != nil {
			return apperrors.NewInternalError("encode score report", err)
		}
		_, err = c.App.Writer.Write(data)
		return err
	}

	fmt.Fprintf(c.App.Writer, "Comparison version %s, last updated %s\n", report.Version, report.LastUpdated)
	printScores(c.App.Writer, rt.cfg, report.Scores)
	return nil
}

func serveAction(c *cli.Context) error {
	rt, err := setup(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	srv, err := server.New(server.Options{
		Port:              rt.cfg.Server.Port,
		AllowedOrigins:    rt.cfg.Server.AllowedOrigins,
		CacheTTL:          rt.cfg.CacheTTL(),
		RequestsPerMinute: rt.cfg.Server.RequestsPerMinute,
	}, rt.tracker, rt.metrics, rt.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func printScores(w io.Writer, cfg *config.Config, scores analysis.ScoreResult) {
	labels := cfg.Labels()
	vendors := cfg.VendorSet()
	ranked := analysis.Standings(scores, vendors)

	fmt.Fprintln(w, "Overall scores:")
	for _, s := range ranked {
		fmt.Fprintf(w, "  %d. %-12s %5.1f%%\n", s.Rank, labelOf(labels, s.Vendor), s.Overall)
	}

	if len(vendors) == 0 {
		return
	}
	var categories []string
	for key := range scores[vendors[0]].ByCategory {
		categories = append(categories, key)
	}
	if len(categories) == 0 {
		return
	}
	sort.Strings(categories)

	fmt.Fprintln(w, "By category:")
	for _, key := range categories {
		parts := make([]string, 0, len(vendors))
		for _, v := range vendors {
			parts = append(parts, fmt.Sprintf("%s %.1f", labelOf(labels, v), scores[v].ByCategory[key]))
		}
		fmt.Fprintf(w, "  %-24s %s\n", key, strings.Join(parts, ", "))
	}
}

func vendorCounts(vendors types.VendorSet, labels map[types.Vendor]string, counts map[types.Vendor]int) string {
	parts := make([]string, 0, len(vendors))
	for _, v := range vendors {
		if n := counts[v]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", labelOf(labels, v), n))
		}
	}
	return strings.Join(parts, ", ")
}

func labelOf(labels map[types.Vendor]string, v types.Vendor) string {
	if l, ok := labels[v]; ok && l != "" {
		return l
	}
	return string(v)
}

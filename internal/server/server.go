package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/cache"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/history"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/tracker"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultStateLimit = 10
	maxStateLimit     = 100
	shutdownTimeout   = 30 * time.Second
)

// Source is the read side of the tracker that the view renders
type Source interface {
	CurrentScores(ctx context.Context) (*tracker.ScoreReport, error)
	History(ctx context.Context) (*history.History, error)
	UpdateLog(ctx context.Context) (*tracker.UpdateLog, error)
}

// Options configures the HTTP view
type Options struct {
	Port              string
	AllowedOrigins    []string
	CacheTTL          time.Duration
	RequestsPerMinute int
}

// Server serves the tracker documents read-only
type Server struct {
	opts      Options
	source    Source
	metrics   *monitoring.Metrics
	logger    *monitoring.Logger
	cache     *cache.Cache
	limiter   *ipLimiter
	dashboard *template.Template
	router    *gin.Engine
	started   time.Time
}

// New builds the router. Origins must be "*" or carry an http(s) scheme.
func New(opts Options, source Source, metrics *monitoring.Metrics, logger *monitoring.Logger) (*Server, error) {
	corsConfig, err := buildCORSConfig(opts.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	}).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, apperrors.NewInternalError("failed to parse dashboard template", err)
	}

	s := &Server{
		opts:      opts,
		source:    source,
		metrics:   metrics,
		logger:    logger,
		cache:     cache.NewCache(opts.CacheTTL),
		dashboard: tmpl,
		started:   time.Now(),
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = newIPLimiter(opts.RequestsPerMinute)
	}

	s.router = s.setupRouter(corsConfig)
	return s, nil
}

func buildCORSConfig(origins []string) (cors.Config, error) {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Accept", "Content-Type", "Cache-Control"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			return cfg, nil
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return cors.Config{}, apperrors.NewConfigurationError(
				fmt.Sprintf("allowed origin %q must start with http:// or https://", origin), nil)
		}
		cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg, nil
}

func (s *Server) setupRouter(corsConfig cors.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(securityHeaders())
	r.Use(cors.New(corsConfig))
	if s.limiter != nil {
		r.Use(s.limiter.middleware())
	}
	r.Use(compression(gzip.DefaultCompression, "/metrics"))
	r.Use(s.cache.Middleware("/api/", s.metrics))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	r.GET("/", s.handleDashboard)
	r.GET(apiDocsPrefix+"*any", apiDocsHandler())

	api := r.Group("/api")
	api.GET("/scores", s.handleScores)
	api.GET("/standings", s.handleStandings)
	api.GET("/history", s.handleHistory)
	api.GET("/state", s.handleState)

	return r
}

// Router exposes the engine for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.opts.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.cache.StartCleanup(ctx, time.Minute)
	if s.limiter != nil {
		go s.sweepLimiter(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "port", s.opts.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return apperrors.NewConfigurationError("server failed to start", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return apperrors.NewInternalError("server forced to shutdown", err)
	}
	s.logger.Info("Server exited")
	return nil
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.sweep(time.Hour); n > 0 {
				s.logger.Debug("Forgot idle clients", "count", n)
			}
		}
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, gin.H{
		"error":    appErr.Msg,
		"category": appErr.Category,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"cache":     s.cache.Stats(),
		"metrics":   s.metrics.GetStats(),
	})
}

func (s *Server) handleScores(c *gin.Context) {
	report, err := s.source.CurrentScores(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleStandings(c *gin.Context) {
	report, err := s.source.CurrentScores(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	type standing struct {
		Rank    int          `json:"rank"`
		Vendor  types.Vendor `json:"vendor"`
		Label   string       `json:"label"`
		Overall float64      `json:"overall"`
	}
	out := make([]standing, 0, len(report.Standings))
	for _, st := range report.Standings {
		out = append(out, standing{
			Rank:    st.Rank,
			Vendor:  st.Vendor,
			Label:   labelFor(report.Labels, st.Vendor),
			Overall: st.Overall,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"lastUpdated": report.LastUpdated,
		"standings":   out,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	h, err := s.source.History(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleState(c *gin.Context) {
	limit := defaultStateLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStateLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("limit must be an integer between 1 and %d", maxStateLimit),
			})
			return
		}
		limit = n
	}

	log, err := s.source.UpdateLog(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	updates := log.RecentUpdates(limit)
	if updates == nil {
		updates = []tracker.UpdateEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"lastCheck":          log.LastCheck,
		"documentationState": log.DocumentationState,
		"updates":            updates,
	})
}

type dashboardRow struct {
	Rank       int
	Label      string
	Overall    float64
	Categories map[string]float64
}

type dashboardData struct {
	Nonce       string
	Version     string
	LastUpdated string
	Categories  []string
	Rows        []dashboardRow
	ChangeLog   []history.ChangeLogEntry
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	report, err := s.source.CurrentScores(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	data := dashboardData{
		Nonce:       nonceFrom(c),
		Version:     report.Version,
		LastUpdated: report.LastUpdated,
	}
	for _, st := range report.Standings {
		data.Rows = append(data.Rows, dashboardRow{
			Rank:       st.Rank,
			Label:      labelFor(report.Labels, st.Vendor),
			Overall:    st.Overall,
			Categories: report.Percentages[st.Vendor],
		})
	}
	if len(data.Rows) > 0 {
		for key := range data.Rows[0].Categories {
			data.Categories = append(data.Categories, key)
		}
		sort.Strings(data.Categories)
	}

	// The dashboard still renders scores when history has not been written yet.
	if h, err := s.source.History(ctx); err == nil {
		data.ChangeLog = recentChangeLog(h, 10)
	} else if !apperrors.IsCategory(err, apperrors.CategoryMissingDocument) {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := s.dashboard.Execute(&buf, data); err != nil {
		s.fail(c, apperrors.NewInternalError("failed to render dashboard", err))
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func recentChangeLog(h *history.History, n int) []history.ChangeLogEntry {
	out := make([]history.ChangeLogEntry, 0, n)
	for i := len(h.ChangeLog) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.ChangeLog[i])
	}
	return out
}

func labelFor(labels map[types.Vendor]string, v types.Vendor) string {
	if l, ok := labels[v]; ok && l != "" {
		return l
	}
	return string(v)
}

package adapters

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/resilience"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

// Content modes decide what bytes are hashed
const (
	ContentRaw  = "raw"
	ContentText = "text"
)

const unknownLastModified = "unknown"

// DefaultMaxBodyBytes caps a single documentation page
const DefaultMaxBodyBytes = 16 << 20

// DocsOptions configures the documentation fetcher
type DocsOptions struct {
	UserAgent   string
	Timeout     time.Duration
	ContentMode string
	// RatePerHost is requests per second against one host. Zero disables pacing.
	RatePerHost float64
	// MaxBodyBytes is the largest page accepted. Larger pages fail the fetch.
	MaxBodyBytes int64
	Breaker      resilience.BreakerConfig
}

// DocsAdapter fetches documentation pages and fingerprints them
type DocsAdapter struct {
	opts     DocsOptions
	pool     *resilience.ClientPool
	breakers *resilience.BreakerRegistry
	policy   *bluemonday.Policy
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDocsAdapter creates a fetcher. metrics and logger may be nil.
func NewDocsAdapter(opts DocsOptions, pool *resilience.ClientPool, metrics *monitoring.Metrics, logger *monitoring.Logger) *DocsAdapter {
	if opts.ContentMode == "" {
		opts.ContentMode = ContentRaw
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if pool == nil {
		pool = resilience.NewClientPool(resilience.PoolConfig{RequestTimeout: opts.Timeout}, nil)
	}
	if logger == nil {
		logger = monitoring.Discard()
	}

	return &DocsAdapter{
		opts:     opts,
		pool:     pool,
		breakers: resilience.NewBreakerRegistry(opts.Breaker),
		policy:   bluemonday.StrictPolicy(),
		metrics:  metrics,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// FetchAll fingerprints every target in order. One URL's failure never stops the rest.
func (d *DocsAdapter) FetchAll(ctx context.Context, targets []changes.Target) changes.State {
	state := make(changes.State)
	for _, target := range targets {
		state.Record(target.Vendor, target.URL, d.Fetch(ctx, target.Vendor, target.URL))
	}
	return state
}

// Fetch makes one attempt at a URL. Failures are returned as an error fingerprint.
func (d *DocsAdapter) Fetch(ctx context.Context, vendor types.Vendor, rawURL string) changes.Fingerprint {
	start := time.Now()

	var fp changes.Fingerprint
	breaker := d.breakers.For(string(vendor))
	opened, err := breaker.Observe(func() error {
		var fetchErr error
		fp, fetchErr = d.fetch(ctx, rawURL)
		return fetchErr
	})

	duration := time.Since(start)
	if opened {
		d.logger.Warn("Vendor docs site failing repeatedly", "vendor", vendor, "failures", breaker.Failures())
		if d.metrics != nil {
			d.metrics.RecordBreakerOpen(string(vendor))
		}
	}
	if err != nil {
		fp = changes.Fingerprint{Status: changes.StatusError, Error: d.classify(rawURL, err).Error()}
		d.logger.FetchLogger(string(vendor), rawURL, fp.Status, fp.Error, duration)
	} else {
		d.logger.FetchLogger(string(vendor), rawURL, fp.Status, fmt.Sprintf("%d chars", fp.Size), duration)
	}

	if d.metrics != nil {
		d.metrics.RecordFetch(string(vendor), fp.Status, duration)
	}
	return fp
}

func (d *DocsAdapter) fetch(ctx context.Context, rawURL string) (changes.Fingerprint, error) {
	if err := d.wait(ctx, rawURL); err != nil {
		return changes.Fingerprint{}, err
	}

	resp, release, err := d.pool.Do(ctx, rawURL, map[string]string{"User-Agent": d.opts.UserAgent})
	if err != nil {
		return changes.Fingerprint{}, err
	}
	defer release()
	defer resp.Body.Close()

	if err := resilience.CheckStatus(resp, rawURL); err != nil {
		return changes.Fingerprint{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.opts.MaxBodyBytes+1))
	if err != nil {
		return changes.Fingerprint{}, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > d.opts.MaxBodyBytes {
		return changes.Fingerprint{}, fmt.Errorf("body exceeds %d bytes", d.opts.MaxBodyBytes)
	}

	lastModified := resp.Header.Get("Last-Modified")
	if lastModified == "" {
		lastModified = unknownLastModified
	}

	return changes.Fingerprint{
		Status:       changes.StatusSuccess,
		Hash:         d.hash(body),
		LastModified: lastModified,
		Size:         utf8.RuneCount(body),
	}, nil
}

// hash is the MD5 hex digest of the page, or of its visible text in text mode
func (d *DocsAdapter) hash(body []byte) string {
	content := body
	if d.opts.ContentMode == ContentText {
		content = []byte(d.Text(body))
	}
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// Text strips markup and collapses whitespace so layout-only edits do not register
func (d *DocsAdapter) Text(body []byte) string {
	return strings.Join(strings.Fields(string(d.policy.SanitizeBytes(body))), " ")
}

func (d *DocsAdapter) wait(ctx context.Context, rawURL string) error {
	if d.opts.RatePerHost <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	d.mu.Lock()
	limiter, ok := d.limiters[u.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.opts.RatePerHost), 1)
		d.limiters[u.Host] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

func (d *DocsAdapter) classify(rawURL string, err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(rawURL, d.pool.Timeout(), err)
	}
	return apperrors.NewFetchError(rawURL, err)
}

// BreakerStates reports the breaker state per vendor
func (d *DocsAdapter) BreakerStates() map[string]string {
	return d.breakers.States()
}

// GetPoolStats returns connection pool statistics
func (d *DocsAdapter) GetPoolStats() map[string]interface{} {
	return d.pool.GetStats()
}

// Close releases pooled connections
func (d *DocsAdapter) Close() error {
	return d.pool.Close()
}

package adapters

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/resilience"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

const userAgent = "ServiceNow-Comparison-Bot/1.0"

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newDocsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Last-Modified", "Mon, 05 Oct 2026 09:00:00 GMT")
		_, _ = w.Write([]byte("<p>héllo</p>"))
	})
	mux.HandleFunc("/no-header", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAdapter(opts DocsOptions) *DocsAdapter {
	opts.UserAgent = userAgent
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	return NewDocsAdapter(opts, nil, monitoring.NewMetrics(), monitoring.Discard())
}

func TestDocsAdapter_Fetch(t *testing.T) {
	srv := newDocsServer(t)
	adapter := newAdapter(DocsOptions{})
	defer adapter.Close()

	tests := []struct {
		name         string
		path         string
		wantStatus   string
		wantHash     string
		wantModified string
		wantSize     int
		wantErr      string
	}{
		{
			name:         "success with last modified",
			path:         "/ok",
			wantStatus:   changes.StatusSuccess,
			wantHash:     md5Hex("<p>héllo</p>"),
			wantModified: "Mon, 05 Oct 2026 09:00:00 GMT",
			wantSize:     12,
		},
		{
			name:         "missing last modified",
			path:         "/no-header",
			wantStatus:   changes.StatusSuccess,
			wantHash:     md5Hex("plain"),
			wantModified: "unknown",
			wantSize:     5,
		},
		{
			name:       "http 404",
			path:       "/missing",
			wantStatus: changes.StatusError,
			wantErr:    "404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := adapter.Fetch(context.Background(), types.VendorGlean, srv.URL+tt.path)

			assert.Equal(t, tt.wantStatus, fp.Status)
			if tt.wantErr != "" {
				assert.Contains(t, fp.Error, tt.wantErr)
				assert.Empty(t, fp.Hash)
				return
			}
			assert.Equal(t, tt.wantHash, fp.Hash)
			assert.Equal(t, tt.wantModified, fp.LastModified)
			assert.Equal(t, tt.wantSize, fp.Size)
			assert.Empty(t, fp.Error)
		})
	}
}

func TestDocsAdapter_Timeout(t *testing.T) {
	srv := newDocsServer(t)
	adapter := newAdapter(DocsOptions{Timeout: 50 * time.Millisecond})
	defer adapter.Close()

	fp := adapter.Fetch(context.Background(), types.VendorGoogle, srv.URL+"/slow")

	assert.Equal(t, changes.StatusError, fp.Status)
	assert.Contains(t, fp.Error, "timed out")
}

func TestDocsAdapter_TextMode(t *testing.T) {
	adapter := newAdapter(DocsOptions{ContentMode: ContentText})

	assert.Equal(t, "Setup the connector", adapter.Text([]byte("<div class=\"a\">\n  <h1>Setup</h1> the <b>connector</b>\n</div>")))
	assert.Equal(t,
		adapter.hash([]byte("<div><p>Same   text</p></div>")),
		adapter.hash([]byte("<section>Same text</section>")),
	)
}

func TestDocsAdapter_FetchAllContinuesAfterFailures(t *testing.T) {
	srv := newDocsServer(t)
	adapter := newAdapter(DocsOptions{
		Breaker: resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour},
	})
	defer adapter.Close()

	targets := []changes.Target{
		{Vendor: types.VendorMicrosoft, URL: srv.URL + "/down"},
		{Vendor: types.VendorMicrosoft, URL: srv.URL + "/ok"},
		{Vendor: types.VendorGlean, URL: srv.URL + "/no-header"},
	}

	state := adapter.FetchAll(context.Background(), targets)

	down, ok := state.Lookup(types.VendorMicrosoft, srv.URL+"/down")
	require.True(t, ok)
	assert.Contains(t, down.Error, "503")

	// an open breaker still lets the next URL of the same vendor through
	next, ok := state.Lookup(types.VendorMicrosoft, srv.URL+"/ok")
	require.True(t, ok)
	assert.True(t, next.OK())
	assert.Equal(t, md5Hex("<p>héllo</p>"), next.Hash)

	glean, ok := state.Lookup(types.VendorGlean, srv.URL+"/no-header")
	require.True(t, ok)
	assert.True(t, glean.OK())

	assert.Equal(t, map[string]string{"glean": "closed", "microsoft": "closed"}, adapter.BreakerStates())
}

func TestDocsAdapter_EveryURLAttemptedAfterBreakerOpens(t *testing.T) {
	var hits sync.Map
	mux := http.NewServeMux()
	for _, path := range []string{"/a", "/b", "/c"} {
		path := path
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			hits.Store(path, true)
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		hits.Store("/good", true)
		_, _ = w.Write([]byte("connector docs"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	metrics := monitoring.NewMetrics()
	adapter := NewDocsAdapter(DocsOptions{
		UserAgent: userAgent,
		Timeout:   time.Second,
		Breaker:   resilience.BreakerConfig{FailureThreshold: 3, Cooldown: time.Hour},
	}, nil, metrics, monitoring.Discard())
	defer adapter.Close()

	var targets []changes.Target
	for _, path := range []string{"/a", "/b", "/c", "/good"} {
		targets = append(targets, changes.Target{Vendor: types.VendorGlean, URL: srv.URL + path})
	}

	state := adapter.FetchAll(context.Background(), targets)

	for _, path := range []string{"/a", "/b", "/c", "/good"} {
		_, hit := hits.Load(path)
		assert.True(t, hit, "%s was not requested", path)
	}
	for _, path := range []string{"/a", "/b", "/c"} {
		fp, ok := state.Lookup(types.VendorGlean, srv.URL+path)
		require.True(t, ok)
		assert.Equal(t, changes.StatusError, fp.Status)
		assert.Contains(t, fp.Error, "503")
	}

	good, ok := state.Lookup(types.VendorGlean, srv.URL+"/good")
	require.True(t, ok)
	assert.Equal(t, changes.StatusSuccess, good.Status)
	assert.Equal(t, md5Hex("connector docs"), good.Hash)

	assert.Equal(t, int64(4), metrics.GetStats()["fetch_count"])
	assert.Equal(t, map[string]string{"glean": "closed"}, adapter.BreakerStates())

	path := filepath.Join(t.TempDir(), "tracker.prom")
	require.NoError(t, metrics.WriteTextfile(path))
	exported, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(exported), `compete_circuit_breaker_opens_total{vendor="glean"} 1`)
}

func TestDocsAdapter_OversizedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get("n"))
		assert.NoError(t, err)
		_, _ = w.Write([]byte(strings.Repeat("x", n)))
	}))
	defer srv.Close()

	adapter := newAdapter(DocsOptions{MaxBodyBytes: 4})
	defer adapter.Close()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", 3, false},
		{"at limit", 4, false},
		{"over limit", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := adapter.Fetch(context.Background(), types.VendorGlean, srv.URL+"/page?n="+strconv.Itoa(tt.size))
			if tt.wantErr {
				assert.Equal(t, changes.StatusError, fp.Status)
				assert.Contains(t, fp.Error, "body exceeds 4 bytes")
				assert.Empty(t, fp.Hash)
				return
			}
			require.True(t, fp.OK(), fp.Error)
			assert.Equal(t, md5Hex(strings.Repeat("x", tt.size)), fp.Hash)
		})
	}
}

func TestDocsAdapter_RateLimitedPerHost(t *testing.T) {
	srv := newDocsServer(t)
	adapter := newAdapter(DocsOptions{RatePerHost: 20})
	defer adapter.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		fp := adapter.Fetch(context.Background(), types.VendorGlean, srv.URL+"/no-header")
		require.True(t, fp.OK())
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestDocsAdapter_CancelledContext(t *testing.T) {
	srv := newDocsServer(t)
	adapter := newAdapter(DocsOptions{RatePerHost: 1})
	defer adapter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fp := adapter.Fetch(ctx, types.VendorGlean, srv.URL+"/ok")
	assert.Equal(t, changes.StatusError, fp.Status)
	assert.NotEmpty(t, fp.Error)
}

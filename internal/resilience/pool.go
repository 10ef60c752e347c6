package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// PoolConfig holds transport settings for the documentation fetcher
type PoolConfig struct {
	MaxIdle         int
	MaxConnsPerHost int
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
}

// ClientPool shares one keep-alive transport across fetches and bounds in-flight requests
type ClientPool struct {
	config    PoolConfig
	transport http.RoundTripper
	client    *http.Client
	slots     chan struct{}

	mu       sync.Mutex
	inFlight int
	served   int64
	closed   bool
}

// NewClientPool creates a pool. A nil transport uses a tuned *http.Transport.
func NewClientPool(config PoolConfig, transport http.RoundTripper) *ClientPool {
	if config.MaxIdle <= 0 {
		config.MaxIdle = 10
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = 4
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 90 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}

	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          config.MaxIdle,
			MaxConnsPerHost:       config.MaxConnsPerHost,
			MaxIdleConnsPerHost:   config.MaxConnsPerHost,
			IdleConnTimeout:       config.IdleTimeout,
			TLSHandshakeTimeout:   config.RequestTimeout,
			ResponseHeaderTimeout: config.RequestTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return &ClientPool{
		config:    config,
		transport: transport,
		client:    &http.Client{Transport: transport},
		slots:     make(chan struct{}, config.MaxConnsPerHost),
	}
}

// Timeout is the bound applied to every request
func (p *ClientPool) Timeout() time.Duration {
	return p.config.RequestTimeout
}

// Do sends a GET with the pool's timeout. The returned cancel func must be called
// once the body has been read.
func (p *ClientPool) Do(ctx context.Context, url string, headers map[string]string) (*http.Response, context.CancelFunc, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, fmt.Errorf("client pool closed")
	}
	p.mu.Unlock()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	p.track(1)

	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	release := func() {
		cancel()
		p.track(-1)
		<-p.slots
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		release()
		return nil, nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		slog.Debug("Request failed", "url", url, "error", err, "duration_ms", time.Since(start).Milliseconds())
		release()
		return nil, nil, err
	}

	slog.Debug("Request completed", "url", url, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp, release, nil
}

func (p *ClientPool) track(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight += delta
	if delta > 0 {
		p.served++
	}
}

// GetStats returns pool statistics
func (p *ClientPool) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]interface{}{
		"in_flight":          p.inFlight,
		"requests_served":    p.served,
		"max_idle":           p.config.MaxIdle,
		"max_conns_per_host": p.config.MaxConnsPerHost,
		"request_timeout_ms": p.config.RequestTimeout.Milliseconds(),
	}
}

// Close drops idle keep-alive connections
func (p *ClientPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if t, ok := p.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	slog.Debug("Client pool closed")
	return nil
}

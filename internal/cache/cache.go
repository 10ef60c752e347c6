package cache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
)

// Item is a cached response body with its expiry
type Item struct {
	Data        []byte
	ContentType string
	ExpiresAt   time.Time
}

// IsExpired checks if the item has expired
func (i *Item) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Cache is a thread-safe TTL cache for rendered responses of the read-only view.
// The documents behind the view change at most once per run, so short TTLs are enough.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a cache. A zero TTL disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]*Item),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Enabled reports whether responses are cached at all
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

// StartCleanup removes expired items every interval until ctx is done
func (c *Cache) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.purge()
			}
		}
	}()
}

func (c *Cache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// Get retrieves an unexpired item
func (c *Cache) Get(key string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || item.IsExpired(c.now()) {
		return nil, false
	}
	return item, true
}

// Set stores a response body
func (c *Cache) Set(key string, data []byte, contentType string) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &Item{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		ExpiresAt:   c.now().Add(c.ttl),
	}
}

// Clear removes all items
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item)
}

// Size returns the number of items, expired or not
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	expired := 0
	for _, item := range c.items {
		if item.IsExpired(now) {
			expired++
		}
	}

	return map[string]interface{}{
		"total_items":   len(c.items),
		"expired_items": expired,
		"active_items":  len(c.items) - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware serves GET requests under prefix from the cache and stores successful responses
func (c *Cache) Middleware(prefix string, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !c.Enabled() || ctx.Request.Method != http.MethodGet || !strings.HasPrefix(ctx.Request.URL.Path, prefix) {
			ctx.Next()
			return
		}

		key := ctx.Request.URL.RequestURI()
		if item, found := c.Get(key); found {
			metrics.IncrementCacheHit()
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, item.ContentType, item.Data)
			ctx.Abort()
			return
		}

		metrics.IncrementCacheMiss()
		ctx.Header("X-Cache", "MISS")

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		if wrapper.Status() == http.StatusOK {
			c.Set(key, wrapper.body.Bytes(), wrapper.Header().Get("Content-Type"))
			slog.Debug("Response cached", "key", key)
		}
	}
}

// responseWriter captures the body written by downstream handlers
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

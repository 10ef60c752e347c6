package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/monitoring"
)

func TestCache_Expiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("/api/scores", []byte(`{}`), "application/json")
	item, ok := c.Get("/api/scores")
	require.True(t, ok)
	assert.Equal(t, "application/json", item.ContentType)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("/api/scores")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats()["expired_items"])

	c.purge()
	assert.Equal(t, 0, c.Size())
}

func TestCache_DisabledWithZeroTTL(t *testing.T) {
	c := NewCache(0)
	c.Set("k", []byte("v"), "text/plain")
	assert.Equal(t, 0, c.Size())
	assert.False(t, c.Enabled())
}

func TestCache_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics()
	c := NewCache(time.Minute)

	calls := 0
	router := gin.New()
	router.Use(c.Middleware("/api/", metrics))
	router.GET("/api/scores", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	router.GET("/api/broken", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	router.GET("/health", func(ctx *gin.Context) {
		calls++
		ctx.String(http.StatusOK, "ok")
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	first := get("/api/scores")
	second := get("/api/scores")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls": 1}`, second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")

	get("/api/broken")
	get("/api/broken")
	get("/health")
	get("/health")
	assert.Equal(t, 5, calls)

	stats := metrics.GetStats()
	assert.EqualValues(t, 1, stats["cache_hits"])
}

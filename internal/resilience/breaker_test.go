package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func unavailable() error {
	return &HTTPError{StatusCode: 503, Status: "503 Service Unavailable", URL: "https://docs.example"}
}

func newTestBreaker(clock *fakeClock) *Breaker {
	b := NewBreaker("glean", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute, SuccessThreshold: 1})
	b.now = clock.now
	return b
}

func succeed() error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock)

	opened, err := b.Observe(unavailable)
	assert.Error(t, err)
	assert.False(t, opened)
	assert.Equal(t, StateClosed, b.State())

	opened, err = b.Observe(unavailable)
	assert.Error(t, err)
	assert.True(t, opened)
	assert.Equal(t, StateOpen, b.State())

	opened, err = b.Observe(unavailable)
	assert.Error(t, err)
	assert.False(t, opened, "already open")
}

func TestBreaker_OpenStillRunsCalls(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock)
	_, _ = b.Observe(unavailable)
	_, _ = b.Observe(unavailable)
	require.Equal(t, StateOpen, b.State())

	calls := 0
	opened, err := b.Observe(func() error { calls++; return nil })
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock)
	_, _ = b.Observe(unavailable)
	_, _ = b.Observe(unavailable)
	require.Equal(t, StateOpen, b.State())

	clock.t = clock.t.Add(2 * time.Minute)
	_, err := b.Observe(succeed)
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock)
	_, _ = b.Observe(unavailable)
	_, _ = b.Observe(unavailable)

	clock.t = clock.t.Add(2 * time.Minute)
	opened, err := b.Observe(unavailable)
	assert.Error(t, err)
	assert.True(t, opened)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_NonTransientErrorsDoNotTrip(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newTestBreaker(clock)

	notFound := func() error { return &HTTPError{StatusCode: 404, Status: "404 Not Found"} }
	for i := 0; i < 5; i++ {
		_, err := b.Observe(notFound)
		assert.Error(t, err)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerRegistry(t *testing.T) {
	r := NewBreakerRegistry(BreakerConfig{FailureThreshold: 1})

	assert.Same(t, r.For("glean"), r.For("glean"))
	assert.NotSame(t, r.For("glean"), r.For("google"))

	_, _ = r.For("google").Observe(unavailable)
	assert.Equal(t, map[string]string{"glean": "closed", "google": "open"}, r.States())
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", unavailable(), true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"403", &HTTPError{StatusCode: 403}, false},
		{"wrapped 502", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 502}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("malformed url"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

package resilience

import (
	"sort"
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // time an open breaker waits before going half-open
	SuccessThreshold int           // successes needed to close again
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return c
}

// Breaker tracks consecutive transient failures per vendor so a run can report a
// docs site that is down. It observes calls and never refuses one: every URL gets
// its single attempt regardless of state.
type Breaker struct {
	name   string
	config BreakerConfig
	trips  func(error) bool
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	nextAttempt time.Time
}

// NewBreaker creates a closed breaker. Only errors for which Transient returns true count as failures.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	return &Breaker{
		name:   name,
		config: config.withDefaults(),
		trips:  Transient,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Observe runs fn and records its outcome. opened is true when this call moved
// the breaker into the open state.
func (b *Breaker) Observe(fn func() error) (opened bool, err error) {
	b.before()
	err = fn()
	return b.after(err), err
}

func (b *Breaker) before() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.nextAttempt) {
		b.state = StateHalfOpen
		b.successes = 0
	}
}

func (b *Breaker) after(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.trips(err) {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.config.FailureThreshold) {
			b.state = StateOpen
			b.nextAttempt = b.now().Add(b.config.Cooldown)
			return true
		}
		return false
	}

	b.failures = 0
	if b.state != StateClosed {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
		}
	}
	return false
}

// State returns the current state of the breaker
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

// BreakerRegistry hands out one breaker per name
type BreakerRegistry struct {
	config BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerRegistry creates a registry whose breakers share config
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// For gets an existing breaker or creates a new one
func (r *BreakerRegistry) For(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, r.config)
	r.breakers[name] = b
	return b
}

// States returns the state of every breaker, sorted by name
func (r *BreakerRegistry) States() map[string]string {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = r.For(name).State().String()
	}
	return out
}

// Package resilience provides circuit breaker, rate limiting, and retry
// patterns for external data source calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures — requests are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows probe requests to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	// the circuit. Default: 5.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in half-open
	// state before closing the circuit. Default: 2.
	SuccessThreshold int

	// Timeout is how long the circuit stays open before the next request
	// is allowed through as a probe. Default: 60s.
	Timeout time.Duration

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// SourceConfigs holds per-source breaker tuning. The flights API trips
// faster and stays open longer than the exchange API because it is the
// flakier and more expensive of the two.
func SourceConfigs() map[string]CircuitBreakerConfig {
	return map[string]CircuitBreakerConfig{
		"flights": {
			FailureThreshold: 3,
			SuccessThreshold: 2,
			Timeout:          120 * time.Second,
		},
		"exchange": {
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          60 * time.Second,
		},
	}
}

// CircuitCounters is an observability snapshot of one breaker.
type CircuitCounters struct {
	State                CircuitState `json:"-"`
	StateName            string       `json:"state"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	TotalRequests        int64        `json:"total_requests"`
	BlockedRequests      int64        `json:"blocked_requests"`
	LastStateChange      time.Time    `json:"last_state_change"`
}

// CircuitBreaker implements the circuit breaker pattern for a single
// external source. All state transitions happen under one mutex so
// concurrent callers observe a single consistent failure count.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu    sync.Mutex
	state CircuitState

	consecutiveFailures  int
	consecutiveSuccesses int
	totalRequests        int64
	blockedRequests      int64
	lastStateChange      time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:            name,
		cfg:             cfg,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
		nowFunc:         time.Now,
	}
}

// Name returns the source name this breaker guards.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow reports whether a request may be attempted. An open circuit
// transitions to half-open once its timeout has elapsed, letting the
// request through as a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.totalRequests++
		return nil
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.lastStateChange) >= cb.cfg.Timeout {
			cb.transition(CircuitHalfOpen)
			cb.consecutiveSuccesses = 0
			cb.totalRequests++
			return nil
		}
		cb.blockedRequests++
		return ErrCircuitOpen
	case CircuitHalfOpen:
		cb.totalRequests++
		return nil
	default:
		return nil
	}
}

// RecordSuccess records a successful request. In half-open state, reaching
// the success threshold closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveSuccesses++
	cb.consecutiveFailures = 0

	if cb.state == CircuitHalfOpen && cb.consecutiveSuccesses >= cb.cfg.SuccessThreshold {
		cb.transition(CircuitClosed)
	}
}

// RecordFailure records a failed request. In closed state, reaching the
// failure threshold opens the circuit; any failure in half-open reopens it.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
}

// Execute runs fn through the circuit breaker, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.Allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return val, err
}

// State returns the current circuit state, accounting for an open circuit
// whose timeout has elapsed (reported as half-open).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.lastStateChange) >= cb.cfg.Timeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Counters returns an observability snapshot.
func (cb *CircuitBreaker) Counters() CircuitCounters {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitCounters{
		State:                cb.state,
		StateName:            cb.state.String(),
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		TotalRequests:        cb.totalRequests,
		BlockedRequests:      cb.blockedRequests,
		LastStateChange:      cb.lastStateChange,
	}
}

// Reset forces the circuit back to closed state with zeroed counters.
// Operator action only; breakers never reset themselves.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.lastStateChange = cb.nowFunc()
	if old != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, old, CircuitClosed)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.lastStateChange = cb.nowFunc()
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// Registry manages circuit breakers for multiple sources. One breaker is
// created per source name at first use and persists for the process
// lifetime.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	configs  map[string]CircuitBreakerConfig
	fallback CircuitBreakerConfig
}

// NewRegistry creates a breaker registry. Sources named in configs get
// their tuned config; everything else gets the fallback.
func NewRegistry(configs map[string]CircuitBreakerConfig, fallback CircuitBreakerConfig) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		configs:  configs,
		fallback: fallback,
	}
}

// Get returns the circuit breaker for the named source, creating one if needed.
func (r *Registry) Get(source string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[source]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if cb, ok = r.breakers[source]; ok {
		return cb
	}
	cfg, ok := r.configs[source]
	if !ok {
		cfg = r.fallback
	}
	cb = NewCircuitBreaker(source, cfg)
	r.breakers[source] = cb
	return cb
}

// Counters returns a snapshot of all breakers by source name.
func (r *Registry) Counters() map[string]CircuitCounters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]CircuitCounters, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Counters()
	}
	return out
}

// ResetAll resets every breaker in the registry.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

package agentcore

import (
	"sync"
	"sync/atomic"
	"time"
)

// BreakerConfig tunes the per-tool failure-rate gate.
type BreakerConfig struct {
	// FailureThreshold is the number of failures within Window after which
	// calls to a tool short-circuit.
	FailureThreshold int `json:"failure_threshold"`
	// Window is the rolling interval failures are counted over. When a
	// tool's window expires its count resets and calls flow again.
	Window time.Duration `json:"window"`
}

// DefaultBreakerConfig returns the default breaker policy.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Window:           2 * time.Minute,
	}
}

// toolBreakerState tracks failures for one tool. Counters are atomic so
// multiple engines sharing a breaker stay correct without locking the
// hot path.
type toolBreakerState struct {
	failures    atomic.Int64
	windowStart atomic.Int64 // unix nanos
}

// CircuitBreaker gates tool execution on recent failure volume. A single
// broken tool would otherwise consume the iteration budget turn after
// turn; once its failures cross the threshold within the window, further
// calls short-circuit to an error result until the window resets.
//
// A breaker may be shared across concurrent runs.
type CircuitBreaker struct {
	cfg   BreakerConfig
	mu    sync.Mutex
	state map[string]*toolBreakerState
	now   func() time.Time
}

// NewCircuitBreaker creates a breaker with the given policy.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultBreakerConfig().Window
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: make(map[string]*toolBreakerState),
		now:   time.Now,
	}
}

func (b *CircuitBreaker) toolState(name string) *toolBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.state[name]
	if !ok {
		st = &toolBreakerState{}
		st.windowStart.Store(b.now().UnixNano())
		b.state[name] = st
	}
	return st
}

// rollover resets the window if it has expired. Compare-and-swap keeps
// concurrent callers from double-resetting.
func (b *CircuitBreaker) rollover(st *toolBreakerState) {
	start := st.windowStart.Load()
	nowNanos := b.now().UnixNano()
	if nowNanos-start < int64(b.cfg.Window) {
		return
	}
	if st.windowStart.CompareAndSwap(start, nowNanos) {
		st.failures.Store(0)
	}
}

// Allow reports whether a call to the named tool may proceed.
func (b *CircuitBreaker) Allow(name string) bool {
	st := b.toolState(name)
	b.rollover(st)
	return st.failures.Load() < int64(b.cfg.FailureThreshold)
}

// RecordFailure counts one failed or timed-out call.
func (b *CircuitBreaker) RecordFailure(name string) {
	st := b.toolState(name)
	b.rollover(st)
	st.failures.Add(1)
}

// RecordSuccess counts one successful call. Success closes a half-open
// path early by clearing the failure count.
func (b *CircuitBreaker) RecordSuccess(name string) {
	st := b.toolState(name)
	st.failures.Store(0)
}

// Failures returns the current in-window failure count for a tool.
func (b *CircuitBreaker) Failures(name string) int {
	st := b.toolState(name)
	b.rollover(st)
	return int(st.failures.Load())
}

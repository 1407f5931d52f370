package collector

import (
	"sync"
	"time"
)

// Breaker states as exposed to metrics and the health endpoint.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// CircuitBreaker guards one upstream source. Three logical states over
// two fields: closed (open=false), open (open=true within the recovery
// window) and half-open (open=true, window elapsed; exactly one probe
// passes).
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	recovery    time.Duration
	failures    int
	open        bool
	lastFailure time.Time
	now         func() time.Time
}

func NewCircuitBreaker(threshold int, recovery time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, recovery: recovery, now: time.Now}
}

// Allow reports whether a request may proceed. In the half-open state
// the granting call re-arms the recovery window, so concurrent callers
// get exactly one probe per window.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().Sub(b.lastFailure) >= b.recovery {
		b.lastFailure = b.now()
		return true
	}
	return false
}

// RecordSuccess closes the breaker from any state.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// RecordFailure counts one failure; at the threshold the breaker opens
// and the recovery window starts.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.threshold {
		b.open = true
	}
}

// State returns the logical state name.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return StateClosed
	}
	if b.now().Sub(b.lastFailure) >= b.recovery {
		return StateHalfOpen
	}
	return StateOpen
}

// BreakerSet is the per-source breaker registry.
type BreakerSet struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	breakers  map[string]*CircuitBreaker
}

func NewBreakerSet(threshold int, recovery time.Duration) *BreakerSet {
	return &BreakerSet{
		threshold: threshold,
		recovery:  recovery,
		breakers:  make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for a source, creating it on first use.
func (s *BreakerSet) Get(source string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[source]
	if !ok {
		b = NewCircuitBreaker(s.threshold, s.recovery)
		s.breakers[source] = b
	}
	return b
}

// BreakerSnapshot is the serialized view of one breaker, persisted so a
// restart does not forget an open breaker mid-recovery.
type BreakerSnapshot struct {
	Failures    int       `json:"failures"`
	Open        bool      `json:"open"`
	LastFailure time.Time `json:"last_failure"`
}

func (b *CircuitBreaker) snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{Failures: b.failures, Open: b.open, LastFailure: b.lastFailure}
}

func (b *CircuitBreaker) restore(s BreakerSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = s.Failures
	b.open = s.Open
	b.lastFailure = s.LastFailure
}

// Export snapshots every breaker for persistence.
func (s *BreakerSet) Export() map[string]BreakerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BreakerSnapshot, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.snapshot()
	}
	return out
}

// Restore loads persisted breaker states, creating breakers as needed.
func (s *BreakerSet) Restore(snapshots map[string]BreakerSnapshot) {
	for name, snap := range snapshots {
		s.Get(name).restore(snap)
	}
}

// States snapshots every known breaker's state for health reporting.
func (s *BreakerSet) States() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}

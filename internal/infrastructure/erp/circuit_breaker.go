package erp

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the endpoint's breaker is rejecting requests
var ErrCircuitOpen = errors.New("erp: circuit breaker open")

// BreakerState is the lifecycle state of a circuit breaker
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// CircuitBreaker trips after a run of consecutive failures and rejects
// requests until a cooldown elapses. The first request after the cooldown
// runs as a probe: success closes the breaker, failure reopens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker. A threshold of zero or less
// disables tripping entirely.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed. In the half-open state only
// a single probe request is admitted at a time.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// RecordSuccess resets the breaker after a successful request
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.state = StateClosed
}

// RecordFailure counts a failed request. A failed half-open probe reopens
// the breaker immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trip()
		return
	}

	b.failures++
	if b.threshold > 0 && b.failures >= b.threshold {
		b.trip()
	}
}

// State returns the current breaker state
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// trip opens the breaker. Caller must hold the lock.
func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probing = false
}

// BreakerSet holds one breaker per delivery endpoint
type BreakerSet struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	breakers  map[string]*CircuitBreaker
}

// NewBreakerSet creates an empty set; breakers are created on first use
func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	return &BreakerSet{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for an endpoint, creating it if needed
func (s *BreakerSet) For(endpoint string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[endpoint]
	if !ok {
		b = NewCircuitBreaker(s.threshold, s.cooldown)
		s.breakers[endpoint] = b
	}
	return b
}

// States returns a snapshot of every endpoint's breaker state
func (s *BreakerSet) States() map[string]BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make(map[string]BreakerState, len(s.breakers))
	for endpoint, b := range s.breakers {
		states[endpoint] = b.State()
	}
	return states
}

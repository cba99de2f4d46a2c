package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"precioverdadero/internal/metrics"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

const defaultHalfOpenMaxCalls = 3

// CircuitBreaker stops calling a failing dependency for a cool-off period.
// After timeout it lets a few probe calls through; enough successes close
// it again, any failure reopens it. The current state is exported as the
// circuit_breaker_state gauge.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	timeout          time.Duration
	halfOpenMaxCalls uint32
	isFailure        func(error) bool

	mu            sync.Mutex
	state         State
	failures      uint32
	openedAt      time.Time
	halfOpenCalls uint32
	probeSuccess  uint32

	logger *logrus.Logger
	now    func() time.Time
}

func NewWithLogger(name string, maxFailures uint32, timeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		timeout:          timeout,
		halfOpenMaxCalls: defaultHalfOpenMaxCalls,
		isFailure:        func(err error) bool { return err != nil },
		state:            StateClosed,
		logger:           logger,
		now:              time.Now,
	}
	cb.report()
	return cb
}

// WithFailurePredicate decides which errors count against the breaker.
// Errors it rejects are returned to the caller without tripping.
func (cb *CircuitBreaker) WithFailurePredicate(fn func(error) bool) *CircuitBreaker {
	cb.isFailure = func(err error) bool { return err != nil && fn(err) }
	return cb
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.admit() {
		return &CircuitBreakerError{Name: cb.name, State: StateOpen}
	}

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.isFailure(err) {
		cb.failedLocked()
	} else {
		cb.succeededLocked()
	}
	return err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expireLocked()
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	default:
		return false
	}
}

// expireLocked moves an open breaker to half-open once the timeout passed.
func (cb *CircuitBreaker) expireLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		cb.moveLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) succeededLocked() {
	switch cb.state {
	case StateHalfOpen:
		cb.probeSuccess++
		if cb.probeSuccess >= cb.halfOpenMaxCalls {
			cb.moveLocked(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) failedLocked() {
	cb.failures++
	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.maxFailures) {
		cb.openedAt = cb.now()
		cb.moveLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) moveLocked(to State) {
	from := cb.state
	cb.state = to
	cb.halfOpenCalls = 0
	cb.probeSuccess = 0
	if to == StateClosed {
		cb.failures = 0
	}
	cb.report()

	entry := cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from":            from.String(),
		"to":              to.String(),
	})
	if to == StateOpen {
		entry.WithField("failures", cb.failures).Warn("Circuit breaker opened")
		return
	}
	entry.Info("Circuit breaker state changed")
}

func (cb *CircuitBreaker) report() {
	metrics.SetGauge(metrics.CircuitBreakerState, float64(cb.state),
		map[string]string{"breaker": cb.name}, "Circuit breaker state (0 closed, 1 open, 2 half-open)")
}

// GetState returns the current state, applying a pending open to
// half-open transition.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireLocked()
	return cb.state
}

// CircuitBreakerError is returned when a call was not attempted.
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}

package social

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitBreaker stops calling the Graph API while it keeps failing
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	consecutiveFailures int
	isOpen              bool
	lastFailureTime     time.Time

	logger *zap.Logger
	mutex  sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           logger,
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.consecutiveFailures = 0
}

// RecordFailure records a failed request. Auth and rate limit responses
// open the breaker after two in a row.
func (cb *CircuitBreaker) RecordFailure(statusCode int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = time.Now()

	critical := statusCode == http.StatusTooManyRequests || statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
	if (critical && cb.consecutiveFailures >= 2) || cb.consecutiveFailures >= cb.failureThreshold {
		if !cb.isOpen {
			cb.logger.Warn("circuit breaker open",
				zap.Int("consecutive_failures", cb.consecutiveFailures),
				zap.Int("status", statusCode),
				zap.Duration("retry_after", cb.resetTimeout),
			)
		}
		cb.isOpen = true
	}
}

// CanProceed checks if requests are allowed
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}

	if time.Since(cb.lastFailureTime) > cb.resetTimeout {
		cb.logger.Info("circuit breaker half-open", zap.Duration("after", cb.resetTimeout))
		cb.isOpen = false
		cb.consecutiveFailures = 0
		return true
	}

	return false
}

// GetStatus returns current circuit breaker status
func (cb *CircuitBreaker) GetStatus() (isOpen bool, consecutiveFailures int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.isOpen, cb.consecutiveFailures
}

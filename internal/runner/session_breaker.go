package runner

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState represents the state of the session breaker
type BreakerState int

const (
	// BreakerClosed means the session is considered healthy
	BreakerClosed BreakerState = iota
	// BreakerOpen means the session must be restarted
	BreakerOpen
)

// String returns string representation of breaker state
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// SessionBreaker counts connection-class failures of a browser session and
// opens once the ceiling is reached. Any successful cycle closes it again.
type SessionBreaker struct {
	maxErrors       int
	state           BreakerState
	errorCount      int
	lastFailureTime time.Time
	openedAt        time.Time
	mu              sync.RWMutex
	logger          *logrus.Entry
}

// NewSessionBreaker creates a breaker that opens after maxErrors connection errors
func NewSessionBreaker(maxErrors int, logger *logrus.Entry) *SessionBreaker {
	if maxErrors <= 0 {
		maxErrors = 1
	}
	return &SessionBreaker{
		maxErrors: maxErrors,
		state:     BreakerClosed,
		logger:    logger,
	}
}

// RecordConnectionError increments the error count and reports whether the breaker is now open.
func (b *SessionBreaker) RecordConnectionError(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errorCount++
	b.lastFailureTime = time.Now()

	b.logger.WithFields(logrus.Fields{
		"error_count": b.errorCount,
		"max_allowed": b.maxErrors,
		"error":       err.Error(),
	}).Warn("Connection error recorded")

	if b.errorCount >= b.maxErrors && b.state != BreakerOpen {
		b.state = BreakerOpen
		b.openedAt = b.lastFailureTime
		b.logger.WithFields(logrus.Fields{
			"old_state":   BreakerClosed.String(),
			"new_state":   BreakerOpen.String(),
			"error_count": b.errorCount,
		}).Error("Session breaker opened, browser session must restart")
	}
	return b.state == BreakerOpen
}

// RecordSuccess resets the error count
func (b *SessionBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorCount = 0
}

// ErrorCount returns consecutive connection errors since the last success or reset
func (b *SessionBreaker) ErrorCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errorCount
}

// GetState returns current breaker state
func (b *SessionBreaker) GetState() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset closes the breaker after the session has been restarted
func (b *SessionBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = BreakerClosed
	b.errorCount = 0

	if oldState != BreakerClosed {
		b.logger.WithFields(logrus.Fields{
			"old_state": oldState.String(),
			"new_state": b.state.String(),
			"open_for":  time.Since(b.openedAt).String(),
		}).Info("Session breaker reset")
	}
}

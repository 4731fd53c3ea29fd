// Package logger provides cycle-specific logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// CycleLogger provides dedicated logging for cycle runner operations.
type CycleLogger struct {
	*logrus.Entry
}

// NewCycleLogger creates a new cycle logger.
func NewCycleLogger(baseLogger *logrus.Logger, source, runID string) *CycleLogger {
	return &CycleLogger{
		Entry: baseLogger.WithFields(logrus.Fields{
			"component": "cycle",
			"source":    source,
			"run_id":    runID,
		}),
	}
}

// LogCycleCompleted logs one finished cycle.
func (cl *CycleLogger) LogCycleCompleted(cycle int64, leagues, games, emitted, ended int, duration time.Duration) {
	entry := cl.WithFields(logrus.Fields{
		"cycle":       cycle,
		"leagues":     leagues,
		"games":       games,
		"emitted":     emitted,
		"ended":       ended,
		"duration_ms": duration.Milliseconds(),
	})
	if emitted > 0 || ended > 0 {
		entry.Info("Cycle completed")
		return
	}
	entry.Debug("Cycle completed")
}

// LogExtractionFailure logs a failed extraction with its attempt number.
func (cl *CycleLogger) LogExtractionFailure(attempt, maxAttempts int, err error) {
	cl.WithFields(logrus.Fields{
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"error":        errString(err),
	}).Warn("Extraction failed")
}

// LogAlertDispatched logs an alert handed to the notifier.
func (cl *CycleLogger) LogAlertDispatched(league, opponent0, opponent1, band string, withCounterpart bool) {
	cl.WithFields(logrus.Fields{
		"league":           league,
		"opponent_0":       opponent0,
		"opponent_1":       opponent1,
		"band":             band,
		"with_counterpart": withCounterpart,
	}).Info("Alert dispatched")
}

// LogSideEffectFailure logs a storage, notify or publish failure that did not stop the cycle.
func (cl *CycleLogger) LogSideEffectFailure(operation, key string, err error) {
	cl.WithFields(logrus.Fields{
		"operation": operation,
		"key":       key,
		"error":     errString(err),
	}).Error("Cycle side effect failed")
}

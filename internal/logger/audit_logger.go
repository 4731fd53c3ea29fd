// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for run ownership changes.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogRunRegistered logs a run becoming the active run of a source.
func (al *AuditLogger) LogRunRegistered(source, runID, previousRunID string, firstRun bool) {
	al.WithFields(logrus.Fields{
		"source":          source,
		"run_id":          runID,
		"previous_run_id": previousRunID,
		"first_run":       firstRun,
	}).Info("Run registered as active")
}

// LogStopScheduled logs a pending stop of a superseded run.
func (al *AuditLogger) LogStopScheduled(source, supersededRunID string, delay time.Duration) {
	al.WithFields(logrus.Fields{
		"source":            source,
		"superseded_run_id": supersededRunID,
		"grace_seconds":     delay.Seconds(),
	}).Info("Stop of superseded run scheduled")
}

// LogStopExecuted logs the termination of a superseded run.
func (al *AuditLogger) LogStopExecuted(source, supersededRunID string, attempt int) {
	al.WithFields(logrus.Fields{
		"source":            source,
		"superseded_run_id": supersededRunID,
		"attempt":           attempt,
	}).Info("Superseded run stopped")
}

// LogStopSkipped logs a grace expiry for a run that is still the active one.
func (al *AuditLogger) LogStopSkipped(source, runID string) {
	al.WithFields(logrus.Fields{
		"source": source,
		"run_id": runID,
	}).Warn("Run scheduled for stop is still active, skipping stop")
}

// LogSessionRestart logs a forced browser session restart.
func (al *AuditLogger) LogSessionRestart(source, runID, reason string) {
	al.WithFields(logrus.Fields{
		"source": source,
		"run_id": runID,
		"reason": reason,
	}).Warn("Browser session restart")
}

// LogRetriesExhausted logs a run giving up after its last attempt.
func (al *AuditLogger) LogRetriesExhausted(source, runID string, attempts int, err error) {
	al.WithFields(logrus.Fields{
		"source":   source,
		"run_id":   runID,
		"attempts": attempts,
		"error":    errString(err),
	}).Error("Run retries exhausted, registry entry left stale")
}

// LogStoreReset logs the first-run reset of shared state.
func (al *AuditLogger) LogStoreReset(clearedTasks int) {
	al.WithFields(logrus.Fields{
		"cleared_task_meta": clearedTasks,
	}).Warn("Shared store and match history reset")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

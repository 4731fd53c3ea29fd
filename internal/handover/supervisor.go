package handover

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/logger"
	"github.com/yourusername/odds-watch/internal/metrics"
	"github.com/yourusername/odds-watch/internal/runner"
)

// AttemptFunc runs one attempt of a run with a fresh session and fresh state.
type AttemptFunc func(ctx context.Context, attempt int) runner.Outcome

// Supervisor retries a run a bounded number of times with a fixed delay.
type Supervisor struct {
	attempts int
	delay    time.Duration
	logger   *logrus.Logger
	audit    *logger.AuditLogger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a supervisor
func NewSupervisor(attempts int, delay time.Duration, log *logrus.Logger) *Supervisor {
	if attempts <= 0 {
		attempts = 1
	}
	if log == nil {
		log = logrus.New()
	}
	return &Supervisor{
		attempts: attempts,
		delay:    delay,
		logger:   log,
		audit:    logger.NewAuditLogger(log),
		sleep:    sleepContext,
	}
}

// Run executes attempts until one is stopped, one fails fatally or all are used up.
// A stopped run returns nil. Exhaustion returns the last error and leaves the
// registry entry of the run in place.
func (s *Supervisor) Run(ctx context.Context, source, runID string, attempt AttemptFunc) error {
	var last error
	for n := 1; n <= s.attempts; n++ {
		outcome := attempt(ctx, n)
		metrics.RecordRunAttempt(source, outcome.Kind.String())

		switch outcome.Kind {
		case runner.OutcomeStopped:
			return nil
		case runner.OutcomeFatal:
			s.audit.LogRetriesExhausted(source, runID, n, outcome.Err)
			return fmt.Errorf("run %s of %s failed: %w", runID, source, outcome.Err)
		}

		last = outcome.Err
		s.logger.WithFields(logrus.Fields{
			"source":       source,
			"run_id":       runID,
			"attempt":      n,
			"max_attempts": s.attempts,
			"error":        errString(last),
		}).Warn("Run attempt failed")

		if n < s.attempts {
			if s.sleep(ctx, s.delay) != nil {
				return nil
			}
		}
	}

	s.audit.LogRetriesExhausted(source, runID, s.attempts, last)
	return fmt.Errorf("run %s of %s exhausted %d attempts: %w", runID, source, s.attempts, last)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

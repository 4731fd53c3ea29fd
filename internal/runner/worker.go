package runner

import (
	"context"
	"fmt"
)

// PageSession is a browser session that can be opened on a page and closed.
type PageSession interface {
	SessionRestarter
	Start(ctx context.Context, url string) error
	Close() error
}

// Worker is one attempt of a run: it opens the source page and drives the
// cycle runner until the run stops or fails.
type Worker struct {
	session PageSession
	url     string
	runner  *Runner
}

// NewWorker creates a worker
func NewWorker(session PageSession, url string, runner *Runner) *Worker {
	return &Worker{session: session, url: url, runner: runner}
}

// Run opens the page and runs cycles. A page that cannot be opened is retryable.
func (w *Worker) Run(ctx context.Context) Outcome {
	if err := w.session.Start(ctx, w.url); err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeStopped, Err: ctx.Err()}
		}
		return Outcome{Kind: OutcomeRetryable, Err: fmt.Errorf("failed to open %s: %w", w.url, err)}
	}
	return w.runner.Run(ctx)
}

// Close releases the browser session
func (w *Worker) Close() error {
	return w.session.Close()
}

// Runner returns the cycle runner of this attempt.
func (w *Worker) Runner() *Runner {
	return w.runner
}

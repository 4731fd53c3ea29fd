package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePageSession struct {
	fakeSession
	startErr error
	url      string
	closed   bool
}

func (s *fakePageSession) Start(_ context.Context, url string) error {
	s.url = url
	return s.startErr
}

func (s *fakePageSession) Close() error {
	s.closed = true
	return nil
}

func TestWorker_RunsUntilCancelled(t *testing.T) {
	h := newHarness(DefaultConfig(), step{snapshot: snap(game("kazan", "sochi", "1.90"))})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.extractor.cancel = cancel

	session := &fakePageSession{}
	w := NewWorker(session, "https://fb.com/live/basketball", h.runner)

	outcome := w.Run(ctx)
	assert.Equal(t, OutcomeStopped, outcome.Kind)
	assert.Equal(t, "https://fb.com/live/basketball", session.url)
	assert.Equal(t, 1, h.extractor.calls)
	assert.Same(t, h.runner, w.Runner())

	assert.NoError(t, w.Close())
	assert.True(t, session.closed)
}

func TestWorker_StartFailureIsRetryable(t *testing.T) {
	h := newHarness(DefaultConfig())
	session := &fakePageSession{startErr: errors.New("chrome not found")}
	w := NewWorker(session, "https://akty.com/live", h.runner)

	outcome := w.Run(context.Background())
	assert.Equal(t, OutcomeRetryable, outcome.Kind)
	assert.ErrorContains(t, outcome.Err, "chrome not found")
	assert.Zero(t, h.extractor.calls)
}

func TestWorker_StartCancelled(t *testing.T) {
	h := newHarness(DefaultConfig())
	session := &fakePageSession{startErr: context.Canceled}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewWorker(session, "https://akty.com/live", h.runner).Run(ctx)
	assert.Equal(t, OutcomeStopped, outcome.Kind)
}

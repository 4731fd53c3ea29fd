package handover

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/logger"
	"github.com/yourusername/odds-watch/internal/metrics"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// PendingStopRequest is a superseded run waiting out its grace period.
type PendingStopRequest struct {
	Source      string
	RunID       string
	ScheduledAt time.Time
	Delay       time.Duration
}

// Handover is the result of registering a run.
type Handover struct {
	Source        string
	RunID         string
	PreviousRunID string
	FirstRun      bool
	// Pending is set when a previous run will be stopped after the grace delay.
	Pending *PendingStopRequest
}

// CoordinatorConfig holds handover timing
type CoordinatorConfig struct {
	GraceDelay       time.Duration
	StopRetries      int
	StopRetryDelay   time.Duration
	RegisterAttempts int
}

// DefaultCoordinatorConfig returns the production handover timing
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		GraceDelay:       60 * time.Second,
		StopRetries:      5,
		StopRetryDelay:   60 * time.Second,
		RegisterAttempts: 3,
	}
}

// CoordinatorConfigFrom maps the handover config section
func CoordinatorConfigFrom(cfg config.HandoverConfig) CoordinatorConfig {
	return CoordinatorConfig{
		GraceDelay:       cfg.GraceDelay(),
		StopRetries:      cfg.StopRetries,
		StopRetryDelay:   cfg.StopRetryDelay(),
		RegisterAttempts: cfg.RegisterAttempts,
	}
}

// Coordinator registers runs and stops the runs they supersede.
type Coordinator struct {
	registry Registry
	tasks    TaskControl
	cfg      CoordinatorConfig
	logger   *logrus.Logger
	audit    *logger.AuditLogger

	afterFunc AfterFunc
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending map[string]Timer
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator
func NewCoordinator(registry Registry, tasks TaskControl, cfg CoordinatorConfig, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.New()
	}
	if cfg.RegisterAttempts <= 0 {
		cfg.RegisterAttempts = 1
	}
	if cfg.StopRetries <= 0 {
		cfg.StopRetries = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		registry:  registry,
		tasks:     tasks,
		cfg:       cfg,
		logger:    log,
		audit:     logger.NewAuditLogger(log),
		afterFunc: realAfterFunc,
		sleep:     sleepContext,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]Timer),
	}
}

// BeginRun registers runID as the active run of source. When another run was
// registered and this is not a first run, that run is stopped once the grace
// delay has passed; both may run until then.
func (c *Coordinator) BeginRun(ctx context.Context, source, runID string, firstRun bool) (Handover, error) {
	for attempt := 1; attempt <= c.cfg.RegisterAttempts; attempt++ {
		previous, err := c.registry.Active(ctx, source)
		if err != nil {
			return Handover{}, err
		}

		ok, err := c.registry.CompareAndRegister(ctx, source, previous, runID)
		if err != nil {
			return Handover{}, err
		}
		if !ok {
			c.logger.WithFields(logrus.Fields{
				"source":  source,
				"run_id":  runID,
				"attempt": attempt,
			}).Warn("Active run changed during registration, re-reading")
			continue
		}

		h := Handover{Source: source, RunID: runID, PreviousRunID: previous, FirstRun: firstRun}
		if previous != "" && previous != runID && !firstRun {
			h.Pending = c.scheduleStop(source, previous)
		}

		c.audit.LogRunRegistered(source, runID, previous, firstRun)
		metrics.RecordRunStarted(source, h.Pending != nil)
		return h, nil
	}
	return Handover{}, ErrRegistrationConflict
}

func (c *Coordinator) scheduleStop(source, runID string) *PendingStopRequest {
	req := PendingStopRequest{
		Source:      source,
		RunID:       runID,
		ScheduledAt: c.now(),
		Delay:       c.cfg.GraceDelay,
	}

	c.mu.Lock()
	if existing, ok := c.pending[runID]; ok && existing.Stop() {
		c.wg.Done()
	}
	c.wg.Add(1)
	c.pending[runID] = c.afterFunc(req.Delay, func() {
		defer c.wg.Done()
		c.expire(req)
	})
	c.mu.Unlock()

	c.audit.LogStopScheduled(source, runID, req.Delay)
	return &req
}

// expire stops a superseded run unless it is, again, the active one.
func (c *Coordinator) expire(req PendingStopRequest) {
	c.mu.Lock()
	delete(c.pending, req.RunID)
	c.mu.Unlock()

	ctx := c.ctx
	active, err := c.registry.Active(ctx, req.Source)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"source": req.Source,
			"run_id": req.RunID,
			"error":  err.Error(),
		}).Warn("Could not read active run at grace expiry, stopping anyway")
	} else if active == req.RunID {
		c.audit.LogStopSkipped(req.Source, req.RunID)
		metrics.RecordStopRequest(req.Source, "skipped")
		return
	}

	for attempt := 1; attempt <= c.cfg.StopRetries; attempt++ {
		err := c.stop(ctx, req.RunID)
		if err == nil {
			c.audit.LogStopExecuted(req.Source, req.RunID, attempt)
			metrics.RecordStopRequest(req.Source, "executed")
			return
		}

		c.logger.WithFields(logrus.Fields{
			"source":       req.Source,
			"run_id":       req.RunID,
			"attempt":      attempt,
			"max_attempts": c.cfg.StopRetries,
			"error":        err.Error(),
		}).Error("Failed to stop superseded run")

		if attempt < c.cfg.StopRetries {
			if c.sleep(ctx, c.cfg.StopRetryDelay) != nil {
				break
			}
		}
	}
	metrics.RecordStopRequest(req.Source, "failed")
}

func (c *Coordinator) stop(ctx context.Context, runID string) error {
	if err := c.tasks.Revoke(ctx, runID); err != nil {
		return err
	}
	return c.tasks.Forget(ctx, runID)
}

// PendingStops returns the run ids waiting for their grace period to expire.
func (c *Coordinator) PendingStops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels pending stops and waits for running ones.
func (c *Coordinator) Shutdown() {
	c.cancel()

	c.mu.Lock()
	for id, timer := range c.pending {
		if timer.Stop() {
			c.wg.Done()
		}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

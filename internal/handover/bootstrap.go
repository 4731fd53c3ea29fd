package handover

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/logger"
	"github.com/yourusername/odds-watch/internal/models"
)

// Launcher starts a run of a source and knows which sources it is running.
type Launcher interface {
	Launch(ctx context.Context, source models.Source, firstRun bool) (string, error)
	Running(source string) bool
}

// Flusher clears the shared key-value store.
type Flusher interface {
	Flush(ctx context.Context) error
}

// MatchResetter clears the persisted match history.
type MatchResetter interface {
	ResetMatches(ctx context.Context) error
}

// SourcePlan is a source and how long to wait before starting it.
type SourcePlan struct {
	Source models.Source
	Delay  time.Duration
}

// DefaultPlan starts fb after 30 seconds and akty after 90 seconds.
func DefaultPlan() []SourcePlan {
	return []SourcePlan{
		{Source: models.SourceFB, Delay: 30 * time.Second},
		{Source: models.SourceAkty, Delay: 90 * time.Second},
	}
}

// PlanFrom builds the startup plan from the enabled sources in config order.
func PlanFrom(sources []config.SourceConfig) ([]SourcePlan, error) {
	plan := make([]SourcePlan, 0, len(sources))
	for _, sc := range sources {
		if !sc.Enabled {
			continue
		}
		source, err := models.SourceByName(sc.Name)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		plan = append(plan, SourcePlan{Source: source, Delay: sc.StartDelay()})
	}
	return plan, nil
}

// Bootstrapper brings up one run per source unless a live run already exists.
type Bootstrapper struct {
	registry Registry
	tasks    TaskControl
	store    Flusher
	matches  MatchResetter
	launcher Launcher
	plan     []SourcePlan
	logger   *logrus.Logger
	audit    *logger.AuditLogger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBootstrapper creates a bootstrapper. matches may be nil.
func NewBootstrapper(registry Registry, tasks TaskControl, store Flusher, matches MatchResetter, launcher Launcher, plan []SourcePlan, log *logrus.Logger) *Bootstrapper {
	if log == nil {
		log = logrus.New()
	}
	return &Bootstrapper{
		registry: registry,
		tasks:    tasks,
		store:    store,
		matches:  matches,
		launcher: launcher,
		plan:     plan,
		logger:   log,
		audit:    logger.NewAuditLogger(log),
		sleep:    sleepContext,
	}
}

// Start resets shared state on a first run, then starts every planned source
// that has no live run. Each source waits its delay and is checked again
// before launch, so a run that came up meanwhile is left alone.
func (b *Bootstrapper) Start(ctx context.Context, firstRun bool) ([]string, error) {
	if firstRun {
		if err := b.reset(ctx); err != nil {
			return nil, err
		}
	}

	var launched []string
	for _, p := range b.plan {
		name := p.Source.Name
		live, err := b.live(ctx, name)
		if err != nil {
			return launched, fmt.Errorf("failed to check %s: %w", name, err)
		}
		if live {
			b.logger.WithField("source", name).Info("Source already running, skipping")
			continue
		}

		b.logger.WithFields(logrus.Fields{
			"source": name,
			"delay":  p.Delay.String(),
		}).Info("Starting source after delay")
		if err := b.sleep(ctx, p.Delay); err != nil {
			return launched, err
		}

		live, err = b.live(ctx, name)
		if err != nil {
			return launched, fmt.Errorf("failed to re-check %s: %w", name, err)
		}
		if live {
			b.logger.WithField("source", name).Info("Source came up during delay, skipping")
			continue
		}

		runID, err := b.launcher.Launch(ctx, p.Source, firstRun)
		if err != nil {
			return launched, err
		}
		launched = append(launched, runID)
	}
	return launched, nil
}

// live reports whether source has a run in this process or a fresh heartbeat
// elsewhere. A local run counts even while it retries or waits between
// attempts and so sends no heartbeat.
func (b *Bootstrapper) live(ctx context.Context, source string) (bool, error) {
	if b.launcher.Running(source) {
		return true, nil
	}
	return b.registry.Alive(ctx, source)
}

func (b *Bootstrapper) reset(ctx context.Context) error {
	cleared, err := b.tasks.ForgetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear task metadata: %w", err)
	}
	if err := b.store.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush store: %w", err)
	}
	if b.matches != nil {
		if err := b.matches.ResetMatches(ctx); err != nil {
			return fmt.Errorf("failed to reset matches: %w", err)
		}
	}
	b.audit.LogStoreReset(cleared)
	return nil
}

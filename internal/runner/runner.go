// Package runner drives the extraction, change detection, storage, alerting
// and publishing cycle of one source.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/alert"
	"github.com/yourusername/odds-watch/internal/browser"
	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/detector"
	"github.com/yourusername/odds-watch/internal/extract"
	"github.com/yourusername/odds-watch/internal/logger"
	"github.com/yourusername/odds-watch/internal/metrics"
	"github.com/yourusername/odds-watch/internal/models"
	"github.com/yourusername/odds-watch/internal/storage"
	"github.com/yourusername/odds-watch/internal/tracker"
)

var (
	// ErrFatal marks an error that retrying with a fresh session cannot fix.
	ErrFatal = errors.New("fatal runner error")
	// ErrSessionRestart wraps a failed browser session restart.
	ErrSessionRestart = errors.New("browser session restart failed")
)

// Notifier delivers an alert payload.
type Notifier interface {
	Notify(ctx context.Context, p alert.Payload) error
}

// Publisher delivers an aggregated batch downstream.
type Publisher interface {
	Publish(ctx context.Context, batch *models.Batch) error
}

// SessionRestarter replaces the browser session behind the extractor.
type SessionRestarter interface {
	Restart(ctx context.Context) error
}

// CycleHook is told about every completed cycle.
type CycleHook interface {
	AfterCycle(ctx context.Context, report CycleReport)
}

// resetter is implemented by extractors holding per-session state.
type resetter interface {
	Reset()
}

// Config holds cycle timing and failure limits
type Config struct {
	Interval            time.Duration
	RetryDelay          time.Duration
	MaxRetries          int
	MaxConnectionErrors int
	StaleCycleLimit     int
	EvictionThreshold   int
	ListCap             int64
}

// DefaultConfig returns the production cycle settings
func DefaultConfig() Config {
	return Config{
		Interval:            time.Second,
		RetryDelay:          10 * time.Second,
		MaxRetries:          5,
		MaxConnectionErrors: 5,
		StaleCycleLimit:     3600,
		EvictionThreshold:   tracker.DefaultThreshold,
		ListCap:             storage.DefaultListCap,
	}
}

// ConfigFrom builds runner settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Interval:            cfg.Cycle.Interval(),
		RetryDelay:          cfg.Cycle.RetryDelay(),
		MaxRetries:          cfg.Cycle.MaxRetries,
		MaxConnectionErrors: cfg.Cycle.MaxConnectionErrors,
		StaleCycleLimit:     cfg.Cycle.StaleCycleLimit,
		EvictionThreshold:   cfg.Tracker.EvictionThreshold,
		ListCap:             cfg.Storage.ListCap,
	}
}

// Deps are the collaborators of a runner. Notifier, Publisher, Session and
// Hook are optional.
type Deps struct {
	Extractor extract.Extractor
	Store     storage.Store
	Evaluator *alert.Evaluator
	Notifier  Notifier
	Publisher Publisher
	Session   SessionRestarter
	Hook      CycleHook
	Logger    *logrus.Logger
}

// CycleReport summarises one cycle
type CycleReport struct {
	Source    string
	RunID     string
	Cycle     int64
	Leagues   int
	Games     int
	Emitted   int
	Ended     int
	Alerts    int
	Unchanged bool
	Duration  time.Duration
}

// OutcomeKind classifies why Run returned
type OutcomeKind int

const (
	// OutcomeStopped means the context was cancelled
	OutcomeStopped OutcomeKind = iota
	// OutcomeRetryable means retries were exhausted; a fresh session may succeed
	OutcomeRetryable
	// OutcomeFatal means the run cannot continue
	OutcomeFatal
)

// String returns string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStopped:
		return "stopped"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of Run
type Outcome struct {
	Kind   OutcomeKind
	Err    error
	Cycles int64
}

// State is the previous snapshot a runner compares each cycle against.
// A league has a baseline once it was present in the previous snapshot.
type State struct {
	previous models.LeagueSnapshot
}

// NewState creates an empty state
func NewState() *State {
	return &State{previous: make(models.LeagueSnapshot)}
}

// Previous returns the retained snapshot
func (s *State) Previous() models.LeagueSnapshot {
	return s.previous
}

// Baseline returns the previous records of a league and whether the league has a baseline.
func (s *State) Baseline(league string) ([]models.GameRecord, bool) {
	games, ok := s.previous[league]
	return games, ok
}

// Replace makes snapshot the baseline for the next cycle
func (s *State) Replace(snapshot models.LeagueSnapshot) {
	s.previous = snapshot
}

// Reset drops the baseline
func (s *State) Reset() {
	s.previous = make(models.LeagueSnapshot)
}

// Runner runs the cycle loop of one source. It is not safe for concurrent use.
type Runner struct {
	source models.Source
	runID  string
	cfg    Config

	extractor extract.Extractor
	rates     *storage.RateStore
	evaluator *alert.Evaluator
	notifier  Notifier
	publisher Publisher
	session   SessionRestarter
	hook      CycleHook

	state   *State
	tracker *tracker.Tracker
	breaker *SessionBreaker

	logger   *logrus.Entry
	cycleLog *logger.CycleLogger
	audit    *logger.AuditLogger

	sleep       func(ctx context.Context, d time.Duration) error
	cycles      int64
	staleCycles int
}

// New creates a runner with fresh state
func New(source models.Source, runID string, cfg Config, deps Deps) *Runner {
	base := deps.Logger
	if base == nil {
		base = logrus.New()
	}
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = alert.NewDefaultEvaluator()
	}
	entry := logger.ForSource(base, source.Name, runID)

	return &Runner{
		source:    source,
		runID:     runID,
		cfg:       cfg,
		extractor: deps.Extractor,
		rates:     storage.NewRateStore(deps.Store, cfg.ListCap),
		evaluator: evaluator,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		session:   deps.Session,
		hook:      deps.Hook,
		state:     NewState(),
		tracker:   tracker.New(cfg.EvictionThreshold, base),
		breaker:   NewSessionBreaker(cfg.MaxConnectionErrors, entry),
		logger:    entry,
		cycleLog:  logger.NewCycleLogger(base, source.Name, runID),
		audit:     logger.NewAuditLogger(base),
		sleep:     sleepContext,
	}
}

// State returns the runner's baseline state
func (r *Runner) State() *State {
	return r.state
}

// Tracker returns the runner's ended-game tracker
func (r *Runner) Tracker() *tracker.Tracker {
	return r.tracker
}

// Run repeats cycles until the context is cancelled or failures exhaust the retry budget.
func (r *Runner) Run(ctx context.Context) Outcome {
	r.logger.Info("Cycle runner started")
	failures := 0

	for {
		if ctx.Err() != nil {
			return r.outcome(OutcomeStopped, nil)
		}

		_, err := r.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.outcome(OutcomeStopped, nil)
			}
			if errors.Is(err, ErrFatal) {
				return r.outcome(OutcomeFatal, err)
			}

			failures++
			r.cycleLog.LogExtractionFailure(failures, r.cfg.MaxRetries, err)

			if browser.IsConnectionError(err) {
				metrics.RecordExtractionFailure(r.source.Name, "connection")
				tripped := r.breaker.RecordConnectionError(err)
				metrics.UpdateConnectionErrors(r.source.Name, r.breaker.ErrorCount())
				if tripped {
					// The restart does not refund the retry budget.
					if rerr := r.restartSession(ctx, "connection_errors"); rerr != nil {
						return r.outcome(OutcomeRetryable, rerr)
					}
					if failures >= r.cfg.MaxRetries {
						return r.outcome(OutcomeRetryable, fmt.Errorf("extraction failed %d times: %w", failures, err))
					}
					continue
				}
			} else {
				metrics.RecordExtractionFailure(r.source.Name, "extraction")
			}

			if failures >= r.cfg.MaxRetries {
				return r.outcome(OutcomeRetryable, fmt.Errorf("extraction failed %d times: %w", failures, err))
			}
			if r.sleep(ctx, r.cfg.RetryDelay) != nil {
				return r.outcome(OutcomeStopped, nil)
			}
			continue
		}

		failures = 0
		r.breaker.RecordSuccess()
		metrics.UpdateConnectionErrors(r.source.Name, 0)

		if r.cfg.StaleCycleLimit > 0 && r.staleCycles >= r.cfg.StaleCycleLimit {
			if rerr := r.restartSession(ctx, "stale_page"); rerr != nil {
				return r.outcome(OutcomeRetryable, rerr)
			}
		}

		if r.sleep(ctx, r.cfg.Interval) != nil {
			return r.outcome(OutcomeStopped, nil)
		}
	}
}

func (r *Runner) outcome(kind OutcomeKind, err error) Outcome {
	fields := logrus.Fields{"outcome": kind.String(), "cycles": r.cycles}
	if err != nil {
		fields["error"] = err.Error()
	}
	r.logger.WithFields(fields).Info("Cycle runner stopped")
	return Outcome{Kind: kind, Err: err, Cycles: r.cycles}
}

// RunCycle performs one extraction, diff, store, notify and publish pass.
// Only extraction errors are returned; storage, alert and publish failures are logged.
func (r *Runner) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	r.cycles++
	report := CycleReport{Source: r.source.Name, RunID: r.runID, Cycle: r.cycles}

	snapshot, err := r.extractor.Extract(ctx)
	if errors.Is(err, extract.ErrPageUnchanged) {
		r.staleCycles++
		metrics.RecordUnchangedPage(r.source.Name)
		report.Unchanged = true
		return r.finish(ctx, report, start), nil
	}
	if err != nil {
		return report, err
	}
	r.staleCycles = 0

	report.Leagues = len(snapshot)
	report.Games = snapshot.Len()

	batch := models.NewBatch(r.source)
	for _, league := range snapshot.Leagues() {
		previous, hasBaseline := r.state.Baseline(league)
		for _, record := range detector.DetectLeague(previous, hasBaseline, snapshot[league]) {
			record.League = league
			batch.Add(league, record)
		}
	}
	report.Emitted = batch.Size()

	ended := r.tracker.Observe(r.state.Previous(), snapshot)
	for _, record := range ended {
		batch.Add(record.League, record)
	}
	report.Ended = len(ended)

	for _, league := range sortedLeagues(batch) {
		for _, record := range batch.Leagues[league] {
			if record.IsEndGame {
				r.retire(ctx, league, record)
				continue
			}
			if r.persist(ctx, league, record) {
				report.Alerts++
			}
		}
	}

	r.state.Replace(snapshot)

	if !batch.Empty() && r.publisher != nil {
		if err := r.publisher.Publish(ctx, batch); err != nil {
			r.cycleLog.LogSideEffectFailure("publish", r.source.Domain, err)
		}
	}

	return r.finish(ctx, report, start), nil
}

func (r *Runner) finish(ctx context.Context, report CycleReport, start time.Time) CycleReport {
	report.Duration = time.Since(start)
	r.cycleLog.LogCycleCompleted(report.Cycle, report.Leagues, report.Games, report.Emitted, report.Ended, report.Duration)
	metrics.RecordCycle(r.source.Name, report.Duration.Seconds(), report.Games, report.Emitted, report.Ended, r.tracker.Len())
	if r.hook != nil {
		r.hook.AfterCycle(ctx, report)
	}
	return report
}

// persist stores an emitted record and dispatches its alert. It reports whether an alert was sent.
func (r *Runner) persist(ctx context.Context, league string, record models.GameRecord) bool {
	stored := models.NewStoredRate(record)

	allKey := storage.AllDataKey(r.source, league, record.Opponent0, record.Opponent1)
	if err := r.rates.AppendRate(ctx, allKey, stored); err != nil {
		r.sideEffectFailed("append_all_data", allKey, err)
	}
	feedKey := storage.LeagueFeedKey(r.source, league)
	if err := r.rates.AppendRate(ctx, feedKey, stored.WithMatch(record)); err != nil {
		r.sideEffectFailed("append_league_feed", feedKey, err)
	}

	decision := r.evaluator.Evaluate(record)
	if decision.Store {
		key := storage.InterestingKey(r.source, league, record.Opponent0, record.Opponent1)
		if err := r.rates.AppendRate(ctx, key, stored); err != nil {
			r.sideEffectFailed("append_interesting", key, err)
		}
	}
	if !decision.Dispatch || r.notifier == nil {
		return false
	}

	counterpartKey := storage.AllDataKey(r.source.Counterpart(), league, record.Opponent0, record.Opponent1)
	counterpart, err := r.rates.LastRate(ctx, counterpartKey)
	if err != nil {
		r.sideEffectFailed("read_counterpart", counterpartKey, err)
		counterpart = nil
	}

	payload := r.evaluator.Compose(r.source, league, record, counterpart)
	if err := r.notifier.Notify(ctx, payload); err != nil {
		r.sideEffectFailed("notify", allKey, err)
		return false
	}

	band := decision.Highest().String()
	metrics.RecordAlert(r.source.Name, band)
	r.cycleLog.LogAlertDispatched(league, record.Opponent0, record.Opponent1, band, counterpart != nil)
	return true
}

// retire removes every stored list of an ended game.
func (r *Runner) retire(ctx context.Context, league string, record models.GameRecord) {
	if err := r.rates.DeleteGame(ctx, league, record.Opponent0, record.Opponent1); err != nil {
		r.sideEffectFailed("delete_game", record.KeyIn(league).String(), err)
	}
}

func (r *Runner) sideEffectFailed(operation, key string, err error) {
	metrics.RecordSideEffectFailure(r.source.Name, operation)
	r.cycleLog.LogSideEffectFailure(operation, key, err)
}

// restartSession replaces the browser session and drops every piece of per-session state.
func (r *Runner) restartSession(ctx context.Context, reason string) error {
	r.audit.LogSessionRestart(r.source.Name, r.runID, reason)
	metrics.RecordSessionRestart(r.source.Name, reason)

	if r.session != nil {
		if err := r.session.Restart(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrSessionRestart, err)
		}
	}

	r.state.Reset()
	r.tracker.Reset()
	r.breaker.Reset()
	r.staleCycles = 0
	if rs, ok := r.extractor.(resetter); ok {
		rs.Reset()
	}
	return nil
}

func sortedLeagues(batch *models.Batch) []string {
	return models.LeagueSnapshot(batch.Leagues).Leagues()
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

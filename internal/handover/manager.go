package handover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/metrics"
	"github.com/yourusername/odds-watch/internal/models"
	"github.com/yourusername/odds-watch/internal/runner"
)

// ErrManagerStopped is returned by Launch after Shutdown.
var ErrManagerStopped = errors.New("task manager stopped")

// Worker is one attempt of a run: a browser session plus a cycle runner.
type Worker interface {
	Run(ctx context.Context) runner.Outcome
	Close() error
}

// WorkerFactory builds a fresh worker for each attempt of a run.
type WorkerFactory func(ctx context.Context, source models.Source, runID string, hook runner.CycleHook) (Worker, error)

// RunInfo describes a run executing in this process.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Attempt   int       `json:"attempt"`
	StartedAt time.Time `json:"started_at"`
}

type runHandle struct {
	info   RunInfo
	cancel context.CancelFunc
}

// ManagerConfig holds run supervision settings
type ManagerConfig struct {
	RunRetries    int
	RunRetryDelay time.Duration
	HeartbeatTTL  time.Duration
}

// TaskManager launches runs in goroutines, cancels them on revocation and
// keeps their metadata and heartbeats current.
type TaskManager struct {
	coordinator *Coordinator
	registry    Registry
	tasks       TaskControl
	factory     WorkerFactory
	supervisor  *Supervisor
	cfg         ManagerConfig
	logger      *logrus.Logger
	newID       func() string

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	runs   map[string]*runHandle
	wg     sync.WaitGroup
}

// NewTaskManager creates a task manager
func NewTaskManager(coordinator *Coordinator, registry Registry, tasks TaskControl, factory WorkerFactory, cfg ManagerConfig, log *logrus.Logger) *TaskManager {
	if log == nil {
		log = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskManager{
		coordinator: coordinator,
		registry:    registry,
		tasks:       tasks,
		factory:     factory,
		supervisor:  NewSupervisor(cfg.RunRetries, cfg.RunRetryDelay, log),
		cfg:         cfg,
		logger:      log,
		newID:       uuid.NewString,
		ctx:         ctx,
		cancel:      cancel,
		runs:        make(map[string]*runHandle),
	}
}

// Launch registers a new run of source and starts it in the background.
func (m *TaskManager) Launch(ctx context.Context, source models.Source, firstRun bool) (string, error) {
	if m.ctx.Err() != nil {
		return "", ErrManagerStopped
	}

	runID := m.newID()
	if _, err := m.coordinator.BeginRun(ctx, source.Name, runID, firstRun); err != nil {
		return "", fmt.Errorf("failed to begin run of %s: %w", source.Name, err)
	}

	info := RunInfo{RunID: runID, Source: source.Name, StartedAt: time.Now().UTC()}
	m.saveMeta(ctx, info, TaskRunning)

	runCtx, cancel := context.WithCancel(m.ctx)
	m.mu.Lock()
	m.runs[runID] = &runHandle{info: info, cancel: cancel}
	metrics.ActiveRuns.Set(float64(len(m.runs)))
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(runCtx, source, info)

	m.logger.WithFields(logrus.Fields{
		"source": source.Name,
		"run_id": runID,
	}).Info("Run launched")
	return runID, nil
}

func (m *TaskManager) execute(ctx context.Context, source models.Source, info RunInfo) {
	defer m.wg.Done()
	defer m.finish(info)

	hook := &heartbeatHook{manager: m, source: source.Name, runID: info.RunID}
	err := m.supervisor.Run(ctx, source.Name, info.RunID, func(ctx context.Context, attempt int) runner.Outcome {
		m.setAttempt(info.RunID, attempt)

		worker, err := m.factory(ctx, source, info.RunID, hook)
		if err != nil {
			return runner.Outcome{Kind: runner.OutcomeRetryable, Err: err}
		}
		defer func() {
			if cerr := worker.Close(); cerr != nil {
				m.logger.WithFields(logrus.Fields{
					"source": source.Name,
					"run_id": info.RunID,
					"error":  cerr.Error(),
				}).Warn("Failed to close worker")
			}
		}()
		return worker.Run(ctx)
	})
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"source": source.Name,
			"run_id": info.RunID,
			"error":  err.Error(),
		}).Error("Run ended with failure")
	}
}

func (m *TaskManager) finish(info RunInfo) {
	m.mu.Lock()
	if h, ok := m.runs[info.RunID]; ok {
		h.cancel()
		delete(m.runs, info.RunID)
	}
	metrics.ActiveRuns.Set(float64(len(m.runs)))
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.tasks.Forget(ctx, info.RunID); err != nil {
		m.logger.WithFields(logrus.Fields{
			"run_id": info.RunID,
			"error":  err.Error(),
		}).Warn("Failed to forget run metadata")
	}
}

func (m *TaskManager) setAttempt(runID string, attempt int) {
	m.mu.Lock()
	h, ok := m.runs[runID]
	if ok {
		h.info.Attempt = attempt
	}
	m.mu.Unlock()

	if ok {
		m.saveMeta(m.ctx, h.info, TaskRunning)
	}
}

func (m *TaskManager) saveMeta(ctx context.Context, info RunInfo, status string) {
	meta := TaskMeta{
		RunID:     info.RunID,
		Source:    info.Source,
		Status:    status,
		Attempt:   info.Attempt,
		StartedAt: info.StartedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.tasks.SaveMeta(ctx, meta); err != nil {
		m.logger.WithFields(logrus.Fields{
			"run_id": info.RunID,
			"error":  err.Error(),
		}).Warn("Failed to save run metadata")
	}
}

// Cancel stops a local run; it reports whether the run was found.
func (m *TaskManager) Cancel(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.runs[runID]
	if !ok {
		return false
	}
	h.cancel()
	m.logger.WithFields(logrus.Fields{
		"source": h.info.Source,
		"run_id": runID,
	}).Info("Run cancelled")
	return true
}

// ListenRevocations cancels local runs revoked by any process until ctx is done.
func (m *TaskManager) ListenRevocations(ctx context.Context) error {
	revoked, err := m.tasks.Revocations(ctx)
	if err != nil {
		return err
	}
	for runID := range revoked {
		m.Cancel(runID)
	}
	return nil
}

// Running reports whether a run of source executes in this process.
func (m *TaskManager) Running(source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.runs {
		if h.info.Source == source {
			return true
		}
	}
	return false
}

// Runs lists the runs executing in this process
func (m *TaskManager) Runs() []RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RunInfo, 0, len(m.runs))
	for _, h := range m.runs {
		out = append(out, h.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Active returns the registered run id of every known source.
func (m *TaskManager) Active(ctx context.Context) (map[string]string, error) {
	active := make(map[string]string, len(models.Sources))
	for _, s := range models.Sources {
		runID, err := m.registry.Active(ctx, s.Name)
		if err != nil {
			return nil, err
		}
		active[s.Name] = runID
	}
	return active, nil
}

// Wait blocks until every launched run has returned.
func (m *TaskManager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels every run, drops pending stops and waits for the runs to return.
func (m *TaskManager) Shutdown() {
	m.cancel()
	m.coordinator.Shutdown()
	m.wg.Wait()
}

// heartbeatHook refreshes the liveness key of a run after every cycle.
type heartbeatHook struct {
	manager *TaskManager
	source  string
	runID   string
}

func (h *heartbeatHook) AfterCycle(ctx context.Context, _ runner.CycleReport) {
	if err := h.manager.registry.Heartbeat(ctx, h.source, h.runID, h.manager.cfg.HeartbeatTTL); err != nil {
		h.manager.logger.WithFields(logrus.Fields{
			"source": h.source,
			"run_id": h.runID,
			"error":  err.Error(),
		}).Warn("Failed to write heartbeat")
	}
}

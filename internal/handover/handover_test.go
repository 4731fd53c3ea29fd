package handover

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/models"
	"github.com/yourusername/odds-watch/internal/runner"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	t.fired = true
	c.mu.Unlock()
	t.fn()
}

// recordingTasks wraps MemoryTaskControl and counts revocations.
type recordingTasks struct {
	*MemoryTaskControl
	mu      sync.Mutex
	revoked []string
	failFor int
}

func (r *recordingTasks) Revoke(ctx context.Context, runID string) error {
	r.mu.Lock()
	if r.failFor > 0 {
		r.failFor--
		r.mu.Unlock()
		return errors.New("broker unavailable")
	}
	r.revoked = append(r.revoked, runID)
	r.mu.Unlock()
	return r.MemoryTaskControl.Revoke(ctx, runID)
}

func (r *recordingTasks) revokedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.revoked...)
}

func newTestCoordinator(registry Registry, tasks TaskControl) (*Coordinator, *fakeClock, *[]time.Duration) {
	clock := &fakeClock{}
	var sleeps []time.Duration
	c := NewCoordinator(registry, tasks, DefaultCoordinatorConfig(), quietLogger())
	c.afterFunc = clock.AfterFunc
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, clock, &sleeps
}

func TestRedisRegistry_Active(t *testing.T) {
	client, mr := setupRedis(t)
	reg := NewRedisRegistry(client)
	ctx := context.Background()

	active, err := reg.Active(ctx, "fb")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, mr.Set(ActiveKey("fb"), "run-a"))
	active, err = reg.Active(ctx, "fb")
	require.NoError(t, err)
	assert.Equal(t, "run-a", active)
}

func TestRedisRegistry_CompareAndRegister(t *testing.T) {
	client, mr := setupRedis(t)
	reg := NewRedisRegistry(client)
	ctx := context.Background()

	ok, err := reg.CompareAndRegister(ctx, "fb", "", "run-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.CompareAndRegister(ctx, "fb", "", "run-b")
	require.NoError(t, err)
	assert.False(t, ok, "stale expectation must not overwrite")

	ok, err = reg.CompareAndRegister(ctx, "fb", "run-a", "run-b")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := mr.Get(ActiveKey("fb"))
	require.NoError(t, err)
	assert.Equal(t, "run-b", got)
}

func TestRedisRegistry_Heartbeat(t *testing.T) {
	client, mr := setupRedis(t)
	reg := NewRedisRegistry(client)
	ctx := context.Background()

	alive, err := reg.Alive(ctx, "akty")
	require.NoError(t, err)
	assert.False(t, alive)

	require.NoError(t, reg.Heartbeat(ctx, "akty", "run-a", 30*time.Second))
	alive, err = reg.Alive(ctx, "akty")
	require.NoError(t, err)
	assert.True(t, alive)

	mr.FastForward(31 * time.Second)
	alive, err = reg.Alive(ctx, "akty")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	ok, err := reg.CompareAndRegister(ctx, "fb", "", "run-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.CompareAndRegister(ctx, "fb", "other", "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	active, _ := reg.Active(ctx, "fb")
	assert.Equal(t, "run-a", active)

	require.NoError(t, reg.Heartbeat(ctx, "fb", "run-a", time.Minute))
	alive, _ := reg.Alive(ctx, "fb")
	assert.True(t, alive)
	alive, _ = reg.Alive(ctx, "akty")
	assert.False(t, alive)
}

func TestRedisTaskControl_RevokePublishes(t *testing.T) {
	client, _ := setupRedis(t)
	tc := NewRedisTaskControl(client, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	revocations, err := tc.Revocations(ctx)
	require.NoError(t, err)

	require.NoError(t, tc.Revoke(ctx, "run-a"))

	select {
	case id := <-revocations:
		assert.Equal(t, "run-a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("revocation was not delivered")
	}

	revoked, err := tc.Revoked(ctx, "run-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = tc.Revoked(ctx, "run-b")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisTaskControl_MetaLifecycle(t *testing.T) {
	client, _ := setupRedis(t)
	tc := NewRedisTaskControl(client, "revoke")
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"run-a", "run-b"} {
		require.NoError(t, tc.SaveMeta(ctx, TaskMeta{RunID: id, Source: "fb", Status: TaskRunning, StartedAt: started}))
	}

	meta, err := tc.Meta(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "fb", meta.Source)
	assert.Equal(t, TaskRunning, meta.Status)
	assert.True(t, meta.StartedAt.Equal(started))

	require.NoError(t, tc.Forget(ctx, "run-a"))
	_, err = tc.Meta(ctx, "run-a")
	assert.ErrorIs(t, err, redis.Nil)

	n, err := tc.ForgetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = tc.ForgetAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryTaskControl(t *testing.T) {
	tc := NewMemoryTaskControl()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	revocations, err := tc.Revocations(ctx)
	require.NoError(t, err)
	require.NoError(t, tc.Revoke(ctx, "run-a"))
	assert.Equal(t, "run-a", <-revocations)

	require.NoError(t, tc.SaveMeta(ctx, TaskMeta{RunID: "run-b"}))
	n, err := tc.ForgetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCoordinator_FirstRegistrationHasNoHandover(t *testing.T) {
	reg := NewMemoryRegistry()
	c, clock, _ := newTestCoordinator(reg, NewMemoryTaskControl())

	h, err := c.BeginRun(context.Background(), "fb", "run-a", false)
	require.NoError(t, err)
	assert.Empty(t, h.PreviousRunID)
	assert.Nil(t, h.Pending)
	assert.Empty(t, clock.timers)

	active, _ := reg.Active(context.Background(), "fb")
	assert.Equal(t, "run-a", active)
}

func TestCoordinator_SupersededRunStopsOnlyAfterGrace(t *testing.T) {
	reg := NewMemoryRegistry()
	tasks := &recordingTasks{MemoryTaskControl: NewMemoryTaskControl()}
	c, clock, _ := newTestCoordinator(reg, tasks)
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	require.NoError(t, tasks.SaveMeta(ctx, TaskMeta{RunID: "run-a"}))

	h, err := c.BeginRun(ctx, "fb", "run-b", false)
	require.NoError(t, err)
	require.NotNil(t, h.Pending)
	assert.Equal(t, "run-a", h.Pending.RunID)
	assert.Equal(t, 60*time.Second, h.Pending.Delay)

	active, _ := reg.Active(ctx, "fb")
	assert.Equal(t, "run-b", active, "successor is registered immediately")

	require.Len(t, clock.timers, 1)
	assert.Equal(t, 60*time.Second, clock.timers[0].delay)
	assert.Empty(t, tasks.revokedIDs(), "superseded run must keep running during grace")
	assert.Equal(t, []string{"run-a"}, c.PendingStops())

	clock.fire(0)

	assert.Equal(t, []string{"run-a"}, tasks.revokedIDs())
	assert.Empty(t, c.PendingStops())
	_, found := tasks.Meta("run-a")
	assert.False(t, found, "metadata of the stopped run is forgotten")
}

func TestCoordinator_StopSkippedWhenRunIsActiveAgain(t *testing.T) {
	reg := NewMemoryRegistry()
	tasks := &recordingTasks{MemoryTaskControl: NewMemoryTaskControl()}
	c, clock, _ := newTestCoordinator(reg, tasks)
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	_, err := c.BeginRun(ctx, "fb", "run-b", false)
	require.NoError(t, err)

	setActive(reg, "fb", "run-a")
	clock.fire(0)

	assert.Empty(t, tasks.revokedIDs())
}

func TestCoordinator_FirstRunSkipsHandover(t *testing.T) {
	reg := NewMemoryRegistry()
	c, clock, _ := newTestCoordinator(reg, NewMemoryTaskControl())
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	h, err := c.BeginRun(ctx, "fb", "run-b", true)
	require.NoError(t, err)
	assert.Equal(t, "run-a", h.PreviousRunID)
	assert.Nil(t, h.Pending)
	assert.Empty(t, clock.timers)
}

func TestCoordinator_SameRunIDSkipsHandover(t *testing.T) {
	reg := NewMemoryRegistry()
	c, clock, _ := newTestCoordinator(reg, NewMemoryTaskControl())
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	h, err := c.BeginRun(ctx, "fb", "run-a", false)
	require.NoError(t, err)
	assert.Nil(t, h.Pending)
	assert.Empty(t, clock.timers)
}

func TestCoordinator_StopRetries(t *testing.T) {
	reg := NewMemoryRegistry()
	tasks := &recordingTasks{MemoryTaskControl: NewMemoryTaskControl(), failFor: 2}
	c, clock, sleeps := newTestCoordinator(reg, tasks)
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	_, err := c.BeginRun(ctx, "fb", "run-b", false)
	require.NoError(t, err)
	clock.fire(0)

	assert.Equal(t, []string{"run-a"}, tasks.revokedIDs())
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, *sleeps)
}

func TestCoordinator_StopGivesUpAfterRetries(t *testing.T) {
	reg := NewMemoryRegistry()
	tasks := &recordingTasks{MemoryTaskControl: NewMemoryTaskControl(), failFor: 10}
	c, clock, sleeps := newTestCoordinator(reg, tasks)
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	_, err := c.BeginRun(ctx, "fb", "run-b", false)
	require.NoError(t, err)
	clock.fire(0)

	assert.Empty(t, tasks.revokedIDs())
	assert.Len(t, *sleeps, 4)
}

// setActive records runID as the active run whatever was registered before.
func setActive(reg *MemoryRegistry, source, runID string) {
	reg.cache.Set(ActiveKey(source), runID, cache.NoExpiration)
}

// racingRegistry changes the active run between the read and the write.
type racingRegistry struct {
	*MemoryRegistry
	races int
}

func (r *racingRegistry) CompareAndRegister(ctx context.Context, source, expected, runID string) (bool, error) {
	if r.races > 0 {
		r.races--
		setActive(r.MemoryRegistry, source, "intruder")
	}
	return r.MemoryRegistry.CompareAndRegister(ctx, source, expected, runID)
}

func TestCoordinator_RegistrationRereadsOnConflict(t *testing.T) {
	reg := &racingRegistry{MemoryRegistry: NewMemoryRegistry(), races: 1}
	c, clock, _ := newTestCoordinator(reg, NewMemoryTaskControl())

	h, err := c.BeginRun(context.Background(), "fb", "run-b", false)
	require.NoError(t, err)
	assert.Equal(t, "intruder", h.PreviousRunID)
	require.Len(t, clock.timers, 1)
}

func TestCoordinator_RegistrationConflict(t *testing.T) {
	reg := &racingRegistry{MemoryRegistry: NewMemoryRegistry(), races: 10}
	c, _, _ := newTestCoordinator(reg, NewMemoryTaskControl())

	_, err := c.BeginRun(context.Background(), "fb", "run-b", false)
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestCoordinator_ShutdownDropsPendingStops(t *testing.T) {
	reg := NewMemoryRegistry()
	tasks := &recordingTasks{MemoryTaskControl: NewMemoryTaskControl()}
	c, clock, _ := newTestCoordinator(reg, tasks)
	ctx := context.Background()

	setActive(reg, "fb", "run-a")
	_, err := c.BeginRun(ctx, "fb", "run-b", false)
	require.NoError(t, err)

	c.Shutdown()
	assert.True(t, clock.timers[0].stopped)
	assert.Empty(t, c.PendingStops())
	assert.Empty(t, tasks.revokedIDs())
}

func TestSupervisor_RetriesThenStops(t *testing.T) {
	s := NewSupervisor(5, time.Minute, quietLogger())
	var sleeps []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	var attempts []int
	err := s.Run(context.Background(), "fb", "run-a", func(_ context.Context, n int) runner.Outcome {
		attempts = append(attempts, n)
		if n < 3 {
			return runner.Outcome{Kind: runner.OutcomeRetryable, Err: errors.New("page gone")}
		}
		return runner.Outcome{Kind: runner.OutcomeStopped}
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, sleeps)
}

func TestSupervisor_Exhausted(t *testing.T) {
	s := NewSupervisor(5, time.Minute, quietLogger())
	var sleeps int
	s.sleep = func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}

	cause := errors.New("page gone")
	calls := 0
	err := s.Run(context.Background(), "fb", "run-a", func(context.Context, int) runner.Outcome {
		calls++
		return runner.Outcome{Kind: runner.OutcomeRetryable, Err: cause}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 4, sleeps)
}

func TestSupervisor_FatalStopsImmediately(t *testing.T) {
	s := NewSupervisor(5, time.Minute, quietLogger())
	s.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	err := s.Run(context.Background(), "fb", "run-a", func(context.Context, int) runner.Outcome {
		calls++
		return runner.Outcome{Kind: runner.OutcomeFatal, Err: runner.ErrFatal}
	})

	assert.ErrorIs(t, err, runner.ErrFatal)
	assert.Equal(t, 1, calls)
}

// blockingWorker runs until its context is cancelled.
type blockingWorker struct {
	started chan struct{}
	closed  chan struct{}
	hook    runner.CycleHook
}

func (w *blockingWorker) Run(ctx context.Context) runner.Outcome {
	w.hook.AfterCycle(ctx, runner.CycleReport{})
	close(w.started)
	<-ctx.Done()
	return runner.Outcome{Kind: runner.OutcomeStopped}
}

func (w *blockingWorker) Close() error {
	close(w.closed)
	return nil
}

func newTestManager(t *testing.T) (*TaskManager, *MemoryRegistry, *MemoryTaskControl, chan *blockingWorker) {
	t.Helper()
	reg := NewMemoryRegistry()
	tasks := NewMemoryTaskControl()
	coord, _, _ := newTestCoordinator(reg, tasks)

	workers := make(chan *blockingWorker, 4)
	factory := func(_ context.Context, _ models.Source, _ string, hook runner.CycleHook) (Worker, error) {
		w := &blockingWorker{started: make(chan struct{}), closed: make(chan struct{}), hook: hook}
		workers <- w
		return w, nil
	}

	cfg := ManagerConfig{RunRetries: 1, RunRetryDelay: time.Millisecond, HeartbeatTTL: time.Minute}
	m := NewTaskManager(coord, reg, tasks, factory, cfg, quietLogger())
	ids := []string{"run-1", "run-2", "run-3"}
	var mu sync.Mutex
	m.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		ids = ids[1:]
		return id
	}
	t.Cleanup(m.Shutdown)
	return m, reg, tasks, workers
}

func TestTaskManager_LaunchRegistersAndHeartbeats(t *testing.T) {
	m, reg, tasks, workers := newTestManager(t)
	ctx := context.Background()

	runID, err := m.Launch(ctx, models.SourceFB, false)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	w := <-workers
	<-w.started

	active, _ := reg.Active(ctx, "fb")
	assert.Equal(t, "run-1", active)
	alive, _ := reg.Alive(ctx, "fb")
	assert.True(t, alive)
	assert.True(t, m.Running("fb"))
	assert.False(t, m.Running("akty"))

	runs := m.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Attempt)

	_, found := tasks.cache.Get(TaskMetaKey("run-1"))
	assert.True(t, found)

	statuses, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"fb": "run-1", "akty": ""}, statuses)
}

func TestTaskManager_CancelStopsRunAndForgetsMeta(t *testing.T) {
	m, _, tasks, workers := newTestManager(t)

	runID, err := m.Launch(context.Background(), models.SourceFB, false)
	require.NoError(t, err)
	w := <-workers
	<-w.started

	assert.True(t, m.Cancel(runID))
	<-w.closed
	m.Wait()

	assert.False(t, m.Running("fb"))
	assert.Empty(t, m.Runs())
	_, found := tasks.Meta(runID)
	assert.False(t, found)
	assert.False(t, m.Cancel("unknown"))
}

func TestTaskManager_RevocationCancelsLocalRun(t *testing.T) {
	m, _, tasks, workers := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listening := make(chan error, 1)
	go func() { listening <- m.ListenRevocations(ctx) }()

	runID, err := m.Launch(ctx, models.SourceAkty, false)
	require.NoError(t, err)
	w := <-workers
	<-w.started

	require.Eventually(t, func() bool {
		tasks.mu.Lock()
		defer tasks.mu.Unlock()
		return len(tasks.subscribers) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, tasks.Revoke(ctx, runID))

	select {
	case <-w.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("revoked run kept running")
	}
	cancel()
	assert.NoError(t, <-listening)
}

func TestTaskManager_LaunchAfterShutdown(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	m.Shutdown()

	_, err := m.Launch(context.Background(), models.SourceFB, false)
	assert.ErrorIs(t, err, ErrManagerStopped)
}

type recordingLauncher struct {
	mu       sync.Mutex
	launched []string
	firstRun []bool
	running  map[string]bool
}

func (l *recordingLauncher) Running(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running[source]
}

func (l *recordingLauncher) Launch(_ context.Context, source models.Source, firstRun bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, source.Name)
	l.firstRun = append(l.firstRun, firstRun)
	return "run-" + source.Name, nil
}

type countingFlusher struct{ flushes int }

func (f *countingFlusher) Flush(context.Context) error {
	f.flushes++
	return nil
}

type countingResetter struct{ resets int }

func (r *countingResetter) ResetMatches(context.Context) error {
	r.resets++
	return nil
}

func TestBootstrapper_FirstRunResetsAndLaunchesInOrder(t *testing.T) {
	reg := NewMemoryRegistry()
	tasks := NewMemoryTaskControl()
	require.NoError(t, tasks.SaveMeta(context.Background(), TaskMeta{RunID: "stale"}))

	flusher := &countingFlusher{}
	resetter := &countingResetter{}
	launcher := &recordingLauncher{}
	b := NewBootstrapper(reg, tasks, flusher, resetter, launcher, DefaultPlan(), quietLogger())
	var sleeps []time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	ids, err := b.Start(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, []string{"run-fb", "run-akty"}, ids)
	assert.Equal(t, []string{"fb", "akty"}, launcher.launched)
	assert.Equal(t, []bool{true, true}, launcher.firstRun)
	assert.Equal(t, []time.Duration{30 * time.Second, 90 * time.Second}, sleeps)
	assert.Equal(t, 1, flusher.flushes)
	assert.Equal(t, 1, resetter.resets)
	_, found := tasks.Meta("stale")
	assert.False(t, found)
}

func TestBootstrapper_SkipsLiveSources(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Heartbeat(context.Background(), "fb", "run-a", time.Minute))

	flusher := &countingFlusher{}
	launcher := &recordingLauncher{}
	b := NewBootstrapper(reg, NewMemoryTaskControl(), flusher, nil, launcher, DefaultPlan(), quietLogger())
	var sleeps []time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	_, err := b.Start(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"akty"}, launcher.launched)
	assert.Equal(t, []time.Duration{90 * time.Second}, sleeps)
	assert.Zero(t, flusher.flushes)
}

func TestBootstrapper_SkipsSourcesRunningLocally(t *testing.T) {
	launcher := &recordingLauncher{running: map[string]bool{"fb": true}}
	b := NewBootstrapper(NewMemoryRegistry(), NewMemoryTaskControl(), &countingFlusher{}, nil, launcher, DefaultPlan(), quietLogger())
	b.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := b.Start(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"akty"}, launcher.launched)
}

func TestBootstrapper_SupervisionLeavesQuietLocalRunAlone(t *testing.T) {
	m, reg, tasks, workers := newTestManager(t)
	ctx := context.Background()

	runID, err := m.Launch(ctx, models.SourceFB, false)
	require.NoError(t, err)
	w := <-workers
	<-w.started

	// A run between attempts or retrying extraction sends no heartbeat.
	reg.cache.Delete(HeartbeatKey("fb"))
	alive, _ := reg.Alive(ctx, "fb")
	require.False(t, alive)

	plan := []SourcePlan{{Source: models.SourceFB, Delay: 30 * time.Second}}
	b := NewBootstrapper(reg, tasks, &countingFlusher{}, nil, m, plan, quietLogger())
	b.sleep = func(context.Context, time.Duration) error { return nil }

	ids, err := b.Start(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, workers, "no second worker was built")

	active, _ := reg.Active(ctx, "fb")
	assert.Equal(t, runID, active)
	_, found := tasks.Meta(runID)
	assert.True(t, found)
}

func TestBootstrapper_RechecksAfterDelay(t *testing.T) {
	reg := NewMemoryRegistry()
	launcher := &recordingLauncher{}
	plan := []SourcePlan{{Source: models.SourceFB, Delay: 30 * time.Second}}
	b := NewBootstrapper(reg, NewMemoryTaskControl(), &countingFlusher{}, nil, launcher, plan, quietLogger())
	b.sleep = func(ctx context.Context, _ time.Duration) error {
		return reg.Heartbeat(ctx, "fb", "someone-else", time.Minute)
	}

	ids, err := b.Start(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, launcher.launched)
}

func TestBootstrapper_CancelledDuringDelay(t *testing.T) {
	launcher := &recordingLauncher{}
	b := NewBootstrapper(NewMemoryRegistry(), NewMemoryTaskControl(), &countingFlusher{}, nil, launcher, DefaultPlan(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Start(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, launcher.launched)
}

func TestPlanFrom(t *testing.T) {
	plan, err := PlanFrom([]config.SourceConfig{
		{Name: "fb", Enabled: true, StartDelaySeconds: 30},
		{Name: "akty", Enabled: false, StartDelaySeconds: 90},
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, models.SourceFB, plan[0].Source)
	assert.Equal(t, 30*time.Second, plan[0].Delay)

	_, err = PlanFrom([]config.SourceConfig{{Name: "nowhere", Enabled: true}})
	assert.ErrorIs(t, err, models.ErrUnknownSource)
}

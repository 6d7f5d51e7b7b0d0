package container

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock advances instantly instead of sleeping and counts the sleeps it
// was asked for.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRuntime records calls and answers Inspect from a scriptable table.
type fakeRuntime struct {
	mu       sync.Mutex
	statuses map[string]Status
	inspects map[string]int
	stopped  []string
	killed   []string
	removed  []string

	stopErr    map[string]error
	killErr    map[string]error
	inspectErr map[string]error
	onInspect  func(ref string, calls int) (Status, bool)
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		statuses:   make(map[string]Status),
		inspects:   make(map[string]int),
		stopErr:    make(map[string]error),
		killErr:    make(map[string]error),
		inspectErr: make(map[string]error),
	}
}

func (f *fakeRuntime) setStatus(ref string, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[ref] = status
}

func (f *fakeRuntime) Run(_ context.Context, spec RunSpec) (*Handle, error) {
	handle := &Handle{
		Name:  spec.Name,
		lines: make(chan string),
		done:  make(chan ExitStatus, 1),
	}
	close(handle.lines)
	handle.done <- ExitStatus{Code: 0}
	return handle, nil
}

func (f *fakeRuntime) Inspect(_ context.Context, ref string) (Status, error) {
	f.mu.Lock()
	f.inspects[ref]++
	calls := f.inspects[ref]
	hook := f.onInspect
	err := f.inspectErr[ref]
	status := f.statuses[ref]
	f.mu.Unlock()

	if err != nil {
		return Status{}, err
	}
	if hook != nil {
		if st, ok := hook(ref, calls); ok {
			return st, nil
		}
	}
	return status, nil
}

func (f *fakeRuntime) Stop(_ context.Context, ref string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, ref)
	return f.stopErr[ref]
}

func (f *fakeRuntime) Kill(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, ref)
	return f.killErr[ref]
}

func (f *fakeRuntime) Remove(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ref)
	return nil
}

func newTestRegistry(runtime Runtime, clk *fakeClock) *Registry {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, Multiplier: 2}
	return NewRegistryWith(zap.NewNop(), runtime, nil, clk, policy, time.Second)
}

func TestTrackOverwritesWithoutDuplicates(t *testing.T) {
	reg := newTestRegistry(newFakeRuntime(), newFakeClock())

	reg.Track(Record{ID: "c1", Name: "worker", Category: CategoryBuild})
	reg.Track(Record{ID: "c1", Name: "worker-renamed", Category: CategoryFuzzRun})

	active := reg.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "worker-renamed", active[0].Name)
	assert.Equal(t, CategoryFuzzRun, active[0].Category)
}

func TestTrackWithoutIDIsIgnored(t *testing.T) {
	reg := newTestRegistry(newFakeRuntime(), newFakeClock())

	reg.Track(Record{Name: "nameless"})
	assert.Empty(t, reg.ListActive())
}

func TestTrackFillsCreatedAtFromClock(t *testing.T) {
	clk := newFakeClock()
	reg := newTestRegistry(newFakeRuntime(), clk)

	reg.Track(Record{ID: "c1", Name: "worker"})
	active := reg.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, clk.Now(), active[0].CreatedAt)
}

func TestUntrackIsIdempotent(t *testing.T) {
	reg := newTestRegistry(newFakeRuntime(), newFakeClock())

	reg.Track(Record{ID: "c1", Name: "worker"})
	reg.Untrack("c1")
	reg.Untrack("c1")
	reg.Untrack("never-tracked")
	assert.Empty(t, reg.ListActive())
}

func TestIsRunningFallsBackToName(t *testing.T) {
	runtime := newFakeRuntime()
	reg := newTestRegistry(runtime, newFakeClock())

	reg.Track(Record{ID: "c1", Name: "worker"})
	runtime.setStatus("worker", Status{Exists: true, Running: true, ID: "abc123"})

	assert.True(t, reg.IsRunning(context.Background(), "c1"))
}

func TestIsRunningQueryFailureMeansNotRunning(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.inspectErr["c1"] = errors.New("daemon unreachable")
	reg := newTestRegistry(runtime, newFakeClock())

	reg.Track(Record{ID: "c1", Name: "worker"})
	runtime.inspectErr["worker"] = errors.New("daemon unreachable")

	assert.False(t, reg.IsRunning(context.Background(), "c1"))
}

func TestStopEscalatesToKill(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.setStatus("c1", Status{Exists: true, Running: true, ID: "c1"})
	runtime.stopErr["c1"] = errors.New("stop timed out")
	reg := newTestRegistry(runtime, newFakeClock())

	reg.Track(Record{ID: "c1", Name: "worker"})
	err := reg.Stop(context.Background(), "c1", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, runtime.stopped)
	assert.Equal(t, []string{"c1"}, runtime.killed)
	assert.Equal(t, []string{"c1"}, runtime.removed)
	assert.Empty(t, reg.ListActive(), "record must be gone even after escalation")
}

func TestStopReportsKillFailureButStillUntracks(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.setStatus("c1", Status{Exists: true, Running: true, ID: "c1"})
	runtime.stopErr["c1"] = errors.New("stop timed out")
	runtime.killErr["c1"] = errors.New("kill failed")
	reg := newTestRegistry(runtime, newFakeClock())

	reg.Track(Record{ID: "c1", Name: "worker"})
	err := reg.Stop(context.Background(), "c1", false)
	require.Error(t, err)
	assert.Empty(t, reg.ListActive())
}

func TestTerminateAllCountsPartialFailures(t *testing.T) {
	runtime := newFakeRuntime()
	reg := newTestRegistry(runtime, newFakeClock())

	for _, id := range []string{"c1", "c2", "c3"} {
		runtime.setStatus(id, Status{Exists: true, Running: true, ID: id})
		reg.Track(Record{ID: id, Name: "worker-" + id})
	}
	runtime.stopErr["c2"] = errors.New("stop timed out")
	runtime.killErr["c2"] = errors.New("kill failed")

	report := reg.TerminateAll(context.Background(), true)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Empty(t, reg.ListActive(), "registry must be empty regardless of per-container outcome")
}

func TestTerminateAllOnEmptyRegistry(t *testing.T) {
	reg := newTestRegistry(newFakeRuntime(), newFakeClock())

	report := reg.TerminateAll(context.Background(), true)
	assert.Equal(t, TerminateReport{}, report)
}

func TestCleanupOrphanedDropsDeadRecords(t *testing.T) {
	runtime := newFakeRuntime()
	reg := newTestRegistry(runtime, newFakeClock())

	runtime.setStatus("alive", Status{Exists: true, Running: true, ID: "alive"})
	runtime.setStatus("dead", Status{Exists: true, Running: false, ID: "dead"})
	reg.Track(Record{ID: "alive", Name: "alive"})
	reg.Track(Record{ID: "dead", Name: "dead"})
	reg.Track(Record{ID: "gone", Name: "gone"})

	removed := reg.CleanupOrphaned(context.Background())
	assert.Equal(t, 2, removed)

	active := reg.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "alive", active[0].ID)
}

func TestTrackLaunchedAdoptsSlowStarter(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.onInspect = func(ref string, calls int) (Status, bool) {
		if ref != "debug-1" {
			return Status{}, false
		}
		if calls < 3 {
			return Status{}, true
		}
		return Status{Exists: true, Running: true, ID: "resolved-id"}, true
	}
	clk := newFakeClock()
	reg := newTestRegistry(runtime, clk)

	ok := reg.TrackLaunched(context.Background(), "debug-1", "/ws", "img", CategoryDebug)
	require.True(t, ok)

	active := reg.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "resolved-id", active[0].ID)
	assert.Equal(t, "debug-1", active[0].Name)
	assert.Equal(t, CategoryDebug, active[0].Category)
	assert.Len(t, clk.sleeps, 2, "two backoff sleeps before the third attempt succeeded")
}

func TestTrackLaunchedGivesUpWhenNeverCreated(t *testing.T) {
	runtime := newFakeRuntime()
	clk := newFakeClock()
	reg := newTestRegistry(runtime, clk)

	ok := reg.TrackLaunched(context.Background(), "debug-1", "/ws", "img", CategoryDebug)
	assert.False(t, ok)
	assert.Empty(t, reg.ListActive())
	assert.Equal(t, 4, runtime.inspects["debug-1"], "bounded by the retry schedule")
}

func TestTrackLaunchedGivesUpWhenExitedEarly(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.setStatus("debug-1", Status{Exists: true, Running: false, ID: "dead-id"})
	reg := newTestRegistry(runtime, newFakeClock())

	ok := reg.TrackLaunched(context.Background(), "debug-1", "/ws", "img", CategoryDebug)
	assert.False(t, ok)
	assert.Empty(t, reg.ListActive())
}

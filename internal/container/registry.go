package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeforge/config"
	"codeforge/pkg/clock"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Category tags partition tracked containers by the workflow stage that
// launched them.
const (
	CategoryDiscovery = "discovery"
	CategoryBuild     = "build"
	CategoryFuzzRun   = "fuzz-run"
	CategoryDebug     = "debug-session"
)

// Record is one tracked container. A record exists only while the container
// is believed to be running or exiting.
type Record struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	WorkspaceRoot string            `json:"workspace_root"`
	CreatedAt     time.Time         `json:"created_at"`
	Category      string            `json:"category"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TerminateReport summarizes a TerminateAll sweep.
type TerminateReport struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    []error
}

// Registry tracks every container the engine starts so stop/status/cleanup
// operations act on the right instances. Bookkeeping never fails the
// user-visible action it supports: runtime query errors degrade to "not
// running" and tracking errors are logged, not raised.
type Registry struct {
	logger      *zap.Logger
	runtime     Runtime
	journal     Journal // nil when no durable log is configured
	clock       clock.Clock
	retry       RetryPolicy
	stopTimeout time.Duration

	mu      sync.Mutex
	records map[string]Record
}

type RegistryParams struct {
	fx.In

	Logger    *zap.Logger
	Runtime   Runtime
	Journal   Journal `optional:"true"`
	AppConfig *config.AppConfig
}

func NewRegistry(p RegistryParams) *Registry {
	return &Registry{
		logger:      p.Logger.Named("registry"),
		runtime:     p.Runtime,
		journal:     p.Journal,
		clock:       clock.New(),
		retry:       DefaultRetryPolicy(),
		stopTimeout: p.AppConfig.StopTimeout,
		records:     make(map[string]Record),
	}
}

// NewRegistryWith builds a registry with explicit collaborators. Tests use
// it to inject a fake runtime, clock and retry schedule.
func NewRegistryWith(logger *zap.Logger, runtime Runtime, journal Journal, clk clock.Clock, retry RetryPolicy, stopTimeout time.Duration) *Registry {
	return &Registry{
		logger:      logger.Named("registry"),
		runtime:     runtime,
		journal:     journal,
		clock:       clk,
		retry:       retry,
		stopTimeout: stopTimeout,
		records:     make(map[string]Record),
	}
}

// Track inserts or overwrites the record for rec.ID. A missing identifier
// is logged and ignored so tracking never blocks the caller's workflow.
func (r *Registry) Track(rec Record) {
	if rec.ID == "" {
		r.logger.Error("refusing to track container without identifier",
			zap.String("name", rec.Name), zap.String("category", rec.Category))
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock.Now()
	}

	r.mu.Lock()
	r.records[rec.ID] = rec
	r.mu.Unlock()

	r.logger.Debug("tracking container",
		zap.String("id", rec.ID), zap.String("name", rec.Name), zap.String("category", rec.Category))

	if r.journal != nil {
		if err := r.journal.Append(context.Background(), rec); err != nil {
			r.logger.Warn("failed to journal container", zap.String("id", rec.ID), zap.Error(err))
		}
	}
}

// Untrack removes the record for id. Idempotent.
func (r *Registry) Untrack(id string) {
	r.mu.Lock()
	_, existed := r.records[id]
	delete(r.records, id)
	r.mu.Unlock()

	if existed {
		r.logger.Debug("untracked container", zap.String("id", id))
	}
	if r.journal != nil {
		if err := r.journal.Remove(context.Background(), id); err != nil {
			r.logger.Warn("failed to remove journal entry", zap.String("id", id), zap.Error(err))
		}
	}
}

// ListActive returns a snapshot of all tracked records.
func (r *Registry) ListActive() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// IsRunning reports whether the container tracked under id is running,
// checking the runtime by identifier and by exact name. Query failures mean
// "not running": the caller needs a binary decision, not diagnostics.
func (r *Registry) IsRunning(ctx context.Context, id string) bool {
	status, err := r.runtime.Inspect(ctx, id)
	if err != nil {
		r.logger.Debug("inspect by id failed", zap.String("id", id), zap.Error(err))
	} else if status.Running {
		return true
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	r.mu.Unlock()
	if !ok || rec.Name == "" || rec.Name == id {
		return false
	}

	status, err = r.runtime.Inspect(ctx, rec.Name)
	if err != nil {
		r.logger.Debug("inspect by name failed", zap.String("name", rec.Name), zap.Error(err))
		return false
	}
	return status.Running
}

// Stop gracefully stops the container, escalating to a forceful kill when
// the graceful stop fails or times out, and optionally removes it. The
// record is always untracked: a record for a container we can no longer
// control reliably is worse than losing tracking.
func (r *Registry) Stop(ctx context.Context, id string, remove bool) error {
	defer r.Untrack(id)

	ref := r.resolveRef(ctx, id)

	var stopErr error
	if err := r.runtime.Stop(ctx, ref, r.stopTimeout); err != nil {
		r.logger.Warn("graceful stop failed, killing", zap.String("id", id), zap.Error(err))
		if killErr := r.runtime.Kill(ctx, ref); killErr != nil {
			stopErr = fmt.Errorf("stop container %s: %w", id, killErr)
		}
	}

	if remove {
		if err := r.runtime.Remove(ctx, ref); err != nil && stopErr == nil {
			stopErr = fmt.Errorf("remove container %s: %w", id, err)
		}
	}
	return stopErr
}

// resolveRef maps a tracked id to the reference most likely to be accepted
// by the runtime, preferring a confirmed live identifier.
func (r *Registry) resolveRef(ctx context.Context, id string) string {
	status, err := r.runtime.Inspect(ctx, id)
	if err == nil && status.Exists {
		if status.ID != "" {
			return status.ID
		}
		return id
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	r.mu.Unlock()
	if ok && rec.Name != "" {
		if status, err := r.runtime.Inspect(ctx, rec.Name); err == nil && status.Exists && status.ID != "" {
			return status.ID
		}
	}
	return id
}

// TerminateAll stops every tracked container concurrently. One container's
// failure does not block the others, and the registry is empty afterwards
// regardless of per-container outcome.
func (r *Registry) TerminateAll(ctx context.Context, remove bool) TerminateReport {
	records := r.ListActive()
	report := TerminateReport{Total: len(records)}

	var wg sync.WaitGroup
	errChan := make(chan error, len(records))
	for _, rec := range records {
		wg.Add(1)
		go func(rec Record) {
			defer wg.Done()
			if err := r.Stop(ctx, rec.ID, remove); err != nil {
				errChan <- fmt.Errorf("%s (%s): %w", rec.Name, rec.ID, err)
			}
		}(rec)
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		report.Errors = append(report.Errors, err)
	}
	report.Failed = len(report.Errors)
	report.Succeeded = report.Total - report.Failed
	return report
}

// CleanupOrphaned untracks every record whose container the runtime no
// longer reports as live. Returns the number removed.
func (r *Registry) CleanupOrphaned(ctx context.Context) int {
	removed := 0
	for _, rec := range r.ListActive() {
		if !r.IsRunning(ctx, rec.ID) {
			r.Untrack(rec.ID)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("cleaned up orphaned container records", zap.Int("removed", removed))
	}
	return removed
}

// TrackLaunched adopts a container that was started through a path without a
// direct process handle (an interactive terminal, typically). It polls the
// runtime for a container matching name with bounded backoff and reports
// whether tracking succeeded.
func (r *Registry) TrackLaunched(ctx context.Context, name, workspaceRoot, image, category string) bool {
	var last Status
	found := r.retry.Run(ctx, r.clock, func(attempt int) bool {
		status, err := r.runtime.Inspect(ctx, name)
		if err != nil {
			r.logger.Debug("inspect during launch tracking failed",
				zap.String("name", name), zap.Int("attempt", attempt+1), zap.Error(err))
			return false
		}
		last = status
		return status.Running
	})

	if !found {
		if last.Exists {
			r.logger.Warn("container exists but is not running, giving up tracking",
				zap.String("name", name))
		} else {
			r.logger.Warn("container was never created, giving up tracking",
				zap.String("name", name))
		}
		return false
	}

	id := last.ID
	if id == "" {
		id = name
	}
	r.Track(Record{
		ID:            id,
		Name:          name,
		Image:         image,
		WorkspaceRoot: workspaceRoot,
		Category:      category,
	})
	return true
}

// AdoptJournal replays the durable journal left by a previous process,
// re-tracking containers that are still running and dropping stale entries.
// Returns the number of records adopted.
func (r *Registry) AdoptJournal(ctx context.Context) int {
	if r.journal == nil {
		return 0
	}
	records, err := r.journal.Replay(ctx)
	if err != nil {
		r.logger.Warn("journal replay failed", zap.Error(err))
		return 0
	}

	adopted := 0
	for _, rec := range records {
		status, err := r.runtime.Inspect(ctx, rec.ID)
		if err == nil && status.Running {
			r.mu.Lock()
			r.records[rec.ID] = rec
			r.mu.Unlock()
			adopted++
			continue
		}
		if err := r.journal.Remove(ctx, rec.ID); err != nil {
			r.logger.Warn("failed to drop stale journal entry", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	if adopted > 0 {
		r.logger.Info("adopted containers from journal", zap.Int("adopted", adopted))
	}
	return adopted
}

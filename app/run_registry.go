package app

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"floodcv/domain/core"
	"floodcv/internal"
	"floodcv/internal/tuning"
)

// RunStatus is the lifecycle state of a background run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunComplete  RunStatus = "complete"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunFunc is the work of a background run. It reports progress through the
// callback and returns the run's result.
type RunFunc func(ctx context.Context, progress tuning.ProgressFunc) (interface{}, error)

// RunSnapshot is a copy of a run's state.
type RunSnapshot struct {
	ID         core.RunID       `json:"id"`
	Kind       string           `json:"kind"`
	Status     RunStatus        `json:"status"`
	Progress   *tuning.Progress `json:"progress,omitempty"`
	Error      string           `json:"error,omitempty"`
	Result     interface{}      `json:"result,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// RunObserver is notified of every progress update and of run completion.
type RunObserver interface {
	RunUpdated(snapshot RunSnapshot)
}

type run struct {
	snapshot RunSnapshot
	cancel   context.CancelFunc
	done     chan struct{}
}

// RunRegistry tracks background runs.
type RunRegistry struct {
	mu       sync.RWMutex
	runs     map[core.RunID]*run
	observer RunObserver
	logger   *internal.Logger
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry(logger *internal.Logger) *RunRegistry {
	return &RunRegistry{runs: make(map[core.RunID]*run), logger: logger.Named("RunRegistry")}
}

// SetObserver registers the observer of run updates. Call it before
// starting runs.
func (r *RunRegistry) SetObserver(o RunObserver) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

func (r *RunRegistry) notify(snap RunSnapshot, o RunObserver) {
	if o != nil {
		o.RunUpdated(snap)
	}
}

// Start launches fn in a goroutine detached from the caller's cancellation.
func (r *RunRegistry) Start(parent context.Context, kind string, fn RunFunc) RunSnapshot {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	entry := &run{
		snapshot: RunSnapshot{ID: core.NewRunID(), Kind: kind, Status: RunRunning, StartedAt: time.Now().UTC()},
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	r.runs[entry.snapshot.ID] = entry
	snap := entry.snapshot
	r.mu.Unlock()

	r.logger.Info("started %s run %s", kind, snap.ID)
	go func() {
		defer close(entry.done)
		defer cancel()
		result, err := fn(ctx, func(p tuning.Progress) {
			r.mu.Lock()
			entry.snapshot.Progress = &p
			snap, o := entry.snapshot, r.observer
			r.mu.Unlock()
			r.notify(snap, o)
		})
		r.notify(r.finish(entry, result, err))
	}()
	return snap
}

func (r *RunRegistry) finish(entry *run, result interface{}, err error) (RunSnapshot, RunObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	entry.snapshot.FinishedAt = &now
	entry.snapshot.Result = result
	switch {
	case err == nil:
		entry.snapshot.Status = RunComplete
	case stderrors.Is(err, core.ErrSearchCancelled), stderrors.Is(err, context.Canceled):
		entry.snapshot.Status = RunCancelled
		entry.snapshot.Error = err.Error()
	default:
		entry.snapshot.Status = RunFailed
		entry.snapshot.Error = err.Error()
	}
	r.logger.Info("run %s finished: %s", entry.snapshot.ID, entry.snapshot.Status)
	return entry.snapshot, r.observer
}

// Get returns a snapshot of a run.
func (r *RunRegistry) Get(id core.RunID) (RunSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.runs[id]
	if !ok {
		return RunSnapshot{}, false
	}
	return entry.snapshot, true
}

// List returns snapshots of all runs, newest first.
func (r *RunRegistry) List() []RunSnapshot {
	r.mu.RLock()
	out := make([]RunSnapshot, 0, len(r.runs))
	for _, entry := range r.runs {
		out = append(out, entry.snapshot)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Cancel requests cancellation of a running run. The run keeps the trials
// recorded so far.
func (r *RunRegistry) Cancel(id core.RunID) error {
	r.mu.RLock()
	entry, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return core.NewNotFoundError("run", id.String())
	}
	entry.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx is done.
func (r *RunRegistry) Wait(ctx context.Context, id core.RunID) (RunSnapshot, error) {
	r.mu.RLock()
	entry, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return RunSnapshot{}, core.NewNotFoundError("run", id.String())
	}
	select {
	case <-entry.done:
	case <-ctx.Done():
		return RunSnapshot{}, ctx.Err()
	}
	snap, _ := r.Get(id)
	return snap, nil
}

// Package graphexecutor runs a load plan as a dependency graph: each
// resource is opened once, shared by every chunk that reads it, and
// released as soon as its last chunk finishes.
package graphexecutor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/executor"
	"github.com/vk/stacgridgo/internal/metrics"
	"github.com/vk/stacgridgo/internal/scheduler"
	"github.com/vk/stacgridgo/internal/task"
)

// Executor is the graph-scheduled executor.Executor.
type Executor struct {
	workers int
	metrics *metrics.Metrics
}

var _ executor.Executor = (*Executor)(nil)

// String names the executor in logs and metrics.
func (e *Executor) String() string { return "graph" }

// New creates an executor with the given worker count; non-positive means
// GOMAXPROCS.
func New(workers int, m *metrics.Metrics) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Executor{workers: workers, metrics: m}
}

// run is the state of one Execute call.
type run struct {
	plan     *task.Plan
	runner   executor.Runner
	sch      scheduler.Scheduler
	cancel   context.CancelFunc
	metrics  *metrics.Metrics
	progress executor.ProgressFunc

	// remaining counts unfinished dependent chunks per open task.
	remaining map[string]*atomic.Int32

	mu       sync.Mutex
	failures map[string]error
	started  map[string]bool
	released map[string]bool
	done     int
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, plan *task.Plan, r executor.Runner, progress executor.ProgressFunc) error {
	logger := ctxlog.FromContext(ctx)

	sch, err := scheduler.New(plan.Graph)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := &run{
		plan:      plan,
		runner:    r,
		sch:       sch,
		cancel:    cancel,
		metrics:   e.metrics,
		progress:  progress,
		remaining: make(map[string]*atomic.Int32, len(plan.Opens)),
		failures:  make(map[string]error),
		started:   make(map[string]bool),
		released:  make(map[string]bool),
	}
	for id := range plan.Opens {
		deps, err := plan.Graph.Dependents(id)
		if err != nil {
			return err
		}
		n := &atomic.Int32{}
		n.Store(int32(len(deps)))
		st.remaining[id] = n
	}
	// Resources whose last chunk never ran are released here.
	defer st.releaseAll(ctx)

	logger.Debug("Starting worker pool.", "workers", e.workers, "task_count", plan.Len())
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			st.worker(runCtx, workerID)
		}(i)
	}
	wg.Wait()
	logger.Debug("All tasks resolved.")

	if err := executor.RootCause(st.failures); err != nil {
		return err
	}
	return ctx.Err()
}

func (st *run) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for id := range st.sch.ReadyNodes() {
		t, _ := st.plan.Task(id)
		workerLogger := logger.With("workerID", workerID, "taskID", id)

		if ctx.Err() != nil {
			workerLogger.Debug("Context canceled, skipping task.")
			st.fail(ctx, t, ctx.Err(), 0)
			continue
		}

		workerLogger.Debug("Worker picked up task for execution.")
		if t.Kind == task.KindOpen {
			st.mu.Lock()
			st.started[id] = true
			st.mu.Unlock()
		}
		start := time.Now()
		err := st.runner.Run(ctx, t)
		if err != nil {
			workerLogger.Error("Task execution failed.", "error", err)
			st.cancel()
			st.fail(ctx, t, err, time.Since(start))
			continue
		}

		workerLogger.Debug("Task execution succeeded.")
		st.metrics.ObserveTask(t.Kind.String(), metrics.StatusCompleted, time.Since(start))
		st.sch.MarkCompleted(id)

		if t.Kind == task.KindChunk {
			st.chunkDone(ctx, t)
		}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

func (st *run) fail(ctx context.Context, t *task.Task, err error, d time.Duration) {
	status := metrics.StatusFailed
	if ctx.Err() != nil && err == ctx.Err() {
		status = metrics.StatusSkipped
	}
	st.metrics.ObserveTask(t.Kind.String(), status, d)

	skipped := st.sch.MarkFailed(t.ID)
	st.mu.Lock()
	st.failures[t.ID] = err
	for _, s := range skipped {
		st.failures[s] = executor.Skipped(t.ID)
	}
	st.mu.Unlock()
	if len(skipped) > 0 {
		ctxlog.FromContext(ctx).Warn("Skipping dependent tasks due to upstream failure.", "taskID", t.ID, "skipped_count", len(skipped))
	}
	for _, s := range skipped {
		if dt, ok := st.plan.Task(s); ok {
			st.metrics.ObserveTask(dt.Kind.String(), metrics.StatusSkipped, 0)
		}
	}
}

func (st *run) chunkDone(ctx context.Context, t *task.Task) {
	st.mu.Lock()
	st.done++
	done := st.done
	if st.progress != nil {
		st.progress(done, len(st.plan.Chunks))
	}
	st.mu.Unlock()

	for _, r := range t.Resources() {
		if st.remaining[r].Add(-1) == 0 {
			ctxlog.FromContext(ctx).Debug("Releasing resource after its last chunk.", "resource", r)
			st.release(ctx, r)
		}
	}
}

func (st *run) release(ctx context.Context, id string) {
	st.mu.Lock()
	if !st.started[id] || st.released[id] {
		st.mu.Unlock()
		return
	}
	st.released[id] = true
	st.mu.Unlock()

	// Release must not be skipped because the run was canceled.
	st.runner.Release(context.WithoutCancel(ctx), st.plan.Opens[id])
}

func (st *run) releaseAll(ctx context.Context) {
	st.mu.Lock()
	var ids []string
	for id := range st.started {
		if !st.released[id] {
			ids = append(ids, id)
		}
	}
	st.mu.Unlock()
	for _, id := range ids {
		st.release(ctx, id)
	}
}

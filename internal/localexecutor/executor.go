// Package localexecutor runs the chunk tasks of a load plan on a bounded
// in-process worker pool. Open tasks are not scheduled on their own: the
// first chunk that needs a resource runs its open task, later chunks share
// the reader, and the last chunk to finish with it releases it.
package localexecutor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/executor"
	"github.com/vk/stacgridgo/internal/metrics"
	"github.com/vk/stacgridgo/internal/task"
)

// Executor implements the executor.Executor interface for local execution.
type Executor struct {
	workers int
	metrics *metrics.Metrics
}

var _ executor.Executor = (*Executor)(nil)

// String names the executor in logs and metrics.
func (e *Executor) String() string { return "local" }

// New creates a new local executor; non-positive workers means GOMAXPROCS.
func New(workers int, m *metrics.Metrics) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Executor{workers: workers, metrics: m}
}

// shared is the open state of one resource within a run.
type shared struct {
	once  sync.Once
	err   error
	users int
	ran   bool
	freed bool
}

// resources reference-counts the open tasks of a run.
type resources struct {
	plan    *task.Plan
	runner  executor.Runner
	metrics *metrics.Metrics

	mu   sync.Mutex
	byID map[string]*shared
}

func newResources(plan *task.Plan, r executor.Runner, m *metrics.Metrics) *resources {
	rs := &resources{plan: plan, runner: r, metrics: m, byID: make(map[string]*shared, len(plan.Opens))}
	for _, c := range plan.Chunks {
		for _, id := range c.Resources() {
			s, ok := rs.byID[id]
			if !ok {
				s = &shared{}
				rs.byID[id] = s
			}
			s.users++
		}
	}
	return rs
}

// acquire runs the open task of every resource of c that is not open yet.
// Concurrent callers for one resource wait for the first to finish.
func (rs *resources) acquire(ctx context.Context, c *task.Task) error {
	for _, id := range c.Resources() {
		s := rs.byID[id]
		open, ok := rs.plan.Opens[id]
		if s == nil || !ok {
			continue
		}
		s.once.Do(func() {
			start := time.Now()
			rs.mu.Lock()
			s.ran = true
			rs.mu.Unlock()
			s.err = rs.runner.Run(ctx, open)
			status := metrics.StatusCompleted
			if s.err != nil {
				status = metrics.StatusFailed
			}
			rs.metrics.ObserveTask(open.Kind.String(), status, time.Since(start))
		})
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

// done drops c's claim on its resources and releases those it used last.
func (rs *resources) done(ctx context.Context, c *task.Task) {
	for _, id := range c.Resources() {
		rs.mu.Lock()
		s := rs.byID[id]
		if s == nil {
			rs.mu.Unlock()
			continue
		}
		s.users--
		last := s.users == 0
		rs.mu.Unlock()
		if last {
			rs.release(ctx, id)
		}
	}
}

func (rs *resources) release(ctx context.Context, id string) {
	rs.mu.Lock()
	s := rs.byID[id]
	if !s.ran || s.freed {
		rs.mu.Unlock()
		return
	}
	s.freed = true
	rs.mu.Unlock()
	// Release must not be skipped because the run was canceled.
	rs.runner.Release(context.WithoutCancel(ctx), rs.plan.Opens[id])
}

// releaseAll frees resources whose remaining chunks never ran.
func (rs *resources) releaseAll(ctx context.Context) {
	rs.mu.Lock()
	ids := make([]string, 0, len(rs.byID))
	for id := range rs.byID {
		ids = append(ids, id)
	}
	rs.mu.Unlock()
	for _, id := range ids {
		rs.release(ctx, id)
	}
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, plan *task.Plan, r executor.Runner, progress executor.ProgressFunc) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting chunk pool.", "workers", e.workers, "chunk_count", len(plan.Chunks), "resource_count", len(plan.Opens))

	rs := newResources(plan, r, e.metrics)
	defer rs.releaseAll(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var (
		mu       sync.Mutex
		done     int
		failures = make(map[string]error)
	)
	for _, c := range plan.Chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer rs.done(gctx, c)
			start := time.Now()
			err := rs.acquire(gctx, c)
			if err == nil {
				err = r.Run(gctx, c)
			}
			if err != nil {
				logger.Error("Chunk execution failed.", "taskID", c.ID, "error", err)
				e.metrics.ObserveTask(c.Kind.String(), metrics.StatusFailed, time.Since(start))
				mu.Lock()
				failures[c.ID] = err
				mu.Unlock()
				return err
			}
			e.metrics.ObserveTask(c.Kind.String(), metrics.StatusCompleted, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress(done, len(plan.Chunks))
			}
			return nil
		})
	}
	// Per-chunk errors are folded below; Wait only joins the pool.
	_ = g.Wait()

	if err := executor.RootCause(failures); err != nil {
		return err
	}
	return ctx.Err()
}

package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/task"
)

// ExecutionRecord holds the start and end time of one task run.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// RecordingRunner is an executor.Runner that sleeps, records what ran,
// and fails tasks listed in Fail.
type RecordingRunner struct {
	Sleep time.Duration
	Fail  map[string]error

	mu       sync.Mutex
	records  map[string]*ExecutionRecord
	order    []string
	released []string
	open     map[string]bool
	// MaxOpen is the highest number of simultaneously open resources.
	MaxOpen int
}

// NewRecordingRunner creates a runner sleeping for the given duration per task.
func NewRecordingRunner(sleep time.Duration) *RecordingRunner {
	return &RecordingRunner{
		Sleep:   sleep,
		Fail:    map[string]error{},
		records: map[string]*ExecutionRecord{},
		open:    map[string]bool{},
	}
}

// Run implements executor.Runner.
func (r *RecordingRunner) Run(ctx context.Context, t *task.Task) error {
	start := time.Now()
	if r.Sleep > 0 {
		select {
		case <-time.After(r.Sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[t.ID] = &ExecutionRecord{Start: start, End: time.Now()}
	r.order = append(r.order, t.ID)
	if err := r.Fail[t.ID]; err != nil {
		return err
	}
	if t.Kind == task.KindChunk {
		for _, res := range t.Resources() {
			if !r.open[res] {
				return fmt.Errorf("chunk %s ran before %s was open", t.ID, res)
			}
		}
	}
	if t.Kind == task.KindOpen {
		r.open[t.ID] = true
		r.MaxOpen = max(r.MaxOpen, len(r.open))
	}
	return nil
}

// Release implements executor.Runner.
func (r *RecordingRunner) Release(_ context.Context, t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, t.ID)
	r.released = append(r.released, t.ID)
}

// Record returns the execution record of a task, or nil if it never ran.
func (r *RecordingRunner) Record(id string) *ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

// Ran returns task IDs in the order they finished.
func (r *RecordingRunner) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Released returns released open task IDs in release order.
func (r *RecordingRunner) Released() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.released...)
}

// StillOpen reports how many resources were never released.
func (r *RecordingRunner) StillOpen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// ChunkPlan builds a plan where chunk i reads the resources named in
// uses[i]. Chunk IDs are ChunkID(i, "b", 0, 0).
func ChunkPlan(t *testing.T, uses ...[]string) *task.Plan {
	t.Helper()
	p := task.NewPlan()
	for i, uris := range uses {
		c := &task.Task{ID: task.ChunkID(i, "b", 0, 0), Kind: task.KindChunk, Time: i, Band: "b"}
		for _, u := range uris {
			s := task.Source{ItemID: u, Key: model.BandKey{Asset: "b", Index: 1}, Src: &model.RasterSource{URI: u, Band: 1}}
			p.AddOpen(&s)
			c.Sources = append(c.Sources, s)
		}
		require.NoError(t, p.AddChunk(c))
	}
	return p
}

// Package executor defines how a load plan is run. Implementations differ
// in scheduling only: every executor must produce the same output for the
// same plan.
package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vk/stacgridgo/internal/task"
)

// Runner performs the work of individual tasks.
type Runner interface {
	// Run executes an open or chunk task. A chunk whose resources were not
	// opened through Run opens and closes them itself.
	Run(ctx context.Context, t *task.Task) error
	// Release frees whatever an open task acquired. It is safe to call for
	// tasks that never ran or failed.
	Release(ctx context.Context, t *task.Task)
}

// ProgressFunc is called after each finished chunk task.
type ProgressFunc func(done, total int)

// Executor runs every task of a plan.
type Executor interface {
	Execute(ctx context.Context, plan *task.Plan, r Runner, progress ProgressFunc) error
}

// ErrSkipped marks tasks that did not run because a dependency failed.
var ErrSkipped = errors.New("skipped")

// Skipped builds the error recorded for a task skipped because of cause.
func Skipped(cause string) error {
	return fmt.Errorf("%w due to upstream failure of '%s'", ErrSkipped, cause)
}

// RootCause folds per-task errors into one. Skips and cancellations are
// symptoms and are ignored; the first failure by task ID is wrapped.
func RootCause(failures map[string]error) error {
	var ids []string
	for id, err := range failures {
		if err == nil || errors.Is(err, ErrSkipped) || errors.Is(err, context.Canceled) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	return fmt.Errorf("execution failed for %s: %w", strings.Join(ids, ", "), failures[ids[0]])
}

// Package scheduler decides which tasks of a load graph are ready to run.
// A task is ready once every task it depends on has completed; a failed
// task takes all of its transitive dependents with it.
package scheduler

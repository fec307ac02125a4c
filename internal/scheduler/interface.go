package scheduler

// Scheduler streams ready task IDs and tracks their outcome.
//
// The executor consumes ReadyNodes and reports each ID it received through
// exactly one of MarkCompleted or MarkFailed. The channel is closed once
// every task is completed, failed, or skipped.
type Scheduler interface {
	ReadyNodes() <-chan string
	MarkCompleted(id string)
	// MarkFailed records a failure and returns the IDs of the dependents
	// skipped because of it, sorted.
	MarkFailed(id string) []string
	// Pending is the number of tasks not yet resolved.
	Pending() int
}

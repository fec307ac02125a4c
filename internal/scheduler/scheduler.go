package scheduler

import (
	"fmt"
	"slices"
	"sync"

	"github.com/vk/stacgridgo/internal/dag"
)

type state int

const (
	waiting state = iota
	queued
	completed
	failed
	skipped
)

// DependencyScheduler is the channel-based Scheduler over a dag.Graph.
type DependencyScheduler struct {
	graph *dag.Graph

	mu       sync.Mutex
	ready    chan string
	states   map[string]state
	depCount map[string]int
	pending  int
	closed   bool
}

var _ Scheduler = (*DependencyScheduler)(nil)

// New builds a scheduler and queues the graph's roots. The graph must not
// change afterwards.
func New(g *dag.Graph) (*DependencyScheduler, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	ids := g.IDs()
	s := &DependencyScheduler{
		graph: g,
		// Every node is sent at most once, so sends never block.
		ready:    make(chan string, len(ids)),
		states:   make(map[string]state, len(ids)),
		depCount: make(map[string]int, len(ids)),
		pending:  len(ids),
	}
	for _, id := range ids {
		deps, err := g.Dependencies(id)
		if err != nil {
			return nil, err
		}
		s.depCount[id] = len(deps)
	}
	for _, id := range g.Roots() {
		s.states[id] = queued
		s.ready <- id
	}
	s.closeIfDoneLocked()
	return s, nil
}

// ReadyNodes implements Scheduler.
func (s *DependencyScheduler) ReadyNodes() <-chan string {
	return s.ready
}

// MarkCompleted implements Scheduler.
func (s *DependencyScheduler) MarkCompleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolveLocked(id, completed)
	dependents, _ := s.graph.Dependents(id)
	for _, d := range dependents {
		s.depCount[d]--
		if s.depCount[d] == 0 && s.states[d] == waiting {
			s.states[d] = queued
			s.ready <- d
		}
	}
	s.closeIfDoneLocked()
}

// MarkFailed implements Scheduler.
func (s *DependencyScheduler) MarkFailed(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolveLocked(id, failed)
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		dependents, _ := s.graph.Dependents(cur)
		for _, d := range dependents {
			// Queued nodes already had all deps complete; they cannot
			// depend on a failed node.
			if s.states[d] != waiting {
				continue
			}
			s.states[d] = skipped
			s.pending--
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	s.closeIfDoneLocked()
	slices.Sort(out)
	return out
}

// Pending implements Scheduler.
func (s *DependencyScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *DependencyScheduler) resolveLocked(id string, to state) {
	st, ok := s.states[id]
	if !ok || st != queued {
		panic(fmt.Sprintf("scheduler: node %q resolved while not queued", id))
	}
	s.states[id] = to
	s.pending--
}

func (s *DependencyScheduler) closeIfDoneLocked() {
	if s.pending == 0 && !s.closed {
		s.closed = true
		close(s.ready)
	}
}

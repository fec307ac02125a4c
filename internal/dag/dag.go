package dag

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a task. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &node{}
	}
}

// AddEdge records that task id waits for task dep. Repeating an edge is a
// no-op.
func (g *Graph) AddEdge(dep, id string) error {
	if dep == id {
		return fmt.Errorf("task %s cannot depend on itself", id)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[dep]
	if !ok {
		return fmt.Errorf("unknown dependency %s of task %s", dep, id)
	}
	to, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	to.deps = insertSorted(to.deps, dep)
	from.dependents = insertSorted(from.dependents, id)
	return nil
}

func insertSorted(s []string, v string) []string {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

// Has reports whether the task exists.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len is the number of tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// IDs returns every task ID in sorted order.
func (g *Graph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.nodes))
}

func (g *Graph) lookup(id string) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("unknown task %s", id)
	}
	return n, nil
}

// Dependencies returns the sorted IDs task id waits for.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(n.deps), nil
}

// Dependents returns the sorted IDs waiting for task id.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(n.dependents), nil
}

// Roots returns the sorted IDs of tasks that wait for nothing.
func (g *Graph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rootsLocked()
}

func (g *Graph) rootsLocked() []string {
	var out []string
	for id, n := range g.nodes {
		if len(n.deps) == 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Order returns every task in dependency order, breaking ties by ID. It
// fails when the graph has a cycle, naming the tasks left unordered.
func (g *Graph) Order() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
	}
	queue := g.rootsLocked()
	out := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		var next []string
		for _, d := range g.nodes[id].dependents {
			indegree[d]--
			if indegree[d] == 0 {
				next = append(next, d)
			}
		}
		// Dependents are sorted, but the merged queue must stay sorted too.
		queue = append(queue, next...)
		slices.Sort(queue)
	}
	if len(out) < len(g.nodes) {
		var stuck []string
		for id, n := range indegree {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("dependency cycle among tasks: %s", strings.Join(stuck, ", "))
	}
	return out, nil
}

// DetectCycles returns an error when the graph is not acyclic.
func (g *Graph) DetectCycles() error {
	_, err := g.Order()
	return err
}

package dag

import "sync"

// Graph is the set of task IDs of a load plan and the dependencies between
// them. All methods are safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// node keeps both edge directions as sorted ID lists, so every query is
// deterministic without re-sorting.
type node struct {
	deps       []string
	dependents []string
}

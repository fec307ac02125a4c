package task

import (
	"fmt"

	"github.com/vk/stacgridgo/internal/dag"
)

// Plan is the task graph of one load. Chunks keep insertion order, which
// is (time, band, tile) order when built by the loader.
type Plan struct {
	Graph  *dag.Graph
	Opens  map[string]*Task
	Chunks []*Task

	byID map[string]*Task
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{
		Graph: dag.New(),
		Opens: make(map[string]*Task),
		byID:  make(map[string]*Task),
	}
}

// AddOpen returns the open task for a source's resource, creating it on
// first use.
func (p *Plan) AddOpen(src *Source) *Task {
	id := OpenID(src.Src.ResourceKey())
	if t, ok := p.byID[id]; ok {
		src.Resource = id
		return t
	}
	t := &Task{ID: id, Kind: KindOpen, Resource: src.Src.ResourceKey(), Src: src.Src}
	p.Opens[id] = t
	p.byID[id] = t
	p.Graph.AddNode(id)
	src.Resource = id
	return t
}

// AddChunk adds a chunk task and its edges from the open tasks of its
// sources. Sources must have been passed through AddOpen.
func (p *Plan) AddChunk(t *Task) error {
	if t.Kind != KindChunk {
		return fmt.Errorf("task %s is not a chunk task", t.ID)
	}
	if _, ok := p.byID[t.ID]; ok {
		return fmt.Errorf("duplicate task: %s", t.ID)
	}
	p.byID[t.ID] = t
	p.Chunks = append(p.Chunks, t)
	p.Graph.AddNode(t.ID)
	for _, r := range t.Resources() {
		if err := p.Graph.AddEdge(r, t.ID); err != nil {
			return fmt.Errorf("wire chunk %s: %w", t.ID, err)
		}
	}
	return nil
}

// Task looks a task up by ID.
func (p *Plan) Task(id string) (*Task, bool) {
	t, ok := p.byID[id]
	return t, ok
}

// Len is the number of tasks of both kinds.
func (p *Plan) Len() int {
	return len(p.byID)
}

// Validate checks the graph is acyclic and every open task feeds a chunk.
func (p *Plan) Validate() error {
	if err := p.Graph.DetectCycles(); err != nil {
		return err
	}
	for id := range p.Opens {
		deps, err := p.Graph.Dependents(id)
		if err != nil {
			return err
		}
		if len(deps) == 0 {
			return fmt.Errorf("open task %s has no dependent chunks", id)
		}
	}
	return nil
}

// Subset returns a plan containing the chunks accepted by keep and the
// open tasks they need.
func (p *Plan) Subset(keep func(*Task) bool) *Plan {
	out := NewPlan()
	for _, c := range p.Chunks {
		if !keep(c) {
			continue
		}
		for _, r := range c.Resources() {
			if _, ok := out.byID[r]; ok {
				continue
			}
			o := p.byID[r]
			out.Opens[r] = o
			out.byID[r] = o
			out.Graph.AddNode(r)
		}
		// Chunks of a valid plan never collide, so the error is unreachable.
		_ = out.AddChunk(c)
	}
	return out
}

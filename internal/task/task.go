// Package task defines the units of work of a load: opening a raster
// resource and materialising one output chunk.
package task

import (
	"fmt"

	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/model"
)

// Kind distinguishes the two task types of a load graph.
type Kind int

const (
	// KindOpen opens a resource (URI plus subdataset) once for all chunks
	// that read it.
	KindOpen Kind = iota
	// KindChunk composites the sources of one (time, band, tile) cell.
	KindChunk
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindChunk:
		return "chunk"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Source is one item band feeding a chunk.
type Source struct {
	ItemID    string
	ItemIndex int
	Key       model.BandKey
	Src       *model.RasterSource
	// Resource is the ID of the open task providing the reader.
	Resource string
}

// Task is a node of the load graph.
type Task struct {
	ID   string
	Kind Kind

	// Open tasks.
	Resource string
	Src      *model.RasterSource

	// Chunk tasks.
	Time   int
	Band   string
	Tile   [2]int
	Window geo.Window
	// Sources in application order; later sources take precedence unless
	// the load fuses "first".
	Sources []Source
}

// OpenID is the task ID of the open task for a resource key.
func OpenID(resource string) string {
	return "open/" + resource
}

// ChunkID is the task ID of the chunk at (time, band, tile).
func ChunkID(t int, band string, iy, ix int) string {
	return fmt.Sprintf("chunk/%d/%s/%d/%d", t, band, iy, ix)
}

// Resources returns the distinct open task IDs of a chunk, in the order
// they are first used.
func (t *Task) Resources() []string {
	seen := make(map[string]bool, len(t.Sources))
	var out []string
	for _, s := range t.Sources {
		if seen[s.Resource] {
			continue
		}
		seen[s.Resource] = true
		out = append(out, s.Resource)
	}
	return out
}

func (t *Task) String() string {
	return t.ID
}

package loader

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/dataset"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/grouping"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/task"
)

// boundarySegments is the densification used to map a source extent into
// the output grid.
const boundarySegments = 8

type chunkKey struct {
	t, b, iy, ix int
}

// owner names the first item band that uses a resource, for errors raised
// while opening it.
type owner struct {
	itemID, band string
}

// buildPlan creates one chunk task per (group, band, tile) with at least
// one source and one open task per distinct resource. Chunks without any
// source are marked complete on their array.
func buildPlan(ctx context.Context, groups []grouping.Group, bands []band, arrays []*dataset.Array, tiles geo.Tiles) (*task.Plan, map[string]owner, error) {
	logger := ctxlog.FromContext(ctx)
	ny, nx := tiles.Shape()

	sources := make(map[chunkKey][]task.Source)
	for t, g := range groups {
		for bi, b := range bands {
			for _, it := range g.Items {
				k, err := it.Collection.ResolveBand(b.name)
				if err != nil {
					continue
				}
				src, ok := it.Bands[k]
				if !ok {
					logger.Debug("Item has no asset for band.", "item_id", it.ID, "band", b.name)
					continue
				}
				pix, ok := sourcePixelBound(it, src, tiles.Box)
				if !ok {
					continue
				}
				y0, y1, x0, x1, ok := tiles.Range(pix)
				if !ok {
					continue
				}
				for iy := y0; iy < y1; iy++ {
					for ix := x0; ix < x1; ix++ {
						key := chunkKey{t, bi, iy, ix}
						sources[key] = append(sources[key], task.Source{
							ItemID: it.ID, ItemIndex: it.Index, Key: k, Src: src,
						})
					}
				}
			}
		}
	}

	plan := task.NewPlan()
	owners := make(map[string]owner)
	for t := range groups {
		for bi, b := range bands {
			for iy := 0; iy < ny; iy++ {
				for ix := 0; ix < nx; ix++ {
					srcs := sources[chunkKey{t, bi, iy, ix}]
					if len(srcs) == 0 {
						if err := arrays[bi].MarkEmpty(t, iy, ix); err != nil {
							return nil, nil, err
						}
						continue
					}
					c := &task.Task{
						ID:      task.ChunkID(t, b.name, iy, ix),
						Kind:    task.KindChunk,
						Time:    t,
						Band:    b.name,
						Tile:    [2]int{iy, ix},
						Window:  tiles.Window(iy, ix),
						Sources: srcs,
					}
					for i := range c.Sources {
						o := plan.AddOpen(&c.Sources[i])
						if _, ok := owners[o.ID]; !ok {
							owners[o.ID] = owner{itemID: c.Sources[i].ItemID, band: b.name}
						}
					}
					if err := plan.AddChunk(c); err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}
	logger.Debug("Load graph built.", "task_count", plan.Len(), "open_count", len(plan.Opens), "chunk_count", len(plan.Chunks))
	return plan, owners, nil
}

// sourcePixelBound maps the extent of a source into the pixel space of
// the output grid, padded by one pixel. Sources without a grid use the
// item footprint.
func sourcePixelBound(it *model.ParsedItem, src *model.RasterSource, out geo.GeoBox) (orb.Bound, bool) {
	var pts []orb.Point
	if src.GeoBox != nil {
		tr, err := geo.NewTransformer(src.GeoBox.CRS, out.CRS)
		if err != nil {
			return orb.Bound{}, false
		}
		for _, p := range src.GeoBox.Boundary(boundarySegments) {
			x, y := tr.Apply(p[0], p[1])
			pts = append(pts, orb.Point{x, y})
		}
	} else if it.Geometry != nil {
		g, err := geo.TransformGeometry(it.Geometry, geo.WGS84, out.CRS)
		if err != nil {
			return orb.Bound{}, false
		}
		b := g.Bound()
		pts = []orb.Point{b.Min, b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}}
	}
	pix, ok := out.PixelBound(pts)
	if !ok {
		return orb.Bound{}, false
	}
	pix.Min = orb.Point{pix.Min[0] - 1, pix.Min[1] - 1}
	pix.Max = orb.Point{pix.Max[0] + 1, pix.Max[1] + 1}
	return pix, true
}

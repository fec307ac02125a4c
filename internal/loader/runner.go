package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/dataset"
	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/executor"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/metrics"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/raster"
	"github.com/vk/stacgridgo/internal/registry"
	"github.com/vk/stacgridgo/internal/task"
)

// bandRun is the per-band state a chunk task needs.
type bandRun struct {
	band
	params model.RasterLoadParams
	method raster.Resampling
	array  *dataset.Array
}

// runner implements executor.Runner for one load. Readers opened by open
// tasks are shared by every chunk; chunks run without a preceding open
// (local execution) open privately and close before returning.
type runner struct {
	reg       *registry.Registry
	env       env.Env
	tiles     geo.Tiles
	bands     map[string]*bandRun
	owners    map[string]owner
	ds        *dataset.Dataset
	tolerant  bool
	keepFirst bool
	metrics   *metrics.Metrics

	mu     sync.Mutex
	open   map[string]raster.Reader
	failed map[string]error
}

var _ executor.Runner = (*runner)(nil)

// Run implements executor.Runner.
func (r *runner) Run(ctx context.Context, t *task.Task) error {
	switch t.Kind {
	case task.KindOpen:
		return r.runOpen(ctx, t)
	case task.KindChunk:
		return r.runChunk(ctx, t)
	}
	return fmt.Errorf("unknown task kind %s", t.Kind)
}

func (r *runner) runOpen(ctx context.Context, t *task.Task) error {
	rd, err := r.reg.Open(ctx, t.Src.URI, r.env)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.tolerant {
			// Chunks reading this resource record the skip per item band.
			r.mu.Lock()
			r.failed[t.ID] = err
			r.mu.Unlock()
			ctxlog.FromContext(ctx).Warn("Resource could not be opened, its sources will be skipped.", "uri", t.Src.URI, "error", err)
			return nil
		}
		o := r.owners[t.ID]
		return &errs.AssetReadError{ItemID: o.itemID, Band: o.band, URI: t.Src.URI, Err: err}
	}
	r.metrics.ResourceOpened()
	r.mu.Lock()
	r.open[t.ID] = rd
	r.mu.Unlock()
	return nil
}

// Release implements executor.Runner.
func (r *runner) Release(ctx context.Context, t *task.Task) {
	if t.Kind != task.KindOpen {
		return
	}
	r.mu.Lock()
	rd := r.open[t.ID]
	delete(r.open, t.ID)
	delete(r.failed, t.ID)
	r.mu.Unlock()
	if rd != nil {
		r.close(ctx, t.Resource, rd)
	}
}

func (r *runner) close(ctx context.Context, resource string, rd raster.Reader) {
	if err := rd.Close(); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to close resource.", "resource", resource, "error", err)
	}
	r.metrics.ResourceReleased()
}

// reader returns the shared reader of a source, or opens a private one.
func (r *runner) reader(ctx context.Context, s task.Source, private map[string]raster.Reader) (raster.Reader, error) {
	r.mu.Lock()
	rd, ok := r.open[s.Resource]
	err := r.failed[s.Resource]
	r.mu.Unlock()
	switch {
	case ok:
		return rd, nil
	case err != nil:
		return nil, err
	}
	if rd, ok := private[s.Resource]; ok {
		return rd, nil
	}
	rd, err = r.reg.Open(ctx, s.Src.URI, r.env)
	if err != nil {
		return nil, err
	}
	r.metrics.ResourceOpened()
	private[s.Resource] = rd
	return rd, nil
}

func (r *runner) runChunk(ctx context.Context, t *task.Task) error {
	b, ok := r.bands[t.Band]
	if !ok {
		return fmt.Errorf("chunk %s reads unknown band %q", t.ID, t.Band)
	}
	tile := r.tiles.Tile(t.Tile[0], t.Tile[1])
	buf := raster.NewPlane(tile.Height, tile.Width, math.NaN())

	private := make(map[string]raster.Reader)
	defer func() {
		for res, rd := range private {
			r.close(ctx, res, rd)
		}
	}()

	for _, s := range t.Sources {
		plane, err := r.warp(ctx, s, b, tile, private)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			readErr := &errs.AssetReadError{ItemID: s.ItemID, Band: t.Band, URI: s.Src.URI, Err: err}
			if !r.tolerant {
				return readErr
			}
			r.skip(ctx, readErr)
			continue
		}
		if plane != nil {
			raster.Composite(buf, plane, r.keepFirst)
		}
	}
	return b.array.WriteChunk(t.Time, t.Tile[0], t.Tile[1], buf)
}

func (r *runner) warp(ctx context.Context, s task.Source, b *bandRun, tile geo.GeoBox, private map[string]raster.Reader) (*raster.Plane, error) {
	rd, err := r.reader(ctx, s, private)
	if err != nil {
		return nil, err
	}
	info := rd.Info()
	gb := s.Src.GeoBox
	if gb == nil {
		gb = info.GeoBox
	}
	if gb == nil {
		return nil, raster.ErrNotGeoreferenced
	}
	declared := s.Src.Meta.Nodata
	if declared == nil {
		declared = info.Nodata
	}
	if declared == nil {
		declared = b.meta.Nodata
	}
	return raster.Warp(ctx, rd, *gb, tile, raster.WarpOptions{
		Band:         s.Src.Band,
		Resampling:   b.method,
		SrcNodata:    b.params.ResolveSrcNodata(declared),
		UseOverviews: b.params.UseOverviews,
	})
}

func (r *runner) skip(ctx context.Context, e *errs.AssetReadError) {
	added := r.ds.AddSkipped(dataset.SkippedAsset{ItemID: e.ItemID, Band: e.Band, URI: e.URI, Err: e.Err})
	if !added {
		return
	}
	r.metrics.SkippedAsset()
	logger := ctxlog.FromContext(ctx)
	if errors.Is(e.Err, raster.ErrNotGeoreferenced) {
		logger.Warn("Skipping source without georeferencing.", "item_id", e.ItemID, "band", e.Band, "uri", e.URI)
		return
	}
	logger.Warn("Skipping asset that failed to read.", "item_id", e.ItemID, "band", e.Band, "uri", e.URI, "error", e.Err)
}

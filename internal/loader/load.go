package loader

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/dataset"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/gridplan"
	"github.com/vk/stacgridgo/internal/grouping"
	"github.com/vk/stacgridgo/internal/localexecutor"
	"github.com/vk/stacgridgo/internal/raster"
	"github.com/vk/stacgridgo/internal/stac"
	"github.com/vk/stacgridgo/internal/task"
)

// Load turns items into a dataset on one output grid. Unless opts.Lazy is
// set, every chunk is computed before Load returns.
func Load(ctx context.Context, items []*stac.Item, opts Options) (*dataset.Dataset, error) {
	id := uuid.NewString()
	ctx = withLoadID(ctx, id)
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	md, err := Metadata(ctx, items, opts)
	if err != nil {
		return nil, err
	}
	if len(md.Items) == 0 {
		return nil, errs.Configuration("items", "no loadable items among %d inputs", len(items))
	}
	bands, err := resolveBands(md.Items, opts.Bands)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(bands))
	for i, b := range bands {
		names[i] = b.name
	}

	gp := opts.Grid
	if len(gp.Bands) == 0 {
		gp.Bands = names
	}
	grid, err := gridplan.Plan(ctx, md.Items, gp)
	if err != nil {
		return nil, err
	}
	gb := grid.GeoBox

	gopts := grouping.Options{Policy: opts.GroupBy, KeyFunc: opts.GroupKey, SortWithinGroup: opts.SortWithinGroup}
	if c, err := gb.GeographicCenter(); err == nil {
		gopts.Longitude = &c[0]
	}
	groups, err := grouping.Items(ctx, md.Items, gopts)
	if err != nil {
		return nil, err
	}

	if err := opts.Registry.ValidateRegistry(ctx, resourceURIs(groups, names)); err != nil {
		return nil, &errs.ConfigurationError{Field: "registry", Reason: "unsupported resources", Err: err}
	}

	cy, cx := opts.chunks()
	tiles := geo.NewTiles(gb, cy, cx)
	runs := make(map[string]*bandRun, len(bands))
	arrays := make([]*dataset.Array, len(bands))
	for i, b := range bands {
		params := opts.params(b.name)
		dtype := params.ResolveDataType(b.meta)
		fill := params.ResolveFill(dtype, params.ResolveSrcNodata(b.meta.Nodata))
		arrays[i] = dataset.NewArray(b.name, dtype, b.meta.Unit, fill, len(groups), tiles)
		runs[b.name] = &bandRun{band: b, params: params, method: opts.resampling(b.name), array: arrays[i]}
	}

	plan, owners, err := buildPlan(ctx, groups, bands, arrays, tiles)
	if err != nil {
		return nil, err
	}

	exec := opts.Executor
	if exec == nil {
		exec = localexecutor.New(opts.Workers, opts.Metrics)
	}
	execName := opts.executorName()

	r := &runner{
		reg:       opts.Registry,
		env:       opts.env(),
		tiles:     tiles,
		bands:     runs,
		owners:    owners,
		tolerant:  opts.ContinueOnError,
		keepFirst: opts.Fuse == FuseFirst,
		metrics:   opts.Metrics,
		open:      make(map[string]raster.Reader),
		failed:    make(map[string]error),
	}
	compute := func(ctx context.Context) error {
		ctx = withLoadID(ctx, id)
		logger := ctxlog.FromContext(ctx)
		sub := plan.Subset(func(t *task.Task) bool {
			return !runs[t.Band].array.ChunkDone(t.Time, t.Tile[0], t.Tile[1])
		})
		logger.Info("🚀 Computing chunks.", "chunk_count", len(sub.Chunks), "resource_count", len(sub.Opens), "executor", execName)
		computeStart := time.Now()
		err := exec.Execute(ctx, sub, r, opts.Progress)
		opts.Metrics.Load(execName, err)
		if err != nil {
			return err
		}
		logger.Info("✅ Chunks computed.", "duration", time.Since(computeStart), "skipped_assets", len(r.ds.Skipped()))
		return nil
	}

	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.Key.Label
	}
	ds := dataset.New(id, gb, grouping.Times(groups), labels, arrays, compute)
	ds.Degenerate = grid.Degenerate
	r.ds = ds

	logger.Info("Load planned.",
		"item_count", len(md.Items),
		"time_count", len(groups),
		"bands", names,
		"geobox", gb.String(),
		"task_count", plan.Len(),
		"duration", time.Since(start),
	)
	if opts.Lazy {
		return ds, nil
	}
	if err := ds.Compute(ctx); err != nil {
		return nil, err
	}
	return ds, nil
}

type loadIDKey struct{}

// withLoadID tags ctx and its logger with the load id unless ctx already
// carries it.
func withLoadID(ctx context.Context, id string) context.Context {
	if v, _ := ctx.Value(loadIDKey{}).(string); v == id {
		return ctx
	}
	ctx = context.WithValue(ctx, loadIDKey{}, id)
	return ctxlog.With(ctx, "load_id", id)
}

// resourceURIs lists the URIs of every source that may be read.
func resourceURIs(groups []grouping.Group, names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range groups {
		for _, it := range g.Items {
			for _, n := range names {
				src, ok := it.Source(n)
				if !ok || seen[src.URI] {
					continue
				}
				seen[src.URI] = true
				out = append(out, src.URI)
			}
		}
	}
	return out
}

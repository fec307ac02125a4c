package loader

import (
	"fmt"

	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/executor"
	"github.com/vk/stacgridgo/internal/gridplan"
	"github.com/vk/stacgridgo/internal/grouping"
	"github.com/vk/stacgridgo/internal/metrics"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/parser"
	"github.com/vk/stacgridgo/internal/raster"
	"github.com/vk/stacgridgo/internal/registry"
)

// DefaultChunkSize is the chunk edge used when none is configured.
const DefaultChunkSize = 2048

// Fuse modes decide which source wins where sources of one group overlap.
const (
	FuseLast  = "last"
	FuseFirst = "first"
)

// Chunks is the spatial chunk shape in pixels. Each chunk task also covers
// exactly one time slice.
type Chunks struct {
	Y, X int
}

// Options configures a load. The zero value loads every band at the
// native grid, grouped by time, failing on the first read error.
type Options struct {
	// Bands to load by asset name, "asset.N" or alias. Empty loads every
	// canonical band.
	Bands []string
	Grid  gridplan.Params

	GroupBy         string
	GroupKey        grouping.KeyFunc
	SortWithinGroup bool

	// Resampling per band name; the "*" entry applies to other bands.
	Resampling map[string]string
	Chunks     Chunks

	DataType          string
	FillValue         *float64
	SrcNodataFallback *float64
	SrcNodataOverride *float64
	UseOverviews      bool
	// ContinueOnError skips sources that fail to read instead of aborting.
	ContinueOnError bool
	Fuse            string
	// Lazy returns the dataset without computing any chunk.
	Lazy bool

	// Executor runs the plan; nil uses a local pool of Workers.
	Executor executor.Executor
	Workers  int
	Progress executor.ProgressFunc

	// Env is threaded into every driver call; nil uses env.Default().
	Env      *env.Env
	Registry *registry.Registry
	Metrics  *metrics.Metrics

	Parser parser.Config
	// Collections holds precomputed metadata by collection id.
	Collections map[string]*model.RasterCollectionMetadata
}

func (o Options) validate() error {
	switch o.Fuse {
	case "", FuseLast, FuseFirst:
	default:
		return errs.Configuration("fuse", "unknown fuse mode %q, want %q or %q", o.Fuse, FuseLast, FuseFirst)
	}
	for band, m := range o.Resampling {
		if _, err := raster.ParseResampling(m); err != nil {
			return &errs.ConfigurationError{Field: "resampling", Reason: "band " + band, Err: err}
		}
	}
	if o.DataType != "" {
		if err := model.CheckDataType(o.DataType); err != nil {
			return &errs.ConfigurationError{Field: "dtype", Err: err}
		}
	}
	if o.Chunks.X < 0 || o.Chunks.Y < 0 {
		return errs.Configuration("chunks", "chunk sizes must not be negative, got y=%d x=%d", o.Chunks.Y, o.Chunks.X)
	}
	if o.Registry == nil {
		return errs.Configuration("registry", "no raster driver registry configured")
	}
	seen := make(map[string]bool, len(o.Bands))
	for _, b := range o.Bands {
		if seen[b] {
			return errs.Configuration("bands", "band %q requested twice", b)
		}
		seen[b] = true
	}
	return nil
}

func (o Options) env() env.Env {
	if o.Env == nil {
		return env.Default()
	}
	return *o.Env
}

func (o Options) chunks() (int, int) {
	y, x := o.Chunks.Y, o.Chunks.X
	if y == 0 {
		y = DefaultChunkSize
	}
	if x == 0 {
		x = DefaultChunkSize
	}
	return y, x
}

// resampling returns the method for a band, already validated.
func (o Options) resampling(band string) raster.Resampling {
	m, ok := o.Resampling[band]
	if !ok {
		m = o.Resampling[parser.Wildcard]
	}
	r, _ := raster.ParseResampling(m)
	return r
}

// params builds the per-band load parameters.
func (o Options) params(band string) model.RasterLoadParams {
	return model.RasterLoadParams{
		DataType:          o.DataType,
		FillValue:         o.FillValue,
		SrcNodataFallback: o.SrcNodataFallback,
		SrcNodataOverride: o.SrcNodataOverride,
		UseOverviews:      o.UseOverviews,
		Resampling:        string(o.resampling(band)),
		FailOnError:       !o.ContinueOnError,
	}
}

func (o Options) executorName() string {
	if o.Executor == nil {
		return "local"
	}
	if n, ok := o.Executor.(fmt.Stringer); ok {
		return n.String()
	}
	return fmt.Sprintf("%T", o.Executor)
}

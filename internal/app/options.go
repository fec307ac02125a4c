package app

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/executor"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/graphexecutor"
	"github.com/vk/stacgridgo/internal/gridplan"
	"github.com/vk/stacgridgo/internal/loader"
	"github.com/vk/stacgridgo/internal/localexecutor"
	"github.com/vk/stacgridgo/internal/parser"
)

// options translates the merged configuration, with command line
// overrides applied, into loader options.
func (a *App) options(lookup env.LookupFunc) (loader.Options, error) {
	ld := config.Load{}
	if a.model.Load != nil {
		ld = *a.model.Load
	}
	a.applyOverrides(&ld)

	opts := loader.Options{
		Bands:             ld.Bands,
		GroupBy:           ld.GroupBy,
		SortWithinGroup:   ld.SortWithinGroup,
		Resampling:        ld.Resampling,
		DataType:          ld.DataType,
		FillValue:         ld.FillValue,
		SrcNodataFallback: ld.Nodata,
		Fuse:              ld.Fuse,
		Registry:          a.registry,
		Metrics:           a.metrics,
		Parser:            parserConfig(a.model.Collections, ld.PatchURL),
	}
	if ld.UseOverviews != nil {
		opts.UseOverviews = *ld.UseOverviews
	}
	if ld.FailOnError != nil {
		opts.ContinueOnError = !*ld.FailOnError
	}

	grid, err := gridParams(&ld)
	if err != nil {
		return loader.Options{}, err
	}
	opts.Grid = grid

	for k := range ld.Chunks {
		if k != "x" && k != "y" {
			return loader.Options{}, errs.Configuration("chunks", "unknown chunk axis %q, want x or y", k)
		}
	}
	opts.Chunks = loader.Chunks{Y: ld.Chunks["y"], X: ld.Chunks["x"]}

	workers := ld.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	opts.Workers = workers
	ex, err := newExecutor(ld.Executor, workers, a)
	if err != nil {
		return loader.Options{}, err
	}
	opts.Executor = ex

	e := env.Capture(lookup)
	applyEnv(&e, a.model.Env)
	opts.Env = &e
	return opts, nil
}

func (a *App) applyOverrides(ld *config.Load) {
	c := a.cfg
	if len(c.Bands) > 0 {
		ld.Bands = c.Bands
	}
	if c.CRS != "" {
		ld.CRS = c.CRS
	}
	if c.Resolution > 0 {
		ld.Resolution = []float64{c.Resolution}
	}
	if c.GroupBy != "" {
		ld.GroupBy = c.GroupBy
	}
	if c.Executor != "" {
		ld.Executor = c.Executor
	}
	if c.Workers > 0 {
		ld.Workers = c.Workers
	}
}

func gridParams(ld *config.Load) (p gridplan.Params, err error) {
	if ld.CRS != "" {
		if p.CRS, err = geo.ParseCRS(ld.CRS); err != nil {
			return p, &errs.ConfigurationError{Field: "crs", Reason: "cannot parse " + ld.CRS, Err: err}
		}
	}
	switch len(ld.Resolution) {
	case 0:
	case 1:
		r := geo.Square(ld.Resolution[0])
		p.Resolution = &r
	case 2:
		r := geo.Resolution{X: ld.Resolution[0], Y: -abs(ld.Resolution[1])}
		p.Resolution = &r
	default:
		return p, errs.Configuration("resolution", "want one or two values, got %d", len(ld.Resolution))
	}
	if p.Resolution != nil && (p.Resolution.X <= 0 || p.Resolution.Y == 0) {
		return p, errs.Configuration("resolution", "must be positive, got %v", ld.Resolution)
	}
	if p.Anchor, err = geo.ParseAnchor(ld.Anchor); err != nil {
		return p, &errs.ConfigurationError{Field: "anchor", Reason: "invalid anchor", Err: err}
	}
	p.Rotation = ld.Rotation
	if len(ld.BBox) > 0 {
		if len(ld.BBox) != 4 {
			return p, errs.Configuration("bbox", "want 4 values, got %d", len(ld.BBox))
		}
		p.BBox = slices.Clone(ld.BBox)
	}
	return p, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func newExecutor(name string, workers int, a *App) (executor.Executor, error) {
	switch name {
	case "", "local":
		return localexecutor.New(workers, a.metrics), nil
	case "graph":
		return graphexecutor.New(workers, a.metrics), nil
	}
	return nil, errs.Configuration("executor", "unknown executor %q, want local or graph", name)
}

// parserConfig converts collection hints into parser configuration.
func parserConfig(cols map[string]*config.Collection, patch string) parser.Config {
	cfg := parser.Config{Collections: make(map[string]parser.CollectionConfig, len(cols))}
	for name, c := range cols {
		cc := parser.CollectionConfig{
			Assets:     make(map[string]parser.AssetConfig, len(c.Assets)),
			Aliases:    c.Aliases,
			IgnoreProj: c.IgnoreProj,
			Quiet:      c.Warnings == "ignore",
			AliasOrder: c.AliasOrder,
		}
		for key, as := range c.Assets {
			cc.Assets[key] = parser.AssetConfig{DataType: as.DataType, Nodata: as.Nodata, Unit: as.Unit}
		}
		cfg.Collections[name] = cc
	}
	if q := strings.TrimPrefix(patch, "?"); q != "" {
		cfg.PatchURL = func(u string) string {
			if strings.Contains(u, "?") {
				return u + "&" + q
			}
			return u + "?" + q
		}
	}
	return cfg
}

// applyEnv overlays configured settings on the captured environment.
func applyEnv(e *env.Env, c *config.Env) {
	if c == nil {
		return
	}
	if c.AWSRegion != "" {
		e.AWS.Region = c.AWSRegion
	}
	if c.AWSEndpoint != "" {
		e.AWS.Endpoint = c.AWSEndpoint
	}
	if c.AWSNoSignRequest != nil {
		e.AWS.NoSign = *c.AWSNoSignRequest
	}
	if c.RequesterPays != nil {
		e.AWS.RequesterPays = *c.RequesterPays
	}
	if c.BearerToken != "" {
		e.BearerToken = c.BearerToken
	}
	if c.UserAgent != "" {
		e.UserAgent = c.UserAgent
	}
	if len(c.Headers) > 0 {
		if e.Headers == nil {
			e.Headers = make(map[string]string, len(c.Headers))
		}
		maps.Copy(e.Headers, c.Headers)
	}
	if c.Timeout > 0 {
		e.Timeout = seconds(c.Timeout)
	}
	if c.RetryDelay > 0 {
		e.Retry.InitialDelay = seconds(c.RetryDelay)
	}
	if c.MaxRetries != nil && *c.MaxRetries >= 0 {
		e.Retry.MaxAttempts = *c.MaxRetries + 1
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// osLookup is the environment lookup used outside tests.
var osLookup env.LookupFunc = os.LookupEnv

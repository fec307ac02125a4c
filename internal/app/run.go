package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/loader"
)

// Run reads the items, loads them into a dataset and prints a summary.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger.With("run_id", uuid.NewString()))
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	if a.cfg.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(ctx, a.cfg.HealthcheckPort); err != nil {
			return err
		}
		defer a.closeHealthcheckServer(ctx)
	}

	items, err := readItems(ctx, a.cfg.ItemsPath)
	if err != nil {
		return err
	}
	opts, err := a.options(osLookup)
	if err != nil {
		return err
	}
	logger.Debug("Load options resolved.", "executor", opts.Executor, "workers", opts.Workers, "env", opts.Env.Redacted())

	if a.cfg.MetadataOnly {
		res, err := loader.Metadata(ctx, items, opts)
		if err != nil {
			return fmt.Errorf("metadata failed: %w", err)
		}
		fmt.Fprintln(a.outW, renderMetadata(res))
		return nil
	}

	var bar *progressBar
	if a.cfg.Progress {
		bar = newProgressBar(a.outW)
		opts.Progress = bar.Update
	}
	ds, err := loader.Load(ctx, items, opts)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	fmt.Fprintln(a.outW, renderSummary(ds))

	if a.cfg.OutDir != "" {
		if _, err := writePreviews(ctx, a.cfg.OutDir, ds, a.cfg.PreviewSize); err != nil {
			return err
		}
	}
	logger.Debug("App.Run method finished.")
	return nil
}


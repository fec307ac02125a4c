package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/metrics"
	"github.com/vk/stacgridgo/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	model    *config.Model
	registry *registry.Registry

	prom    *prometheus.Registry
	metrics *metrics.Metrics

	httpServer *http.Server
}

// NewApp builds an App with its own logger, driver registry and metrics
// registry. Configuration files are loaded eagerly; a failure to load them
// is a fatal startup error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var paths []string
	paths = append(paths, cfg.ConfigPaths...)
	if cfg.StacCfgPath != "" {
		paths = append(paths, cfg.StacCfgPath)
	}
	model := config.New()
	if len(paths) > 0 {
		if loader == nil {
			panic(fmt.Errorf("configuration files given but no loader configured"))
		}
		m, err := loader.Load(ctx, paths...)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		model = m
	}
	logger.Debug("Configuration loaded.", "sources", model.Sources, "collections", model.CollectionNames())

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("Raster drivers registered.", "count", len(modules), "schemes", reg.Schemes())

	prom := prometheus.NewRegistry()
	m, err := metrics.New(prom)
	if err != nil {
		panic(fmt.Errorf("failed to register metrics: %w", err))
	}

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		model:    model,
		registry: reg,
		prom:     prom,
		metrics:  m,
	}
}

// Registry returns the application's driver registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the merged configuration model.
func (a *App) Model() *config.Model {
	return a.model
}

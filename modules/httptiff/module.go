// Package httptiff fetches GeoTIFFs over HTTP(S) and from S3, using the
// per-load environment for credentials, headers, timeouts, and retries.
package httptiff

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/geotiff"
	"github.com/vk/stacgridgo/internal/raster"
	"github.com/vk/stacgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register binds the http, https and s3 schemes to one shared driver.
func (m *Module) Register(r *registry.Registry) {
	d := NewDriver()
	for _, s := range []string{"http", "https", "s3"} {
		r.RegisterDriver(s, d)
	}
}

// Driver downloads whole objects. Clients are pooled per timeout so
// connections are reused across loads with the same environment.
type Driver struct {
	MinOverview int

	mu      sync.Mutex
	clients map[time.Duration]*http.Client
}

// NewDriver returns a driver with overviews down to 256 pixels.
func NewDriver() *Driver {
	return &Driver{MinOverview: 256, clients: make(map[time.Duration]*http.Client)}
}

func (d *Driver) client(e env.Env) *http.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clients == nil {
		d.clients = make(map[time.Duration]*http.Client)
	}
	c, ok := d.clients[e.Timeout]
	if !ok {
		c = e.HTTPClient()
		d.clients[e.Timeout] = c
	}
	return c
}

// CloseIdleConnections releases pooled connections.
func (d *Driver) CloseIdleConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.clients {
		c.CloseIdleConnections()
	}
}

// Open implements raster.Driver.
func (d *Driver) Open(ctx context.Context, uri string, e env.Env) (raster.Reader, error) {
	logger := ctxlog.FromContext(ctx).With("uri", uri)
	start := time.Now()
	data, err := e.Fetch(ctx, d.client(e), uri, 0, 0)
	if err != nil {
		return nil, err
	}
	img, err := geotiff.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode '%s': %w", uri, err)
	}
	var ov []int
	if d.MinOverview > 0 {
		ov = geotiff.DefaultOverviews(img.Width, img.Height, d.MinOverview)
	}
	logger.Debug("Fetched remote raster.", "bytes", len(data), "duration", time.Since(start))
	return geotiff.NewReader(img, ov...)
}

// Package localtiff opens GeoTIFF files from the local filesystem, for
// file:// URIs and bare paths.
package localtiff

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/geotiff"
	"github.com/vk/stacgridgo/internal/raster"
	"github.com/vk/stacgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register binds the "file" scheme.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDriver("file", &Driver{MinOverview: 256})
}

// Driver reads whole files into memory.
type Driver struct {
	// MinOverview is the short side, in pixels, below which no further
	// overview level is built. Zero disables overviews.
	MinOverview int
}

// Path converts a file URI or bare path to a filesystem path.
func Path(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		return uri, nil
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URI: %s", uri)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("remote file URI host %q is not supported", u.Host)
	}
	return u.Path, nil
}

// Open implements raster.Driver.
func (d *Driver) Open(ctx context.Context, uri string, _ env.Env) (raster.Reader, error) {
	path, err := Path(uri)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	img, err := geotiff.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode '%s': %w", path, err)
	}
	var ov []int
	if d.MinOverview > 0 {
		ov = geotiff.DefaultOverviews(img.Width, img.Height, d.MinOverview)
	}
	ctxlog.FromContext(ctx).Debug("Opened local raster.", "path", path, "bytes", len(data), "overviews", ov)
	return geotiff.NewReader(img, ov...)
}

package registry

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/raster"
)

// Module is the interface that all driver modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the drivers of a single application instance.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]raster.Driver
}

// New creates a registry and registers the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{drivers: make(map[string]raster.Driver)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterDriver binds a URI scheme to a driver, replacing any previous one.
func (r *Registry) RegisterDriver(scheme string, d raster.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[strings.ToLower(scheme)] = d
}

// Schemes lists the registered schemes, sorted.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.drivers))
}

// Scheme returns the scheme of a resource URI. Paths without a scheme,
// including Windows drive letters, are "file".
func Scheme(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// Driver returns the driver for a URI.
func (r *Registry) Driver(uri string) (raster.Driver, error) {
	scheme := Scheme(uri)
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[scheme]
	if !ok {
		return nil, fmt.Errorf("no driver registered for scheme %q", scheme)
	}
	return d, nil
}

// Open opens a resource with its scheme's driver.
func (r *Registry) Open(ctx context.Context, uri string, e env.Env) (raster.Reader, error) {
	d, err := r.Driver(uri)
	if err != nil {
		return nil, err
	}
	return d.Open(ctx, uri, e)
}

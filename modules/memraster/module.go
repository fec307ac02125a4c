// Package memraster serves rasters held in process memory under mem://
// URIs. It backs tests and callers that already have pixels in hand.
package memraster

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/raster"
	"github.com/vk/stacgridgo/internal/registry"
)

// Scheme is the URI scheme served by the store.
const Scheme = "mem"

// Module implements the registry.Module interface for this package.
type Module struct {
	Store *Store
}

// Register binds the mem scheme to the module's store.
func (m *Module) Register(r *registry.Registry) {
	if m.Store == nil {
		m.Store = NewStore()
	}
	r.RegisterDriver(Scheme, m.Store)
}

type dataset struct {
	gb        geo.GeoBox
	bands     [][]float64
	nodata    *float64
	dtype     string
	overviews []int
	err       error
}

// Store is a raster.Driver over named in-memory datasets. Every Open
// returns a fresh reader; the store counts opens and live readers.
type Store struct {
	mu    sync.Mutex
	data  map[string]*dataset
	opens map[string]int
	live  map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data:  make(map[string]*dataset),
		opens: make(map[string]int),
		live:  make(map[string]int),
	}
}

// Put stores bands laid out row-major on gb.
func (s *Store) Put(uri string, gb geo.GeoBox, bands [][]float64, nodata *float64, dtype string, overviews ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[uri] = &dataset{gb: gb, bands: bands, nodata: nodata, dtype: dtype, overviews: slices.Clone(overviews)}
}

// PutError makes every open of uri fail with err.
func (s *Store) PutError(uri string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[uri] = &dataset{err: err}
}

// Opens is the number of successful opens of uri.
func (s *Store) Opens(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[uri]
}

// Live is the number of readers opened and not yet closed, over all URIs.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.live {
		n += v
	}
	return n
}

// Open implements raster.Driver.
func (s *Store) Open(ctx context.Context, uri string, _ env.Env) (raster.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	d, ok := s.data[uri]
	s.mu.Unlock()
	switch {
	case !ok:
		return nil, fmt.Errorf("no in-memory raster at %s", uri)
	case d.err != nil:
		return nil, d.err
	}

	rd, err := raster.NewMemReader(d.gb, d.bands, d.nodata, d.dtype, d.overviews...)
	if err != nil {
		return nil, fmt.Errorf("invalid in-memory raster %s: %w", uri, err)
	}
	s.mu.Lock()
	s.opens[uri]++
	s.live[uri]++
	s.mu.Unlock()
	return &reader{MemReader: rd, store: s, uri: uri}, nil
}

type reader struct {
	*raster.MemReader
	store *Store
	uri   string
	once  sync.Once
}

func (r *reader) Close() error {
	r.once.Do(func() {
		r.store.mu.Lock()
		r.store.live[r.uri]--
		r.store.mu.Unlock()
	})
	return r.MemReader.Close()
}

package dataset

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/geo"
)

// SkippedAsset records a source whose read failed and was left out of the
// result because the load tolerates errors.
type SkippedAsset struct {
	ItemID string
	Band   string
	URI    string
	Err    error
}

func (s SkippedAsset) String() string {
	return fmt.Sprintf("%s/%s (%s): %v", s.ItemID, s.Band, s.URI, s.Err)
}

// ComputeFunc materialises the pending chunks of a dataset.
type ComputeFunc func(ctx context.Context) error

// Dataset is a loaded (or lazily loadable) stack of band arrays.
type Dataset struct {
	ID     string
	GeoBox geo.GeoBox
	Times  []time.Time
	// Labels carries the group labels of label-keyed groupings; empty
	// strings for time-keyed groups.
	Labels []string
	// Bands lists band names in load order.
	Bands      []string
	Arrays     map[string]*Array
	Degenerate []*errs.GeometryDegeneracyError

	compute   ComputeFunc
	computeMu sync.Mutex

	mu      sync.Mutex
	skipped map[string]SkippedAsset
}

// New assembles a dataset. compute may be nil for datasets built fully
// in memory.
func New(id string, gb geo.GeoBox, times []time.Time, labels []string, arrays []*Array, compute ComputeFunc) *Dataset {
	d := &Dataset{
		ID:      id,
		GeoBox:  gb,
		Times:   times,
		Labels:  labels,
		Arrays:  make(map[string]*Array, len(arrays)),
		compute: compute,
		skipped: make(map[string]SkippedAsset),
	}
	for _, a := range arrays {
		d.Bands = append(d.Bands, a.Name)
		d.Arrays[a.Name] = a
	}
	return d
}

// Grid returns the output grid, so a dataset can be used as a "like"
// template for another load.
func (d *Dataset) Grid() geo.GeoBox { return d.GeoBox }

// Band returns the array of one band.
func (d *Dataset) Band(name string) (*Array, bool) {
	a, ok := d.Arrays[name]
	return a, ok
}

// Complete reports whether every chunk of every band is materialised.
func (d *Dataset) Complete() bool {
	for _, a := range d.Arrays {
		if !a.Complete() {
			return false
		}
	}
	return true
}

// Compute materialises pending chunks. Chunks finished before an error or
// cancellation stay written and are not recomputed by a later call.
func (d *Dataset) Compute(ctx context.Context) error {
	d.computeMu.Lock()
	defer d.computeMu.Unlock()
	if d.Complete() {
		return nil
	}
	if d.compute == nil {
		return errors.New("dataset has pending chunks but no compute function")
	}
	return d.compute(ctx)
}

// AddSkipped records a skipped asset once per (item, band, uri) and
// reports whether the record is new.
func (d *Dataset) AddSkipped(s SkippedAsset) bool {
	key := s.ItemID + "\x00" + s.Band + "\x00" + s.URI
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.skipped[key]; ok {
		return false
	}
	d.skipped[key] = s
	return true
}

// Skipped returns the skipped assets ordered by item, band and URI.
func (d *Dataset) Skipped() []SkippedAsset {
	d.mu.Lock()
	out := make([]SkippedAsset, 0, len(d.skipped))
	for _, s := range d.skipped {
		out = append(out, s)
	}
	d.mu.Unlock()
	slices.SortFunc(out, func(a, b SkippedAsset) int {
		return cmp.Or(cmp.Compare(a.ItemID, b.ItemID), cmp.Compare(a.Band, b.Band), cmp.Compare(a.URI, b.URI))
	})
	return out
}

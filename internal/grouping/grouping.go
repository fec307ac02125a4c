// Package grouping buckets parsed items into the time slices of the output
// array.
package grouping

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/model"
)

// Built-in policy names.
const (
	PolicyTime     = "time"
	PolicySolarDay = "solar_day"
	PolicyID       = "id"
)

// Key identifies a group. Time orders groups; Label separates groups that
// share a time, e.g. property values.
type Key struct {
	Time  time.Time
	Label string
}

func (k Key) compare(o Key) int {
	if c := k.Time.Compare(o.Time); c != 0 {
		return c
	}
	return cmp.Compare(k.Label, o.Label)
}

// String renders the key for logs and dataset coordinates.
func (k Key) String() string {
	if k.Label != "" {
		return k.Label
	}
	return k.Time.Format(time.RFC3339)
}

// KeyFunc assigns an item to a group.
type KeyFunc func(it *model.ParsedItem) (Key, error)

// Group is an ordered bucket of items sharing one time coordinate. Later
// items take precedence when composited.
type Group struct {
	Key   Key
	Items []*model.ParsedItem
}

// Options selects how items are grouped.
type Options struct {
	// Policy is PolicyTime (default), PolicySolarDay, PolicyID, or the name
	// of an item property.
	Policy string
	// KeyFunc overrides Policy.
	KeyFunc KeyFunc
	// Longitude used for solar day offsets; nil uses each item's centroid.
	Longitude *float64
	// SortWithinGroup orders items by (nominal datetime, id) instead of
	// input order.
	SortWithinGroup bool
}

// ByTime groups items with identical nominal timestamps.
func ByTime(it *model.ParsedItem) (Key, error) {
	t, err := it.NominalDatetime()
	if err != nil {
		return Key{}, err
	}
	return Key{Time: t}, nil
}

// BySolarDay groups items by the local calendar date at longitude lon, or
// at the item centroid when lon is nil.
func BySolarDay(lon *float64) KeyFunc {
	return func(it *model.ParsedItem) (Key, error) {
		x := 0.0
		switch {
		case lon != nil:
			x = *lon
		default:
			c, ok := it.Centroid()
			if !ok {
				return Key{}, fmt.Errorf("item %q has no footprint for solar day grouping", it.ID)
			}
			x = c[0]
		}
		d, err := it.SolarDate(x)
		if err != nil {
			return Key{}, err
		}
		return Key{Time: d}, nil
	}
}

// ByID puts every item into its own group.
func ByID(it *model.ParsedItem) (Key, error) {
	t, _ := it.NominalDatetime()
	return Key{Time: t, Label: it.ID}, nil
}

// ByProperty groups items by the value of one property. Groups are
// ordered by the earliest member timestamp, then by value.
func ByProperty(name string) KeyFunc {
	return func(it *model.ParsedItem) (Key, error) {
		t, _ := it.NominalDatetime()
		v, ok := it.Properties[name]
		if !ok || v == nil {
			return Key{Time: t}, nil
		}
		return Key{Time: t, Label: fmt.Sprint(v)}, nil
	}
}

func (o Options) keyFunc() KeyFunc {
	if o.KeyFunc != nil {
		return o.KeyFunc
	}
	switch o.Policy {
	case "", PolicyTime:
		return ByTime
	case PolicySolarDay:
		return BySolarDay(o.Longitude)
	case PolicyID:
		return ByID
	}
	return ByProperty(o.Policy)
}

// labelled reports whether group keys carry labels whose members may have
// different timestamps; such groups take the earliest member time.
func (o Options) labelled() bool {
	if o.KeyFunc != nil {
		return false
	}
	switch o.Policy {
	case "", PolicyTime, PolicySolarDay:
		return false
	}
	return true
}

// Items groups items, keeping input order within each group, and returns
// the groups sorted by key with no duplicates.
func Items(ctx context.Context, items []*model.ParsedItem, opts Options) ([]Group, error) {
	fn := opts.keyFunc()
	labelled := opts.labelled()

	index := make(map[string]int)
	var groups []Group
	for _, it := range items {
		k, err := fn(it)
		if err != nil {
			return nil, &errs.ConfigurationError{Field: "groupby", Reason: "cannot group item " + it.ID, Err: err}
		}
		id := k.Label
		if !labelled {
			id = k.Time.UTC().Format(time.RFC3339Nano) + "|" + k.Label
		}
		i, ok := index[id]
		if !ok {
			index[id] = len(groups)
			groups = append(groups, Group{Key: k})
			i = len(groups) - 1
		}
		g := &groups[i]
		if labelled && k.Time.Before(g.Key.Time) {
			g.Key.Time = k.Time
		}
		g.Items = append(g.Items, it)
	}

	slices.SortStableFunc(groups, func(a, b Group) int { return a.Key.compare(b.Key) })
	if opts.SortWithinGroup {
		for _, g := range groups {
			slices.SortStableFunc(g.Items, compareItems)
		}
	}
	ctxlog.FromContext(ctx).Debug("Items grouped.", "item_count", len(items), "group_count", len(groups))
	return groups, nil
}

func compareItems(a, b *model.ParsedItem) int {
	ta, _ := a.NominalDatetime()
	tb, _ := b.NominalDatetime()
	if c := ta.Compare(tb); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Times returns the time coordinate of every group.
func Times(groups []Group) []time.Time {
	out := make([]time.Time, len(groups))
	for i, g := range groups {
		out[i] = g.Key.Time
	}
	return out
}

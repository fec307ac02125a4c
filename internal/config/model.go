package config

import (
	"errors"
	"maps"
	"slices"
)

// Model is the unified, format-agnostic representation of a load run.
type Model struct {
	// Load is nil when no file configured the load itself.
	Load *Load
	// Collections is keyed by collection id; "*" applies to every
	// collection.
	Collections map[string]*Collection
	Env         *Env
	// Sources lists the files the model was read from.
	Sources []string
}

// New returns an empty model.
func New() *Model {
	return &Model{Collections: make(map[string]*Collection)}
}

// Load holds the load parameters. Pointer and zero values mean "not set".
type Load struct {
	Scenario string
	Method   string

	Bands []string
	CRS   string
	// Resolution is one value for square pixels, or x then y.
	Resolution []float64
	Anchor     string
	Rotation   float64
	BBox       []float64

	GroupBy         string
	SortWithinGroup bool
	// Resampling is keyed by band name; "*" is the default.
	Resampling map[string]string
	// Chunks is keyed by "x" and "y".
	Chunks map[string]int

	DataType     string
	FillValue    *float64
	Nodata       *float64
	Fuse         string
	UseOverviews *bool
	FailOnError  *bool

	Executor string
	Workers  int
	// PatchURL is a query string appended to every asset href.
	PatchURL string
}

// Collection carries per-collection metadata hints.
type Collection struct {
	Name       string
	Assets     map[string]*Asset
	Aliases    map[string][]string
	IgnoreProj bool
	// Warnings is "all" (default) or "ignore".
	Warnings string
	// AliasOrder names the tie-break between assets claiming one alias.
	AliasOrder string
}

// Asset overrides the band metadata of one asset.
type Asset struct {
	Name     string
	DataType string
	Nodata   *float64
	Unit     string
}

// Env overrides the captured process environment for remote reads.
type Env struct {
	AWSRegion        string
	AWSEndpoint      string
	AWSNoSignRequest *bool
	RequesterPays    *bool
	BearerToken      string
	UserAgent        string
	Headers          map[string]string
	// Timeout and RetryDelay are in seconds.
	Timeout    float64
	RetryDelay float64
	MaxRetries *int
}

// ErrDuplicate is returned when two sources define the same singleton
// section.
var ErrDuplicate = errors.New("defined more than once")

// Merge folds o into m. Load and Env may come from one source only;
// collections merge asset by asset with o winning.
func (m *Model) Merge(o *Model) error {
	if o == nil {
		return nil
	}
	if o.Load != nil {
		if m.Load != nil {
			return &sectionError{section: "load", err: ErrDuplicate}
		}
		m.Load = o.Load
	}
	if o.Env != nil {
		if m.Env != nil {
			return &sectionError{section: "env", err: ErrDuplicate}
		}
		m.Env = o.Env
	}
	if m.Collections == nil {
		m.Collections = make(map[string]*Collection)
	}
	for name, c := range o.Collections {
		cur, ok := m.Collections[name]
		if !ok {
			m.Collections[name] = c
			continue
		}
		cur.merge(c)
	}
	m.Sources = append(m.Sources, o.Sources...)
	return nil
}

func (c *Collection) merge(o *Collection) {
	if c.Assets == nil {
		c.Assets = make(map[string]*Asset)
	}
	maps.Copy(c.Assets, o.Assets)
	if c.Aliases == nil {
		c.Aliases = make(map[string][]string)
	}
	maps.Copy(c.Aliases, o.Aliases)
	c.IgnoreProj = c.IgnoreProj || o.IgnoreProj
	if o.AliasOrder != "" {
		c.AliasOrder = o.AliasOrder
	}
	if o.Warnings != "" {
		c.Warnings = o.Warnings
	}
}

// CollectionNames returns the configured collection ids in sorted order.
func (m *Model) CollectionNames() []string {
	return slices.Sorted(maps.Keys(m.Collections))
}

type sectionError struct {
	section string
	err     error
}

func (e *sectionError) Error() string { return e.section + " section " + e.err.Error() }

func (e *sectionError) Unwrap() error { return e.err }

// Package stac is the STAC object model consumed by the item parser: Items,
// Assets, Collections, and the projection, raster, and electro-optical
// extension fields attached to them. Extension fields are decoded into
// typed optional records; anything else is kept raw so that arbitrary
// properties stay addressable.
package stac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Item is one STAC Item (a GeoJSON Feature).
type Item struct {
	Type           string            `json:"type"`
	StacVersion    string            `json:"stac_version,omitempty"`
	StacExtensions []string          `json:"stac_extensions,omitempty"`
	ID             string            `json:"id"`
	Collection     string            `json:"collection,omitempty"`
	Geometry       *geojson.Geometry `json:"geometry"`
	BBox           []float64         `json:"bbox,omitempty"`
	Properties     Properties        `json:"properties"`
	Assets         map[string]*Asset `json:"assets"`
	Links          []Link            `json:"links,omitempty"`
}

// Link is a STAC link object.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// Properties holds the item properties the loader understands plus the raw
// values of everything else.
type Properties struct {
	Datetime      *time.Time
	StartDatetime *time.Time
	EndDatetime   *time.Time
	Proj          Projection
	EOBands       []EOBand
	Raw           map[string]json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps every key in Raw.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Raw = raw

	var err error
	if p.Datetime, err = decodeTime(raw, "datetime"); err != nil {
		return err
	}
	if p.StartDatetime, err = decodeTime(raw, "start_datetime"); err != nil {
		return err
	}
	if p.EndDatetime, err = decodeTime(raw, "end_datetime"); err != nil {
		return err
	}
	if p.Proj, err = decodeProjection(raw); err != nil {
		return err
	}
	if v, ok := raw["eo:bands"]; ok {
		if err := json.Unmarshal(v, &p.EOBands); err != nil {
			return fmt.Errorf("eo:bands: %w", err)
		}
	}
	return nil
}

// MarshalJSON writes the raw property map back out.
func (p Properties) MarshalJSON() ([]byte, error) {
	if p.Raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Raw)
}

// Get decodes a property into a generic Go value.
func (p Properties) Get(key string) (any, bool) {
	v, ok := p.Raw[key]
	if !ok {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, false
	}
	return out, true
}

func decodeTime(raw map[string]json.RawMessage, key string) (*time.Time, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &t, nil
}

// ParseTime accepts RFC 3339 timestamps, with or without a zone, and dates.
func ParseTime(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"}
	var lastErr error
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// SelfHref returns the href of the item's self link, if any.
func (it *Item) SelfHref() string {
	for _, l := range it.Links {
		if l.Rel == "self" {
			return l.Href
		}
	}
	return ""
}

// ResolveHref makes a possibly relative asset href absolute against the
// item's self link.
func (it *Item) ResolveHref(href string) string {
	base := it.SelfHref()
	if base == "" || href == "" {
		return href
	}
	if u, err := url.Parse(href); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return href
	}
	if filepath.IsAbs(href) {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil || bu.Scheme == "" || len(bu.Scheme) == 1 {
		return filepath.Join(filepath.Dir(base), href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		bu.Path = path.Join(path.Dir(bu.Path), href)
		return bu.String()
	}
	return bu.ResolveReference(ref).String()
}

// ReadItems decodes items from a FeatureCollection, a JSON array, a single
// item, or a stream of newline-delimited items.
func ReadItems(r io.Reader) ([]*Item, error) {
	dec := json.NewDecoder(r)
	var items []*Item
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		found, err := decodeItems(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	return items, nil
}

func decodeItems(raw json.RawMessage) ([]*Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []*Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode item list: %w", err)
		}
		return items, nil
	}

	var head struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	switch strings.ToLower(head.Type) {
	case "featurecollection":
		items := make([]*Item, 0, len(head.Features))
		for i, f := range head.Features {
			var it Item
			if err := json.Unmarshal(f, &it); err != nil {
				return nil, fmt.Errorf("decode feature %d: %w", i, err)
			}
			items = append(items, &it)
		}
		return items, nil
	case "feature", "":
		var it Item
		if err := json.Unmarshal(trimmed, &it); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		return []*Item{&it}, nil
	default:
		return nil, fmt.Errorf("unexpected GeoJSON type %q", head.Type)
	}
}

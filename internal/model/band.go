// Package model holds the normalised, format-independent records produced
// by the item parser and consumed by the planner, grouping engine, and
// loader. Every value here is built once per load and treated as immutable
// afterwards.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BandKey addresses one band of one asset. Index is 1-based.
type BandKey struct {
	Asset string
	Index int
}

// String renders the key as "asset.N".
func (k BandKey) String() string {
	return k.Asset + "." + strconv.Itoa(k.Index)
}

// ParseBandKey splits "asset.N" into its parts. A name without a numeric
// suffix addresses band 1.
func ParseBandKey(s string) BandKey {
	if i := strings.LastIndex(s, "."); i > 0 && i < len(s)-1 {
		if n, err := strconv.Atoi(s[i+1:]); err == nil && n > 0 {
			return BandKey{Asset: s[:i], Index: n}
		}
	}
	return BandKey{Asset: s, Index: 1}
}

// Default band metadata used when neither the items nor the configuration
// say anything.
const (
	DefaultDataType = "float32"
	DefaultUnit     = "1"
)

// RasterBandMetadata describes one band's pixel values. Scale and Offset
// are recorded when present but never applied.
type RasterBandMetadata struct {
	DataType string
	Nodata   *float64
	Unit     string
	Scale    *float64
	Offset   *float64
}

// WithDefaults fills unset fields with the package defaults.
func (m RasterBandMetadata) WithDefaults() RasterBandMetadata {
	if m.DataType == "" {
		m.DataType = DefaultDataType
	}
	if m.Unit == "" {
		m.Unit = DefaultUnit
	}
	return m
}

// Patch returns m with every field that is set in o overriding it.
func (m RasterBandMetadata) Patch(o RasterBandMetadata) RasterBandMetadata {
	if o.DataType != "" {
		m.DataType = o.DataType
	}
	if o.Nodata != nil {
		m.Nodata = o.Nodata
	}
	if o.Unit != "" {
		m.Unit = o.Unit
	}
	if o.Scale != nil {
		m.Scale = o.Scale
	}
	if o.Offset != nil {
		m.Offset = o.Offset
	}
	return m
}

// Conflicts reports how m and o disagree on data type or nodata, when both
// specify them.
func (m RasterBandMetadata) Conflicts(o RasterBandMetadata) string {
	if m.DataType != "" && o.DataType != "" && m.DataType != o.DataType {
		return fmt.Sprintf("data_type %s vs %s", m.DataType, o.DataType)
	}
	if m.Nodata != nil && o.Nodata != nil && !SameValue(*m.Nodata, *o.Nodata) {
		return fmt.Sprintf("nodata %v vs %v", *m.Nodata, *o.Nodata)
	}
	return ""
}

// SameValue compares floats treating NaN as equal to NaN.
func SameValue(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

// Float is a helper for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

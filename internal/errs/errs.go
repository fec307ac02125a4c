// Package errs defines the error kinds produced while turning STAC items
// into gridded arrays. Each kind is a typed error carrying context about
// the item, band, or setting involved, and each matches a sentinel value
// with errors.Is so callers can branch on the kind without type switches.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for handling purposes.
type Kind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown Kind = iota
	// KindParse is a per-item failure to derive geometry.
	KindParse
	// KindConfiguration is a fatal problem with the load request or metadata.
	KindConfiguration
	// KindAssetRead is a failure to read or resample one source.
	KindAssetRead
	// KindGeometryDegeneracy is a recovered reprojection problem.
	KindGeometryDegeneracy
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindConfiguration:
		return "configuration"
	case KindAssetRead:
		return "asset_read"
	case KindGeometryDegeneracy:
		return "geometry_degeneracy"
	default:
		return "unknown"
	}
}

// Sentinel values matched by the typed errors below.
var (
	ErrParse              = errors.New("parse error")
	ErrConfiguration      = errors.New("configuration error")
	ErrAssetRead          = errors.New("asset read error")
	ErrGeometryDegeneracy = errors.New("geometry degeneracy")
)

// ParseError reports that an item's geometry could not be determined.
type ParseError struct {
	ItemID string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse item %q: %s", e.ItemID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ConfigurationError reports a load request that cannot be satisfied.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// AssetReadError identifies the asset whose read or resample failed.
type AssetReadError struct {
	ItemID string
	Band   string
	URI    string
	Err    error
}

func (e *AssetReadError) Error() string {
	return fmt.Sprintf("read item %q band %q from %s: %v", e.ItemID, e.Band, e.URI, e.Err)
}

func (e *AssetReadError) Unwrap() error { return e.Err }

func (e *AssetReadError) Is(target error) bool { return target == ErrAssetRead }

// GeometryDegeneracyError describes a footprint that could not be
// reprojected faithfully and was replaced by its bounding box.
type GeometryDegeneracyError struct {
	ItemID string
	Reason string
}

func (e *GeometryDegeneracyError) Error() string {
	return fmt.Sprintf("degenerate geometry for item %q: %s", e.ItemID, e.Reason)
}

func (e *GeometryDegeneracyError) Is(target error) bool { return target == ErrGeometryDegeneracy }

// Configuration builds a ConfigurationError with a formatted reason.
func Configuration(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// KindOf classifies err by walking its chain.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrAssetRead):
		return KindAssetRead
	case errors.Is(err, ErrGeometryDegeneracy):
		return KindGeometryDegeneracy
	default:
		return KindUnknown
	}
}

// IsParse reports whether err is a ParseError.
func IsParse(err error) bool { return errors.Is(err, ErrParse) }

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsAssetRead reports whether err is an AssetReadError.
func IsAssetRead(err error) bool { return errors.Is(err, ErrAssetRead) }

// IsGeometryDegeneracy reports whether err is a GeometryDegeneracyError.
func IsGeometryDegeneracy(err error) bool { return errors.Is(err, ErrGeometryDegeneracy) }

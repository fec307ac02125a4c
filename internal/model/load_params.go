package model

import "math"

// RasterLoadParams controls how one output band is produced.
type RasterLoadParams struct {
	DataType          string
	FillValue         *float64
	SrcNodataFallback *float64
	SrcNodataOverride *float64
	UseOverviews      bool
	Resampling        string
	FailOnError       bool
}

// DefaultLoadParams reads with nearest resampling and fails on errors.
func DefaultLoadParams() RasterLoadParams {
	return RasterLoadParams{Resampling: "nearest", FailOnError: true}
}

// ResolveDataType picks the output data type: explicit, then the band's,
// then float32.
func (p RasterLoadParams) ResolveDataType(meta RasterBandMetadata) string {
	if p.DataType != "" {
		return p.DataType
	}
	if meta.DataType != "" {
		return meta.DataType
	}
	return DefaultDataType
}

// ResolveSrcNodata picks the value that marks missing source pixels: the
// override, else what the source declares, else the fallback.
func (p RasterLoadParams) ResolveSrcNodata(declared *float64) *float64 {
	if p.SrcNodataOverride != nil {
		return p.SrcNodataOverride
	}
	if declared != nil {
		return declared
	}
	return p.SrcNodataFallback
}

// ResolveFill picks the output nodata value: the fill value, else NaN for
// float outputs, else the source nodata, else zero.
func (p RasterLoadParams) ResolveFill(dtype string, srcNodata *float64) float64 {
	switch {
	case p.FillValue != nil:
		return Cast(dtype, *p.FillValue)
	case IsFloat(dtype):
		return math.NaN()
	case srcNodata != nil:
		return Cast(dtype, *srcNodata)
	}
	return 0
}

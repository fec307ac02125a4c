package model

import (
	"fmt"
	"math"
)

type dtypeInfo struct {
	float    bool
	min, max float64
}

var dtypes = map[string]dtypeInfo{
	"uint8":   {min: 0, max: math.MaxUint8},
	"uint16":  {min: 0, max: math.MaxUint16},
	"uint32":  {min: 0, max: math.MaxUint32},
	"uint64":  {min: 0, max: math.MaxUint64},
	"int8":    {min: math.MinInt8, max: math.MaxInt8},
	"int16":   {min: math.MinInt16, max: math.MaxInt16},
	"int32":   {min: math.MinInt32, max: math.MaxInt32},
	"int64":   {min: math.MinInt64, max: math.MaxInt64},
	"float16": {float: true},
	"float32": {float: true},
	"float64": {float: true},
}

// ValidDataType reports whether name is a supported pixel data type.
func ValidDataType(name string) bool {
	_, ok := dtypes[name]
	return ok
}

// CheckDataType returns an error for unsupported data type names.
func CheckDataType(name string) error {
	if !ValidDataType(name) {
		return fmt.Errorf("unsupported data type %q", name)
	}
	return nil
}

// IsFloat reports whether the data type holds floating point values.
func IsFloat(name string) bool {
	return dtypes[name].float
}

// Cast converts v to the value it would have after storing it in an array
// of the given data type: rounded to nearest and clamped for integers,
// rounded to single precision for float32/float16.
func Cast(name string, v float64) float64 {
	info, ok := dtypes[name]
	if !ok || name == "float64" {
		return v
	}
	if info.float {
		return float64(float32(v))
	}
	if math.IsNaN(v) {
		return 0
	}
	v = math.RoundToEven(v)
	if v < info.min {
		return info.min
	}
	if v > info.max {
		return info.max
	}
	return v
}

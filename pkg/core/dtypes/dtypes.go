// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types supported by lazygraph,
// and converters to/from the corresponding Go types.
//
// It also includes the constraint interfaces used by generic kernels (Supported and GoFloat).
package dtypes

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// panicf panics with the formatted description.
//
// It is only used for bugs in the calling code, e.g. an unsupported Go type.
func panicf(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}

// Supported lists the Go types that can be stored in a tensor.
type Supported interface {
	float16.Float16 | float32 | float64
}

// GoFloat lists the native Go float types, the ones kernels can do arithmetic on directly.
type GoFloat interface {
	float32 | float64
}

// Pre-generate constant reflect.TypeOf for convenience.
var (
	float16Type = reflect.TypeOf(float16.Float16(0))
	float32Type = reflect.TypeOf(float32(0))
	float64Type = reflect.TypeOf(float64(0))
)

// FromGenericsType returns the DType enum for the given type that this package knows about.
func FromGenericsType[T Supported]() DType {
	var t T
	switch (any(t)).(type) {
	case float64:
		return Float64
	case float32:
		return Float32
	case float16.Float16:
		return Float16
	}
	return InvalidDType
}

// FromGoType returns the DType for the given "reflect.Type".
// It returns InvalidDType for unsupported types.
func FromGoType(t reflect.Type) DType {
	switch t {
	case float16Type:
		return Float16
	case float32Type:
		return Float32
	case float64Type:
		return Float64
	}
	return InvalidDType
}

// FromAny introspects the underlying type of any and returns the corresponding DType.
// Non-scalar types, or unsupported types return an InvalidDType.
func FromAny(value any) DType {
	if value == nil {
		return InvalidDType
	}
	return FromGoType(reflect.TypeOf(value))
}

// GoType returns the Go `reflect.Type` corresponding to the tensor DType.
func (dtype DType) GoType() reflect.Type {
	switch dtype {
	case Float16:
		return float16Type
	case Float32:
		return float32Type
	case Float64:
		return float64Type
	default:
		panicf("unknown dtype %q (%d) in DType.GoType", dtype, dtype)
		return nil
	}
}

// Size returns the number of bytes for the given DType.
func (dtype DType) Size() int {
	return int(dtype.GoType().Size())
}

// Memory returns the number of bytes for the given DType.
// It's an alias to Size, converted to uintptr.
func (dtype DType) Memory() uintptr {
	return uintptr(dtype.Size())
}

// IsSupported returns whether dtype is one of the element types kernels are implemented for.
func (dtype DType) IsSupported() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// MakeFlat returns a newly allocated flat slice (`[]T` for the dtype's Go type) with size elements,
// all set to zero.
func (dtype DType) MakeFlat(size int) any {
	switch dtype {
	case Float16:
		return make([]float16.Float16, size)
	case Float32:
		return make([]float32, size)
	case Float64:
		return make([]float64, size)
	default:
		panicf("cannot allocate flat data for dtype %s", dtype)
		return nil
	}
}

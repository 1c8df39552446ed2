// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

// DType is an enum of the element types a lazygraph tensor can hold.
//
// Only floating point types are supported: the kernels in this module are numeric
// (dot products and activation gradients) and don't define integer semantics.
type DType int32

//go:generate go tool enumer -type=DType -output=gen_dtype_enumer.go dtype_enum.go

const (
	// InvalidDType is the zero value, used for uninitialized shapes.
	InvalidDType DType = iota

	// Float16 is an IEEE 754 half-precision float, stored as github.com/x448/float16.Float16.
	// Kernels compute in float32 and round the results back.
	Float16

	// Float32 maps to Go's float32.
	Float32

	// Float64 maps to Go's float64.
	Float64
)

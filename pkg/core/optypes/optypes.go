// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optypes defines OpType, the enum of operations a lazy graph node can perform.
//
// It's a separate package so shape inference and the graph can both refer to it.
package optypes

// OpType is an enum of the operations supported by graph nodes.
//
// Each OpType has an ordered list of dispatch cases registered in package graph, selecting
// the kernel according to the categories of the operands.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optypes.go

const (
	OpTypeInvalid OpType = iota

	// OpTypeDot is the matrix (or batch of matrices) multiplication.
	OpTypeDot

	// OpTypeTanh is the elementwise hyperbolic tangent.
	OpTypeTanh

	// OpTypeTanhGrad is the elementwise gradient of tanh, given the upstream gradient and tanh's output.
	OpTypeTanhGrad

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

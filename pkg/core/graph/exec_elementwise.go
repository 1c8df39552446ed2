// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/optypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

func init() {
	for _, opType := range []optypes.OpType{optypes.OpTypeTanh, optypes.OpTypeTanhGrad} {
		registerCases(opType,
			&dispatchCase{
				name:      "Matrix",
				predicate: allOfCategory(shapes.CategoryMatrix),
				build:     buildElementwiseUnit(false),
			},
			// Operands may be broadcast views (see Duplicate), so batches are processed one matrix at a time.
			&dispatchCase{
				name:  "per-matrix",
				build: buildElementwiseUnit(true),
			},
		)
	}
}

// elementwiseUnit computes an elementwise operation, with all operands and output of the same shape.
type elementwiseUnit struct {
	opType    optypes.OpType
	inputs    []eval.ConstHandle
	output    eval.Handle
	shape     shapes.Shape
	perMatrix bool
}

func buildElementwiseUnit(perMatrix bool) unitBuilder {
	return func(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit {
		return &elementwiseUnit{
			opType:    node.OpType(),
			inputs:    inputs,
			output:    output,
			shape:     node.Shape(),
			perMatrix: perMatrix,
		}
	}
}

// Eval implements eval.Unit.
func (u *elementwiseUnit) Eval() {
	inputs := make([]*tensors.Tensor, len(u.inputs))
	for ii, input := range u.inputs {
		inputs[ii] = input.Data()
	}
	output := u.output.Allocate(u.shape)
	if !u.perMatrix || !u.shape.IsBatchMatrix() {
		elementwise(u.opType, inputs, output)
	} else {
		slices := make([]*tensors.Tensor, len(inputs))
		for b := range u.shape.BatchSize() {
			for ii, input := range inputs {
				slices[ii] = input.Slice(b)
			}
			elementwise(u.opType, slices, output.Slice(b))
		}
	}
	u.output.SetEval()
}

// elementwise computes the operation over contiguous tensors.
func elementwise(opType optypes.OpType, inputs []*tensors.Tensor, output *tensors.Tensor) {
	switch output.DType() {
	case dtypes.Float32:
		elementwiseGeneric[float32](opType, inputs, output)
	case dtypes.Float64:
		elementwiseGeneric[float64](opType, inputs, output)
	case dtypes.Float16:
		flats := make([][]float32, len(inputs))
		for ii, input := range inputs {
			flats[ii] = float16ToFloat32(tensors.ConstFlat[float16.Float16](input))
		}
		out := make([]float32, output.Size())
		elementwiseKernel(opType, flats, out)
		storeFloat32AsFloat16(tensors.MutableFlat[float16.Float16](output), out)
	default:
		exceptions.Panicf("%s: dtype %s not supported", opType, output.DType())
	}
}

func elementwiseGeneric[T dtypes.GoFloat](opType optypes.OpType, inputs []*tensors.Tensor, output *tensors.Tensor) {
	flats := make([][]T, len(inputs))
	for ii, input := range inputs {
		flats[ii] = tensors.ConstFlat[T](input)
	}
	elementwiseKernel(opType, flats, tensors.MutableFlat[T](output))
}

func elementwiseKernel[T constraints.Float](opType optypes.OpType, inputs [][]T, out []T) {
	switch opType {
	case optypes.OpTypeTanh:
		tanhKernel(inputs[0], out)
	case optypes.OpTypeTanhGrad:
		tanhGradKernel(inputs[0], inputs[1], out)
	default:
		exceptions.Panicf("elementwise kernel for %s not implemented", opType)
	}
}

func tanhKernel[T constraints.Float](x, out []T) {
	for ii, v := range x {
		out[ii] = T(math.Tanh(float64(v)))
	}
}

// tanhGradKernel computes grad * (1 - y^2), where y is the output of tanh.
func tanhGradKernel[T constraints.Float](grad, y, out []T) {
	for ii, g := range grad {
		out[ii] = g * (1 - y[ii]*y[ii])
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
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
	// Mixed categories never reach the dispatcher: Dot broadcasts the Matrix operand first.
	registerCases(optypes.OpTypeDot,
		&dispatchCase{
			name:      "Matrix x Matrix",
			predicate: allOfCategory(shapes.CategoryMatrix),
			build:     buildDotUnit,
		},
		&dispatchCase{
			name:      "BatchMatrix x BatchMatrix",
			predicate: allOfCategory(shapes.CategoryBatchMatrix),
			build:     buildBatchDotUnit,
		},
	)
}

// dotUnit multiplies two matrices.
type dotUnit struct {
	lhs, rhs eval.ConstHandle
	output   eval.Handle
	shape    shapes.Shape
}

func buildDotUnit(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit {
	return &dotUnit{lhs: inputs[0], rhs: inputs[1], output: output, shape: node.Shape()}
}

// Eval implements eval.Unit.
func (u *dotUnit) Eval() {
	lhs, rhs := u.lhs.Data(), u.rhs.Data()
	output := u.output.Allocate(u.shape)
	dotMatrices(lhs, rhs, output)
	u.output.SetEval()
}

// batchDotUnit multiplies each pair of matrices of two BatchMatrix, sequentially.
type batchDotUnit dotUnit

func buildBatchDotUnit(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit {
	return &batchDotUnit{lhs: inputs[0], rhs: inputs[1], output: output, shape: node.Shape()}
}

// Eval implements eval.Unit.
func (u *batchDotUnit) Eval() {
	lhs, rhs := u.lhs.Data(), u.rhs.Data()
	output := u.output.Allocate(u.shape)
	for b := range u.shape.BatchSize() {
		dotMatrices(lhs.Slice(b), rhs.Slice(b), output.Slice(b))
	}
	u.output.SetEval()
}

// dotMatrices writes lhs x rhs into output. All must be matrices of the same dtype.
func dotMatrices(lhs, rhs, output *tensors.Tensor) {
	rows, inner, cols := lhs.Rows(), lhs.Cols(), rhs.Cols()
	switch output.DType() {
	case dtypes.Float32:
		dotGeneric[float32](lhs, rhs, output, rows, inner, cols)
	case dtypes.Float64:
		dotGeneric[float64](lhs, rhs, output, rows, inner, cols)
	case dtypes.Float16:
		lhsF32 := float16ToFloat32(tensors.ConstFlat[float16.Float16](lhs))
		rhsF32 := float16ToFloat32(tensors.ConstFlat[float16.Float16](rhs))
		outF32 := make([]float32, rows*cols)
		dotKernel(lhsF32, rhsF32, outF32, rows, inner, cols)
		storeFloat32AsFloat16(tensors.MutableFlat[float16.Float16](output), outF32)
	default:
		exceptions.Panicf("Dot: dtype %s not supported", output.DType())
	}
}

func dotGeneric[T dtypes.GoFloat](lhs, rhs, output *tensors.Tensor, rows, inner, cols int) {
	dotKernel(tensors.ConstFlat[T](lhs), tensors.ConstFlat[T](rhs), tensors.MutableFlat[T](output), rows, inner, cols)
}

// dotKernel computes out[i][j] = sum_k lhs[i][k] * rhs[k][j], all in row-major order.
// The sum is accumulated from k=0 upwards.
func dotKernel[T constraints.Float](lhs, rhs, out []T, rows, inner, cols int) {
	for i := range rows {
		lhsRow := lhs[i*inner : (i+1)*inner]
		for j := range cols {
			var acc T
			for k, v := range lhsRow {
				acc += v * rhs[k*cols+j]
			}
			out[i*cols+j] = acc
		}
	}
}

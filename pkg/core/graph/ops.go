// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/optypes"
	"github.com/gomlx/lazygraph/pkg/core/shapeinference"
	"github.com/pkg/errors"
)

// Dot returns the matrix multiplication of lhs and rhs.
//
// The operands can be:
//
//   - Matrix x Matrix: [rows, inner] x [inner, cols] -> [rows, cols].
//   - BatchMatrix x BatchMatrix: each pair of matrices of the batch is multiplied, the batch sizes must match.
//   - Matrix x BatchMatrix or BatchMatrix x Matrix: the Matrix operand is broadcast (see Duplicate) to the
//     batch size of the other, and they are multiplied as BatchMatrix x BatchMatrix.
//
// Non-matching inner dimensions or batch sizes are a bug in the construction of the graph: it panics.
func Dot(lhs, rhs Operand, aux ...AuxParams) *Node {
	checkOperands("Dot", lhs, rhs)
	lhsShape, rhsShape := lhs.Shape(), rhs.Shape()
	switch {
	case lhsShape.IsMatrix() && rhsShape.IsBatchMatrix():
		lhs = Duplicate(lhs, rhsShape.BatchSize())
	case lhsShape.IsBatchMatrix() && rhsShape.IsMatrix():
		rhs = Duplicate(rhs, lhsShape.BatchSize())
	}
	shape, err := shapeinference.DotOp(lhs.Shape(), rhs.Shape())
	if err != nil {
		exceptions.Panicf("Dot(%s, %s): %v", lhs, rhs, err)
	}
	return newNode(optypes.OpTypeDot, shape, aux, lhs, rhs)
}

// Tanh returns the elementwise hyperbolic tangent of x.
func Tanh(x Operand, aux ...AuxParams) *Node {
	checkOperands("Tanh", x)
	shape, err := shapeinference.ElementwiseOp(optypes.OpTypeTanh, x.Shape())
	if err != nil {
		exceptions.Panicf("Tanh(%s): %v", x, err)
	}
	return newNode(optypes.OpTypeTanh, shape, aux, x)
}

// TanhGrad returns the gradient of tanh, given the upstream gradient grad and input, the output of
// the tanh being differentiated (not its pre-activation): grad * (1 - input^2), elementwise.
//
// grad and input must have the same shape: since both usually come from user values, a mismatch is
// returned as an error, and no node is created.
func TanhGrad(grad, input Operand, aux ...AuxParams) (*Node, error) {
	if grad == nil || input == nil {
		return nil, errors.New("TanhGrad: nil operand")
	}
	shape, err := shapeinference.ElementwiseOp(optypes.OpTypeTanhGrad, grad.Shape(), input.Shape())
	if err != nil {
		return nil, errors.WithMessagef(err, "TanhGrad(%s, %s)", grad, input)
	}
	if grad.Device() != input.Device() {
		return nil, errors.Errorf("TanhGrad(%s, %s): operands on different devices %s and %s",
			grad, input, grad.Device(), input.Device())
	}
	return newNode(optypes.OpTypeTanhGrad, shape, aux, grad, input), nil
}

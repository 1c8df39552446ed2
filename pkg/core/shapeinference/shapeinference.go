// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from operations and validates its inputs.
//
// It's used by package graph when nodes are constructed: the output shape of a node is computed once,
// and frozen, before any evaluation takes place.
//
// All functions return an error describing the invalid input. It's up to the caller to decide whether
// the error is recoverable (e.g. user provided values with mismatched shapes) or a bug in the
// construction of the graph (see graph.Dot, which panics).
package shapeinference

import (
	"github.com/gomlx/lazygraph/pkg/core/optypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/support/sets"
	"github.com/pkg/errors"
)

var (
	// ElementwiseOperations take operands of identical shapes, and return a value of that same shape.
	ElementwiseOperations = sets.MakeWith(
		optypes.OpTypeTanh,
		optypes.OpTypeTanhGrad,
	)

	// MatrixOperations are defined on the Matrix and BatchMatrix categories only.
	MatrixOperations = sets.MakeWith(
		optypes.OpTypeDot,
	)
)

// checkOperand returns an error if the operand shape is invalid or is not of a supported category.
func checkOperand(opType optypes.OpType, operand shapes.Shape) error {
	if !operand.Ok() || !operand.DType.IsSupported() {
		return errors.Errorf("invalid shape %s for %s", operand, opType)
	}
	if operand.Category() == shapes.CategoryInvalid {
		return errors.Errorf("%s operands must be a Matrix or a BatchMatrix, got shape %s", opType, operand)
	}
	return nil
}

// DotOp returns the output shape of the dot product (matrix multiplication) of lhs and rhs.
//
// Both operands must be of the same category:
//
//   - Matrix x Matrix: [rows, inner] x [inner, cols] -> [rows, cols].
//   - BatchMatrix x BatchMatrix: [batch, rows, inner] x [batch, inner, cols] -> [batch, rows, cols].
//
// Operands of mixed categories must be broadcast to BatchMatrix before calling DotOp.
func DotOp(lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	opType := optypes.OpTypeDot
	if err = checkOperand(opType, lhs); err != nil {
		return
	}
	if err = checkOperand(opType, rhs); err != nil {
		return
	}
	if lhs.DType != rhs.DType {
		err = errors.Errorf("data types (DType) for %s must match, got %s and %s", opType, lhs, rhs)
		return
	}
	if lhs.Category() != rhs.Category() {
		err = errors.Errorf("%s operands must be of the same category, got %s (%s) and %s (%s)",
			opType, lhs, lhs.Category(), rhs, rhs.Category())
		return
	}
	if lhs.Cols() != rhs.Rows() {
		err = errors.Errorf("%s inner dimensions don't match: lhs %s has %d columns, rhs %s has %d rows",
			opType, lhs, lhs.Cols(), rhs, rhs.Rows())
		return
	}
	if lhs.IsMatrix() {
		output = shapes.MakeMatrix(lhs.DType, lhs.Rows(), rhs.Cols())
		return
	}
	if lhs.BatchSize() != rhs.BatchSize() {
		err = errors.Errorf("%s batch sizes don't match: lhs %s, rhs %s", opType, lhs, rhs)
		return
	}
	output = shapes.MakeBatchMatrix(lhs.DType, lhs.BatchSize(), lhs.Rows(), rhs.Cols())
	return
}

// ElementwiseOp returns the output shape of an operation in ElementwiseOperations: all operands must have
// exactly the same shape (dtype included), which is also the shape of the output.
func ElementwiseOp(opType optypes.OpType, operands ...shapes.Shape) (output shapes.Shape, err error) {
	if !ElementwiseOperations.Has(opType) {
		err = errors.Errorf("operation %s is not in the ElementwiseOperations set, cannot process it with ElementwiseOp", opType)
		return
	}
	if len(operands) == 0 {
		err = errors.Errorf("%s requires at least one operand", opType)
		return
	}
	for _, operand := range operands {
		if err = checkOperand(opType, operand); err != nil {
			return
		}
	}
	for ii, operand := range operands[1:] {
		if !operand.Equal(operands[0]) {
			err = errors.Errorf("%s operands' shape mismatch: operand #0 is %s, operand #%d is %s",
				opType, operands[0], ii+1, operand)
			return
		}
	}
	output = operands[0].Clone()
	return
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
)

// ValueOperand is a leaf of the graph: a concrete tensor, available from the start.
type ValueOperand struct {
	tensor *tensors.Tensor
	handle eval.Handle
}

var _ Operand = (*ValueOperand)(nil)

// Value returns an Operand holding the given tensor, which must be a Matrix or a BatchMatrix.
//
// The tensor is not copied: it must not be changed while graphs using it are evaluated.
func Value(t *tensors.Tensor) *ValueOperand {
	t.AssertValid()
	t.Shape().AssertValidCategory()
	return &ValueOperand{tensor: t, handle: eval.NewEvaluatedHandle(t)}
}

// Tensor returns the tensor held by the value.
func (v *ValueOperand) Tensor() *tensors.Tensor { return v.tensor }

// Shape implements Operand.
func (v *ValueOperand) Shape() shapes.Shape { return v.tensor.Shape() }

// Device implements Operand.
func (v *ValueOperand) Device() tensors.Device { return v.tensor.Device() }

// EvalRegister implements Operand: values are always evaluated, it only tells the plan they are available.
func (v *ValueOperand) EvalRegister(plan *eval.Plan) eval.ConstHandle {
	plan.CheckDevice(v.Device())
	plan.Provide(v.handle.DataPtr())
	return v.handle.Const()
}

// Equal implements Operand: values are equal if they hold the same tensor (not a copy).
func (v *ValueOperand) Equal(other Operand) bool {
	o, ok := other.(*ValueOperand)
	return ok && o != nil && v.tensor == o.tensor
}

// String implements fmt.Stringer.
func (v *ValueOperand) String() string {
	return fmt.Sprintf("Value%s", v.tensor.Shape())
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
)

// DuplicateOperand presents a Matrix operand as a BatchMatrix, with the same matrix repeated for
// every batch index. See Duplicate.
type DuplicateOperand struct {
	source Operand
	count  int
	shape  shapes.Shape
}

var _ Operand = (*DuplicateOperand)(nil)

// Duplicate broadcasts the Matrix source to a BatchMatrix of count identical matrices, without copying
// its data.
//
// Rows and columns are those of source. Every batch slice of the value reads the same source memory,
// and the plan sees it as a read of source: no unit is registered for the duplication.
func Duplicate(source Operand, count int) *DuplicateOperand {
	if source == nil {
		exceptions.Panicf("Duplicate: nil source")
	}
	source.Shape().AssertCategory(shapes.CategoryMatrix)
	if count <= 0 {
		exceptions.Panicf("Duplicate(%s, %d): count must be > 0", source, count)
	}
	return &DuplicateOperand{
		source: source,
		count:  count,
		shape:  source.Shape().WithBatch(count),
	}
}

// Source operand being duplicated.
func (d *DuplicateOperand) Source() Operand { return d.source }

// Count is the number of replicas, that is, the batch size.
func (d *DuplicateOperand) Count() int { return d.count }

// Shape implements Operand.
func (d *DuplicateOperand) Shape() shapes.Shape { return d.shape }

// Device implements Operand.
func (d *DuplicateOperand) Device() tensors.Device { return d.source.Device() }

// EvalRegister implements Operand. It returns the handle of source, with a broadcast view:
// its identity is the one of source.
func (d *DuplicateOperand) EvalRegister(plan *eval.Plan) eval.ConstHandle {
	count := d.count
	return d.source.EvalRegister(plan).View(func(t *tensors.Tensor) *tensors.Tensor {
		return t.Broadcast(count)
	})
}

// Equal implements Operand.
func (d *DuplicateOperand) Equal(other Operand) bool {
	o, ok := other.(*DuplicateOperand)
	if !ok || o == nil {
		return false
	}
	return d.count == o.count && d.source.Equal(o.source)
}

// String implements fmt.Stringer.
func (d *DuplicateOperand) String() string {
	return fmt.Sprintf("Duplicate(%s, %d)", d.source, d.count)
}

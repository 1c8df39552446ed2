// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph implements lazy computation graphs over matrices and batches of matrices.
//
// Building a graph doesn't compute anything: Dot, Tanh and TanhGrad return a *Node describing the
// operation, with its output shape already calculated (and validated). The values are only computed
// when they are requested through an eval.Plan:
//
//	a := graph.Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
//	b := graph.Value(tensors.MustFromValue([][]float32{{5, 6}, {7, 8}}))
//	c := graph.Dot(a, b)
//	results := graph.MustEvaluate(eval.NewPlan(tensors.DeviceCPU), c)
//	fmt.Println(results[0]) // (Float32)[2 2]: [[19 22] [43 50]]
//
// Each Node computes its value at most once: requesting it again (or using it as an operand of
// several other nodes) reuses the same buffer.
//
// Structural errors, like the product of matrices with non-matching inner dimensions, panic at the
// point of construction (with exceptions.Panicf). Errors that may come from user values, like the
// shapes of TanhGrad operands, are returned.
package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
)

// Operand is anything that can be used as an input to a graph Node: a Value, another Node or
// a Duplicate of another operand.
//
// Shape and EvalRegister is all a caller needs to wire operands into a larger framework.
type Operand interface {
	// Shape of the operand value. It is known at construction time.
	Shape() shapes.Shape

	// Device where the value lives.
	Device() tensors.Device

	// EvalRegister registers with plan whatever is needed to compute the value, and returns the
	// handle to read it. The handle may not be evaluated yet, if the plan is in deferred mode.
	EvalRegister(plan *eval.Plan) eval.ConstHandle

	// Equal returns whether other describes the same value: same shape and structurally equal operands.
	Equal(other Operand) bool

	String() string
}

// checkOperands panics if any of the operands is nil, or if they don't share the same device.
// It returns the common device.
func checkOperands(opName string, operands ...Operand) tensors.Device {
	for ii, operand := range operands {
		if operand == nil {
			exceptions.Panicf("%s: operand #%d is nil", opName, ii)
		}
	}
	device := operands[0].Device()
	for ii, operand := range operands[1:] {
		if operand.Device() != device {
			exceptions.Panicf("%s: operands are on different devices: operand #0 on %s, operand #%d on %s",
				opName, device, ii+1, operand.Device())
		}
	}
	return device
}

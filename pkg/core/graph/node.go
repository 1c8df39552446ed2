// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/optypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"k8s.io/klog/v2"
)

// AuxParams holds the optional construction-time configuration of a Node.
// The zero value is the default.
type AuxParams struct {
	// Name is a label for the node, used when printing it and in logs.
	Name string
}

// Node represents a deferred operation over its operands.
//
// Its shape is calculated (and validated) at construction, and the kernel that will compute it is
// selected then too, based on the categories of its operands. After construction a Node is never
// changed, except for its buffer, which holds the result once it is computed.
//
// Node.String allows for a pretty-printing of the node and its operands.
type Node struct {
	opType   optypes.OpType
	aux      AuxParams
	shape    shapes.Shape
	device   tensors.Device
	operands []Operand

	// dispatch is the case selected to build the unit computing the node.
	dispatch *dispatchCase

	buffer eval.Buffer
}

// Compile time check that *Node is an Operand.
var _ Operand = (*Node)(nil)

// newNode creates a Node with the given (already validated) output shape and selects its dispatch case.
func newNode(opType optypes.OpType, shape shapes.Shape, aux []AuxParams, operands ...Operand) *Node {
	device := checkOperands(opType.String(), operands...)
	n := &Node{
		opType:   opType,
		shape:    shape,
		device:   device,
		operands: operands,
	}
	if len(aux) > 0 {
		n.aux = aux[0]
	}
	n.dispatch = selectCase(opType, operandShapes(operands))
	if klog.V(2).Enabled() {
		klog.Infof("graph: created %s -> %s (case %q)", n.label(), shape, n.dispatch.name)
	}
	return n
}

// OpType of the node.
func (n *Node) OpType() optypes.OpType { return n.opType }

// AuxParams returns the configuration the node was created with.
func (n *Node) AuxParams() AuxParams { return n.aux }

// Shape of the Node's output.
func (n *Node) Shape() shapes.Shape { return n.shape }

// DType of the Node's output.
func (n *Node) DType() dtypes.DType { return n.shape.DType }

// Device where the node is computed.
func (n *Node) Device() tensors.Device { return n.device }

// Operands of the node, in order.
func (n *Node) Operands() []Operand { return n.operands }

// IsEvaluated returns whether the node's value was already computed.
func (n *Node) IsEvaluated() bool { return n.buffer.IsEvaluated() }

// Equal implements Operand: two nodes are equal if they have the same operation, shape and
// configuration, and their operands are pairwise equal.
func (n *Node) Equal(other Operand) bool {
	o, ok := other.(*Node)
	if !ok || o == nil {
		return false
	}
	if n == o {
		return true
	}
	if n.opType != o.opType || n.aux != o.aux || !n.shape.Equal(o.shape) || len(n.operands) != len(o.operands) {
		return false
	}
	for ii, operand := range n.operands {
		if !operand.Equal(o.operands[ii]) {
			return false
		}
	}
	return true
}

// EvalRegister implements Operand.
//
// It's idempotent: once the node is evaluated (possibly by another plan) it only tells plan that its
// value is available, like a Value. If it is already registered with plan it returns the handle
// without walking the operands again. Otherwise it registers the operands first (so they are
// computed first), and then the unit computing this node.
func (n *Node) EvalRegister(plan *eval.Plan) eval.ConstHandle {
	plan.CheckDevice(n.device)
	handle := n.buffer.ConstHandle()
	if n.buffer.IsEvaluated() {
		plan.Provide(handle.DataPtr())
		return handle
	}
	if plan.IsRegistered(handle.DataPtr()) {
		return handle
	}
	inputs := make([]eval.ConstHandle, len(n.operands))
	deps := make([]eval.ID, len(n.operands))
	for ii, operand := range n.operands {
		inputs[ii] = operand.EvalRegister(plan)
		deps[ii] = inputs[ii].DataPtr()
	}
	output := n.buffer.Handle()
	unit := n.dispatch.build(n, inputs, output)
	if klog.V(2).Enabled() {
		klog.Infof("graph: registering %s (case %q) as output %s", n.label(), n.dispatch.name, output.DataPtr())
	}
	plan.Register(eval.TrivialGroup{Unit: unit}, output.DataPtr(), deps)
	return handle
}

// label is the op type and optional name of the node.
func (n *Node) label() string {
	if n.aux.Name != "" {
		return fmt.Sprintf("%s[%s]", n.opType, n.aux.Name)
	}
	return n.opType.String()
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	parts := make([]string, len(n.operands))
	for ii, operand := range n.operands {
		parts[ii] = operand.String()
	}
	return fmt.Sprintf("%s(%s)%s", n.label(), strings.Join(parts, ", "), n.shape)
}

func operandShapes(operands []Operand) []shapes.Shape {
	s := make([]shapes.Shape, len(operands))
	for ii, operand := range operands {
		s[ii] = operand.Shape()
	}
	return s
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package eval

// Unit is one computation: it reads its inputs through ConstHandle, and allocates, writes and
// marks as evaluated exactly one output Handle.
//
// The Plan guarantees Eval is called at most once, after all its dependencies were evaluated.
type Unit interface {
	Eval()
}

// UnitFunc adapts a function to a Unit.
type UnitFunc func()

// Eval implements Unit.
func (fn UnitFunc) Eval() { fn() }

// Group is a set of units executed by the Plan as one step, in the order returned by Units.
//
// Only TrivialGroup is used by the graph for now: a group of several units is how fused
// kernels would be registered.
type Group interface {
	Units() []Unit
}

// TrivialGroup is the Group of a single Unit.
type TrivialGroup struct {
	Unit Unit
}

// Units implements Group.
func (g TrivialGroup) Units() []Unit { return []Unit{g.Unit} }

// SequentialGroup executes its units in order, as one step.
type SequentialGroup []Unit

// Units implements Group.
func (g SequentialGroup) Units() []Unit { return g }

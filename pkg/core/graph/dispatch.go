// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/optypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/eval"
)

// unitBuilder creates the unit that computes node, reading from inputs (one per operand, in order)
// and writing to output.
type unitBuilder func(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit

// casePredicate selects a dispatchCase given the shapes of the operands.
type casePredicate func(operands []shapes.Shape) bool

// dispatchCase is one candidate kernel for an operation.
type dispatchCase struct {
	name string

	// predicate selects the case. If nil the case is a catch-all, only allowed as the last case.
	predicate casePredicate

	build unitBuilder
}

// dispatchTable holds the ordered list of cases for each OpType, registered with registerCases.
var dispatchTable [optypes.OpTypeLast][]*dispatchCase

// registerCases sets the ordered list of cases for opType. It should be called during initialization.
//
// It panics if the list is empty, if a catch-all case (nil predicate) is not the last, or if a case
// has no builder.
func registerCases(opType optypes.OpType, cases ...*dispatchCase) {
	validateCases(opType, cases)
	dispatchTable[opType] = cases
}

func validateCases(opType optypes.OpType, cases []*dispatchCase) {
	if opType <= optypes.OpTypeInvalid || opType >= optypes.OpTypeLast {
		exceptions.Panicf("registerCases: invalid op type %s", opType)
	}
	if len(cases) == 0 {
		exceptions.Panicf("registerCases(%s): no cases given", opType)
	}
	for ii, c := range cases {
		if c.build == nil {
			exceptions.Panicf("registerCases(%s): case %q has no builder", opType, c.name)
		}
		if c.predicate == nil && ii != len(cases)-1 {
			exceptions.Panicf("registerCases(%s): catch-all case %q must be the last one, but it is #%d of %d",
				opType, c.name, ii, len(cases))
		}
	}
}

// selectCase returns the case for an operation with operands of the given shapes.
//
// Exactly one case with a predicate may match. If none matches, the catch-all case is used.
// Anything else is a bug in the construction of the graph, and it panics.
func selectCase(opType optypes.OpType, operands []shapes.Shape) *dispatchCase {
	if opType <= optypes.OpTypeInvalid || opType >= optypes.OpTypeLast {
		exceptions.Panicf("graph: invalid op type %s", opType)
	}
	cases := dispatchTable[opType]
	var selected, catchAll *dispatchCase
	var matches []string
	for _, c := range cases {
		if c.predicate == nil {
			catchAll = c
			continue
		}
		if c.predicate(operands) {
			selected = c
			matches = append(matches, c.name)
		}
	}
	if len(matches) > 1 {
		exceptions.Panicf("graph: %d cases of %s match operands %v: %s",
			len(matches), opType, operands, strings.Join(matches, ", "))
	}
	if selected != nil {
		return selected
	}
	if catchAll != nil {
		return catchAll
	}
	exceptions.Panicf("graph: no case of %s matches operands %v", opType, operands)
	return nil
}

// allOfCategory returns a predicate that matches if all operands are of the given category.
func allOfCategory(category shapes.Category) casePredicate {
	return func(operands []shapes.Shape) bool {
		for _, operand := range operands {
			if operand.Category() != category {
				return false
			}
		}
		return true
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Evaluate registers the operands with plan, executes it, and returns the values of the operands.
//
// The returned tensors are the buffers of the nodes (or views on them, for Duplicate operands):
// they must not be modified.
//
// Structural errors found while registering or executing (e.g. a dangling dependency) are
// returned as errors.
func Evaluate(plan *eval.Plan, operands ...Operand) (results []*tensors.Tensor, err error) {
	if plan == nil {
		return nil, errors.New("graph.Evaluate: nil plan")
	}
	err = exceptions.TryCatch[error](func() {
		handles := make([]eval.ConstHandle, len(operands))
		for ii, operand := range operands {
			if operand == nil {
				exceptions.Panicf("operand #%d is nil", ii)
			}
			handles[ii] = operand.EvalRegister(plan)
		}
		plan.Execute()
		results = make([]*tensors.Tensor, len(handles))
		for ii, handle := range handles {
			results[ii] = handle.Data()
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "graph.Evaluate of %d operands", len(operands))
	}
	if klog.V(1).Enabled() {
		klog.Infof("graph.Evaluate: %d operands evaluated, plan %s", len(operands), plan.Stats())
	}
	return results, nil
}

// MustEvaluate is like Evaluate, but it panics on error.
func MustEvaluate(plan *eval.Plan, operands ...Operand) []*tensors.Tensor {
	return must.M1(Evaluate(plan, operands...))
}

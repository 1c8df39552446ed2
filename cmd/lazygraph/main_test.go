// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"math"
	"testing"

	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/graph"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Float16, dtypes.Float32, dtypes.Float64} {
		for _, batch := range []int{0, 3} {
			cfg := config{dtype: dtype, rows: 2, inner: 3, cols: 4, batch: batch}
			g := buildGraph(cfg)
			assert.False(t, g.grad.IsEvaluated())
			plan := eval.NewPlan(tensors.DeviceCPU).SetMode(eval.ModeDeferred)
			results, err := graph.Evaluate(plan, g.h, g.y, g.grad)
			require.NoError(t, err)
			assert.Equal(t, dtype, results[2].DType())
			assert.Equal(t, 3, plan.Stats().Registered)
			if batch > 0 {
				assert.Equal(t, batch, results[2].BatchSize())
			}

			// grad = 1 - tanh(h)^2.
			delta := 1e-6
			if dtype == dtypes.Float16 {
				delta = 1e-2
			}
			h, grad := results[0], results[2]
			if batch > 0 {
				h, grad = h.Slice(batch-1), grad.Slice(batch-1)
			}
			for row := range cfg.rows {
				for col := range cfg.cols {
					y := math.Tanh(h.At(row, col))
					assert.InDelta(t, 1-y*y, grad.At(row, col), delta)
				}
			}
		}
	}
}

func TestGraphFlops(t *testing.T) {
	assert.Equal(t, 2*2*3*4+2*4+3*2*4, graphFlops(config{rows: 2, inner: 3, cols: 4}))
	assert.Equal(t, 2*graphFlops(config{rows: 2, inner: 3, cols: 4}), graphFlops(config{rows: 2, inner: 3, cols: 4, batch: 2}))
}

func TestMatrixTable(t *testing.T) {
	rendered := matrixTable(tensors.MustFromValue([][]float32{{1.5, 2}, {3, 4}})).Render()
	assert.Contains(t, rendered, "1.5")
	assert.Contains(t, rendered, "row")
}

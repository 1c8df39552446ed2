// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/graph"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/x448/float16"
)

// config of the demo graph.
type config struct {
	dtype                    dtypes.DType
	rows, inner, cols, batch int
}

// demoGraph holds the nodes of the demo graph whose values are reported.
type demoGraph struct {
	h, y, grad *graph.Node
}

// buildGraph creates fresh inputs and nodes: nothing is evaluated.
func buildGraph(cfg config) demoGraph {
	xDims := []int{cfg.rows, cfg.inner}
	if cfg.batch > 0 {
		xDims = []int{cfg.batch, cfg.rows, cfg.inner}
	}
	x := graph.Value(makeInput(cfg.dtype, xDims, func(ii int) float64 {
		return float64(ii%7-3) / 4
	}))
	w := graph.Value(makeInput(cfg.dtype, []int{cfg.inner, cfg.cols}, func(ii int) float64 {
		return float64(ii%5-2) / 8
	}))
	ones := graph.Value(makeInput(cfg.dtype, []int{cfg.rows, cfg.cols}, func(int) float64 { return 1 }))

	var g demoGraph
	g.h = graph.Dot(x, w, graph.AuxParams{Name: "h"})
	g.y = graph.Tanh(g.h, graph.AuxParams{Name: "y"})
	var gradOf graph.Operand = ones
	if cfg.batch > 0 {
		gradOf = graph.Duplicate(ones, cfg.batch)
	}
	g.grad = must.M1(graph.TanhGrad(gradOf, g.y, graph.AuxParams{Name: "grad"}))
	return g
}

// makeInput creates a tensor with the given dimensions, with the value of each element given by
// fn(flat index).
func makeInput(dtype dtypes.DType, dimensions []int, fn func(ii int) float64) *tensors.Tensor {
	size := 1
	for _, dim := range dimensions {
		size *= dim
	}
	switch dtype {
	case dtypes.Float32:
		return tensors.FromFlatDataAndDimensions(makeFlat(size, fn, func(v float64) float32 { return float32(v) }), dimensions...)
	case dtypes.Float16:
		return tensors.FromFlatDataAndDimensions(makeFlat(size, fn, func(v float64) float16.Float16 {
			return float16.Fromfloat32(float32(v))
		}), dimensions...)
	default:
		return tensors.FromFlatDataAndDimensions(makeFlat(size, fn, func(v float64) float64 { return v }), dimensions...)
	}
}

func makeFlat[T dtypes.Supported](size int, fn func(int) float64, convert func(float64) T) []T {
	flat := make([]T, size)
	for ii := range flat {
		flat[ii] = convert(fn(ii))
	}
	return flat
}

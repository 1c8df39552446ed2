// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/lazygraph/pkg/core/graph"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// benchmark rebuilds and evaluates the graph repeat times, each with a fresh plan, and reports the throughput.
func benchmark(cfg config, mode eval.Mode, repeat int) {
	bar := progressbar.NewOptions(repeat,
		progressbar.OptionSetDescription("evaluating"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("graphs"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetWriter(os.Stderr),
	)
	var elapsed time.Duration
	var stats eval.Stats
	for range repeat {
		g := buildGraph(cfg)
		plan := eval.NewPlan(tensors.DeviceCPU).SetMode(mode)
		start := time.Now()
		_ = must.M1(graph.Evaluate(plan, g.grad))
		elapsed += time.Since(start)
		stats = plan.Stats()
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	flops := float64(graphFlops(cfg)) * float64(repeat) / elapsed.Seconds()
	fmt.Println(titleStyle.Render("Benchmark"))
	table := newPlainTable(false)
	table.Row("evaluations", humanize.Comma(int64(repeat)))
	table.Row("plan per evaluation", stats.String())
	table.Row("time per evaluation", (elapsed / time.Duration(repeat)).String())
	table.Row("throughput", humanize.SIWithDigits(flops, 2, "FLOP/s"))
	fmt.Println(table.Render())
	klog.V(1).Infof("benchmark: %d evaluations in %s", repeat, elapsed)
}

// graphFlops is the approximate number of floating point operations of one evaluation of the demo graph.
func graphFlops(cfg config) int {
	batch := max(cfg.batch, 1)
	outputSize := batch * cfg.rows * cfg.cols
	dot := 2 * outputSize * cfg.inner
	tanhGrad := 3 * outputSize
	return dot + outputSize + tanhGrad
}

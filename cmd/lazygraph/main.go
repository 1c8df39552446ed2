// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// lazygraph builds a small lazy graph, the gradient of a tanh layer without bias,
// evaluates it and prints the results.
//
// The graph is:
//
//	h = Dot(x, w)            // x is [batch, rows, inner] (or [rows, inner] if -batch=0), w is [inner, cols].
//	y = Tanh(h)
//	g = TanhGrad(ones, y)    // ones is a broadcast matrix of ones.
//
// Inputs are deterministic, so results are reproducible across runs. With -repeat=N it
// also rebuilds and re-evaluates the graph N times, and reports the throughput.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/graph"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"github.com/gomlx/lazygraph/pkg/support/fsutil"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"k8s.io/klog/v2"
)

var (
	flagRows  = flag.Int("rows", 3, "Number of rows of the input x.")
	flagInner = flag.Int("inner", 4, "Number of columns of x and rows of the weights w.")
	flagCols  = flag.Int("cols", 2, "Number of columns of the weights w (and of the results).")
	flagBatch = flag.Int("batch", 2, "Batch size of x. If 0, x is a plain matrix; otherwise "+
		"w is broadcast to the batch size.")
	flagDType = flag.String("dtype", "Float32", fmt.Sprintf("DType of the values, one of %q.", dtypes.DTypeStrings()[1:]))
	flagMode  = flag.String("mode", "", fmt.Sprintf("Evaluation mode, one of %q. If empty it is taken from "+
		"the environment variable %s, and defaults to %q.", eval.ModeStrings(), eval.LAZYGRAPH_EVAL_MODE, eval.DefaultMode))
	flagRepeat    = flag.Int("repeat", 0, "Number of times to rebuild and re-evaluate the graph, to measure throughput.")
	flagShow      = flag.Int("show", 2, "Maximum number of matrices to print for each result. Set to 0 to not print values.")
	flagSave      = flag.String("save", "", "If set, save the gradient result to the given file.")
	flagOverwrite = flag.Bool("overwrite", false, "Overwrite the -save file if it already exists.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'lazygraph -help'.", flag.Args())
		os.Exit(1)
	}
	if *flagRows <= 0 || *flagInner <= 0 || *flagCols <= 0 || *flagBatch < 0 {
		klog.Errorf("Invalid dimensions: -rows, -inner and -cols must be > 0, and -batch >= 0. See 'lazygraph -help'.")
		os.Exit(1)
	}
	dtype, err := dtypes.DTypeString(*flagDType)
	if err != nil || !dtype.IsSupported() {
		klog.Errorf("Invalid -dtype=%q, valid values are %q", *flagDType, dtypes.DTypeStrings()[1:])
		os.Exit(1)
	}
	plan, err := newPlan()
	if err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}

	// Disable colors if the terminal doesn't support them (or it's not a terminal).
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).ColorProfile())

	cfg := config{
		dtype: dtype,
		rows:  *flagRows,
		inner: *flagInner,
		cols:  *flagCols,
		batch: *flagBatch,
	}
	run(cfg, plan)
	if *flagRepeat > 0 {
		benchmark(cfg, plan.Mode(), *flagRepeat)
	}
}

// newPlan creates the plan with the mode from -mode, or from the environment if not set.
func newPlan() (*eval.Plan, error) {
	if *flagMode == "" {
		return eval.DefaultPlan()
	}
	mode, err := eval.ParseMode(*flagMode)
	if err != nil {
		return nil, err
	}
	return eval.NewPlan(tensors.DeviceCPU).SetMode(mode), nil
}

// run builds, evaluates and reports the graph once.
func run(cfg config, plan *eval.Plan) {
	g := buildGraph(cfg)
	start := time.Now()
	results := must.M1(graph.Evaluate(plan, g.h, g.y, g.grad))
	elapsed := time.Since(start)

	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("graph", g.grad.String())
	table.Row("mode", plan.Mode().String())
	table.Row("dtype", cfg.dtype.String())
	table.Row("plan", plan.Stats().String())
	var memory uintptr
	for _, result := range results {
		memory += result.Memory()
	}
	table.Row("results memory", humanize.Bytes(uint64(memory)))
	table.Row("elapsed", elapsed.String())
	fmt.Println(table.Render())

	if *flagShow > 0 {
		for ii, name := range []string{"h = Dot(x, w)", "y = Tanh(h)", "grad = TanhGrad(ones, y)"} {
			printResult(name, results[ii], *flagShow)
		}
	}

	if *flagSave != "" {
		savePath, err := fsutil.PrepareOutput(*flagSave, *flagOverwrite)
		if err != nil {
			klog.Errorf("Can't save results: %v", err)
			os.Exit(1)
		}
		must.M(results[2].Save(savePath))
		klog.Infof("Saved gradient %s to %q", results[2].Shape(), savePath)
	}
}

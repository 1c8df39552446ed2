// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/optypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/eval"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func newPlan(mode eval.Mode) *eval.Plan {
	return eval.NewPlan(tensors.DeviceCPU).SetMode(mode)
}

// forEachMode runs testFn as a sub-test for each evaluation mode.
func forEachMode(t *testing.T, testFn func(t *testing.T, mode eval.Mode)) {
	for _, mode := range eval.ModeValues() {
		t.Run(mode.String(), func(t *testing.T) { testFn(t, mode) })
	}
}

// instrumentCases replaces the dispatch cases of opType by ones whose units call record before and
// after executing.
func instrumentCases(t *testing.T, opType optypes.OpType, record func(node *Node, done bool)) {
	original := dispatchTable[opType]
	instrumented := make([]*dispatchCase, len(original))
	for ii, c := range original {
		build := c.build
		instrumented[ii] = &dispatchCase{
			name:      c.name,
			predicate: c.predicate,
			build: func(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit {
				unit := build(node, inputs, output)
				return eval.UnitFunc(func() {
					record(node, false)
					unit.Eval()
					record(node, true)
				})
			},
		}
	}
	dispatchTable[opType] = instrumented
	t.Cleanup(func() { dispatchTable[opType] = original })
}

func TestDot(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
		b := Value(tensors.MustFromValue([][]float32{{5, 6}, {7, 8}}))
		c := Dot(a, b)
		assert.True(t, c.Shape().Equal(shapes.MakeMatrix(dtypes.Float32, 2, 2)))
		assert.False(t, c.IsEvaluated(), "construction must not compute anything")
		results := MustEvaluate(newPlan(mode), c)
		assert.Equal(t, [][]float32{{19, 22}, {43, 50}}, results[0].Value())
		assert.True(t, c.IsEvaluated())

		// Non-square, float64.
		a64 := Value(tensors.MustFromValue([][]float64{{1, 2, 3}}))
		b64 := Value(tensors.MustFromValue([][]float64{{1, 0}, {0, 1}, {2, 2}}))
		results = MustEvaluate(newPlan(mode), Dot(a64, b64))
		assert.Equal(t, [][]float64{{7, 8}}, results[0].Value())
	})
}

func TestDotBatched(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		batchA := tensors.MustFromValue([][][]float64{{{1, 2}, {3, 4}}, {{-1, 0}, {2, 0.5}}})
		b := tensors.MustFromValue([][]float64{{5, 6}, {7, 8}})
		plan := newPlan(mode)

		// BatchMatrix x Matrix: the matrix is broadcast.
		c := Dot(Value(batchA), Value(b))
		require.True(t, c.Shape().Equal(shapes.MakeBatchMatrix(dtypes.Float64, 2, 2, 2)))
		duplicate, ok := c.Operands()[1].(*DuplicateOperand)
		require.True(t, ok, "Matrix operand should have been wrapped with Duplicate")
		assert.Equal(t, 2, duplicate.Count())

		// Matrix x BatchMatrix.
		d := Dot(Value(b), Value(batchA))
		results := MustEvaluate(plan, c, d)
		for idx := range 2 {
			expectedC := MustEvaluate(plan, Dot(Value(batchA.Slice(idx)), Value(b)))[0]
			assert.True(t, results[0].Slice(idx).Equal(expectedC), "batch #%d: got %s, wanted %s",
				idx, results[0].Slice(idx), expectedC)
			expectedD := MustEvaluate(plan, Dot(Value(b), Value(batchA.Slice(idx))))[0]
			assert.True(t, results[1].Slice(idx).Equal(expectedD), "batch #%d: got %s, wanted %s",
				idx, results[1].Slice(idx), expectedD)
		}
		assert.Equal(t, [][][]float64{{{19, 22}, {43, 50}}, {{-5, -6}, {13.5, 16}}}, results[0].Value())

		// BatchMatrix x BatchMatrix.
		batchB := tensors.MustFromValue([][][]float64{{{1, 0}, {0, 1}}, {{2, 0}, {0, 2}}})
		results = MustEvaluate(plan, Dot(Value(batchA), Value(batchB)))
		assert.Equal(t, [][][]float64{{{1, 2}, {3, 4}}, {{-2, 0}, {4, 1}}}, results[0].Value())
	})
}

func TestDotConformability(t *testing.T) {
	a := Value(tensors.FromShape(shapes.MakeMatrix(dtypes.Float32, 2, 3)))
	b := Value(tensors.FromShape(shapes.MakeMatrix(dtypes.Float32, 4, 2)))

	// Fails at construction time, not at evaluation.
	err := exceptions.TryCatch[error](func() { _ = Dot(a, b) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inner dimensions")

	// Batch sizes mismatch.
	batch2 := Value(tensors.FromShape(shapes.MakeBatchMatrix(dtypes.Float32, 2, 2, 3)))
	batch3 := Value(tensors.FromShape(shapes.MakeBatchMatrix(dtypes.Float32, 3, 3, 2)))
	assert.Panics(t, func() { _ = Dot(batch2, batch3) })

	// DType mismatch.
	b64 := Value(tensors.FromShape(shapes.MakeMatrix(dtypes.Float64, 3, 2)))
	assert.Panics(t, func() { _ = Dot(a, b64) })
	assert.Panics(t, func() { _ = Dot(a, nil) })
}

func TestTanhGrad(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		grad := Value(tensors.MustFromValue([][]float32{{0.5, 1.0}}))
		input := Value(tensors.MustFromValue([][]float32{{0.0, 0.5}}))
		node, err := TanhGrad(grad, input)
		require.NoError(t, err)
		results := MustEvaluate(newPlan(mode), node)
		assert.Equal(t, [][]float32{{0.5, 0.75}}, results[0].Value())
	})

	// Shape mismatch is a recoverable error, and no node (or buffer) is created.
	grad := Value(tensors.MustFromValue([][]float32{{0.5, 1.0}}))
	node, err := TanhGrad(grad, Value(tensors.MustFromValue([][]float32{{0.0}, {0.5}})))
	require.Error(t, err)
	assert.Nil(t, node)
	assert.Contains(t, err.Error(), "shape mismatch")
	_, err = TanhGrad(grad, Value(tensors.MustFromValue([][]float64{{0.0, 0.5}})))
	assert.Error(t, err)
	_, err = TanhGrad(nil, grad)
	assert.Error(t, err)
}

func TestTanhAndTanhGrad(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		x := tensors.MustFromValue([][][]float64{{{-1, 0, 2}}, {{0.5, 3, -0.25}}})
		ones := Value(tensors.MustFromValue([][]float64{{1, 1, 1}}))
		y := Tanh(Value(x))

		// The gradient of a broadcast matrix of ones is 1 - tanh(x)^2.
		grad, err := TanhGrad(Duplicate(ones, 2), y)
		require.NoError(t, err)
		results := MustEvaluate(newPlan(mode), y, grad)
		for b := range 2 {
			for col := range 3 {
				v := x.At(b, 0, col)
				assert.InDelta(t, math.Tanh(v), results[0].At(b, 0, col), 1e-12)
				assert.InDelta(t, 1-math.Tanh(v)*math.Tanh(v), results[1].At(b, 0, col), 1e-12)
			}
		}
	})
}

func TestIdempotence(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		counts := make(map[string]int)
		instrumentCases(t, optypes.OpTypeDot, func(node *Node, done bool) {
			if done {
				counts[node.AuxParams().Name]++
			}
		})
		a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
		b := Value(tensors.MustFromValue([][]float32{{5, 6}, {7, 8}}))
		c := Dot(a, b, AuxParams{Name: "c"})

		// c is used twice by d.
		d := Dot(c, c, AuxParams{Name: "d"})
		plan := newPlan(mode)
		for range 3 {
			results := MustEvaluate(plan, d, c)
			assert.Equal(t, [][]float32{{19, 22}, {43, 50}}, results[1].Value())
		}
		assert.Equal(t, 1, counts["c"])
		assert.Equal(t, 1, counts["d"])

		// Already evaluated nodes are not recomputed, even with a new plan.
		_ = MustEvaluate(newPlan(mode), d)
		assert.Equal(t, map[string]int{"c": 1, "d": 1}, counts)
		assert.Equal(t, 2, plan.Stats().Registered)
	})
}

func TestEvaluatedOperandInNewPlan(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		counts := make(map[string]int)
		instrumentCases(t, optypes.OpTypeDot, func(node *Node, done bool) {
			if done {
				counts[node.AuxParams().Name]++
			}
		})
		a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
		b := Value(tensors.MustFromValue([][]float32{{1, 0}, {0, 1}}))
		c := Dot(a, b, AuxParams{Name: "c"})
		_ = MustEvaluate(newPlan(mode), c)
		require.True(t, c.IsEvaluated())

		// A consumer built later and evaluated with a different plan reuses c.
		plan := newPlan(mode)
		d := Dot(c, b, AuxParams{Name: "d"})
		results, err := Evaluate(plan, d)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, results[0].Value())
		assert.Equal(t, map[string]int{"c": 1, "d": 1}, counts)
		assert.True(t, plan.IsDone(c.buffer.ConstHandle().DataPtr()))
		assert.Equal(t, 1, plan.Stats().Registered)
		assert.Equal(t, 2, plan.Stats().Provided)
	})
}

func TestSharedOperandRegisteredOnce(t *testing.T) {
	builds := make(map[string]int)
	original := dispatchTable[optypes.OpTypeDot]
	counted := make([]*dispatchCase, len(original))
	for ii, c := range original {
		build := c.build
		counted[ii] = &dispatchCase{
			name:      c.name,
			predicate: c.predicate,
			build: func(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit {
				builds[node.AuxParams().Name]++
				return build(node, inputs, output)
			},
		}
	}
	dispatchTable[optypes.OpTypeDot] = counted
	t.Cleanup(func() { dispatchTable[optypes.OpTypeDot] = original })

	a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
	b := Value(tensors.MustFromValue([][]float32{{5, 6}, {7, 8}}))
	c := Dot(a, b, AuxParams{Name: "c"})
	d := Dot(c, c, AuxParams{Name: "d"})
	e := Dot(d, c, AuxParams{Name: "e"})

	plan := newPlan(eval.ModeDeferred)
	_ = e.EvalRegister(plan)
	_ = e.EvalRegister(plan)
	assert.Equal(t, map[string]int{"c": 1, "d": 1, "e": 1}, builds)
	assert.Equal(t, 3, plan.Pending())
	assert.Equal(t, 0, plan.Stats().Skipped)
	require.NoError(t, plan.ExecuteE())
	assert.True(t, e.IsEvaluated())
}

func TestDependencyOrder(t *testing.T) {
	forEachMode(t, func(t *testing.T, mode eval.Mode) {
		var order []string
		instrumentCases(t, optypes.OpTypeDot, func(node *Node, done bool) {
			event := "start"
			if done {
				event = "end"
			}
			order = append(order, fmt.Sprintf("%s:%s", event, node.AuxParams().Name))
		})
		a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
		b := Value(tensors.MustFromValue([][]float32{{5, 6}, {7, 8}}))
		d := Value(tensors.MustFromValue([][]float32{{1, 0}, {0, 1}}))
		inner := Dot(a, b, AuxParams{Name: "inner"})
		outer := Dot(inner, d, AuxParams{Name: "outer"})

		plan := newPlan(mode)
		handle := outer.EvalRegister(plan)
		if mode == eval.ModeDeferred {
			assert.False(t, handle.IsEvaluated())
			assert.Empty(t, order)
			assert.Equal(t, 2, plan.Pending())
			plan.Execute()
		}
		require.True(t, handle.IsEvaluated())
		assert.Equal(t, []string{"start:inner", "end:inner", "start:outer", "end:outer"}, order)
		assert.Equal(t, [][]float32{{19, 22}, {43, 50}}, handle.Data().Value())
	})
}

func TestDuplicate(t *testing.T) {
	source := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
	dup := Duplicate(source, 3)
	assert.True(t, dup.Shape().Equal(shapes.MakeBatchMatrix(dtypes.Float32, 3, 2, 2)))
	assert.Equal(t, 2, dup.Shape().Rows())
	assert.Same(t, source, dup.Source())

	plan := newPlan(eval.ModeEager)
	handle := dup.EvalRegister(plan)
	sourceHandle := source.EvalRegister(plan)
	assert.Equal(t, sourceHandle.DataPtr(), handle.DataPtr(), "Duplicate must keep the identity of its source")
	assert.Equal(t, 0, plan.Stats().Registered, "Duplicate must not register any unit")
	data := handle.Data()
	assert.True(t, data.IsBroadcast())
	for b := range 3 {
		assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, data.Slice(b).Value())
	}

	// Duplicate of a node.
	node := Dot(source, source)
	results := MustEvaluate(plan, Duplicate(node, 2))
	assert.Equal(t, [][][]float32{{{7, 10}, {15, 22}}, {{7, 10}, {15, 22}}}, results[0].Value())

	assert.Panics(t, func() { _ = Duplicate(dup, 2) }, "only matrices can be duplicated")
	assert.Panics(t, func() { _ = Duplicate(source, 0) })
}

func TestEqual(t *testing.T) {
	a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
	b := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b), "values are equal only if they hold the same tensor")

	assert.True(t, Dot(a, b).Equal(Dot(a, b)))
	assert.False(t, Dot(a, b).Equal(Dot(b, a)))
	assert.False(t, Dot(a, b).Equal(Dot(a, b, AuxParams{Name: "x"})))
	assert.False(t, Dot(a, b).Equal(Tanh(a)))
	assert.False(t, Dot(a, b).Equal(a))
	assert.True(t, Duplicate(a, 2).Equal(Duplicate(a, 2)))
	assert.False(t, Duplicate(a, 2).Equal(Duplicate(a, 3)))

	g1 := must.M1(TanhGrad(Dot(a, b), Tanh(a)))
	g2 := must.M1(TanhGrad(Dot(a, b), Tanh(a)))
	assert.True(t, g1.Equal(g2))
}

func TestDispatch(t *testing.T) {
	build := func(node *Node, inputs []eval.ConstHandle, output eval.Handle) eval.Unit { return nil }
	assert.Panics(t, func() {
		validateCases(optypes.OpTypeTanh, []*dispatchCase{
			{name: "catch-all", build: build},
			{name: "matrix", predicate: allOfCategory(shapes.CategoryMatrix), build: build},
		})
	}, "catch-all must be the last case")
	assert.Panics(t, func() { validateCases(optypes.OpTypeTanh, nil) })
	assert.Panics(t, func() { validateCases(optypes.OpTypeInvalid, []*dispatchCase{{name: "x", build: build}}) })
	assert.Panics(t, func() { validateCases(optypes.OpTypeTanh, []*dispatchCase{{name: "x"}}) })

	matrix := []shapes.Shape{shapes.MakeMatrix(dtypes.Float32, 2, 2)}
	batch := []shapes.Shape{shapes.MakeBatchMatrix(dtypes.Float32, 2, 2, 2)}
	assert.Equal(t, "Matrix", selectCase(optypes.OpTypeTanh, matrix).name)
	assert.Equal(t, "per-matrix", selectCase(optypes.OpTypeTanh, batch).name)
	assert.Equal(t, "BatchMatrix x BatchMatrix", selectCase(optypes.OpTypeDot, append(batch, batch...)).name)

	// Mixed categories have no Dot case.
	assert.Panics(t, func() { _ = selectCase(optypes.OpTypeDot, append(matrix, batch...)) })

	// More than one specific case matching is fatal.
	original := dispatchTable[optypes.OpTypeTanh]
	t.Cleanup(func() { dispatchTable[optypes.OpTypeTanh] = original })
	registerCases(optypes.OpTypeTanh,
		&dispatchCase{name: "a", predicate: allOfCategory(shapes.CategoryMatrix), build: build},
		&dispatchCase{name: "b", predicate: allOfCategory(shapes.CategoryMatrix), build: build},
	)
	err := exceptions.TryCatch[error](func() { _ = selectCase(optypes.OpTypeTanh, matrix) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 cases")
}

func TestFloat16(t *testing.T) {
	f16 := func(values ...float32) []float16.Float16 {
		out := make([]float16.Float16, len(values))
		for ii, v := range values {
			out[ii] = float16.Fromfloat32(v)
		}
		return out
	}
	a := Value(tensors.FromFlatDataAndDimensions(f16(1, 2, 3, 4), 2, 2))
	b := Value(tensors.FromFlatDataAndDimensions(f16(5, 6, 7, 8), 2, 2))
	grad, err := TanhGrad(
		Value(tensors.FromFlatDataAndDimensions(f16(0.5, 1), 1, 2)),
		Value(tensors.FromFlatDataAndDimensions(f16(0, 0.5), 1, 2)))
	require.NoError(t, err)
	results := MustEvaluate(newPlan(eval.ModeEager), Dot(a, b), grad)
	assert.Equal(t, dtypes.Float16, results[0].DType())
	assert.Equal(t, f16(19, 22, 43, 50), tensors.ConstFlat[float16.Float16](results[0]))
	assert.Equal(t, f16(0.5, 0.75), tensors.ConstFlat[float16.Float16](results[1]))
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(nil, Value(tensors.MustFromValue([][]float32{{1}})))
	assert.Error(t, err)
	_, err = Evaluate(newPlan(eval.ModeEager), nil)
	assert.ErrorContains(t, err, "nil")
	assert.Panics(t, func() { _ = MustEvaluate(newPlan(eval.ModeEager), nil) })
}

func TestSaveComputed(t *testing.T) {
	a := Value(tensors.MustFromValue([][][]float32{{{1, 2}, {3, 4}}, {{0, 1}, {1, 0}}}))
	b := Value(tensors.MustFromValue([][]float32{{5, 6}, {7, 8}}))
	result := MustEvaluate(newPlan(eval.ModeDeferred), Dot(a, b))[0]
	filePath := filepath.Join(t.TempDir(), "result.bin")
	require.NoError(t, result.Save(filePath))
	loaded := must.M1(tensors.Load(filePath))
	assert.True(t, loaded.Equal(result))
}

func TestString(t *testing.T) {
	a := Value(tensors.MustFromValue([][]float32{{1, 2}, {3, 4}}))
	node := Dot(Duplicate(a, 2), Tanh(a), AuxParams{Name: "out"})
	assert.Equal(t,
		"Dot[out](Duplicate(Value(Float32)[2 2], 2), Duplicate(Tanh(Value(Float32)[2 2])(Float32)[2 2], 2))(Float32)[2 2 2]",
		node.String())
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"testing"

	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromShape(t *testing.T) {
	tensor := FromShape(shapes.MakeBatchMatrix(dtypes.Float64, 2, 3, 4))
	require.True(t, tensor.Ok())
	assert.Equal(t, DeviceCPU, tensor.Device())
	assert.Equal(t, 2, tensor.BatchSize())
	assert.Equal(t, 3, tensor.Rows())
	assert.Equal(t, 4, tensor.Cols())
	assert.Equal(t, uintptr(2*3*4*8), tensor.Memory())
	assert.True(t, tensor.IsContiguous())
	assert.Len(t, ConstFlat[float64](tensor), 24)

	// Only matrices and batches of matrices are supported.
	assert.Panics(t, func() { FromShape(shapes.Make(dtypes.Float32, 3)) })
	assert.Panics(t, func() { FromShape(shapes.Invalid()) })
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, tensor.Value())
	assert.Equal(t, 6.0, tensor.At(1, 2))
	assert.Panics(t, func() { _ = FromFlatDataAndDimensions([]float32{1, 2, 3}, 2, 2) })
	assert.Panics(t, func() { _ = ConstFlat[float64](tensor) })
	assert.Panics(t, func() { _ = tensor.At(2, 0) })
}

func TestFromValue(t *testing.T) {
	tensor, err := FromValue([][][]float64{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
	require.NoError(t, err)
	assert.True(t, tensor.Shape().Equal(shapes.MakeBatchMatrix(dtypes.Float64, 2, 2, 2)))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, ConstFlat[float64](tensor))
	assert.Equal(t, 7.0, tensor.At(1, 1, 0))

	// Irregular shapes.
	_, err = FromValue([][]float32{{1, 2}, {3}})
	assert.Error(t, err)
	_, err = FromValue([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7}}})
	assert.Error(t, err)

	// Zero-sized axis.
	_, err = FromValue([][]float32{{}})
	assert.Error(t, err)

	// Unsupported types and ranks.
	_, err = FromValue([][]int{{1}})
	assert.Error(t, err)
	_, err = FromValue([]float32{1, 2})
	assert.Error(t, err)

	// Tensors are returned as is.
	assert.Same(t, tensor, must.M1(FromValue(tensor)))
}

func TestSliceAndBroadcast(t *testing.T) {
	batch := MustFromValue([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
	slice := batch.Slice(1)
	assert.Equal(t, [][]float32{{5, 6}, {7, 8}}, slice.Value())

	// Slices share the storage.
	MutableFlat[float32](slice)[0] = 50
	assert.Equal(t, 50.0, batch.At(1, 0, 0))
	assert.Panics(t, func() { _ = batch.Slice(2) })
	assert.Panics(t, func() { _ = slice.Slice(0) })

	matrix := MustFromValue([][]float32{{1, 2}, {3, 4}})
	broadcast := matrix.Broadcast(3)
	assert.True(t, broadcast.IsBroadcast())
	assert.False(t, broadcast.IsContiguous())
	assert.True(t, broadcast.Shape().Equal(shapes.MakeBatchMatrix(dtypes.Float32, 3, 2, 2)))
	for b := range 3 {
		assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, broadcast.Slice(b).Value())
	}
	assert.Panics(t, func() { _ = ConstFlat[float32](broadcast) })
	assert.Panics(t, func() { _ = MutableFlat[float32](broadcast.Slice(0)) })

	// No copies: changes to the source are visible in every replica.
	MutableFlat[float32](matrix)[3] = 40
	assert.Equal(t, 40.0, broadcast.At(2, 1, 1))

	// Materialize creates an independent contiguous copy.
	materialized := broadcast.Materialize()
	assert.True(t, materialized.IsContiguous())
	assert.Equal(t, []float32{1, 2, 3, 40, 1, 2, 3, 40, 1, 2, 3, 40}, ConstFlat[float32](materialized))
	assert.Panics(t, func() { _ = broadcast.Broadcast(2) })
}

func TestEqualAndInDelta(t *testing.T) {
	a := MustFromValue([][]float64{{1, 2}, {3, 4}})
	b := MustFromValue([][]float64{{1, 2}, {3, 4.001}})
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b))
	assert.True(t, a.InDelta(b, 0.01))
	assert.False(t, a.Equal(MustFromValue([][]float32{{1, 2}, {3, 4}})))
	assert.True(t, a.Broadcast(2).Equal(MustFromValue([][][]float64{{{1, 2}, {3, 4}}, {{1, 2}, {3, 4}}})))
}

func TestFloat16(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float16.Float16{
		float16.Fromfloat32(0.5), float16.Fromfloat32(1.5)}, 1, 2)
	assert.Equal(t, dtypes.Float16, tensor.DType())
	assert.Equal(t, 1.5, tensor.At(0, 1))
}

func TestGobAndFiles(t *testing.T) {
	tensor := MustFromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	buf := &bytes.Buffer{}
	require.NoError(t, tensor.Broadcast(2).GobSerialize(gob.NewEncoder(buf)))
	loaded, err := GobDeserialize(gob.NewDecoder(buf))
	require.NoError(t, err)
	assert.True(t, loaded.Equal(tensor.Broadcast(2)))
	assert.False(t, loaded.IsBroadcast())

	filePath := filepath.Join(t.TempDir(), "tensor.bin")
	require.NoError(t, tensor.Save(filePath))
	loaded = must.M1(Load(filePath))
	assert.True(t, loaded.Equal(tensor))

	_, err = Load(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestGobCorruptedShape(t *testing.T) {
	// (-1)*(-2) matches the number of elements, so only the dimensions check catches it.
	buf := &bytes.Buffer{}
	enc := gob.NewEncoder(buf)
	require.NoError(t, enc.Encode(dtypes.Float32))
	require.NoError(t, enc.Encode([]int{-1, -2}))
	require.NoError(t, enc.Encode([]float32{1, 2}))
	loaded, err := GobDeserialize(gob.NewDecoder(buf))
	assert.Error(t, err)
	assert.Nil(t, loaded)
}

func TestString(t *testing.T) {
	tensor := MustFromValue([][]float32{{1, 2}, {3, 4}})
	assert.Equal(t, "(Float32)[2 2]: [[1 2] [3 4]]", tensor.String())
	large := FromShape(shapes.MakeMatrix(dtypes.Float32, 20, 20))
	assert.Equal(t, "(Float32)[20 20]: (400 elements)", large.String())
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// FromValue returns a tensor constructed from the given multi-dimension slice: a `[][]T` becomes a Matrix
// and a `[][][]T` a BatchMatrix, where T is one of the dtypes.Supported types.
//
// It returns an error if the slice is not regular (sub-slices with different lengths), if it has zero
// length on any axis, or if the type is not supported.
func FromValue(value any) (*Tensor, error) {
	if t, ok := value.(*Tensor); ok {
		return t, nil
	}
	valueV := reflect.ValueOf(value)
	rank := 0
	elemT := valueV.Type()
	for elemT.Kind() == reflect.Slice {
		elemT = elemT.Elem()
		rank++
	}
	dtype := dtypes.FromGoType(elemT)
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("FromValue: unsupported type %T", value)
	}
	if rank != 2 && rank != 3 {
		return nil, errors.Errorf("FromValue: only [][]T and [][][]T values are supported, got %T", value)
	}
	dimensions, err := regularDimensions(valueV, rank)
	if err != nil {
		return nil, errors.WithMessagef(err, "FromValue(%T)", value)
	}
	t := FromShape(shapes.Make(dtype, dimensions...))
	flatV := reflect.ValueOf(t.flat)
	pos := 0
	copySlicesRecursively(flatV, valueV, &pos)
	return t, nil
}

// MustFromValue is like FromValue, but it panics on error.
func MustFromValue(value any) *Tensor {
	t, err := FromValue(value)
	if err != nil {
		panic(err)
	}
	return t
}

// regularDimensions returns the dimensions of the multi-dimensional slice v, and checks that all
// sub-slices at the same depth have the same length.
func regularDimensions(v reflect.Value, rank int) ([]int, error) {
	dimensions := make([]int, rank)
	probe := v
	for axis := range rank {
		dimensions[axis] = probe.Len()
		if dimensions[axis] == 0 {
			return nil, errors.Errorf("axis %d has dimension 0", axis)
		}
		probe = probe.Index(0)
	}
	if err := checkRegular(v, dimensions, 0); err != nil {
		return nil, err
	}
	return dimensions, nil
}

func checkRegular(v reflect.Value, dimensions []int, depth int) error {
	if v.Len() != dimensions[depth] {
		return errors.Errorf("irregular shape: sub-slice at depth %d has length %d, expected %d",
			depth, v.Len(), dimensions[depth])
	}
	if depth+1 == len(dimensions) {
		return nil
	}
	for ii := range v.Len() {
		if err := checkRegular(v.Index(ii), dimensions, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// copySlicesRecursively copies the leaves of the multi-dimensional slice mdSlice into flat, in row-major order.
func copySlicesRecursively(flat, mdSlice reflect.Value, pos *int) {
	if mdSlice.Type().Elem().Kind() != reflect.Slice {
		reflect.Copy(flat.Slice(*pos, *pos+mdSlice.Len()), mdSlice)
		*pos += mdSlice.Len()
		return
	}
	for ii := range mdSlice.Len() {
		copySlicesRecursively(flat, mdSlice.Index(ii), pos)
	}
}

// Value returns a multidimensional slice (`[][]T` or `[][][]T`) containing a copy of the values stored
// in the tensor.
// This is expensive, and usually only used for smaller tensors in tests and to print results.
func (t *Tensor) Value() any {
	flatV := reflect.ValueOf(t.Materialize().flat)
	return convertDataToSlices(flatV, t.shape.Dimensions...).Interface()
}

// convertDataToSlices splits the flat data into a multi-dimensional slice, sharing the memory of dataV.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	subSize := 1
	for _, dim := range dimensions[1:] {
		subSize *= dim
	}
	resultT := dataV.Type()
	for range dimensions[1:] {
		resultT = reflect.SliceOf(resultT)
	}
	result := reflect.MakeSlice(resultT, dimensions[0], dimensions[0])
	for ii := range dimensions[0] {
		sub := dataV.Slice(ii*subSize, (ii+1)*subSize)
		result.Index(ii).Set(convertDataToSlices(sub, dimensions[1:]...))
	}
	return result
}

// At returns the element at the given indices, converted to float64.
// It is the slow per-element accessor, mostly used in tests and for printing.
func (t *Tensor) At(indices ...int) float64 {
	t.AssertValid()
	if len(indices) != t.shape.Rank() {
		exceptions.Panicf("Tensor.At(%v): expected %d indices for shape %s", indices, t.shape.Rank(), t.shape)
	}
	for axis, idx := range indices {
		if idx < 0 || idx >= t.shape.Dimensions[axis] {
			exceptions.Panicf("Tensor.At(%v): index out-of-bounds for shape %s", indices, t.shape)
		}
	}
	view := t
	if t.shape.IsBatchMatrix() {
		view = t.Slice(indices[0])
		indices = indices[1:]
	}
	pos := view.offset + indices[0]*view.shape.Cols() + indices[1]
	switch flat := view.flat.(type) {
	case []float32:
		return float64(flat[pos])
	case []float64:
		return flat[pos]
	case []float16.Float16:
		return float64(flat[pos].Float32())
	}
	exceptions.Panicf("Tensor.At: unsupported dtype %s", t.shape.DType)
	return 0
}

// Equal checks whether t == otherTensor, that is, they have the same shape and values.
// If they are the same pointer, they are considered equal.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	return t.InDelta(otherTensor, 0)
}

// InDelta checks whether Abs(t - otherTensor) <= delta for every element.
// If they are the same pointer, they are considered equal.
// If the shapes are different, it returns false.
//
// Slow implementation: fine for small tensors, but write something specialized for the DType if speed is desired.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	a, b := floatsOf(t), floatsOf(otherTensor)
	for ii := range a {
		if math.Abs(a[ii]-b[ii]) > delta {
			return false
		}
	}
	return true
}

// floatsOf returns the values of t, in row-major order, converted to float64.
func floatsOf(t *Tensor) []float64 {
	m := t.Materialize()
	out := make([]float64, m.Size())
	switch flat := m.flat.(type) {
	case []float32:
		for ii, v := range flat {
			out[ii] = float64(v)
		}
	case []float64:
		copy(out, flat)
	case []float16.Float16:
		for ii, v := range flat {
			out[ii] = float64(v.Float32())
		}
	}
	return out
}

// MaxSizeToPrint is the largest tensor whose values are included in String.
var MaxSizeToPrint = 100

// String converts to string, including the values if the tensor is not too large.
func (t *Tensor) String() string {
	if !t.Ok() {
		return "Tensor(invalid)"
	}
	if t.Size() > MaxSizeToPrint {
		return fmt.Sprintf("%s: (%d elements)", t.shape, t.Size())
	}
	parts := strings.Fields(fmt.Sprintf("%v", t.Value()))
	return fmt.Sprintf("%s: %s", t.shape, strings.Join(parts, " "))
}

// GobSerialize Tensor in binary format. Broadcast views are materialized first.
//
// It returns an error for I/O errors.
// It panics for invalid tensors.
func (t *Tensor) GobSerialize(encoder *gob.Encoder) (err error) {
	t.AssertValid()
	err = t.shape.GobSerialize(encoder)
	if err != nil {
		return
	}
	var flat any
	switch t.shape.DType {
	case dtypes.Float32:
		flat = CopyFlatData[float32](t)
	case dtypes.Float64:
		flat = CopyFlatData[float64](t)
	case dtypes.Float16:
		flat = CopyFlatData[float16.Float16](t)
	}
	err = encoder.Encode(flat)
	if err != nil {
		err = errors.Wrapf(err, "failed to write tensor data")
	}
	return
}

// GobDeserialize a Tensor from the reader.
func GobDeserialize(decoder *gob.Decoder) (*Tensor, error) {
	shape, err := shapes.GobDeserialize(decoder)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to deserialize Tensor shape data")
	}
	if shape.Category() == shapes.CategoryInvalid {
		return nil, errors.Errorf("deserialized Tensor shape %s is not a Matrix or a BatchMatrix", shape)
	}
	flatPtrV := reflect.New(reflect.SliceOf(shape.DType.GoType()))
	err = decoder.Decode(flatPtrV.Interface())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize Tensor data")
	}
	flat := flatPtrV.Elem()
	if flat.Len() != shape.Size() {
		return nil, errors.Errorf("deserialized Tensor shape %s requires %d elements, got %d",
			shape, shape.Size(), flat.Len())
	}
	return newTensor(shape, flat.Interface()), nil
}

// Save the tensor to the given file path. A leading "~" in the path is expanded to the home directory.
func (t *Tensor) Save(filePath string) error {
	filePath, err := fsutil.ExpandHome(filePath)
	if err != nil {
		return err
	}
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q to save tensor", filePath)
	}
	enc := gob.NewEncoder(f)
	err = t.GobSerialize(enc)
	if err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "saving Tensor to %q", filePath)
	}
	err = f.Close()
	if err != nil {
		return errors.Wrapf(err, "close file %q, where tensor was saved", filePath)
	}
	return nil
}

// Load a tensor from the file path given. A leading "~" in the path is expanded to the home directory.
func Load(filePath string) (*Tensor, error) {
	filePath, err := fsutil.ExpandHome(filePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q to load Tensor", filePath)
	}
	defer func() { _ = f.Close() }()
	t, err := GobDeserialize(gob.NewDecoder(f))
	if err != nil {
		return nil, errors.WithMessagef(err, "loading Tensor from %q", filePath)
	}
	return t, nil
}

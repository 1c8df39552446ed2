// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, the concrete storage for the values consumed and produced by the
// lazy computation graphs in package graph.
//
// A Tensor is defined by its shape (a DType and its axes' dimensions) and its content, stored as a
// flat (1D) Go slice of the underlying DType in row-major order. Only the Matrix and BatchMatrix
// categories (see package shapes) are supported.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
//   - FromValue(value any): takes a `[][]T` or a `[][][]T` and returns the corresponding Matrix or BatchMatrix.
//     All sub-slices must have the same length.
//
// Tensors can also be views on other tensors' storage, without copying:
//
//   - Tensor.Slice(b) returns the b-th matrix of a BatchMatrix.
//   - Tensor.Broadcast(n) presents a Matrix as a BatchMatrix of n identical matrices. All the
//     matrices of the view point to the same memory, so the view is read-only.
//
// Kernels access the data through ConstFlat and MutableFlat, that return the raw flat slice
// of a contiguous tensor.
package tensors

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor represents a Matrix or a BatchMatrix, defined by its shape and its content, stored as a flat slice
// of the underlying DType.
//
// A Tensor may share its flat storage with other tensors (see Slice and Broadcast): a view never owns
// a copy of the data.
//
// Tensor is not safe for concurrent writes: during graph evaluation exactly one kernel writes to a
// tensor, before it is marked as evaluated, and after that it is only read.
type Tensor struct {
	// shape of the tensor.
	shape shapes.Shape

	device Device

	// flat is a []T slice for the tensor's DType, possibly shared with other views.
	flat any

	// offset is the index in flat of the first element of this tensor.
	offset int

	// batchStride is the number of elements in flat between consecutive matrices of a BatchMatrix.
	// It is 0 for broadcast views.
	batchStride int

	// readOnly is set for views whose elements alias each other (broadcast).
	readOnly bool
}

// newTensor creates a contiguous tensor using the given flat storage.
func newTensor(shape shapes.Shape, flat any) *Tensor {
	t := &Tensor{
		shape:  shape.Clone(),
		device: DeviceCPU,
		flat:   flat,
	}
	if shape.IsBatchMatrix() {
		t.batchStride = shape.Rows() * shape.Cols()
	}
	return t
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
//
// It panics if you provide an invalid shape, or a shape that is not a Matrix or a BatchMatrix.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		panic(errors.New("invalid shape"))
	}
	shape.AssertValidCategory()
	return newTensor(shape, shape.DType.MakeFlat(shape.Size()))
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf(
			"FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	copy(MutableFlat[T](t), data)
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Device where the tensor is stored.
func (t *Tensor) Device() Device { return t.device }

// Rows of the matrix (or of each matrix in a BatchMatrix).
func (t *Tensor) Rows() int { return t.shape.Rows() }

// Cols of the matrix (or of each matrix in a BatchMatrix).
func (t *Tensor) Cols() int { return t.shape.Cols() }

// BatchSize of a BatchMatrix. It panics for a Matrix.
func (t *Tensor) BatchSize() int { return t.shape.BatchSize() }

// Size is the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory used by the tensor's elements, in bytes. Broadcast views report the logical size,
// even though they share the storage of their source.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Ok returns whether the tensor is valid.
func (t *Tensor) Ok() bool {
	return t != nil && t.shape.Ok() && t.flat != nil
}

// AssertValid panics if the tensor is nil or has no storage.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensor is nil")
	}
	if !t.Ok() {
		exceptions.Panicf("tensor with shape %s has no storage", t.shape)
	}
}

// IsBroadcast returns whether t is a read-only view replicating one matrix across its batch axis.
func (t *Tensor) IsBroadcast() bool {
	return t.readOnly
}

// IsContiguous returns whether the elements of t are stored contiguously, in row-major order.
// Only contiguous tensors give access to their flat data.
func (t *Tensor) IsContiguous() bool {
	if t.shape.IsMatrix() {
		return true
	}
	return t.batchStride == t.shape.Rows()*t.shape.Cols()
}

// Slice returns the matrix at the given batch index of a BatchMatrix, as a view sharing the same storage.
//
// Slices of a broadcast view all point to the same memory: they are read-only.
func (t *Tensor) Slice(batchIdx int) *Tensor {
	t.AssertValid()
	t.shape.AssertCategory(shapes.CategoryBatchMatrix)
	if batchIdx < 0 || batchIdx >= t.shape.BatchSize() {
		exceptions.Panicf("Tensor.Slice(%d) out-of-bounds for shape %s", batchIdx, t.shape)
	}
	return &Tensor{
		shape:    t.shape.MatrixShape(),
		device:   t.device,
		flat:     t.flat,
		offset:   t.offset + batchIdx*t.batchStride,
		readOnly: t.readOnly,
	}
}

// Broadcast returns a BatchMatrix view of the Matrix t, with batchSize replicas of the same data.
// No data is copied: every slice of the returned tensor reads the storage of t.
func (t *Tensor) Broadcast(batchSize int) *Tensor {
	t.AssertValid()
	t.shape.AssertCategory(shapes.CategoryMatrix)
	return &Tensor{
		shape:       t.shape.WithBatch(batchSize),
		device:      t.device,
		flat:        t.flat,
		offset:      t.offset,
		batchStride: 0,
		readOnly:    true,
	}
}

// Materialize returns a contiguous tensor with a copy of the values of t.
// For tensors that are already contiguous and writable, it returns a clone as well.
func (t *Tensor) Materialize() *Tensor {
	t.AssertValid()
	clone := FromShape(t.shape)
	switch flat := clone.flat.(type) {
	case []float32:
		materializeInto(t, flat)
	case []float64:
		materializeInto(t, flat)
	case []float16.Float16:
		materializeInto(t, flat)
	}
	return clone
}

// materializeInto copies the elements of t, matrix by matrix, into the contiguous dst.
func materializeInto[T dtypes.Supported](t *Tensor, dst []T) {
	if t.shape.IsMatrix() {
		copy(dst, ConstFlat[T](t))
		return
	}
	matrixSize := t.shape.Rows() * t.shape.Cols()
	for b := range t.shape.BatchSize() {
		copy(dst[b*matrixSize:], ConstFlat[T](t.Slice(b)))
	}
}

// ConstFlat returns the flat data of the contiguous tensor t, in row-major order.
//
// The returned slice is the actual storage of the tensor, not a copy: it must not be modified.
// Use MutableFlat to write to a tensor.
//
// It panics if T doesn't match the tensor's DType, or if t is not contiguous (a broadcast view):
// in that case iterate over its matrices with Tensor.Slice.
func ConstFlat[T dtypes.Supported](t *Tensor) []T {
	t.AssertValid()
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ConstFlat[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	if !t.IsContiguous() {
		exceptions.Panicf("ConstFlat requires a contiguous tensor, got a broadcast view of shape %s", t.shape)
	}
	flat := t.flat.([]T)
	return flat[t.offset : t.offset+t.shape.Size()]
}

// MutableFlat returns the raw flat storage of t, in row-major order, to be written to.
// This is the accessor kernels use for bulk writes.
//
// It panics if T doesn't match the tensor's DType or if t is a read-only view.
func MutableFlat[T dtypes.Supported](t *Tensor) []T {
	if t.Ok() && t.readOnly {
		exceptions.Panicf("MutableFlat: tensor of shape %s is a read-only broadcast view", t.shape)
	}
	return ConstFlat[T](t)
}

// CopyFlatData returns a copy of the flat data of the Tensor, materializing broadcast views.
//
// It will panic if the given generic type doesn't match the DType of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	return ConstFlat[T](t.Materialize())
}

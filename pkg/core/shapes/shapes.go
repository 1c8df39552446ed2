// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and Category and associated tools.
//
// Shape represents the shape (DType and dimensions) of either a concrete tensor or the
// expected result of a node in a lazy computation graph. Shapes are computed once, when a
// node is constructed, and never change afterwards.
//
// Only two categories of shapes are supported by the graph kernels:
//
//   - Matrix: rank 2, axes are [rows, cols].
//   - BatchMatrix: rank 3, axes are [batch, rows, cols].
//
// Example: the Go value `[][]float32{{0, 1, 2}, {3, 4, 5}}` converted to a tensor has shape
// `(Float32)[2 3]`, a Matrix with 2 rows and 3 columns. It could be created with
// `shapes.Make(dtypes.Float32, 2, 3)` or `shapes.MakeMatrix(dtypes.Float32, 2, 3)`.
package shapes

import (
	"encoding/gob"
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the shape of either a tensor or the expected shape of the value from
// a computation node.
//
// Use Make, MakeMatrix or MakeBatchMatrix to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// HasShape is implemented by anything with a Shape: tensors, graph nodes and operands.
type HasShape interface {
	Shape() Shape
}

// Make returns a Shape structure filled with the values given.
//
// It panics if any dimension is <= 0.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// MakeMatrix returns a Matrix shape with the given number of rows and columns.
func MakeMatrix(dtype dtypes.DType, rows, cols int) Shape {
	return Make(dtype, rows, cols)
}

// MakeBatchMatrix returns a BatchMatrix shape: batchSize matrices of rows x cols.
func MakeBatchMatrix(dtype dtypes.DType, batchSize, rows, cols int) Shape {
	return Make(dtype, batchSize, rows, cols)
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// Category returns the shape category, derived from its rank.
// It returns CategoryInvalid for invalid shapes or unsupported ranks.
func (s Shape) Category() Category {
	if !s.Ok() {
		return CategoryInvalid
	}
	c, found := categoryForRank[s.Rank()]
	if !found {
		return CategoryInvalid
	}
	return c
}

// IsMatrix returns whether the shape is of CategoryMatrix.
func (s Shape) IsMatrix() bool { return s.Category() == CategoryMatrix }

// IsBatchMatrix returns whether the shape is of CategoryBatchMatrix.
func (s Shape) IsBatchMatrix() bool { return s.Category() == CategoryBatchMatrix }

// Rows returns the number of rows of a Matrix or of each matrix in a BatchMatrix.
func (s Shape) Rows() int {
	s.AssertValidCategory()
	return s.Dimensions[s.Rank()-2]
}

// Cols returns the number of columns of a Matrix or of each matrix in a BatchMatrix.
func (s Shape) Cols() int {
	s.AssertValidCategory()
	return s.Dimensions[s.Rank()-1]
}

// BatchSize returns the number of matrices of a BatchMatrix. It panics for other categories.
func (s Shape) BatchSize() int {
	s.AssertCategory(CategoryBatchMatrix)
	return s.Dimensions[0]
}

// MatrixShape returns the shape of one matrix of the shape: for a Matrix it is the shape itself,
// for a BatchMatrix it drops the batch axis.
func (s Shape) MatrixShape() Shape {
	s.AssertValidCategory()
	return MakeMatrix(s.DType, s.Rows(), s.Cols())
}

// WithBatch returns a BatchMatrix shape with batchSize copies of the Matrix s.
func (s Shape) WithBatch(batchSize int) Shape {
	s.AssertCategory(CategoryMatrix)
	return MakeBatchMatrix(s.DType, batchSize, s.Rows(), s.Cols())
}

// AssertValidCategory panics if the shape is not of one of the supported categories.
func (s Shape) AssertValidCategory() {
	if s.Category() == CategoryInvalid {
		exceptions.Panicf("shape %s is not a Matrix or a BatchMatrix", s)
	}
}

// AssertCategory panics if the shape is not of the given category.
func (s Shape) AssertCategory(c Category) {
	if s.Category() != c {
		exceptions.Panicf("shape %s is of category %s, expected %s", s, s.Category(), c)
	}
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Strides returns the strides for each axis of the shape, assuming a row-major layout.
//
// Notice the strides are **not in bytes**, but in indices.
func (s Shape) Strides() (strides []int) {
	rank := s.Rank()
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= s.Dimensions[axis]
	}
	return
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares two shapes for equality of dimensions. DTypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// GobSerialize shape in binary format.
func (s Shape) GobSerialize(encoder *gob.Encoder) (err error) {
	enc := func(e any) {
		if err != nil {
			return
		}
		err = encoder.Encode(e)
		if err != nil {
			err = errors.Wrapf(err, "failed to serialize Shape %s", s)
		}
	}
	enc(s.DType)
	enc(s.Dimensions)
	return
}

// GobDeserialize a Shape. Returns new Shape or an error.
func GobDeserialize(decoder *gob.Decoder) (s Shape, err error) {
	dec := func(data any) {
		if err != nil {
			return
		}
		err = decoder.Decode(data)
		if err != nil {
			err = errors.Wrapf(err, "failed to deserialize Shape")
		}
	}
	dec(&s.DType)
	dec(&s.Dimensions)
	if err != nil {
		return
	}
	if !s.DType.IsSupported() {
		err = errors.Errorf("deserialized Shape has unsupported dtype %s", s.DType)
		return
	}
	if _, found := categoryForRank[s.Rank()]; !found {
		err = errors.Errorf("deserialized Shape %s has rank %d, only Matrix (2) or BatchMatrix (3) are valid",
			s, s.Rank())
		return
	}
	for axis, dim := range s.Dimensions {
		if dim <= 0 {
			err = errors.Errorf("deserialized Shape %s has dimension %d <= 0 for axis %d", s, dim, axis)
			return
		}
	}
	return
}

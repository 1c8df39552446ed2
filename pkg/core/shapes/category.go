// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

// Category is the shape class of a tensor-like value, used to select kernels.
//
// It is derived from the rank of the shape: see Shape.Category.
type Category int

//go:generate go tool enumer -type=Category -trimprefix=Category -output=gen_category_enumer.go category.go

const (
	// CategoryInvalid is returned for shapes whose rank is not supported.
	CategoryInvalid Category = iota

	// CategoryMatrix is a plain matrix: rank 2, with axes [rows, cols].
	CategoryMatrix

	// CategoryBatchMatrix is a batch of equally shaped matrices: rank 3, with axes [batch, rows, cols].
	CategoryBatchMatrix
)

// categoryForRank maps ranks to categories.
var categoryForRank = map[int]Category{
	2: CategoryMatrix,
	3: CategoryBatchMatrix,
}

// Rank returns the rank of shapes of the given category, or -1 for CategoryInvalid.
func (c Category) Rank() int {
	switch c {
	case CategoryMatrix:
		return 2
	case CategoryBatchMatrix:
		return 3
	default:
		return -1
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package eval implements the evaluation side of lazy graphs: shared result handles, the
// units of computation (kernels) that write into them, and the Plan that executes the units
// in dependency order, at most once each.
//
// A node of the graph owns one Buffer. Its Handle is shared by the node (which allocates and
// writes the result through the registered unit) and all its consumers (which read it through
// a ConstHandle). Every handle has a stable identity, an ID, used by the Plan to track
// dependencies.
package eval

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/shapes"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/google/uuid"
)

// ID is the stable identity of the storage behind a handle. It is only used as a dependency key.
type ID uuid.UUID

// NewID returns a new unique ID.
func NewID() ID { return ID(uuid.New()) }

// String implements fmt.Stringer.
func (id ID) String() string { return uuid.UUID(id).String() }

// record is the backing storage shared by all handles of one result.
type record struct {
	id        ID
	value     *tensors.Tensor
	evaluated bool
}

func newRecord() *record {
	return &record{id: NewID()}
}

// Handle is the writable reference to a result: it is used by the unit that computes it.
//
// Handles are cheap to copy, and all copies alias the same storage.
type Handle struct {
	rec *record
}

// NewEvaluatedHandle returns a handle already evaluated, holding the given tensor.
// It is used for the leaf values of a graph.
func NewEvaluatedHandle(t *tensors.Tensor) Handle {
	t.AssertValid()
	return Handle{rec: &record{id: NewID(), value: t, evaluated: true}}
}

// Ok returns whether the handle is backed by storage.
func (h Handle) Ok() bool { return h.rec != nil }

func (h Handle) assertOk() {
	if h.rec == nil {
		exceptions.Panicf("eval: using an uninitialized Handle")
	}
}

// Allocate the storage for the result, with the given shape, and returns it.
// It can only be called once: a second allocation is a bug in the unit.
func (h Handle) Allocate(shape shapes.Shape) *tensors.Tensor {
	h.assertOk()
	if h.rec.value != nil {
		exceptions.Panicf("eval: handle %s allocated twice (current shape %s, requested %s)",
			h.rec.id, h.rec.value.Shape(), shape)
	}
	h.rec.value = tensors.FromShape(shape)
	return h.rec.value
}

// IsAllocated returns whether Allocate has been called.
func (h Handle) IsAllocated() bool { return h.rec != nil && h.rec.value != nil }

// MutableData returns the allocated tensor, to be written by the unit producing it.
// It panics if the handle was not allocated yet, or if it was already marked as evaluated.
func (h Handle) MutableData() *tensors.Tensor {
	h.assertOk()
	if h.rec.value == nil {
		exceptions.Panicf("eval: MutableData() called on handle %s before Allocate()", h.rec.id)
	}
	if h.rec.evaluated {
		exceptions.Panicf("eval: MutableData() called on handle %s already evaluated", h.rec.id)
	}
	return h.rec.value
}

// SetEval marks the result as evaluated: no further writes are allowed, and readers can access it.
// It must be called exactly once, after the data was allocated and written.
func (h Handle) SetEval() {
	h.assertOk()
	if h.rec.value == nil {
		exceptions.Panicf("eval: SetEval() called on handle %s before Allocate()", h.rec.id)
	}
	if h.rec.evaluated {
		exceptions.Panicf("eval: SetEval() called twice on handle %s", h.rec.id)
	}
	h.rec.evaluated = true
}

// IsEvaluated returns whether SetEval has been called.
func (h Handle) IsEvaluated() bool { return h.rec != nil && h.rec.evaluated }

// DataPtr returns the identity of the storage.
func (h Handle) DataPtr() ID {
	h.assertOk()
	return h.rec.id
}

// Const returns the read-only projection of the handle.
func (h Handle) Const() ConstHandle {
	return ConstHandle{rec: h.rec}
}

// ConstHandle is the read-only reference to a result, used by its consumers.
//
// A ConstHandle may carry a view function, applied to the data when read. The view doesn't
// change the identity of the handle: it reads the same storage.
type ConstHandle struct {
	rec  *record
	view func(*tensors.Tensor) *tensors.Tensor
}

// Ok returns whether the handle is backed by storage.
func (c ConstHandle) Ok() bool { return c.rec != nil }

// Data returns the evaluated result (with the view applied, if any).
// It panics if the result was not evaluated yet.
func (c ConstHandle) Data() *tensors.Tensor {
	if c.rec == nil {
		exceptions.Panicf("eval: using an uninitialized ConstHandle")
	}
	if !c.rec.evaluated {
		exceptions.Panicf("eval: Data() called on handle %s before it was evaluated", c.rec.id)
	}
	if c.view != nil {
		return c.view(c.rec.value)
	}
	return c.rec.value
}

// IsEvaluated returns whether the result is available for reading.
func (c ConstHandle) IsEvaluated() bool { return c.rec != nil && c.rec.evaluated }

// DataPtr returns the identity of the storage: views report the identity of their source.
func (c ConstHandle) DataPtr() ID {
	if c.rec == nil {
		exceptions.Panicf("eval: using an uninitialized ConstHandle")
	}
	return c.rec.id
}

// View returns a ConstHandle on the same storage, whose Data is transformed by fn.
// Views compose: fn is applied after any view c already has.
func (c ConstHandle) View(fn func(*tensors.Tensor) *tensors.Tensor) ConstHandle {
	prev := c.view
	if prev == nil {
		return ConstHandle{rec: c.rec, view: fn}
	}
	return ConstHandle{rec: c.rec, view: func(t *tensors.Tensor) *tensors.Tensor {
		return fn(prev(t))
	}}
}

// Buffer holds the result of one graph node. The zero value is ready to use: the shared
// handle is created on first access.
type Buffer struct {
	rec *record
}

func (b *Buffer) lazyInit() {
	if b.rec == nil {
		b.rec = newRecord()
	}
}

// Handle returns the writable handle to the buffer. All calls return handles aliasing the same storage.
func (b *Buffer) Handle() Handle {
	b.lazyInit()
	return Handle{rec: b.rec}
}

// ConstHandle returns the read-only handle to the buffer.
func (b *Buffer) ConstHandle() ConstHandle {
	b.lazyInit()
	return ConstHandle{rec: b.rec}
}

// IsEvaluated returns whether the buffer's result was computed.
func (b *Buffer) IsEvaluated() bool {
	return b.rec != nil && b.rec.evaluated
}

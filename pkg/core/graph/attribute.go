// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/qdq/pkg/core/tensors"
)

// AttrKind enumerates the value kinds an operation attribute can hold.
type AttrKind int

const (
	AttrKindInvalid AttrKind = iota
	AttrKindInt
	AttrKindFloat
	AttrKindString
	AttrKindInts
	AttrKindFloats
	AttrKindTensor
)

// Attribute is a typed operation attribute. Use the Attr* constructors to
// create one and the accessors to read it back; accessing the wrong kind
// panics, since it means the graph was assembled inconsistently.
type Attribute struct {
	kind   AttrKind
	i      int64
	f      float32
	s      string
	ints   []int64
	floats []float32
	tensor *tensors.Tensor
}

func AttrInt(v int64) Attribute         { return Attribute{kind: AttrKindInt, i: v} }
func AttrFloat(v float32) Attribute     { return Attribute{kind: AttrKindFloat, f: v} }
func AttrString(v string) Attribute     { return Attribute{kind: AttrKindString, s: v} }
func AttrInts(v ...int64) Attribute     { return Attribute{kind: AttrKindInts, ints: v} }
func AttrFloats(v ...float32) Attribute { return Attribute{kind: AttrKindFloats, floats: v} }
func AttrTensor(v *tensors.Tensor) Attribute {
	return Attribute{kind: AttrKindTensor, tensor: v}
}

// Kind returns the value kind held by the attribute.
func (a Attribute) Kind() AttrKind { return a.kind }

func (a Attribute) assertKind(want AttrKind) {
	if a.kind != want {
		exceptions.Panicf("attribute holds %v, accessed as %v", a.kind, want)
	}
}

func (a Attribute) Int() int64 {
	a.assertKind(AttrKindInt)
	return a.i
}

func (a Attribute) Float() float32 {
	a.assertKind(AttrKindFloat)
	return a.f
}

func (a Attribute) Str() string {
	a.assertKind(AttrKindString)
	return a.s
}

func (a Attribute) Ints() []int64 {
	a.assertKind(AttrKindInts)
	return a.ints
}

func (a Attribute) Floats() []float32 {
	a.assertKind(AttrKindFloats)
	return a.floats
}

func (a Attribute) Tensor() *tensors.Tensor {
	a.assertKind(AttrKindTensor)
	return a.tensor
}

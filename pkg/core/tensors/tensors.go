// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a host-only Tensor, a representation of a multi-dimensional array.
//
// A Tensor is defined by its shape (a data type and its axes' dimensions) and its content,
// stored as a flat (1D) Go slice of the corresponding Go type.
//
// This package backs the constant values (parameters, quantization scales and offsets,
// attribute tensors) manipulated by the graph rewriting and export pipeline. It is a much
// simplified cousin of an accelerator-backed tensor: there is no device storage and no
// locking, since the export pipeline runs single-threaded.
package tensors

import (
	"encoding/binary"
	"math"
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/qdq/pkg/core/shapes"
	"github.com/x448/float16"
)

// Tensor represents a multidimensional array (from a scalar with 0 dimensions, to arbitrarily
// large dimensions), defined by its shape and its flattened contents.
type Tensor struct {
	shape shapes.Shape

	// flat holds the actual data: a Go slice of the type corresponding to shape.DType.
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape: invalid shape %s", shape)
	}
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	return &Tensor{shape: shape.Clone(), flat: flatV.Interface()}
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, initialized with the
// flattened data. The data slice is used directly (not copied) and is owned by the tensor
// after the call.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions: shape %s requires %d values, got %d",
			shape, shape.Size(), len(data))
	}
	return &Tensor{shape: shape, flat: data}
}

// FromScalar creates a scalar tensor holding the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the scalar
// value given.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	data := make([]T, shape.Size())
	for ii := range data {
		data[ii] = value
	}
	return &Tensor{shape: shape, flat: data}
}

// Shape of the tensor, includes the DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank returns the rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// AssertValid panics if the tensor is nil or its shape is invalid.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("Tensor is nil")
	}
	if !t.shape.Ok() {
		exceptions.Panicf("Tensor shape is invalid")
	}
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	cloneV := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(cloneV, flatV)
	return &Tensor{shape: t.shape.Clone(), flat: cloneV.Interface()}
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding
// to the DType. The slice is owned by the tensor and must not be modified by accessFn.
//
// It panics if T doesn't match the tensor's DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("tensors.ConstFlatData[%T] used with tensor of dtype %s", v, t.shape.DType)
	}
	accessFn(t.flat.([]T))
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType. The slice can be mutated in place by accessFn.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	ConstFlatData(t, accessFn)
}

// CopyFlatData returns a copy of the flattened data of the tensor.
//
// It panics if T doesn't match the tensor's DType.
func CopyFlatData[T dtypes.Supported](t *Tensor) (data []T) {
	ConstFlatData(t, func(flat []T) {
		data = slices.Clone(flat)
	})
	return
}

// ToScalar returns the value of a scalar (or single-element) tensor.
func ToScalar[T dtypes.Supported](t *Tensor) (value T) {
	if t.Size() != 1 {
		exceptions.Panicf("tensors.ToScalar used with tensor of shape %s", t.shape)
	}
	ConstFlatData(t, func(flat []T) {
		value = flat[0]
	})
	return
}

// Float64s converts the tensor's flattened data to a []float64, whatever the numeric DType.
//
// It is used where the rewriting passes need dtype-agnostic numeric access: quantization
// range arithmetic, scale/offset comparison and report generation.
func (t *Tensor) Float64s() []float64 {
	t.AssertValid()
	switch flat := t.flat.(type) {
	case []float32:
		return convert(flat, func(v float32) float64 { return float64(v) })
	case []float64:
		return slices.Clone(flat)
	case []float16.Float16:
		return convert(flat, func(v float16.Float16) float64 { return float64(v.Float32()) })
	case []bfloat16.BFloat16:
		return convert(flat, func(v bfloat16.BFloat16) float64 { return float64(v.Float32()) })
	case []int8:
		return convert(flat, func(v int8) float64 { return float64(v) })
	case []int16:
		return convert(flat, func(v int16) float64 { return float64(v) })
	case []int32:
		return convert(flat, func(v int32) float64 { return float64(v) })
	case []int64:
		return convert(flat, func(v int64) float64 { return float64(v) })
	case []uint8:
		return convert(flat, func(v uint8) float64 { return float64(v) })
	case []uint16:
		return convert(flat, func(v uint16) float64 { return float64(v) })
	case []uint32:
		return convert(flat, func(v uint32) float64 { return float64(v) })
	case []uint64:
		return convert(flat, func(v uint64) float64 { return float64(v) })
	default:
		exceptions.Panicf("tensors.Float64s: unsupported dtype %s", t.shape.DType)
	}
	return nil
}

func convert[In any](in []In, fn func(In) float64) []float64 {
	out := make([]float64, len(in))
	for ii, v := range in {
		out[ii] = fn(v)
	}
	return out
}

// RawBytes returns the tensor contents serialized as little-endian bytes, the layout used by
// the interchange format's raw tensor data.
func (t *Tensor) RawBytes() []byte {
	t.AssertValid()
	switch flat := t.flat.(type) {
	case []float32:
		return encode(flat, 4, func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) })
	case []float64:
		return encode(flat, 8, func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) })
	case []float16.Float16:
		return encode(flat, 2, func(b []byte, v float16.Float16) { binary.LittleEndian.PutUint16(b, v.Bits()) })
	case []bfloat16.BFloat16:
		return encode(flat, 2, func(b []byte, v bfloat16.BFloat16) { binary.LittleEndian.PutUint16(b, uint16(v)) })
	case []int8:
		return encode(flat, 1, func(b []byte, v int8) { b[0] = byte(v) })
	case []uint8:
		return slices.Clone(flat)
	case []int16:
		return encode(flat, 2, func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) })
	case []uint16:
		return encode(flat, 2, func(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) })
	case []int32:
		return encode(flat, 4, func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) })
	case []uint32:
		return encode(flat, 4, func(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) })
	case []int64:
		return encode(flat, 8, func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) })
	case []uint64:
		return encode(flat, 8, func(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) })
	case []bool:
		return encode(flat, 1, func(b []byte, v bool) {
			if v {
				b[0] = 1
			}
		})
	default:
		exceptions.Panicf("tensors.RawBytes: unsupported dtype %s", t.shape.DType)
	}
	return nil
}

func encode[T any](flat []T, width int, fn func(b []byte, v T)) []byte {
	data := make([]byte, len(flat)*width)
	for ii, v := range flat {
		fn(data[ii*width:(ii+1)*width], v)
	}
	return data
}

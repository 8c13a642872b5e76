// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quant

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/qdq/pkg/core/shapes"
	"github.com/gomlx/qdq/pkg/core/tensors"
)

// QuantizeToInt converts a float tensor to its quantized integer representation under this
// (linear) config: round-to-nearest-even of value/scale, shifted by the offset and clamped
// to [QuantMin, QuantMax], cast to the narrow width given by Policy and Bits
// (see TensorConfig.OffsetDType).
//
// It is used to fold parameter values in place when integer parameter export is requested.
// It panics for non-linear policies: there is no defined integer encoding for them.
func (c *TensorConfig) QuantizeToInt(value *tensors.Tensor) *tensors.Tensor {
	if !c.Policy.Has(Linear) {
		exceptions.Panicf("quant.QuantizeToInt: policy %s has no integer encoding", c.Policy)
	}
	values := value.Float64s()
	scales := c.Scale.Float64s()
	offsets := c.Offset.Float64s()
	channelOf := c.channelIndexer(value.Shape(), len(scales))

	quantized := make([]int64, len(values))
	for ii, v := range values {
		ch := channelOf(ii)
		q := math.RoundToEven(v/scales[ch]) + offsets[ch]
		q = math.Min(math.Max(q, float64(c.QuantMin)), float64(c.QuantMax))
		quantized[ii] = int64(q)
	}

	dims := value.Shape().Dimensions
	switch dtype := c.OffsetDType(); dtype {
	case dtypes.Int8:
		return tensors.FromFlatDataAndDimensions(castSlice[int8](quantized), dims...)
	case dtypes.Uint8:
		return tensors.FromFlatDataAndDimensions(castSlice[uint8](quantized), dims...)
	case dtypes.Int32:
		return tensors.FromFlatDataAndDimensions(castSlice[int32](quantized), dims...)
	default:
		exceptions.Panicf("quant.QuantizeToInt: unexpected target dtype %s", dtype)
	}
	return nil
}

// DequantizeToFloat converts a quantized integer tensor back to float32 under this config:
// (q − offset)·scale, per channel.
func (c *TensorConfig) DequantizeToFloat(value *tensors.Tensor) *tensors.Tensor {
	values := value.Float64s()
	scales := c.Scale.Float64s()
	offsets := c.Offset.Float64s()
	channelOf := c.channelIndexer(value.Shape(), len(scales))

	dequantized := make([]float32, len(values))
	for ii, q := range values {
		ch := channelOf(ii)
		dequantized[ii] = float32((q - offsets[ch]) * scales[ch])
	}
	return tensors.FromFlatDataAndDimensions(dequantized, value.Shape().Dimensions...)
}

// channelIndexer returns a function mapping a flat element index of a tensor with the given
// shape to the scale/offset entry that applies to it.
func (c *TensorConfig) channelIndexer(shape shapes.Shape, numChannels int) func(int) int {
	if !c.Policy.Has(PerChannel) {
		if numChannels != 1 {
			exceptions.Panicf("quant: per-tensor config carries %d scale entries", numChannels)
		}
		return func(int) int { return 0 }
	}
	axis := c.ChannelAxis
	if axis < 0 || axis >= shape.Rank() {
		exceptions.Panicf("quant: channel axis %d out of range for shape %s", axis, shape)
	}
	if shape.Dim(axis) != numChannels {
		exceptions.Panicf("quant: config has %d channels but axis %d of shape %s has dimension %d",
			numChannels, axis, shape, shape.Dim(axis))
	}
	innerStride := 1
	for _, dim := range shape.Dimensions[axis+1:] {
		innerStride *= dim
	}
	dim := shape.Dim(axis)
	return func(flatIdx int) int {
		return (flatIdx / innerStride) % dim
	}
}

func castSlice[Out int8 | uint8 | int32](in []int64) []Out {
	out := make([]Out, len(in))
	for ii, v := range in {
		out[ii] = Out(v)
	}
	return out
}

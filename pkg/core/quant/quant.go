// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package quant models per-tensor quantization metadata.
//
// A TensorConfig describes how one use of a tensor is quantized: the numeric Policy
// (linear or floating, symmetric or asymmetric, per-tensor or per-channel), the bit-width,
// the scale/offset values, the integer window [QuantMin, QuantMax] and the lifecycle State.
//
// Configs are produced by an external calibration subsystem and consumed -- never
// recomputed -- by the export pipeline: the insertion engine materializes them as explicit
// quantize/dequantize operations (see package export), and the exportability predicate
// decides which of them are representable at all in the output format.
package quant

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/qdq/pkg/core/tensors"
	"k8s.io/klog/v2"
)

// Policy is a bitmask describing the numeric properties of a quantization scheme.
//
// Exactly one of Linear/Floating, one of Symmetric/Asymmetric and one of
// PerTensor/PerChannel is expected to be set.
type Policy uint16

const (
	// Linear quantization: float values map to integers as round(v/scale)+offset.
	Linear Policy = 1 << iota

	// Floating quantization: float values map to a reduced floating-point format
	// (FP8-style), parameterized by exponent/mantissa bit-widths.
	Floating

	// Symmetric quantization fixes the offset at the midpoint of the representation.
	Symmetric

	// Asymmetric quantization allows the offset to shift the zero point freely.
	Asymmetric

	// PerTensor quantization applies one scale/offset pair to the whole tensor.
	PerTensor

	// PerChannel quantization applies one scale/offset pair per slice along the
	// config's ChannelAxis.
	PerChannel
)

// Has returns whether all the given property bits are set in the policy.
func (p Policy) Has(properties Policy) bool {
	return p&properties == properties
}

// String implements fmt.Stringer.
func (p Policy) String() string {
	var parts []string
	for _, it := range []struct {
		flag Policy
		name string
	}{
		{Linear, "Linear"}, {Floating, "Floating"},
		{Symmetric, "Symmetric"}, {Asymmetric, "Asymmetric"},
		{PerTensor, "PerTensor"}, {PerChannel, "PerChannel"},
	} {
		if p.Has(it.flag) {
			parts = append(parts, it.name)
		}
	}
	if len(parts) == 0 {
		return "Policy(none)"
	}
	return strings.Join(parts, "|")
}

// Visibility controls whether a config may appear in the exported artifacts at all.
type Visibility int

const (
	// VisibilityExportable configs are materialized as quantize/dequantize nodes and
	// listed in quantization reports.
	VisibilityExportable Visibility = iota

	// VisibilityInternal configs exist only for the benefit of the calibration pipeline
	// and are never exported.
	VisibilityInternal
)

// String implements fmt.Stringer.
func (v Visibility) String() string {
	switch v {
	case VisibilityExportable:
		return "Exportable"
	case VisibilityInternal:
		return "Internal"
	}
	return "Visibility(?)"
}

// TensorConfig is the quantization descriptor of one tensor use.
//
// Scale and Offset are scalar tensors for per-tensor policies, or rank-1 tensors with one
// entry per channel for per-channel policies. Offsets are stored as floats and only rounded
// to their integer encoding when materialized into the graph.
type TensorConfig struct {
	Policy Policy

	// Bits is the quantization bit-width (8 for int8/uint8 targets).
	Bits int

	// ExponentBits and MantissaBits parameterize Floating policies; unused for Linear.
	ExponentBits, MantissaBits int

	Scale  *tensors.Tensor
	Offset *tensors.Tensor

	// QuantMin and QuantMax delimit the integer window of the encoding.
	QuantMin, QuantMax int

	// ChannelAxis is the axis the scale/offset vectors index for PerChannel policies.
	ChannelAxis int

	State      State
	Visibility Visibility
}

// OperationConfig binds one TensorConfig per input and per output of a quantizable
// operation, positionally.
type OperationConfig struct {
	Inputs  []*TensorConfig
	Outputs []*TensorConfig
}

// Exportable reports whether the config can be materialized in the output format.
//
// It is a pure predicate: the state must be finalized to an exportable value
// (Activated or Baked family), visibility must not be internal, and 8-bit linear configs
// must fit the representable integer window: [-128, 127] symmetric or [0, 255] asymmetric.
// Bit-widths above 8 bypass the range check.
//
// A failed range check is a warning, not an error: the config is treated as non-exportable
// and the tensor named varName is left unquantized in the output.
func (c *TensorConfig) Exportable(varName string) bool {
	if c == nil || !c.State.Exportable() {
		return false
	}
	if c.Visibility == VisibilityInternal {
		return false
	}
	if c.Bits == 8 && c.Policy.Has(Linear) {
		var rangeCheck bool
		if c.Policy.Has(Asymmetric) {
			rangeCheck = c.QuantMin >= 0 && c.QuantMax <= 255
		} else {
			rangeCheck = c.QuantMin >= -128 && c.QuantMax <= 127
		}
		if !rangeCheck {
			klog.Warningf("it is not safe to export the quantization config of %q: "+
				"int8 value range must be [-128, 127] or [0, 255], but [%d, %d] was given; "+
				"the tensor is exported unquantized", varName, c.QuantMin, c.QuantMax)
			return false
		}
	}
	return true
}

// OffsetDType returns the integer data type used to encode the offset constant -- and the
// in-place folded parameter values -- for this config.
//
// Linear policies use int8 (symmetric) or uint8 (asymmetric), widened to int32 for
// bit-widths above 16. Floating policies keep float32 offsets.
func (c *TensorConfig) OffsetDType() dtypes.DType {
	if c.Policy.Has(Floating) {
		return dtypes.Float32
	}
	dtype := dtypes.Int8
	if c.Policy.Has(Asymmetric) {
		dtype = dtypes.Uint8
	}
	if c.Bits > 16 {
		dtype = dtypes.Int32
	}
	return dtype
}

// RealizableRange returns the [min, max] interval of float values representable by this
// config: elementwise scale·(QuantMin−offset) minimized and scale·(QuantMax−offset)
// maximized over channels.
func (c *TensorConfig) RealizableRange() (min, max float64) {
	scales := c.Scale.Float64s()
	offsets := c.Offset.Float64s()
	if len(scales) != len(offsets) {
		exceptions.Panicf("quant: scale has %d entries but offset has %d", len(scales), len(offsets))
	}
	for ii, scale := range scales {
		lo := scale * (float64(c.QuantMin) - offsets[ii])
		hi := scale * (float64(c.QuantMax) - offsets[ii])
		if ii == 0 || lo < min {
			min = lo
		}
		if ii == 0 || hi > max {
			max = hi
		}
	}
	return
}

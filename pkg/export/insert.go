// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/quant"
	"github.com/gomlx/qdq/pkg/core/tensors"
)

// convertOperation materializes the quantization configs bound to op as
// explicit conversion nodes.
//
// For each exportable (config, variable) pair:
//   - parameters get (when folding) a single dequantize node downstream of
//     the value rewritten in place to its integer representation, or (when
//     not folding) a quantize+dequantize pair before their single consumer;
//   - runtime tensors get a quantize+dequantize pair spliced at the edge to
//     op, or at the variable's production point when the variable is one of
//     op's outputs.
//
// A parameter with more than one consumer is a structural error: folded
// values cannot be shared.
func (e *Exporter) convertOperation(g *graph.Graph, op *graph.Operation) {
	for _, pair := range op.ConfigWithVariables() {
		cfg, v := pair.Config, pair.Variable
		if !cfg.Exportable(v.Name()) {
			continue
		}

		if v.IsParameter() && e.processParameters {
			if len(v.Consumers()) != 1 {
				exceptions.Panicf("cannot export parameter %q: it has %d consuming operations, "+
					"quantized parameters must have exactly one", v.Name(), len(v.Consumers()))
			}

			// Baked states fold the quantization effect into the value; only
			// Activated/Passive are structurally representable as nodes.
			switch cfg.State {
			case quant.StateBaked:
				cfg.State = quant.StateActivated
			case quant.StatePassiveBaked:
				cfg.State = quant.StatePassive
			}

			target := v
			if !e.foldParametersToInt {
				_, target = insertQuantOnVariable(g, v, cfg, op)
			}
			insertDequantOnVariable(g, target, cfg, op)
			if e.foldParametersToInt && cfg.Policy.Has(quant.Linear) {
				target.SetValue(cfg.QuantizeToInt(target.Value()))
			}

		} else if !v.IsParameter() && e.processActivations {
			_, quantized := insertQuantOnVariable(g, v, cfg, op)
			insertDequantOnVariable(g, quantized, cfg, op)
		}
	}
}

// insertQuantOnVariable splices a quantize node onto v: between v and
// relatedOp when v is one of relatedOp's inputs, at v's production point
// otherwise. The node's scale and offset are materialized as fresh constant
// variables. It returns the created operation and its output variable.
func insertQuantOnVariable(g *graph.Graph, v *graph.Variable, cfg *quant.TensorConfig, relatedOp *graph.Operation) (*graph.Operation, *graph.Variable) {
	return insertConversion(g, v, cfg, relatedOp, graph.OpTypeQuantizeLinear, graph.OpTypeQuantizeFloating)
}

// insertDequantOnVariable is insertQuantOnVariable for the dequantize
// direction.
func insertDequantOnVariable(g *graph.Graph, v *graph.Variable, cfg *quant.TensorConfig, relatedOp *graph.Operation) (*graph.Operation, *graph.Variable) {
	return insertConversion(g, v, cfg, relatedOp, graph.OpTypeDequantizeLinear, graph.OpTypeDequantizeFloating)
}

func insertConversion(g *graph.Graph, v *graph.Variable, cfg *quant.TensorConfig, relatedOp *graph.Operation,
	linearType, floatingType graph.OpType) (*graph.Operation, *graph.Variable) {
	var opType graph.OpType
	switch {
	case cfg.Policy.Has(quant.Linear):
		opType = linearType
	case cfg.Policy.Has(quant.Floating):
		opType = floatingType
	default:
		exceptions.Panicf("cannot export quantization of variable %q: policy %s is neither linear nor floating",
			v.Name(), cfg.Policy)
	}

	scale := g.CreateParameter("", scaleConstant(cfg))
	offset := g.CreateParameter("", offsetConstant(cfg))

	var created *graph.Operation
	var out *graph.Variable
	if relatedOp != nil && relatedOp.InputIndex(v) >= 0 {
		created, out = g.InsertBetween(opType, "", v, relatedOp, scale, offset)
	} else {
		created, out = g.InsertOnVariable(opType, "", v, scale, offset)
	}

	if cfg.Policy.Has(quant.Floating) {
		created.SetAttr("min", graph.AttrInt(int64(cfg.QuantMin)))
		created.SetAttr("max", graph.AttrInt(int64(cfg.QuantMax)))
		created.SetAttr("exponent", graph.AttrInt(int64(cfg.ExponentBits)))
		created.SetAttr("mantissa", graph.AttrInt(int64(cfg.MantissaBits)))
	}
	if cfg.Policy.Has(quant.PerChannel) {
		created.SetAttr("axis", graph.AttrInt(int64(cfg.ChannelAxis)))
	}
	// Opset 13 requires an explicit axis even for per-tensor linear nodes.
	if cfg.Policy.Has(quant.PerTensor) && cfg.Policy.Has(quant.Linear) {
		created.SetAttr("axis", graph.AttrInt(0))
	}
	return created, out
}

// scaleConstant copies the config's scale as a float32 tensor.
func scaleConstant(cfg *quant.TensorConfig) *tensors.Tensor {
	values := cfg.Scale.Float64s()
	flat := make([]float32, len(values))
	for ii, value := range values {
		flat[ii] = float32(value)
	}
	return tensors.FromFlatDataAndDimensions(flat, cfg.Scale.Shape().Dimensions...)
}

// offsetConstant copies the config's offset rounded (half-even) and cast to
// the policy's integer encoding; floating policies keep float32 offsets.
func offsetConstant(cfg *quant.TensorConfig) *tensors.Tensor {
	values := cfg.Offset.Float64s()
	dims := cfg.Offset.Shape().Dimensions
	if cfg.Policy.Has(quant.Floating) {
		flat := make([]float32, len(values))
		for ii, value := range values {
			flat[ii] = float32(value)
		}
		return tensors.FromFlatDataAndDimensions(flat, dims...)
	}

	switch dtype := cfg.OffsetDType(); dtype {
	case dtypes.Int8:
		return tensors.FromFlatDataAndDimensions(roundOffsets[int8](values), dims...)
	case dtypes.Uint8:
		return tensors.FromFlatDataAndDimensions(roundOffsets[uint8](values), dims...)
	case dtypes.Int32:
		return tensors.FromFlatDataAndDimensions(roundOffsets[int32](values), dims...)
	default:
		exceptions.Panicf("unexpected offset dtype %s", dtype)
	}
	return nil
}

func roundOffsets[Out int8 | uint8 | int32](values []float64) []Out {
	out := make([]Out, len(values))
	for ii, value := range values {
		out[ii] = Out(math.RoundToEven(value))
	}
	return out
}

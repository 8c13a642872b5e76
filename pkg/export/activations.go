// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"math"

	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/quant"
	"github.com/gomlx/qdq/pkg/core/tensors"
)

// elideActivations removes Relu and Clip operations whose clamping effect is
// already implied by an asymmetric output quantization: the realizable range
// [scale·(quantMin−offset), scale·(quantMax−offset)] clamps on its own.
//
// Symmetric quantization is never elided, since zero-clamping changes the
// representable range in a way a symmetric window cannot absorb. A removed
// node is replaced by a fresh quantize→dequantize pair at its former input
// edge, so the numerical effect stays explicit in the graph.
func (e *Exporter) elideActivations(g *graph.Graph) {
	var removable []*graph.Operation
	for _, op := range g.Operations() {
		if op.Type() != graph.OpTypeRelu && op.Type() != graph.OpTypeClip {
			continue
		}
		cfg := op.Config()
		if cfg == nil || len(cfg.Outputs) == 0 {
			continue
		}
		outCfg := cfg.Outputs[0]
		if outCfg == nil || outCfg.Scale == nil || outCfg.Offset == nil {
			continue
		}
		if outCfg.Policy.Has(quant.Symmetric) {
			continue
		}

		rangeMin, rangeMax := outCfg.RealizableRange()
		switch op.Type() {
		case graph.OpTypeRelu:
			if rangeMin >= 0 {
				removable = append(removable, op)
			}
		case graph.OpTypeClip:
			if len(op.Inputs()) != 3 {
				continue
			}
			clipMin, clipMax := clipBound(op.Inputs()[1], math.Inf(-1)), clipBound(op.Inputs()[2], math.Inf(+1))
			if rangeMin >= clipMin && rangeMax <= clipMax {
				removable = append(removable, op)
			}
		}
	}

	for _, op := range removable {
		// The clamp may only be folded upstream when the producer is itself
		// quantized and feeds nothing else.
		upstreams := op.Upstreams()
		if len(upstreams) == 0 {
			continue
		}
		upstream := upstreams[0]
		if upstream.Config() == nil {
			continue
		}
		if len(upstream.Downstreams()) != 1 {
			continue
		}
		inCfg := op.Config().Inputs[0]
		if !inCfg.Policy.Has(quant.Asymmetric) {
			continue
		}
		outCfg := op.Config().Outputs[0]

		inVar, outVar := op.Inputs()[0], op.Outputs()[0]
		g.RemoveOperation(op)
		g.MergeVariables(inVar, outVar)

		insertDequantOnVariable(g, inVar, outCfg, upstream)
		insertQuantOnVariable(g, inVar, outCfg, upstream)
	}
}

// clipBound reads a scalar clip bound, falling back to missing when the
// input carries no value.
func clipBound(v *graph.Variable, missing float64) float64 {
	if v == nil || v.Value() == nil {
		return missing
	}
	return scalarValue(v.Value())
}

func scalarValue(t *tensors.Tensor) float64 {
	return t.Float64s()[0]
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/tensors"
	"github.com/gomlx/qdq/pkg/support/sets"
)

// Scale tensors of two chained conversion nodes are considered identical
// below this absolute difference. Offsets are integers, so any sub-unit
// difference already means identical.
const (
	dedupScaleTolerance  = 1e-5
	dedupOffsetTolerance = 0.5
)

// collapseDuplicateChains removes Dequantize→Quantize round-trips: a
// QuantizeLinear whose single upstream producer is a DequantizeLinear with
// matching scale and offset is a numerical no-op together with its own
// downstream DequantizeLinear, so both are spliced out.
//
// A dequantize whose output fans out to more than one consumer is left
// untouched: collapsing a shared branch is not attempted. A matched
// quantize with more than one consumer violates the chain shape the
// insertion pass guarantees and aborts the export.
func collapseDuplicateChains(g *graph.Graph) {
	type chain struct {
		qt, dq *graph.Operation
	}
	var interested []chain
	for _, qt := range g.Operations() {
		if qt.Type() != graph.OpTypeQuantizeLinear {
			continue
		}
		upstreams := qt.Upstreams()
		if len(upstreams) != 1 || upstreams[0].Type() != graph.OpTypeDequantizeLinear {
			continue
		}
		interested = append(interested, chain{qt: qt, dq: upstreams[0]})
	}

	var toRemove []*graph.Operation
	marked := sets.Make[*graph.Operation](0)
	for _, c := range interested {
		if len(c.dq.Outputs()[0].Consumers()) != 1 {
			continue
		}
		scaleDiff := maxAbsDiff(c.dq.Inputs()[1].Value(), c.qt.Inputs()[1].Value())
		offsetDiff := maxAbsDiff(c.dq.Inputs()[2].Value(), c.qt.Inputs()[2].Value())
		if scaleDiff >= dedupScaleTolerance || offsetDiff >= dedupOffsetTolerance {
			continue
		}

		downstreams := c.qt.Downstreams()
		if len(downstreams) != 1 {
			exceptions.Panicf("quantize operation %q must have exactly one consumer to be collapsed, found %d",
				c.qt.Name(), len(downstreams))
		}
		for _, op := range []*graph.Operation{c.qt, downstreams[0]} {
			if !marked.Has(op) {
				marked.Insert(op)
				toRemove = append(toRemove, op)
			}
		}
	}

	for _, op := range toRemove {
		inVar, outVar := op.Inputs()[0], op.Outputs()[0]
		g.RemoveOperation(op)
		g.MergeVariables(inVar, outVar)
	}
}

// maxAbsDiff returns the maximum elementwise absolute difference between
// two tensors, or +Inf when they are not comparable.
func maxAbsDiff(a, b *tensors.Tensor) float64 {
	if a == nil || b == nil {
		return math.Inf(+1)
	}
	av, bv := a.Float64s(), b.Float64s()
	if len(av) != len(bv) {
		return math.Inf(+1)
	}
	var diff float64
	for ii := range av {
		diff = math.Max(diff, math.Abs(av[ii]-bv[ii]))
	}
	return diff
}

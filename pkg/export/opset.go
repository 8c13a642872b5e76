// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/tensors"
)

// Upgrade migrates operations from the opset-11 representation to opset 13,
// which is required to express per-channel quantize/dequantize nodes:
// ReduceSum/Squeeze/Unsqueeze move their "axes" attribute, and Split its
// "split" attribute, into an explicit rank-1 int64 constant input.
//
// Upgrade is idempotent: operations already in the new form (attribute
// absent) are left untouched.
func Upgrade(g *graph.Graph) {
	for _, op := range g.Operations() {
		switch op.Type() {
		case graph.OpTypeReduceSum, graph.OpTypeSqueeze, graph.OpTypeUnsqueeze:
			migrateAttrToInput(g, op, "axes")
		case graph.OpTypeSplit:
			migrateAttrToInput(g, op, "split")
		}
	}
}

func migrateAttrToInput(g *graph.Graph, op *graph.Operation, attrName string) {
	attr, found := op.Attr(attrName)
	if !found {
		return
	}
	values := attr.Ints()
	op.DeleteAttr(attrName)
	v := g.CreateParameter("", tensors.FromFlatDataAndDimensions(values, len(values)))
	g.LinkInput(v, op)
}

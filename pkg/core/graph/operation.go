// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"

	"github.com/gomlx/qdq/pkg/core/quant"
	"github.com/gomlx/qdq/pkg/support/sets"
)

// Operation is a node of the computation graph. Inputs and outputs are
// ordered, matching the positional semantics of the serialized operator.
type Operation struct {
	graph   *Graph
	name    string
	opType  OpType
	inputs  []*Variable
	outputs []*Variable

	attributes map[string]Attribute

	// qconfig holds the per-input/per-output quantization configuration,
	// nil for operations that never went through quantization.
	qconfig *quant.OperationConfig

	// platform tags operations owned by the runtime rather than the
	// original network, e.g. quantize/dequantize pairs inserted at export.
	platform bool
}

// Name returns the operation's unique name within its graph.
func (op *Operation) Name() string { return op.name }

// Type returns the operation's op type.
func (op *Operation) Type() OpType { return op.opType }

// Inputs returns the ordered input variables. Must not be modified.
func (op *Operation) Inputs() []*Variable { return op.inputs }

// Outputs returns the ordered output variables. Must not be modified.
func (op *Operation) Outputs() []*Variable { return op.outputs }

// Graph returns the owning graph.
func (op *Operation) Graph() *Graph { return op.graph }

// IsPlatformOp reports whether the operation was inserted by the export
// machinery rather than present in the source network.
func (op *Operation) IsPlatformOp() bool { return op.platform }

// Config returns the quantization configuration, nil when absent.
func (op *Operation) Config() *quant.OperationConfig { return op.qconfig }

// SetConfig attaches a quantization configuration.
func (op *Operation) SetConfig(c *quant.OperationConfig) { op.qconfig = c }

// Attr returns the named attribute and whether it is set.
func (op *Operation) Attr(name string) (Attribute, bool) {
	a, ok := op.attributes[name]
	return a, ok
}

// SetAttr sets a named attribute, replacing any previous value.
func (op *Operation) SetAttr(name string, a Attribute) {
	if op.attributes == nil {
		op.attributes = make(map[string]Attribute)
	}
	op.attributes[name] = a
}

// DeleteAttr removes a named attribute if present.
func (op *Operation) DeleteAttr(name string) { delete(op.attributes, name) }

// AttrNames returns the attribute names in sorted order.
func (op *Operation) AttrNames() []string {
	names := mapKeys(op.attributes)
	slices.Sort(names)
	return names
}

// InputIndex returns the position of v among the inputs, or -1.
func (op *Operation) InputIndex(v *Variable) int {
	for i, in := range op.inputs {
		if in == v {
			return i
		}
	}
	return -1
}

// OutputIndex returns the position of v among the outputs, or -1.
func (op *Operation) OutputIndex(v *Variable) int {
	for i, out := range op.outputs {
		if out == v {
			return i
		}
	}
	return -1
}

// Upstreams returns the producer operations of the inputs, deduplicated,
// in input order.
func (op *Operation) Upstreams() []*Operation {
	var ups []*Operation
	seen := sets.Make[*Operation](len(op.inputs))
	for _, in := range op.inputs {
		p := in.producer
		if p == nil || seen.Has(p) {
			continue
		}
		seen.Insert(p)
		ups = append(ups, p)
	}
	return ups
}

// Downstreams returns the consumer operations of the outputs, deduplicated,
// in output order.
func (op *Operation) Downstreams() []*Operation {
	var downs []*Operation
	seen := sets.Make[*Operation](0)
	for _, out := range op.outputs {
		for _, c := range out.consumers {
			if seen.Has(c) {
				continue
			}
			seen.Insert(c)
			downs = append(downs, c)
		}
	}
	return downs
}

// ConfigWithVariables pairs each input and output variable with its tensor
// configuration. Operations without a configuration yield nothing.
func (op *Operation) ConfigWithVariables() []ConfigVariablePair {
	if op.qconfig == nil {
		return nil
	}
	pairs := make([]ConfigVariablePair, 0, len(op.inputs)+len(op.outputs))
	for i, cfg := range op.qconfig.Inputs {
		if i >= len(op.inputs) {
			break
		}
		pairs = append(pairs, ConfigVariablePair{Config: cfg, Variable: op.inputs[i], IsInput: true, Index: i})
	}
	for i, cfg := range op.qconfig.Outputs {
		if i >= len(op.outputs) {
			break
		}
		pairs = append(pairs, ConfigVariablePair{Config: cfg, Variable: op.outputs[i], Index: i})
	}
	return pairs
}

// ConfigVariablePair associates one tensor configuration with the graph
// variable it describes.
type ConfigVariablePair struct {
	Config   *quant.TensorConfig
	Variable *Variable
	IsInput  bool
	Index    int
}

func (op *Operation) String() string {
	return fmt.Sprintf("Operation(%q, %s)", op.name, op.opType)
}

func mapKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

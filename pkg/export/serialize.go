// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/tensors"
	"github.com/gomlx/qdq/pkg/onnx"
	"github.com/gomlx/qdq/pkg/support/xslices"
	"github.com/pkg/errors"
)

const (
	// Interchange-format versions the exported models declare. Per-channel
	// quantize/dequantize attributes require at least opset 13; IR version 7
	// is the matching model format version.
	requiredOpsetVersion = 13
	modelIRVersion       = 7

	producerName    = "qdq"
	producerVersion = "1.0.0"
)

// nodeBuilder converts one graph operation into its serialized node form.
type nodeBuilder func(op *graph.Operation) *onnx.Node

// nodeBuilders is the catalogue of serializable operation types. An
// operation whose type is absent here cannot be represented in the output
// format and fails the export.
var nodeBuilders = map[graph.OpType]nodeBuilder{}

func init() {
	for _, opType := range graph.OpTypeValues() {
		if opType == graph.OpTypeInvalid {
			continue
		}
		nodeBuilders[opType] = buildNode
	}
}

// buildModel walks the prepared graph in topological order and assembles
// the serializable model: node list, initializers (bit-exact parameter
// values) and declared inputs/outputs. It fails on operation types without
// a registered builder.
func (e *Exporter) buildModel(g *graph.Graph) (*onnx.Model, error) {
	name := g.Name()
	if name == "" {
		name = "qdq export"
	}
	graphDef := &onnx.GraphDef{Name: name}

	for _, op := range g.TopologicalSort() {
		builder, supported := nodeBuilders[op.Type()]
		if !supported {
			return nil, errors.Errorf("operation %q has type %s, which cannot be serialized", op.Name(), op.Type())
		}
		graphDef.Nodes = append(graphDef.Nodes, builder(op))
	}

	for _, v := range g.Variables() {
		if v.IsParameter() {
			graphDef.Initializers = append(graphDef.Initializers, tensorOf(v.Name(), v.Value()))
		}
	}
	for _, v := range g.Inputs() {
		graphDef.Inputs = append(graphDef.Inputs, valueInfoOf(v))
	}
	for _, v := range g.Outputs() {
		graphDef.Outputs = append(graphDef.Outputs, valueInfoOf(v))
	}

	model := &onnx.Model{
		IRVersion:       modelIRVersion,
		ProducerName:    producerName,
		ProducerVersion: producerVersion,
		Graph:           graphDef,
		Opsets:          mergeOpsets(g.Opsets()),
	}
	if prov := g.Provenance(); prov != "" {
		model.Metadata = append(model.Metadata, onnx.MetadataProp{Key: "converted_from", Value: prov})
	}
	return model, nil
}

// mergeOpsets merges the graph's pre-existing opset declarations with the
// required default-domain version, never downgrading a declaration already
// present at a higher version.
func mergeOpsets(declared []graph.Opset) []onnx.Opset {
	defaultVersion := int64(requiredOpsetVersion)
	var others []onnx.Opset
	for _, o := range declared {
		if o.Domain == "" || o.Domain == "ai.onnx" {
			if o.Version > defaultVersion {
				defaultVersion = o.Version
			}
			continue
		}
		others = append(others, onnx.Opset{Domain: o.Domain, Version: o.Version})
	}
	return append(others, onnx.Opset{Domain: "ai.onnx", Version: defaultVersion})
}

func buildNode(op *graph.Operation) *onnx.Node {
	node := &onnx.Node{
		Name:   op.Name(),
		OpType: op.Type().String(),
	}
	for _, in := range op.Inputs() {
		node.Inputs = append(node.Inputs, in.Name())
	}
	for _, out := range op.Outputs() {
		node.Outputs = append(node.Outputs, out.Name())
	}
	for _, attrName := range op.AttrNames() {
		attr, _ := op.Attr(attrName)
		node.Attributes = append(node.Attributes, attributeOf(attrName, attr))
	}
	return node
}

func attributeOf(name string, attr graph.Attribute) *onnx.Attribute {
	out := &onnx.Attribute{Name: name}
	switch attr.Kind() {
	case graph.AttrKindInt:
		out.Type = onnx.AttrTypeInt
		out.I = attr.Int()
	case graph.AttrKindFloat:
		out.Type = onnx.AttrTypeFloat
		out.F = attr.Float()
	case graph.AttrKindString:
		out.Type = onnx.AttrTypeString
		out.S = []byte(attr.Str())
	case graph.AttrKindInts:
		out.Type = onnx.AttrTypeInts
		out.Ints = attr.Ints()
	case graph.AttrKindFloats:
		out.Type = onnx.AttrTypeFloats
		out.Floats = attr.Floats()
	case graph.AttrKindTensor:
		out.Type = onnx.AttrTypeTensor
		out.T = tensorOf(name, attr.Tensor())
	}
	return out
}

func tensorOf(name string, t *tensors.Tensor) *onnx.Tensor {
	return &onnx.Tensor{
		Name:     name,
		DataType: onnx.DataTypeOf(t.DType()),
		Dims:     xslices.Map(t.Shape().Dimensions, func(dim int) int64 { return int64(dim) }),
		RawData:  t.RawBytes(),
	}
}

func valueInfoOf(v *graph.Variable) *onnx.ValueInfo {
	info := &onnx.ValueInfo{Name: v.Name(), ElemType: onnx.DataTypeFloat}
	shape := v.Shape()
	if !shape.Ok() {
		return info
	}
	info.ElemType = onnx.DataTypeOf(shape.DType)
	for _, dim := range shape.Dimensions {
		info.Dims = append(info.Dims, onnx.Dim{Value: int64(dim)})
	}
	return info
}

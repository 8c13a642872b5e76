// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/shapes"
	"github.com/gomlx/qdq/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opNames(ops []*graph.Operation) []string {
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name())
	}
	return names
}

// chainGraph builds input -> Relu(a) -> Relu(b) -> output.
func chainGraph(t *testing.T) (*graph.Graph, *graph.Variable, *graph.Variable, *graph.Variable) {
	g := graph.New("chain")
	in := g.CreateVariable("input", shapes.Make(dtypes.Float32, 1, 8))
	mid := g.CreateVariable("mid", shapes.Make(dtypes.Float32, 1, 8))
	out := g.CreateVariable("output", shapes.Make(dtypes.Float32, 1, 8))
	g.CreateOperation(graph.OpTypeRelu, "a", []*graph.Variable{in}, []*graph.Variable{mid})
	g.CreateOperation(graph.OpTypeRelu, "b", []*graph.Variable{mid}, []*graph.Variable{out})
	g.RegisterInput(in)
	g.RegisterOutput(out)
	require.NotNil(t, g.Operation("a"))
	require.NotNil(t, g.Operation("b"))
	return g, in, mid, out
}

func TestCreate(t *testing.T) {
	g, in, mid, out := chainGraph(t)

	t.Run("adjacency", func(t *testing.T) {
		a, b := g.Operation("a"), g.Operation("b")
		assert.Equal(t, a, mid.Producer())
		assert.Equal(t, []*graph.Operation{b}, mid.Consumers())
		assert.Nil(t, in.Producer())
		assert.Equal(t, b, out.Producer())
		assert.Equal(t, []*graph.Operation{a}, b.Upstreams())
		assert.Equal(t, []*graph.Operation{b}, a.Downstreams())
	})

	t.Run("duplicate names panic", func(t *testing.T) {
		assert.Panics(t, func() { g.CreateVariable("input", shapes.Invalid()) })
		assert.Panics(t, func() {
			g.CreateOperation(graph.OpTypeRelu, "a", nil, nil)
		})
	})

	t.Run("second producer panics", func(t *testing.T) {
		assert.Panics(t, func() {
			g.CreateOperation(graph.OpTypeIdentity, "clash", []*graph.Variable{in}, []*graph.Variable{mid})
		})
	})

	t.Run("generated names are unique", func(t *testing.T) {
		v1 := g.CreateVariable("", shapes.Invalid())
		v2 := g.CreateVariable("", shapes.Invalid())
		assert.NotEqual(t, v1.Name(), v2.Name())
	})
}

func TestInsertBetween(t *testing.T) {
	g, _, mid, _ := chainGraph(t)
	b := g.Operation("b")

	op, linkVar := g.InsertBetween(graph.OpTypeQuantizeLinear, "q", mid, b)
	assert.Equal(t, []*graph.Operation{op}, mid.Consumers())
	assert.Equal(t, []*graph.Variable{linkVar}, b.Inputs())
	assert.Equal(t, op, linkVar.Producer())
	assert.True(t, op.IsPlatformOp())
	assert.True(t, mid.Shape().Equal(linkVar.Shape()))

	t.Run("panics when downstream does not consume the variable", func(t *testing.T) {
		other := g.CreateVariable("other", shapes.Invalid())
		assert.Panics(t, func() {
			g.InsertBetween(graph.OpTypeQuantizeLinear, "", other, b)
		})
	})
}

func TestInsertOnVariable(t *testing.T) {
	g, _, _, out := chainGraph(t)

	op, newOut := g.InsertOnVariable(graph.OpTypeQuantizeLinear, "q", out)
	assert.Equal(t, []*graph.Operation{op}, out.Consumers())
	assert.Equal(t, op, newOut.Producer())

	// Output registration follows the spliced variable.
	assert.False(t, g.IsOutput(out))
	assert.True(t, g.IsOutput(newOut))
	assert.Equal(t, []*graph.Variable{newOut}, g.Outputs())
}

func TestMergeVariables(t *testing.T) {
	g, _, mid, out := chainGraph(t)
	b := g.Operation("b")
	g.RemoveOperation(b)

	g.MergeVariables(mid, out)
	assert.Nil(t, g.Variable("output"))
	assert.True(t, g.IsOutput(mid))
	assert.Empty(t, mid.Consumers())
}

func TestRemoveOperation(t *testing.T) {
	t.Run("detaches edges", func(t *testing.T) {
		g, in, mid, _ := chainGraph(t)
		a := g.Operation("a")
		g.RemoveOperation(a)
		assert.Nil(t, g.Operation("a"))
		assert.Empty(t, in.Consumers())
		assert.Nil(t, mid.Producer())
		assert.Panics(t, func() { g.RemoveOperation(a) })
	})

	t.Run("drops orphaned parameters", func(t *testing.T) {
		g, _, _, _ := chainGraph(t)
		b := g.Operation("b")
		param := g.CreateParameter("w", tensors.FromScalar(float32(1)))
		g.LinkInput(param, b)
		g.RemoveOperation(b)
		assert.Nil(t, g.Variable("w"))
	})

	t.Run("keeps shared parameters", func(t *testing.T) {
		g, _, _, _ := chainGraph(t)
		a, b := g.Operation("a"), g.Operation("b")
		param := g.CreateParameter("w", tensors.FromScalar(float32(1)))
		g.LinkInput(param, a)
		g.LinkInput(param, b)
		g.RemoveOperation(b)
		assert.NotNil(t, g.Variable("w"))
		assert.Equal(t, []*graph.Operation{a}, param.Consumers())
	})
}

func TestTopologicalSort(t *testing.T) {
	t.Run("producers come first", func(t *testing.T) {
		g := graph.New("diamond")
		in := g.CreateVariable("in", shapes.Invalid())
		l := g.CreateVariable("l", shapes.Invalid())
		r := g.CreateVariable("r", shapes.Invalid())
		out := g.CreateVariable("out", shapes.Invalid())
		// Register in non-topological order on purpose.
		g.CreateOperation(graph.OpTypeAdd, "join", []*graph.Variable{l, r}, []*graph.Variable{out})
		g.CreateOperation(graph.OpTypeRelu, "left", []*graph.Variable{in}, []*graph.Variable{l})
		g.CreateOperation(graph.OpTypeSigmoid, "right", []*graph.Variable{in}, []*graph.Variable{r})

		sorted := opNames(g.TopologicalSort())
		assert.Equal(t, []string{"left", "right", "join"}, sorted)
	})

	t.Run("deterministic", func(t *testing.T) {
		g, _, _, _ := chainGraph(t)
		first := opNames(g.TopologicalSort())
		for range 10 {
			assert.Equal(t, first, opNames(g.TopologicalSort()))
		}
	})

	t.Run("cycle panics", func(t *testing.T) {
		g := graph.New("cyclic")
		v1 := g.CreateVariable("v1", shapes.Invalid())
		v2 := g.CreateVariable("v2", shapes.Invalid())
		g.CreateOperation(graph.OpTypeRelu, "fwd", []*graph.Variable{v1}, []*graph.Variable{v2})
		g.CreateOperation(graph.OpTypeRelu, "back", []*graph.Variable{v2}, []*graph.Variable{v1})
		assert.Panics(t, func() { g.TopologicalSort() })
	})
}

func TestDeclareOpset(t *testing.T) {
	g := graph.New("opsets")
	g.DeclareOpset("", 11)
	g.DeclareOpset("", 13)
	g.DeclareOpset("", 9) // never downgrades
	g.DeclareOpset("com.custom", 1)
	assert.Equal(t, []graph.Opset{{Domain: "", Version: 13}, {Domain: "com.custom", Version: 1}}, g.Opsets())
}

func TestAttributes(t *testing.T) {
	g := graph.New("attrs")
	op := g.CreateOperation(graph.OpTypeClip, "clip", nil, nil)
	op.SetAttr("axis", graph.AttrInt(1))
	op.SetAttr("pads", graph.AttrInts(0, 1, 0, 1))

	axis, ok := op.Attr("axis")
	require.True(t, ok)
	assert.Equal(t, int64(1), axis.Int())
	assert.Panics(t, func() { axis.Floats() }, "wrong kind access")

	assert.Equal(t, []string{"axis", "pads"}, op.AttrNames())

	op.DeleteAttr("axis")
	_, ok = op.Attr("axis")
	assert.False(t, ok)
}

func TestOpType(t *testing.T) {
	assert.Equal(t, "QuantizeLinear", graph.OpTypeQuantizeLinear.String())
	assert.True(t, graph.OpTypeDequantizeFloating.IsQDQ())
	assert.False(t, graph.OpTypeConv.IsQDQ())

	parsed, err := graph.OpTypeString("Conv")
	require.NoError(t, err)
	assert.Equal(t, graph.OpTypeConv, parsed)
}

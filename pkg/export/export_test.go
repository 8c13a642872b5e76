// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/quant"
	"github.com/gomlx/qdq/pkg/core/shapes"
	"github.com/gomlx/qdq/pkg/core/tensors"
	"github.com/gomlx/qdq/pkg/export"
	"github.com/gomlx/qdq/pkg/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activatedAsym(scale, offset float32) *quant.TensorConfig {
	return &quant.TensorConfig{
		Policy:   quant.Linear | quant.Asymmetric | quant.PerTensor,
		Bits:     8,
		Scale:    tensors.FromScalar(scale),
		Offset:   tensors.FromScalar(offset),
		QuantMin: 0,
		QuantMax: 255,
		State:    quant.StateActivated,
	}
}

func activatedSym(scale float32) *quant.TensorConfig {
	return &quant.TensorConfig{
		Policy:   quant.Linear | quant.Symmetric | quant.PerTensor,
		Bits:     8,
		Scale:    tensors.FromScalar(scale),
		Offset:   tensors.FromScalar(float32(0)),
		QuantMin: -128,
		QuantMax: 127,
		State:    quant.StateActivated,
	}
}

func fp32Config() *quant.TensorConfig {
	return &quant.TensorConfig{
		Policy: quant.Linear | quant.Asymmetric | quant.PerTensor,
		Bits:   8,
		Scale:  tensors.FromScalar(float32(1)),
		Offset: tensors.FromScalar(float32(0)),
		State:  quant.StateFP32,
	}
}

// convGraph builds input -> Conv(weight, bias) -> output, with output
// registered as a graph output. Configs are attached by the caller.
func convGraph(t *testing.T) (g *graph.Graph, conv *graph.Operation) {
	g = graph.New("test")
	in := g.CreateVariable("input", shapes.Make(dtypes.Float32, 1, 3, 4, 4))
	weight := g.CreateParameter("weight", tensors.FromFlatDataAndDimensions(
		[]float32{1, -2, 3, -4, 5, -6}, 2, 3, 1, 1))
	bias := g.CreateParameter("bias", tensors.FromFlatDataAndDimensions([]float32{0.5, -0.5}, 2))
	out := g.CreateVariable("output", shapes.Make(dtypes.Float32, 1, 2, 4, 4))
	conv = g.CreateOperation(graph.OpTypeConv, "conv",
		[]*graph.Variable{in, weight, bias}, []*graph.Variable{out})
	g.RegisterInput(in)
	g.RegisterOutput(out)
	require.NotNil(t, conv)
	return
}

func requireTopologicallyValid(t *testing.T, g *graph.Graph) {
	t.Helper()
	seen := map[*graph.Operation]bool{}
	for _, op := range g.TopologicalSort() {
		for _, up := range op.Upstreams() {
			require.True(t, seen[up], "operation %q sorted before its producer %q", op.Name(), up.Name())
		}
		seen[op] = true
	}
}

func TestUpgrade(t *testing.T) {
	g := graph.New("upgrade")
	in := g.CreateVariable("in", shapes.Make(dtypes.Float32, 2, 3))
	out := g.CreateVariable("out", shapes.Make(dtypes.Float32, 2))
	reduce := g.CreateOperation(graph.OpTypeReduceSum, "reduce", []*graph.Variable{in}, []*graph.Variable{out})
	reduce.SetAttr("axes", graph.AttrInts(1))
	reduce.SetAttr("keepdims", graph.AttrInt(0))

	export.Upgrade(g)

	_, hasAxes := reduce.Attr("axes")
	assert.False(t, hasAxes, "axes attribute must move to an input")
	_, hasKeepdims := reduce.Attr("keepdims")
	assert.True(t, hasKeepdims, "unrelated attributes stay")
	require.Len(t, reduce.Inputs(), 2)
	axesVar := reduce.Inputs()[1]
	assert.True(t, axesVar.IsParameter())
	assert.Equal(t, dtypes.Int64, axesVar.Value().DType())
	assert.Equal(t, []int64{1}, tensors.CopyFlatData[int64](axesVar.Value()))

	t.Run("idempotent", func(t *testing.T) {
		export.Upgrade(g)
		assert.Len(t, reduce.Inputs(), 2)
		assert.Equal(t, 1, g.NumOperations())
	})

	t.Run("split", func(t *testing.T) {
		g := graph.New("split")
		in := g.CreateVariable("in", shapes.Make(dtypes.Float32, 4))
		o1 := g.CreateVariable("o1", shapes.Make(dtypes.Float32, 2))
		o2 := g.CreateVariable("o2", shapes.Make(dtypes.Float32, 2))
		split := g.CreateOperation(graph.OpTypeSplit, "split", []*graph.Variable{in}, []*graph.Variable{o1, o2})
		split.SetAttr("split", graph.AttrInts(2, 2))

		export.Upgrade(g)
		_, hasSplit := split.Attr("split")
		assert.False(t, hasSplit)
		require.Len(t, split.Inputs(), 2)
		assert.Equal(t, []int64{2, 2}, tensors.CopyFlatData[int64](split.Inputs()[1].Value()))
	})
}

func TestInsertOnActivation(t *testing.T) {
	g, conv := convGraph(t)
	conv.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 128), nil, nil},
		Outputs: []*quant.TensorConfig{fp32Config()},
	})

	e := export.New().WithProcessParameters(false).WithRemoveActivations(false)
	require.NoError(t, e.Prepare(g))
	requireTopologicallyValid(t, g)

	// input -> QuantizeLinear -> DequantizeLinear -> conv
	dq := conv.Inputs()[0].Producer()
	require.NotNil(t, dq)
	assert.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
	q := dq.Inputs()[0].Producer()
	require.NotNil(t, q)
	assert.Equal(t, graph.OpTypeQuantizeLinear, q.Type())
	assert.Equal(t, g.Variable("input"), q.Inputs()[0])

	t.Run("scale and offset constants", func(t *testing.T) {
		require.Len(t, q.Inputs(), 3)
		scale, offset := q.Inputs()[1], q.Inputs()[2]
		assert.True(t, scale.IsParameter())
		assert.Equal(t, dtypes.Float32, scale.Value().DType())
		assert.InDelta(t, 0.1, float64(tensors.ToScalar[float32](scale.Value())), 1e-6)
		assert.Equal(t, dtypes.Uint8, offset.Value().DType(), "asymmetric offsets are uint8")
		assert.Equal(t, uint8(128), tensors.ToScalar[uint8](offset.Value()))
	})

	t.Run("per-tensor linear nodes still carry axis 0", func(t *testing.T) {
		axis, ok := q.Attr("axis")
		require.True(t, ok)
		assert.Equal(t, int64(0), axis.Int())
	})
}

func TestInsertOnGraphOutput(t *testing.T) {
	g, conv := convGraph(t)
	conv.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{fp32Config(), nil, nil},
		Outputs: []*quant.TensorConfig{activatedAsym(0.1, 0)},
	})

	e := export.New().WithProcessParameters(false).WithRemoveActivations(false)
	require.NoError(t, e.Prepare(g))
	requireTopologicallyValid(t, g)

	// conv -> QuantizeLinear -> DequantizeLinear -> (new graph output)
	outputs := g.Outputs()
	require.Len(t, outputs, 1)
	dq := outputs[0].Producer()
	require.NotNil(t, dq)
	assert.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
	q := dq.Inputs()[0].Producer()
	require.NotNil(t, q)
	assert.Equal(t, graph.OpTypeQuantizeLinear, q.Type())
	assert.Equal(t, conv, q.Inputs()[0].Producer())
}

func TestInsertOnParameters(t *testing.T) {
	weightConfig := func() *quant.TensorConfig {
		cfg := activatedSym(0.5)
		cfg.State = quant.StateBaked
		return cfg
	}

	t.Run("folding rewrites the value and inserts a single dequantize", func(t *testing.T) {
		g, conv := convGraph(t)
		cfg := weightConfig()
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{fp32Config(), cfg, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		e := export.New().WithProcessActivations(false).WithRemoveActivations(false)
		require.NoError(t, e.Prepare(g))
		requireTopologicallyValid(t, g)

		weight := g.Variable("weight")
		require.NotNil(t, weight)
		assert.Equal(t, dtypes.Int8, weight.Value().DType())
		assert.Equal(t, []int8{2, -4, 6, -8, 10, -12}, tensors.CopyFlatData[int8](weight.Value()))

		dq := conv.Inputs()[1].Producer()
		require.NotNil(t, dq)
		assert.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
		assert.Equal(t, weight, dq.Inputs()[0])
		assert.Equal(t, quant.StateActivated, cfg.State, "baked state normalizes to activated")
	})

	t.Run("without folding the parameter keeps float and gets a full pair", func(t *testing.T) {
		g, conv := convGraph(t)
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{fp32Config(), weightConfig(), nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		e := export.New().WithProcessActivations(false).WithRemoveActivations(false).
			WithFoldParametersToInt(false)
		require.NoError(t, e.Prepare(g))

		weight := g.Variable("weight")
		assert.Equal(t, dtypes.Float32, weight.Value().DType())
		dq := conv.Inputs()[1].Producer()
		require.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
		q := dq.Inputs()[0].Producer()
		require.Equal(t, graph.OpTypeQuantizeLinear, q.Type())
		assert.Equal(t, weight, q.Inputs()[0])
	})

	t.Run("shared parameter is a structural error", func(t *testing.T) {
		g, conv := convGraph(t)
		weight := g.Variable("weight")
		other := g.CreateOperation(graph.OpTypeIdentity, "alias",
			[]*graph.Variable{weight}, []*graph.Variable{g.CreateVariable("alias_out", shapes.Invalid())})
		require.NotNil(t, other)
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{fp32Config(), weightConfig(), nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		err := export.New().Prepare(g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weight")
		assert.Contains(t, err.Error(), "exactly one")
	})

	t.Run("unsupported policy is a type error", func(t *testing.T) {
		g, conv := convGraph(t)
		cfg := activatedAsym(0.1, 0)
		cfg.Policy = quant.Asymmetric | quant.PerTensor // neither linear nor floating
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{cfg, nil, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		err := export.New().Prepare(g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "neither linear nor floating")
	})
}

func TestFloatingInsertion(t *testing.T) {
	g, conv := convGraph(t)
	cfg := &quant.TensorConfig{
		Policy:       quant.Floating | quant.Asymmetric | quant.PerTensor,
		Bits:         8,
		ExponentBits: 4,
		MantissaBits: 3,
		Scale:        tensors.FromScalar(float32(1)),
		Offset:       tensors.FromScalar(float32(0)),
		QuantMin:     -448,
		QuantMax:     448,
		State:        quant.StateActivated,
	}
	conv.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{cfg, nil, nil},
		Outputs: []*quant.TensorConfig{fp32Config()},
	})

	e := export.New().WithProcessParameters(false).WithRemoveActivations(false)
	require.NoError(t, e.Prepare(g))

	dq := conv.Inputs()[0].Producer()
	require.Equal(t, graph.OpTypeDequantizeFloating, dq.Type())
	q := dq.Inputs()[0].Producer()
	require.Equal(t, graph.OpTypeQuantizeFloating, q.Type())

	exponent, ok := q.Attr("exponent")
	require.True(t, ok)
	assert.Equal(t, int64(4), exponent.Int())
	mantissa, _ := q.Attr("mantissa")
	assert.Equal(t, int64(3), mantissa.Int())
	min, _ := q.Attr("min")
	assert.Equal(t, int64(-448), min.Int())
	offset := q.Inputs()[2]
	assert.Equal(t, dtypes.Float32, offset.Value().DType(), "floating offsets stay float")
	_, hasAxis := q.Attr("axis")
	assert.False(t, hasAxis, "floating per-tensor nodes carry no axis")
}

// reluGraph builds input -> Conv -> mid -> Relu -> output with the Relu's
// configs provided by the caller.
func reluGraph(t *testing.T, inCfg, outCfg *quant.TensorConfig) (*graph.Graph, *graph.Operation) {
	g := graph.New("relu")
	in := g.CreateVariable("input", shapes.Make(dtypes.Float32, 1, 8))
	mid := g.CreateVariable("mid", shapes.Make(dtypes.Float32, 1, 8))
	out := g.CreateVariable("output", shapes.Make(dtypes.Float32, 1, 8))
	conv := g.CreateOperation(graph.OpTypeConv, "conv", []*graph.Variable{in}, []*graph.Variable{mid})
	conv.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{fp32Config()},
		Outputs: []*quant.TensorConfig{fp32Config()},
	})
	relu := g.CreateOperation(graph.OpTypeRelu, "relu", []*graph.Variable{mid}, []*graph.Variable{out})
	relu.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{inCfg},
		Outputs: []*quant.TensorConfig{outCfg},
	})
	g.RegisterInput(in)
	g.RegisterOutput(out)
	return g, conv
}

func TestElideActivations(t *testing.T) {
	elider := func() *export.Exporter {
		return export.New().WithProcessActivations(false).WithProcessParameters(false)
	}

	t.Run("redundant asymmetric relu is removed", func(t *testing.T) {
		// Realizable range [0, 25.5] already clamps at zero.
		g, conv := reluGraph(t, activatedAsym(0.1, 0), activatedAsym(0.1, 0))
		require.NoError(t, elider().Prepare(g))
		requireTopologicallyValid(t, g)

		assert.Nil(t, g.Operation("relu"))

		// conv -> Quantize -> Dequantize -> (graph output)
		outputs := g.Outputs()
		require.Len(t, outputs, 1)
		dq := outputs[0].Producer()
		require.NotNil(t, dq)
		require.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
		q := dq.Inputs()[0].Producer()
		require.Equal(t, graph.OpTypeQuantizeLinear, q.Type())
		assert.Equal(t, conv, q.Inputs()[0].Producer())
	})

	t.Run("symmetric quantization is never elided", func(t *testing.T) {
		g, _ := reluGraph(t, activatedSym(0.1), activatedSym(0.1))
		require.NoError(t, elider().Prepare(g))
		assert.NotNil(t, g.Operation("relu"))
	})

	t.Run("negative realizable range keeps the relu", func(t *testing.T) {
		g, _ := reluGraph(t, activatedAsym(0.1, 128), activatedAsym(0.1, 128))
		require.NoError(t, elider().Prepare(g))
		assert.NotNil(t, g.Operation("relu"), "range minimum is negative, the clamp still matters")
	})

	t.Run("unquantized producer keeps the relu", func(t *testing.T) {
		g, conv := reluGraph(t, activatedAsym(0.1, 0), activatedAsym(0.1, 0))
		conv.SetConfig(nil)
		require.NoError(t, elider().Prepare(g))
		assert.NotNil(t, g.Operation("relu"))
	})

	t.Run("redundant clip within quantized bounds", func(t *testing.T) {
		g, _ := reluGraph(t, activatedAsym(0.1, 0), activatedAsym(0.1, 0))
		relu := g.Operation("relu")
		// Turn the relu into a clip with bounds [0, 30] covering [0, 25.5].
		clipIn := relu.Inputs()[0]
		clipOut := relu.Outputs()[0]
		cfg := relu.Config()
		g.RemoveOperation(relu)
		low := g.CreateParameter("low", tensors.FromScalar(float32(0)))
		high := g.CreateParameter("high", tensors.FromScalar(float32(30)))
		clip := g.CreateOperation(graph.OpTypeClip, "clip",
			[]*graph.Variable{clipIn, low, high}, []*graph.Variable{clipOut})
		clip.SetConfig(cfg)

		require.NoError(t, elider().Prepare(g))
		assert.Nil(t, g.Operation("clip"))
	})

	t.Run("clip with tight bounds survives", func(t *testing.T) {
		g, _ := reluGraph(t, activatedAsym(0.1, 0), activatedAsym(0.1, 0))
		relu := g.Operation("relu")
		clipIn := relu.Inputs()[0]
		clipOut := relu.Outputs()[0]
		cfg := relu.Config()
		g.RemoveOperation(relu)
		low := g.CreateParameter("low", tensors.FromScalar(float32(0)))
		high := g.CreateParameter("high", tensors.FromScalar(float32(6))) // tighter than 25.5
		clip := g.CreateOperation(graph.OpTypeClip, "clip",
			[]*graph.Variable{clipIn, low, high}, []*graph.Variable{clipOut})
		clip.SetConfig(cfg)

		require.NoError(t, elider().Prepare(g))
		assert.NotNil(t, g.Operation("clip"))
	})
}

// qdqChain builds input -> DQ1 -> Q2 -> DQ3 -> Relu -> output with the given
// scale/offset constants on each conversion node.
func qdqChain(t *testing.T, dqScale, qScale float32, dqOffset, qOffset uint8) *graph.Graph {
	g := graph.New("chain")
	in := g.CreateVariable("input", shapes.Make(dtypes.Float32, 1, 4))
	g.RegisterInput(in)

	makeConversion := func(name string, opType graph.OpType, from *graph.Variable, scale float32, offset uint8) *graph.Variable {
		out := g.CreateVariable(name+"_out", shapes.Make(dtypes.Float32, 1, 4))
		s := g.CreateParameter(name+"_scale", tensors.FromScalar(scale))
		z := g.CreateParameter(name+"_offset", tensors.FromScalar(offset))
		g.CreateOperation(opType, name, []*graph.Variable{from, s, z}, []*graph.Variable{out})
		return out
	}

	v1 := makeConversion("dq1", graph.OpTypeDequantizeLinear, in, dqScale, dqOffset)
	v2 := makeConversion("q2", graph.OpTypeQuantizeLinear, v1, qScale, qOffset)
	v3 := makeConversion("dq3", graph.OpTypeDequantizeLinear, v2, dqScale, dqOffset)

	out := g.CreateVariable("output", shapes.Make(dtypes.Float32, 1, 4))
	g.CreateOperation(graph.OpTypeRelu, "relu", []*graph.Variable{v3}, []*graph.Variable{out})
	g.RegisterOutput(out)
	return g
}

func TestCollapseDuplicateChains(t *testing.T) {
	passthrough := func() *export.Exporter {
		return export.New().WithProcessActivations(false).WithProcessParameters(false).
			WithRemoveActivations(false)
	}

	t.Run("matching chain collapses", func(t *testing.T) {
		g := qdqChain(t, 0.2, 0.2, 5, 5)
		require.NoError(t, passthrough().Prepare(g))
		requireTopologicallyValid(t, g)

		assert.Nil(t, g.Operation("q2"))
		assert.Nil(t, g.Operation("dq3"))
		dq1 := g.Operation("dq1")
		require.NotNil(t, dq1)
		relu := g.Operation("relu")
		require.NotNil(t, relu)
		assert.Equal(t, dq1, relu.Inputs()[0].Producer(), "relu reads the surviving dequantize")
	})

	t.Run("scale difference beyond tolerance prevents collapse", func(t *testing.T) {
		g := qdqChain(t, 0.2, 0.2002, 5, 5)
		require.NoError(t, passthrough().Prepare(g))
		assert.NotNil(t, g.Operation("q2"))
		assert.NotNil(t, g.Operation("dq3"))
	})

	t.Run("offset difference of one unit prevents collapse", func(t *testing.T) {
		g := qdqChain(t, 0.2, 0.2, 5, 6)
		require.NoError(t, passthrough().Prepare(g))
		assert.NotNil(t, g.Operation("q2"))
	})

	t.Run("dequantize fan-out is left untouched", func(t *testing.T) {
		g := qdqChain(t, 0.2, 0.2, 5, 5)
		// Second consumer on dq1's output.
		dq1Out := g.Operation("q2").Inputs()[0]
		branch := g.CreateVariable("branch", shapes.Make(dtypes.Float32, 1, 4))
		g.CreateOperation(graph.OpTypeRelu, "sibling", []*graph.Variable{dq1Out}, []*graph.Variable{branch})

		require.NoError(t, passthrough().Prepare(g))
		assert.NotNil(t, g.Operation("q2"))
		assert.NotNil(t, g.Operation("dq3"))
	})

	t.Run("quantize with several consumers is a structural error", func(t *testing.T) {
		g := qdqChain(t, 0.2, 0.2, 5, 5)
		q2Out := g.Operation("dq3").Inputs()[0]
		branch := g.CreateVariable("branch", shapes.Make(dtypes.Float32, 1, 4))
		g.CreateOperation(graph.OpTypeIdentity, "sibling", []*graph.Variable{q2Out}, []*graph.Variable{branch})

		err := passthrough().Prepare(g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one consumer")
	})
}

func TestEndToEnd(t *testing.T) {
	g, conv := convGraph(t)
	weightCfg := &quant.TensorConfig{
		Policy:      quant.Linear | quant.Symmetric | quant.PerChannel,
		Bits:        8,
		Scale:       tensors.FromFlatDataAndDimensions([]float32{0.5, 0.5}, 2),
		Offset:      tensors.FromFlatDataAndDimensions([]float32{0, 0}, 2),
		QuantMin:    -128,
		QuantMax:    127,
		ChannelAxis: 0,
		State:       quant.StateActivated,
	}
	biasCfg := activatedSym(0.05)
	biasCfg.State = quant.StatePassive
	conv.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 128), weightCfg, biasCfg},
		Outputs: []*quant.TensorConfig{fp32Config()},
	})

	require.NoError(t, export.New().Prepare(g))
	requireTopologicallyValid(t, g)

	t.Run("input gets a quantize+dequantize pair", func(t *testing.T) {
		dq := conv.Inputs()[0].Producer()
		require.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
		q := dq.Inputs()[0].Producer()
		require.Equal(t, graph.OpTypeQuantizeLinear, q.Type())
		assert.Equal(t, g.Variable("input"), q.Inputs()[0])
	})

	t.Run("weight is folded with a single dequantize", func(t *testing.T) {
		weight := g.Variable("weight")
		assert.Equal(t, dtypes.Int8, weight.Value().DType())
		assert.Equal(t, []int8{2, -4, 6, -8, 10, -12}, tensors.CopyFlatData[int8](weight.Value()))

		dq := conv.Inputs()[1].Producer()
		require.NotNil(t, dq)
		assert.Equal(t, graph.OpTypeDequantizeLinear, dq.Type())
		axis, ok := dq.Attr("axis")
		require.True(t, ok)
		assert.Equal(t, int64(0), axis.Int(), "per-channel nodes carry the channel axis")
	})

	t.Run("passive bias is never materialized", func(t *testing.T) {
		bias := g.Variable("bias")
		require.NotNil(t, bias)
		assert.Equal(t, bias, conv.Inputs()[2], "bias edge untouched")
		assert.Equal(t, dtypes.Float32, bias.Value().DType())
	})

	t.Run("export writes a non-empty model file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.onnx")
		g2, conv2 := convGraph(t)
		conv2.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 128), nil, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})
		require.NoError(t, export.New().Export(path, g2))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})
}

// captureBuilder retains the model instead of encoding it.
type captureBuilder struct {
	model *onnx.Model
}

func (b *captureBuilder) Build(model *onnx.Model) ([]byte, error) {
	b.model = model
	return nil, nil
}

func TestSerializeModel(t *testing.T) {
	g, conv := convGraph(t)
	conv.SetConfig(&quant.OperationConfig{
		Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 128), nil, nil},
		Outputs: []*quant.TensorConfig{fp32Config()},
	})
	g.SetProvenance("pytorch")
	g.DeclareOpset("", 11)
	g.DeclareOpset("com.custom", 1)

	capture := &captureBuilder{}
	require.NoError(t, export.New().WithBuilder(capture).Export(filepath.Join(t.TempDir(), "m.onnx"), g))
	model := capture.model
	require.NotNil(t, model)

	assert.EqualValues(t, 7, model.IRVersion)
	require.Len(t, model.Metadata, 1)
	assert.Equal(t, onnx.MetadataProp{Key: "converted_from", Value: "pytorch"}, model.Metadata[0])

	t.Run("opsets never downgrade", func(t *testing.T) {
		assert.Contains(t, model.Opsets, onnx.Opset{Domain: "ai.onnx", Version: 13})
		assert.Contains(t, model.Opsets, onnx.Opset{Domain: "com.custom", Version: 1})
	})

	t.Run("initializers cover every parameter", func(t *testing.T) {
		names := map[string]bool{}
		for _, init := range model.Graph.Initializers {
			names[init.Name] = true
		}
		assert.True(t, names["weight"])
		assert.True(t, names["bias"])
	})

	t.Run("nodes follow topological order", func(t *testing.T) {
		require.Len(t, model.Graph.Nodes, 3)
		assert.Equal(t, "QuantizeLinear", model.Graph.Nodes[0].OpType)
		assert.Equal(t, "DequantizeLinear", model.Graph.Nodes[1].OpType)
		assert.Equal(t, "Conv", model.Graph.Nodes[2].OpType)
	})
}

func TestSerializeUnsupportedOperation(t *testing.T) {
	g := graph.New("bad")
	v := g.CreateVariable("v", shapes.Make(dtypes.Float32, 1))
	g.CreateOperation(graph.OpTypeInvalid, "mystery", nil, []*graph.Variable{v})

	err := export.New().Export(filepath.Join(t.TempDir(), "bad.onnx"), g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
	assert.Contains(t, err.Error(), "cannot be serialized")
}

func TestExportEncodings(t *testing.T) {
	t.Run("records split into activations and parameters", func(t *testing.T) {
		g, conv := convGraph(t)
		biasCfg := activatedSym(0.05)
		biasCfg.State = quant.StatePassive
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 128), activatedSym(0.5), biasCfg},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		path := filepath.Join(t.TempDir(), "encodings.json")
		require.NoError(t, export.New().ExportQuantizationConfig(path, g))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var exports map[string]map[string][]map[string]any
		require.NoError(t, json.Unmarshal(data, &exports))

		activations := exports["activation_encodings"]
		params := exports["param_encodings"]
		require.Contains(t, activations, "input")
		require.Contains(t, params, "weight")
		require.Contains(t, params, "bias", "passive parameter not seen as activation is recorded")
		assert.NotContains(t, activations, "output", "fp32 configs are skipped")

		record := activations["input"][0]
		assert.EqualValues(t, 8, record["bitwidth"])
		assert.InDelta(t, 0.1, record["scale"].(float64), 1e-6)
		assert.InDelta(t, 128, record["offset"].(float64), 1e-9)
		assert.InDelta(t, 12.7, record["max"].(float64), 1e-6)  // 0.1·(255−128)
		assert.InDelta(t, -12.8, record["min"].(float64), 1e-6) // 0.1·(0−128)
	})

	t.Run("internal configs are skipped", func(t *testing.T) {
		g, conv := convGraph(t)
		internal := activatedAsym(0.1, 0)
		internal.Visibility = quant.VisibilityInternal
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{internal, nil, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		path := filepath.Join(t.TempDir(), "encodings.json")
		require.NoError(t, export.New().ExportQuantizationConfig(path, g))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var exports map[string]map[string][]map[string]any
		require.NoError(t, json.Unmarshal(data, &exports))
		assert.Empty(t, exports["activation_encodings"])
	})

	t.Run("uninitialized state aborts", func(t *testing.T) {
		g, conv := convGraph(t)
		bad := activatedAsym(0.1, 0)
		bad.State = quant.StateInitial
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{bad, nil, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		err := export.New().ExportQuantizationConfig(filepath.Join(t.TempDir(), "encodings.json"), g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "uninitialized quantization state")
	})
}

func TestExportReport(t *testing.T) {
	t.Run("conv record", func(t *testing.T) {
		g, conv := convGraph(t)
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 128), nil, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		path := filepath.Join(t.TempDir(), "quant.txt")
		require.NoError(t, export.New().ExportQuantizationConfig(path, g))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		report := string(data)

		assert.Contains(t, report, "record {")
		assert.Contains(t, report, "  key: \"conv\"")
		assert.Contains(t, report, "    scale_d: 0.1")
		assert.Contains(t, report, "    offset_d: 0")
		// One per-kernel scale per output channel: max|w|/127.
		assert.Equal(t, 2, strings.Count(report, "    scale_w:"))
		assert.Equal(t, 2, strings.Count(report, "    offset_w: 0"))
		assert.Contains(t, report, "    channels: 3")
		assert.Contains(t, report, "    height: 4")
		assert.Contains(t, report, "    width: 4")
	})

	t.Run("offset outside the signed window aborts", func(t *testing.T) {
		g, conv := convGraph(t)
		conv.SetConfig(&quant.OperationConfig{
			Inputs:  []*quant.TensorConfig{activatedAsym(0.1, 300), nil, nil},
			Outputs: []*quant.TensorConfig{fp32Config()},
		})

		err := export.New().ExportQuantizationConfig(filepath.Join(t.TempDir(), "quant.txt"), g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[-128, 127]")
	})
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/quant"
	"github.com/gomlx/qdq/pkg/core/shapes"
	"k8s.io/klog/v2"
)

// fltEpsilon delimits the safe window for scale values written to the text
// report: scales outside [fltEpsilon, 1/fltEpsilon] are clamped with a
// warning.
const fltEpsilon = 1.1920929e-7

// reportedOpTypes are the operation types the text report covers.
var reportedOpTypes = map[graph.OpType]bool{
	graph.OpTypeConv:          true,
	graph.OpTypeGemm:          true,
	graph.OpTypeConvTranspose: true,
	graph.OpTypeAveragePool:   true,
}

// buildReport renders the line-oriented quantization report: one
//
//	record {
//	  key: "<operation>"
//	  value { ... }
//	}
//
// block per quantized Conv/Gemm/ConvTranspose/AveragePool operation, in
// topological order. Each block carries the input scale and offset (offset
// shifted to the signed window and range-checked), per-kernel weight scales
// for Conv and a single weight scale for Gemm, and the channel/height/width
// of the operation's input.
func buildReport(g *graph.Graph) []byte {
	var sb strings.Builder
	for _, op := range g.TopologicalSort() {
		if !reportedOpTypes[op.Type()] || op.Config() == nil {
			continue
		}
		inputCfg := op.Config().Inputs[0]
		if inputCfg == nil {
			exceptions.Panicf("cannot report operation %q: its input has no quantization config", op.Name())
		}
		if inputCfg.State != quant.StateActivated || !inputCfg.Policy.Has(quant.PerTensor) {
			exceptions.Panicf("cannot report operation %q: its input quantization must be "+
				"activated and per-tensor, got state %s policy %s", op.Name(), inputCfg.State, inputCfg.Policy)
		}

		scaleD := scalarValue(inputCfg.Scale)
		offsetD := int(math.RoundToEven(scalarValue(inputCfg.Offset))) - 128
		if offsetD > 127 || offsetD < -128 {
			exceptions.Panicf("offset %d of operation %q does not belong to the range [-128, 127]", offsetD, op.Name())
		}

		sb.WriteString("record {\n")
		fmt.Fprintf(&sb, "  key: %q\n", op.Name())
		sb.WriteString("  value {\n")
		fmt.Fprintf(&sb, "    scale_d: %s\n", formatScale(adaptScale(op.Name(), scaleD)))
		fmt.Fprintf(&sb, "    offset_d: %d\n", offsetD)

		switch op.Type() {
		case graph.OpTypeConv:
			for _, scaleW := range kernelScales(op) {
				fmt.Fprintf(&sb, "    scale_w: %s\n", formatScale(adaptScale(op.Name(), scaleW)))
			}
			for range kernelScales(op) {
				sb.WriteString("    offset_w: 0\n")
			}
		case graph.OpTypeGemm:
			weight := firstParameter(op)
			scaleW := maxAbs(weight.Value().Float64s()) / 127.0
			fmt.Fprintf(&sb, "    scale_w: %s\n", formatScale(adaptScale(op.Name(), scaleW)))
			sb.WriteString("    offset_w: 0\n")
		}

		channels, height, width := reportShape(op.Inputs()[0].Shape())
		fmt.Fprintf(&sb, "    channels: %d\n", channels)
		fmt.Fprintf(&sb, "    height: %d\n", height)
		fmt.Fprintf(&sb, "    width: %d\n", width)
		sb.WriteString("  }\n")
		sb.WriteString("}\n")
	}
	return []byte(sb.String())
}

// adaptScale clamps a scale into the representable floating-point window.
// Clamping warns but is not an error.
func adaptScale(opName string, scale float64) float64 {
	switch {
	case scale < fltEpsilon:
		klog.Warningf("%s scale is too small: %v.", opName, scale)
		return fltEpsilon
	case scale > 1.0/fltEpsilon:
		klog.Warningf("%s scale is too large: %v.", opName, scale)
		return 1.0 / fltEpsilon
	}
	return scale
}

// kernelScales computes one symmetric weight scale per output kernel of a
// convolution: max |w| over the kernel slice, divided by 127.
func kernelScales(op *graph.Operation) []float64 {
	weight := firstParameter(op)
	value := weight.Value()
	numKernels := value.Shape().Dim(0)
	kernelSize := value.Size() / numKernels
	flat := value.Float64s()

	scales := make([]float64, numKernels)
	for k := range scales {
		scales[k] = maxAbs(flat[k*kernelSize:(k+1)*kernelSize]) / 127.0
	}
	return scales
}

// reportShape derives (channels, height, width) from an input shape. Only
// rank-2 (batch, channels) and rank-4 (batch, channels, height, width)
// inputs are covered.
func reportShape(shape shapes.Shape) (channels, height, width int) {
	switch shape.Rank() {
	case 2:
		return shape.Dim(1), 1, 1
	case 4:
		return shape.Dim(1), shape.Dim(2), shape.Dim(3)
	}
	exceptions.Panicf("cannot derive report shape from rank-%d input %s", shape.Rank(), shape)
	return
}

func firstParameter(op *graph.Operation) *graph.Variable {
	for _, in := range op.Inputs() {
		if in.IsParameter() {
			return in
		}
	}
	exceptions.Panicf("operation %q has no parameter input", op.Name())
	return nil
}

func maxAbs(values []float64) float64 {
	var m float64
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func formatScale(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

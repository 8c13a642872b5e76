// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

// OpType identifies the kind of computation an Operation performs.
// Its String() form matches the ONNX operator name, which is what gets
// written to the serialized model.
type OpType int

const (
	OpTypeInvalid OpType = iota
	OpTypeConv
	OpTypeConvTranspose
	OpTypeGemm
	OpTypeMatMul
	OpTypeAveragePool
	OpTypeGlobalAveragePool
	OpTypeMaxPool
	OpTypeAdd
	OpTypeMul
	OpTypeRelu
	OpTypeClip
	OpTypeSigmoid
	OpTypeSoftmax
	OpTypeFlatten
	OpTypeReshape
	OpTypeTranspose
	OpTypeConcat
	OpTypeReduceSum
	OpTypeReduceMean
	OpTypeSqueeze
	OpTypeUnsqueeze
	OpTypeSplit
	OpTypeSlice
	OpTypeGather
	OpTypeBatchNormalization
	OpTypeIdentity
	OpTypeConstant
	OpTypeQuantizeLinear
	OpTypeDequantizeLinear
	OpTypeQuantizeFloating
	OpTypeDequantizeFloating
)

// IsQDQ reports whether the op type is one of the quantize/dequantize
// pair operations inserted during export.
func (t OpType) IsQDQ() bool {
	switch t {
	case OpTypeQuantizeLinear, OpTypeDequantizeLinear, OpTypeQuantizeFloating, OpTypeDequantizeFloating:
		return true
	}
	return false
}

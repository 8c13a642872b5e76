// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package onnx holds a minimal in-memory form of an ONNX model and
// serializes it to the standard protobuf wire format. Only the subset of
// the format needed to emit inference graphs is covered: nodes,
// initializers, value infos and scalar/tensor attributes.
package onnx

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Tensor element types, values from TensorProto.DataType.
const (
	DataTypeUndefined int32 = 0
	DataTypeFloat     int32 = 1
	DataTypeUint8     int32 = 2
	DataTypeInt8      int32 = 3
	DataTypeUint16    int32 = 4
	DataTypeInt16     int32 = 5
	DataTypeInt32     int32 = 6
	DataTypeInt64     int32 = 7
	DataTypeBool      int32 = 9
	DataTypeFloat16   int32 = 10
	DataTypeDouble    int32 = 11
	DataTypeUint32    int32 = 12
	DataTypeUint64    int32 = 13
	DataTypeBFloat16  int32 = 16
)

// Attribute value types, values from AttributeProto.AttributeType.
const (
	AttrTypeFloat   int32 = 1
	AttrTypeInt     int32 = 2
	AttrTypeString  int32 = 3
	AttrTypeTensor  int32 = 4
	AttrTypeFloats  int32 = 6
	AttrTypeInts    int32 = 7
	AttrTypeStrings int32 = 8
)

// Model mirrors ModelProto.
type Model struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           *GraphDef
	Opsets          []Opset
	Metadata        []MetadataProp
}

// Opset mirrors OperatorSetIdProto.
type Opset struct {
	Domain  string
	Version int64
}

// MetadataProp mirrors StringStringEntryProto.
type MetadataProp struct {
	Key, Value string
}

// GraphDef mirrors GraphProto.
type GraphDef struct {
	Name         string
	Nodes        []*Node
	Initializers []*Tensor
	DocString    string
	Inputs       []*ValueInfo
	Outputs      []*ValueInfo
	ValueInfos   []*ValueInfo
}

// Node mirrors NodeProto.
type Node struct {
	Name       string
	OpType     string
	Domain     string
	DocString  string
	Inputs     []string
	Outputs    []string
	Attributes []*Attribute
}

// Attribute mirrors AttributeProto, restricted to the singular and
// repeated scalar kinds plus tensors.
type Attribute struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	T       *Tensor
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// Tensor mirrors TensorProto with content always carried as raw_data.
type Tensor struct {
	Name     string
	DataType int32
	Dims     []int64
	RawData  []byte
}

// Dim is one entry of a tensor shape, either a fixed value or a symbolic
// parameter name.
type Dim struct {
	Value int64
	Param string
}

// ValueInfo mirrors ValueInfoProto for tensor-typed values.
type ValueInfo struct {
	Name     string
	ElemType int32
	Dims     []Dim
}

// DataTypeOf maps a dtype to the TensorProto.DataType value. Panics on
// types the format does not represent.
func DataTypeOf(dtype dtypes.DType) int32 {
	switch dtype {
	case dtypes.Float32:
		return DataTypeFloat
	case dtypes.Uint8:
		return DataTypeUint8
	case dtypes.Int8:
		return DataTypeInt8
	case dtypes.Uint16:
		return DataTypeUint16
	case dtypes.Int16:
		return DataTypeInt16
	case dtypes.Int32:
		return DataTypeInt32
	case dtypes.Int64:
		return DataTypeInt64
	case dtypes.Bool:
		return DataTypeBool
	case dtypes.Float16:
		return DataTypeFloat16
	case dtypes.Float64:
		return DataTypeDouble
	case dtypes.Uint32:
		return DataTypeUint32
	case dtypes.Uint64:
		return DataTypeUint64
	case dtypes.BFloat16:
		return DataTypeBFloat16
	}
	exceptions.Panicf("dtype %s has no TensorProto.DataType equivalent", dtype)
	return DataTypeUndefined
}

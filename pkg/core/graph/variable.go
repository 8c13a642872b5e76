// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/qdq/pkg/core/shapes"
	"github.com/gomlx/qdq/pkg/core/tensors"
)

// Variable is an edge of the computation graph: a named tensor flowing
// from at most one producer operation to any number of consumers.
//
// A parameter variable carries a concrete value (weights, biases) and has
// no producer. Graph inputs also have no producer but carry no value.
type Variable struct {
	graph *Graph
	name  string
	shape shapes.Shape

	isParameter bool
	value       *tensors.Tensor

	producer  *Operation
	consumers []*Operation
}

// Name returns the variable's unique name within its graph.
func (v *Variable) Name() string { return v.name }

// Shape returns the declared shape, which may be invalid when unknown.
func (v *Variable) Shape() shapes.Shape { return v.shape }

// SetShape updates the declared shape.
func (v *Variable) SetShape(s shapes.Shape) { v.shape = s }

// IsParameter reports whether the variable holds constant data.
func (v *Variable) IsParameter() bool { return v.isParameter }

// Value returns the constant tensor of a parameter variable, nil otherwise.
func (v *Variable) Value() *tensors.Tensor { return v.value }

// SetValue replaces the constant tensor and marks the variable a parameter.
func (v *Variable) SetValue(t *tensors.Tensor) {
	v.value = t
	v.isParameter = t != nil
	if t != nil {
		v.shape = t.Shape()
	}
}

// Producer returns the operation writing this variable, or nil for graph
// inputs and parameters.
func (v *Variable) Producer() *Operation { return v.producer }

// Consumers returns the operations reading this variable, in the order
// they were linked. The returned slice must not be modified.
func (v *Variable) Consumers() []*Operation { return v.consumers }

// Graph returns the owning graph.
func (v *Variable) Graph() *Graph { return v.graph }

func (v *Variable) String() string {
	return fmt.Sprintf("Variable(%q, %s)", v.name, v.shape)
}

func (v *Variable) removeConsumer(op *Operation) {
	for i, c := range v.consumers {
		if c == op {
			v.consumers = append(v.consumers[:i], v.consumers[i+1:]...)
			return
		}
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph models a neural network as a mutable directed graph of
// operations connected by named variables, supporting the structural
// rewrites needed to export a quantized network: inserting operations on
// edges, removing operations while keeping the graph coherent, and
// deterministic topological ordering.
package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/qdq/pkg/core/shapes"
	"github.com/gomlx/qdq/pkg/core/tensors"
	"github.com/gomlx/qdq/pkg/support/sets"
	"github.com/gomlx/qdq/pkg/support/xslices"
)

// Opset declares the operator-set version a graph relies on for one domain.
// The empty domain is the default ONNX operator set.
type Opset struct {
	Domain  string
	Version int64
}

// Graph is a mutable computation graph. Operations and variables are
// registered under unique names; registration order is preserved and used
// as the tie-breaker for deterministic traversals.
//
// A Graph is not safe for concurrent mutation.
type Graph struct {
	name string

	// provenance names the framework the graph was originally built from
	// ("pytorch", "tensorflow", ...), empty when unknown.
	provenance string

	ops      []*Operation
	opByName map[string]*Operation

	vars      []*Variable
	varByName map[string]*Variable

	inputNames  []string
	outputNames []string

	opsets []Opset

	nextID int
}

// New creates an empty graph with the given name.
func New(name string) *Graph {
	return &Graph{
		name:      name,
		opByName:  make(map[string]*Operation),
		varByName: make(map[string]*Variable),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Provenance returns the source-framework tag, empty when unknown.
func (g *Graph) Provenance() string { return g.provenance }

// SetProvenance records the framework the graph was built from.
func (g *Graph) SetProvenance(p string) { g.provenance = p }

// DeclareOpset records that the graph requires at least the given version
// of the domain's operator set. Declaring a lower version than one already
// recorded is a no-op.
func (g *Graph) DeclareOpset(domain string, version int64) {
	for i, o := range g.opsets {
		if o.Domain == domain {
			if version > o.Version {
				g.opsets[i].Version = version
			}
			return
		}
	}
	g.opsets = append(g.opsets, Opset{Domain: domain, Version: version})
}

// Opsets returns the declared operator sets. Must not be modified.
func (g *Graph) Opsets() []Opset { return g.opsets }

func (g *Graph) genName(prefix string) string {
	for {
		g.nextID++
		name := fmt.Sprintf("%s_%d", prefix, g.nextID)
		if _, taken := g.varByName[name]; taken {
			continue
		}
		if _, taken := g.opByName[name]; taken {
			continue
		}
		return name
	}
}

// CreateVariable registers a new variable. An empty name is replaced by a
// generated unique one; a duplicate name panics.
func (g *Graph) CreateVariable(name string, shape shapes.Shape) *Variable {
	if name == "" {
		name = g.genName("var")
	}
	if _, found := g.varByName[name]; found {
		exceptions.Panicf("graph %q already has variable %q", g.name, name)
	}
	v := &Variable{graph: g, name: name, shape: shape}
	g.vars = append(g.vars, v)
	g.varByName[name] = v
	return v
}

// CreateParameter registers a new parameter variable holding value.
func (g *Graph) CreateParameter(name string, value *tensors.Tensor) *Variable {
	v := g.CreateVariable(name, value.Shape())
	v.SetValue(value)
	return v
}

// CreateOperation registers a new operation consuming inputs and producing
// outputs. Each output must not already have a producer. An empty name is
// replaced by a generated unique one; a duplicate name panics.
func (g *Graph) CreateOperation(opType OpType, name string, inputs, outputs []*Variable) *Operation {
	if name == "" {
		name = g.genName(opType.String())
	}
	if _, found := g.opByName[name]; found {
		exceptions.Panicf("graph %q already has operation %q", g.name, name)
	}
	op := &Operation{
		graph:   g,
		name:    name,
		opType:  opType,
		inputs:  append([]*Variable{}, inputs...),
		outputs: append([]*Variable{}, outputs...),
	}
	for _, in := range op.inputs {
		in.consumers = append(in.consumers, op)
	}
	for _, out := range op.outputs {
		if out.producer != nil {
			exceptions.Panicf("variable %q already produced by %q, cannot also be produced by %q",
				out.name, out.producer.name, name)
		}
		out.producer = op
	}
	g.ops = append(g.ops, op)
	g.opByName[name] = op
	return op
}

// Variable looks a variable up by name, returning nil when absent.
func (g *Graph) Variable(name string) *Variable { return g.varByName[name] }

// Operation looks an operation up by name, returning nil when absent.
func (g *Graph) Operation(name string) *Operation { return g.opByName[name] }

// Variables returns the registered variables in registration order. The
// returned slice is a copy and safe to hold across mutations.
func (g *Graph) Variables() []*Variable {
	return append([]*Variable{}, g.vars...)
}

// Operations returns the registered operations in registration order. The
// returned slice is a copy and safe to hold across mutations.
func (g *Graph) Operations() []*Operation {
	return append([]*Operation{}, g.ops...)
}

// NumOperations returns the number of registered operations.
func (g *Graph) NumOperations() int { return len(g.ops) }

// RegisterInput marks a variable as a graph input.
func (g *Graph) RegisterInput(v *Variable) {
	g.assertOwned(v)
	for _, name := range g.inputNames {
		if name == v.name {
			return
		}
	}
	g.inputNames = append(g.inputNames, v.name)
}

// RegisterOutput marks a variable as a graph output.
func (g *Graph) RegisterOutput(v *Variable) {
	g.assertOwned(v)
	for _, name := range g.outputNames {
		if name == v.name {
			return
		}
	}
	g.outputNames = append(g.outputNames, v.name)
}

// Inputs returns the graph input variables in registration order.
func (g *Graph) Inputs() []*Variable { return g.varsByNames(g.inputNames) }

// Outputs returns the graph output variables in registration order.
func (g *Graph) Outputs() []*Variable { return g.varsByNames(g.outputNames) }

// IsOutput reports whether v is registered as a graph output.
func (g *Graph) IsOutput(v *Variable) bool {
	for _, name := range g.outputNames {
		if name == v.name {
			return true
		}
	}
	return false
}

func (g *Graph) varsByNames(names []string) []*Variable {
	vs := make([]*Variable, 0, len(names))
	for _, name := range names {
		if v := g.varByName[name]; v != nil {
			vs = append(vs, v)
		}
	}
	return vs
}

func (g *Graph) assertOwned(v *Variable) {
	if v.graph != g {
		exceptions.Panicf("variable %q belongs to graph %q, not %q", v.name, v.graph.name, g.name)
	}
}

// LinkInput appends v as an additional input of op.
func (g *Graph) LinkInput(v *Variable, op *Operation) {
	g.assertOwned(v)
	op.inputs = append(op.inputs, v)
	v.consumers = append(v.consumers, op)
}

// rebindOutput replaces old by new in the graph output registry, keeping
// the output position. No-op when old is not an output.
func (g *Graph) rebindOutput(oldVar, newVar *Variable) {
	for i, name := range g.outputNames {
		if name == oldVar.name {
			g.outputNames[i] = newVar.name
			return
		}
	}
}

// InsertOnVariable splices a new single-input single-output operation onto
// v: the operation consumes v and produces a fresh variable that takes
// over all of v's previous consumers and, when v was a graph output, its
// output registration. It returns the created operation and its output
// variable.
func (g *Graph) InsertOnVariable(opType OpType, name string, v *Variable, extraInputs ...*Variable) (*Operation, *Variable) {
	g.assertOwned(v)
	oldConsumers := append([]*Operation{}, v.consumers...)

	out := g.CreateVariable("", v.shape.Clone())
	inputs := append([]*Variable{v}, extraInputs...)
	op := g.CreateOperation(opType, name, inputs, []*Variable{out})
	op.platform = true

	// Move every pre-existing consumer of v over to the new output.
	for _, c := range oldConsumers {
		for i, in := range c.inputs {
			if in == v {
				c.inputs[i] = out
				v.removeConsumer(c)
				out.consumers = append(out.consumers, c)
			}
		}
	}
	g.rebindOutput(v, out)
	return op, out
}

// InsertBetween splices a new operation between v and one specific
// consumer: the operation consumes v and produces a fresh variable wired
// only into downstream's matching input slots. Panics when downstream does
// not consume v.
func (g *Graph) InsertBetween(opType OpType, name string, v *Variable, downstream *Operation, extraInputs ...*Variable) (*Operation, *Variable) {
	g.assertOwned(v)
	if downstream.InputIndex(v) < 0 {
		exceptions.Panicf("operation %q does not consume variable %q", downstream.name, v.name)
	}

	out := g.CreateVariable("", v.shape.Clone())
	inputs := append([]*Variable{v}, extraInputs...)
	op := g.CreateOperation(opType, name, inputs, []*Variable{out})
	op.platform = true

	for i, in := range downstream.inputs {
		if in == v {
			downstream.inputs[i] = out
			v.removeConsumer(downstream)
			out.consumers = append(out.consumers, downstream)
		}
	}
	return op, out
}

// MergeVariables redirects every consumer of down to up and unregisters
// down, keeping the graph coherent when the operation between them is
// elided. When down was a graph output, up inherits the registration.
// Both variables must be producer-free or have distinct producers; down's
// producer link is severed by the caller removing the operation.
func (g *Graph) MergeVariables(up, down *Variable) {
	g.assertOwned(up)
	g.assertOwned(down)
	if up == down {
		return
	}
	for _, c := range append([]*Operation{}, down.consumers...) {
		for i, in := range c.inputs {
			if in == down {
				c.inputs[i] = up
				up.consumers = append(up.consumers, c)
			}
		}
	}
	down.consumers = nil
	g.rebindOutput(down, up)
	g.unregisterVariable(down)
}

// RemoveOperation unregisters op, detaching it from its inputs and
// outputs. Parameter inputs left without any consumer are unregistered as
// well. Output variables of op are left producer-free; callers wanting a
// coherent graph should merge or rewire them first.
func (g *Graph) RemoveOperation(op *Operation) {
	if g.opByName[op.name] != op {
		exceptions.Panicf("operation %q is not registered in graph %q", op.name, g.name)
	}
	for _, in := range op.inputs {
		in.removeConsumer(op)
		if in.isParameter && len(in.consumers) == 0 {
			g.unregisterVariable(in)
		}
	}
	for _, out := range op.outputs {
		if out.producer == op {
			out.producer = nil
		}
	}
	delete(g.opByName, op.name)
	for i, o := range g.ops {
		if o == op {
			g.ops = append(g.ops[:i], g.ops[i+1:]...)
			break
		}
	}
}

// unregisterVariable drops v from the registry. Dangling references from
// operations are the caller's responsibility.
func (g *Graph) unregisterVariable(v *Variable) {
	if g.varByName[v.name] != v {
		return
	}
	delete(g.varByName, v.name)
	for i, x := range g.vars {
		if x == v {
			g.vars = append(g.vars[:i], g.vars[i+1:]...)
			break
		}
	}
}

// TopologicalSort returns the operations ordered so every producer comes
// before its consumers, breaking ties by registration order. Panics when
// the graph has a cycle.
func (g *Graph) TopologicalSort() []*Operation {
	pending := make(map[*Operation]int, len(g.ops))
	var ready []*Operation
	for _, op := range g.ops {
		n := len(op.Upstreams())
		pending[op] = n
		if n == 0 {
			ready = append(ready, op)
		}
	}

	sorted := make([]*Operation, 0, len(g.ops))
	visited := sets.Make[*Operation](len(g.ops))
	for len(ready) > 0 {
		var op *Operation
		ready, op = xslices.Pop(ready, 0)
		if visited.Has(op) {
			continue
		}
		visited.Insert(op)
		sorted = append(sorted, op)
		for _, down := range op.Downstreams() {
			pending[down]--
			if pending[down] == 0 {
				ready = append(ready, down)
			}
		}
	}
	if len(sorted) != len(g.ops) {
		exceptions.Panicf("graph %q has a cycle, topological sort visited %d of %d operations",
			g.name, len(sorted), len(g.ops))
	}
	return sorted
}

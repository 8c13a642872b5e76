// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package export rewrites a quantized computation graph into the explicit
// quantize/dequantize (QDQ) form and serializes it to the ONNX interchange
// format.
//
// The pipeline is a fixed sequence of in-place passes over one graph:
//
//  1. opset upgrade: legacy attribute-encoded axes/split move to constant
//     inputs (opset 13 form);
//  2. node insertion: every exportable tensor config of every quantizable
//     operation is materialized as QuantizeLinear/DequantizeLinear (or the
//     Floating variants) pairs;
//  3. activation removal: Relu/Clip made redundant by asymmetric output
//     quantization are spliced out;
//  4. duplicate-chain collapse: Dequantize→Quantize round-trips with
//     matching parameters are removed.
//
// Passes run strictly one after another and the graph must not be mutated
// concurrently. Structural invariant violations panic inside the passes and
// are converted to errors at the exported API boundary.
package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/onnx"
	"github.com/pkg/errors"
)

// Builder materializes the finalized model into file bytes. It is the one
// external capability the serializer depends on; the default is
// BinaryBuilder, producing the ONNX protobuf wire format.
type Builder interface {
	Build(model *onnx.Model) ([]byte, error)
}

// BinaryBuilder is the default Builder, emitting ONNX protobuf bytes.
type BinaryBuilder struct{}

// Build implements Builder.
func (BinaryBuilder) Build(model *onnx.Model) ([]byte, error) {
	return onnx.Marshal(model), nil
}

// Exporter drives the QDQ export pipeline. The zero value is not usable;
// create one with New and adjust it with the With* options.
type Exporter struct {
	processActivations  bool
	processParameters   bool
	removeActivations   bool
	foldParametersToInt bool

	builder Builder
}

// New returns an Exporter with the default pipeline: activations and
// parameters processed, redundant activations removed and parameter values
// folded to their integer representation.
func New() *Exporter {
	return &Exporter{
		processActivations:  true,
		processParameters:   true,
		removeActivations:   true,
		foldParametersToInt: true,
		builder:             BinaryBuilder{},
	}
}

// WithProcessActivations selects whether runtime (non-parameter) tensors get
// quantize/dequantize pairs inserted. It returns the updated exporter.
func (e *Exporter) WithProcessActivations(enabled bool) *Exporter {
	e.processActivations = enabled
	return e
}

// WithProcessParameters selects whether constant parameters get conversion
// nodes inserted. It returns the updated exporter.
func (e *Exporter) WithProcessParameters(enabled bool) *Exporter {
	e.processParameters = enabled
	return e
}

// WithRemoveActivations selects whether the redundant-activation elision
// pass runs. It returns the updated exporter.
func (e *Exporter) WithRemoveActivations(enabled bool) *Exporter {
	e.removeActivations = enabled
	return e
}

// WithFoldParametersToInt selects between baking quantized parameter values
// in place (a single dequantize node is inserted downstream of the now
// integer constant) and keeping parameters in float with a full
// quantize+dequantize pair. It returns the updated exporter.
func (e *Exporter) WithFoldParametersToInt(enabled bool) *Exporter {
	e.foldParametersToInt = enabled
	return e
}

// WithBuilder replaces the file-bytes builder. It returns the updated
// exporter.
func (e *Exporter) WithBuilder(b Builder) *Exporter {
	e.builder = b
	return e
}

// Prepare runs the rewriting passes on g in place: opset upgrade, node
// insertion, activation removal (if enabled) and duplicate-chain collapse.
// After Prepare the graph is no longer executable by the calibration
// pipeline, only serializable.
func (e *Exporter) Prepare(g *graph.Graph) error {
	err := exceptions.TryCatch[error](func() {
		Upgrade(g)
		for _, op := range g.Operations() {
			e.convertOperation(g, op)
		}
		if e.removeActivations {
			e.elideActivations(g)
		}
		collapseDuplicateChains(g)
	})
	if err != nil {
		return errors.WithMessagef(err, "preparing graph %q for export", g.Name())
	}
	return nil
}

// Export prepares g and writes the serialized model to path. Quantization
// sidecars are written separately with ExportQuantizationConfig.
func (e *Exporter) Export(path string, g *graph.Graph) error {
	if err := e.Prepare(g); err != nil {
		return err
	}
	model, err := e.buildModel(g)
	if err != nil {
		return err
	}
	data, err := e.builder.Build(model)
	if err != nil {
		return errors.WithMessagef(err, "building model file for graph %q", g.Name())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing model to %q", path)
	}
	return nil
}

// ExportQuantizationConfig writes a flattened quantization sidecar for g to
// path. The file extension selects the variant: ".json" emits the encodings
// JSON (activation and parameter records with bit-width, range, offset and
// scale), everything else the text report of per-operation records.
func (e *Exporter) ExportQuantizationConfig(path string, g *graph.Graph) error {
	var data []byte
	err := exceptions.TryCatch[error](func() {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			data = buildEncodings(g)
		} else {
			data = buildReport(g)
		}
	})
	if err != nil {
		return errors.WithMessagef(err, "building quantization config for graph %q", g.Name())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing quantization config to %q", path)
	}
	return nil
}

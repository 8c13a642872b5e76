// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package export

import (
	"math"

	"github.com/goccy/go-json"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/qdq/pkg/core/graph"
	"github.com/gomlx/qdq/pkg/core/quant"
	"github.com/janpfeifer/must"
)

// encoding is one JSON record of the encodings sidecar. Fields come out as
// scalars for per-tensor configs and arrays for per-channel ones.
type encoding struct {
	Bitwidth int        `json:"bitwidth"`
	Max      jsonValues `json:"max"`
	Min      jsonValues `json:"min"`
	Offset   jsonValues `json:"offset"`
	Scale    jsonValues `json:"scale"`
}

// jsonValues marshals as a bare scalar when it holds a single value, as an
// array otherwise.
type jsonValues []float64

func (v jsonValues) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]float64(v))
}

// buildEncodings renders the JSON encodings sidecar: per-variable records
// split into activation and parameter sections, in topological operation
// order.
//
// Every config bound to a quantizable operation must be in a finalized
// state, otherwise the sidecar cannot faithfully describe the graph and the
// export aborts. Internal, FP32 and SOI configs are skipped; a Passive
// config whose variable was already recorded as an activation is skipped
// too (its parameters merely mirror the configs it derives from).
func buildEncodings(g *graph.Graph) []byte {
	activations := map[string][]encoding{}
	parameters := map[string][]encoding{}

	for _, op := range g.TopologicalSort() {
		for _, pair := range op.ConfigWithVariables() {
			cfg, v := pair.Config, pair.Variable
			if cfg == nil {
				continue
			}
			if !cfg.State.Finalized() {
				exceptions.Panicf("cannot export quantization config: operation %q has an "+
					"uninitialized quantization state (%s) at variable %q", op.Name(), cfg.State, v.Name())
			}
			if cfg.Visibility == quant.VisibilityInternal {
				continue
			}
			if cfg.State == quant.StateFP32 || cfg.State == quant.StateSOI {
				continue
			}
			if cfg.State == quant.StatePassive {
				if _, seen := activations[v.Name()]; seen {
					continue
				}
			}

			record := encodingOf(cfg)
			if v.IsParameter() {
				parameters[v.Name()] = []encoding{record}
			} else {
				activations[v.Name()] = []encoding{record}
			}
		}
	}

	exports := map[string]map[string][]encoding{
		"activation_encodings": activations,
		"param_encodings":      parameters,
	}
	return must.M1(json.MarshalIndent(exports, "", "    "))
}

func encodingOf(cfg *quant.TensorConfig) encoding {
	scales := cfg.Scale.Float64s()
	offsets := cfg.Offset.Float64s()

	maxes := make(jsonValues, len(scales))
	mins := make(jsonValues, len(scales))
	roundedOffsets := make(jsonValues, len(offsets))
	for ii, scale := range scales {
		maxes[ii] = scale * (float64(cfg.QuantMax) - offsets[ii])
		mins[ii] = scale * (float64(cfg.QuantMin) - offsets[ii])
		roundedOffsets[ii] = math.RoundToEven(offsets[ii])
	}
	return encoding{
		Bitwidth: cfg.Bits,
		Max:      maxes,
		Min:      mins,
		Offset:   roundedOffsets,
		Scale:    jsonValues(scales),
	}
}

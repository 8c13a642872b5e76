// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quant

//go:generate go tool enumer -type=State -trimprefix=State -output=gen_state_enumer.go state.go

// State is the lifecycle state of a TensorConfig.
//
// Only Activated and Baked configs are independently exportable as quantize/dequantize
// nodes. Baked and PassiveBaked mean the quantization effect was folded into the tensor
// value itself; the insertion engine normalizes them back to Activated/Passive before
// materializing anything, since only the latter two are structurally representable.
type State int

const (
	// StateInitial marks a config that was created but never calibrated.
	StateInitial State = iota

	// StateFP32 marks a tensor deliberately kept in full precision.
	StateFP32

	// StateSOI marks a shape-or-index tensor (axes, split sizes, ...), excluded from
	// quantization by construction.
	StateSOI

	// StateActivated marks a finalized config, ready to be exported.
	StateActivated

	// StateBaked marks a config whose quantization was folded into the tensor value.
	StateBaked

	// StatePassive marks a config whose parameters derive from other configs (e.g. a
	// bias scale equal to input scale times weight scale); it is never independently
	// materialized.
	StatePassive

	// StatePassiveBaked is StatePassive with the effect folded into the value.
	StatePassiveBaked
)

// Finalized reports whether the calibration pipeline settled this state: every state but
// StateInitial is a deliberate decision, including the decision not to quantize.
func (s State) Finalized() bool {
	return s != StateInitial
}

// Exportable reports whether a config in this state can be independently materialized as
// a quantize/dequantize node pair. Passive configs are excluded: their parameters only
// exist relative to the configs they derive from. PassiveBaked is included because the
// baked value itself is already quantized and must be made explicit on export.
func (s State) Exportable() bool {
	return s == StateActivated || s == StateBaked || s == StatePassiveBaked
}

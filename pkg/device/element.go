// Package device holds the per-element companion models: the rule that,
// given previous-step history, turns a reactive or switching element into
// a Norton/Thevenin equivalent stamped into the MNA system each step
// (spec §4.3). It replaces the teacher's pkg/device, which covered a much
// larger SPICE element library (BJT, generic diode, multi-level MOSFET,
// mutual inductance) — trimmed here to the primitive set the solver core
// actually needs: R, L, C, independent sources (DC/PWM), and MOSFET_MCP.
package device

import (
	"github.com/edp1096/pwrtran/pkg/integrator"
	"github.com/edp1096/pwrtran/pkg/mna"
)

// StepContext carries everything a companion model needs to stamp itself
// for the step currently being assembled.
type StepContext struct {
	Time   float64
	H      float64
	Scheme integrator.Scheme
}

// Element is the tagged-variant dispatch surface every circuit component
// implements (design note in spec §9: dispatch table over deep
// inheritance). The assembler never inspects concrete element types.
type Element interface {
	Name() string
	Kind() string

	// Stamp contributes this element's companion model into asm for the
	// step described by ctx.
	Stamp(asm *mna.Assembler, ctx StepContext) error

	// UpdateHistory is called with every trial solution vector x (1-indexed,
	// matching asm's unknown numbering) — after each Newton or MCP pass and
	// before a step's acceptance check — and records it as the element's
	// not-yet-committed value; OnStepCommit then rotates it into history.
	// Together they are the only way history slots are mutated — never by
	// direct field access from the integrator (spec §9).
	UpdateHistory(x []float64)

	// OnStepCommit is called after UpdateHistory when the step is
	// accepted; reactive elements rotate (n-1)<-(n), (n-2)<-(n-1) here.
	OnStepCommit()

	// OnStepReject is called instead of OnStepCommit when a step is
	// rejected; history must be left untouched.
	OnStepReject()
}

// Resolver looks up a node or branch name's unknown index. Elements hold
// onto node/branch *names* at construction and resolve indices once,
// right before the first stamp — this keeps elements from needing a
// back-pointer into the circuit (spec §9's cyclic-coupling note).
type Resolver interface {
	NodeIndex(name string) int
	BranchIndex(name string) int
}

package device

import "github.com/edp1096/pwrtran/pkg/mna"

// SwitchMode is a MOSFET_MCP element's current complementarity state: "on"
// pins v_ds at Ron*i_ds (conducting), "off" pins i_ds at (near) zero. The
// kernel in pkg/mcp flips this between assemble/solve passes until the
// complementarity condition holds (spec §4.4).
type SwitchMode int

const (
	SwitchOff SwitchMode = iota
	SwitchOn
)

// MOSFET is the ideal switch-plus-gate-threshold element of spec §4.3/§9:
// replaces the teacher's mosfet.go (a full BSIM Level 1-3 model, ~740
// lines, far beyond this solver's primitive-element scope) with the two
// variants the spec actually calls for. Which variant an instance uses is
// fixed at construction — never inferred from parameters — per the design
// note in spec §9.
type MOSFET struct {
	name           string
	drain, source  string
	gate           string
	nd, ns, ng     int
	vth            float64
	ron            float64
	smoothed       bool
	beta           float64
	vt             float64
	dampConductance float64

	mode    SwitchMode
	lastVDS float64
	lastVGS float64
}

// NewIdealMOSFET builds a MOSFET_MCP switch: Vth is the gate-source
// threshold, ronOhms the on-state drain-source resistance. Driven by the
// MCP kernel's predict/assemble/solve/flip loop, not Newton iteration.
func NewIdealMOSFET(name, drain, gate, source string, vth, ronOhms float64) *MOSFET {
	return &MOSFET{name: name, drain: drain, gate: gate, source: source, vth: vth, ron: ronOhms, mode: SwitchOff}
}

// NewSmoothedMOSFET builds the smoothed quadratic-law variant of spec §9's
// open design question: a continuous approximation driven by
// ordinary Newton iteration rather than the MCP kernel, with transconductance
// scale beta and threshold vt.
func NewSmoothedMOSFET(name, drain, gate, source string, beta, vt float64) *MOSFET {
	return &MOSFET{name: name, drain: drain, gate: gate, source: source, smoothed: true, beta: beta, vt: vt, mode: SwitchOn}
}

func (m *MOSFET) Name() string { return m.name }
func (m *MOSFET) Kind() string { return "M" }

// Smoothed reports whether this instance uses the quadratic-law smoothed
// variant rather than the MCP switch variant.
func (m *MOSFET) Smoothed() bool { return m.smoothed }

// Bind resolves node names to indices.
func (m *MOSFET) Bind(res Resolver) {
	m.nd, m.ng, m.ns = res.NodeIndex(m.drain), res.NodeIndex(m.gate), res.NodeIndex(m.source)
}

// Mode reports the current MCP switch state (undefined for the smoothed
// variant, which has no discrete mode).
func (m *MOSFET) Mode() SwitchMode { return m.mode }

// SetMode is called by the MCP kernel between flip attempts.
func (m *MOSFET) SetMode(mode SwitchMode) { m.mode = mode }

// SetDampingConductance is called by the MCP kernel during flip-cycle
// damping (spec §4.4 step 5): it adds a small parallel conductance across
// drain-source on top of whichever branch equation the current mode
// stamps, and is reset to zero by OnStepCommit when the step is committed.
func (m *MOSFET) SetDampingConductance(g float64) { m.dampConductance = g }

// PredictMode returns the mode the MCP kernel seeds a switch with the first
// time it sees it, when there is no prior step to carry forward from: on
// if the last measured gate-source voltage cleared Vth, off otherwise.
func (m *MOSFET) PredictMode() SwitchMode {
	if m.lastVGS >= m.vth {
		return SwitchOn
	}
	return SwitchOff
}

// GateVoltage returns the last solved gate-source voltage, used by the MCP
// kernel to force a switch's branch outside the hysteresis band (spec §4.3:
// v_gs<Vth forces blocking, v_gs>Vth·(1+margin) forces conducting).
func (m *MOSFET) GateVoltage() float64 { return m.lastVGS }

// Threshold returns the gate-source threshold voltage this switch was built
// with (undefined for the smoothed variant, which uses Vt/smoothedCompanion
// instead).
func (m *MOSFET) Threshold() float64 { return m.vth }

// VoltageDS and CurrentDS report the last solved drain-source quantities,
// used by the MCP kernel's feasibility check (spec §4.4): "on" requires
// i_ds >= -epsilon_I, "off" requires v_ds <= +epsilon_V.
func (m *MOSFET) VoltageDS() float64 { return m.lastVDS }

func (m *MOSFET) CurrentDS() float64 {
	switch m.mode {
	case SwitchOn:
		return m.lastVDS / m.ron
	default:
		return m.lastVDS * 1e-12
	}
}

// Stamp contributes this MOSFET's companion model. The ideal variant
// stamps according to the currently assigned SwitchMode; the smoothed
// variant stamps its quadratic-law VCCS companion model directly,
// independent of mode.
func (m *MOSFET) Stamp(asm *mna.Assembler, ctx StepContext) error {
	if m.smoothed {
		return m.stampSmoothed(asm)
	}
	return m.stampIdeal(asm)
}

func (m *MOSFET) stampIdeal(asm *mna.Assembler) error {
	switch m.mode {
	case SwitchOn:
		// v_ds = Ron * i_ds, modeled as a small resistor across d-s.
		asm.StampConductance(m.nd, m.ns, 1.0/m.ron)
	case SwitchOff:
		// i_ds ~= 0: a very small leakage conductance keeps the matrix
		// nonsingular when the switch disconnects a previously active path.
		asm.StampConductance(m.nd, m.ns, 1e-12)
	}
	if m.dampConductance > 0 {
		asm.AddDampingConductance(m.nd, m.ns, m.dampConductance)
	}
	return nil
}

// smoothedGmin is the drain-source leakage conductance added to the smoothed
// device's linearization so the matrix never sees an exact zero row when
// i_ds has no v_ds dependence (mirrors the teacher's calculateConductances
// gmin floor in mosfet.go).
const smoothedGmin = 1e-12

// stampSmoothed linearizes i_ds = max(0, beta*(vgs-vt)^2)*sign(vds) (spec
// §4.3/§9's smoothed variant) about the last solved operating point into a
// gate-controlled VCCS companion model, the same gm/gds/Ieq stamping
// pattern the teacher's mosfet.go Stamp method used around its BSIM
// Id(vgs,vds) curves, reduced here to two terminals of control (gate, and
// the sign of v_ds) since this variant carries no body terminal.
func (m *MOSFET) stampSmoothed(asm *mna.Assembler) error {
	vgs, vds := m.lastVGS, m.lastVDS
	ids, gm, gds := m.smoothedCompanion(vgs, vds)

	// VCCS stamp: output current ids flows drain->source, controlled by
	// vgs (transconductance gm) and, through the regularizing gmin, by vds
	// itself. Ieq is the linearization correction so the companion model
	// reproduces ids exactly at (vgs, vds) on the next Newton pass.
	ieq := ids - gm*vgs - gds*vds

	asm.StampTerm(m.nd, m.ng, gm)
	asm.StampTerm(m.nd, m.nd, gds)
	asm.StampTerm(m.nd, m.ns, -gm-gds)
	asm.StampTerm(m.ns, m.ng, -gm)
	asm.StampTerm(m.ns, m.ns, gm+gds)
	asm.StampTerm(m.ns, m.nd, -gds)
	asm.StampCurrent(m.nd, m.ns, -ieq)
	return nil
}

// smoothedCompanion returns (ids, gm, gds) for the quadratic-law smoothed
// switch at operating point (vgs, vds): ids = beta*(vgs-vt)^2*sign(vds)
// for vgs>vt, else (near) zero, with gmin always added to gds so the
// device never presents an exactly singular row once vgs<=vt disconnects
// it entirely.
func (m *MOSFET) smoothedCompanion(vgs, vds float64) (ids, gm, gds float64) {
	sign := 1.0
	if vds < 0 {
		sign = -1.0
	}
	over := vgs - m.vt
	if over <= 0 {
		return 0, smoothedGmin, smoothedGmin
	}
	ids = m.beta * over * over * sign
	gm = 2 * m.beta * over * sign
	gds = smoothedGmin
	return ids, gm, gds
}

func (m *MOSFET) UpdateHistory(x []float64) {
	vd, vs, vg := 0.0, 0.0, 0.0
	if m.nd != 0 {
		vd = x[m.nd]
	}
	if m.ns != 0 {
		vs = x[m.ns]
	}
	if m.ng != 0 {
		vg = x[m.ng]
	}
	m.lastVDS = vd - vs
	m.lastVGS = vg - vs
}

func (m *MOSFET) OnStepCommit() { m.dampConductance = 0 }
func (m *MOSFET) OnStepReject() {}

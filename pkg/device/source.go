package device

import (
	"math"

	"github.com/edp1096/pwrtran/pkg/mna"
)

// Waveform selects how an independent source's value varies with time.
// Adapted from the teacher's pkg/device/vsource.go and isource.go, which
// also offered SIN/PWL/AC forms; those are dropped here (no AC analysis,
// no PWL fixture in this solver's scope) and PULSE — stubbed in the
// teacher's VoltageSource.getPulseVoltage ("나중에", i.e. "later", returning
// a constant v1) — is completed below using the full ramp/width/period
// shape the teacher's CurrentSource.getPulseCurrent already had.
type Waveform int

const (
	DC Waveform = iota
	PULSE
)

// PulseParams describes a trapezoidal PWM-style waveform: value1 until
// delay, ramp to value2 over rise, hold value2 for width, ramp back to
// value1 over fall, then repeat every period (period<=0 means one-shot).
type PulseParams struct {
	Value1, Value2 float64
	Delay          float64
	Rise, Fall     float64
	Width          float64
	Period         float64
}

func pulseValue(p PulseParams, t float64) float64 {
	if t < p.Delay {
		return p.Value1
	}
	t -= p.Delay
	if p.Period > 0 {
		t = math.Mod(t, p.Period)
	}
	if t < p.Rise {
		if p.Rise == 0 {
			return p.Value2
		}
		return p.Value1 + (p.Value2-p.Value1)*t/p.Rise
	}
	if t < p.Rise+p.Width {
		return p.Value2
	}
	fallStart := p.Rise + p.Width
	if t < fallStart+p.Fall {
		if p.Fall == 0 {
			return p.Value1
		}
		return p.Value2 - (p.Value2-p.Value1)*(t-fallStart)/p.Fall
	}
	return p.Value1
}

// nextEdge returns the earliest corner time strictly after t — a point
// where the waveform's slope changes (rise start, plateau start, fall
// start, fall end, and for a periodic pulse the next cycle's rise start) —
// or math.Inf(1) once no further corner exists (a
// one-shot pulse that has already completed). The integrator uses this to
// shorten a step so it lands exactly on a source discontinuity (spec
// §4.5's event-aligned stepping).
func (p PulseParams) nextEdge(t float64) float64 {
	corners := []float64{p.Delay, p.Delay + p.Rise, p.Delay + p.Rise + p.Width, p.Delay + p.Rise + p.Width + p.Fall}
	if p.Period > 0 {
		base := p.Delay
		if t > base {
			cycles := math.Floor((t - base) / p.Period)
			base += cycles * p.Period
		}
		best := math.Inf(1)
		for cycle := 0; cycle < 2; cycle++ {
			offset := base + float64(cycle)*p.Period
			for _, c := range corners {
				corner := offset + (c - p.Delay)
				if corner > t && corner < best {
					best = corner
				}
			}
		}
		return best
	}
	best := math.Inf(1)
	for _, c := range corners {
		if c > t && c < best {
			best = c
		}
	}
	return best
}

// VoltageSource is an ideal branch-current-unknown voltage source, DC or
// PULSE, stamped the same ±1-incidence way as the teacher's
// VoltageSource.Stamp (non-AC branch).
type VoltageSource struct {
	name      string
	n1, n2    string
	ni, nj    int
	branch    string
	branchIdx int

	waveform Waveform
	dc       float64
	pulse    PulseParams
}

// NewDCVoltageSource builds a constant voltage source of volts V between n1
// (+) and n2 (-).
func NewDCVoltageSource(name, n1, n2 string, volts float64) *VoltageSource {
	return &VoltageSource{name: name, n1: n1, n2: n2, waveform: DC, dc: volts}
}

// NewPulseVoltageSource builds a PWM-style gate-drive source per p.
func NewPulseVoltageSource(name, n1, n2 string, p PulseParams) *VoltageSource {
	return &VoltageSource{name: name, n1: n1, n2: n2, waveform: PULSE, pulse: p}
}

func (v *VoltageSource) Name() string { return v.name }
func (v *VoltageSource) Kind() string { return "V" }

// BranchName returns the auxiliary-current unknown name this source
// registers with the circuit.
func (v *VoltageSource) BranchName() string { return v.branch }

// Bind resolves node and branch names to indices.
func (v *VoltageSource) Bind(res Resolver, branchName string) {
	v.ni, v.nj = res.NodeIndex(v.n1), res.NodeIndex(v.n2)
	v.branch = branchName
	v.branchIdx = res.BranchIndex(branchName)
}

// Value returns this source's value at time t.
func (v *VoltageSource) Value(t float64) float64 {
	switch v.waveform {
	case PULSE:
		return pulseValue(v.pulse, t)
	default:
		return v.dc
	}
}

func (v *VoltageSource) Stamp(asm *mna.Assembler, ctx StepContext) error {
	asm.StampVoltageBranch(v.branchIdx, v.ni, v.nj, v.Value(ctx.Time))
	return nil
}

// NextEdge returns the next waveform discontinuity strictly after t, or
// +Inf for a DC source.
func (v *VoltageSource) NextEdge(t float64) float64 {
	if v.waveform != PULSE {
		return math.Inf(1)
	}
	return v.pulse.nextEdge(t)
}

func (v *VoltageSource) UpdateHistory([]float64) {}
func (v *VoltageSource) OnStepCommit()            {}
func (v *VoltageSource) OnStepReject()            {}

// CurrentSource is an ideal current source, DC or PULSE, injected directly
// into the RHS — no auxiliary unknown needed (teacher's isource.go,
// non-AC branch).
type CurrentSource struct {
	name     string
	n1, n2   string
	ni, nj   int
	waveform Waveform
	dc       float64
	pulse    PulseParams
}

// NewDCCurrentSource builds a constant current source of amps A flowing
// from n2 into n1.
func NewDCCurrentSource(name, n1, n2 string, amps float64) *CurrentSource {
	return &CurrentSource{name: name, n1: n1, n2: n2, waveform: DC, dc: amps}
}

// NewPulseCurrentSource builds a PWM-style current source per p.
func NewPulseCurrentSource(name, n1, n2 string, p PulseParams) *CurrentSource {
	return &CurrentSource{name: name, n1: n1, n2: n2, waveform: PULSE, pulse: p}
}

func (i *CurrentSource) Name() string { return i.name }
func (i *CurrentSource) Kind() string { return "I" }

func (i *CurrentSource) Bind(res Resolver) {
	i.ni, i.nj = res.NodeIndex(i.n1), res.NodeIndex(i.n2)
}

func (i *CurrentSource) Value(t float64) float64 {
	switch i.waveform {
	case PULSE:
		return pulseValue(i.pulse, t)
	default:
		return i.dc
	}
}

func (i *CurrentSource) Stamp(asm *mna.Assembler, ctx StepContext) error {
	asm.StampCurrent(i.ni, i.nj, i.Value(ctx.Time))
	return nil
}

// NextEdge returns the next waveform discontinuity strictly after t, or
// +Inf for a DC source.
func (i *CurrentSource) NextEdge(t float64) float64 {
	if i.waveform != PULSE {
		return math.Inf(1)
	}
	return i.pulse.nextEdge(t)
}

func (i *CurrentSource) UpdateHistory([]float64) {}
func (i *CurrentSource) OnStepCommit()            {}
func (i *CurrentSource) OnStepReject()            {}

package device

import "github.com/edp1096/pwrtran/pkg/mna"

// Resistor is a time-invariant conductance stamp; adapted from the
// teacher's pkg/device/resistor.go with the temperature-coefficient
// machinery dropped (no temperature sweep in this solver's scope) and the
// AC branch removed (AC analysis is a non-goal).
type Resistor struct {
	name   string
	n1, n2 string
	ni, nj int
	ohms   float64
}

// NewResistor builds a resistor of ohms Ω between nodes n1 and n2.
func NewResistor(name, n1, n2 string, ohms float64) *Resistor {
	return &Resistor{name: name, n1: n1, n2: n2, ohms: ohms}
}

func (r *Resistor) Name() string { return r.name }
func (r *Resistor) Kind() string { return "R" }

// Bind resolves node names to indices via res. Circuit construction calls
// this once after the assembler exists.
func (r *Resistor) Bind(res Resolver) {
	r.ni, r.nj = res.NodeIndex(r.n1), res.NodeIndex(r.n2)
}

func (r *Resistor) Stamp(asm *mna.Assembler, _ StepContext) error {
	asm.StampConductance(r.ni, r.nj, 1.0/r.ohms)
	return nil
}

func (r *Resistor) UpdateHistory([]float64) {}
func (r *Resistor) OnStepCommit()            {}
func (r *Resistor) OnStepReject()            {}

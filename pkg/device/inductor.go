package device

import (
	"github.com/edp1096/pwrtran/pkg/integrator"
	"github.com/edp1096/pwrtran/pkg/mna"
)

// Inductor is a branch-current-unknown reactive element stamped via the
// implicit BE/BDF2 companion model of spec §4.3. Adapted from the
// teacher's pkg/device/inductor.go, which stamped the same ±1 branch
// incidence but (a) only ever used BDF order 1 regardless of the caller's
// intent and (b) dropped the second history term from the RHS entirely —
// both fixed here since BDF2's "0.5·i[n-2]" term is load-bearing for
// second-order accuracy.
type Inductor struct {
	name      string
	n1, n2    string
	ni, nj    int
	branch    string
	branchIdx int
	henries   float64

	current0, current1, current2 float64 // i[n], i[n-1], i[n-2]
	ic                            float64 // user initial condition
}

// NewInductor builds an inductor of henries H between nodes n1 and n2,
// with initial current ic (A) at t=0.
func NewInductor(name, n1, n2 string, henries, ic float64) *Inductor {
	return &Inductor{name: name, n1: n1, n2: n2, henries: henries, ic: ic, current0: ic, current1: ic, current2: ic}
}

func (l *Inductor) Name() string { return l.name }
func (l *Inductor) Kind() string { return "L" }

// BranchName returns the auxiliary-current unknown name this inductor
// registers with the circuit (used the same way a voltage source's branch
// is registered, per spec §3's "M branches" definition).
func (l *Inductor) BranchName() string { return l.branch }

// Bind resolves node and branch names to indices.
func (l *Inductor) Bind(res Resolver, branchName string) {
	l.ni, l.nj = res.NodeIndex(l.n1), res.NodeIndex(l.n2)
	l.branch = branchName
	l.branchIdx = res.BranchIndex(branchName)
}

func (l *Inductor) Stamp(asm *mna.Assembler, ctx StepContext) error {
	order := ctx.Scheme.Order()
	coeffs := integrator.Coeffs(order, ctx.H)

	// Same accumulation pattern as Capacitor.Stamp's histTerm: sum
	// coeffs[k]*hist[k-1] (coeffs[k] already carries the BDF's sign), then
	// scale once by the element value so the branch row reads
	// v_ni - v_nj - (Lalpha/h)*i_n = -(L/h)*(history terms), i.e.
	// v_L = (L/h)*(i_n - i_{n-1}) for BE.
	hist := [2]float64{l.current1, l.current2}
	rhs := 0.0
	for k := 1; k <= order; k++ {
		rhs += coeffs[k] * hist[k-1]
	}
	rhs *= l.henries

	k := l.branchIdx
	// Current i_k flows from n1 through the inductor into n2.
	asm.StampBranchIncidence(k, l.ni, l.nj)
	asm.StampBranchConductance(k, -coeffs[0]*l.henries, rhs)
	return nil
}

func (l *Inductor) UpdateHistory(x []float64) {
	l.current0 = x[l.branchIdx]
}

func (l *Inductor) OnStepCommit() {
	l.current2 = l.current1
	l.current1 = l.current0
}

func (l *Inductor) OnStepReject() {}

// Current returns the most recently committed inductor current (A).
func (l *Inductor) Current() float64 { return l.current1 }

// TrialCurrent returns the not-yet-committed current from the most recent
// UpdateHistory call, for the integrator's physically-impossible-update
// check (spec §4.5) to compare against Current() before OnStepCommit
// rotates history.
func (l *Inductor) TrialCurrent() float64 { return l.current0 }

// PreviousCurrent returns i[n-2], the slot before Current().
func (l *Inductor) PreviousCurrent() float64 { return l.current2 }

// Henries returns this inductor's inductance (H).
func (l *Inductor) Henries() float64 { return l.henries }

// TerminalVoltage returns v_ni - v_nj from a solved unknown vector x (ground
// reads as 0 since x[0] is solve's unused filler slot), i.e. the
// instantaneous voltage driving this inductor's current — used by the
// integrator's physically-impossible-update check to scale its bound to the
// step actually taken rather than a fixed constant.
func (l *Inductor) TerminalVoltage(x []float64) float64 { return x[l.ni] - x[l.nj] }

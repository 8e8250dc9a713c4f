package device

import (
	"github.com/edp1096/pwrtran/pkg/integrator"
	"github.com/edp1096/pwrtran/pkg/mna"
)

// Capacitor is a node-voltage companion model stamped via the same BE/BDF2
// rule as Inductor, generalized from the teacher's pkg/device/capacitor.go
// (which only ever used a fixed BE geq=C/dt and dropped the AC/OP branches,
// both non-goals here). Unlike the inductor, a capacitor needs no auxiliary
// branch current — it stamps directly into the two node rows.
type Capacitor struct {
	name   string
	n1, n2 string
	ni, nj int
	farads float64

	vdiff0, vdiff1, vdiff2 float64 // v1-v2 at n, n-1, n-2
	ic                     float64 // user initial condition (volts)
}

// NewCapacitor builds a capacitor of farads F between nodes n1 and n2, with
// initial voltage ic (V) at t=0.
func NewCapacitor(name, n1, n2 string, farads, ic float64) *Capacitor {
	return &Capacitor{name: name, n1: n1, n2: n2, farads: farads, ic: ic, vdiff0: ic, vdiff1: ic, vdiff2: ic}
}

func (c *Capacitor) Name() string { return c.name }
func (c *Capacitor) Kind() string { return "C" }

// Bind resolves node names to indices via res.
func (c *Capacitor) Bind(res Resolver) {
	c.ni, c.nj = res.NodeIndex(c.n1), res.NodeIndex(c.n2)
}

func (c *Capacitor) Stamp(asm *mna.Assembler, ctx StepContext) error {
	order := ctx.Scheme.Order()
	coeffs := integrator.Coeffs(order, ctx.H)

	hist := [2]float64{c.vdiff1, c.vdiff2}
	histTerm := 0.0
	for k := 1; k <= order; k++ {
		histTerm += coeffs[k] * hist[k-1]
	}

	geq := c.farads * coeffs[0]
	ceq := -c.farads * histTerm

	asm.StampConductance(c.ni, c.nj, geq)
	asm.StampCurrent(c.ni, c.nj, ceq)
	return nil
}

func (c *Capacitor) UpdateHistory(x []float64) {
	v1, v2 := 0.0, 0.0
	if c.ni != 0 {
		v1 = x[c.ni]
	}
	if c.nj != 0 {
		v2 = x[c.nj]
	}
	c.vdiff0 = v1 - v2
}

func (c *Capacitor) OnStepCommit() {
	c.vdiff2 = c.vdiff1
	c.vdiff1 = c.vdiff0
}

func (c *Capacitor) OnStepReject() {}

// Voltage returns the most recently committed capacitor voltage (V).
func (c *Capacitor) Voltage() float64 { return c.vdiff1 }

// Package circuit is the typed construction API: build a network out of
// R/L/C/V/I/MOSFET_MCP elements, then Build() it into a bound
// pkg/mna.Assembler ready for the integrator. It replaces the teacher's
// pkg/circuit/circuit.go, which built its node/branch maps from parsed
// netlist.Element structs and routed every stamp through pkg/matrix's
// DeviceMatrix; here a caller can construct a circuit directly in Go (the
// netlist frontend in pkg/netlist is a thin adapter on top of the same
// Add* calls, not a separate code path).
package circuit

import (
	"math"

	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/mna"
	"github.com/edp1096/pwrtran/pkg/solverr"
)

// Circuit accumulates elements and, once Build is called, an Assembler
// bound to every element's node/branch names.
type Circuit struct {
	name string

	elements []device.Element
	mosfets  []*device.MOSFET
	edged    []edgeSource

	nodeOrder   []string
	nodeSeen    map[string]bool
	branchOrder []string

	// pendingBind holds resolver binds deferred until Build assigns
	// indices: inductors and voltage sources need their branch name
	// registered before the assembler exists, but can only Bind against it
	// afterward.
	pendingBind []func(device.Resolver)

	asm   *mna.Assembler
	built bool
}

type edgeSource interface {
	NextEdge(t float64) float64
}

// New builds an empty circuit named name.
func New(name string) *Circuit {
	return &Circuit{name: name, nodeSeen: make(map[string]bool)}
}

func (c *Circuit) touchNode(n string) {
	if !c.nodeSeen[n] {
		c.nodeSeen[n] = true
		c.nodeOrder = append(c.nodeOrder, n)
	}
}

func (c *Circuit) newBranch(name string) string {
	branch := "I(" + name + ")"
	c.branchOrder = append(c.branchOrder, branch)
	return branch
}

// AddResistor adds a resistor of ohms Ω between n1 and n2.
func (c *Circuit) AddResistor(name, n1, n2 string, ohms float64) *device.Resistor {
	c.touchNode(n1)
	c.touchNode(n2)
	r := device.NewResistor(name, n1, n2, ohms)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { r.Bind(res) })
	c.elements = append(c.elements, r)
	return r
}

// AddInductor adds an inductor of henries H between n1 and n2 with initial
// current ic (A).
func (c *Circuit) AddInductor(name, n1, n2 string, henries, ic float64) *device.Inductor {
	c.touchNode(n1)
	c.touchNode(n2)
	branch := c.newBranch(name)
	l := device.NewInductor(name, n1, n2, henries, ic)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { l.Bind(res, branch) })
	c.elements = append(c.elements, l)
	return l
}

// AddCapacitor adds a capacitor of farads F between n1 and n2 with initial
// voltage ic (V).
func (c *Circuit) AddCapacitor(name, n1, n2 string, farads, ic float64) *device.Capacitor {
	c.touchNode(n1)
	c.touchNode(n2)
	cp := device.NewCapacitor(name, n1, n2, farads, ic)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { cp.Bind(res) })
	c.elements = append(c.elements, cp)
	return cp
}

// AddDCVoltageSource adds a constant voltage source of volts V between n1
// (+) and n2 (-).
func (c *Circuit) AddDCVoltageSource(name, n1, n2 string, volts float64) *device.VoltageSource {
	c.touchNode(n1)
	c.touchNode(n2)
	branch := c.newBranch(name)
	v := device.NewDCVoltageSource(name, n1, n2, volts)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { v.Bind(res, branch) })
	c.elements = append(c.elements, v)
	c.edged = append(c.edged, v)
	return v
}

// AddPulseVoltageSource adds a PWM-style voltage source per p.
func (c *Circuit) AddPulseVoltageSource(name, n1, n2 string, p device.PulseParams) *device.VoltageSource {
	c.touchNode(n1)
	c.touchNode(n2)
	branch := c.newBranch(name)
	v := device.NewPulseVoltageSource(name, n1, n2, p)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { v.Bind(res, branch) })
	c.elements = append(c.elements, v)
	c.edged = append(c.edged, v)
	return v
}

// AddDCCurrentSource adds a constant current source of amps A flowing from
// n2 into n1.
func (c *Circuit) AddDCCurrentSource(name, n1, n2 string, amps float64) *device.CurrentSource {
	c.touchNode(n1)
	c.touchNode(n2)
	i := device.NewDCCurrentSource(name, n1, n2, amps)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { i.Bind(res) })
	c.elements = append(c.elements, i)
	c.edged = append(c.edged, i)
	return i
}

// AddPulseCurrentSource adds a PWM-style current source per p.
func (c *Circuit) AddPulseCurrentSource(name, n1, n2 string, p device.PulseParams) *device.CurrentSource {
	c.touchNode(n1)
	c.touchNode(n2)
	i := device.NewPulseCurrentSource(name, n1, n2, p)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { i.Bind(res) })
	c.elements = append(c.elements, i)
	c.edged = append(c.edged, i)
	return i
}

// AddIdealMOSFET adds an MCP-kernel-driven switch between drain, gate and
// source.
func (c *Circuit) AddIdealMOSFET(name, drain, gate, source string, vth, ronOhms float64) *device.MOSFET {
	c.touchNode(drain)
	c.touchNode(gate)
	c.touchNode(source)
	m := device.NewIdealMOSFET(name, drain, gate, source, vth, ronOhms)
	c.elements = append(c.elements, m)
	c.mosfets = append(c.mosfets, m)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { m.Bind(res) })
	return m
}

// AddSmoothedMOSFET adds a quadratic-law smoothed switch solved by ordinary
// Newton iteration rather than the MCP kernel.
func (c *Circuit) AddSmoothedMOSFET(name, drain, gate, source string, beta, vt float64) *device.MOSFET {
	c.touchNode(drain)
	c.touchNode(gate)
	c.touchNode(source)
	m := device.NewSmoothedMOSFET(name, drain, gate, source, beta, vt)
	c.elements = append(c.elements, m)
	c.pendingBind = append(c.pendingBind, func(res device.Resolver) { m.Bind(res) })
	return m
}

// Build finalizes node/branch numbering, constructs the bound Assembler,
// and binds every element to it. Call it after every Add* call; once it has
// run, later calls return nil without rebuilding anything.
//
// Floating-node / unreachable-ground detection (spec §7's MalformedCircuit)
// is structural, not time-dependent, so Build runs one throwaway stamp pass
// here (h=1, the Scheme zero value, which is BackwardEuler) purely to
// populate the assembler's touched-row bookkeeping, then discards it — a
// caller never sees this trial system.
func (c *Circuit) Build() error {
	if c.built {
		return nil
	}
	c.asm = mna.NewAssembler(c.nodeOrder, c.branchOrder)
	for _, bind := range c.pendingBind {
		bind(c.asm)
	}
	c.built = true

	ctx := device.StepContext{Time: 0, H: 1}
	for _, el := range c.elements {
		if err := el.Stamp(c.asm, ctx); err != nil {
			return err
		}
	}
	missing := c.asm.Validate()
	c.asm.Reset()
	if len(missing) > 0 {
		return solverr.ErrMalformedCircuit
	}
	return nil
}

// Elements returns every element in insertion order.
func (c *Circuit) Elements() []device.Element { return c.elements }

// Switches returns every ideal (MCP-kernel-driven) MOSFET_MCP element.
func (c *Circuit) Switches() []*device.MOSFET { return c.mosfets }

// Assembler returns the bound assembler (nil before Build).
func (c *Circuit) Assembler() *mna.Assembler { return c.asm }

// NextEventAfter returns the earliest scheduled source edge strictly after
// t across every PWM element, or +Inf if none remain.
func (c *Circuit) NextEventAfter(t float64) float64 {
	best := math.Inf(1)
	for _, e := range c.edged {
		if edge := e.NextEdge(t); edge < best {
			best = edge
		}
	}
	return best
}

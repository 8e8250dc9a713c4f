package integrator

import (
	"math"

	"github.com/edp1096/pwrtran/pkg/circuit"
	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/diagnostics"
	"github.com/edp1096/pwrtran/pkg/mcp"
	"github.com/edp1096/pwrtran/pkg/mna"
	"github.com/edp1096/pwrtran/pkg/solverr"
)

// State is one of the time integrator's lifecycle states (spec §4.5).
type State int

const (
	Uninitialized State = iota
	Running
	StepRejected
	Diverged
	Done
)

// nonlinearIterations bounds the Newton loop run when a circuit contains a
// smoothed MOSFET_MCP (spec §9's degenerate-stamp treatment) — grounded on
// the teacher's pkg/analysis/tran.go doNRiter, which ran the same
// fixed-iteration-count inner loop around a relative/absolute convergence
// check instead of the MCP kernel's discrete flip search.
const nonlinearIterations = 50
const nonlinearRelTol = 1e-6
const nonlinearAbsTol = 1e-9

// divergedMagnitude is the |x| ceiling past which a solution is treated as
// diverged outright (spec §7's Diverged cause list).
const divergedMagnitude = 1e12

// inductorRateSafety and inductorRateFloor bound how far an inductor's
// current may move in one accepted step before the integrator calls it a
// physically-impossible update and rejects the step (spec §4.5's
// "step-to-step ΔI_L exceeds V_in·h/L·safety"): the nominal per-step
// increment v_L·h/L is computed from the inductor's own solved terminal
// voltage rather than a fixed V_in, since no single supply voltage is a
// property every circuit exposes, and the actual ΔI_L may exceed that
// nominal by up to the safety factor before being flagged.
const inductorRateSafety = 3.0
const inductorRateFloor = 1e-9

// Integrator drives one circuit through BE-bootstrap/BDF2 time stepping,
// delegating switch resolution to an mcp.Kernel.
type Integrator struct {
	state               State
	haveHistory         bool // false until the first step commits (forces BE)
	lastH               float64
	consecutiveHalvings int

	kernel *mcp.Kernel
	sink   diagnostics.Sink
}

// New builds an Integrator using kernel to resolve MOSFET_MCP switch modes
// each step, reporting rejections and divergence to sink (diagnostics.Discard
// for none).
func New(kernel *mcp.Kernel, sink diagnostics.Sink) *Integrator {
	if sink == nil {
		sink = diagnostics.Discard
	}
	return &Integrator{state: Uninitialized, kernel: kernel, sink: sink}
}

// hEqual reports whether h matches the step size the integrator's current
// (n-2) history was built against, within floating-point noise.
func hEqual(a, b float64) bool {
	if b == 0 {
		return false
	}
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}

// State reports the integrator's current lifecycle state.
func (ig *Integrator) State() State { return ig.state }

// StepResult is what Step reports back to the controller driving it.
type StepResult struct {
	Time     float64 // time reached if accepted
	H        float64 // step size actually used
	Solution []float64
	Accepted bool
}

// Step advances the circuit from time t by at most hNominal, shortened to
// land on the next scheduled source edge if one falls inside (t, t+hNominal],
// and halved on a rejected step. It returns once a step is accepted or the
// integrator diverges.
func (ig *Integrator) Step(ckt *circuit.Circuit, t, hNominal float64) (StepResult, error) {
	if ig.state == Uninitialized {
		ig.state = Running
	}
	if ig.state == Diverged || ig.state == Done {
		return StepResult{}, solverr.ErrDiverged
	}

	h := hNominal
	if edge := ckt.NextEventAfter(t); edge > t && edge < t+h {
		h = edge - t
	}

	for {
		scheme := ig.nextScheme(h)
		x, err := ig.attempt(ckt, t, h, scheme)
		if err != nil {
			return StepResult{}, err
		}
		if x != nil {
			ig.commit(ckt, h)
			ig.state = Running
			return StepResult{Time: t + h, H: h, Solution: x, Accepted: true}, nil
		}

		ig.reject(ckt)
		ig.state = StepRejected
		ig.consecutiveHalvings++
		ig.sink.StepRejected(t, h, "physically implausible update")
		if ig.consecutiveHalvings >= 3 {
			ig.state = Diverged
			ig.sink.StepRejected(t, h, "step-size floor reached, no progress")
			return StepResult{}, solverr.ErrDiverged
		}
		h /= 2
	}
}

// nextScheme reports BE for the very first step, or for any trial step
// whose h differs from the step size the last commit's history was built
// against (event-aligned shortening or a post-rejection halving both count,
// per spec §4.5: "one BE step restores the history before BDF2 resumes"),
// BDF2 otherwise.
func (ig *Integrator) nextScheme(h float64) Scheme {
	if !ig.haveHistory || !hEqual(h, ig.lastH) {
		return BackwardEuler
	}
	return BDF2
}

// attempt stamps and solves one trial step. It returns (x, nil) on an
// accepted trial, (nil, nil) on a rejected-but-retryable trial (physically
// implausible update), or (nil, err) on a hard failure.
func (ig *Integrator) attempt(ckt *circuit.Circuit, t, h float64, scheme Scheme) ([]float64, error) {
	ctx := device.StepContext{Time: t + h, H: h, Scheme: scheme}
	asm := ckt.Assembler()
	switches := ckt.Switches()

	stampAll := func(a *mna.Assembler) error {
		for _, el := range ckt.Elements() {
			if err := el.Stamp(a, ctx); err != nil {
				return err
			}
		}
		return nil
	}

	var x []float64
	var err error

	if len(switches) > 0 {
		x, err = ig.kernel.Solve(asm, switches, stampAll, t+h)
	} else {
		x, err = ig.solveWithNewton(ckt, asm, stampAll)
	}
	if err != nil {
		return nil, err
	}

	if diverged(x) {
		return nil, solverr.ErrDiverged
	}

	for _, el := range ckt.Elements() {
		el.UpdateHistory(x)
	}

	if !physicallyPlausible(ckt, x, h) {
		return nil, nil
	}
	return x, nil
}

// solveWithNewton runs ordinary fixed-point Newton iteration for circuits
// containing a smoothed MOSFET_MCP (its conductance depends on the last
// solved v_ds); for a purely linear network it converges in a single pass.
func (ig *Integrator) solveWithNewton(ckt *circuit.Circuit, asm *mna.Assembler, stampAll func(*mna.Assembler) error) ([]float64, error) {
	var x, prev []float64
	var err error
	for iter := 0; iter < nonlinearIterations; iter++ {
		asm.Reset()
		if err = stampAll(asm); err != nil {
			return nil, err
		}
		x, err = asm.Solve()
		if err != nil {
			return nil, solverr.ErrSingularMatrix
		}
		for _, el := range ckt.Elements() {
			el.UpdateHistory(x)
		}
		if prev != nil && converged(x, prev) {
			return x, nil
		}
		prev = append(prev[:0], x...)
	}
	return x, nil
}

func converged(x, prev []float64) bool {
	for i := range x {
		diff := math.Abs(x[i] - prev[i])
		tol := nonlinearRelTol*math.Max(math.Abs(x[i]), math.Abs(prev[i])) + nonlinearAbsTol
		if diff > tol {
			return false
		}
	}
	return true
}

func diverged(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.Abs(v) > divergedMagnitude {
			return true
		}
	}
	return false
}

// physicallyPlausible applies the inductor-current-rate bound of spec
// §4.5: rejects a step whose trial inductor current (already written into
// each element's history slot by UpdateHistory, but not yet committed)
// moved further from its last committed value than the step's own terminal
// voltage could plausibly justify.
func physicallyPlausible(ckt *circuit.Circuit, x []float64, h float64) bool {
	for _, el := range ckt.Elements() {
		l, ok := el.(*device.Inductor)
		if !ok {
			continue
		}
		delta := math.Abs(l.TrialCurrent() - l.Current())
		nominal := math.Abs(l.TerminalVoltage(x)) * h / l.Henries()
		bound := inductorRateSafety*nominal + inductorRateFloor
		if delta > bound {
			return false
		}
	}
	return true
}

func (ig *Integrator) commit(ckt *circuit.Circuit, h float64) {
	for _, el := range ckt.Elements() {
		el.OnStepCommit()
	}
	ig.lastH = h
	ig.haveHistory = true
	ig.consecutiveHalvings = 0
}

func (ig *Integrator) reject(ckt *circuit.Circuit) {
	for _, el := range ckt.Elements() {
		el.OnStepReject()
	}
}

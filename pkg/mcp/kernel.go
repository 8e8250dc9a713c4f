// Package mcp implements the switch-mode complementarity kernel of spec
// §4.4: given an assembler already stamped with every linear and reactive
// element, it drives the MOSFET_MCP switches to a mode assignment that
// satisfies the complementarity condition (conducting with i_ds>=0 & v_ds=0,
// or blocking with v_ds<=0 & i_ds=0) by repeated assemble/solve/flip passes,
// the same predict-then-Newton-like-loop shape the teacher's
// pkg/analysis/tran.go used for its inner NR iteration (doNRiter), but
// iterating over discrete switch modes instead of continuous nonlinear
// voltages.
package mcp

import (
	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/diagnostics"
	"github.com/edp1096/pwrtran/pkg/mna"
	"github.com/edp1096/pwrtran/pkg/solverr"
)

// Tolerances bundles the feasibility epsilons and flip budget of spec §4.4.
type Tolerances struct {
	EpsilonI        float64 // A, default 1e-9
	EpsilonV        float64 // V, default 1e-9
	FlipLimit       int     // per-switch flips before damping engages, default 8
	MaxModeIterations int   // total flips across all switches in one step, default 64
}

// DefaultTolerances returns the spec §4.4 defaults.
func DefaultTolerances() Tolerances {
	return Tolerances{EpsilonI: 1e-9, EpsilonV: 1e-9, FlipLimit: 8, MaxModeIterations: 64}
}

// gateHysteresisMargin is the fractional margin above Vth a gate-source
// voltage must clear before the kernel forces the conducting branch (spec
// §4.3): below Vth forces blocking, above Vth*(1+margin) forces conducting,
// and the band between is left to ordinary complementarity.
const gateHysteresisMargin = 0.1

// gateForcedMode reports the branch sw's gate voltage forces it into, if
// any. ok is false inside the hysteresis band, where the complementarity
// check below is free to pick either branch.
func gateForcedMode(sw *device.MOSFET) (mode device.SwitchMode, ok bool) {
	vgs, vth := sw.GateVoltage(), sw.Threshold()
	switch {
	case vgs < vth:
		return device.SwitchOff, true
	case vgs > vth*(1+gateHysteresisMargin):
		return device.SwitchOn, true
	default:
		return 0, false
	}
}

// Assemble is supplied by the caller: stamp every element (switches
// included) into asm for the step currently being solved.
type Assemble func(asm *mna.Assembler) error

// Kernel runs the predict/assemble/solve/feasibility-check/flip loop.
type Kernel struct {
	tol    Tolerances
	sink   diagnostics.Sink
	seeded map[*device.MOSFET]bool
}

// New builds a Kernel with the given tolerances, logging to sink (use
// diagnostics.Discard for none).
func New(tol Tolerances, sink diagnostics.Sink) *Kernel {
	if sink == nil {
		sink = diagnostics.Discard
	}
	return &Kernel{tol: tol, sink: sink, seeded: make(map[*device.MOSFET]bool)}
}

// Solve runs the kernel for one time step. switches is every MOSFET_MCP
// element in the circuit (the ideal, non-smoothed variant only — the
// smoothed variant is an ordinary nonlinear stamp and never passed here).
// assemble re-stamps asm from scratch (switches included, at their current
// SetMode) each pass. time is used only for diagnostics.
func (k *Kernel) Solve(asm *mna.Assembler, switches []*device.MOSFET, assemble Assemble, time float64) ([]float64, error) {
	flipCounts := make(map[*device.MOSFET]int, len(switches))
	dampGain := make(map[*device.MOSFET]float64, len(switches))
	totalFlips := 0

	// 1. Predict: a switch this kernel has never run before has no prior
	// accepted-step mode to warm-start from, so seed it from the sign of
	// its last-measured gate-source voltage against Vth (spec §4.4 step 1)
	// rather than leaving it at the constructor's unconditional SwitchOff.
	// Every subsequent call warm-starts from whatever mode the previous
	// step's flip loop converged to instead.
	for _, sw := range switches {
		if !k.seeded[sw] {
			sw.SetMode(sw.PredictMode())
			k.seeded[sw] = true
		}
	}

	// 2-3: assemble and solve under the current (predicted or warm-started)
	// mode vector.
	for {
		asm.Reset()
		if err := assemble(asm); err != nil {
			return nil, err
		}
		x, err := asm.Solve()
		if err != nil {
			return nil, solverr.ErrSingularMatrix
		}

		flipped := false
		for _, sw := range switches {
			sw.UpdateHistory(x)

			// Gate-threshold forcing takes priority over complementarity
			// (spec §4.3): outside the hysteresis band the gate alone
			// decides the branch, with no feasibility check involved.
			if forced, ok := gateForcedMode(sw); ok {
				if sw.Mode() != forced {
					sw.SetMode(forced)
					flipped = true
					flipCounts[sw]++
					totalFlips++
					k.sink.ModeFlip(sw.Name(), time, flipCounts[sw])
				}
			} else {
				switch sw.Mode() {
				case device.SwitchOn:
					if sw.CurrentDS() < -k.tol.EpsilonI {
						sw.SetMode(device.SwitchOff)
						flipped = true
						flipCounts[sw]++
						totalFlips++
						k.sink.ModeFlip(sw.Name(), time, flipCounts[sw])
					}
				case device.SwitchOff:
					if sw.VoltageDS() > k.tol.EpsilonV {
						sw.SetMode(device.SwitchOn)
						flipped = true
						flipCounts[sw]++
						totalFlips++
						k.sink.ModeFlip(sw.Name(), time, flipCounts[sw])
					}
				}
			}

			// 5. Damping: once a switch's flip count within this step hits
			// flip_limit, engage a small drain-source conductance, doubling
			// each subsequent re-entry into this branch.
			if flipCounts[sw] >= k.tol.FlipLimit {
				g := dampGain[sw]
				if g == 0 {
					g = 1e-6
				} else {
					g *= 2
				}
				dampGain[sw] = g
				sw.SetDampingConductance(g)
				k.sink.GminStep(time, g)
			}
		}

		if !flipped {
			return x, nil
		}
		// 6. Fail after max_mode_iterations total flips across all switches.
		if totalFlips >= k.tol.MaxModeIterations {
			return nil, solverr.ErrMCPDidNotConverge
		}
	}
}

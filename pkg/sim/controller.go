// Package sim owns the public run(circuit, h_nominal, t_end) -> Result
// surface of spec §4.6: it drives the integrator from t=0 to t_end,
// records samples into a waveform.Record, and turns any solver failure
// into the documented Result shape. Grounded on the teacher's
// pkg/analysis/tran.go Execute loop (same "advance, check, store, grow
// step" shape) and BaseAnalysis.GetResults/StoreTimeResult (same
// name-indexed result shape, generalized here to waveform.Record's
// interpolation and decimation).
package sim

import (
	"context"

	"github.com/edp1096/pwrtran/pkg/circuit"
	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/diagnostics"
	"github.com/edp1096/pwrtran/pkg/integrator"
	"github.com/edp1096/pwrtran/pkg/mcp"
	"github.com/edp1096/pwrtran/pkg/mna"
	"github.com/edp1096/pwrtran/pkg/solverr"
	"github.com/edp1096/pwrtran/pkg/waveform"
)

// Result is the transient controller's public result shape (spec §4.6):
// Success/Record on a clean Done, Err set (with Record holding whatever
// was captured before the failure) otherwise.
type Result struct {
	Success bool
	Record  *waveform.Record
	Err     error
}

// Options configures a Run.
type Options struct {
	Tolerances mcp.Tolerances // zero value resolves to mcp.DefaultTolerances()
	Sink       diagnostics.Sink
	Traces     []string // node/branch names to record; nil records every unknown

	// ReportCondition opts into emitting pkg/linalg's cheap 1-norm
	// condition-number estimate through Sink after every accepted step
	// (spec §4.1's "optional, cheap 1-norm estimator", off by default since
	// it recomputes an estimate the solve path doesn't otherwise need).
	// Useful for diagnosing a near-singular network — e.g. a MOSFET_MCP
	// stuck fully off with no other path to ground — before it degrades
	// into an outright SingularMatrix failure.
	ReportCondition bool
}

// Run drives ckt from t=0 to tEnd in nominal steps of hNominal, returning a
// Result once the run reaches Done or fails. ctx cancellation is checked
// once per accepted step (spec §5's cooperative-cancellation contract).
func Run(ctx context.Context, ckt *circuit.Circuit, hNominal, tEnd float64, opts Options) Result {
	if err := ckt.Build(); err != nil {
		return Result{Err: err}
	}

	tol := opts.Tolerances
	if tol == (mcp.Tolerances{}) {
		tol = mcp.DefaultTolerances()
	}
	sink := opts.Sink
	if sink == nil {
		sink = diagnostics.Discard
	}

	kernel := mcp.New(tol, sink)
	ig := integrator.New(kernel, sink)

	names := opts.Traces
	if names == nil {
		names = traceNamesOf(ckt)
	}
	rec := waveform.NewRecord(names)

	// Spec's zero-duration-transient boundary case: no step is taken, but
	// the caller still gets exactly one sample reflecting the circuit's
	// initial conditions (the operating point the companion models settle
	// to on a single pass, given each reactive element's seeded history).
	if tEnd <= 0 {
		if err := recordInitialSample(ckt, kernel, rec, names, hNominal); err != nil {
			return Result{Record: rec, Err: err}
		}
		return Result{Success: true, Record: rec}
	}

	t := 0.0

	for t < tEnd {
		select {
		case <-ctx.Done():
			return Result{Record: rec, Err: solverr.ErrCancelled}
		default:
		}

		h := hNominal
		if t+h > tEnd {
			h = tEnd - t
		}

		step, err := ig.Step(ckt, t, h)
		if err != nil {
			return Result{Record: rec, Err: err}
		}
		if step.Time > tEnd {
			step.H -= step.Time - tEnd
			step.Time = tEnd
		}
		t = step.Time
		recordSample(rec, ckt, names, t)
		if opts.ReportCondition {
			sink.Info("condition estimate", map[string]any{
				"t":    t,
				"cond": ckt.Assembler().ConditionEstimate(),
			})
		}
	}

	return Result{Success: true, Record: rec}
}

// traceNamesOf collects every node and branch unknown name the assembler
// knows about, in assigned-index order, so a caller who didn't name
// explicit traces still gets the full solution vector recorded.
func traceNamesOf(ckt *circuit.Circuit) []string {
	asm := ckt.Assembler()
	n := asm.Size()
	names := make([]string, n)
	for i := 1; i <= n; i++ {
		names[i-1] = asm.NameOf(i)
	}
	return names
}

// recordInitialSample stamps and solves once at t=0 with a Backward Euler
// context (never committed into any element's history) purely to populate
// node voltages and branch currents consistent with each element's seeded
// initial condition, then records that as the run's only sample.
func recordInitialSample(ckt *circuit.Circuit, kernel *mcp.Kernel, rec *waveform.Record, names []string, h float64) error {
	asm := ckt.Assembler()
	ctx := device.StepContext{Time: 0, H: h, Scheme: integrator.BackwardEuler}
	stampAll := func(a *mna.Assembler) error {
		for _, el := range ckt.Elements() {
			if err := el.Stamp(a, ctx); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if switches := ckt.Switches(); len(switches) > 0 {
		_, err = kernel.Solve(asm, switches, stampAll, 0)
	} else {
		asm.Reset()
		if err = stampAll(asm); err == nil {
			_, err = asm.Solve()
		}
	}
	if err != nil {
		return err
	}
	recordSample(rec, ckt, names, 0)
	return nil
}

func recordSample(rec *waveform.Record, ckt *circuit.Circuit, names []string, t float64) {
	asm := ckt.Assembler()
	x := asm.Solution()
	row := make([]float64, len(names))
	for i, name := range names {
		idx := asm.NodeIndex(name)
		if idx == 0 {
			idx = asm.BranchIndex(name)
		}
		if idx > 0 && idx < len(x) {
			row[i] = x[idx]
		}
	}
	rec.Append(t, row)
}

// Package solverr defines the sentinel errors returned across the solver
// core's package boundaries, wrapped with github.com/pkg/errors so callers
// keep a stack trace from the point of failure — the teacher's analysis
// packages instead built plain fmt.Errorf("...: %v", err) strings, which
// lose that and make errors.Is/errors.As unusable against a fixed set of
// causes.
package solverr

import "github.com/pkg/errors"

var (
	// ErrMalformedCircuit is returned when a circuit fails structural
	// validation before the first solve: circuit.Build returns it when a
	// node receives no stamped contribution (a floating node). No other
	// structural check produces it.
	ErrMalformedCircuit = errors.New("solverr: malformed circuit")

	// ErrSingularMatrix is returned when the assembled system cannot be
	// factored, surfaced up from pkg/linalg.
	ErrSingularMatrix = errors.New("solverr: singular matrix")

	// ErrMCPDidNotConverge is returned when the switch kernel exhausts its
	// flip budget without reaching a feasible mode assignment.
	ErrMCPDidNotConverge = errors.New("solverr: MCP kernel did not converge")

	// ErrDiverged is returned when the step-size controller halves below
	// its floor three times in a row with no accepted progress.
	ErrDiverged = errors.New("solverr: time step diverged")

	// ErrCancelled is returned when the caller's context is done before
	// the run reaches its stop time.
	ErrCancelled = errors.New("solverr: run cancelled")

	// ErrUnsupportedElement is returned by the netlist frontend for any
	// element type outside R/L/C/V/I/M.
	ErrUnsupportedElement = errors.New("solverr: unsupported element type")
)

// ExitCode maps a solver error to the CLI's documented exit status: 0 for
// nil, 2 for divergence, 3 for a malformed circuit or a singular matrix, 4
// for an unsupported element, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrDiverged):
		return 2
	case errors.Is(err, ErrMalformedCircuit), errors.Is(err, ErrSingularMatrix):
		return 3
	case errors.Is(err, ErrUnsupportedElement):
		return 4
	default:
		return 1
	}
}

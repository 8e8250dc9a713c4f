package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/pwrtran/pkg/integrator"
	"github.com/edp1096/pwrtran/pkg/mna"
)

// buildRLStep wires a DC source driving an inductor through a near-short
// leak at the far node — large enough that it acts as the circuit's
// (negligible-resistance) return path rather than a competing load, while
// still giving that node a stamped contribution so Build-style floating-node
// bookkeeping would see it — and returns the inductor after one
// Stamp+Solve+UpdateHistory pass at step size h.
func buildRLStep(t *testing.T, henries, ic, volts, h float64, scheme integrator.Scheme) *Inductor {
	t.Helper()
	a := mna.NewAssembler([]string{"drive", "mid"}, []string{"I(V1)", "I(L1)"})

	v := NewDCVoltageSource("V1", "drive", "0", volts)
	v.Bind(a, "I(V1)")
	l := NewInductor("L1", "drive", "mid", henries, ic)
	l.Bind(a, "I(L1)")

	require.NoError(t, v.Stamp(a, StepContext{}))
	require.NoError(t, l.Stamp(a, StepContext{H: h, Scheme: scheme}))
	a.StampConductance(a.NodeIndex("mid"), 0, 1e6) // near-short return path, negligible IR drop

	x, err := a.Solve()
	require.NoError(t, err)
	l.UpdateHistory(x)
	return l
}

func TestInductorBackwardEulerChargesTowardVOverL(t *testing.T) {
	// v_L = (L/h)*(i_n - i_prev) => i_n ~= i_prev + V*h/L when the far
	// node sits close to 0V (the near-short return path drops negligible
	// voltage).
	l := buildRLStep(t, 150e-6, 0, 24, 1e-6, integrator.BackwardEuler)
	expected := 24 * 1e-6 / 150e-6
	assert.InDelta(t, expected, l.TrialCurrent(), expected*1e-3)
}

func TestInductorHistoryRotation(t *testing.T) {
	l := buildRLStep(t, 150e-6, 1.0, 0, 1e-6, integrator.BackwardEuler)
	l.OnStepCommit()
	assert.InDelta(t, 1.0, l.PreviousCurrent(), 1e-6)
	assert.InDelta(t, l.TrialCurrent(), l.Current(), 1e-9)
}

func TestInductorOnStepRejectLeavesHistoryUntouched(t *testing.T) {
	l := NewInductor("L1", "n1", "n2", 1e-3, 3.0)
	before := l.Current()
	l.OnStepReject()
	assert.Equal(t, before, l.Current())
}

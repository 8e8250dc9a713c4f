package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/pwrtran/pkg/mna"
)

func TestMOSFETIdealOnStampsRonAcrossDrainSource(t *testing.T) {
	a := mna.NewAssembler([]string{"d", "s"}, nil)
	m := NewIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	m.Bind(a)
	m.SetMode(SwitchOn)

	a.StampCurrent(a.NodeIndex("d"), 0, 1.0)
	require.NoError(t, m.Stamp(a, StepContext{}))
	a.StampConductance(a.NodeIndex("s"), 0, 1e-9)

	x, err := a.Solve()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, x[a.NodeIndex("d")]-x[a.NodeIndex("s")], 1e-3)
}

func TestMOSFETIdealOffLeavesDrainFloatingExceptLeakage(t *testing.T) {
	a := mna.NewAssembler([]string{"d", "s"}, nil)
	m := NewIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	m.Bind(a)
	m.SetMode(SwitchOff)

	a.StampCurrent(a.NodeIndex("d"), 0, 1e-6)
	require.NoError(t, m.Stamp(a, StepContext{}))
	a.StampConductance(a.NodeIndex("s"), 0, 1e-9)

	x, err := a.Solve()
	require.NoError(t, err)
	// Leakage conductance is tiny (1e-12), so even a small injected current
	// produces a large drain-source voltage compared to the "on" case.
	assert.Greater(t, x[a.NodeIndex("d")]-x[a.NodeIndex("s")], 100.0)
}

func TestMOSFETPredictModeFollowsLastGateVoltage(t *testing.T) {
	m := NewIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	m.lastVGS = 1.0
	assert.Equal(t, SwitchOff, m.PredictMode())
	m.lastVGS = 3.0
	assert.Equal(t, SwitchOn, m.PredictMode())
}

func TestMOSFETCurrentDSMatchesModeFormula(t *testing.T) {
	m := NewIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	m.lastVDS = 5.0
	m.SetMode(SwitchOn)
	assert.InDelta(t, 0.5, m.CurrentDS(), 1e-9)
	m.SetMode(SwitchOff)
	assert.InDelta(t, 5e-12, m.CurrentDS(), 1e-15)
}

func TestMOSFETDampingConductanceClearedOnCommit(t *testing.T) {
	m := NewIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	m.SetDampingConductance(1e-3)
	m.OnStepCommit()
	assert.Zero(t, m.dampConductance)
}

func TestSmoothedCompanionBelowThresholdIsJustGmin(t *testing.T) {
	m := NewSmoothedMOSFET("M1", "d", "g", "s", 0.02, 2.0)
	ids, gm, gds := m.smoothedCompanion(1.0, 5.0)
	assert.Zero(t, ids)
	assert.InDelta(t, smoothedGmin, gm, 1e-20)
	assert.InDelta(t, smoothedGmin, gds, 1e-20)
}

func TestSmoothedCompanionAboveThresholdFollowsQuadraticLaw(t *testing.T) {
	m := NewSmoothedMOSFET("M1", "d", "g", "s", 0.02, 2.0)
	vgs, vds := 5.0, 3.0
	ids, gm, gds := m.smoothedCompanion(vgs, vds)
	over := vgs - m.vt
	assert.InDelta(t, m.beta*over*over, ids, 1e-12)
	assert.InDelta(t, 2*m.beta*over, gm, 1e-12)
	assert.InDelta(t, smoothedGmin, gds, 1e-20)
}

func TestSmoothedCompanionNegativeVDSFlipsSign(t *testing.T) {
	m := NewSmoothedMOSFET("M1", "d", "g", "s", 0.02, 2.0)
	ids, gm, _ := m.smoothedCompanion(5.0, -3.0)
	assert.Less(t, ids, 0.0)
	assert.Less(t, gm, 0.0)
}

func TestMOSFETSmoothedStampLinearizesExactlyAtOperatingPoint(t *testing.T) {
	// At a fixed operating point the VCCS companion (Ieq = ids - gm*vgs -
	// gds*vds) must reproduce exactly ids = gm*vgs + gds*vds + Ieq, i.e. the
	// stamped current at (vgs,vds) equals the true device law.
	m := NewSmoothedMOSFET("M1", "d", "g", "s", 0.02, 2.0)
	m.lastVGS, m.lastVDS = 5.0, 3.0

	a := mna.NewAssembler([]string{"d", "g", "s"}, nil)
	m.Bind(a)
	require.NoError(t, m.Stamp(a, StepContext{}))

	ids, gm, gds := m.smoothedCompanion(m.lastVGS, m.lastVDS)
	ieq := ids - gm*m.lastVGS - gds*m.lastVDS
	reconstructed := gm*m.lastVGS + gds*m.lastVDS + ieq
	assert.InDelta(t, ids, reconstructed, 1e-9)
}

func TestMOSFETUpdateHistoryComputesVDSAndVGSRelativeToSource(t *testing.T) {
	a := mna.NewAssembler([]string{"d", "g", "s"}, nil)
	m := NewIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	m.Bind(a)

	x := make([]float64, a.Size()+1)
	x[a.NodeIndex("d")] = 12
	x[a.NodeIndex("g")] = 5
	x[a.NodeIndex("s")] = 1
	m.UpdateHistory(x)

	assert.InDelta(t, 11, m.VoltageDS(), 1e-9)
	assert.InDelta(t, 4, m.lastVGS, 1e-9)
}

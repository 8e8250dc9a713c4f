package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/solverr"
)

func TestBuildAssignsNodeAndBranchIndices(t *testing.T) {
	ckt := New("rc")
	ckt.AddDCVoltageSource("V1", "in", "0", 5)
	ckt.AddResistor("R1", "in", "out", 1000)
	ckt.AddCapacitor("C1", "out", "0", 1e-6, 0)

	require.NoError(t, ckt.Build())

	asm := ckt.Assembler()
	require.NotNil(t, asm)
	assert.NotZero(t, asm.NodeIndex("in"))
	assert.NotZero(t, asm.NodeIndex("out"))
	assert.Zero(t, asm.NodeIndex("0"))
	assert.NotZero(t, asm.BranchIndex("I(V1)"))
	assert.Len(t, ckt.Elements(), 3)
}

func TestBuildIsIdempotent(t *testing.T) {
	ckt := New("r")
	ckt.AddDCVoltageSource("V1", "a", "0", 5)
	ckt.AddResistor("R1", "a", "0", 100)

	require.NoError(t, ckt.Build())
	first := ckt.Assembler()
	require.NoError(t, ckt.Build())
	assert.Same(t, first, ckt.Assembler())
}

func TestBuildDetectsFloatingNodeFromUnstampedGate(t *testing.T) {
	ckt := New("floating")
	// The ideal MOSFET's companion model only ever stamps drain-source;
	// with no other element touching "g" it never receives a stamped
	// contribution, which Build's validation pass must catch.
	ckt.AddIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	ckt.AddResistor("R1", "d", "s", 100)

	err := ckt.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, solverr.ErrMalformedCircuit)
}

func TestBuildAcceptsFullyStampedGateNode(t *testing.T) {
	ckt := New("ok")
	ckt.AddIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	ckt.AddResistor("R1", "d", "s", 100)
	ckt.AddResistor("Rg", "g", "0", 1000)

	assert.NoError(t, ckt.Build())
}

func TestSwitchesReturnsOnlyIdealMOSFETs(t *testing.T) {
	ckt := New("mixed")
	ckt.AddIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	ckt.AddSmoothedMOSFET("M2", "d2", "g2", "s2", 0.02, 2.0)
	ckt.AddResistor("R1", "d", "s", 100)
	ckt.AddResistor("R2", "d2", "s2", 100)
	ckt.AddResistor("Rg", "g", "0", 1000)
	ckt.AddResistor("Rg2", "g2", "0", 1000)

	require.NoError(t, ckt.Build())
	switches := ckt.Switches()
	require.Len(t, switches, 1)
	assert.Equal(t, "M1", switches[0].Name())
}

func TestNextEventAfterReturnsEarliestPulseEdgeAcrossSources(t *testing.T) {
	ckt := New("events")
	p1 := device.PulseParams{Value1: 0, Value2: 5, Delay: 10e-6, Width: 5e-6, Period: 20e-6}
	p2 := device.PulseParams{Value1: 0, Value2: 5, Delay: 3e-6, Width: 5e-6, Period: 20e-6}
	ckt.AddPulseVoltageSource("V1", "a", "0", p1)
	ckt.AddPulseCurrentSource("I1", "b", "0", p2)
	ckt.AddResistor("R1", "a", "0", 100)
	ckt.AddResistor("R2", "b", "0", 100)
	require.NoError(t, ckt.Build())

	assert.InDelta(t, 3e-6, ckt.NextEventAfter(0), 1e-15)
}

func TestNextEventAfterIsInfWithNoEdgedSources(t *testing.T) {
	ckt := New("static")
	ckt.AddDCVoltageSource("V1", "a", "0", 5)
	ckt.AddResistor("R1", "a", "0", 100)
	require.NoError(t, ckt.Build())

	assert.True(t, ckt.NextEventAfter(0) > 1e300)
}

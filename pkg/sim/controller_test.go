package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/pwrtran/pkg/circuit"
	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/diagnostics"
)

func TestRunRLChargingMatchesAnalyticalCurve(t *testing.T) {
	ckt := circuit.New("rl")
	ckt.AddDCVoltageSource("V1", "in", "0", 24)
	ckt.AddResistor("R1", "in", "out", 2)
	ckt.AddInductor("L1", "out", "0", 150e-6, 0)

	res := Run(context.Background(), ckt, 1e-6, 500e-6, Options{})
	require.NoError(t, res.Err)
	require.True(t, res.Success)

	i, ok := res.Record.Interpolate("I(L1)", 75e-6)
	require.True(t, ok)
	expected := 12 * (1 - math.Exp(-75e-6/75e-6))
	assert.InDelta(t, expected, i, 1e-2)
}

func TestRunRCChargingApproachesSupplyVoltage(t *testing.T) {
	// tau = R*C = 1000*100e-6 = 100ms; run out to tau and check the
	// tau-point value 12*(1-1/e) ~= 7.585V on the way toward 12V.
	ckt := circuit.New("rc")
	ckt.AddDCVoltageSource("V1", "in", "0", 12)
	ckt.AddResistor("R1", "in", "out", 1000)
	ckt.AddCapacitor("C1", "out", "0", 100e-6, 0)

	res := Run(context.Background(), ckt, 0.1e-3, 100e-3, Options{})
	require.NoError(t, res.Err)

	v, ok := res.Record.Interpolate("out", 100e-3)
	require.True(t, ok)
	assert.InDelta(t, 7.584, v, 0.1)
}

func TestRunLCOscillationReachesExpectedPeakAndPeriod(t *testing.T) {
	// V=5V applied at t=0 into a series L-C loop referenced to ground
	// (spec scenario 3): omega=1/sqrt(LC)=3162 rad/s, period=2*pi/omega
	// ~= 1.987 ms, v_C oscillating between 0 and 2*V=10V.
	ckt := circuit.New("lc")
	ckt.AddDCVoltageSource("V1", "in", "0", 5)
	ckt.AddInductor("L1", "in", "out", 1e-3, 0)
	ckt.AddCapacitor("C1", "out", "0", 100e-6, 0)

	res := Run(context.Background(), ckt, 2e-6, 2e-3, Options{})
	require.NoError(t, res.Err)

	vc := res.Record.At("out")
	require.NotEmpty(t, vc)
	for _, v := range vc {
		assert.Less(t, v, 11.0)
		assert.Greater(t, v, -1.0)
	}

	maxV := vc[0]
	for _, v := range vc {
		if v > maxV {
			maxV = v
		}
	}
	assert.Greater(t, maxV, 8.0, "v_C should swing up near 2*V=10V, not stay flat")

	omega := 1 / math.Sqrt(1e-3*100e-6)
	period := 2 * math.Pi / omega
	vAtHalfPeriod, ok := res.Record.Interpolate("out", period/2)
	require.True(t, ok)
	assert.InDelta(t, 10.0, vAtHalfPeriod, 2.0, "peak near half the ~1.987ms period should approach 10V")

	vAtFullPeriod, ok := res.Record.Interpolate("out", period)
	require.True(t, ok)
	assert.Less(t, vAtFullPeriod, 3.0, "v_C should have swung back down by one full period")
}

func TestRunAlwaysOnMOSFETChargesLikeOrdinaryResistor(t *testing.T) {
	ckt := circuit.New("mos-on")
	ckt.AddDCVoltageSource("V1", "drive", "0", 12)
	ckt.AddDCVoltageSource("VG", "gate", "0", 15)
	ckt.AddIdealMOSFET("M1", "drive", "gate", "mid", 2.0, 1e-3)
	ckt.AddResistor("R1", "mid", "out", 10)
	ckt.AddCapacitor("C1", "out", "0", 10e-6, 0)

	res := Run(context.Background(), ckt, 1e-6, 500e-6, Options{})
	require.NoError(t, res.Err)

	v, ok := res.Record.Interpolate("out", 500e-6)
	require.True(t, ok)
	assert.InDelta(t, 12.0, v, 0.2)
}

func TestRunAlwaysOffMOSFETKeepsLoadAtZero(t *testing.T) {
	ckt := circuit.New("mos-off")
	ckt.AddDCVoltageSource("V1", "drive", "0", 12)
	ckt.AddDCVoltageSource("VG", "gate", "0", 0)
	ckt.AddIdealMOSFET("M1", "drive", "gate", "mid", 2.0, 1e-3)
	ckt.AddResistor("R1", "mid", "out", 10)
	ckt.AddCapacitor("C1", "out", "0", 10e-6, 0)

	res := Run(context.Background(), ckt, 1e-6, 200e-6, Options{})
	require.NoError(t, res.Err)

	v, ok := res.Record.Interpolate("out", 200e-6)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-3)
}

func TestRunBuckConverterOpenLoopReachesHalfVin(t *testing.T) {
	ckt := circuit.New("buck")
	ckt.AddDCVoltageSource("Vin", "in", "0", 24)
	p := device.PulseParams{Value1: 0, Value2: 15, Delay: 0, Rise: 0, Fall: 0, Width: 10e-6, Period: 20e-6}
	// Gate drive is referenced to the switching node itself (as a real
	// high-side bootstrap gate driver is), so v_gs tracks the pulse directly
	// instead of drifting with the switching node's own swing.
	ckt.AddPulseVoltageSource("VG", "gate", "sw", p)
	ckt.AddIdealMOSFET("M1", "in", "gate", "sw", 2.0, 0.05)
	// Synchronous rectifier: no diode primitive is in scope, so the
	// freewheeling path during M1's off phase is a second MOSFET_MCP switch
	// gated by the complementary half of the same PWM cycle.
	pg2 := device.PulseParams{Value1: 0, Value2: 15, Delay: 10e-6, Rise: 0, Fall: 0, Width: 10e-6, Period: 20e-6}
	ckt.AddPulseVoltageSource("VG2", "gate2", "0", pg2)
	ckt.AddIdealMOSFET("M2", "sw", "gate2", "0", 2.0, 0.05)
	ckt.AddInductor("L1", "sw", "out", 150e-6, 0)
	ckt.AddCapacitor("C1", "out", "0", 100e-6, 0)
	ckt.AddResistor("Rload", "out", "0", 2)

	res := Run(context.Background(), ckt, 1e-6, 2e-3, Options{})
	require.NoError(t, res.Err)

	v, ok := res.Record.Interpolate("out", 2e-3)
	require.True(t, ok)
	assert.InDelta(t, 12.0, v, 3.0)
}

func TestRunZeroDurationReturnsExactlyOneInitialSample(t *testing.T) {
	ckt := circuit.New("zero")
	ckt.AddDCVoltageSource("V1", "a", "0", 5)
	ckt.AddResistor("R1", "a", "0", 100)

	res := Run(context.Background(), ckt, 1e-6, 0, Options{})
	require.NoError(t, res.Err)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Record.Len())
	assert.InDelta(t, 0, res.Record.Times()[0], 1e-15)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ckt := circuit.New("cancel")
	ckt.AddDCVoltageSource("V1", "a", "0", 5)
	ckt.AddResistor("R1", "a", "0", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, ckt, 1e-6, 1e-3, Options{})
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}

func TestRunReturnsMalformedCircuitForUnstampedNode(t *testing.T) {
	ckt := circuit.New("floating")
	// The ideal MOSFET's companion model never stamps its gate node (only
	// drain-source); with nothing else touching "g" it never receives any
	// stamped contribution at all, which Build's validation pass reports.
	ckt.AddIdealMOSFET("M1", "d", "g", "s", 2.0, 10)
	ckt.AddResistor("R1", "d", "s", 100)

	res := Run(context.Background(), ckt, 1e-6, 1e-3, Options{})
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}

// recordingSink captures Info calls so tests can assert an opt-in
// diagnostic actually fired, without pulling in a mocking library for one
// interface.
type recordingSink struct {
	diagnostics.Sink
	infoCalls int
}

func (s *recordingSink) Info(msg string, fields map[string]any) { s.infoCalls++ }

func TestRunReportConditionEmitsPerStepDiagnostic(t *testing.T) {
	ckt := circuit.New("cond")
	ckt.AddDCVoltageSource("V1", "a", "0", 5)
	ckt.AddResistor("R1", "a", "0", 100)

	sink := &recordingSink{Sink: diagnostics.Discard}
	res := Run(context.Background(), ckt, 1e-6, 5e-6, Options{Sink: sink, ReportCondition: true})
	require.NoError(t, res.Err)
	assert.Equal(t, res.Record.Len(), sink.infoCalls)
	assert.Greater(t, sink.infoCalls, 0)
}

func TestRunWithoutReportConditionEmitsNoInfoCalls(t *testing.T) {
	ckt := circuit.New("cond-off")
	ckt.AddDCVoltageSource("V1", "a", "0", 5)
	ckt.AddResistor("R1", "a", "0", 100)

	sink := &recordingSink{Sink: diagnostics.Discard}
	res := Run(context.Background(), ckt, 1e-6, 5e-6, Options{Sink: sink})
	require.NoError(t, res.Err)
	assert.Equal(t, 0, sink.infoCalls)
}

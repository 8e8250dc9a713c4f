package waveform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndAt(t *testing.T) {
	r := NewRecord([]string{"a", "b"})
	r.Append(0, []float64{1, 2})
	r.Append(1, []float64{3, 4})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []float64{1, 3}, r.At("a"))
	assert.Equal(t, []float64{2, 4}, r.At("b"))
	assert.Nil(t, r.At("nope"))
}

func TestInterpolateMidpoint(t *testing.T) {
	r := NewRecord([]string{"v"})
	r.Append(0, []float64{0})
	r.Append(1, []float64{10})

	v, ok := r.Interpolate("v", 0.5)
	require.True(t, ok)
	assert.InDelta(t, 5.0, v, 1e-9)
}

func TestInterpolateClampsOutsideRange(t *testing.T) {
	r := NewRecord([]string{"v"})
	r.Append(1, []float64{1})
	r.Append(2, []float64{2})

	v, ok := r.Interpolate("v", -5)
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-9)

	v, ok = r.Interpolate("v", 50)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestInterpolateUnknownTraceIsFalse(t *testing.T) {
	r := NewRecord([]string{"v"})
	r.Append(0, []float64{1})
	_, ok := r.Interpolate("missing", 0)
	assert.False(t, ok)
}

func TestDecimationHalvesSamplesAtCap(t *testing.T) {
	r := NewRecord([]string{"v"})
	for i := 0; i < MaxSamples+10; i++ {
		r.Append(float64(i), []float64{float64(i)})
	}
	assert.Less(t, r.Len(), MaxSamples)
	assert.Equal(t, r.Len(), len(r.Times()))
}

func TestWriteCSVRoundTripsFullPrecisionValues(t *testing.T) {
	r := NewRecord([]string{"out"})
	r.Append(0, []float64{0.123456789})
	r.Append(1e-6, []float64{1.0})

	var buf strings.Builder
	require.NoError(t, r.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "t,out", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "0.123456789")
}

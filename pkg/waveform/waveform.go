// Package waveform holds the append-only transient result record: one time
// column plus one column per tracked node voltage / branch current, with
// linear interpolation for arbitrary query times and decimation so a long
// run doesn't grow without bound in memory. There is no teacher analogue —
// pkg/analysis's BaseAnalysis kept plain map[string]float64 result slices
// with no interpolation or cap — so this is built fresh in the corpus's
// general style (small, slice-backed, no external dependency pulled in for
// something this mechanical).
package waveform

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
)

// MaxSamples bounds how many time points a Record keeps before it starts
// decimating by doubling its stride, per spec §6's million-sample ceiling.
const MaxSamples = 1_000_000

// Record is an append-only, time-ordered set of named traces sharing one
// time axis.
type Record struct {
	names  []string
	index  map[string]int
	times  []float64
	values [][]float64 // values[col][sample]
	stride int
	pending int
}

// NewRecord builds a Record tracking the given trace names, in order.
func NewRecord(names []string) *Record {
	idx := make(map[string]int, len(names))
	values := make([][]float64, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return &Record{names: names, index: idx, values: values, stride: 1}
}

// Append adds one time sample. row must have the same length and order as
// the names passed to NewRecord. Samples are thinned by stride once the
// series reaches MaxSamples, doubling the stride (and dropping every other
// kept sample) each time the cap is hit again — the same doubling-stride
// decimation spec §6 calls for.
func (r *Record) Append(t float64, row []float64) {
	r.pending++
	if r.pending%r.stride != 0 {
		return
	}
	r.times = append(r.times, t)
	for i := range r.values {
		r.values[i] = append(r.values[i], row[i])
	}
	if len(r.times) >= MaxSamples {
		r.decimate()
	}
}

func (r *Record) decimate() {
	thinned := make([]float64, 0, len(r.times)/2+1)
	for i := 0; i < len(r.times); i += 2 {
		thinned = append(thinned, r.times[i])
	}
	r.times = thinned
	for i, col := range r.values {
		thin := make([]float64, 0, len(col)/2+1)
		for j := 0; j < len(col); j += 2 {
			thin = append(thin, col[j])
		}
		r.values[i] = thin
	}
	r.stride *= 2
}

// Names returns the tracked trace names in column order.
func (r *Record) Names() []string { return r.names }

// Len returns the number of retained samples.
func (r *Record) Len() int { return len(r.times) }

// Times returns the retained time axis.
func (r *Record) Times() []float64 { return r.times }

// At returns a trace's retained samples by name, or nil if untracked.
func (r *Record) At(name string) []float64 {
	i, ok := r.index[name]
	if !ok {
		return nil
	}
	return r.values[i]
}

// Interpolate returns a trace's linearly-interpolated value at time t,
// clamping to the first/last sample outside the retained range.
func (r *Record) Interpolate(name string, t float64) (float64, bool) {
	col := r.At(name)
	if col == nil || len(r.times) == 0 {
		return 0, false
	}
	n := len(r.times)
	if t <= r.times[0] {
		return col[0], true
	}
	if t >= r.times[n-1] {
		return col[n-1], true
	}
	j := sort.Search(n, func(i int) bool { return r.times[i] >= t })
	t0, t1 := r.times[j-1], r.times[j]
	v0, v1 := col[j-1], col[j]
	frac := (t - t0) / (t1 - t0)
	return v0 + frac*(v1-v0), true
}

// WriteCSV writes the full record as a header row ("t", then trace names)
// followed by one row per retained sample, values rendered at full
// precision (%.9g) so a downstream comparator can re-parse them exactly;
// SI-prefixed display formatting belongs to the CLI's human-readable
// summary, not this machine-readable export.
func (r *Record) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"t"}, r.names...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, t := range r.times {
		row := make([]string, 0, len(r.names)+1)
		row = append(row, fmt.Sprintf("%.9g", t))
		for _, col := range r.values {
			row = append(row, fmt.Sprintf("%.9g", col[i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

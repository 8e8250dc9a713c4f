// Package util holds small formatting helpers shared by the CLI and the
// waveform CSV writer. Trimmed from the teacher's pkg/util/formatter.go,
// which also carried AC-analysis magnitude/phase/frequency formatters —
// dropped here since AC analysis is out of scope.
package util

import (
	"fmt"
	"math"
)

// SIUnitMultipliers is the SPICE-style suffix vocabulary shared with
// pkg/netlist's value parser: ParseValue looks a token's trailing suffix up
// here when reading a netlist value ("1k", "3.3m", ...), and
// FormatValueFactor walks the sub-unity entries in reverse when rendering a
// result back out, so a value entered in a netlist and one reported from a
// transient run name magnitude with the same scale vocabulary instead of
// each side inventing its own.
var SIUnitMultipliers = map[string]float64{
	"T":   1e12,
	"G":   1e9,
	"meg": 1e6,
	"K":   1e3,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"n":   1e-9,
	"p":   1e-12,
	"f":   1e-15,
}

// formatScales is SIUnitMultipliers' sub-unity entries, ordered largest to
// smallest, for FormatValueFactor's magnitude selection below 1. The
// suffixes of 1e3 and above ("k"/"K", "meg", "G", "T") are parsed on input
// but never printed: FormatValueFactor renders magnitudes of 1 or more
// without a prefix.
var formatScales = []struct {
	suffix     string
	multiplier float64
}{
	{"m", SIUnitMultipliers["m"]},
	{"u", SIUnitMultipliers["u"]},
	{"n", SIUnitMultipliers["n"]},
	{"p", SIUnitMultipliers["p"]},
	{"f", SIUnitMultipliers["f"]},
}

// FormatValueFactor renders value with an SI unit prefix picked by
// magnitude from the same suffix vocabulary pkg/netlist.ParseValue accepts
// on input, e.g. FormatValueFactor(0.0033, "F") -> "3.300 mF".
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	if absValue >= 1 || absValue == 0 {
		return fmt.Sprintf("%.3f %s", value, unit)
	}
	for _, s := range formatScales {
		if absValue >= s.multiplier {
			return fmt.Sprintf("%.3f %s%s", value/s.multiplier, s.suffix, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}

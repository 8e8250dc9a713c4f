// Package netlist is a thin SPICE-subset frontend over pkg/circuit's typed
// construction API: it parses R/L/C/V/I/M element lines plus .TRAN/.END
// directives and calls the same Add* methods a Go caller would. Trimmed
// from the teacher's pkg/netlist/parser.go, which also handled SIN/PWL/AC
// waveforms, diodes, and .op/.ac/.dc analysis directives — all non-goals
// here (spec §1). ParseValue's SI-suffix handling and the element-line
// field-splitting style are kept as-is; they owe nothing to the dropped
// analysis types.
package netlist

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/pwrtran/pkg/circuit"
	"github.com/edp1096/pwrtran/pkg/device"
	"github.com/edp1096/pwrtran/pkg/solverr"
	"github.com/edp1096/pwrtran/pkg/util"
)

// TranParams holds the .TRAN directive's schedule.
type TranParams struct {
	TStep, TStop, TStart, TMax float64
	UIC                        bool
}

// Parse reads a netlist and returns a built Circuit plus its .TRAN
// schedule. The first line, blank or not, is the title comment and is
// discarded, as in the teacher's format.
func Parse(input string) (*circuit.Circuit, TranParams, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	ckt := circuit.New("")
	var tran TranParams

	if scanner.Scan() {
		// title/comment line, discarded
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.EqualFold(line, ".end") {
			break
		}
		if strings.HasPrefix(line, ".") {
			if err := parseDirective(&tran, line); err != nil {
				return nil, tran, err
			}
			continue
		}
		if err := parseElementLine(ckt, line); err != nil {
			return nil, tran, err
		}
	}

	if err := ckt.Build(); err != nil {
		return nil, tran, err
	}
	return ckt, tran, nil
}

func parseDirective(tran *TranParams, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return errors.New("netlist: empty directive")
	}
	if !strings.EqualFold(fields[0], ".tran") {
		return errors.Wrap(solverr.ErrUnsupportedElement, "unsupported directive "+fields[0])
	}
	if len(fields) < 3 {
		return errors.New("netlist: .tran needs at least tstep and tstop")
	}
	var err error
	if tran.TStep, err = ParseValue(fields[1]); err != nil {
		return errors.Wrap(err, "netlist: invalid tstep")
	}
	if tran.TStop, err = ParseValue(fields[2]); err != nil {
		return errors.Wrap(err, "netlist: invalid tstop")
	}
	for i := 3; i < len(fields); i++ {
		if strings.EqualFold(fields[i], "uic") {
			tran.UIC = true
			continue
		}
		if i == 3 {
			if tran.TStart, err = ParseValue(fields[i]); err != nil {
				return errors.Wrap(err, "netlist: invalid tstart")
			}
		}
		if i == 4 {
			if tran.TMax, err = ParseValue(fields[i]); err != nil {
				return errors.Wrap(err, "netlist: invalid tmax")
			}
		}
	}
	if tran.TMax == 0 {
		tran.TMax = tran.TStep
	}
	return nil
}

func parseElementLine(ckt *circuit.Circuit, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return errors.Errorf("netlist: invalid element line %q", line)
	}
	name := fields[0]
	kind := strings.ToUpper(name[:1])

	switch kind {
	case "R":
		if len(fields) < 4 {
			return errors.Errorf("netlist: %s needs two nodes and a value", name)
		}
		ohms, err := ParseValue(fields[3])
		if err != nil {
			return errors.Wrap(err, "netlist: invalid resistor value")
		}
		ckt.AddResistor(name, fields[1], fields[2], ohms)

	case "L":
		if len(fields) < 4 {
			return errors.Errorf("netlist: %s needs two nodes and a value", name)
		}
		henries, err := ParseValue(fields[3])
		if err != nil {
			return errors.Wrap(err, "netlist: invalid inductor value")
		}
		ic := paramFloat(fields[4:], "IC", 0)
		ckt.AddInductor(name, fields[1], fields[2], henries, ic)

	case "C":
		if len(fields) < 4 {
			return errors.Errorf("netlist: %s needs two nodes and a value", name)
		}
		farads, err := ParseValue(fields[3])
		if err != nil {
			return errors.Wrap(err, "netlist: invalid capacitor value")
		}
		ic := paramFloat(fields[4:], "IC", 0)
		ckt.AddCapacitor(name, fields[1], fields[2], farads, ic)

	case "V":
		return parseSourceLine(fields, func(n1, n2 string, dc float64) {
			ckt.AddDCVoltageSource(name, n1, n2, dc)
		}, func(n1, n2 string, p device.PulseParams) {
			ckt.AddPulseVoltageSource(name, n1, n2, p)
		})

	case "I":
		return parseSourceLine(fields, func(n1, n2 string, dc float64) {
			ckt.AddDCCurrentSource(name, n1, n2, dc)
		}, func(n1, n2 string, p device.PulseParams) {
			ckt.AddPulseCurrentSource(name, n1, n2, p)
		})

	case "M":
		if len(fields) < 4 {
			return errors.Errorf("netlist: %s needs drain, gate and source nodes", name)
		}
		drain, gate, source := fields[1], fields[2], fields[3]
		params := fields[4:]
		if ron, ok := paramFloatOK(params, "RON"); ok {
			vth := paramFloat(params, "VTH", 0)
			ckt.AddIdealMOSFET(name, drain, gate, source, vth, ron)
		} else if beta, ok := paramFloatOK(params, "BETA"); ok {
			vt := paramFloat(params, "VT", 0)
			ckt.AddSmoothedMOSFET(name, drain, gate, source, beta, vt)
		} else {
			return errors.Errorf("netlist: %s needs RON/VTH or BETA/VT parameters", name)
		}

	default:
		return errors.Wrapf(solverr.ErrUnsupportedElement, "netlist: element type %q", kind)
	}
	return nil
}

// parseSourceLine handles "Vname n1 n2 DC <value>" and
// "Vname n1 n2 PULSE(v1 v2 delay rise fall width period)" forms shared by
// voltage and current source lines.
func parseSourceLine(fields []string, addDC func(n1, n2 string, value float64), addPulse func(n1, n2 string, p device.PulseParams)) error {
	if len(fields) < 4 {
		return errors.Errorf("netlist: %s needs two nodes and a value", fields[0])
	}
	n1, n2 := fields[1], fields[2]

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ")
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)
	if len(words) == 0 {
		return errors.Errorf("netlist: %s missing source value", fields[0])
	}

	switch strings.ToUpper(words[0]) {
	case "DC":
		if len(words) < 2 {
			return errors.Errorf("netlist: %s missing DC value", fields[0])
		}
		value, err := ParseValue(words[1])
		if err != nil {
			return errors.Wrap(err, "netlist: invalid DC value")
		}
		addDC(n1, n2, value)
		return nil

	case "PULSE":
		vals := words[1:]
		if len(vals) > 0 && vals[0] == "(" {
			vals = vals[1:]
		}
		if len(vals) > 0 && vals[len(vals)-1] == ")" {
			vals = vals[:len(vals)-1]
		}
		if len(vals) < 7 {
			return errors.Errorf("netlist: %s PULSE needs v1 v2 delay rise fall width period", fields[0])
		}
		nums := make([]float64, 7)
		for i := range nums {
			v, err := ParseValue(vals[i])
			if err != nil {
				return errors.Wrapf(err, "netlist: invalid PULSE parameter %d", i)
			}
			nums[i] = v
		}
		addPulse(n1, n2, device.PulseParams{
			Value1: nums[0], Value2: nums[1], Delay: nums[2],
			Rise: nums[3], Fall: nums[4], Width: nums[5], Period: nums[6],
		})
		return nil

	default:
		value, err := ParseValue(words[0])
		if err != nil {
			return errors.Wrapf(solverr.ErrUnsupportedElement, "netlist: %s source type %q", fields[0], words[0])
		}
		addDC(n1, n2, value)
		return nil
	}
}

// paramFloat looks up a key=value token (case-insensitive key) among
// params, returning fallback if absent or malformed.
func paramFloat(params []string, key string, fallback float64) float64 {
	v, ok := paramFloatOK(params, key)
	if !ok {
		return fallback
	}
	return v
}

func paramFloatOK(params []string, key string) (float64, bool) {
	prefix := strings.ToUpper(key) + "="
	for _, p := range params {
		if strings.HasPrefix(strings.ToUpper(p), prefix) {
			v, err := ParseValue(p[len(prefix):])
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

var valuePattern = regexp.MustCompile(`^([-+]?\d*\.?\d+)(meg|[TGKkmunpf])?s?$`)

// ParseValue parses a SPICE-style numeric literal with an optional SI
// suffix, e.g. "1k" -> 1000, "3.3m" -> 0.0033. The suffix table is
// pkg/util.SIUnitMultipliers — the same one FormatValueFactor walks in
// reverse when rendering a result value back out, so a value read from a
// netlist and one printed by the CLI agree on what "k" or "m" means.
func ParseValue(val string) (float64, error) {
	matches := valuePattern.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, errors.Errorf("netlist: invalid value format %q", val)
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	if matches[2] != "" {
		if multiplier, ok := util.SIUnitMultipliers[matches[2]]; ok {
			num *= multiplier
		}
	}
	return num, nil
}

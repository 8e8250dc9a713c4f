// Command spice is the CLI wrapper around the transient solver core (spec
// §6's "CLI wrappers... out of scope for the core, external collaborators
// only"): it reads a netlist, runs the transient controller, and prints or
// exports the resulting waveform. Adapted from the teacher's cmd/main.go
// flag-based entry point into a github.com/spf13/cobra command, replacing
// bare "flag" with cobra/pflag per the corpus's CLI convention (the
// teacher had no CLI-framework dependency to inherit here).
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/edp1096/pwrtran/pkg/diagnostics"
	"github.com/edp1096/pwrtran/pkg/netlist"
	"github.com/edp1096/pwrtran/pkg/sim"
	"github.com/edp1096/pwrtran/pkg/solverr"
	"github.com/edp1096/pwrtran/pkg/util"
	"github.com/edp1096/pwrtran/pkg/waveform"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		csvPath  string
		verbose  bool
		exitCode int
	)

	cmd := &cobra.Command{
		Use:   "spice <netlist>",
		Short: "Run a transient simulation on a SPICE-subset netlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			exitCode = runNetlist(posArgs[0], csvPath, verbose)
			return nil
		},
	}
	cmd.Flags().StringVarP(&csvPath, "csv", "o", "", "write the waveform record to this CSV file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "emit debug-level solver diagnostics")
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func runNetlist(path string, csvPath string, verbose bool) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "spice:", err)
		return 3
	}

	ckt, tran, err := netlist.Parse(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, "spice: parse:", err)
		// Every Parse failure is a circuit-construction problem; only the
		// explicit ErrUnsupportedElement case gets its own exit code (4),
		// everything else maps to malformed-circuit (3) rather than the
		// generic fallback ExitCode would otherwise assign.
		if code := solverr.ExitCode(err); code == 4 {
			return code
		}
		return 3
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	sink := diagnosticsSink(level)

	result := sim.Run(context.Background(), ckt, tran.TStep, tran.TStop, sim.Options{Sink: sink})
	if !result.Success {
		fmt.Fprintln(os.Stderr, "spice: run failed:", result.Err)
		if result.Record != nil && csvPath != "" {
			writeCSV(result.Record, csvPath)
		}
		return solverr.ExitCode(result.Err)
	}

	printSummary(result.Record)
	if csvPath != "" {
		if err := writeCSVErr(result.Record, csvPath); err != nil {
			fmt.Fprintln(os.Stderr, "spice: csv:", err)
			return 1
		}
	}
	return 0
}

func diagnosticsSink(level zerolog.Level) diagnostics.Sink {
	return diagnostics.NewZerologSink(os.Stderr, level)
}

func writeCSV(rec *waveform.Record, path string) {
	_ = writeCSVErr(rec, path)
}

func writeCSVErr(rec *waveform.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return rec.WriteCSV(f)
}

// printSummary renders a final-sample table the way the teacher's
// printResults did for DC/OP results, using util.FormatValueFactor for
// SI-prefixed display instead of raw floats.
func printSummary(rec *waveform.Record) {
	if rec.Len() == 0 {
		fmt.Println("no samples recorded")
		return
	}
	t := rec.Times()[rec.Len()-1]
	fmt.Printf("\nTransient Analysis Results (%d samples, t_end=%s):\n", rec.Len(), util.FormatValueFactor(t, "s"))
	fmt.Println("================================================")

	names := append([]string(nil), rec.Names()...)
	sort.Strings(names)
	for _, name := range names {
		vals := rec.At(name)
		if len(vals) == 0 {
			continue
		}
		unit := "V"
		if len(name) > 2 && name[0] == 'I' && name[1] == '(' {
			unit = "A"
		}
		fmt.Printf("%-16s %s\n", name, util.FormatValueFactor(vals[len(vals)-1], unit))
	}
}

// Package diagnostics carries the structured run-time warnings the solver
// core emits (gmin stepping engaged, MCP flip-cycle damping applied, step
// rejected) out to a caller-chosen sink. It replaces the teacher's scattered
// fmt.Println/fmt.Printf calls across pkg/analysis with the zerolog-backed
// logging the rest of the retrieved corpus reaches for.
package diagnostics

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Sink receives structured events from the simulation core. Implementations
// must be safe to call from a single goroutine per run (the controller
// never calls a Sink concurrently).
type Sink interface {
	StepRejected(time, h float64, reason string)
	ModeFlip(elementName string, time float64, flipCount int)
	GminStep(time, gmin float64)
	Info(msg string, fields map[string]any)
}

// Discard is a Sink that does nothing; the default when a caller has no
// interest in diagnostics.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) StepRejected(float64, float64, string)  {}
func (discardSink) ModeFlip(string, float64, int)           {}
func (discardSink) GminStep(float64, float64)               {}
func (discardSink) Info(string, map[string]any)             {}

// ZerologSink adapts zerolog.Logger to the Sink interface.
type ZerologSink struct {
	log zerolog.Logger
}

// NewZerologSink builds a Sink writing to w (os.Stderr if nil) at the given
// level, using zerolog's console writer the way the corpus's CLI tools do
// for human-readable output.
func NewZerologSink(w io.Writer, level zerolog.Level) *ZerologSink {
	if w == nil {
		w = os.Stderr
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return &ZerologSink{log: zerolog.New(cw).Level(level).With().Timestamp().Logger()}
}

func (z *ZerologSink) StepRejected(time, h float64, reason string) {
	z.log.Warn().Float64("t", time).Float64("h", h).Str("reason", reason).Msg("step rejected")
}

func (z *ZerologSink) ModeFlip(elementName string, time float64, flipCount int) {
	z.log.Debug().Str("element", elementName).Float64("t", time).Int("flip", flipCount).Msg("switch mode flip")
}

func (z *ZerologSink) GminStep(time, gmin float64) {
	z.log.Debug().Float64("t", time).Float64("gmin", gmin).Msg("gmin stepping engaged")
}

func (z *ZerologSink) Info(msg string, fields map[string]any) {
	ev := z.log.Info()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

package report

import (
	"fmt"
	"io"
)

// Reporter renders Events to an io.Writer, each followed by a newline, in place of
// logging directly to stdout, so callers — including tests — can choose
// the sink.
type Reporter struct {
	out io.Writer
}

// NewReporter wraps w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{out: w}
}

// Emit writes ev's String() followed by a newline.
func (r *Reporter) Emit(ev Event) {
	fmt.Fprintln(r.out, ev.String())
}

// EmitAll emits each event in order.
func (r *Reporter) EmitAll(events []Event) {
	for _, ev := range events {
		r.Emit(ev)
	}
}

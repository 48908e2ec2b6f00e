package logging

import (
	"fmt"
	"io"
	"sync"
)

// FileSink appends plain-text lines to a single output file. The
// orchestrator wires two instances per run: one unconditional sink at
// results.txt (gated per-record by Record.AlsoPersist) and one at
// errors.log restricted to Severity == Error.
type FileSink struct {
	mu         sync.Mutex
	w          io.Writer
	errorsOnly bool
}

// NewFileSink wraps an already-open file (or any io.Writer) as a Sink.
// When errorsOnly is true, only Error-severity records are written
// (errors.log); otherwise every record with AlsoPersist set is written
// (results.txt).
func NewFileSink(w io.Writer, errorsOnly bool) *FileSink {
	return &FileSink{w: w, errorsOnly: errorsOnly}
}

// Emit implements Sink.
func (f *FileSink) Emit(r Record) {
	if f.errorsOnly {
		if r.Severity != Error {
			return
		}
	} else if !r.AlsoPersist {
		return
	}
	end := r.End
	if end == "" {
		end = "\n"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, "[%s] %s%s", r.Component, r.PlainText, end)
}

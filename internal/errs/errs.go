// Package errs defines the closed set of error kinds the system
// recognizes, and a RecordError carrying one plus context.
// Recoverable data irregularities are either counted by the store
// (discarded flows and windows, AID collisions) or returned as non-fatal
// errors that the caller logs before moving on to the next record; only
// StoreFatal and ParserCrash abort a run.
package errs

import "fmt"

// Kind classifies an error for counting and disposition.
type Kind string

const (
	MalformedRecord Kind = "malformed_record"
	UnknownProtocol Kind = "unknown_protocol"
	TimestampFormat Kind = "timestamp_format"
	AidCollisionGT  Kind = "aid_collision_gt"
	AidMissingInGT  Kind = "aid_missing_in_gt"
	TwUnregistered  Kind = "tw_unregistered"
	StoreBusy       Kind = "store_busy"
	StoreFatal      Kind = "store_fatal"
	ParserCrash     Kind = "parser_crash"
)

// RecordError wraps an underlying error with its Kind and a short
// free-text context, e.g. the input line that failed to parse.
type RecordError struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// New builds a RecordError of the given kind.
func New(kind Kind, context string, err error) *RecordError {
	return &RecordError{Kind: kind, Context: context, Err: err}
}

// Fatal reports whether this kind always aborts the owning process
// rather than being counted and continued past.
func (k Kind) Fatal() bool {
	return k == StoreFatal || k == ParserCrash
}

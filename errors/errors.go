package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module loading and instantiation
	PhaseRuntime  Phase = "runtime"  // foreign XML_* calls
	PhaseDispatch Phase = "dispatch" // handle table and callback dispatch
	PhaseDecode   Phase = "decode"   // linear-memory argument decoding
	PhaseParse    Phase = "parse"    // feed loop and parser state
	PhaseHost     Phase = "host"     // host-supplied hooks (entity resolvers)
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidHandle Kind = "invalid_handle"
	KindNotLive       Kind = "not_live"
	KindNotAMethod    Kind = "not_a_method"
	KindInvalidState  Kind = "invalid_state"
	KindInvalidInput  Kind = "invalid_input"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindNotFound      Kind = "not_found"
	KindInstantiation Kind = "instantiation"
	KindInvalidData   Kind = "invalid_data"
	KindAllocation    Kind = "allocation"
)

// Error is the structured error type used throughout the binding
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two *Errors match when
// their Phase and Kind agree, so sentinel comparisons stay cheap:
//
//	errors.Is(err, &errors.Error{Phase: PhaseDispatch, Kind: KindNotLive})
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidHandle creates an error for dispatch against an unknown handle
func InvalidHandle(handle int32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("no object registered for handle %d", handle),
		Value:  handle,
	}
}

// NotLive creates an error for removing a handle that is not currently live
func NotLive(handle int32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNotLive,
		Detail: fmt.Sprintf("handle %d is not live (already removed or never issued)", handle),
		Value:  handle,
	}
}

// NotAMethod creates an error for dispatch to a missing or uncallable method
func NotAMethod(method string, handle int32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNotAMethod,
		Detail: fmt.Sprintf("object at handle %d has no method %q", handle, method),
		Value:  method,
	}
}

// InvalidState creates an error for an operation attempted in the wrong
// parser state, e.g. feeding after destroy
func InvalidState(op, state string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("cannot %s while parser is %s", op, state),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// OutOfBounds creates a linear-memory bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory access out of bounds: offset=%d, length=%d", offset, length),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Instantiation creates a module instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Package errors defines the structured error types used by the binding.
//
// Every error carries a Phase (where in processing it happened) and a Kind
// (what went wrong), plus optional detail, path and cause. Errors from the
// same Phase/Kind pair match under errors.Is, which keeps call sites free
// of string comparisons:
//
//	if errors.Is(err, &binderr.Error{Phase: binderr.PhaseDispatch, Kind: binderr.KindNotLive}) {
//	    // double remove
//	}
//
// Programming errors (invalid handle, double remove, post-destroy use) are
// all synchronous and non-retryable; they are reported through this package.
// Malformed-input errors reported by the XML engine itself are a separate
// value type, parser.ParseError, because they carry engine positions and
// codes rather than binding state.
package errors

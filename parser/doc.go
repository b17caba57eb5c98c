// Package parser exposes the event model over a loaded expat module.
//
// A Runtime owns one handle table and one Dispatcher bound to an engine's
// fixed callback slots; every Parser created from it shares those. A
// Parser wraps one foreign parser pointer and turns the raw callback
// arguments the Dispatcher decodes into named events delivered through
// On handlers, in document order, synchronously inside Parse.
//
// Note one deliberate convenience: a successful final Parse implicitly
// resets the instance, so the same Parser can consume a second
// independent document without an explicit Reset. State tied to reset
// (handlers on the foreign side, user data, base URI) is re-registered
// automatically.
package parser

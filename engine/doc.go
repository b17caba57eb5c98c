// Package engine hosts a WebAssembly build of libexpat on wazero.
//
// The package wraps module loading and exposes expat's C ABI as typed Go
// methods: parser lifecycle, buffered feeding, error introspection,
// housekeeping, and external entity sub-parser creation.
//
// # Callback Slots
//
// Expat delivers events through C function pointers. A host build of
// libexpat carries a small C shim whose trampolines forward every event to
// imports in the "expat" host module, carrying the parser's user-data
// integer plus raw pointers into linear memory. The engine registers that
// host module exactly once, at BindCallbacks time, with one slot per event
// kind; the slots are fixed for the life of the runtime no matter how many
// parsers are created (wazero cannot mint new native-callable functions
// after instantiation, so per-parser closures are impossible by design of
// the boundary, not by choice).
//
// Decoding of slot arguments is delegated to the Callbacks implementation
// (see the parser package), keeping this package limited to the boundary
// itself.
//
// # Lifecycle
//
//	eng, err := engine.New(ctx, engine.Config{Wasm: wasmBytes})
//	err = eng.BindCallbacks(ctx, dispatcher) // instantiates WASI + guest
//	p, err := eng.ParserCreate(ctx, "", '|', true)
//	...
//	eng.Close(ctx)
//
// Engine methods are not safe for concurrent use; the whole binding is
// single-threaded and reentrant-by-callback.
package engine

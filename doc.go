// Package expat binds a WebAssembly build of the expat XML parser to Go.
//
// The parsing itself happens inside libexpat compiled to WASM; this module
// supplies the host side of that arrangement: marshalling bytes and
// callbacks across the WASM boundary, a handle table linking native
// user-data integers back to Go objects, and an event-emitter surface over
// expat's push-style callbacks.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	expat/           Root package with Memory, Status and content model types
//	├── handle/      Integer handle table bridging native user-data to Go objects
//	├── engine/      wazero integration: module loading, the XML_* call surface,
//	│                and the fixed host callback slot table
//	├── parser/      Parser instances, event dispatch and argument marshalling
//	├── errors/      Structured error types for debugging
//	└── cmd/xmlwasm/ CLI event streamer and interactive viewer
//
// # Quick Start
//
// Load a libexpat WASM build and stream events:
//
//	wasm, _ := os.ReadFile("libexpat.wasm")
//	rt, err := parser.NewRuntime(ctx, wasm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	p, err := rt.NewParser(ctx, parser.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Destroy(ctx)
//
//	p.On(parser.EventStartElement, func(args ...any) {
//	    fmt.Println("start:", args[0])
//	})
//	if err := p.Parse(ctx, []byte("<doc/>"), true); err != nil {
//	    log.Fatal(err)
//	}
//
// # Callback Model
//
// Expat can only carry a single integer (user data) through its callback
// registration. The host therefore registers a fixed set of callback slots
// once per engine, and every parser instance is identified by a handle in a
// shared table. When expat fires a callback, the slot recovers the owning
// parser through the table and forwards the decoded event.
//
// All parsing is synchronous and reentrant: events are delivered in
// document order, nested inside the Parse call that produced them.
//
// # Thread Safety
//
// A Runtime and its handle table tolerate concurrent parser creation and
// teardown, but an individual Parser is NOT safe for concurrent use. Feed
// each parser from a single goroutine.
package expat

// Package handle provides the integer handle table that links foreign
// user-data values back to Go objects.
//
// Expat's callback registration can carry exactly one integer per parser.
// Go objects cannot cross that boundary, so each parser registers itself
// here and hands the resulting ID to the engine as user data. When a
// callback fires, the statically registered slot recovers the owner:
//
//	table := handle.NewTable()
//	id := table.Add(myParser)
//	// ... engine stores id as user data ...
//	slot := table.Bind("HandleEvent", "startElement")
//	// later, from inside a callback:
//	slot(id, "foo", attrs)
//
// IDs are dense starting at 0 and freed slots are reissued, matching the
// arena+index strategy: one shared indirection table plus a small fixed
// set of dispatcher functions parameterized by (method, event) at setup
// time, never per instance.
//
// Removal of a non-live ID is an error rather than a no-op; it is the
// host-side analogue of a double free.
package handle

package parser

import "fmt"

// ParseError reports malformed input as seen by the engine: its numeric
// error code, the engine's message for it, and the position at which
// parsing stopped. The owning Parser has already been reset when a
// ParseError is returned; the instance is immediately reusable.
type ParseError struct {
	Code      uint32
	Message   string
	Line      uint64 // 1-based
	Column    uint64 // 0-based
	ByteIndex int64  // -1 before any input
	Base      string // base URI at time of failure, "" when unset
}

func (e *ParseError) Error() string {
	if e.Base != "" {
		return fmt.Sprintf("parse error at %s:%d:%d: %s (code %d)",
			e.Base, e.Line, e.Column, e.Message, e.Code)
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s (code %d)",
		e.Line, e.Column, e.Message, e.Code)
}

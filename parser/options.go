package parser

import (
	"strconv"
	"unicode/utf8"

	"github.com/xmlwasm/expat/errors"
)

// NoNamespaces as the Separator disables namespace processing entirely;
// names arrive exactly as written in the document.
const NoNamespaces = "none"

// DefaultSeparator joins namespace URI, local name and prefix in
// reported names when Separator is left empty.
const DefaultSeparator = "|"

// Resolver fetches the replacement text of an external entity. It must
// be synchronous; the engine cannot tolerate a suspended native call.
// For asynchronous sources, stop the parse resumably, fetch outside the
// callback stack, then resume.
type Resolver func(base, systemID, publicID string) ([]byte, error)

// Options configures one Parser.
type Options struct {
	// Encoding overrides document encoding detection ("UTF-8",
	// "UTF-16", "ISO-8859-1", "US-ASCII"). Empty means autodetect.
	Encoding string

	// Separator is the single rune joining namespace triplet parts,
	// DefaultSeparator when empty, or NoNamespaces. Anything else is
	// rejected.
	Separator string

	// NoExpandInternalEntities suppresses expansion of internal
	// entities; their raw text is reported through the default event
	// instead.
	NoExpandInternalEntities bool

	// Base is the initial base URI for resolving relative system
	// identifiers.
	Base string

	// SystemEntity, when set, resolves external entities. Parameter
	// entity parsing is enabled alongside it.
	SystemEntity Resolver
}

// separator validates Options and returns the separator rune and whether
// namespace processing is on.
func (o Options) separator() (rune, bool, error) {
	switch o.Separator {
	case "":
		r, _ := utf8.DecodeRuneInString(DefaultSeparator)
		return r, true, nil
	case NoNamespaces:
		return 0, false, nil
	}
	if utf8.RuneCountInString(o.Separator) != 1 {
		return 0, false, errors.InvalidInput(errors.PhaseHost,
			"separator must be a single rune or the no-namespaces marker, got "+strconv.Quote(o.Separator))
	}
	r, _ := utf8.DecodeRuneInString(o.Separator)
	return r, true, nil
}

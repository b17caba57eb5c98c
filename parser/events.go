package parser

// Event names delivered to On handlers, with their argument shapes.
const (
	// EventXMLDecl reports the XML declaration as (version string,
	// encoding string, standalone bool). Expat distinguishes an absent
	// standalone pseudo-attribute (-1) from standalone="no" (0); both
	// arrive here as false, true only for an explicit standalone="yes".
	EventXMLDecl = "xmlDecl"
	EventStartDoctypeDecl      = "startDoctypeDecl"      // (name, sysid, pubid string, hasInternalSubset bool)
	EventEndDoctypeDecl        = "endDoctypeDecl"        // ()
	EventElementDecl           = "elementDecl"           // (name string, model *Model)
	EventAttlistDecl           = "attlistDecl"           // (elname, attname, attType, dflt string, isRequired bool)
	EventEntityDecl            = "entityDecl"            // (name string, isParam bool, value any, base, sysid, pubid, notation string); value is string or nil
	EventStartElement          = "startElement"          // (name string, atts Attributes)
	EventEndElement            = "endElement"            // (name string)
	EventCharacterData         = "characterData"         // (text string)
	EventComment               = "comment"               // (text string)
	EventProcessingInstruction = "processingInstruction" // (target, data string)
	EventStartCdataSection     = "startCdataSection"     // ()
	EventEndCdataSection       = "endCdataSection"       // ()
	EventStartNamespaceDecl    = "startNamespaceDecl"    // (prefix, uri string)
	EventEndNamespaceDecl      = "endNamespaceDecl"      // (prefix string)
	EventNotationDecl          = "notationDecl"          // (name, base, sysid, pubid string)
	EventSkippedEntity         = "skippedEntity"         // (name string, isParam bool)
	EventDefault               = "default"               // (text string) markup no other event claimed

	// Synthetic events produced by the binding itself.
	EventError     = "error"     // (*ParseError or error)
	EventStartBase = "startBase" // (uri string) entering external entity resolution
	EventEndBase   = "endBase"   // (uri string) leaving external entity resolution

	// Wildcard receives (event string, args...) immediately after every
	// specific event above, never before it.
	Wildcard = "*"
)

// eventExternalEntityRef is the internal dispatch name for the external
// entity slot. It is not surfaced to consumers; resolution is driven by
// the SystemEntity option and bracketed by startBase/endBase.
const eventExternalEntityRef = "externalEntityRef"

// Attr is one attribute as reported by the engine.
type Attr struct {
	Name  string
	Value string
}

// Attributes preserves document order. The engine de-duplicates names
// itself; if a duplicate does arrive, the later value wins in place.
type Attributes []Attr

// Get returns the value for name and whether it was present.
func (a Attributes) Get(name string) (string, bool) {
	for _, at := range a {
		if at.Name == name {
			return at.Value, true
		}
	}
	return "", false
}

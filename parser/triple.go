package parser

import "strings"

// Name is a namespace-qualified identifier decomposed from the
// separator-joined form a namespace-aware parser reports.
type Name struct {
	URI    string
	Local  string
	Prefix string
}

// SplitName decomposes uri<sep>local<sep>prefix. With namespace triplets
// enabled the engine reports two or three parts for qualified names and
// a bare local name otherwise.
func SplitName(name string, sep rune) Name {
	parts := strings.SplitN(name, string(sep), 3)
	switch len(parts) {
	case 3:
		return Name{URI: parts[0], Local: parts[1], Prefix: parts[2]}
	case 2:
		return Name{URI: parts[0], Local: parts[1]}
	default:
		return Name{Local: name}
	}
}

// Triple splits name using this parser's configured separator.
func (p *Parser) Triple(name string) Name {
	return SplitName(name, p.sep)
}

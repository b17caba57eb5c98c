package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/engine"
	"github.com/xmlwasm/expat/errors"
)

// The fake engine scripts a small subset of XML scanning and delivers
// events through the real engine.Callbacks surface, writing every
// argument into a fake linear memory with real C layouts (NUL-terminated
// strings, NULL-terminated attribute pointer arrays, fixed-stride
// content model records). The decode paths under test are the real ones.

const (
	fakeErrSyntax   = 2
	fakeErrUnclosed = 3
	fakeErrEntity   = 21
	fakeErrAborted  = 35
)

var fakeErrStrings = map[uint32]string{
	fakeErrSyntax:   "syntax error",
	fakeErrUnclosed: "unclosed token",
	fakeErrEntity:   "error in processing external entity reference",
	fakeErrAborted:  "parsing aborted",
}

type fakeMemory struct {
	buf  []byte
	next uint32
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{buf: make([]byte, 1<<20), next: 16}
}

func (m *fakeMemory) alloc(n uint32) uint32 {
	p := m.next
	m.next += (n + 3) &^ 3
	for uint32(len(m.buf)) < m.next {
		m.buf = append(m.buf, make([]byte, len(m.buf))...)
	}
	return p
}

func (m *fakeMemory) cstr(s string) uint32 {
	p := m.alloc(uint32(len(s) + 1))
	copy(m.buf[p:], s)
	m.buf[p+uint32(len(s))] = 0
	return p
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *fakeMemory) Read(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	return m.buf[offset : offset+length], nil
}

func (m *fakeMemory) Write(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(m.buf)) {
		return errors.OutOfBounds(errors.PhaseDecode, offset, uint32(len(data)))
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *fakeMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *fakeMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (m *fakeMemory) WriteU32(offset, value uint32) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)})
}

var (
	_ expat.Memory      = (*fakeMemory)(nil)
	_ expat.MemorySizer = (*fakeMemory)(nil)
)

type fakeParser struct {
	ud         int32
	namespaces bool
	sep        rune
	triplet    bool
	pemMode    uint32
	expand     bool
	base       string
	isEntity   bool
	freed      bool

	doc      []byte
	pos      int
	depth    int
	seenRoot bool
	final    bool

	errCode uint32
	errPos  int

	suspendReq bool
	aborted    bool
	suspended  bool

	userDataSets int
	handlerSets  int
	resets       int
}

type fakeEngine struct {
	mem      *fakeMemory
	cb       engine.Callbacks
	parsers  map[expat.Ptr]*fakeParser
	external map[string]string // entity name -> system id

	parserFrees []expat.Ptr
	modelFrees  []uint32
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		mem:      newFakeMemory(),
		parsers:  make(map[expat.Ptr]*fakeParser),
		external: make(map[string]string),
	}
}

var _ Engine = (*fakeEngine)(nil)

func (e *fakeEngine) BindCallbacks(ctx context.Context, cb engine.Callbacks) error {
	e.cb = cb
	return nil
}

func (e *fakeEngine) Close(ctx context.Context) error { return nil }

func (e *fakeEngine) at(p expat.Ptr) (*fakeParser, error) {
	fp, ok := e.parsers[p]
	if !ok || fp.freed {
		return nil, fmt.Errorf("no parser at %d", p)
	}
	return fp, nil
}

func (e *fakeEngine) ParserCreate(ctx context.Context, encoding string, sep rune, namespaces bool) (expat.Ptr, error) {
	ptr := e.mem.alloc(8)
	e.parsers[ptr] = &fakeParser{namespaces: namespaces, sep: sep, expand: true}
	return ptr, nil
}

func (e *fakeEngine) ParserReset(ctx context.Context, p expat.Ptr, encoding string) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	if fp.isEntity {
		return fmt.Errorf("cannot reset external entity parser")
	}
	// a real reset clears handlers and user data but the registration
	// counters are test bookkeeping, cumulative across resets
	*fp = fakeParser{
		namespaces:   fp.namespaces,
		sep:          fp.sep,
		expand:       true,
		resets:       fp.resets + 1,
		userDataSets: fp.userDataSets,
		handlerSets:  fp.handlerSets,
	}
	return nil
}

func (e *fakeEngine) ParserFree(ctx context.Context, p expat.Ptr) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	fp.freed = true
	e.parserFrees = append(e.parserFrees, p)
	return nil
}

func (e *fakeEngine) SetUserData(ctx context.Context, p expat.Ptr, ud int32) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	fp.ud = ud
	fp.userDataSets++
	// user data lives in the first word of the parser struct
	return e.mem.WriteU32(p, uint32(ud))
}

func (e *fakeEngine) SetHandlers(ctx context.Context, p expat.Ptr, expand bool) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	fp.expand = expand
	fp.handlerSets++
	return nil
}

func (e *fakeEngine) SetReturnNSTriplet(ctx context.Context, p expat.Ptr, on bool) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	fp.triplet = on
	return nil
}

func (e *fakeEngine) SetParamEntityParsing(ctx context.Context, p expat.Ptr, mode uint32) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	fp.pemMode = mode
	return nil
}

func (e *fakeEngine) SetBase(ctx context.Context, p expat.Ptr, base string) error {
	fp, err := e.at(p)
	if err != nil {
		return err
	}
	fp.base = base
	return nil
}

func (e *fakeEngine) Base(ctx context.Context, p expat.Ptr) (string, error) {
	fp, err := e.at(p)
	if err != nil {
		return "", err
	}
	return fp.base, nil
}

func (e *fakeEngine) Parse(ctx context.Context, p expat.Ptr, chunk []byte, final bool) (expat.Status, error) {
	fp, err := e.at(p)
	if err != nil {
		return expat.StatusError, err
	}
	fp.doc = append(fp.doc, chunk...)
	if final {
		fp.final = true
	}
	return e.scan(ctx, p, fp), nil
}

func (e *fakeEngine) StopParser(ctx context.Context, p expat.Ptr, resumable bool) (expat.Status, error) {
	fp, err := e.at(p)
	if err != nil {
		return expat.StatusError, err
	}
	if resumable {
		fp.suspendReq = true
	} else {
		fp.aborted = true
	}
	return expat.StatusOK, nil
}

func (e *fakeEngine) ResumeParser(ctx context.Context, p expat.Ptr) (expat.Status, error) {
	fp, err := e.at(p)
	if err != nil {
		return expat.StatusError, err
	}
	if !fp.suspended {
		return expat.StatusError, nil
	}
	fp.suspended = false
	return e.scan(ctx, p, fp), nil
}

func (e *fakeEngine) ErrorCode(ctx context.Context, p expat.Ptr) (uint32, error) {
	fp, err := e.at(p)
	if err != nil {
		return 0, err
	}
	return fp.errCode, nil
}

func (e *fakeEngine) ErrorString(ctx context.Context, code uint32) (string, error) {
	return fakeErrStrings[code], nil
}

func (e *fakeEngine) CurrentLine(ctx context.Context, p expat.Ptr) (uint64, error) {
	fp, err := e.at(p)
	if err != nil {
		return 0, err
	}
	return uint64(strings.Count(string(fp.doc[:fp.errPos]), "\n")) + 1, nil
}

func (e *fakeEngine) CurrentColumn(ctx context.Context, p expat.Ptr) (uint64, error) {
	fp, err := e.at(p)
	if err != nil {
		return 0, err
	}
	head := string(fp.doc[:fp.errPos])
	if i := strings.LastIndexByte(head, '\n'); i >= 0 {
		return uint64(len(head) - i - 1), nil
	}
	return uint64(len(head)), nil
}

func (e *fakeEngine) CurrentByteIndex(ctx context.Context, p expat.Ptr) (int64, error) {
	fp, err := e.at(p)
	if err != nil {
		return -1, err
	}
	return int64(fp.errPos), nil
}

func (e *fakeEngine) ExternalEntityParserCreate(ctx context.Context, p expat.Ptr, context_ uint32, encoding string) (expat.Ptr, error) {
	fp, err := e.at(p)
	if err != nil {
		return 0, err
	}
	sub := e.mem.alloc(8)
	e.parsers[sub] = &fakeParser{
		ud:       fp.ud,
		isEntity: true,
		expand:   fp.expand,
		base:     fp.base,
		depth:    1, // entity content is nested, bare text is legal
	}
	if err := e.mem.WriteU32(sub, uint32(fp.ud)); err != nil {
		return 0, err
	}
	return sub, nil
}

func (e *fakeEngine) FreeContentModel(ctx context.Context, p expat.Ptr, model uint32) error {
	e.modelFrees = append(e.modelFrees, model)
	return nil
}

// scan consumes complete tokens from the unread document tail, firing
// callbacks as it goes. Incomplete trailing tokens wait for more input
// unless the feed was final.
func (e *fakeEngine) scan(ctx context.Context, ptr expat.Ptr, fp *fakeParser) expat.Status {
	fail := func(code uint32, at int) expat.Status {
		fp.errCode = code
		fp.errPos = at
		return expat.StatusError
	}

	for {
		if fp.aborted {
			return fail(fakeErrAborted, fp.pos)
		}
		if fp.suspendReq {
			fp.suspendReq = false
			fp.suspended = true
			return expat.StatusSuspended
		}

		rest := fp.doc[fp.pos:]
		if len(rest) == 0 {
			return expat.StatusOK
		}

		if rest[0] != '<' {
			end := strings.IndexByte(string(rest), '<')
			if end < 0 {
				if !fp.final {
					return expat.StatusOK
				}
				end = len(rest)
			}
			text := string(rest[:end])
			if fp.depth == 0 {
				if strings.TrimSpace(text) != "" {
					return fail(fakeErrSyntax, fp.pos+indexNonSpace(text))
				}
			} else if st := e.text(ctx, ptr, fp, text); st != expat.StatusOK {
				return st
			}
			fp.pos += end
			continue
		}

		tok, n, complete := cutMarkup(rest)
		if !complete {
			if !fp.final {
				return expat.StatusOK
			}
			return fail(fakeErrUnclosed, fp.pos)
		}
		if st := e.markup(ctx, ptr, fp, tok); st != expat.StatusOK {
			return st
		}
		fp.pos += n
	}
}

func indexNonSpace(s string) int {
	for i, r := range s {
		if !strings.ContainsRune(" \t\r\n", r) {
			return i
		}
	}
	return 0
}

// cutMarkup returns the markup token starting at '<' and its length.
func cutMarkup(rest []byte) (string, int, bool) {
	s := string(rest)
	switch {
	case strings.HasPrefix(s, "<!--"):
		if i := strings.Index(s, "-->"); i >= 0 {
			return s[:i+3], i + 3, true
		}
	case strings.HasPrefix(s, "<![CDATA["):
		if i := strings.Index(s, "]]>"); i >= 0 {
			return s[:i+3], i + 3, true
		}
	case strings.HasPrefix(s, "<!DOCTYPE"):
		depth := 0
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '[':
				depth++
			case ']':
				depth--
			case '>':
				if depth == 0 {
					return s[:i+1], i + 1, true
				}
			}
		}
	default:
		if i := strings.IndexByte(s, '>'); i >= 0 {
			return s[:i+1], i + 1, true
		}
	}
	return "", 0, false
}

// text fires character data, resolving registered external entity
// references through the external_entity_ref slot.
func (e *fakeEngine) text(ctx context.Context, ptr expat.Ptr, fp *fakeParser, text string) expat.Status {
	for text != "" {
		amp := strings.IndexByte(text, '&')
		if amp < 0 {
			break
		}
		semi := strings.IndexByte(text[amp:], ';')
		if semi < 0 {
			break
		}
		name := text[amp+1 : amp+semi]
		sysid, ok := e.external[name]
		if !ok {
			break
		}
		if amp > 0 {
			e.chardata(ctx, fp, text[:amp])
		}
		st := e.entityRef(ctx, ptr, fp, name, sysid)
		if st != expat.StatusOK {
			return st
		}
		text = text[amp+semi+1:]
	}
	if text != "" {
		e.chardata(ctx, fp, text)
	}
	return expat.StatusOK
}

func (e *fakeEngine) chardata(ctx context.Context, fp *fakeParser, text string) {
	p := e.mem.alloc(uint32(len(text)))
	copy(e.mem.buf[p:], text)
	e.cb.CharacterData(ctx, e.mem, fp.ud, p, uint32(len(text)))
}

func (e *fakeEngine) entityRef(ctx context.Context, ptr expat.Ptr, fp *fakeParser, name, sysid string) expat.Status {
	var basePtr uint32
	if fp.base != "" {
		basePtr = e.mem.cstr(fp.base)
	}
	st := e.cb.ExternalEntityRef(ctx, e.mem, ptr, e.mem.cstr(name), basePtr, e.mem.cstr(sysid), 0)
	if st == 0 {
		fp.errCode = fakeErrEntity
		fp.errPos = fp.pos
		return expat.StatusError
	}
	return expat.StatusOK
}

func (e *fakeEngine) markup(ctx context.Context, ptr expat.Ptr, fp *fakeParser, tok string) expat.Status {
	switch {
	case strings.HasPrefix(tok, "<?xml "), strings.HasPrefix(tok, "<?xml?"):
		body := strings.TrimSuffix(strings.TrimPrefix(tok, "<?xml"), "?>")
		attrs := parseAttrs(body)
		version, _ := attrs.Get("version")
		encoding, _ := attrs.Get("encoding")
		standalone := int32(-1)
		if sa, ok := attrs.Get("standalone"); ok {
			standalone = 0
			if sa == "yes" {
				standalone = 1
			}
		}
		var encPtr uint32
		if encoding != "" {
			encPtr = e.mem.cstr(encoding)
		}
		e.cb.XMLDecl(ctx, e.mem, fp.ud, e.mem.cstr(version), encPtr, standalone)

	case strings.HasPrefix(tok, "<?"):
		body := strings.TrimSuffix(strings.TrimPrefix(tok, "<?"), "?>")
		target, data, _ := strings.Cut(body, " ")
		e.cb.ProcessingInstruction(ctx, e.mem, fp.ud, e.mem.cstr(target), e.mem.cstr(data))

	case strings.HasPrefix(tok, "<!--"):
		body := strings.TrimSuffix(strings.TrimPrefix(tok, "<!--"), "-->")
		e.cb.Comment(ctx, e.mem, fp.ud, e.mem.cstr(body))

	case strings.HasPrefix(tok, "<![CDATA["):
		body := strings.TrimSuffix(strings.TrimPrefix(tok, "<![CDATA["), "]]>")
		e.cb.StartCdataSection(ctx, e.mem, fp.ud)
		e.chardata(ctx, fp, body)
		e.cb.EndCdataSection(ctx, e.mem, fp.ud)

	case strings.HasPrefix(tok, "<!DOCTYPE"):
		return e.doctype(ctx, ptr, fp, tok)

	case strings.HasPrefix(tok, "</"):
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(tok, "</"), ">"))
		e.cb.EndElement(ctx, e.mem, fp.ud, e.mem.cstr(name))
		fp.depth--

	default:
		body := strings.TrimSuffix(strings.TrimPrefix(tok, "<"), ">")
		selfClose := strings.HasSuffix(body, "/")
		if selfClose {
			body = strings.TrimSuffix(body, "/")
		}
		name, rest, _ := strings.Cut(strings.TrimSpace(body), " ")
		attrs := parseAttrs(rest)

		attsPtr := e.mem.alloc(uint32(8 * (len(attrs) + 1)))
		for i, at := range attrs {
			e.mem.WriteU32(attsPtr+uint32(8*i), e.mem.cstr(at.Name))
			e.mem.WriteU32(attsPtr+uint32(8*i+4), e.mem.cstr(at.Value))
		}
		e.mem.WriteU32(attsPtr+uint32(8*len(attrs)), 0)

		fp.seenRoot = true
		fp.depth++
		e.cb.StartElement(ctx, e.mem, fp.ud, e.mem.cstr(name), attsPtr)
		if selfClose {
			e.cb.EndElement(ctx, e.mem, fp.ud, e.mem.cstr(name))
			fp.depth--
		}
	}
	return expat.StatusOK
}

func (e *fakeEngine) doctype(ctx context.Context, ptr expat.Ptr, fp *fakeParser, tok string) expat.Status {
	body := strings.TrimSuffix(strings.TrimPrefix(tok, "<!DOCTYPE"), ">")
	var subset string
	if i := strings.IndexByte(body, '['); i >= 0 {
		subset = body[i+1 : strings.LastIndexByte(body, ']')]
		body = body[:i]
	}
	fields := strings.Fields(body)
	name := ""
	sysid := ""
	if len(fields) > 0 {
		name = fields[0]
	}
	if len(fields) >= 3 && fields[1] == "SYSTEM" {
		sysid = strings.Trim(fields[2], `"`)
	}

	var sysidPtr uint32
	if sysid != "" {
		sysidPtr = e.mem.cstr(sysid)
	}
	hasInternal := int32(0)
	if subset != "" {
		hasInternal = 1
	}
	e.cb.StartDoctypeDecl(ctx, e.mem, fp.ud, e.mem.cstr(name), sysidPtr, 0, hasInternal)

	for _, decl := range splitDecls(subset) {
		switch {
		case strings.HasPrefix(decl, "<!ELEMENT"):
			rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(decl, "<!ELEMENT"), ">"))
			elname, spec, _ := strings.Cut(rest, " ")
			modelPtr := e.writeModel(parseContentSpec(strings.TrimSpace(spec)))
			e.cb.ElementDecl(ctx, e.mem, fp.ud, e.mem.cstr(elname), modelPtr)

		case strings.HasPrefix(decl, "<!ENTITY"):
			rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(decl, "<!ENTITY"), ">"))
			ename, def, _ := strings.Cut(rest, " ")
			def = strings.TrimSpace(def)
			if strings.HasPrefix(def, "SYSTEM") {
				esysid := strings.Trim(strings.TrimSpace(strings.TrimPrefix(def, "SYSTEM")), `"`)
				e.external[ename] = esysid
				e.cb.EntityDecl(ctx, e.mem, fp.ud, e.mem.cstr(ename), 0, 0, 0, 0, e.mem.cstr(esysid), 0, 0)
			} else {
				val := strings.Trim(def, `"`)
				vp := e.mem.alloc(uint32(len(val)))
				copy(e.mem.buf[vp:], val)
				e.cb.EntityDecl(ctx, e.mem, fp.ud, e.mem.cstr(ename), 0, vp, uint32(len(val)), 0, 0, 0, 0)
			}
		}
	}

	e.cb.EndDoctypeDecl(ctx, e.mem, fp.ud)
	return expat.StatusOK
}

func splitDecls(subset string) []string {
	var out []string
	for {
		i := strings.Index(subset, "<!")
		if i < 0 {
			return out
		}
		j := strings.IndexByte(subset[i:], '>')
		if j < 0 {
			return out
		}
		out = append(out, subset[i:i+j+1])
		subset = subset[i+j+1:]
	}
}

func parseAttrs(s string) Attributes {
	var out Attributes
	s = strings.TrimSpace(s)
	for s != "" {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		name := strings.TrimSpace(s[:eq])
		rest := strings.TrimSpace(s[eq+1:])
		if len(rest) < 2 || rest[0] != '"' {
			break
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			break
		}
		out = append(out, Attr{Name: name, Value: rest[1 : 1+end]})
		s = strings.TrimSpace(rest[end+2:])
	}
	return out
}

// cmNode mirrors the XML_Content record for serialization.
type cmNode struct {
	typ      expat.ContentType
	quant    expat.Quantifier
	name     string
	children []*cmNode
}

func parseContentSpec(s string) *cmNode {
	s = strings.TrimSpace(s)
	quant := expat.QuantNone
	switch {
	case strings.HasSuffix(s, "?"):
		quant, s = expat.QuantOptional, s[:len(s)-1]
	case strings.HasSuffix(s, "*"):
		quant, s = expat.QuantRepeat, s[:len(s)-1]
	case strings.HasSuffix(s, "+"):
		quant, s = expat.QuantPlus, s[:len(s)-1]
	}

	switch s {
	case "EMPTY":
		return &cmNode{typ: expat.ContentEmpty}
	case "ANY":
		return &cmNode{typ: expat.ContentAny}
	}

	if strings.HasPrefix(s, "(") {
		inner := s[1 : len(s)-1]
		sep := ","
		typ := expat.ContentSeq
		if strings.ContainsRune(inner, '|') {
			sep, typ = "|", expat.ContentChoice
		}
		node := &cmNode{typ: typ, quant: quant}
		for _, part := range strings.Split(inner, sep) {
			node.children = append(node.children, parseContentSpec(part))
		}
		return node
	}
	return &cmNode{typ: expat.ContentName, quant: quant, name: s}
}

func (e *fakeEngine) writeModel(n *cmNode) uint32 {
	ptr := e.mem.alloc(20)
	e.fillModel(ptr, n)
	return ptr
}

func (e *fakeEngine) fillModel(ptr uint32, n *cmNode) {
	e.mem.WriteU32(ptr, uint32(n.typ))
	e.mem.WriteU32(ptr+4, uint32(n.quant))
	if n.name != "" {
		e.mem.WriteU32(ptr+8, e.mem.cstr(n.name))
	} else {
		e.mem.WriteU32(ptr+8, 0)
	}
	e.mem.WriteU32(ptr+12, uint32(len(n.children)))
	if len(n.children) == 0 {
		e.mem.WriteU32(ptr+16, 0)
		return
	}
	base := e.mem.alloc(uint32(20 * len(n.children)))
	e.mem.WriteU32(ptr+16, base)
	for i, child := range n.children {
		e.fillModel(base+uint32(20*i), child)
	}
}

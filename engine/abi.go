package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/errors"
)

// Typed wrappers over the guest's C ABI. Pointer-sized values are 32-bit;
// everything crosses the boundary as uint64 stack slots.

func b2i(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// writeCString copies s NUL-terminated into guest memory via malloc.
// Callers must release the returned pointer with freeCString. A zero
// return with nil error means s was empty and NULL should be passed.
func (e *Engine) writeCString(ctx context.Context, s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	ptr, err := e.call(ctx, fnMalloc, uint64(len(s)+1))
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("malloc(%d) returned NULL", len(s)+1).Build()
	}
	p := uint32(ptr)
	if err := e.mem.Write(p, append([]byte(s), 0)); err != nil {
		e.freeCString(ctx, p)
		return 0, err
	}
	return p, nil
}

func (e *Engine) freeCString(ctx context.Context, ptr uint32) {
	if ptr == 0 {
		return
	}
	if _, err := e.call(ctx, fnFree, uint64(ptr)); err != nil {
		e.logger.Warn("free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

// cstring decodes a NUL-terminated guest string, mapping NULL to "".
func (e *Engine) cstring(ptr uint32) (string, error) {
	s, _, err := expat.CString(e.mem, ptr)
	return s, err
}

// ParserCreate creates a parser. A namespace-aware parser is created with
// sep as the URI/local-name separator; otherwise sep is ignored.
func (e *Engine) ParserCreate(ctx context.Context, encoding string, sep rune, namespaces bool) (expat.Ptr, error) {
	enc, err := e.writeCString(ctx, encoding)
	if err != nil {
		return 0, err
	}
	defer e.freeCString(ctx, enc)

	var p uint64
	if namespaces {
		p, err = e.call(ctx, fnParserCreateNS, uint64(enc), uint64(uint32(sep)))
	} else {
		p, err = e.call(ctx, fnParserCreate, uint64(enc))
	}
	if err != nil {
		return 0, err
	}
	if p == 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("XML_ParserCreate returned NULL").Build()
	}
	return expat.Ptr(p), nil
}

// ParserReset prepares p for a fresh document. Expat clears all handlers
// and user data on reset; callers re-register afterwards.
func (e *Engine) ParserReset(ctx context.Context, p expat.Ptr, encoding string) error {
	enc, err := e.writeCString(ctx, encoding)
	if err != nil {
		return err
	}
	defer e.freeCString(ctx, enc)

	ok, err := e.call(ctx, fnParserReset, uint64(p), uint64(enc))
	if err != nil {
		return err
	}
	if ok == 0 {
		return errors.InvalidInput(errors.PhaseRuntime, "XML_ParserReset rejected parser (external entity parsers cannot be reset)")
	}
	return nil
}

// ParserFree releases the native parser struct.
func (e *Engine) ParserFree(ctx context.Context, p expat.Ptr) error {
	_, err := e.call(ctx, fnParserFree, uint64(p))
	return err
}

// SetUserData stores ud on the parser; it is the integer every callback
// slot (except external_entity_ref) receives back.
func (e *Engine) SetUserData(ctx context.Context, p expat.Ptr, ud int32) error {
	_, err := e.call(ctx, fnSetUserData, uint64(p), uint64(uint32(ud)))
	return err
}

// SetHandlers installs the shim trampoline for every event kind on p.
// expandInternalEntities selects which default-handler variant is used:
// the expanding one reports unhandled markup but lets expat expand
// internal entities, the plain one suppresses expansion.
func (e *Engine) SetHandlers(ctx context.Context, p expat.Ptr, expandInternalEntities bool) error {
	for _, name := range handlerSetters {
		if _, err := e.call(ctx, name, uint64(p)); err != nil {
			return err
		}
	}
	variant := setDefaultExpand
	if !expandInternalEntities {
		variant = setDefault
	}
	_, err := e.call(ctx, variant, uint64(p))
	return err
}

// SetReturnNSTriplet makes namespace-aware parsers report
// uri<sep>local<sep>prefix instead of uri<sep>local.
func (e *Engine) SetReturnNSTriplet(ctx context.Context, p expat.Ptr, on bool) error {
	_, err := e.call(ctx, fnSetReturnNSTriplet, uint64(p), b2i(on))
	return err
}

// SetParamEntityParsing controls whether parameter entities (and thus
// external DTDs) are parsed. Mode is one of the expat.ParamEntity values.
func (e *Engine) SetParamEntityParsing(ctx context.Context, p expat.Ptr, mode uint32) error {
	_, err := e.call(ctx, fnSetParamEntityParsing, uint64(p), uint64(mode))
	return err
}

// SetBase sets the base URI used to resolve relative system identifiers.
// Expat copies the string, so the transfer buffer is freed immediately.
func (e *Engine) SetBase(ctx context.Context, p expat.Ptr, base string) error {
	b, err := e.writeCString(ctx, base)
	if err != nil {
		return err
	}
	defer e.freeCString(ctx, b)

	ok, err := e.call(ctx, fnSetBase, uint64(p), uint64(b))
	if err != nil {
		return err
	}
	if ok == 0 {
		return errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("XML_SetBase out of memory").Build()
	}
	return nil
}

// Base returns the parser's current base URI, "" when unset.
func (e *Engine) Base(ctx context.Context, p expat.Ptr) (string, error) {
	ptr, err := e.call(ctx, fnGetBase, uint64(p))
	if err != nil {
		return "", err
	}
	return e.cstring(uint32(ptr))
}

// Parse feeds one chunk through the parser's own buffer
// (XML_GetBuffer + XML_ParseBuffer) and returns expat's tri-state status.
// An error return means the boundary itself failed, not the document.
func (e *Engine) Parse(ctx context.Context, p expat.Ptr, chunk []byte, final bool) (expat.Status, error) {
	if len(chunk) > 0 {
		buf, err := e.call(ctx, fnGetBuffer, uint64(p), uint64(len(chunk)))
		if err != nil {
			return expat.StatusError, err
		}
		if buf == 0 {
			return expat.StatusError, errors.New(errors.PhaseRuntime, errors.KindAllocation).
				Detail("XML_GetBuffer(%d) returned NULL", len(chunk)).Build()
		}
		if err := e.mem.Write(uint32(buf), chunk); err != nil {
			return expat.StatusError, err
		}
	}

	st, err := e.call(ctx, fnParseBuffer, uint64(p), uint64(len(chunk)), b2i(final))
	if err != nil {
		return expat.StatusError, err
	}
	return expat.Status(int32(st)), nil
}

// StopParser aborts the current feed from inside or outside a callback.
// With resumable set, ResumeParser may continue later.
func (e *Engine) StopParser(ctx context.Context, p expat.Ptr, resumable bool) (expat.Status, error) {
	st, err := e.call(ctx, fnStopParser, uint64(p), b2i(resumable))
	if err != nil {
		return expat.StatusError, err
	}
	return expat.Status(int32(st)), nil
}

// ResumeParser continues a suspended parse from its internal position.
func (e *Engine) ResumeParser(ctx context.Context, p expat.Ptr) (expat.Status, error) {
	st, err := e.call(ctx, fnResume, uint64(p))
	if err != nil {
		return expat.StatusError, err
	}
	return expat.Status(int32(st)), nil
}

// ErrorCode returns the engine's numeric error code for the last failure.
func (e *Engine) ErrorCode(ctx context.Context, p expat.Ptr) (uint32, error) {
	code, err := e.call(ctx, fnGetErrorCode, uint64(p))
	return uint32(code), err
}

// ErrorString returns expat's message for a numeric error code.
func (e *Engine) ErrorString(ctx context.Context, code uint32) (string, error) {
	ptr, err := e.call(ctx, fnErrorString, uint64(code))
	if err != nil {
		return "", err
	}
	return e.cstring(uint32(ptr))
}

// CurrentLine reports the 1-based line of the current parse position.
func (e *Engine) CurrentLine(ctx context.Context, p expat.Ptr) (uint64, error) {
	v, err := e.call(ctx, fnGetCurrentLine, uint64(p))
	return uint64(uint32(v)), err
}

// CurrentColumn reports the 0-based column of the current parse position.
func (e *Engine) CurrentColumn(ctx context.Context, p expat.Ptr) (uint64, error) {
	v, err := e.call(ctx, fnGetCurrentColumn, uint64(p))
	return uint64(uint32(v)), err
}

// CurrentByteIndex reports the byte offset of the current parse position,
// -1 before any input.
func (e *Engine) CurrentByteIndex(ctx context.Context, p expat.Ptr) (int64, error) {
	v, err := e.call(ctx, fnGetByteIndex, uint64(p))
	return int64(int32(uint32(v))), err
}

// ExternalEntityParserCreate creates the short-lived nested parser used
// during external entity resolution. context is the raw context pointer
// handed to the external_entity_ref slot; handlers and user data are
// inherited from p.
func (e *Engine) ExternalEntityParserCreate(ctx context.Context, p expat.Ptr, context_ uint32, encoding string) (expat.Ptr, error) {
	enc, err := e.writeCString(ctx, encoding)
	if err != nil {
		return 0, err
	}
	defer e.freeCString(ctx, enc)

	sub, err := e.call(ctx, fnExternalEntityParserCreate, uint64(p), uint64(context_), uint64(enc))
	if err != nil {
		return 0, err
	}
	if sub == 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("XML_ExternalEntityParserCreate returned NULL").Build()
	}
	return expat.Ptr(sub), nil
}

// FreeContentModel releases the native content-model tree handed to the
// element_decl slot. The tree is a manual allocation; skipping this call
// leaks guest memory.
func (e *Engine) FreeContentModel(ctx context.Context, p expat.Ptr, model uint32) error {
	_, err := e.call(ctx, fnFreeContentModel, uint64(p), uint64(model))
	return err
}

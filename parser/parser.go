package parser

import (
	"context"

	"go.uber.org/zap"

	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/errors"
	"github.com/xmlwasm/expat/handle"
)

// defaultChunkSize is how much of a feed goes through the guest buffer
// at once. Larger feeds are split preserving byte order; only the true
// last sub-chunk carries the final flag.
const defaultChunkSize = 1 << 20

type state int

const (
	stateActive state = iota
	stateSuspended
	stateStopped
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateSuspended:
		return "suspended"
	case stateStopped:
		return "stopped"
	case stateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Handler receives one event's decoded arguments. Wildcard handlers
// receive the event name first.
type Handler func(args ...any)

// Parser wraps one foreign parser pointer. All event delivery happens
// synchronously inside Parse, in document order; handlers may call Stop
// or Destroy from within a delivery (the callback stack is reentrant).
//
// Parsers are not safe for concurrent use.
type Parser struct {
	rt  *Runtime
	eng Engine
	ptr expat.Ptr
	id  handle.ID

	opts       Options
	sep        rune
	namespaces bool

	state     state
	chunkSize int

	// bytes withheld from the engine while suspended
	pending      []byte
	pendingFinal bool

	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewParser creates a parser, registers it in the runtime's handle table
// and installs the callback slots on the foreign side.
func (r *Runtime) NewParser(ctx context.Context, opts Options) (*Parser, error) {
	sep, namespaces, err := opts.separator()
	if err != nil {
		return nil, err
	}

	ptr, err := r.eng.ParserCreate(ctx, opts.Encoding, sep, namespaces)
	if err != nil {
		return nil, err
	}

	p := &Parser{
		rt:         r,
		eng:        r.eng,
		ptr:        ptr,
		opts:       opts,
		sep:        sep,
		namespaces: namespaces,
		state:      stateActive,
		chunkSize:  defaultChunkSize,
		handlers:   make(map[string][]Handler),
		logger:     r.logger,
	}
	p.id = r.table.Add(p)

	if err := p.register(ctx); err != nil {
		if rerr := r.table.Remove(p.id); rerr != nil {
			r.logger.Warn("handle cleanup failed", zap.Error(rerr))
		}
		if ferr := r.eng.ParserFree(ctx, ptr); ferr != nil {
			r.logger.Warn("parser cleanup failed", zap.Error(ferr))
		}
		return nil, err
	}
	return p, nil
}

// register installs everything expat clears on reset: user data, the
// trampolines, and the option-derived parser modes.
func (p *Parser) register(ctx context.Context) error {
	if err := p.eng.SetUserData(ctx, p.ptr, int32(p.id)); err != nil {
		return err
	}
	if err := p.eng.SetHandlers(ctx, p.ptr, !p.opts.NoExpandInternalEntities); err != nil {
		return err
	}
	if p.namespaces {
		if err := p.eng.SetReturnNSTriplet(ctx, p.ptr, true); err != nil {
			return err
		}
	}
	if p.opts.SystemEntity != nil {
		if err := p.eng.SetParamEntityParsing(ctx, p.ptr, expat.ParamEntityAlways); err != nil {
			return err
		}
	}
	if p.opts.Base != "" {
		if err := p.eng.SetBase(ctx, p.ptr, p.opts.Base); err != nil {
			return err
		}
	}
	return nil
}

// On subscribes h to event. Subscribing to Wildcard observes every
// specific event, immediately after it, with the event name prepended
// to the arguments.
func (p *Parser) On(event string, h Handler) {
	p.handlers[event] = append(p.handlers[event], h)
}

func (p *Parser) emit(event string, args ...any) {
	for _, h := range p.handlers[event] {
		h(args...)
	}
	if event == Wildcard {
		return
	}
	if ws := p.handlers[Wildcard]; len(ws) > 0 {
		wargs := make([]any, 0, len(args)+1)
		wargs = append(wargs, event)
		wargs = append(wargs, args...)
		for _, h := range ws {
			h(wargs...)
		}
	}
}

// Parse feeds data. Events fire synchronously before Parse returns.
// final marks the end of the document; a successful final parse
// implicitly resets the parser so the next Parse starts a new document.
//
// Malformed input returns a *ParseError and emits the error event; the
// parser has already been reset when Parse returns.
func (p *Parser) Parse(ctx context.Context, data []byte, final bool) error {
	if p.state != stateActive {
		return errors.InvalidState("parse", p.state.String())
	}
	return p.feed(ctx, data, final)
}

func (p *Parser) feed(ctx context.Context, data []byte, final bool) error {
	for {
		chunk := data
		last := true
		if len(chunk) > p.chunkSize {
			chunk = data[:p.chunkSize]
			last = false
		}

		st, err := p.eng.Parse(ctx, p.ptr, chunk, final && last)
		if err != nil {
			return err
		}
		data = data[len(chunk):]

		switch st {
		case expat.StatusSuspended:
			p.state = stateSuspended
			p.pending = data
			p.pendingFinal = final
			return nil
		case expat.StatusError:
			return p.failParse(ctx)
		}

		// a callback may have stopped or destroyed the parser without
		// the engine reporting it on this chunk
		if p.state != stateActive {
			if p.state == stateSuspended {
				p.pending = data
				p.pendingFinal = final
			}
			return nil
		}
		if last {
			break
		}
	}

	if final && p.state == stateActive {
		return p.reset(ctx)
	}
	return nil
}

// failParse turns the engine's error state into a *ParseError. Unless
// the failure was a caller-initiated terminal stop, the error event
// fires and the parser auto-resets for reuse.
func (p *Parser) failParse(ctx context.Context) error {
	perr := p.parseErrorAt(ctx, p.ptr)
	if p.state == stateStopped {
		return perr
	}
	p.emit(EventError, perr)
	if err := p.reset(ctx); err != nil {
		p.logger.Warn("reset after parse error failed", zap.Error(err))
	}
	return perr
}

func (p *Parser) parseErrorAt(ctx context.Context, ptr expat.Ptr) *ParseError {
	pe := &ParseError{ByteIndex: -1}
	if code, err := p.eng.ErrorCode(ctx, ptr); err == nil {
		pe.Code = code
		if msg, err := p.eng.ErrorString(ctx, code); err == nil {
			pe.Message = msg
		}
	}
	if line, err := p.eng.CurrentLine(ctx, ptr); err == nil {
		pe.Line = line
	}
	if col, err := p.eng.CurrentColumn(ctx, ptr); err == nil {
		pe.Column = col
	}
	if idx, err := p.eng.CurrentByteIndex(ctx, ptr); err == nil {
		pe.ByteIndex = idx
	}
	if base, err := p.eng.Base(ctx, ptr); err == nil {
		pe.Base = base
	}
	return pe
}

// Reset discards parse progress and starts a fresh document with the
// same options. Allowed while active or suspended; a terminally stopped
// or destroyed parser stays unusable.
func (p *Parser) Reset(ctx context.Context) error {
	switch p.state {
	case stateStopped, stateDestroyed:
		return errors.InvalidState("reset", p.state.String())
	}
	return p.reset(ctx)
}

func (p *Parser) reset(ctx context.Context) error {
	if err := p.eng.ParserReset(ctx, p.ptr, p.opts.Encoding); err != nil {
		return err
	}
	p.state = stateActive
	p.pending = nil
	p.pendingFinal = false
	// reset cleared handlers and user data on the foreign side
	return p.register(ctx)
}

// Stop aborts the current feed; callable from inside an event handler.
// A resumable stop suspends the parser for a later Resume; a terminal
// stop leaves it unusable for further feeds until Destroy.
func (p *Parser) Stop(ctx context.Context, resumable bool) error {
	if p.state != stateActive {
		return errors.InvalidState("stop", p.state.String())
	}
	st, err := p.eng.StopParser(ctx, p.ptr, resumable)
	if err != nil {
		return err
	}
	if st != expat.StatusOK {
		return errors.InvalidState("stop", "engine refused stop")
	}
	if resumable {
		p.state = stateSuspended
	} else {
		p.state = stateStopped
	}
	return nil
}

// Resume continues a suspended parse from the engine's internal
// position, then delivers any bytes the feed loop withheld while
// suspended.
func (p *Parser) Resume(ctx context.Context) error {
	if p.state != stateSuspended {
		return errors.InvalidState("resume", p.state.String())
	}
	p.state = stateActive

	st, err := p.eng.ResumeParser(ctx, p.ptr)
	if err != nil {
		return err
	}
	switch st {
	case expat.StatusSuspended:
		p.state = stateSuspended
		return nil
	case expat.StatusError:
		return p.failParse(ctx)
	}

	data, final := p.pending, p.pendingFinal
	p.pending, p.pendingFinal = nil, false
	if len(data) > 0 {
		return p.feed(ctx, data, final)
	}
	if final {
		return p.reset(ctx)
	}
	return nil
}

// Destroy frees the foreign parser and releases the handle. It returns
// true on first teardown and false on repeats; every other operation on
// a destroyed parser fails with an invalid-state error.
func (p *Parser) Destroy(ctx context.Context) bool {
	if p.state == stateDestroyed {
		return false
	}
	p.state = stateDestroyed
	p.pending = nil
	p.pendingFinal = false

	if err := p.rt.table.Remove(p.id); err != nil {
		p.logger.Warn("handle remove failed", zap.Int32("handle", int32(p.id)), zap.Error(err))
	}
	if err := p.eng.ParserFree(ctx, p.ptr); err != nil {
		p.logger.Warn("parser free failed", zap.Error(err))
	}
	return true
}

// HandleEvent is the dispatch target the bound callback slots invoke
// through the handle table: one exported method, parameterized by event
// name, instead of one foreign-callable slot per instance.
func (p *Parser) HandleEvent(event string, args ...any) any {
	if event == eventExternalEntityRef {
		return p.resolveEntity(args)
	}
	p.emit(event, args...)
	return nil
}

// resolveEntity runs the external entity flow: resolve bytes through the
// SystemEntity hook, feed them through a short-lived nested parser that
// inherits this parser's handlers, and free it before returning control
// to the engine. startBase/endBase bracket the whole sequence. Resolver
// panics and errors surface as error events and report failure to the
// engine so it aborts that sub-parse cleanly.
func (p *Parser) resolveEntity(args []any) (status int32) {
	if len(args) != 5 {
		p.logger.Error("malformed external entity dispatch", zap.Int("args", len(args)))
		return 0
	}
	ctx, _ := args[0].(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	entityCtx, _ := args[1].(uint32)
	base, _ := args[2].(string)
	sysid, _ := args[3].(string)
	pubid, _ := args[4].(string)

	if p.opts.SystemEntity == nil {
		// no resolver configured: skip the entity, not an error
		return 1
	}

	uri := sysid
	if uri == "" {
		uri = base
	}
	p.emit(EventStartBase, uri)
	defer p.emit(EventEndBase, uri)

	defer func() {
		if r := recover(); r != nil {
			p.emit(EventError, errors.New(errors.PhaseHost, errors.KindInvalidData).
				Detail("entity resolver panicked: %v", r).
				Build())
			status = 0
		}
	}()

	data, err := p.opts.SystemEntity(base, sysid, pubid)
	if err != nil {
		p.emit(EventError, errors.Wrap(errors.PhaseHost, errors.KindNotFound, err,
			"resolve external entity "+uri))
		return 0
	}

	sub, err := p.eng.ExternalEntityParserCreate(ctx, p.ptr, entityCtx, p.opts.Encoding)
	if err != nil {
		p.emit(EventError, err)
		return 0
	}
	defer func() {
		if ferr := p.eng.ParserFree(ctx, sub); ferr != nil {
			p.logger.Warn("entity parser free failed", zap.Error(ferr))
		}
	}()

	if sysid != "" {
		if err := p.eng.SetBase(ctx, sub, sysid); err != nil {
			p.emit(EventError, err)
			return 0
		}
	}

	st, err := p.eng.Parse(ctx, sub, data, true)
	if err != nil {
		p.emit(EventError, err)
		return 0
	}
	if st != expat.StatusOK {
		p.emit(EventError, p.parseErrorAt(ctx, sub))
		return 0
	}
	return 1
}

package parser

import (
	"context"

	"go.uber.org/zap"

	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/engine"
	"github.com/xmlwasm/expat/errors"
	"github.com/xmlwasm/expat/handle"
)

// Engine is the foreign call surface a Runtime drives. *engine.Engine is
// the wazero-backed implementation; tests substitute scripted fakes.
type Engine interface {
	ParserCreate(ctx context.Context, encoding string, sep rune, namespaces bool) (expat.Ptr, error)
	ParserReset(ctx context.Context, p expat.Ptr, encoding string) error
	ParserFree(ctx context.Context, p expat.Ptr) error

	SetUserData(ctx context.Context, p expat.Ptr, ud int32) error
	SetHandlers(ctx context.Context, p expat.Ptr, expandInternalEntities bool) error
	SetReturnNSTriplet(ctx context.Context, p expat.Ptr, on bool) error
	SetParamEntityParsing(ctx context.Context, p expat.Ptr, mode uint32) error
	SetBase(ctx context.Context, p expat.Ptr, base string) error
	Base(ctx context.Context, p expat.Ptr) (string, error)

	Parse(ctx context.Context, p expat.Ptr, chunk []byte, final bool) (expat.Status, error)
	StopParser(ctx context.Context, p expat.Ptr, resumable bool) (expat.Status, error)
	ResumeParser(ctx context.Context, p expat.Ptr) (expat.Status, error)

	ErrorCode(ctx context.Context, p expat.Ptr) (uint32, error)
	ErrorString(ctx context.Context, code uint32) (string, error)
	CurrentLine(ctx context.Context, p expat.Ptr) (uint64, error)
	CurrentColumn(ctx context.Context, p expat.Ptr) (uint64, error)
	CurrentByteIndex(ctx context.Context, p expat.Ptr) (int64, error)

	ExternalEntityParserCreate(ctx context.Context, p expat.Ptr, context_ uint32, encoding string) (expat.Ptr, error)
	FreeContentModel(ctx context.Context, p expat.Ptr, model uint32) error

	BindCallbacks(ctx context.Context, cb engine.Callbacks) error
	Close(ctx context.Context) error
}

var _ Engine = (*engine.Engine)(nil)
var _ engine.Callbacks = (*Dispatcher)(nil)

// Runtime owns the handle table and dispatcher shared by every parser of
// one loaded expat module. The foreign side has one fixed slot table per
// module instance, so the indirection state is per-Runtime rather than
// per-parser.
type Runtime struct {
	eng    Engine
	table  *handle.Table
	disp   *Dispatcher
	logger *zap.Logger
}

// NewRuntime loads wasm into a fresh engine and binds the callback
// slots.
func NewRuntime(ctx context.Context, wasm []byte, opts ...RuntimeOption) (*Runtime, error) {
	var ro runtimeOptions
	for _, o := range opts {
		o(&ro)
	}
	eng, err := engine.New(ctx, engine.Config{
		Wasm:             wasm,
		MemoryLimitPages: ro.memoryLimitPages,
		Logger:           ro.logger,
	})
	if err != nil {
		return nil, err
	}
	rt, err := NewRuntimeWith(ctx, eng, opts...)
	if err != nil {
		eng.Close(ctx)
		return nil, err
	}
	return rt, nil
}

// NewRuntimeWith binds the callback slots of an already created engine.
func NewRuntimeWith(ctx context.Context, eng Engine, opts ...RuntimeOption) (*Runtime, error) {
	var ro runtimeOptions
	for _, o := range opts {
		o(&ro)
	}
	log := ro.logger
	if log == nil {
		log = engine.Logger()
	}

	table := handle.NewTable()
	disp := newDispatcher(table, log)
	if err := eng.BindCallbacks(ctx, disp); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "bind callback slots")
	}
	return &Runtime{eng: eng, table: table, disp: disp, logger: log}, nil
}

// RuntimeOption adjusts Runtime construction.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	memoryLimitPages uint32
	logger           *zap.Logger
}

// WithMemoryLimitPages caps guest memory in 64KB pages.
func WithMemoryLimitPages(pages uint32) RuntimeOption {
	return func(o *runtimeOptions) { o.memoryLimitPages = pages }
}

// WithLogger routes runtime and dispatch logging to logger.
func WithLogger(logger *zap.Logger) RuntimeOption {
	return func(o *runtimeOptions) { o.logger = logger }
}

// Live reports the number of parsers currently registered; useful for
// leak checks in teardown paths.
func (r *Runtime) Live() int {
	return r.table.Len()
}

// Close releases the engine. Parsers still live afterwards fail their
// next operation.
func (r *Runtime) Close(ctx context.Context) error {
	return r.eng.Close(ctx)
}

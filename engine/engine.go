package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/xmlwasm/expat/errors"
)

// Config holds configuration for engine creation.
type Config struct {
	// Wasm is the libexpat module binary (emscripten standalone build
	// with the registration shim).
	Wasm []byte

	// MemoryLimitPages caps guest memory in 64KB pages. 0 means the
	// wazero default.
	MemoryLimitPages uint32

	// Logger, if set, replaces the package fallback logger.
	Logger *zap.Logger
}

// Engine owns one wazero runtime with one instantiated libexpat module.
// All parsers created through it share the module's linear memory and its
// fixed callback slot table.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	mod      api.Module
	mem      *Memory
	fns      map[string]api.Function
	logger   *zap.Logger
}

// New creates a runtime and compiles the module. The guest is not
// instantiated until BindCallbacks, because its imports resolve against
// the callback slot table.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if len(cfg.Wasm) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no wasm module provided")
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := runtime.CompileModule(ctx, cfg.Wasm)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Load("compile module", err)
	}

	log.Debug("compiled libexpat module",
		zap.Int("size_bytes", len(cfg.Wasm)),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages))

	return &Engine{
		runtime:  runtime,
		compiled: compiled,
		logger:   log,
	}, nil
}

// BindCallbacks registers the fixed callback slot table and instantiates
// WASI plus the guest module. It must be called exactly once before any
// parser operation.
func (e *Engine) BindCallbacks(ctx context.Context, cb Callbacks) error {
	if e.mod != nil {
		return errors.InvalidInput(errors.PhaseLoad, "callbacks already bound")
	}

	// Emscripten standalone builds import wasi_snapshot_preview1.
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return errors.Instantiation(err)
	}

	if err := registerCallbackModule(ctx, e.runtime, cb); err != nil {
		return errors.Instantiation(err)
	}

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled,
		wazero.NewModuleConfig().WithName("libexpat").WithStartFunctions())
	if err != nil {
		return errors.Instantiation(err)
	}
	e.mod = mod
	e.mem = WrapMemory(mod.Memory())
	e.fns = make(map[string]api.Function, 48)

	// Reactor-style modules initialize explicitly.
	if init := mod.ExportedFunction(fnInitialize); init != nil {
		if _, err := init.Call(ctx); err != nil {
			return errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "run _initialize")
		}
	}

	e.logger.Debug("libexpat module instantiated",
		zap.Uint32("memory_bytes", e.mem.Size()))
	return nil
}

// Close releases the runtime and every instance it owns.
func (e *Engine) Close(ctx context.Context) error {
	e.mod = nil
	e.mem = nil
	e.fns = nil
	return e.runtime.Close(ctx)
}

// Memory returns the guest's linear memory.
func (e *Engine) Memory() *Memory {
	return e.mem
}

func (e *Engine) fn(name string) (api.Function, error) {
	if e.mod == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "engine not bound; call BindCallbacks first")
	}
	if f, ok := e.fns[name]; ok {
		return f, nil
	}
	f := e.mod.ExportedFunction(name)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	e.fns[name] = f
	return f, nil
}

// call invokes a guest export and returns its first result, or 0 for
// void exports.
func (e *Engine) call(ctx context.Context, name string, args ...uint64) (uint64, error) {
	f, err := e.fn(name)
	if err != nil {
		return 0, err
	}
	res, err := f.Call(ctx, args...)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "call "+name)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}

// Package ffi ties the type authority to the native call bridge. A Runtime
// hands out canonical types, lays out records for its target, classifies
// signatures and binds them to code addresses.
package ffi

import (
	"errors"
	"fmt"
	"sync"

	"dffi/internal/abi"
	"dffi/internal/layout"
	"dffi/internal/native"
	"dffi/internal/trace"
	"dffi/internal/types"
)

// Option configures New.
type Option func(*config)

type config struct {
	target layout.Target
	tracer trace.Tracer
}

// WithTarget selects the ABI target. Only a target matching the host can
// call functions; other targets still lay out and classify.
func WithTarget(t layout.Target) Option {
	return func(c *config) { c.target = t }
}

// WithTracer makes the runtime and every bound function emit trace events.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

type funcKey struct {
	ft   types.TypeID
	addr uintptr
}

// Runtime is the type authority plus everything needed to call through it.
// It is safe for concurrent use.
type Runtime struct {
	*types.Context

	target layout.Target
	engine *layout.Engine
	cls    *abi.Classifier
	tracer trace.Tracer

	mu    sync.Mutex
	funcs map[funcKey]*native.Func
	libs  []*native.Library
}

// New builds a Runtime for the host target unless WithTarget says otherwise.
func New(opts ...Option) *Runtime {
	cfg := config{target: layout.Host(), tracer: trace.Nop}
	for _, o := range opts {
		o(&cfg)
	}
	ctx := types.NewContext(cfg.target.DataModel())
	trace.Point(cfg.tracer, trace.ScopeRuntime, "new runtime", cfg.target.String())
	return &Runtime{
		Context: ctx,
		target:  cfg.target,
		engine:  layout.New(cfg.target),
		cls:     abi.New(cfg.target, ctx),
		tracer:  cfg.tracer,
		funcs:   make(map[funcKey]*native.Func, 16),
	}
}

// Target returns the ABI target.
func (r *Runtime) Target() layout.Target { return r.target }

// Layout returns the layout engine for the target.
func (r *Runtime) Layout() *layout.Engine { return r.engine }

// Classifier returns the runtime's classifier.
func (r *Runtime) Classifier() *abi.Classifier { return r.cls }

// Tracer returns the tracer given to New, or trace.Nop.
func (r *Runtime) Tracer() trace.Tracer { return r.tracer }

// Classify returns the call plan for ft.
func (r *Runtime) Classify(ft *types.FunctionType) (*abi.Plan, error) {
	return r.cls.Classify(ft)
}

// GetFunction returns a callable for ft at addr. Repeated requests for the
// same signature and address return the same Func.
func (r *Runtime) GetFunction(ft *types.FunctionType, addr uintptr) (*native.Func, error) {
	return r.GetNamedFunction(ft, addr, "")
}

// GetNamedFunction is GetFunction with a label for traces and errors. The
// label of the first request wins.
func (r *Runtime) GetNamedFunction(ft *types.FunctionType, addr uintptr, name string) (*native.Func, error) {
	if ft == nil {
		return nil, errors.New("ffi: nil function type")
	}
	if ft.Context() != r.Context {
		return nil, fmt.Errorf("ffi: %s belongs to another runtime", ft)
	}
	key := funcKey{ft: ft.ID(), addr: addr}
	r.mu.Lock()
	if fn, ok := r.funcs[key]; ok {
		r.mu.Unlock()
		return fn, nil
	}
	r.mu.Unlock()

	opts := []native.BindOption{native.WithTracer(r.tracer)}
	if name != "" {
		opts = append(opts, native.WithName(name))
	}
	fn, err := native.Bind(r.cls, ft, addr, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.funcs[key]; ok {
		return prev, nil
	}
	r.funcs[key] = fn
	return fn, nil
}

// Open loads a shared library and keeps it until Close.
func (r *Runtime) Open(path string) (*native.Library, error) {
	span := trace.Begin(r.tracer, trace.ScopeLoad, "open "+path, 0)
	defer span.End("")
	lib, err := native.Open(path)
	if err != nil {
		return nil, span.Fail(err)
	}
	r.mu.Lock()
	r.libs = append(r.libs, lib)
	r.mu.Unlock()
	return lib, nil
}

// Lookup resolves symbol in lib and binds it to ft.
func (r *Runtime) Lookup(lib *native.Library, symbol string, ft *types.FunctionType) (*native.Func, error) {
	span := trace.Begin(r.tracer, trace.ScopeLoad, "symbol "+symbol, 0)
	addr, err := lib.Symbol(symbol)
	span.Fail(err)
	span.End("")
	if err != nil {
		return nil, err
	}
	return r.GetNamedFunction(ft, addr, symbol)
}

// NumFunctions reports how many distinct functions have been bound.
func (r *Runtime) NumFunctions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.funcs)
}

// Close forgets bound functions and closes every library opened through
// the runtime. Types stay valid.
func (r *Runtime) Close() error {
	r.mu.Lock()
	libs := r.libs
	r.libs = nil
	clear(r.funcs)
	r.mu.Unlock()

	var errs []error
	for i := len(libs) - 1; i >= 0; i-- {
		errs = append(errs, libs[i].Close())
	}
	trace.Point(r.tracer, trace.ScopeRuntime, "close runtime", "")
	return errors.Join(errs...)
}

// Package native executes calls to C functions through libffi.
//
// A Func binds a function signature to a code address. Binding classifies the
// signature once, lowers every parameter to a libffi type and prepares the
// call interface; calls then only validate and copy arguments.
//
// Faults inside the callee are not recoverable: the Go runtime cannot resume
// a goroutine after a signal in foreign code, so a crashing callee takes the
// process down. Reads of native memory done by this package (ReadMemory,
// Load) are guarded and report a CallError of kind CallErrFault instead.
package native

import (
	"fmt"
	"strconv"
	"sync"

	"dffi/internal/abi"
	"dffi/internal/trace"
	"dffi/internal/types"
	"dffi/internal/value"
)

// BindOption configures Bind.
type BindOption func(*bindConfig)

type bindConfig struct {
	tracer trace.Tracer
	name   string
}

// WithTracer makes Bind and every Call emit trace spans.
func WithTracer(t trace.Tracer) BindOption {
	return func(c *bindConfig) { c.tracer = t }
}

// WithName labels the function in trace output and errors.
func WithName(name string) BindOption {
	return func(c *bindConfig) { c.name = name }
}

// Func is a C function ready to be called.
type Func struct {
	ft     *types.FunctionType
	addr   uintptr
	cls    *abi.Classifier
	plan   *abi.Plan
	tracer trace.Tracer
	name   string

	fixed *callIface
	// byExtras caches one interface per promoted extra-argument tuple.
	byExtras sync.Map
}

// callIface is a prepared libffi call interface for one concrete plan.
type callIface struct {
	plan     *abi.Plan
	ret      *lowType
	args     []*lowType
	retSize  uint64
	argSizes []uint64
	h        *cifHandle
}

// Bind prepares ft for calls to addr.
func Bind(cls *abi.Classifier, ft *types.FunctionType, addr uintptr, opts ...BindOption) (*Func, error) {
	cfg := bindConfig{tracer: trace.Nop}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.name == "" {
		cfg.name = "0x" + strconv.FormatUint(uint64(addr), 16)
	}
	span := trace.Begin(cfg.tracer, trace.ScopeBind, "bind "+cfg.name, 0)
	defer span.End("")

	if addr == 0 {
		return nil, span.Fail(fmt.Errorf("native: bind %s: nil function address", cfg.name))
	}
	plan, err := cls.Classify(ft)
	if err != nil {
		return nil, span.Fail(fmt.Errorf("native: bind %s: %w", cfg.name, err))
	}
	ci, err := newCallIface(plan)
	if err != nil {
		return nil, span.Fail(err)
	}
	span.WithExtra("sig", ft.String())
	return &Func{
		ft:     ft,
		addr:   addr,
		cls:    cls,
		plan:   plan,
		tracer: cfg.tracer,
		name:   cfg.name,
		fixed:  ci,
	}, nil
}

func newCallIface(plan *abi.Plan) (*callIface, error) {
	l := newLowerer(plan)
	ci := &callIface{plan: plan}
	var err error
	if ci.ret, err = l.lower(&plan.Return, true); err != nil {
		return nil, err
	}
	ci.retSize = storageSize(ci.ret, plan.Return.Size)
	all := plan.Args()
	ci.args = make([]*lowType, len(all))
	ci.argSizes = make([]uint64, len(all))
	for i := range all {
		lt, err := l.lower(&all[i], false)
		if err != nil {
			return nil, err
		}
		ci.args[i] = lt
		ci.argSizes[i] = max(lt.size(), all[i].Size)
	}
	if err := ci.prepare(); err != nil {
		return nil, err
	}
	return ci, nil
}

// Type returns the bound signature.
func (f *Func) Type() *types.FunctionType { return f.ft }

// Addr returns the code address.
func (f *Func) Addr() uintptr { return f.addr }

// Plan returns the classification of the fixed parameters.
func (f *Func) Plan() *abi.Plan { return f.plan }

// Name returns the label given at Bind, or the hex address.
func (f *Func) Name() string { return f.name }

// Call validates args against the signature, calls the function and returns
// its result. Nothing is written to native memory if validation fails.
func (f *Func) Call(args ...value.Value) (value.Value, error) {
	ret := f.ft.Return()
	if ret.IsVoid() {
		return value.Void, f.call(nil, args)
	}
	out, err := value.Zero(ret.Type)
	if err != nil {
		return value.Value{}, err
	}
	if err := f.call(out.Data(), args); err != nil {
		return value.Value{}, err
	}
	return out, nil
}

// CallInto is Call with a caller-supplied result. dst must hold a value of
// the result type; it is ignored for void functions.
func (f *Func) CallInto(dst *value.Value, args ...value.Value) error {
	ret := f.ft.Return()
	if ret.IsVoid() {
		return f.call(nil, args)
	}
	if dst == nil || dst.Type() != ret.Type {
		actual := "nil"
		if dst != nil {
			actual = types.Label(dst.Type())
		}
		return &CallError{Kind: CallErrMismatch, Func: f.name, Index: -1, Expected: ret.String(), Actual: actual}
	}
	return f.call(dst.Data(), args)
}

func (f *Func) call(ret []byte, args []value.Value) error {
	span := trace.Begin(f.tracer, trace.ScopeCall, f.name, 0)
	defer span.End("")

	ci, vals, err := f.resolve(args)
	if err != nil {
		return span.Fail(err)
	}
	data := make([][]byte, len(vals))
	for i, v := range vals {
		data[i] = v.Data()
	}
	ci.invoke(f.addr, ret, data)
	return nil
}

// resolve validates the arguments and picks the call interface for them.
// Every returned value holds exactly as many bytes as its plan slot.
func (f *Func) resolve(args []value.Value) (*callIface, []value.Value, error) {
	if err := f.checkArity(args); err != nil {
		return nil, nil, err
	}
	for i, a := range args {
		if err := f.checkOwner(i, a); err != nil {
			return nil, nil, err
		}
	}
	nfixed := f.ft.NumParams()
	for i := 0; i < nfixed; i++ {
		if err := f.checkParam(i, args[i]); err != nil {
			return nil, nil, err
		}
	}
	if len(args) == nfixed {
		if err := f.checkSizes(f.fixed, args); err != nil {
			return nil, nil, err
		}
		return f.fixed, args, nil
	}

	extras := make([]types.QualType, 0, len(args)-nfixed)
	for i := nfixed; i < len(args); i++ {
		if err := f.checkExtra(i, args[i]); err != nil {
			return nil, nil, err
		}
		extras = append(extras, types.Q(args[i].Type()))
	}
	ci, err := f.extrasIface(extras)
	if err != nil {
		return nil, nil, err
	}
	vals, err := f.promoteExtras(args)
	if err != nil {
		return nil, nil, err
	}
	if err := f.checkSizes(ci, vals); err != nil {
		return nil, nil, err
	}
	return ci, vals, nil
}

// extrasIface returns the cached call interface for one list of extra
// argument types, classifying and preparing it on first use.
func (f *Func) extrasIface(extras []types.QualType) (*callIface, error) {
	key := extrasKey(extras)
	if ci, ok := f.byExtras.Load(key); ok {
		return ci.(*callIface), nil
	}
	plan, err := f.cls.ClassifyVariadic(f.ft, extras)
	if err != nil {
		return nil, err
	}
	ci, err := newCallIface(plan)
	if err != nil {
		return nil, err
	}
	actual, _ := f.byExtras.LoadOrStore(key, ci)
	return actual.(*callIface), nil
}

func (f *Func) promoteExtras(args []value.Value) ([]value.Value, error) {
	vals := make([]value.Value, len(args))
	copy(vals, args)
	ctx := f.cls.Context()
	for i := f.ft.NumParams(); i < len(vals); i++ {
		pv, err := value.Promote(ctx, vals[i])
		if err != nil {
			return nil, err
		}
		vals[i] = pv
	}
	return vals, nil
}

func extrasKey(extras []types.QualType) string {
	b := make([]byte, 0, 8*len(extras))
	for _, e := range extras {
		b = strconv.AppendUint(b, uint64(e.ID()), 10)
		b = append(b, ',')
	}
	return string(b)
}

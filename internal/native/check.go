package native

import (
	"strconv"

	"dffi/internal/types"
	"dffi/internal/value"
)

func (f *Func) checkArity(args []value.Value) error {
	n := f.ft.NumParams()
	if len(args) == n || (f.ft.IsVarArgs() && len(args) > n) {
		return nil
	}
	want := strconv.Itoa(n)
	if f.ft.IsVarArgs() {
		want = "at least " + want
	}
	return &CallError{Kind: CallErrArity, Func: f.name, Expected: want, Actual: strconv.Itoa(len(args))}
}

func (f *Func) checkParam(i int, arg value.Value) error {
	want := f.plan.Params[i].Type
	if compatible(want.Type, arg.Type()) {
		return nil
	}
	return &CallError{
		Kind:     CallErrMismatch,
		Func:     f.name,
		Index:    i,
		Expected: want.String(),
		Actual:   types.Label(arg.Type()),
	}
}

// checkOwner rejects a value whose type belongs to another Context. Type IDs
// are only meaningful inside one Context.
func (f *Func) checkOwner(i int, arg value.Value) error {
	t := arg.Type()
	if t == nil || t.Context() == f.ft.Context() {
		return nil
	}
	return &CallError{
		Kind:     CallErrMismatch,
		Func:     f.name,
		Index:    i,
		Expected: "a value from the signature's context",
		Actual:   types.Label(t) + " from another context",
	}
}

// checkExtra rejects variadic arguments that have no C passing rule: void,
// and bare arrays, which have no address to decay to.
func (f *Func) checkExtra(i int, arg value.Value) error {
	switch {
	case arg.IsVoid():
		return &CallError{Kind: CallErrMismatch, Func: f.name, Index: i, Expected: "a value", Actual: "void"}
	case arg.Type().Kind() == types.KindArray:
		return &CallError{Kind: CallErrMismatch, Func: f.name, Index: i, Expected: "a pointer to the first element", Actual: types.Label(arg.Type())}
	}
	return nil
}

// checkSizes makes sure every value fills its plan slot exactly.
func (f *Func) checkSizes(ci *callIface, vals []value.Value) error {
	slots := ci.plan.Args()
	for i, v := range vals {
		got := uint64(len(v.Data()))
		if got == slots[i].Size && got <= ci.argSizes[i] {
			continue
		}
		return &CallError{
			Kind:     CallErrMismatch,
			Func:     f.name,
			Index:    i,
			Expected: slots[i].Type.String() + " (" + strconv.FormatUint(slots[i].Size, 10) + " bytes)",
			Actual:   types.Label(v.Type()) + " (" + strconv.FormatUint(got, 10) + " bytes)",
		}
	}
	return nil
}

type family uint8

const (
	famNone family = iota
	famBool
	famInt
	famFloat
	famComplex
)

func basicFamily(t types.Type) (family, uint64) {
	bt, ok := types.AsBasic(types.Underlying(t))
	if !ok {
		return famNone, 0
	}
	k := bt.BasicKind()
	switch {
	case k == types.Bool:
		return famBool, 1
	case k.IsInteger():
		return famInt, k.Size()
	case k.IsFloat():
		return famFloat, k.Size()
	case k.IsComplex():
		return famComplex, k.Size()
	}
	return famNone, 0
}

// compatible decides whether a value of type got may be passed where want is
// expected. want has already been through parameter adjustment.
func compatible(want, got types.Type) bool {
	if got == nil {
		return false
	}
	if want == got {
		return true
	}
	switch want.Kind() {
	case types.KindPointer:
		return got.Kind() == types.KindPointer
	case types.KindBasic:
		wf, ws := basicFamily(want)
		gf, gs := basicFamily(got)
		return wf != famNone && wf == gf && ws == gs
	case types.KindEnum:
		if got.Kind() != types.KindBasic {
			return false
		}
		gf, gs := basicFamily(got)
		return gf == famInt && gs == want.Size()
	default:
		// Records and arrays need the identical type.
		return false
	}
}

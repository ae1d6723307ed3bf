//go:build cgo && linux && (amd64 || arm64)

package native

import (
	"errors"
	"math"
	"sync"
	"testing"

	"dffi/internal/abi"
	"dffi/internal/layout"
	"dffi/internal/testkit"
	"dffi/internal/trace"
	"dffi/internal/types"
	"dffi/internal/value"
)

type callFixture struct {
	*lowerFixture
	syms map[string]uintptr
}

func newCallFixture(t *testing.T) *callFixture {
	t.Helper()
	return &callFixture{lowerFixture: newLowerFixture(t, layout.Host()), syms: testkit.Symbols()}
}

func (f *callFixture) bind(name string, ret types.QualType, variadic bool, params ...types.QualType) *Func {
	f.t.Helper()
	ft := f.ctx.FunctionType(ret, params, types.CCDefault, variadic)
	fn, err := Bind(f.cls, ft, f.syms[name], WithName(name))
	if err != nil {
		f.t.Fatalf("bind %s: %v", name, err)
	}
	return fn
}

func (f *callFixture) int(k types.BasicKind, x int64) value.Value {
	f.t.Helper()
	v, err := value.FromInt(f.ctx.BasicType(k), x)
	if err != nil {
		f.t.Fatalf("FromInt: %v", err)
	}
	return v
}

func (f *callFixture) float(k types.BasicKind, x float64) value.Value {
	f.t.Helper()
	v, err := value.FromFloat(f.ctx.BasicType(k), x)
	if err != nil {
		f.t.Fatalf("FromFloat: %v", err)
	}
	return v
}

func TestCallScalars(t *testing.T) {
	f := newCallFixture(t)
	i8 := f.basic(types.Int8)
	i32 := f.basic(types.Int32)
	u64 := f.basic(types.UInt64)
	f32 := f.basic(types.Float32)

	add := f.bind("add_i32", i32, false, i32, i32)
	got, err := add.Call(f.int(types.Int32, 40), f.int(types.Int32, 2))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if n, _ := got.Int(); n != 42 {
		t.Fatalf("add = %d, want 42", n)
	}

	neg := f.bind("neg_i8", i8, false, i8)
	got, err = neg.Call(f.int(types.Int8, 5))
	if err != nil {
		t.Fatalf("neg: %v", err)
	}
	if n, _ := got.Int(); n != -5 {
		t.Fatalf("neg = %d, want -5", n)
	}

	mul := f.bind("mul_u64", u64, false, u64, u64)
	a, _ := value.FromUint(u64.Type, 1<<40)
	got, err = mul.Call(a, f.int(types.UInt64, 3))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if n, _ := got.Uint(); n != 3<<40 {
		t.Fatalf("mul = %d", n)
	}

	halve := f.bind("halve_f32", f32, false, f32)
	got, err = halve.Call(f.float(types.Float32, 3))
	if err != nil {
		t.Fatalf("halve: %v", err)
	}
	if x, _ := got.Float(); x != 1.5 {
		t.Fatalf("halve = %v, want 1.5", x)
	}

	odd := f.bind("is_odd", f.basic(types.Bool), false, i32)
	got, err = odd.Call(f.int(types.Int32, 7))
	if err != nil {
		t.Fatalf("is_odd: %v", err)
	}
	if b, _ := got.Bool(); !b {
		t.Fatalf("is_odd(7) = false")
	}

	noop := f.bind("noop", types.Void, false)
	got, err = noop.Call()
	if err != nil || !got.IsVoid() {
		t.Fatalf("noop = %v, %v", got, err)
	}
}

func TestCallVariadic(t *testing.T) {
	f := newCallFixture(t)
	i32 := f.basic(types.Int32)
	sum := f.bind("sum_doubles", f.basic(types.Float64), true, i32)

	// float extras are promoted to double before the call.
	got, err := sum.Call(f.int(types.Int32, 3),
		f.float(types.Float64, 1.5), f.float(types.Float32, 2.5), f.float(types.Float64, 4))
	if err != nil {
		t.Fatalf("sum_doubles: %v", err)
	}
	if x, _ := got.Float(); x != 8 {
		t.Fatalf("sum_doubles = %v, want 8", x)
	}

	// A second call with the same extra types reuses the cached interface.
	got, err = sum.Call(f.int(types.Int32, 2), f.float(types.Float64, 1), f.float(types.Float32, 1))
	if err != nil {
		t.Fatalf("sum_doubles again: %v", err)
	}
	if x, _ := got.Float(); x != 2 {
		t.Fatalf("sum_doubles = %v, want 2", x)
	}

	ints := f.bind("sum_ints", f.basic(types.Int64), true, i32)
	got, err = ints.Call(f.int(types.Int32, 3), f.int(types.Int8, -1), f.int(types.Int16, 300), f.int(types.Int32, 1))
	if err != nil {
		t.Fatalf("sum_ints: %v", err)
	}
	if n, _ := got.Int(); n != 300 {
		t.Fatalf("sum_ints = %d, want 300", n)
	}
}

func TestCallRecords(t *testing.T) {
	f := newCallFixture(t)
	i32 := f.basic(types.Int32)
	i64 := f.basic(types.Int64)
	f32 := f.basic(types.Float32)
	f64 := f.basic(types.Float64)

	pt := f.record("pt", false, i32, f32)
	scale := f.bind("pt_scale", pt, false, pt, i32)
	in := value.MustZero(pt.Type)
	if err := in.SetField("a", f.int(types.Int32, 3)); err != nil {
		t.Fatal(err)
	}
	if err := in.SetField("b", f.float(types.Float32, 0.5)); err != nil {
		t.Fatal(err)
	}
	out, err := scale.Call(in, f.int(types.Int32, 4))
	if err != nil {
		t.Fatalf("pt_scale: %v", err)
	}
	if got := out.String(); got != "{a: 12, b: 2}" {
		t.Fatalf("pt_scale = %s", got)
	}

	big := f.record("big", false, i64, i64, i64)
	mk := f.bind("big_make", big, false, i64, i64, i64)
	if !mk.Plan().SRet {
		t.Skipf("host returns 24-byte records in registers:\n%s", mk.Plan())
	}
	bv, err := mk.Call(f.int(types.Int64, 1), f.int(types.Int64, 20), f.int(types.Int64, 300))
	if err != nil {
		t.Fatalf("big_make: %v", err)
	}
	sum := f.bind("big_sum", i64, false, big)
	got, err := sum.Call(bv)
	if err != nil {
		t.Fatalf("big_sum: %v", err)
	}
	if n, _ := got.Int(); n != 321 {
		t.Fatalf("big_sum = %d, want 321", n)
	}

	vec := f.record("vec2", false, f64, f64)
	add := f.bind("vec2_add", vec, false, vec, vec)
	a := value.MustZero(vec.Type)
	_ = a.SetField("a", f.float(types.Float64, 1.25))
	_ = a.SetField("b", f.float(types.Float64, -2))
	var dst = value.MustZero(vec.Type)
	if err := add.CallInto(&dst, a, a); err != nil {
		t.Fatalf("vec2_add: %v", err)
	}
	if got := dst.String(); got != "{a: 2.5, b: -4}" {
		t.Fatalf("vec2_add = %s", got)
	}

	tagged := f.record("tagged", false, f.basic(types.Char), f64)
	tv := f.bind("tagged_value", f64, false, tagged)
	in = value.MustZero(tagged.Type)
	_ = in.SetField("a", f.int(types.Char, 'n'))
	_ = in.SetField("b", f.float(types.Float64, 9))
	got, err = tv.Call(in)
	if err != nil {
		t.Fatalf("tagged_value: %v", err)
	}
	if x, _ := got.Float(); x != -9 {
		t.Fatalf("tagged_value = %v, want -9", x)
	}
}

func TestCallUnion(t *testing.T) {
	f := newCallFixture(t)
	u32 := f.basic(types.UInt32)
	ut, err := f.ctx.DeclareUnion("num")
	if err != nil {
		t.Fatal(err)
	}
	members := []layout.Member{{Name: "bits", Type: u32}, {Name: "f", Type: f.basic(types.Float32)}}
	if err := f.eng.DefineUnion(ut, members, layout.Attrs{}); err != nil {
		t.Fatal(err)
	}
	bits := f.bind("num_bits", u32, false, types.Q(ut))
	in := value.MustZero(ut)
	if err := in.SetField("f", f.float(types.Float32, 1)); err != nil {
		t.Fatal(err)
	}
	got, err := bits.Call(in)
	if err != nil {
		t.Fatalf("num_bits: %v", err)
	}
	if n, _ := got.Uint(); n != uint64(math.Float32bits(1)) {
		t.Fatalf("num_bits = %#x", n)
	}
}

func TestCallPointers(t *testing.T) {
	f := newCallFixture(t)
	u8 := f.basic(types.UInt8)
	i32 := f.basic(types.Int32)
	u8p := types.Q(f.ctx.PointerType(u8))
	size := f.basic(types.UInt64)

	buf, err := Malloc(16)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(buf)

	fill := f.bind("fill", types.Void, false, u8p, u8, size)
	p, _ := value.FromPointer(u8p.Type, buf)
	if _, err := fill.Call(p, f.int(types.UInt8, 0xab), f.int(types.UInt64, 4)); err != nil {
		t.Fatalf("fill: %v", err)
	}
	mem, err := ReadMemory(buf, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(mem) != "\xab\xab\xab\xab\x00" {
		t.Fatalf("memory = %x", mem)
	}

	if err := Store(buf, f.int(types.Int32, 77)); err != nil {
		t.Fatal(err)
	}
	cint := types.Q(f.ctx.PointerType(types.QualType{Type: i32.Type, Quals: types.QualConst}))
	deref := f.bind("deref", i32, false, cint)
	got, err := deref.Call(p)
	if err != nil {
		t.Fatalf("deref: %v", err)
	}
	if n, _ := got.Int(); n != 77 {
		t.Fatalf("deref = %d", n)
	}

	cchar := types.Q(f.ctx.PointerType(types.QualType{Type: f.ctx.BasicType(types.Char), Quals: types.QualConst}))
	greet := f.bind("greeting", cchar, false)
	got, err = greet.Call()
	if err != nil {
		t.Fatalf("greeting: %v", err)
	}
	addr, _ := got.Pointer()
	s, err := ReadCString(addr, 64)
	if err != nil || s != "hello from C" {
		t.Fatalf("greeting = %q, %v", s, err)
	}
}

func TestCallRejectsBadArguments(t *testing.T) {
	f := newCallFixture(t)
	i32 := f.basic(types.Int32)
	add := f.bind("add_i32", i32, false, i32, i32)

	var ce *CallError
	_, err := add.Call(f.int(types.Int32, 1))
	if !errors.As(err, &ce) || ce.Kind != CallErrArity {
		t.Fatalf("arity: %v", err)
	}
	_, err = add.Call(f.int(types.Int32, 1), f.float(types.Float64, 2))
	if !errors.As(err, &ce) || ce.Kind != CallErrMismatch || ce.Index != 1 {
		t.Fatalf("mismatch: %v", err)
	}
	wrong := value.MustZero(f.ctx.BasicType(types.Int64))
	if err := add.CallInto(&wrong, f.int(types.Int32, 1), f.int(types.Int32, 1)); !errors.As(err, &ce) || ce.Index != -1 {
		t.Fatalf("result buffer: %v", err)
	}

	ft := f.ctx.FunctionType(i32, nil, types.CCDefault, false)
	if _, err := Bind(f.cls, ft, 0); err == nil {
		t.Fatalf("nil address accepted")
	}

	empty := f.record("empty", false)
	ft = f.ctx.FunctionType(types.Void, []types.QualType{empty}, types.CCDefault, false)
	if _, err := Bind(f.cls, ft, f.syms["noop"]); !isUnsupported(err) {
		t.Fatalf("empty record by value: %v", err)
	}

	// A plan for another target cannot be executed here.
	other := layout.AArch64LinuxGNU()
	if layout.Host().Arch == layout.ArchAArch64 {
		other = layout.X86_64LinuxGNU()
	}
	foreign := abi.New(other, f.ctx)
	ft = f.ctx.FunctionType(i32, []types.QualType{i32, i32}, types.CCDefault, false)
	if _, err := Bind(foreign, ft, f.syms["add_i32"]); err == nil {
		t.Fatalf("foreign plan bound")
	}
}

func TestCallRejectsBadExtras(t *testing.T) {
	f := newCallFixture(t)
	i32 := f.basic(types.Int32)
	ints := f.bind("sum_ints", f.basic(types.Int64), true, i32)

	var ce *CallError
	arr, err := f.ctx.ArrayType(i32, 64)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	_, err = ints.Call(f.int(types.Int32, 1), value.MustZero(arr))
	if !errors.As(err, &ce) || ce.Kind != CallErrMismatch || ce.Index != 1 {
		t.Fatalf("array extra: %v", err)
	}

	// Cache an interface for a char* extra, then pass a struct from another
	// context that may share its type ID.
	charPtr := f.ctx.PointerType(f.basic(types.Char))
	p, err := value.FromPointer(charPtr, 0)
	if err != nil {
		t.Fatalf("pointer: %v", err)
	}
	if _, err := ints.Call(f.int(types.Int32, 0), p); err != nil {
		t.Fatalf("char* extra: %v", err)
	}
	other := types.NewContext(layout.Host().DataModel())
	st, err := other.DeclareStruct("big")
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := layout.New(layout.Host()).DefineStruct(st, []layout.Member{{Name: "a", Type: types.Q(other.BasicType(types.Int64))}}, layout.Attrs{}); err != nil {
		t.Fatalf("define: %v", err)
	}
	_, err = ints.Call(f.int(types.Int32, 1), value.MustZero(st))
	if !errors.As(err, &ce) || ce.Kind != CallErrMismatch || ce.Index != 1 {
		t.Fatalf("extra from another context: %v", err)
	}
	_, err = ints.Call(value.MustZero(other.BasicType(types.Int32)))
	if !errors.As(err, &ce) || ce.Kind != CallErrMismatch || ce.Index != 0 {
		t.Fatalf("fixed argument from another context: %v", err)
	}

	add := f.bind("add_i32", i32, false, i32, i32)
	_, err = add.Call(p, f.int(types.Int32, 1))
	if !errors.As(err, &ce) || ce.Kind != CallErrMismatch || ce.Index != 0 {
		t.Fatalf("pointer for int32: %v", err)
	}
}

func TestLibcThroughDlopen(t *testing.T) {
	f := newCallFixture(t)
	lib, err := Open("")
	if err != nil {
		t.Fatalf("open self: %v", err)
	}
	defer lib.Close()

	addr, err := lib.Symbol("snprintf")
	if err != nil {
		t.Fatalf("snprintf: %v", err)
	}
	if _, err := lib.Symbol("dffi_no_such_symbol"); err == nil {
		t.Fatalf("missing symbol resolved")
	}

	i32 := f.basic(types.Int32)
	charp := types.Q(f.ctx.PointerType(f.basic(types.Char)))
	cchar := types.Q(f.ctx.PointerType(types.QualType{Type: f.ctx.BasicType(types.Char), Quals: types.QualConst}))
	ft := f.ctx.FunctionType(i32, []types.QualType{charp, f.basic(types.UInt64), cchar}, types.CCDefault, true)
	snprintf, err := Bind(f.cls, ft, addr, WithName("snprintf"))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	buf, err := Malloc(64)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(buf)
	format, err := CString("%d-%s-%.2f")
	if err != nil {
		t.Fatal(err)
	}
	defer Free(format)
	word, err := CString("ffi")
	if err != nil {
		t.Fatal(err)
	}
	defer Free(word)

	bp, _ := value.FromPointer(charp.Type, buf)
	fp, _ := value.FromPointer(cchar.Type, format)
	wp, _ := value.FromPointer(cchar.Type, word)
	n, err := snprintf.Call(bp, f.int(types.UInt64, 64), fp,
		f.int(types.Int32, 7), wp, f.float(types.Float32, 0.5))
	if err != nil {
		t.Fatalf("snprintf: %v", err)
	}
	s, err := ReadCString(buf, 64)
	if err != nil {
		t.Fatal(err)
	}
	if s != "7-ffi-0.50" {
		t.Fatalf("snprintf wrote %q", s)
	}
	if got, _ := n.Int(); got != int64(len(s)) {
		t.Fatalf("snprintf returned %d", got)
	}

	if err := lib.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := lib.Symbol("snprintf"); err == nil {
		t.Fatalf("symbol lookup on closed library")
	}
}

func TestConcurrentCalls(t *testing.T) {
	f := newCallFixture(t)
	i32 := f.basic(types.Int32)
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	ft := f.ctx.FunctionType(i32, []types.QualType{i32, i32}, types.CCDefault, false)
	add, err := Bind(f.cls, ft, f.syms["add_i32"], WithName("add_i32"), WithTracer(ring))
	if err != nil {
		t.Fatal(err)
	}
	one := f.int(types.Int32, 1)
	args := make([]value.Value, 16)
	for i := range args {
		args[i] = f.int(types.Int32, int64(i))
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(args))
	for i := range args {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := add.Call(args[i], one)
			if err != nil {
				errs <- err
				return
			}
			if n, _ := got.Int(); n != int64(i+1) {
				errs <- errors.New("wrong sum")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if len(ring.Snapshot()) == 0 {
		t.Fatalf("no call spans recorded")
	}
}

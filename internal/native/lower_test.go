package native

import (
	"errors"
	"testing"

	"dffi/internal/abi"
	"dffi/internal/layout"
	"dffi/internal/types"
)

type lowerFixture struct {
	t   *testing.T
	ctx *types.Context
	eng *layout.Engine
	cls *abi.Classifier
}

func newLowerFixture(t *testing.T, target layout.Target) *lowerFixture {
	t.Helper()
	ctx := types.NewContext(target.DataModel())
	return &lowerFixture{t: t, ctx: ctx, eng: layout.New(target), cls: abi.New(target, ctx)}
}

func (f *lowerFixture) basic(k types.BasicKind) types.QualType {
	return types.Q(f.ctx.BasicType(k))
}

func (f *lowerFixture) record(name string, packed bool, fields ...types.QualType) types.QualType {
	f.t.Helper()
	st, err := f.ctx.DeclareStruct(name)
	if err != nil {
		f.t.Fatalf("declare %s: %v", name, err)
	}
	members := make([]layout.Member, len(fields))
	for i, ft := range fields {
		members[i] = layout.Member{Name: string(rune('a' + i)), Type: ft}
	}
	if err := f.eng.DefineStruct(st, members, layout.Attrs{Packed: packed}); err != nil {
		f.t.Fatalf("define %s: %v", name, err)
	}
	return types.Q(st)
}

// lowerParam classifies void(q) and lowers its only parameter.
func (f *lowerFixture) lowerParam(q types.QualType) (string, error) {
	f.t.Helper()
	p, err := f.cls.Classify(f.ctx.FunctionType(types.Void, []types.QualType{q}, types.CCDefault, false))
	if err != nil {
		f.t.Fatalf("classify: %v", err)
	}
	lt, err := newLowerer(p).lower(&p.Params[0], false)
	if err != nil {
		return "", err
	}
	return lt.String(), nil
}

func (f *lowerFixture) lowerReturn(q types.QualType) (string, error) {
	f.t.Helper()
	p, err := f.cls.Classify(f.ctx.FunctionType(q, nil, types.CCDefault, false))
	if err != nil {
		f.t.Fatalf("classify: %v", err)
	}
	lt, err := newLowerer(p).lower(&p.Return, true)
	if err != nil {
		return "", err
	}
	return lt.String(), nil
}

func isUnsupported(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == CallErrUnsupported
}

func TestLowerSysV(t *testing.T) {
	f := newLowerFixture(t, layout.X86_64LinuxGNU())
	i8 := f.basic(types.Int8)
	i32 := f.basic(types.Int32)
	i64 := f.basic(types.Int64)
	f32 := f.basic(types.Float32)
	f64 := f.basic(types.Float64)
	cases := []struct {
		name string
		typ  types.QualType
		want string
	}{
		{"int", i32, "sint32"},
		{"uchar", f.basic(types.UInt8), "uint8"},
		{"ptr", types.Q(f.ctx.PointerType(i32)), "pointer"},
		{"ldouble", f.basic(types.Float128), "longdouble"},
		{"cfloat", f.basic(types.ComplexFloat32), "{float,float}"},
		{"i128", f.basic(types.Int128), "{uint64,uint64}"},
		{"int_float", f.record("if", false, i32, f32), "{uint64}"},
		{"two_doubles", f.record("dd", false, f64, f64), "{double,double}"},
		{"three_floats", f.record("fff", false, f32, f32, f32), "{double,float}"},
		{"three_chars", f.record("ccc", false, i8, i8, i8), "{uint32}"},
		{"big", f.record("big", false, i64, i64, i64), "{uint64,uint64,uint64}"},
	}
	for _, tc := range cases {
		got, err := f.lowerParam(tc.typ)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: lowered to %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestLowerSysVUnsupported(t *testing.T) {
	f := newLowerFixture(t, layout.X86_64LinuxGNU())
	packed := f.record("packed", true, f.basic(types.Int8), f.basic(types.Int32))
	if _, err := f.lowerParam(packed); !isUnsupported(err) {
		t.Fatalf("packed record: want unsupported, got %v", err)
	}
	empty := f.record("empty", false)
	if _, err := f.lowerParam(empty); !isUnsupported(err) {
		t.Fatalf("empty record: want unsupported, got %v", err)
	}
}

func TestLowerWin64(t *testing.T) {
	f := newLowerFixture(t, layout.X86_64WindowsMSVC())
	i32 := f.basic(types.Int32)
	cases := []struct {
		name string
		typ  types.QualType
		want string
	}{
		{"pair", f.record("pair", false, i32, i32), "{uint64}"},
		{"short", f.record("s", false, f.basic(types.Int16)), "{uint16}"},
		{"triple", f.record("triple", false, i32, i32, i32), "{uint8,uint8,uint8,uint8,uint8,uint8,uint8,uint8,uint8,uint8,uint8,uint8}"},
	}
	for _, tc := range cases {
		got, err := f.lowerParam(tc.typ)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: lowered to %s, want %s", tc.name, got, tc.want)
		}
	}
	if _, err := f.lowerParam(f.basic(types.Int128)); !isUnsupported(err) {
		t.Fatalf("int128 on win64: want unsupported, got %v", err)
	}
}

func TestLowerAArch64(t *testing.T) {
	f := newLowerFixture(t, layout.AArch64LinuxGNU())
	f32 := f.basic(types.Float32)
	f64 := f.basic(types.Float64)
	i32 := f.basic(types.Int32)
	i64 := f.basic(types.Int64)

	got, err := f.lowerParam(f.record("hfa3", false, f32, f32, f32))
	if err != nil || got != "{float,float,float}" {
		t.Fatalf("float HFA: %s, %v", got, err)
	}
	got, err = f.lowerReturn(f.record("hfa2", false, f64, f64))
	if err != nil || got != "{double,double}" {
		t.Fatalf("double HFA result: %s, %v", got, err)
	}
	got, err = f.lowerParam(f.record("li", false, i64, i32))
	if err != nil || got != "{uint64,uint64}" {
		t.Fatalf("mixed record: %s, %v", got, err)
	}
	if _, err := f.lowerParam(f.basic(types.UInt128)); !isUnsupported(err) {
		t.Fatalf("uint128 on aarch64: want unsupported, got %v", err)
	}
}

func TestLowTypeGeometry(t *testing.T) {
	cases := []struct {
		t     *lowType
		size  uint64
		align uint32
	}{
		{scalarLow(lowSint8), 1, 1},
		{scalarLow(lowDouble), 8, 8},
		{structLow(scalarLow(lowUint8), scalarLow(lowUint32)), 8, 4},
		{structLow(scalarLow(lowDouble), scalarLow(lowFloat)), 16, 8},
		{repeatLow(scalarLow(lowUint8), 3), 3, 1},
	}
	for _, tc := range cases {
		if tc.t.size() != tc.size || tc.t.align() != tc.align {
			t.Fatalf("%s: size/align %d/%d, want %d/%d", tc.t, tc.t.size(), tc.t.align(), tc.size, tc.align)
		}
	}
	if got := storageSize(scalarLow(lowUint8), 1); got != 8 {
		t.Fatalf("storageSize widens to a register, got %d", got)
	}
}

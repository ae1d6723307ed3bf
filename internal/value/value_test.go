package value

import (
	"errors"
	"math"
	"strings"
	"testing"

	"dffi/internal/layout"
	"dffi/internal/types"
)

func newCtx(t *testing.T) *types.Context {
	t.Helper()
	return types.NewContext(types.DefaultDataModel())
}

func TestIntegerRoundTrip(t *testing.T) {
	ctx := newCtx(t)
	cases := []struct {
		kind types.BasicKind
		in   int64
	}{
		{types.Int8, -128},
		{types.Int8, 127},
		{types.UInt8, 255},
		{types.Int16, -30000},
		{types.UInt16, 65535},
		{types.Int32, -1},
		{types.UInt32, 4000000000},
		{types.Int64, -1 << 62},
		{types.Int128, -5},
		{types.Char, 'A'},
		{types.Bool, 1},
	}
	for _, tc := range cases {
		v, err := FromInt(ctx.BasicType(tc.kind), tc.in)
		if err != nil {
			t.Fatalf("FromInt(%s, %d): %v", tc.kind, tc.in, err)
		}
		if v.Size() != int(tc.kind.Size()) {
			t.Fatalf("%s: size %d", tc.kind, v.Size())
		}
		got, err := v.Int()
		if err != nil || got != tc.in {
			t.Fatalf("%s: Int() = %d, %v, want %d", tc.kind, got, err, tc.in)
		}
	}
}

func TestIntegerRange(t *testing.T) {
	ctx := newCtx(t)
	cases := []struct {
		kind types.BasicKind
		in   int64
	}{
		{types.Int8, 300},
		{types.Int8, -129},
		{types.UInt8, -1},
		{types.UInt16, 70000},
		{types.Int32, 1 << 31},
		{types.Bool, 2},
		{types.UInt64, -1},
	}
	for _, tc := range cases {
		_, err := FromInt(ctx.BasicType(tc.kind), tc.in)
		var ce *ConvError
		if !errors.As(err, &ce) {
			t.Fatalf("FromInt(%s, %d): expected ConvError, got %v", tc.kind, tc.in, err)
		}
	}
	if _, err := FromUint(ctx.BasicType(types.Int64), 1<<63); err == nil {
		t.Fatalf("2^63 does not fit in int64")
	}
	v, err := FromUint(ctx.BasicType(types.UInt64), 1<<63)
	if err != nil {
		t.Fatalf("FromUint: %v", err)
	}
	if _, err := v.Int(); err == nil {
		t.Fatalf("2^63 must not read back as int64")
	}
	if u, err := v.Uint(); err != nil || u != 1<<63 {
		t.Fatalf("Uint() = %d, %v", u, err)
	}
	neg, _ := FromInt(ctx.BasicType(types.Int32), -7)
	if _, err := neg.Uint(); err == nil {
		t.Fatalf("negative values have no uint64 form")
	}

	edges := []struct {
		kind types.BasicKind
		in   int64
	}{
		{types.Int8, -128},
		{types.Int8, 127},
		{types.UInt8, 255},
		{types.Int16, -32768},
		{types.UInt16, 65535},
		{types.Int32, -1 << 31},
		{types.UInt32, 1<<32 - 1},
		{types.Int64, math.MinInt64},
		{types.Int128, math.MinInt64},
		{types.Bool, 1},
	}
	for _, tc := range edges {
		v, err := FromInt(ctx.BasicType(tc.kind), tc.in)
		if err != nil {
			t.Fatalf("FromInt(%s, %d): %v", tc.kind, tc.in, err)
		}
		if got, err := v.Int(); err != nil || got != tc.in {
			t.Fatalf("FromInt(%s, %d) reads back %d, %v", tc.kind, tc.in, got, err)
		}
	}
	if _, err := FromUint(ctx.BasicType(types.UInt32), 1<<32); err == nil {
		t.Fatalf("2^32 does not fit in uint32")
	}
	if _, err := FromUint(ctx.BasicType(types.UInt128), math.MaxUint64); err != nil {
		t.Fatalf("uint128 holds every uint64: %v", err)
	}
}

func TestFloatsAndComplex(t *testing.T) {
	ctx := newCtx(t)
	f32, err := FromFloat(ctx.BasicType(types.Float32), 1.5)
	if err != nil {
		t.Fatalf("FromFloat: %v", err)
	}
	if f, _ := f32.Float(); f != 1.5 {
		t.Fatalf("float32 round trip: %g", f)
	}
	if _, err := FromFloat(ctx.BasicType(types.Float32), 1e300); err == nil {
		t.Fatalf("1e300 overflows float32")
	}
	if _, err := FromFloat(ctx.BasicType(types.Float128), 1); err == nil {
		t.Fatalf("float128 has no float64 constructor")
	}
	raw, err := Zero(ctx.BasicType(types.Float128))
	if err != nil {
		t.Fatalf("Zero: %v", err)
	}
	if _, err := raw.Float(); err == nil || !strings.Contains(err.Error(), "raw bytes") {
		t.Fatalf("float128 accessor must explain itself, got %v", err)
	}
	c, err := FromComplex(ctx.BasicType(types.ComplexFloat64), complex(1, -2))
	if err != nil {
		t.Fatalf("FromComplex: %v", err)
	}
	if got, _ := c.Complex(); got != complex(1, -2) {
		t.Fatalf("complex round trip: %v", got)
	}
	if _, err := f32.Int(); err == nil {
		t.Fatalf("Int on a float must fail")
	}
}

func TestPointerAndBool(t *testing.T) {
	ctx := newCtx(t)
	vp := ctx.PointerType(types.Void)
	p, err := FromPointer(vp, 0xdeadbeef)
	if err != nil {
		t.Fatalf("FromPointer: %v", err)
	}
	if addr, _ := p.Pointer(); addr != 0xdeadbeef {
		t.Fatalf("pointer round trip: %#x", addr)
	}
	if p.String() != "0xdeadbeef" {
		t.Fatalf("pointer string %q", p.String())
	}
	if _, err := FromPointer(ctx.BasicType(types.Int64), 1); err == nil {
		t.Fatalf("FromPointer needs a pointer type")
	}
	b, _ := FromBool(ctx.BasicType(types.Bool), true)
	if ok, _ := b.Bool(); !ok || b.String() != "true" {
		t.Fatalf("bool: %v", b)
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := newCtx(t)
	eng := layout.New(layout.X86_64LinuxGNU())
	i32 := types.Q(ctx.BasicType(types.Int32))
	f64 := types.Q(ctx.BasicType(types.Float64))
	pt, _ := ctx.DeclareStruct("pt")
	if err := eng.DefineStruct(pt, []layout.Member{{Name: "x", Type: i32}, {Name: "y", Type: f64}}, layout.Attrs{}); err != nil {
		t.Fatalf("define: %v", err)
	}
	v, err := Zero(pt)
	if err != nil {
		t.Fatalf("Zero: %v", err)
	}
	x, _ := FromInt(i32.Type, 3)
	y, _ := FromFloat(f64.Type, 0.25)
	if err := v.SetField("x", x); err != nil {
		t.Fatalf("SetField x: %v", err)
	}
	if err := v.SetField("y", y); err != nil {
		t.Fatalf("SetField y: %v", err)
	}
	if err := v.SetField("x", y); err == nil {
		t.Fatalf("SetField must require the member's type")
	}
	if err := v.SetField("z", x); err == nil {
		t.Fatalf("SetField on a missing member must fail")
	}
	got, ok, err := v.Field("y")
	if err != nil || !ok {
		t.Fatalf("Field y: %v %v", ok, err)
	}
	if f, _ := got.Float(); f != 0.25 {
		t.Fatalf("y = %g", f)
	}
	if _, ok, err := v.Field("nope"); ok || err != nil {
		t.Fatalf("missing member is a plain miss")
	}
	if _, _, err := x.Field("x"); err == nil {
		t.Fatalf("Field on a scalar must fail")
	}
	if s := v.String(); s != "{x: 3, y: 0.25}" {
		t.Fatalf("record string %q", s)
	}

	// Field returns a copy.
	got, _, _ = v.Field("x")
	zero, _ := FromInt(i32.Type, 0)
	copy(got.Data(), zero.Data())
	if again, _, _ := v.Field("x"); again.String() != "3" {
		t.Fatalf("field views must not alias the record")
	}
}

func TestArrayAccess(t *testing.T) {
	ctx := newCtx(t)
	i16 := ctx.BasicType(types.Int16)
	arr, _ := ctx.ArrayType(types.Q(i16), 3)
	v, _ := Zero(arr)
	for i := uint64(0); i < 3; i++ {
		e, _ := FromInt(i16, int64(i*10))
		if err := v.SetIndex(i, e); err != nil {
			t.Fatalf("SetIndex: %v", err)
		}
	}
	if _, err := v.Index(3); err == nil {
		t.Fatalf("index out of range must fail")
	}
	if v.String() != "[0, 10, 20]" {
		t.Fatalf("array string %q", v.String())
	}
}

func TestPromoteValue(t *testing.T) {
	ctx := newCtx(t)
	c, _ := FromInt(ctx.BasicType(types.Char), -3)
	p, err := Promote(ctx, c)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if p.Type() != ctx.BasicType(types.Int32) {
		t.Fatalf("char promotes to int32, got %s", types.Label(p.Type()))
	}
	if x, _ := p.Int(); x != -3 {
		t.Fatalf("sign extension lost: %d", x)
	}
	u, _ := FromInt(ctx.BasicType(types.UInt8), 200)
	p, _ = Promote(ctx, u)
	if x, _ := p.Int(); x != 200 {
		t.Fatalf("zero extension lost: %d", x)
	}
	f, _ := FromFloat(ctx.BasicType(types.Float32), 0.5)
	p, _ = Promote(ctx, f)
	if p.Type() != ctx.BasicType(types.Float64) {
		t.Fatalf("float32 promotes to float64")
	}
	l, _ := FromInt(ctx.BasicType(types.Int64), 9)
	if p, _ := Promote(ctx, l); p.Type() != l.Type() {
		t.Fatalf("int64 does not promote")
	}
}

func TestIncompleteTypes(t *testing.T) {
	ctx := newCtx(t)
	st, _ := ctx.DeclareStruct("later")
	_, err := Zero(st)
	var de *types.DefinitionError
	if !errors.As(err, &de) || de.Kind != types.DefOpaqueUse {
		t.Fatalf("Zero of an opaque struct must report opaque use, got %v", err)
	}
	if _, err := Zero(nil); err == nil {
		t.Fatalf("void has no values")
	}
	if _, err := New(ctx.BasicType(types.Int32), []byte{1, 2}); err == nil {
		t.Fatalf("New must check the size")
	}
}

func TestEnumValues(t *testing.T) {
	ctx := newCtx(t)
	e, _ := ctx.DeclareEnum("color")
	if err := e.Define([]types.EnumConstant{{Name: "RED", Value: 0}, {Name: "BLUE", Value: 2}}); err != nil {
		t.Fatalf("define: %v", err)
	}
	v, err := FromInt(e, 2)
	if err != nil {
		t.Fatalf("FromInt: %v", err)
	}
	if v.String() != "BLUE" {
		t.Fatalf("enum string %q", v.String())
	}
	v, _ = FromInt(e, 7)
	if v.String() != "7" {
		t.Fatalf("unknown enumerator prints its value, got %q", v.String())
	}
}

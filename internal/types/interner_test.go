package types

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestBasicSizeTable(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	cases := []struct {
		kind BasicKind
		size uint64
	}{
		{Bool, 1}, {Char, 1}, {Int8, 1}, {UInt8, 1},
		{Int16, 2}, {UInt16, 2},
		{Int32, 4}, {UInt32, 4}, {Float32, 4},
		{Int64, 8}, {UInt64, 8}, {Float64, 8}, {ComplexFloat32, 8},
		{Int128, 16}, {UInt128, 16}, {Float128, 16}, {ComplexFloat64, 16},
		{ComplexFloat128, 32},
	}
	for _, tc := range cases {
		bt := ctx.BasicType(tc.kind)
		if bt.Size() != tc.size || uint64(bt.Align()) != tc.size {
			t.Fatalf("%s: size=%d align=%d, want %d", tc.kind, bt.Size(), bt.Align(), tc.size)
		}
		if bt.Kind() != KindBasic || bt.BasicKind() != tc.kind {
			t.Fatalf("%s: bad kind %v/%v", tc.kind, bt.Kind(), bt.BasicKind())
		}
	}
}

func TestStructuralTypesAreCanonical(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	i32 := ctx.BasicType(Int32)
	if ctx.BasicType(Int32) != i32 {
		t.Fatalf("basic types must be uniqued")
	}
	p1 := ctx.PointerType(Q(i32))
	p2 := ctx.PointerType(Q(i32))
	if p1 != p2 {
		t.Fatalf("pointer types must be uniqued")
	}
	if ctx.PointerType(Q(i32).Const()) == p1 {
		t.Fatalf("const pointee must produce a distinct pointer type")
	}
	a1, err := ctx.ArrayType(Q(i32), 4)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	a2, _ := ctx.ArrayType(Q(i32), 4)
	a3, _ := ctx.ArrayType(Q(i32), 5)
	if a1 != a2 || a1 == a3 {
		t.Fatalf("array uniquing broken")
	}
	f1 := ctx.FunctionType(Q(i32), []QualType{Q(i32), Q(i32)}, CCDefault, false)
	f2 := ctx.FunctionType(Q(i32), []QualType{Q(i32), Q(i32)}, CCDefault, false)
	f3 := ctx.FunctionType(Q(i32), []QualType{Q(i32), Q(i32)}, CCDefault, true)
	f4 := ctx.FunctionType(Q(i32), []QualType{Q(i32), Q(i32)}, CCWin64, false)
	if f1 != f2 {
		t.Fatalf("function types must be uniqued")
	}
	if f1 == f3 || f1 == f4 {
		t.Fatalf("variadic flag and convention are part of the signature")
	}
}

func TestPointerSizeFollowsDataModel(t *testing.T) {
	ctx := NewContext(DataModel{PtrSize: 4})
	p := ctx.PointerType(Void)
	if p.Size() != 4 || p.Align() != 4 {
		t.Fatalf("void* size=%d align=%d, want 4/4", p.Size(), p.Align())
	}
	if got := p.String(); got != "void*" {
		t.Fatalf("label = %q", got)
	}
}

func TestArraySizing(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	i64 := ctx.BasicType(Int64)
	a, err := ctx.ArrayType(Q(i64), 3)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	if a.Size() != 24 || a.Align() != 8 || a.Len() != 3 {
		t.Fatalf("int64[3]: size=%d align=%d len=%d", a.Size(), a.Align(), a.Len())
	}
	empty, err := ctx.ArrayType(Q(i64), 0)
	if err != nil {
		t.Fatalf("zero-length array: %v", err)
	}
	if empty.Size() != 0 || empty.Align() != 8 {
		t.Fatalf("int64[0]: size=%d align=%d", empty.Size(), empty.Align())
	}
	if _, err := ctx.ArrayType(Void, 2); err == nil {
		t.Fatalf("expected error for array of void")
	}
	if _, err := ctx.ArrayType(Q(i64), 1<<62); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestStructLifecycle(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	node, err := ctx.DeclareStruct("node")
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if !node.IsOpaque() || node.Size() != 0 || node.Align() != 0 || node.NumFields() != 0 {
		t.Fatalf("fresh struct must be opaque")
	}
	if err := Complete(node); err == nil {
		t.Fatalf("expected opaque-use error")
	}
	if _, err := ctx.ArrayType(Q(node), 2); err == nil {
		t.Fatalf("array of opaque struct must be rejected")
	}

	next := ctx.PointerType(Q(node))
	i32 := ctx.BasicType(Int32)
	fields := []CompositeField{
		NewField("value", Q(i32), 0),
		NewField("next", Q(next), 8),
	}
	if err := node.Define(fields, 16, 8); err != nil {
		t.Fatalf("define: %v", err)
	}
	if node.IsOpaque() || node.Size() != 16 || node.Align() != 8 {
		t.Fatalf("defined struct: opaque=%v size=%d align=%d", node.IsOpaque(), node.Size(), node.Align())
	}
	f, ok := node.Field("next")
	if !ok || f.Offset() != 8 || f.Index() != 1 || f.Type().Type != next {
		t.Fatalf("field lookup broken: %+v %v", f, ok)
	}
	if _, ok := node.Field("missing"); ok {
		t.Fatalf("missing field must be a miss")
	}
	if err := Complete(node); err != nil {
		t.Fatalf("complete: %v", err)
	}

	err = node.Define(fields[:1], 4, 4)
	var de *DefinitionError
	if !errors.As(err, &de) || de.Kind != DefAlreadyDefined {
		t.Fatalf("expected DefAlreadyDefined, got %v", err)
	}
	if node.Size() != 16 || node.NumFields() != 2 {
		t.Fatalf("second define must not change the body")
	}
}

func TestDeclareReturnsExistingTag(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	a, _ := ctx.DeclareStruct("s")
	b, _ := ctx.DeclareStruct("s")
	if a != b {
		t.Fatalf("redeclaring a tag must return the same struct")
	}
	_, err := ctx.DeclareUnion("s")
	var de *DefinitionError
	if !errors.As(err, &de) || de.Kind != DefKindClash {
		t.Fatalf("expected DefKindClash, got %v", err)
	}
	x, _ := ctx.DeclareStruct("")
	y, _ := ctx.DeclareStruct("")
	if x == y {
		t.Fatalf("anonymous structs are always distinct")
	}
	if got, ok := ctx.LookupStruct("s"); !ok || got != a {
		t.Fatalf("lookup failed")
	}
	if _, ok := ctx.LookupUnion("s"); ok {
		t.Fatalf("struct tag must not resolve as a union")
	}
	if n := len(ctx.Types()); n != 3 {
		t.Fatalf("declared types = %d, want 3", n)
	}
}

func TestUnionOffsetInvariant(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	u, _ := ctx.DeclareUnion("u")
	i32 := ctx.BasicType(Int32)
	f64 := ctx.BasicType(Float64)
	err := u.Define([]CompositeField{
		NewField("i", Q(i32), 0),
		NewField("d", Q(f64), 4),
	}, 8, 8)
	var de *DefinitionError
	if !errors.As(err, &de) || de.Kind != DefUnionOffset || de.Field != "d" || de.Offset != 4 {
		t.Fatalf("expected DefUnionOffset for d@4, got %v", err)
	}
	if !u.IsOpaque() {
		t.Fatalf("rejected definition must leave the union opaque")
	}
	if err := u.Define([]CompositeField{
		NewField("i", Q(i32), 0),
		NewField("d", Q(f64), 0),
	}, 8, 8); err != nil {
		t.Fatalf("define: %v", err)
	}
}

func TestDefineRejectsBadBodies(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	i32 := ctx.BasicType(Int32)
	cases := []struct {
		name   string
		fields []CompositeField
		size   uint64
		align  uint32
		kind   DefErrorKind
	}{
		{"dup", []CompositeField{NewField("a", Q(i32), 0), NewField("a", Q(i32), 4)}, 8, 4, DefDuplicateField},
		{"align", []CompositeField{NewField("a", Q(i32), 0)}, 6, 3, DefBadLayout},
		{"size", []CompositeField{NewField("a", Q(i32), 0)}, 6, 4, DefBadLayout},
	}
	for _, tc := range cases {
		st, _ := ctx.DeclareStruct(tc.name)
		err := st.Define(tc.fields, tc.size, tc.align)
		var de *DefinitionError
		if !errors.As(err, &de) || de.Kind != tc.kind {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
		if !st.IsOpaque() {
			t.Fatalf("%s: rejected body must not be published", tc.name)
		}
	}
}

func TestEnumLifecycle(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	e, _ := ctx.DeclareEnum("color")
	if e.Size() != 0 || !e.IsOpaque() {
		t.Fatalf("fresh enum must be opaque")
	}
	if err := e.Define([]EnumConstant{{"RED", 0}, {"GREEN", 1}, {"BLUE", 5}}); err != nil {
		t.Fatalf("define: %v", err)
	}
	if e.BasicType() != ctx.BasicType(Int32) || e.Size() != 4 {
		t.Fatalf("enum must be backed by int32")
	}
	if c, ok := e.Constant("BLUE"); !ok || c.Value != 5 {
		t.Fatalf("constant lookup: %+v %v", c, ok)
	}
	if Underlying(e) != ctx.BasicType(Int32) {
		t.Fatalf("underlying type of enum")
	}
	if err := e.Define(nil); err == nil {
		t.Fatalf("second define must fail")
	}

	wide, _ := ctx.DeclareEnum("wide")
	err := wide.Define([]EnumConstant{{"SMALL", -1 << 31}, {"BIG", 1 << 40}})
	var de *DefinitionError
	if !errors.As(err, &de) || de.Kind != DefBadLayout || de.Field != "BIG" {
		t.Fatalf("expected BIG to be rejected, got %v", err)
	}
	if !wide.IsOpaque() {
		t.Fatalf("failed define must leave the enum opaque")
	}
	if err := wide.Define([]EnumConstant{{"MAX", 1<<31 - 1}}); err != nil {
		t.Fatalf("int32 max rejected: %v", err)
	}
}

func TestCompleteSeesNestedOpaque(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	inner, _ := ctx.DeclareStruct("inner")
	outer, _ := ctx.DeclareStruct("outer")
	if err := outer.Define([]CompositeField{NewField("in", Q(inner), 0)}, 0, 0); err != nil {
		t.Fatalf("define: %v", err)
	}
	err := Complete(outer)
	var de *DefinitionError
	if !errors.As(err, &de) || de.Kind != DefOpaqueUse || de.Type != "struct inner" {
		t.Fatalf("expected opaque use of struct inner, got %v", err)
	}
	if err := Complete(ctx.PointerType(Q(inner))); err != nil {
		t.Fatalf("pointers to opaque types are complete: %v", err)
	}
}

func TestDowncasts(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	i32 := ctx.BasicType(Int32)
	st, _ := ctx.DeclareStruct("s")
	if _, ok := AsBasic(i32); !ok {
		t.Fatalf("AsBasic")
	}
	if _, ok := AsPointer(i32); ok {
		t.Fatalf("AsPointer on basic")
	}
	if _, ok := AsStruct(nil); ok {
		t.Fatalf("AsStruct(nil)")
	}
	if c, ok := AsComposite(st); !ok || c.Name() != "s" {
		t.Fatalf("AsComposite")
	}
	if _, ok := AsCanOpaque(i32); ok {
		t.Fatalf("basic types have no lifecycle")
	}
}

func TestLabels(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	i32 := ctx.BasicType(Int32)
	st, _ := ctx.DeclareStruct("point")
	anon, _ := ctx.DeclareUnion("")
	arr, _ := ctx.ArrayType(Q(i32), 4)
	fn := ctx.FunctionType(Q(i32), []QualType{Q(ctx.PointerType(Q(ctx.BasicType(Char)).Const()))}, CCDefault, true)
	cases := []struct {
		got, want string
	}{
		{Label(i32), "int32"},
		{Label(ctx.PointerType(Q(st))), "struct point*"},
		{Label(anon), "union <anonymous>"},
		{Label(arr), "int32[4]"},
		{Label(fn), "int32 (const char*, ...)"},
		{Label(nil), "void"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("label %q, want %q", tc.got, tc.want)
		}
	}
}

func TestConcurrentCanonicalization(t *testing.T) {
	ctx := NewContext(DefaultDataModel())
	i64 := ctx.BasicType(Int64)
	const workers = 16
	ptrs := make([]*PointerType, workers)
	structs := make([]*StructType, workers)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			ptrs[i] = ctx.PointerType(Q(i64))
			st, err := ctx.DeclareStruct("shared")
			if err != nil {
				return err
			}
			structs[i] = st
			// Only one of the racing definitions may win.
			_ = st.Define([]CompositeField{NewField(fmt.Sprintf("f%d", i), Q(i64), 0)}, 8, 8)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("worker: %v", err)
	}
	for i := 1; i < workers; i++ {
		if ptrs[i] != ptrs[0] || structs[i] != structs[0] {
			t.Fatalf("worker %d saw a different instance", i)
		}
	}
	if structs[0].NumFields() != 1 {
		t.Fatalf("exactly one definition must be published")
	}
}

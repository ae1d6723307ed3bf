package layout

import (
	"errors"
	"testing"

	"dffi/internal/types"
)

func newEngine(t *testing.T) (*Engine, *types.Context) {
	t.Helper()
	target := X86_64LinuxGNU()
	return New(target), types.NewContext(target.DataModel())
}

func TestStructLayoutPadding(t *testing.T) {
	e, ctx := newEngine(t)
	i8 := types.Q(ctx.BasicType(types.Int8))
	i32 := types.Q(ctx.BasicType(types.Int32))
	f64 := types.Q(ctx.BasicType(types.Float64))
	cases := []struct {
		name    string
		members []Member
		attrs   Attrs
		size    uint64
		align   uint32
		offsets []uint64
	}{
		{"char_int", []Member{{Name: "c", Type: i8}, {Name: "i", Type: i32}}, Attrs{}, 8, 4, []uint64{0, 4}},
		{"int_double_char", []Member{{Name: "i", Type: i32}, {Name: "d", Type: f64}, {Name: "c", Type: i8}}, Attrs{}, 24, 8, []uint64{0, 8, 16}},
		{"packed", []Member{{Name: "c", Type: i8}, {Name: "i", Type: i32}}, Attrs{Packed: true}, 5, 1, []uint64{0, 1}},
		{"aligned", []Member{{Name: "c", Type: i8}}, Attrs{Align: 16}, 16, 16, []uint64{0}},
		{"member_align", []Member{{Name: "c", Type: i8}, {Name: "d", Type: i8, AlignOverride: 8}}, Attrs{}, 16, 8, []uint64{0, 8}},
		{"packed_member_align", []Member{{Name: "c", Type: i8}, {Name: "i", Type: i32}, {Name: "d", Type: f64, AlignOverride: 4}}, Attrs{Packed: true}, 16, 4, []uint64{0, 1, 8}},
		{"empty", nil, Attrs{}, 0, 1, []uint64{}},
	}
	for _, tc := range cases {
		res, err := e.StructLayout(tc.name, tc.members, tc.attrs)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Size != tc.size || res.Align != tc.align {
			t.Fatalf("%s: size=%d align=%d, want %d/%d", tc.name, res.Size, res.Align, tc.size, tc.align)
		}
		for i, off := range tc.offsets {
			if res.Offsets[i] != off {
				t.Fatalf("%s: offset[%d]=%d, want %d", tc.name, i, res.Offsets[i], off)
			}
		}
	}
}

func TestUnionLayout(t *testing.T) {
	e, ctx := newEngine(t)
	i8 := types.Q(ctx.BasicType(types.Int8))
	f64 := types.Q(ctx.BasicType(types.Float64))
	arr, err := ctx.ArrayType(i8, 13)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	res, err := e.UnionLayout("u", []Member{{Name: "d", Type: f64}, {Name: "b", Type: types.Q(arr)}}, Attrs{})
	if err != nil {
		t.Fatalf("union: %v", err)
	}
	if res.Size != 16 || res.Align != 8 {
		t.Fatalf("union size=%d align=%d, want 16/8", res.Size, res.Align)
	}
	for i, off := range res.Offsets {
		if off != 0 {
			t.Fatalf("member %d at offset %d", i, off)
		}
	}
}

func TestDefineThroughEngine(t *testing.T) {
	e, ctx := newEngine(t)
	node, _ := ctx.DeclareStruct("node")
	members := []Member{
		{Name: "value", Type: types.Q(ctx.BasicType(types.Int32))},
		{Name: "next", Type: types.Q(ctx.PointerType(types.Q(node)))},
	}
	if err := e.DefineStruct(node, members, Attrs{}); err != nil {
		t.Fatalf("define: %v", err)
	}
	if node.Size() != 16 || node.Align() != 8 {
		t.Fatalf("node size=%d align=%d", node.Size(), node.Align())
	}
	if f, ok := node.Field("next"); !ok || f.Offset() != 8 {
		t.Fatalf("next field: %v %v", f, ok)
	}

	u, _ := ctx.DeclareUnion("num")
	if err := e.DefineUnion(u, []Member{
		{Name: "i", Type: types.Q(ctx.BasicType(types.Int64))},
		{Name: "f", Type: types.Q(ctx.BasicType(types.Float32))},
	}, Attrs{}); err != nil {
		t.Fatalf("define union: %v", err)
	}
	if u.Size() != 8 {
		t.Fatalf("union size=%d", u.Size())
	}
}

func TestLayoutErrors(t *testing.T) {
	e, ctx := newEngine(t)
	opaque, _ := ctx.DeclareStruct("opaque")
	i32 := types.Q(ctx.BasicType(types.Int32))
	fn := ctx.FunctionType(i32, nil, types.CCDefault, false)
	cases := []struct {
		name    string
		members []Member
		attrs   Attrs
		kind    LayoutErrorKind
	}{
		{"opaque", []Member{{Name: "o", Type: types.Q(opaque)}}, Attrs{}, LayoutErrOpaqueMember},
		{"conflict", []Member{{Name: "a", Type: i32}}, Attrs{Packed: true, Align: 8}, LayoutErrConflictingAttrs},
		{"align", []Member{{Name: "a", Type: i32}}, Attrs{Align: 12}, LayoutErrBadAlign},
		{"member_align", []Member{{Name: "a", Type: i32, AlignOverride: 3}}, Attrs{}, LayoutErrBadAlign},
		{"void", []Member{{Name: "v", Type: types.Void}}, Attrs{}, LayoutErrInvalidMember},
		{"func", []Member{{Name: "f", Type: types.Q(fn)}}, Attrs{}, LayoutErrInvalidMember},
	}
	for _, tc := range cases {
		_, err := e.StructLayout(tc.name, tc.members, tc.attrs)
		var le *LayoutError
		if !errors.As(err, &le) || le.Kind != tc.kind {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}
	_, err := e.StructLayout("opaque", []Member{{Name: "o", Type: types.Q(opaque)}}, Attrs{})
	var de *types.DefinitionError
	if !errors.As(err, &de) || de.Kind != types.DefOpaqueUse {
		t.Fatalf("opaque member must unwrap to DefOpaqueUse, got %v", err)
	}
}

func TestLayoutOverflow(t *testing.T) {
	e, ctx := newEngine(t)
	big, err := ctx.ArrayType(types.Q(ctx.BasicType(types.Int8)), 1<<62)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	_, err = e.StructLayout("huge", []Member{
		{Name: "a", Type: types.Q(big)},
		{Name: "b", Type: types.Q(big)},
		{Name: "c", Type: types.Q(big)},
		{Name: "d", Type: types.Q(big)},
	}, Attrs{})
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestParseTriple(t *testing.T) {
	cases := []struct {
		in   string
		arch Arch
		os   OS
		cc   types.CallingConv
	}{
		{"x86_64-linux-gnu", ArchX86_64, OSLinux, types.CCX86_64SysV},
		{"amd64-linux", ArchX86_64, OSLinux, types.CCX86_64SysV},
		{"aarch64-unknown-linux-gnu", ArchAArch64, OSLinux, types.CCAArch64},
		{"x86_64-pc-windows-msvc", ArchX86_64, OSWindows, types.CCWin64},
		{"arm64-apple-darwin", ArchAArch64, OSDarwin, types.CCAArch64},
	}
	for _, tc := range cases {
		got, err := ParseTriple(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got.Arch != tc.arch || got.OS != tc.os || got.DefaultCC != tc.cc {
			t.Fatalf("%s: got %+v", tc.in, got)
		}
		if got.ResolveCC(types.CCDefault) != tc.cc {
			t.Fatalf("%s: default convention not resolved", tc.in)
		}
	}
	for _, bad := range []string{"", "riscv64-linux", "x86_64-plan9", "aarch64-windows"} {
		if _, err := ParseTriple(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

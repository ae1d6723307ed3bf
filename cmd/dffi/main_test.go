package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dffi/internal/ffi"
	"dffi/internal/layout"
	"dffi/internal/native"
	"dffi/internal/typedesc"
	"dffi/internal/types"
)

const testDesc = `
schema = "1.1"

[[struct]]
name = "point"
  [[struct.field]]
  name = "x"
  type = "int"
  [[struct.field]]
  name = "y"
  type = "int"

[[struct]]
name = "handle"
opaque = true

[[enum]]
name = "mode"
  [[enum.constant]]
  name = "READ"
  value = 1
  [[enum.constant]]
  name = "WRITE"
  value = 2

[[function]]
name = "abs"
return = "int"
params = ["int"]

[[function]]
name = "point_len"
return = "double"
params = ["struct point"]

[[function]]
name = "printf"
return = "int"
params = ["const char*"]
variadic = true
`

func writeDesc(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, typedesc.DefaultFileName)
	if err := os.WriteFile(path, []byte(testDesc), 0o600); err != nil {
		t.Fatalf("write description: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--color", "off", "--target", "x86_64-linux-gnu"}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadColorMode(t *testing.T) {
	cases := map[string]colorMode{
		"":       colorAuto,
		"auto":   colorAuto,
		" ON ":   colorOn,
		"always": colorOn,
		"off":    colorOff,
	}
	for in, want := range cases {
		got, err := readColorMode(in)
		if err != nil {
			t.Fatalf("readColorMode(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("readColorMode(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := readColorMode("sometimes"); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}

func TestSplitDescArg(t *testing.T) {
	cases := []struct {
		args     []string
		wantPath string
		wantRest int
	}{
		{[]string{"dffi.toml", "abs", "1"}, "dffi.toml", 2},
		{[]string{"snap.MSGPACK", "abs"}, "snap.MSGPACK", 1},
		{[]string{"abs", "1"}, "", 2},
		{nil, "", 0},
	}
	for _, tc := range cases {
		path, rest := splitDescArg(tc.args)
		if path != tc.wantPath || len(rest) != tc.wantRest {
			t.Fatalf("splitDescArg(%q) = %q, %d rest; want %q, %d", tc.args, path, len(rest), tc.wantPath, tc.wantRest)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("struct very_long_name", 10); got != "struct ..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("日本語の型", 5); got != "日..." {
		t.Fatalf("truncate wide = %q", got)
	}
}

func loadTestSet(t *testing.T) (*ffi.Runtime, *typedesc.Set) {
	t.Helper()
	rt := ffi.New(ffi.WithTarget(layout.X86_64LinuxGNU()))
	f, err := typedesc.Decode("test.toml", []byte(testDesc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	set, err := typedesc.Apply(rt, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return rt, set
}

func TestRenderLayout(t *testing.T) {
	rt, set := loadTestSet(t)
	out, err := renderString(rt.Target().Triple, set, 80)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"target x86_64-linux-gnu",
		"struct point  size 8  align 4",
		"       4      4  y      int32",
		"struct handle  opaque",
		"enum mode  size 4  align 4",
		"  WRITE = 2",
		"printf",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("layout output missing %q:\n%s", want, out)
		}
	}
}

func TestParseArgs(t *testing.T) {
	rt, set := loadTestSet(t)
	fn, _ := set.Function("abs")
	vals, err := parseArgs(rt.Context, fn.Type, []string{"-0x10"}, &cstrings{})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if x, _ := vals[0].Int(); x != -16 {
		t.Fatalf("abs arg = %d, want -16", x)
	}

	if _, err := parseArgs(rt.Context, fn.Type, nil, &cstrings{}); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, err := parseArgs(rt.Context, fn.Type, []string{"1", "2"}, &cstrings{}); err == nil {
		t.Fatalf("expected arity error for extra argument")
	}
	if _, err := parseArgs(rt.Context, fn.Type, []string{"1.5"}, &cstrings{}); err == nil {
		t.Fatalf("expected error for float literal in int parameter")
	}

	pl, _ := set.Function("point_len")
	if _, err := parseArgs(rt.Context, pl.Type, []string{"1"}, &cstrings{}); err == nil {
		t.Fatalf("expected error for struct argument")
	}
}

func TestParseExtra(t *testing.T) {
	rt, _ := loadTestSet(t)
	cases := []struct {
		lit  string
		want string
	}{
		{"7", "int32"},
		{"5000000000", "int64"},
		{"2.5", "float64"},
		{"(unsigned long)5", "uint64"},
		{"(float)1.5", "float32"},
		{"(void*)0x1000", "void*"},
		{"(void*)NULL", "void*"},
	}
	for _, tc := range cases {
		v, err := parseExtra(rt.Context, tc.lit, &cstrings{})
		if err != nil {
			t.Fatalf("parseExtra(%q): %v", tc.lit, err)
		}
		if got := types.Label(v.Type()); got != tc.want {
			t.Fatalf("parseExtra(%q) type = %s, want %s", tc.lit, got, tc.want)
		}
	}
	if _, err := parseExtra(rt.Context, "(struct nowhere)1", &cstrings{}); err == nil {
		t.Fatalf("expected error for opaque cast")
	}
}

func TestParseTypedEnum(t *testing.T) {
	rt, _ := loadTestSet(t)
	et, ok := rt.LookupEnum("mode")
	if !ok {
		t.Fatalf("enum mode not declared")
	}
	v, err := parseTyped(et, "WRITE", &cstrings{})
	if err != nil {
		t.Fatalf("parseTyped: %v", err)
	}
	if v.String() != "WRITE" {
		t.Fatalf("enum value = %s", v)
	}
	v, err = parseTyped(et, "7", &cstrings{})
	if err != nil {
		t.Fatalf("parseTyped numeric: %v", err)
	}
	if x, _ := v.Int(); x != 7 {
		t.Fatalf("enum value = %d, want 7", x)
	}
}

func TestLayoutCommand(t *testing.T) {
	path := writeDesc(t, t.TempDir())
	out, err := runCLI(t, "layout", path)
	if err != nil {
		t.Fatalf("layout: %v\n%s", err, out)
	}
	if !strings.Contains(out, "struct point  size 8  align 4") {
		t.Fatalf("unexpected layout output:\n%s", out)
	}
}

func TestABICommand(t *testing.T) {
	path := writeDesc(t, t.TempDir())
	out, err := runCLI(t, "abi", path, "point_len")
	if err != nil {
		t.Fatalf("abi: %v\n%s", err, out)
	}
	if !strings.Contains(out, "x86_64_sysv") || !strings.Contains(out, "ret") {
		t.Fatalf("unexpected abi output:\n%s", out)
	}
	if _, err := runCLI(t, "abi", path, "missing"); err == nil {
		t.Fatalf("expected error for unknown function")
	}
}

func TestExportAndReload(t *testing.T) {
	dir := t.TempDir()
	path := writeDesc(t, dir)
	snap := filepath.Join(dir, "types.json")
	out, err := runCLI(t, "export", path, "-o", snap)
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 structs") {
		t.Fatalf("unexpected export output: %s", out)
	}
	out, err = runCLI(t, "layout", snap)
	if err != nil {
		t.Fatalf("layout of snapshot: %v\n%s", err, out)
	}
	if !strings.Contains(out, "struct point  size 8  align 4") {
		t.Fatalf("snapshot layout differs:\n%s", out)
	}
}

func TestCallCommand(t *testing.T) {
	if !native.Available || layout.Host().Triple != "x86_64-linux-gnu" {
		t.Skip("needs the native backend on x86_64 linux")
	}
	path := writeDesc(t, t.TempDir())
	out, err := runCLI(t, "call", path, "abs", "-42")
	if err != nil {
		t.Fatalf("call: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) != "42" {
		t.Fatalf("abs(-42) printed %q", out)
	}
}

func TestDiscoverFromWorkingDir(t *testing.T) {
	root := t.TempDir()
	writeDesc(t, root)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(nested)
	out, err := runCLI(t, "layout")
	if err != nil {
		t.Fatalf("layout: %v\n%s", err, out)
	}
	if !strings.Contains(out, "struct point") {
		t.Fatalf("discovered description not rendered:\n%s", out)
	}
}

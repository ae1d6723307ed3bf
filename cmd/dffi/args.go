package main

import (
	"fmt"
	"strconv"
	"strings"

	"dffi/internal/native"
	"dffi/internal/typedesc"
	"dffi/internal/types"
	"dffi/internal/value"
)

// cstrings owns the C copies of string arguments until the call is done.
type cstrings struct {
	addrs []uintptr
}

func (c *cstrings) add(s string) (uintptr, error) {
	addr, err := native.CString(s)
	if err != nil {
		return 0, err
	}
	c.addrs = append(c.addrs, addr)
	return addr, nil
}

func (c *cstrings) free() {
	for _, a := range c.addrs {
		native.Free(a)
	}
	c.addrs = nil
}

// parseArgs turns command line literals into values for ft. Fixed
// parameters take their declared type; variadic extras are inferred from
// the literal or given a C cast such as "(unsigned long)5".
func parseArgs(ctx *types.Context, ft *types.FunctionType, lits []string, strs *cstrings) ([]value.Value, error) {
	nfixed := ft.NumParams()
	if len(lits) < nfixed || (!ft.IsVarArgs() && len(lits) > nfixed) {
		want := strconv.Itoa(nfixed)
		if ft.IsVarArgs() {
			want = "at least " + want
		}
		return nil, fmt.Errorf("%s takes %s arguments, got %d", ft, want, len(lits))
	}
	out := make([]value.Value, len(lits))
	for i, lit := range lits {
		var (
			v   value.Value
			err error
		)
		if i < nfixed {
			v, err = parseTyped(ft.Params()[i].Type, stripCast(lit), strs)
		} else {
			v, err = parseExtra(ctx, lit, strs)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i, lit, err)
		}
		out[i] = v
	}
	return out, nil
}

// splitCast separates a leading C cast from the literal.
func splitCast(lit string) (spelling, rest string, ok bool) {
	if !strings.HasPrefix(lit, "(") {
		return "", lit, false
	}
	end := strings.IndexByte(lit, ')')
	if end < 0 {
		return "", lit, false
	}
	return strings.TrimSpace(lit[1:end]), strings.TrimSpace(lit[end+1:]), true
}

func stripCast(lit string) string {
	if _, rest, ok := splitCast(lit); ok {
		return rest
	}
	return lit
}

func parseExtra(ctx *types.Context, lit string, strs *cstrings) (value.Value, error) {
	if spelling, rest, ok := splitCast(lit); ok {
		qt, err := typedesc.ParseType(ctx, spelling)
		if err != nil {
			return value.Value{}, err
		}
		return parseTyped(qt.Type, rest, strs)
	}
	if s, ok := unquote(lit); ok {
		return parseTyped(charPtr(ctx), s, strs)
	}
	if x, err := strconv.ParseInt(lit, 0, 64); err == nil {
		spelling := "int"
		if int64(int32(x)) != x {
			spelling = "long long"
		}
		qt, err := typedesc.ParseType(ctx, spelling)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromInt(qt.Type, x)
	}
	if x, err := strconv.ParseFloat(lit, 64); err == nil {
		return value.FromFloat(ctx.BasicType(types.Float64), x)
	}
	return parseTyped(charPtr(ctx), lit, strs)
}

func charPtr(ctx *types.Context) types.Type {
	return ctx.PointerType(types.Q(ctx.BasicType(types.Char)).Const())
}

func unquote(lit string) (string, bool) {
	if len(lit) >= 2 && lit[0] == '"' && lit[len(lit)-1] == '"' {
		s, err := strconv.Unquote(lit)
		if err == nil {
			return s, true
		}
		return lit[1 : len(lit)-1], true
	}
	return "", false
}

func isCharPointer(pt *types.PointerType) bool {
	bt, ok := types.AsBasic(pt.Pointee().Type)
	if !ok {
		return false
	}
	switch bt.BasicKind() {
	case types.Char, types.Int8, types.UInt8:
		return true
	}
	return false
}

// parseTyped reads lit as a value of t.
func parseTyped(t types.Type, lit string, strs *cstrings) (value.Value, error) {
	if t == nil {
		return value.Value{}, fmt.Errorf("void is not an argument type")
	}
	if pt, ok := types.AsPointer(t); ok {
		if lit == "NULL" || lit == "null" {
			return value.FromPointer(t, 0)
		}
		if addr, err := strconv.ParseUint(lit, 0, 64); err == nil && (addr == 0 || strings.HasPrefix(strings.ToLower(lit), "0x")) {
			return value.FromPointer(t, uintptr(addr))
		}
		if isCharPointer(pt) {
			s := lit
			if q, ok := unquote(lit); ok {
				s = q
			}
			addr, err := strs.add(s)
			if err != nil {
				return value.Value{}, err
			}
			return value.FromPointer(t, addr)
		}
		return value.Value{}, fmt.Errorf("%s needs an address such as 0x1000 or NULL", t)
	}
	if et, ok := types.AsEnum(t); ok {
		if c, ok := et.Constant(lit); ok {
			return value.FromInt(t, c.Value)
		}
	}
	bt, ok := types.AsBasic(types.Underlying(t))
	if !ok {
		return value.Value{}, fmt.Errorf("%s cannot be written on the command line", t)
	}
	k := bt.BasicKind()
	switch {
	case k == types.Bool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromBool(t, b)
	case k == types.Char && len(lit) == 3 && lit[0] == '\'' && lit[2] == '\'':
		return value.FromInt(t, int64(int8(lit[1])))
	case k.IsInteger() && k.IsSigned():
		x, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromInt(t, x)
	case k.IsInteger():
		x, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromUint(t, x)
	case k.IsFloat():
		x, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromFloat(t, x)
	case k.IsComplex():
		x, err := strconv.ParseComplex(lit, 128)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromComplex(t, x)
	}
	return value.Value{}, fmt.Errorf("%s cannot be written on the command line", t)
}

package value

import (
	"encoding/hex"
	"strconv"
	"strings"

	"dffi/internal/types"
)

func (v Value) String() string {
	if v.IsVoid() {
		return "void"
	}
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.typ.Kind() {
	case types.KindPointer:
		p, _ := v.Pointer()
		if p == 0 {
			sb.WriteString("NULL")
			return
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(uint64(p), 16))
	case types.KindEnum:
		et, _ := types.AsEnum(v.typ)
		x, _ := v.Int()
		for _, c := range et.Constants() {
			if c.Value == x {
				sb.WriteString(c.Name)
				return
			}
		}
		sb.WriteString(strconv.FormatInt(x, 10))
	case types.KindBasic:
		v.formatBasic(sb)
	case types.KindArray:
		at, _ := types.AsArray(v.typ)
		sb.WriteByte('[')
		for i := uint64(0); i < at.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			ev, _ := v.Index(i)
			ev.format(sb)
		}
		sb.WriteByte(']')
	case types.KindStruct, types.KindUnion:
		ct, _ := types.AsComposite(v.typ)
		sb.WriteByte('{')
		for i, f := range ct.Fields() {
			if i > 0 {
				sb.WriteString(", ")
			}
			if f.Name() != "" {
				sb.WriteString(f.Name())
				sb.WriteString(": ")
			}
			ft := f.Type().Type
			fv := Value{typ: ft, data: cloneRange(v.data, f.Offset(), f.Offset()+ft.Size())}
			fv.format(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(hex.EncodeToString(v.data))
	}
}

func (v Value) formatBasic(sb *strings.Builder) {
	k, _ := v.basicKind()
	switch {
	case k == types.Bool:
		b, _ := v.Bool()
		sb.WriteString(strconv.FormatBool(b))
	case k == types.Int128 || k == types.UInt128:
		lo, hi, _ := v.Int128()
		if x, err := v.Int(); err == nil {
			sb.WriteString(strconv.FormatInt(x, 10))
			return
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(hi, 16))
		sb.WriteString(leftPad(strconv.FormatUint(lo, 16), 16))
	case k.IsInteger() && k.IsSigned():
		x, _ := v.Int()
		sb.WriteString(strconv.FormatInt(x, 10))
	case k.IsInteger():
		x, _ := v.Uint()
		sb.WriteString(strconv.FormatUint(x, 10))
	case k == types.Float32:
		f, _ := v.Float()
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 32))
	case k == types.Float64:
		f, _ := v.Float()
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case k == types.ComplexFloat32:
		c, _ := v.Complex()
		sb.WriteString(strconv.FormatComplex(c, 'g', -1, 64))
	case k == types.ComplexFloat64:
		c, _ := v.Complex()
		sb.WriteString(strconv.FormatComplex(c, 'g', -1, 128))
	default:
		sb.WriteString(k.String())
		sb.WriteString("(0x")
		sb.WriteString(hex.EncodeToString(v.data))
		sb.WriteByte(')')
	}
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

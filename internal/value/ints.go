package value

import (
	"math"

	"fortio.org/safecast"

	"dffi/internal/types"
)

var littleEndian = order.Uint16([]byte{1, 0}) == 1

// fits reports whether x is representable in an integer of kind k. The
// 128-bit kinds hold every int64 and uint64 of the right sign.
func fits[N safecast.Integer](k types.BasicKind, x N) bool {
	var err error
	switch {
	case k == types.Bool:
		return x == 0 || x == 1
	case k.Size() == 16:
		return k.IsSigned() || x >= 0
	case k.IsSigned():
		switch k.Size() {
		case 1:
			_, err = safecast.Conv[int8](x)
		case 2:
			_, err = safecast.Conv[int16](x)
		case 4:
			_, err = safecast.Conv[int32](x)
		default:
			_, err = safecast.Conv[int64](x)
		}
	default:
		switch k.Size() {
		case 1:
			_, err = safecast.Conv[uint8](x)
		case 2:
			_, err = safecast.Conv[uint16](x)
		case 4:
			_, err = safecast.Conv[uint32](x)
		default:
			_, err = safecast.Conv[uint64](x)
		}
	}
	return err == nil
}

// putInt stores the low bits of x; 128-bit kinds are sign-extended when neg.
func putInt(dst []byte, k types.BasicKind, x uint64, neg bool) {
	switch k.Size() {
	case 1:
		dst[0] = byte(x)
	case 2:
		order.PutUint16(dst, uint16(x))
	case 4:
		order.PutUint32(dst, uint32(x))
	case 8:
		order.PutUint64(dst, x)
	case 16:
		var hi uint64
		if neg {
			hi = math.MaxUint64
		}
		put128(dst, x, hi)
	}
}

func put128(dst []byte, lo, hi uint64) {
	if littleEndian {
		order.PutUint64(dst[0:], lo)
		order.PutUint64(dst[8:], hi)
		return
	}
	order.PutUint64(dst[0:], hi)
	order.PutUint64(dst[8:], lo)
}

// readInt returns the stored integer as a 128-bit pair, sign-extended for
// signed kinds.
func readInt(src []byte, k types.BasicKind) (lo, hi uint64) {
	signed := k.IsSigned()
	switch k.Size() {
	case 1:
		lo = uint64(src[0])
		if signed {
			lo = uint64(int64(int8(src[0])))
		}
	case 2:
		u := order.Uint16(src)
		lo = uint64(u)
		if signed {
			lo = uint64(int64(int16(u)))
		}
	case 4:
		u := order.Uint32(src)
		lo = uint64(u)
		if signed {
			lo = uint64(int64(int32(u)))
		}
	case 8:
		lo = order.Uint64(src)
	case 16:
		if littleEndian {
			return order.Uint64(src[0:]), order.Uint64(src[8:])
		}
		return order.Uint64(src[8:]), order.Uint64(src[0:])
	}
	if signed && int64(lo) < 0 {
		hi = math.MaxUint64
	}
	return lo, hi
}

// Int returns an integer, bool, char or enum value as int64.
func (v Value) Int() (int64, error) {
	k, ok := v.basicKind()
	if !ok || !k.IsInteger() {
		return 0, mismatch("Int", v.typ)
	}
	lo, hi := readInt(v.data, k)
	fits := hi == 0 && lo <= math.MaxInt64
	if k.IsSigned() && hi == math.MaxUint64 && int64(lo) < 0 {
		fits = true
	}
	if !fits {
		return 0, &ConvError{Op: "Int", Type: v.typ.String(), Detail: "value does not fit in int64"}
	}
	return int64(lo), nil
}

// Uint returns a non-negative integer value as uint64.
func (v Value) Uint() (uint64, error) {
	k, ok := v.basicKind()
	if !ok || !k.IsInteger() {
		return 0, mismatch("Uint", v.typ)
	}
	lo, hi := readInt(v.data, k)
	if hi != 0 {
		return 0, &ConvError{Op: "Uint", Type: v.typ.String(), Detail: "value does not fit in uint64"}
	}
	return lo, nil
}

// Int128 returns the two halves of any integer value, sign-extended.
func (v Value) Int128() (lo, hi uint64, err error) {
	k, ok := v.basicKind()
	if !ok || !k.IsInteger() {
		return 0, 0, mismatch("Int128", v.typ)
	}
	lo, hi = readInt(v.data, k)
	return lo, hi, nil
}

// Float returns a float32 or float64 value.
func (v Value) Float() (float64, error) {
	k, ok := v.basicKind()
	if !ok {
		return 0, mismatch("Float", v.typ)
	}
	switch k {
	case types.Float32:
		return float64(math.Float32frombits(order.Uint32(v.data))), nil
	case types.Float64:
		return math.Float64frombits(order.Uint64(v.data)), nil
	case types.Float128:
		return 0, &ConvError{Op: "Float", Type: v.typ.String(), Detail: "float128 is only available as raw bytes"}
	default:
		return 0, mismatch("Float", v.typ)
	}
}

// Complex returns a complex float32 or float64 value.
func (v Value) Complex() (complex128, error) {
	k, ok := v.basicKind()
	if !ok {
		return 0, mismatch("Complex", v.typ)
	}
	switch k {
	case types.ComplexFloat32:
		re := math.Float32frombits(order.Uint32(v.data[0:]))
		im := math.Float32frombits(order.Uint32(v.data[4:]))
		return complex(float64(re), float64(im)), nil
	case types.ComplexFloat64:
		re := math.Float64frombits(order.Uint64(v.data[0:]))
		im := math.Float64frombits(order.Uint64(v.data[8:]))
		return complex(re, im), nil
	case types.ComplexFloat128:
		return 0, &ConvError{Op: "Complex", Type: v.typ.String(), Detail: "complex float128 is only available as raw bytes"}
	default:
		return 0, mismatch("Complex", v.typ)
	}
}

// Bool returns a bool value. Any non-zero byte is true.
func (v Value) Bool() (bool, error) {
	k, ok := v.basicKind()
	if !ok || k != types.Bool {
		return false, mismatch("Bool", v.typ)
	}
	return v.data[0] != 0, nil
}

// Pointer returns the address held by a pointer value.
func (v Value) Pointer() (uintptr, error) {
	if _, ok := types.AsPointer(v.typ); !ok {
		return 0, mismatch("Pointer", v.typ)
	}
	switch len(v.data) {
	case 8:
		return uintptr(order.Uint64(v.data)), nil
	case 4:
		return uintptr(order.Uint32(v.data)), nil
	default:
		return 0, &ConvError{Op: "Pointer", Type: v.typ.String(), Detail: "unsupported pointer size"}
	}
}

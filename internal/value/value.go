// Package value holds typed C values as raw bytes in native byte order.
//
// A Value pairs a types.Type with exactly Size bytes of storage. Copies of a
// Value share storage; Clone makes an independent one.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"dffi/internal/types"
)

var order = binary.NativeEndian

// Value is a C value of a complete object type, or void.
type Value struct {
	typ  types.Type
	data []byte
}

// Void is the value returned by functions without a result.
var Void = Value{}

// New wraps a copy of data, which must be exactly t's size.
func New(t types.Type, data []byte) (Value, error) {
	if err := checkObject(t, "New"); err != nil {
		return Value{}, err
	}
	if uint64(len(data)) != t.Size() {
		return Value{}, &ConvError{Op: "New", Type: t.String(), Detail: fmt.Sprintf("got %d bytes, want %d", len(data), t.Size())}
	}
	return Value{typ: t, data: slices.Clone(data)}, nil
}

// Zero returns the zero value of t.
func Zero(t types.Type) (Value, error) {
	if err := checkObject(t, "Zero"); err != nil {
		return Value{}, err
	}
	return Value{typ: t, data: make([]byte, t.Size())}, nil
}

// MustZero is Zero for types known to be complete.
func MustZero(t types.Type) Value {
	v, err := Zero(t)
	if err != nil {
		panic(err)
	}
	return v
}

func checkObject(t types.Type, op string) error {
	if t == nil {
		return &ConvError{Op: op, Type: "void", Detail: "void has no values"}
	}
	if t.Kind() == types.KindFunction {
		return &ConvError{Op: op, Type: t.String(), Detail: "functions are not objects"}
	}
	if err := types.Complete(t); err != nil {
		return &ConvError{Op: op, Type: t.String(), Err: err}
	}
	return nil
}

// Type returns the value's type, nil for void.
func (v Value) Type() types.Type { return v.typ }

// Kind returns the kind of the value's type, KindInvalid for void.
func (v Value) Kind() types.TypeKind {
	if v.typ == nil {
		return types.KindInvalid
	}
	return v.typ.Kind()
}

// IsVoid reports whether v carries no value.
func (v Value) IsVoid() bool { return v.typ == nil }

// Size returns the number of bytes of storage.
func (v Value) Size() int { return len(v.data) }

// Bytes returns a copy of the storage.
func (v Value) Bytes() []byte { return slices.Clone(v.data) }

// Data returns the storage itself. Callers must not retain it past the
// value's lifetime or resize it.
func (v Value) Data() []byte { return v.data }

// Clone returns a value with its own storage.
func (v Value) Clone() Value {
	return Value{typ: v.typ, data: slices.Clone(v.data)}
}

// basicKind resolves enums to their representation.
func (v Value) basicKind() (types.BasicKind, bool) {
	bt, ok := types.AsBasic(types.Underlying(v.typ))
	if !ok {
		return 0, false
	}
	return bt.BasicKind(), true
}

// FromInt builds an integer, bool, char or enum value from x.
func FromInt(t types.Type, x int64) (Value, error) {
	v, k, err := scalar(t, "FromInt")
	if err != nil {
		return Value{}, err
	}
	if !k.IsInteger() {
		return Value{}, mismatch("FromInt", t)
	}
	if !fits(k, x) {
		return Value{}, &ConvError{Op: "FromInt", Type: t.String(), Detail: fmt.Sprintf("%d out of range", x)}
	}
	putInt(v.data, k, uint64(x), x < 0)
	return v, nil
}

// FromUint builds an integer value from x.
func FromUint(t types.Type, x uint64) (Value, error) {
	v, k, err := scalar(t, "FromUint")
	if err != nil {
		return Value{}, err
	}
	if !k.IsInteger() {
		return Value{}, mismatch("FromUint", t)
	}
	if !fits(k, x) {
		return Value{}, &ConvError{Op: "FromUint", Type: t.String(), Detail: fmt.Sprintf("%d out of range", x)}
	}
	putInt(v.data, k, x, false)
	return v, nil
}

// FromFloat builds a float32 or float64 value. float128 values can only be
// built from raw bytes with New.
func FromFloat(t types.Type, x float64) (Value, error) {
	v, k, err := scalar(t, "FromFloat")
	if err != nil {
		return Value{}, err
	}
	switch k {
	case types.Float32:
		if !math.IsInf(x, 0) && !math.IsNaN(x) && math.Abs(x) > math.MaxFloat32 {
			return Value{}, &ConvError{Op: "FromFloat", Type: t.String(), Detail: fmt.Sprintf("%g out of range", x)}
		}
		order.PutUint32(v.data, math.Float32bits(float32(x)))
	case types.Float64:
		order.PutUint64(v.data, math.Float64bits(x))
	case types.Float128:
		return Value{}, &ConvError{Op: "FromFloat", Type: t.String(), Detail: "float128 has no float64 conversion"}
	default:
		return Value{}, mismatch("FromFloat", t)
	}
	return v, nil
}

// FromComplex builds a complex float32 or float64 value.
func FromComplex(t types.Type, x complex128) (Value, error) {
	v, k, err := scalar(t, "FromComplex")
	if err != nil {
		return Value{}, err
	}
	switch k {
	case types.ComplexFloat32:
		order.PutUint32(v.data[0:], math.Float32bits(float32(real(x))))
		order.PutUint32(v.data[4:], math.Float32bits(float32(imag(x))))
	case types.ComplexFloat64:
		order.PutUint64(v.data[0:], math.Float64bits(real(x)))
		order.PutUint64(v.data[8:], math.Float64bits(imag(x)))
	case types.ComplexFloat128:
		return Value{}, &ConvError{Op: "FromComplex", Type: t.String(), Detail: "complex float128 has no complex128 conversion"}
	default:
		return Value{}, mismatch("FromComplex", t)
	}
	return v, nil
}

// FromBool builds a bool value.
func FromBool(t types.Type, b bool) (Value, error) {
	v, k, err := scalar(t, "FromBool")
	if err != nil {
		return Value{}, err
	}
	if k != types.Bool {
		return Value{}, mismatch("FromBool", t)
	}
	if b {
		v.data[0] = 1
	}
	return v, nil
}

// FromPointer builds a pointer value holding addr.
func FromPointer(t types.Type, addr uintptr) (Value, error) {
	if _, ok := types.AsPointer(t); !ok {
		return Value{}, mismatch("FromPointer", t)
	}
	v := Value{typ: t, data: make([]byte, t.Size())}
	if err := putAddr(v.data, addr); err != nil {
		return Value{}, &ConvError{Op: "FromPointer", Type: t.String(), Err: err}
	}
	return v, nil
}

func scalar(t types.Type, op string) (Value, types.BasicKind, error) {
	if err := checkObject(t, op); err != nil {
		return Value{}, 0, err
	}
	bt, ok := types.AsBasic(types.Underlying(t))
	if !ok {
		return Value{}, 0, mismatch(op, t)
	}
	return Value{typ: t, data: make([]byte, t.Size())}, bt.BasicKind(), nil
}

func putAddr(dst []byte, addr uintptr) error {
	switch len(dst) {
	case 8:
		order.PutUint64(dst, uint64(addr))
	case 4:
		if uint64(addr) > math.MaxUint32 {
			return fmt.Errorf("address %#x does not fit in 4 bytes", addr)
		}
		order.PutUint32(dst, uint32(addr))
	default:
		return fmt.Errorf("unsupported pointer size %d", len(dst))
	}
	return nil
}

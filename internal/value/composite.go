package value

import (
	"fmt"

	"dffi/internal/abi"
	"dffi/internal/types"
)

// Field returns a copy of the named member of a struct or union value. A
// missing name is reported by ok; err is set when v is not a record.
func (v Value) Field(name string) (fv Value, ok bool, err error) {
	ct, isRecord := types.AsComposite(v.typ)
	if !isRecord {
		return Value{}, false, mismatch("Field", v.typ)
	}
	f, ok := ct.Field(name)
	if !ok {
		return Value{}, false, nil
	}
	ft := f.Type().Type
	lo, hi := f.Offset(), f.Offset()+ft.Size()
	return Value{typ: ft, data: cloneRange(v.data, lo, hi)}, true, nil
}

// SetField copies fv into the named member. fv must have the member's type.
func (v Value) SetField(name string, fv Value) error {
	ct, isRecord := types.AsComposite(v.typ)
	if !isRecord {
		return mismatch("SetField", v.typ)
	}
	f, ok := ct.Field(name)
	if !ok {
		return &ConvError{Op: "SetField", Type: v.typ.String(), Detail: fmt.Sprintf("no member %q", name)}
	}
	if fv.typ != f.Type().Type {
		return &ConvError{Op: "SetField", Type: v.typ.String(), Detail: fmt.Sprintf("member %q has type %s, got %s", name, f.Type(), types.Label(fv.typ))}
	}
	copy(v.data[f.Offset():], fv.data)
	return nil
}

// Index returns a copy of element i of an array value.
func (v Value) Index(i uint64) (Value, error) {
	at, ok := types.AsArray(v.typ)
	if !ok {
		return Value{}, mismatch("Index", v.typ)
	}
	if i >= at.Len() {
		return Value{}, &ConvError{Op: "Index", Type: v.typ.String(), Detail: fmt.Sprintf("index %d out of range", i)}
	}
	et := at.Elem().Type
	lo := i * et.Size()
	return Value{typ: et, data: cloneRange(v.data, lo, lo+et.Size())}, nil
}

// SetIndex copies ev into element i of an array value.
func (v Value) SetIndex(i uint64, ev Value) error {
	at, ok := types.AsArray(v.typ)
	if !ok {
		return mismatch("SetIndex", v.typ)
	}
	if i >= at.Len() {
		return &ConvError{Op: "SetIndex", Type: v.typ.String(), Detail: fmt.Sprintf("index %d out of range", i)}
	}
	if ev.typ != at.Elem().Type {
		return &ConvError{Op: "SetIndex", Type: v.typ.String(), Detail: fmt.Sprintf("element has type %s, got %s", at.Elem(), types.Label(ev.typ))}
	}
	copy(v.data[i*ev.typ.Size():], ev.data)
	return nil
}

func cloneRange(data []byte, lo, hi uint64) []byte {
	out := make([]byte, hi-lo)
	copy(out, data[lo:hi])
	return out
}

// Promote converts v to its type under the default argument promotions.
// Values whose type does not promote are returned as is.
func Promote(ctx *types.Context, v Value) (Value, error) {
	if v.IsVoid() {
		return v, nil
	}
	to := abi.Promote(ctx, types.Q(v.typ)).Type
	if to == v.typ {
		return v, nil
	}
	k, _ := v.basicKind()
	switch {
	case k == types.Float32:
		f, err := v.Float()
		if err != nil {
			return Value{}, err
		}
		return FromFloat(to, f)
	case k.IsInteger():
		x, err := v.Int()
		if err != nil {
			return Value{}, err
		}
		if k == types.Bool && x != 0 {
			x = 1
		}
		return FromInt(to, x)
	default:
		return Value{}, &ConvError{Op: "Promote", Type: v.typ.String(), Detail: "no promotion rule"}
	}
}

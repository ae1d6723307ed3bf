package types

import "fmt"

// BasicKind enumerates scalar machine types.
type BasicKind uint8

const (
	Bool BasicKind = iota
	Char
	Int8
	Int16
	Int32
	Int64
	Int128
	UInt8
	UInt16
	UInt32
	UInt64
	UInt128
	Float32
	Float64
	Float128
	ComplexFloat32
	ComplexFloat64
	ComplexFloat128

	numBasicKinds
)

var basicNames = [numBasicKinds]string{
	Bool:            "bool",
	Char:            "char",
	Int8:            "int8",
	Int16:           "int16",
	Int32:           "int32",
	Int64:           "int64",
	Int128:          "int128",
	UInt8:           "uint8",
	UInt16:          "uint16",
	UInt32:          "uint32",
	UInt64:          "uint64",
	UInt128:         "uint128",
	Float32:         "float32",
	Float64:         "float64",
	Float128:        "float128",
	ComplexFloat32:  "complex_float32",
	ComplexFloat64:  "complex_float64",
	ComplexFloat128: "complex_float128",
}

func (k BasicKind) String() string {
	if k < numBasicKinds {
		return basicNames[k]
	}
	return fmt.Sprintf("BasicKind(%d)", k)
}

// Valid reports whether k names one of the known scalar kinds.
func (k BasicKind) Valid() bool {
	return k < numBasicKinds
}

// Size returns the byte size of a scalar of this kind. Size equals alignment
// for every basic kind.
func (k BasicKind) Size() uint64 {
	switch k {
	case Bool, Char, Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64, ComplexFloat32:
		return 8
	case Int128, UInt128, Float128, ComplexFloat64:
		return 16
	case ComplexFloat128:
		return 32
	default:
		return 0
	}
}

// IsInteger reports whether the kind is an integer, including bool and char.
func (k BasicKind) IsInteger() bool {
	return k <= UInt128
}

// IsSigned reports whether the kind is a signed integer. Char counts as
// signed.
func (k BasicKind) IsSigned() bool {
	switch k {
	case Char, Int8, Int16, Int32, Int64, Int128:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the kind is a real floating point kind.
func (k BasicKind) IsFloat() bool {
	return k == Float32 || k == Float64 || k == Float128
}

// IsComplex reports whether the kind is a complex floating point kind.
func (k BasicKind) IsComplex() bool {
	return k == ComplexFloat32 || k == ComplexFloat64 || k == ComplexFloat128
}

// ComplexElem returns the real kind making up each half of a complex kind.
func (k BasicKind) ComplexElem() (BasicKind, bool) {
	switch k {
	case ComplexFloat32:
		return Float32, true
	case ComplexFloat64:
		return Float64, true
	case ComplexFloat128:
		return Float128, true
	default:
		return 0, false
	}
}

// ParseBasicKind maps a spelling produced by BasicKind.String back to a kind.
func ParseBasicKind(s string) (BasicKind, bool) {
	for k, name := range basicNames {
		if name == s {
			return BasicKind(k), true
		}
	}
	return 0, false
}

// BasicType is a scalar type. It carries no state beyond its kind.
type BasicType struct {
	base
	bkind BasicKind
}

// BasicKind returns the scalar kind.
func (t *BasicType) BasicKind() BasicKind { return t.bkind }

// Size returns the byte size of the scalar.
func (t *BasicType) Size() uint64 { return t.bkind.Size() }

// Align is equal to Size for every basic kind.
func (t *BasicType) Align() uint32 { return uint32(t.bkind.Size()) }

func (t *BasicType) String() string { return Label(t) }

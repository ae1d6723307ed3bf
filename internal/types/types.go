// Package types describes C types at runtime.
//
// Every Type is owned by a Context, which is the only factory for them.
// Structural types (basic kinds, pointers, arrays, function signatures) are
// uniqued so that two requests for the same shape return the same instance
// and callers can compare types by identity. Structs, unions and enums are
// declared opaque first and defined once later, which is what makes
// self-referential and mutually-referential records expressible.
package types

import "fmt"

// TypeID identifies a type inside its Context.
type TypeID uint32

// NoTypeID marks the absence of a type (void).
const NoTypeID TypeID = 0

// TypeKind enumerates the closed set of type variants.
type TypeKind uint8

const (
	KindInvalid TypeKind = iota
	KindBasic
	KindPointer
	KindArray
	KindFunction
	KindStruct
	KindUnion
	KindEnum
)

func (k TypeKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBasic:
		return "basic"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("TypeKind(%d)", k)
	}
}

// IsComposite reports whether the kind is a struct or a union.
func (k TypeKind) IsComposite() bool {
	return k == KindStruct || k == KindUnion
}

// CanOpaque reports whether types of this kind go through the
// declare-then-define lifecycle.
func (k TypeKind) CanOpaque() bool {
	return k == KindStruct || k == KindUnion || k == KindEnum
}

// Type is implemented by every type variant of this package and nothing else.
type Type interface {
	// Kind is fixed at construction.
	Kind() TypeKind
	// ID is the arena index of the type inside its Context.
	ID() TypeID
	// Context returns the authority that owns the type.
	Context() *Context
	// Size is the byte size of the type, 0 while the type is opaque.
	Size() uint64
	// Align is the byte alignment of the type, 0 while the type is opaque.
	Align() uint32
	String() string

	sealed()
}

// CanOpaqueType is the capability shared by structs, unions and enums.
type CanOpaqueType interface {
	Type
	// Name is the tag name, empty for anonymous types.
	Name() string
	IsOpaque() bool
}

// Qualifiers is a set of C type qualifiers.
type Qualifiers uint8

const (
	QualConst Qualifiers = 1 << iota
	QualVolatile
	QualRestrict
)

func (q Qualifiers) String() string {
	s := ""
	add := func(word string) {
		if s != "" {
			s += " "
		}
		s += word
	}
	if q&QualConst != 0 {
		add("const")
	}
	if q&QualVolatile != 0 {
		add("volatile")
	}
	if q&QualRestrict != 0 {
		add("restrict")
	}
	return s
}

// QualType is a type together with its qualifiers. A nil Type is void.
type QualType struct {
	Type  Type
	Quals Qualifiers
}

// Q wraps an unqualified type.
func Q(t Type) QualType {
	return QualType{Type: t}
}

// Void is the unqualified void type.
var Void = QualType{}

// IsVoid reports whether the qualified type is void.
func (q QualType) IsVoid() bool {
	return q.Type == nil
}

// Const returns q with the const qualifier added.
func (q QualType) Const() QualType {
	q.Quals |= QualConst
	return q
}

// ID returns the type's arena index, NoTypeID for void.
func (q QualType) ID() TypeID {
	if q.Type == nil {
		return NoTypeID
	}
	return q.Type.ID()
}

// Size returns the size of the underlying type, 0 for void.
func (q QualType) Size() uint64 {
	if q.Type == nil {
		return 0
	}
	return q.Type.Size()
}

// Align returns the alignment of the underlying type, 1 for void.
func (q QualType) Align() uint32 {
	if q.Type == nil {
		return 1
	}
	return q.Type.Align()
}

func (q QualType) String() string {
	return labelQual(q, 0)
}

// base carries the state shared by every variant.
type base struct {
	kind TypeKind
	id   TypeID
	ctx  *Context
}

func (b *base) Kind() TypeKind    { return b.kind }
func (b *base) ID() TypeID        { return b.id }
func (b *base) Context() *Context { return b.ctx }
func (b *base) sealed()           {}

package types

// The As* helpers downcast by kind. They are total: any Type, including nil,
// yields either the variant or false.

// AsBasic downcasts t to a basic type.
func AsBasic(t Type) (*BasicType, bool) {
	if t == nil || t.Kind() != KindBasic {
		return nil, false
	}
	bt, ok := t.(*BasicType)
	return bt, ok
}

// AsPointer downcasts t to a pointer type.
func AsPointer(t Type) (*PointerType, bool) {
	if t == nil || t.Kind() != KindPointer {
		return nil, false
	}
	pt, ok := t.(*PointerType)
	return pt, ok
}

// AsArray downcasts t to an array type.
func AsArray(t Type) (*ArrayType, bool) {
	if t == nil || t.Kind() != KindArray {
		return nil, false
	}
	at, ok := t.(*ArrayType)
	return at, ok
}

// AsFunction downcasts t to a function type.
func AsFunction(t Type) (*FunctionType, bool) {
	if t == nil || t.Kind() != KindFunction {
		return nil, false
	}
	ft, ok := t.(*FunctionType)
	return ft, ok
}

// AsStruct downcasts t to a struct type.
func AsStruct(t Type) (*StructType, bool) {
	if t == nil || t.Kind() != KindStruct {
		return nil, false
	}
	st, ok := t.(*StructType)
	return st, ok
}

// AsUnion downcasts t to a union type.
func AsUnion(t Type) (*UnionType, bool) {
	if t == nil || t.Kind() != KindUnion {
		return nil, false
	}
	ut, ok := t.(*UnionType)
	return ut, ok
}

// AsComposite returns the shared composite part of a struct or union.
func AsComposite(t Type) (*CompositeType, bool) {
	if st, ok := AsStruct(t); ok {
		return &st.CompositeType, true
	}
	if ut, ok := AsUnion(t); ok {
		return &ut.CompositeType, true
	}
	return nil, false
}

// AsEnum downcasts t to an enum type.
func AsEnum(t Type) (*EnumType, bool) {
	if t == nil || t.Kind() != KindEnum {
		return nil, false
	}
	et, ok := t.(*EnumType)
	return et, ok
}

// AsCanOpaque returns t as a type with a declare/define lifecycle.
func AsCanOpaque(t Type) (CanOpaqueType, bool) {
	if t == nil || !t.Kind().CanOpaque() {
		return nil, false
	}
	co, ok := t.(CanOpaqueType)
	return co, ok
}

// Underlying returns the basic type an enum is represented by, or t itself.
func Underlying(t Type) Type {
	if et, ok := AsEnum(t); ok {
		return et.BasicType()
	}
	return t
}

// Complete reports a DefOpaqueUse error when t, or any member or element it
// holds by value, is still opaque. Pointees are not inspected.
func Complete(t Type) error {
	return complete(t, nil)
}

func complete(t Type, seen map[TypeID]struct{}) error {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case KindStruct, KindUnion, KindEnum:
		co, _ := AsCanOpaque(t)
		if co.IsOpaque() {
			return &DefinitionError{Kind: DefOpaqueUse, Type: t.String()}
		}
	case KindArray:
		at, _ := AsArray(t)
		return complete(at.elem.Type, seen)
	default:
		return nil
	}
	ct, ok := AsComposite(t)
	if !ok {
		return nil
	}
	if _, ok := seen[t.ID()]; ok {
		return &DefinitionError{Kind: DefOpaqueUse, Type: t.String(), Detail: "contains itself by value"}
	}
	if seen == nil {
		seen = make(map[TypeID]struct{}, 8)
	}
	seen[t.ID()] = struct{}{}
	defer delete(seen, t.ID())
	for i := range ct.Fields() {
		f := &ct.Fields()[i]
		if err := complete(f.typ.Type, seen); err != nil {
			return err
		}
	}
	return nil
}

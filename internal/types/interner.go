package types

import (
	"fmt"
	"slices"
	"sync"

	"fortio.org/safecast"
)

// DataModel carries the target properties the type model needs on its own.
type DataModel struct {
	PtrSize  uint64
	PtrAlign uint32
}

// DefaultDataModel is LP64: 8-byte pointers.
func DefaultDataModel() DataModel {
	return DataModel{PtrSize: 8, PtrAlign: 8}
}

type qualKey struct {
	elem  TypeID
	quals Qualifiers
}

type arrayKey struct {
	elem  TypeID
	quals Qualifiers
	n     uint64
}

// Context owns every Type it hands out and uniques structural types.
// Types are never evicted; they live exactly as long as the Context.
// All methods are safe for concurrent use.
type Context struct {
	model DataModel

	mu       sync.Mutex
	types    []Type // arena, slot 0 reserved for void
	basics   [numBasicKinds]*BasicType
	pointers map[qualKey]*PointerType
	arrays   map[arrayKey]*ArrayType
	funcs    map[string]*FunctionType
	tags     map[string]CanOpaqueType
	declared []CanOpaqueType
}

// NewContext constructs a Context seeded with the basic types.
func NewContext(model DataModel) *Context {
	if model.PtrSize == 0 {
		model = DefaultDataModel()
	}
	if model.PtrAlign == 0 {
		model.PtrAlign = uint32(model.PtrSize)
	}
	ctx := &Context{
		model:    model,
		types:    make([]Type, 1, 64),
		pointers: make(map[qualKey]*PointerType, 32),
		arrays:   make(map[arrayKey]*ArrayType, 16),
		funcs:    make(map[string]*FunctionType, 32),
		tags:     make(map[string]CanOpaqueType, 32),
	}
	for k := BasicKind(0); k < numBasicKinds; k++ {
		bt := &BasicType{bkind: k}
		ctx.register(&bt.base, KindBasic, bt)
		ctx.basics[k] = bt
	}
	return ctx
}

// DataModel returns the data model the Context was built with.
func (c *Context) DataModel() DataModel {
	return c.model
}

// register assigns the next arena slot. Callers hold c.mu or are in
// NewContext.
func (c *Context) register(b *base, kind TypeKind, t Type) {
	id, err := safecast.Conv[uint32](len(c.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	b.kind = kind
	b.id = TypeID(id)
	b.ctx = c
	c.types = append(c.types, t)
}

// Lookup returns the type registered under id.
func (c *Context) Lookup(id TypeID) (Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == NoTypeID || int(id) >= len(c.types) {
		return nil, false
	}
	return c.types[id], true
}

// NumTypes returns how many types the Context owns.
func (c *Context) NumTypes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.types) - 1
}

// BasicType returns the canonical instance for kind.
func (c *Context) BasicType(kind BasicKind) *BasicType {
	if !kind.Valid() {
		panic(fmt.Sprintf("types: invalid BasicKind %d", kind))
	}
	return c.basics[kind]
}

// PointerType returns the pointer to pointee, building it on first request.
// Opaque pointees are fine: that is how self-referential records are built.
func (c *Context) PointerType(pointee QualType) *PointerType {
	c.mustOwn(pointee.Type)
	key := qualKey{elem: pointee.ID(), quals: pointee.Quals}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pt, ok := c.pointers[key]; ok {
		return pt
	}
	pt := &PointerType{pointee: pointee}
	c.register(&pt.base, KindPointer, pt)
	c.pointers[key] = pt
	return pt
}

// ArrayType returns the array of n elements of elem. The element must be a
// complete object type.
func (c *Context) ArrayType(elem QualType, n uint64) (*ArrayType, error) {
	c.mustOwn(elem.Type)
	if elem.IsVoid() {
		return nil, &DefinitionError{Kind: DefBadLayout, Type: "void", Detail: "array of void"}
	}
	if elem.Type.Kind() == KindFunction {
		return nil, &DefinitionError{Kind: DefBadLayout, Type: elem.String(), Detail: "array of functions"}
	}
	if err := Complete(elem.Type); err != nil {
		return nil, err
	}
	if err := checkArraySize(elem, n); err != nil {
		return nil, &DefinitionError{Kind: DefBadLayout, Type: elem.String(), Detail: err.Error()}
	}
	key := arrayKey{elem: elem.ID(), quals: elem.Quals, n: n}
	c.mu.Lock()
	defer c.mu.Unlock()
	if at, ok := c.arrays[key]; ok {
		return at, nil
	}
	at := &ArrayType{elem: elem, n: n}
	c.register(&at.base, KindArray, at)
	c.arrays[key] = at
	return at, nil
}

// FunctionType returns the canonical signature for the full tuple of result,
// parameters, convention and variadic flag.
func (c *Context) FunctionType(ret QualType, params []QualType, cc CallingConv, variadic bool) *FunctionType {
	c.mustOwn(ret.Type)
	for _, p := range params {
		c.mustOwn(p.Type)
	}
	key := fnKey(ret, params, cc, variadic)
	c.mu.Lock()
	defer c.mu.Unlock()
	if ft, ok := c.funcs[key]; ok {
		return ft
	}
	ft := &FunctionType{
		ret:      ret,
		params:   slices.Clone(params),
		cc:       cc,
		variadic: variadic,
	}
	c.register(&ft.base, KindFunction, ft)
	c.funcs[key] = ft
	return ft
}

// DeclareStruct registers an opaque struct. Declaring a tag that already
// names a struct returns that struct, as repeated C forward declarations do.
func (c *Context) DeclareStruct(name string) (*StructType, error) {
	t, err := c.declare(KindStruct, name, func() CanOpaqueType {
		st := &StructType{}
		st.name = name
		c.register(&st.base, KindStruct, st)
		return st
	})
	if err != nil {
		return nil, err
	}
	return t.(*StructType), nil
}

// DeclareUnion registers an opaque union.
func (c *Context) DeclareUnion(name string) (*UnionType, error) {
	t, err := c.declare(KindUnion, name, func() CanOpaqueType {
		ut := &UnionType{}
		ut.name = name
		c.register(&ut.base, KindUnion, ut)
		return ut
	})
	if err != nil {
		return nil, err
	}
	return t.(*UnionType), nil
}

// DeclareEnum registers an opaque enum.
func (c *Context) DeclareEnum(name string) (*EnumType, error) {
	t, err := c.declare(KindEnum, name, func() CanOpaqueType {
		et := &EnumType{name: name}
		c.register(&et.base, KindEnum, et)
		return et
	})
	if err != nil {
		return nil, err
	}
	return t.(*EnumType), nil
}

// declare implements the shared tag namespace of structs, unions and enums.
// Anonymous declarations always build a new type.
func (c *Context) declare(kind TypeKind, name string, build func() CanOpaqueType) (CanOpaqueType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		if prev, ok := c.tags[name]; ok {
			if prev.Kind() != kind {
				return nil, &DefinitionError{Kind: DefKindClash, Type: tagLabel(kind, name), Detail: prev.Kind().String()}
			}
			return prev, nil
		}
	}
	t := build()
	if name != "" {
		c.tags[name] = t
	}
	c.declared = append(c.declared, t)
	return t, nil
}

// LookupStruct returns the struct declared under name.
func (c *Context) LookupStruct(name string) (*StructType, bool) {
	st, ok := c.lookupTag(name).(*StructType)
	return st, ok
}

// LookupUnion returns the union declared under name.
func (c *Context) LookupUnion(name string) (*UnionType, bool) {
	ut, ok := c.lookupTag(name).(*UnionType)
	return ut, ok
}

// LookupEnum returns the enum declared under name.
func (c *Context) LookupEnum(name string) (*EnumType, bool) {
	et, ok := c.lookupTag(name).(*EnumType)
	return et, ok
}

func (c *Context) lookupTag(name string) CanOpaqueType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tags[name]
}

// Types returns every declared struct, union and enum (anonymous ones
// included) in declaration order.
func (c *Context) Types() []CanOpaqueType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.declared)
}

// mustOwn panics when t belongs to another Context. Mixing authorities
// would break identity comparisons.
func (c *Context) mustOwn(t Type) {
	if t == nil {
		return
	}
	if t.Context() != c {
		panic(fmt.Sprintf("types: %s belongs to a different Context", t))
	}
}

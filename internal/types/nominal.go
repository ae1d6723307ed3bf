package types

import (
	"math/bits"
	"slices"
	"sync/atomic"
)

// CompositeField is a named, typed member of a struct or union at a fixed
// byte offset. It is immutable once built.
type CompositeField struct {
	name   string
	typ    QualType
	offset uint64
	index  int
}

// NewField builds a field description. The index is assigned by Define.
func NewField(name string, t QualType, offset uint64) CompositeField {
	return CompositeField{name: name, typ: t, offset: offset, index: -1}
}

// Name returns the field name, empty for anonymous members.
func (f *CompositeField) Name() string { return f.name }

// Type returns the field type.
func (f *CompositeField) Type() QualType { return f.typ }

// Offset returns the byte offset of the field inside its composite.
func (f *CompositeField) Offset() uint64 { return f.offset }

// Index returns the position of the field in declaration order.
func (f *CompositeField) Index() int { return f.index }

// compositeBody is published once and never mutated afterwards.
type compositeBody struct {
	fields []CompositeField
	size   uint64
	align  uint32
	byName map[string]int
}

// CompositeType is the state shared by structs and unions.
type CompositeType struct {
	base
	name string
	body atomic.Pointer[compositeBody]
}

// Name returns the tag name, empty when anonymous.
func (c *CompositeType) Name() string { return c.name }

// IsOpaque reports whether the composite has not been defined yet.
func (c *CompositeType) IsOpaque() bool { return c.body.Load() == nil }

// Size returns the defined size, 0 while opaque.
func (c *CompositeType) Size() uint64 {
	if b := c.body.Load(); b != nil {
		return b.size
	}
	return 0
}

// Align returns the defined alignment, 0 while opaque.
func (c *CompositeType) Align() uint32 {
	if b := c.body.Load(); b != nil {
		return b.align
	}
	return 0
}

// Fields returns the fields in declaration order, nil while opaque. The
// returned slice must not be modified.
func (c *CompositeType) Fields() []CompositeField {
	if b := c.body.Load(); b != nil {
		return b.fields
	}
	return nil
}

// NumFields returns the number of fields, 0 while opaque.
func (c *CompositeType) NumFields() int {
	return len(c.Fields())
}

// Field looks up a field by name. A missing name is an ordinary miss.
func (c *CompositeType) Field(name string) (*CompositeField, bool) {
	b := c.body.Load()
	if b == nil {
		return nil, false
	}
	idx, ok := b.byName[name]
	if !ok {
		return nil, false
	}
	return &b.fields[idx], true
}

func (c *CompositeType) String() string { return tagLabel(c.kind, c.name) }

// define validates and publishes the body. check runs on every field before
// anything becomes visible.
func (c *CompositeType) define(fields []CompositeField, size uint64, align uint32, check func(*CompositeField) error) error {
	if !c.IsOpaque() {
		return &DefinitionError{Kind: DefAlreadyDefined, Type: c.String()}
	}
	if align != 0 && bits.OnesCount32(align) != 1 {
		return &DefinitionError{Kind: DefBadLayout, Type: c.String(), Detail: "alignment is not a power of two"}
	}
	if align != 0 && size%uint64(align) != 0 {
		return &DefinitionError{Kind: DefBadLayout, Type: c.String(), Detail: "size is not a multiple of the alignment"}
	}
	body := &compositeBody{
		fields: slices.Clone(fields),
		size:   size,
		align:  align,
		byName: make(map[string]int, len(fields)),
	}
	for i := range body.fields {
		f := &body.fields[i]
		f.index = i
		if check != nil {
			if err := check(f); err != nil {
				return err
			}
		}
		if f.name == "" {
			continue
		}
		if _, dup := body.byName[f.name]; dup {
			return &DefinitionError{Kind: DefDuplicateField, Type: c.String(), Field: f.name}
		}
		body.byName[f.name] = i
	}
	if !c.body.CompareAndSwap(nil, body) {
		return &DefinitionError{Kind: DefAlreadyDefined, Type: c.String()}
	}
	return nil
}

// StructType is a C struct.
type StructType struct {
	CompositeType
}

// Define gives the struct its body. It succeeds exactly once; later calls
// return a DefAlreadyDefined error and leave the first definition intact.
func (t *StructType) Define(fields []CompositeField, size uint64, align uint32) error {
	return t.define(fields, size, align, nil)
}

// UnionType is a C union. Every field lives at offset 0.
type UnionType struct {
	CompositeType
}

// Define gives the union its body. A field with a non-zero offset means the
// description is wrong; the union then stays opaque.
func (t *UnionType) Define(fields []CompositeField, size uint64, align uint32) error {
	return t.define(fields, size, align, func(f *CompositeField) error {
		if f.offset != 0 {
			return &DefinitionError{Kind: DefUnionOffset, Type: t.String(), Field: f.name, Offset: f.offset}
		}
		return nil
	})
}

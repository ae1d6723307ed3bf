package types //nolint:revive

import (
	"slices"
	"strconv"
	"sync/atomic"

	"fortio.org/safecast"
)

// EnumConstant is a single named enumerator.
type EnumConstant struct {
	Name  string
	Value int64
}

type enumBody struct {
	constants []EnumConstant
	byName    map[string]int
}

// EnumType is a C enum. Its representation is always the Context's
// canonical Int32 basic type.
type EnumType struct {
	base
	name string
	body atomic.Pointer[enumBody]
}

// Name returns the tag name, empty when anonymous.
func (t *EnumType) Name() string { return t.name }

// IsOpaque reports whether the enum has not been defined yet.
func (t *EnumType) IsOpaque() bool { return t.body.Load() == nil }

// BasicType returns the canonical integer type backing the enum.
func (t *EnumType) BasicType() *BasicType {
	return t.ctx.BasicType(Int32)
}

// Size returns the size of the backing type, 0 while opaque.
func (t *EnumType) Size() uint64 {
	if t.IsOpaque() {
		return 0
	}
	return t.BasicType().Size()
}

// Align returns the alignment of the backing type, 0 while opaque.
func (t *EnumType) Align() uint32 {
	if t.IsOpaque() {
		return 0
	}
	return t.BasicType().Align()
}

// Constants returns the enumerators in declaration order. The returned slice
// must not be modified.
func (t *EnumType) Constants() []EnumConstant {
	if b := t.body.Load(); b != nil {
		return b.constants
	}
	return nil
}

// Constant looks up an enumerator by name.
func (t *EnumType) Constant(name string) (EnumConstant, bool) {
	b := t.body.Load()
	if b == nil {
		return EnumConstant{}, false
	}
	idx, ok := b.byName[name]
	if !ok {
		return EnumConstant{}, false
	}
	return b.constants[idx], true
}

// Define sets the enumerators. It succeeds exactly once. Every value must
// fit the int32 representation.
func (t *EnumType) Define(constants []EnumConstant) error {
	if !t.IsOpaque() {
		return &DefinitionError{Kind: DefAlreadyDefined, Type: t.String()}
	}
	body := &enumBody{
		constants: slices.Clone(constants),
		byName:    make(map[string]int, len(constants)),
	}
	for i, c := range body.constants {
		if _, dup := body.byName[c.Name]; dup {
			return &DefinitionError{Kind: DefDuplicateField, Type: t.String(), Field: c.Name}
		}
		if _, err := safecast.Conv[int32](c.Value); err != nil {
			return &DefinitionError{
				Kind:   DefBadLayout,
				Type:   t.String(),
				Field:  c.Name,
				Detail: c.Name + " = " + strconv.FormatInt(c.Value, 10) + " does not fit in int32",
			}
		}
		body.byName[c.Name] = i
	}
	if !t.body.CompareAndSwap(nil, body) {
		return &DefinitionError{Kind: DefAlreadyDefined, Type: t.String()}
	}
	return nil
}

func (t *EnumType) String() string { return tagLabel(KindEnum, t.name) }

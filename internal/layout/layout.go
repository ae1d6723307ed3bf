package layout

import (
	"dffi/internal/types"
)

// Member is one member of a record to be laid out.
type Member struct {
	Name string
	Type types.QualType
	// AlignOverride raises the member's alignment, 0 keeps the natural one.
	AlignOverride uint32
}

// Attrs are record-level layout attributes.
type Attrs struct {
	Packed bool
	// Align raises the record alignment, 0 keeps the natural one.
	Align uint32
}

// Result is the layout of a record for a specific Target.
type Result struct {
	Size    uint64
	Align   uint32
	Offsets []uint64
	Aligns  []uint32
}

// Fields pairs the computed offsets with the members they belong to.
func (r Result) Fields(members []Member) []types.CompositeField {
	out := make([]types.CompositeField, len(members))
	for i, m := range members {
		out[i] = types.NewField(m.Name, m.Type, r.Offsets[i])
	}
	return out
}

// Engine computes C record layouts the way the target's C compiler does.
type Engine struct {
	Target Target
}

// New creates a new Engine for the specified target.
func New(target Target) *Engine {
	return &Engine{Target: target}
}

// StructLayout places members at increasing offsets.
func (e *Engine) StructLayout(name string, members []Member, attrs Attrs) (Result, error) {
	if err := e.checkAttrs(name, attrs); err != nil {
		return Result{}, err
	}
	return e.structLayout(name, members, attrs)
}

// UnionLayout places every member at offset 0.
func (e *Engine) UnionLayout(name string, members []Member, attrs Attrs) (Result, error) {
	if err := e.checkAttrs(name, attrs); err != nil {
		return Result{}, err
	}
	return e.unionLayout(name, members, attrs)
}

// DefineStruct computes the layout of members and defines st with it.
func (e *Engine) DefineStruct(st *types.StructType, members []Member, attrs Attrs) error {
	res, err := e.StructLayout(st.String(), members, attrs)
	if err != nil {
		return err
	}
	return st.Define(res.Fields(members), res.Size, res.Align)
}

// DefineUnion computes the layout of members and defines ut with it.
func (e *Engine) DefineUnion(ut *types.UnionType, members []Member, attrs Attrs) error {
	res, err := e.UnionLayout(ut.String(), members, attrs)
	if err != nil {
		return err
	}
	return ut.Define(res.Fields(members), res.Size, res.Align)
}

func (e *Engine) checkAttrs(name string, attrs Attrs) error {
	if attrs.Packed && attrs.Align != 0 {
		return &LayoutError{Kind: LayoutErrConflictingAttrs, Type: name}
	}
	if !isPow2(attrs.Align) {
		return &LayoutError{Kind: LayoutErrBadAlign, Type: name, Value: uint64(attrs.Align)}
	}
	return nil
}

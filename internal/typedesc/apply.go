package typedesc

import (
	"errors"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"dffi/internal/ffi"
	"dffi/internal/layout"
	"dffi/internal/types"
)

// Function is a described function resolved to a signature.
type Function struct {
	Name   string
	Symbol string
	Type   *types.FunctionType
}

// Set is what a group of descriptions produced.
type Set struct {
	Library   string
	Records   []types.CanOpaqueType // structs, unions and enums in file order
	Functions []Function
}

// Function returns the described function called name.
func (s *Set) Function(name string) (Function, bool) {
	i := slices.IndexFunc(s.Functions, func(f Function) bool { return f.Name == name })
	if i < 0 {
		return Function{}, false
	}
	return s.Functions[i], true
}

type pending struct {
	file   string
	kind   types.TypeKind
	record *RecordDesc
	enum   *EnumDesc
	typ    types.CanOpaqueType
	state  uint8 // 0 waiting, 1 in progress, 2 done
}

func (p *pending) item() string {
	if p.enum != nil {
		return "enum " + p.enum.Name
	}
	return p.kind.String() + " " + p.record.Name
}

type applier struct {
	rt    *ffi.Runtime
	byTag map[string]*pending
	order []*pending
}

// Apply declares every record and enum of files, defines them and then
// resolves the functions. Declarations come first so records may refer to
// each other through pointers in any order; a record holding another by
// value gets that one defined first.
func Apply(rt *ffi.Runtime, files ...*File) (*Set, error) {
	a := &applier{rt: rt, byTag: make(map[string]*pending)}
	set := &Set{}
	for _, f := range files {
		if f.Library.Path != "" {
			set.Library = f.Library.Path
		}
		if err := a.declareAll(f); err != nil {
			return nil, err
		}
	}
	for _, p := range a.order {
		if err := a.define(p); err != nil {
			return nil, err
		}
		set.Records = append(set.Records, p.typ)
	}
	for _, f := range files {
		for i := range f.Functions {
			fd := &f.Functions[i]
			ft, err := a.function(fd)
			if err != nil {
				return nil, &DescError{File: f.Name, Item: "function " + fd.Name, Err: err}
			}
			if _, dup := set.Function(fd.Name); dup {
				return nil, &DescError{File: f.Name, Item: "function " + fd.Name, Err: errors.New("declared twice")}
			}
			set.Functions = append(set.Functions, Function{Name: fd.Name, Symbol: fd.SymbolName(), Type: ft})
		}
	}
	return set, nil
}

func (a *applier) declareAll(f *File) error {
	add := func(p *pending, name string) error {
		var (
			t   types.CanOpaqueType
			err error
		)
		switch p.kind {
		case types.KindStruct:
			t, err = a.rt.DeclareStruct(name)
		case types.KindUnion:
			t, err = a.rt.DeclareUnion(name)
		default:
			t, err = a.rt.DeclareEnum(name)
		}
		if err != nil {
			return &DescError{File: f.Name, Item: p.item(), Err: err}
		}
		if _, dup := a.byTag[name]; dup {
			return &DescError{File: f.Name, Item: p.item(), Err: errors.New("described twice")}
		}
		p.typ = t
		a.byTag[name] = p
		a.order = append(a.order, p)
		return nil
	}
	for i := range f.Structs {
		if err := add(&pending{file: f.Name, kind: types.KindStruct, record: &f.Structs[i]}, f.Structs[i].Name); err != nil {
			return err
		}
	}
	for i := range f.Unions {
		if err := add(&pending{file: f.Name, kind: types.KindUnion, record: &f.Unions[i]}, f.Unions[i].Name); err != nil {
			return err
		}
	}
	for i := range f.Enums {
		if err := add(&pending{file: f.Name, kind: types.KindEnum, enum: &f.Enums[i]}, f.Enums[i].Name); err != nil {
			return err
		}
	}
	return nil
}

// resolve parses a spelling; by-value uses of described records pull their
// definitions forward.
func (a *applier) resolve(spelling string) (types.QualType, error) {
	qt, err := ParseType(a.rt.Context, spelling)
	if err != nil {
		return types.QualType{}, err
	}
	t := qt.Type
	for {
		at, ok := types.AsArray(t)
		if !ok {
			break
		}
		t = at.Elem().Type
	}
	if co, ok := types.AsCanOpaque(t); ok {
		if p, ok := a.byTag[co.Name()]; ok && p.typ == co {
			if err := a.define(p); err != nil {
				return types.QualType{}, err
			}
		}
	}
	return qt, nil
}

func (a *applier) define(p *pending) error {
	switch p.state {
	case 2:
		return nil
	case 1:
		return &DescError{File: p.file, Item: p.item(), Err: &types.DefinitionError{
			Kind: types.DefOpaqueUse, Type: p.typ.String(), Detail: "contains itself by value"}}
	}
	p.state = 1
	var err error
	if p.enum != nil {
		err = a.defineEnum(p)
	} else {
		err = a.defineRecord(p)
	}
	if err != nil {
		var de *DescError
		if errors.As(err, &de) {
			return err
		}
		return &DescError{File: p.file, Item: p.item(), Err: err}
	}
	p.state = 2
	return nil
}

func (a *applier) defineEnum(p *pending) error {
	e := p.enum
	if e.Opaque || len(e.Constants) == 0 {
		return nil
	}
	et := p.typ.(*types.EnumType)
	consts := make([]types.EnumConstant, len(e.Constants))
	for i, c := range e.Constants {
		consts[i] = types.EnumConstant{Name: c.Name, Value: c.Value}
	}
	return et.Define(consts)
}

func (a *applier) defineRecord(p *pending) error {
	r := p.record
	if r.Opaque {
		if len(r.Fields) > 0 {
			return errors.New("opaque record with fields")
		}
		return nil
	}
	members := make([]layout.Member, len(r.Fields))
	for i, fd := range r.Fields {
		qt, err := a.resolve(fd.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", fd.Name, err)
		}
		members[i] = layout.Member{Name: fd.Name, Type: qt, AlignOverride: fd.Align}
	}
	if r.explicitOffsets() {
		return a.defineExplicit(p, members)
	}
	if r.Size != nil {
		return errors.New("size needs an offset on every field")
	}
	attrs := layout.Attrs{Packed: r.Packed, Align: r.Align}
	switch t := p.typ.(type) {
	case *types.StructType:
		return a.rt.Layout().DefineStruct(t, members, attrs)
	case *types.UnionType:
		return a.rt.Layout().DefineUnion(t, members, attrs)
	}
	return fmt.Errorf("unexpected %s", p.typ)
}

// defineExplicit uses the offsets as given. Size defaults to the end of the
// last member rounded up to the record alignment.
func (a *applier) defineExplicit(p *pending, members []layout.Member) error {
	r := p.record
	align := max(r.Align, 1)
	if r.Packed && r.Align == 0 {
		align = 1
	}
	fields := make([]types.CompositeField, len(members))
	var end uint64
	for i, m := range members {
		if m.Type.IsVoid() || m.Type.Type.Kind() == types.KindFunction {
			return fmt.Errorf("field %s: %s is not an object type", m.Name, m.Type)
		}
		if err := types.Complete(m.Type.Type); err != nil {
			return fmt.Errorf("field %s: %w", m.Name, err)
		}
		off := *r.Fields[i].Offset
		fields[i] = types.NewField(m.Name, m.Type, off)
		end = max(end, off+m.Type.Size())
		switch {
		case r.Align != 0:
		case r.Packed:
			align = max(align, m.AlignOverride)
		default:
			align = max(align, m.Type.Align(), m.AlignOverride)
		}
	}
	if _, isStruct := p.typ.(*types.StructType); isStruct {
		if err := checkOverlap(fields); err != nil {
			return err
		}
	}
	size := end
	if r.Size != nil {
		size = *r.Size
	} else if rem := size % uint64(align); rem != 0 {
		size += uint64(align) - rem
	}
	if size < end {
		return fmt.Errorf("size %d is smaller than the members (%d)", size, end)
	}
	if _, err := safecast.Conv[int64](size); err != nil {
		return fmt.Errorf("size %d: %w", size, err)
	}
	switch t := p.typ.(type) {
	case *types.StructType:
		return t.Define(fields, size, align)
	case *types.UnionType:
		return t.Define(fields, size, align)
	}
	return fmt.Errorf("unexpected %s", p.typ)
}

func (a *applier) function(fd *FuncDesc) (*types.FunctionType, error) {
	ret := types.Void
	if fd.Return != "" {
		var err error
		if ret, err = a.resolve(fd.Return); err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
	}
	params := make([]types.QualType, 0, len(fd.Params))
	for i, s := range fd.Params {
		qt, err := a.resolve(s)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		if qt.IsVoid() {
			return nil, fmt.Errorf("parameter %d: void", i)
		}
		params = append(params, qt)
	}
	cc, err := types.ParseCallingConv(fd.Conv)
	if err != nil {
		return nil, err
	}
	return a.rt.FunctionType(ret, params, cc, fd.Variadic), nil
}

// checkOverlap rejects struct members that share bytes.
func checkOverlap(fields []types.CompositeField) error {
	for i := range fields {
		a := &fields[i]
		aEnd := a.Offset() + a.Type().Size()
		for j := i + 1; j < len(fields); j++ {
			b := &fields[j]
			bEnd := b.Offset() + b.Type().Size()
			if a.Offset() < bEnd && b.Offset() < aEnd {
				return fmt.Errorf("fields %s and %s overlap", a.Name(), b.Name())
			}
		}
	}
	return nil
}

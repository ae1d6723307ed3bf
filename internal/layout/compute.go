package layout

import (
	"errors"
	"math/bits"

	"fortio.org/safecast"

	"dffi/internal/types"
)

type memberLayout struct {
	size     uint64
	align    uint32
	override uint32
}

// effectiveAlign is the alignment a member gets inside the record. Packing
// drops the natural alignment but keeps an explicit member override.
func (ml memberLayout) effectiveAlign(packed bool) uint32 {
	if packed {
		return max(ml.override, 1)
	}
	return ml.align
}

func (e *Engine) memberLayout(record string, m Member) (memberLayout, error) {
	if m.Type.IsVoid() {
		return memberLayout{}, &LayoutError{Kind: LayoutErrInvalidMember, Type: record, Field: m.Name, Err: errors.New("member of type void")}
	}
	if m.Type.Type.Kind() == types.KindFunction {
		return memberLayout{}, &LayoutError{Kind: LayoutErrInvalidMember, Type: record, Field: m.Name, Err: errors.New("member of function type")}
	}
	if err := types.Complete(m.Type.Type); err != nil {
		return memberLayout{}, &LayoutError{Kind: LayoutErrOpaqueMember, Type: record, Field: m.Name, Err: err}
	}
	if !isPow2(m.AlignOverride) {
		return memberLayout{}, &LayoutError{Kind: LayoutErrBadAlign, Type: record, Field: m.Name, Value: uint64(m.AlignOverride)}
	}
	align := max(m.Type.Align(), m.AlignOverride, 1)
	return memberLayout{size: m.Type.Size(), align: align, override: m.AlignOverride}, nil
}

func (e *Engine) structLayout(name string, members []Member, attrs Attrs) (Result, error) {
	res := Result{
		Offsets: make([]uint64, len(members)),
		Aligns:  make([]uint32, len(members)),
	}
	size := uint64(0)
	align := uint32(1)
	for i, m := range members {
		ml, err := e.memberLayout(name, m)
		if err != nil {
			return Result{}, err
		}
		fAlign := ml.effectiveAlign(attrs.Packed)
		var ok bool
		if size, ok = roundUp(size, fAlign); !ok {
			return Result{}, &LayoutError{Kind: LayoutErrOverflow, Type: name, Field: m.Name}
		}
		res.Offsets[i] = size
		res.Aligns[i] = fAlign
		var carry uint64
		size, carry = bits.Add64(size, ml.size, 0)
		if carry != 0 {
			return Result{}, &LayoutError{Kind: LayoutErrOverflow, Type: name, Field: m.Name}
		}
		align = max(align, fAlign)
	}
	return finish(name, res, size, align, attrs)
}

func (e *Engine) unionLayout(name string, members []Member, attrs Attrs) (Result, error) {
	res := Result{
		Offsets: make([]uint64, len(members)),
		Aligns:  make([]uint32, len(members)),
	}
	size := uint64(0)
	align := uint32(1)
	for i, m := range members {
		ml, err := e.memberLayout(name, m)
		if err != nil {
			return Result{}, err
		}
		fAlign := ml.effectiveAlign(attrs.Packed)
		res.Aligns[i] = fAlign
		size = max(size, ml.size)
		align = max(align, fAlign)
	}
	return finish(name, res, size, align, attrs)
}

// finish applies the record alignment and rounds the size up to it.
func finish(name string, res Result, size uint64, align uint32, attrs Attrs) (Result, error) {
	if attrs.Align != 0 {
		align = max(align, attrs.Align)
	}
	size, ok := roundUp(size, align)
	if !ok {
		return Result{}, &LayoutError{Kind: LayoutErrOverflow, Type: name}
	}
	if _, err := safecast.Conv[int64](size); err != nil {
		return Result{}, &LayoutError{Kind: LayoutErrOverflow, Type: name, Err: err}
	}
	res.Size = size
	res.Align = align
	return res, nil
}

// roundUp reports false when the rounded value does not fit in uint64.
func roundUp(n uint64, align uint32) (uint64, bool) {
	if align <= 1 {
		return n, true
	}
	a := uint64(align)
	r := n % a
	if r == 0 {
		return n, true
	}
	out, carry := bits.Add64(n, a-r, 0)
	return out, carry == 0
}

// isPow2 accepts 0 as "no alignment requested".
func isPow2(a uint32) bool {
	return a == 0 || bits.OnesCount32(a) == 1
}

package abi

import (
	"fortio.org/safecast"

	"dffi/internal/types"
)

const (
	aapcsGPRs = 8
	aapcsFPRs = 8
)

// hfa detects a homogeneous floating-point aggregate: a record, array or
// complex value made of one to four members of a single float kind.
func hfa(t types.Type) (types.BasicKind, int, bool) {
	switch t.Kind() {
	case types.KindStruct, types.KindUnion, types.KindArray:
	case types.KindBasic:
		bt, _ := types.AsBasic(t)
		if _, ok := bt.BasicKind().ComplexElem(); !ok {
			return 0, 0, false
		}
	default:
		return 0, 0, false
	}
	var base types.BasicKind
	set := false
	if !hfaLeaves(t, &base, &set) || !set {
		return 0, 0, false
	}
	bs := base.Size()
	if t.Size() == 0 || t.Size()%bs != 0 {
		return 0, 0, false
	}
	n, err := safecast.Conv[int](t.Size() / bs)
	if err != nil || n < 1 || n > 4 {
		return 0, 0, false
	}
	return base, n, true
}

func hfaLeaves(t types.Type, base *types.BasicKind, set *bool) bool {
	switch t.Kind() {
	case types.KindBasic:
		bt, _ := types.AsBasic(t)
		k := bt.BasicKind()
		if elem, ok := k.ComplexElem(); ok {
			k = elem
		}
		if !k.IsFloat() {
			return false
		}
		if *set && *base != k {
			return false
		}
		*base, *set = k, true
		return true
	case types.KindArray:
		at, _ := types.AsArray(t)
		if at.Len() == 0 {
			return true
		}
		return hfaLeaves(at.Elem().Type, base, set)
	case types.KindStruct, types.KindUnion:
		ct, _ := types.AsComposite(t)
		if ct.NumFields() == 0 {
			return false
		}
		for _, f := range ct.Fields() {
			if !hfaLeaves(f.Type().Type, base, set) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func repeatClass(c Class, n int) []Class {
	return fillClass(make([]Class, n), c)
}

func classifyAAPCS64(p *Plan, darwin bool) {
	ngrn, nsrn := 0, 0
	var nsaa uint64

	ret := &p.Return
	if ret.Kind != Ignore {
		t := ret.Type.Type
		switch base, n, ok := hfa(t); {
		case ret.Size == 0:
			ret.Kind = Ignore
		case ok:
			ret.Kind = Direct
			ret.HFABase, ret.HFACount = base, n
			ret.Classes = repeatClass(ClassSSE, n)
			ret.FPRs = n
		case isFloat(t):
			ret.Kind = Direct
			ret.Classes = []Class{ClassSSE}
			ret.FPRs = 1
		case ret.Size > 16:
			// Result address goes in x8, which is not an argument register.
			ret.Kind = Indirect
			ret.Classes = []Class{ClassMemory}
			p.SRet = true
		default:
			words := int((ret.Size + 7) / 8)
			ret.Kind = Direct
			ret.Classes = repeatClass(ClassInteger, words)
			ret.GPRs = words
		}
	}

	place := func(a *ArgInfo, variadic bool) {
		t := a.Type.Type
		if a.Size == 0 {
			a.Kind = Ignore
			return
		}
		toStack := func() {
			a.Kind = Stack
			a.StackOffset, nsaa = stackSlot(nsaa, a.Size, a.Align)
		}
		if variadic && darwin {
			a.Classes = []Class{ClassMemory}
			toStack()
			return
		}
		if base, n, ok := hfa(t); ok {
			a.HFABase, a.HFACount = base, n
			a.Classes = repeatClass(ClassSSE, n)
			if nsrn+n <= aapcsFPRs {
				a.Kind = Direct
				a.FPRs = n
				nsrn += n
				return
			}
			nsrn = aapcsFPRs
			toStack()
			return
		}
		if isFloat(t) {
			a.Classes = []Class{ClassSSE}
			if nsrn < aapcsFPRs {
				a.Kind = Direct
				a.FPRs = 1
				nsrn++
				return
			}
			toStack()
			return
		}
		if a.Size > 16 {
			// Caller copy passed by address.
			a.Kind = Indirect
			a.Classes = []Class{ClassMemory}
			if ngrn < aapcsGPRs {
				a.GPRs = 1
				ngrn++
			} else {
				a.StackOffset, nsaa = stackSlot(nsaa, 8, 8)
			}
			return
		}
		words := int((a.Size + 7) / 8)
		a.Classes = repeatClass(ClassInteger, words)
		if a.Align >= 16 && ngrn%2 != 0 {
			ngrn++
		}
		if ngrn+words <= aapcsGPRs {
			a.Kind = Direct
			a.GPRs = words
			ngrn += words
			return
		}
		ngrn = aapcsGPRs
		toStack()
	}
	for i := range p.Params {
		place(&p.Params[i], false)
	}
	for i := range p.Extra {
		place(&p.Extra[i], true)
	}
	p.GPRsUsed = ngrn
	p.FPRsUsed = nsrn
	p.StackSize = nsaa
}

func isFloat(t types.Type) bool {
	_, ok := isFloatScalar(t)
	return ok
}

package abi

import (
	"dffi/internal/types"
)

const (
	sysvGPRs = 6
	sysvFPRs = 8
)

// sysvClasses classifies t into eightbytes per the x86-64 System V psABI.
func sysvClasses(t types.Type) []Class {
	size := t.Size()
	if size == 0 {
		return nil
	}
	if bt, ok := types.AsBasic(t); ok && bt.BasicKind() == types.ComplexFloat128 {
		return []Class{ClassComplexX87}
	}
	n := (size + 7) / 8
	cls := make([]Class, n)
	if size > 16 || !sysvFill(t, 0, cls) {
		return fillClass(cls, ClassMemory)
	}
	return sysvCleanup(cls)
}

func fillClass(cls []Class, c Class) []Class {
	for i := range cls {
		cls[i] = c
	}
	return cls
}

// sysvFill merges the classes of every scalar inside t into cls. It reports
// false for unaligned members, which force MEMORY.
func sysvFill(t types.Type, off uint64, cls []Class) bool {
	switch t.Kind() {
	case types.KindBasic:
		bt, _ := types.AsBasic(t)
		k := bt.BasicKind()
		if off%uint64(bt.Align()) != 0 {
			return false
		}
		if elem, ok := k.ComplexElem(); ok {
			half := elem.Size()
			return sysvFillBasic(elem, off, cls) && sysvFillBasic(elem, off+half, cls)
		}
		return sysvFillBasic(k, off, cls)
	case types.KindPointer, types.KindEnum:
		if off%uint64(t.Align()) != 0 {
			return false
		}
		merge(cls, off/8, ClassInteger)
		return true
	case types.KindArray:
		at, _ := types.AsArray(t)
		esize := at.Elem().Size()
		for i := uint64(0); i < at.Len(); i++ {
			if !sysvFill(at.Elem().Type, off+i*esize, cls) {
				return false
			}
		}
		return true
	case types.KindStruct, types.KindUnion:
		ct, _ := types.AsComposite(t)
		for _, f := range ct.Fields() {
			ft := f.Type()
			fo := off + f.Offset()
			if a := ft.Align(); a > 1 && fo%uint64(a) != 0 {
				return false
			}
			if !sysvFill(ft.Type, fo, cls) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func sysvFillBasic(k types.BasicKind, off uint64, cls []Class) bool {
	idx := off / 8
	switch {
	case k == types.Int128 || k == types.UInt128:
		merge(cls, idx, ClassInteger)
		merge(cls, idx+1, ClassInteger)
	case k.IsInteger():
		merge(cls, idx, ClassInteger)
	case k == types.Float128:
		merge(cls, idx, ClassX87)
		merge(cls, idx+1, ClassX87Up)
	case k.IsFloat():
		merge(cls, idx, ClassSSE)
	default:
		return false
	}
	return true
}

func merge(cls []Class, idx uint64, c Class) {
	if idx >= uint64(len(cls)) {
		return
	}
	cls[idx] = mergeClass(cls[idx], c)
}

func mergeClass(a, b Class) Class {
	switch {
	case a == b:
		return a
	case a == ClassNoClass:
		return b
	case b == ClassNoClass:
		return a
	case a == ClassMemory || b == ClassMemory:
		return ClassMemory
	case a == ClassInteger || b == ClassInteger:
		return ClassInteger
	case a == ClassX87 || a == ClassX87Up || a == ClassComplexX87,
		b == ClassX87 || b == ClassX87Up || b == ClassComplexX87:
		return ClassMemory
	default:
		return ClassSSE
	}
}

func sysvCleanup(cls []Class) []Class {
	for i, c := range cls {
		switch c {
		case ClassMemory:
			return fillClass(cls, ClassMemory)
		case ClassX87Up:
			if i == 0 || cls[i-1] != ClassX87 {
				return fillClass(cls, ClassMemory)
			}
		case ClassSSEUp:
			if i == 0 || (cls[i-1] != ClassSSE && cls[i-1] != ClassSSEUp) {
				cls[i] = ClassSSE
			}
		}
	}
	return cls
}

func countRegs(cls []Class) (gprs, fprs int) {
	for _, c := range cls {
		switch c {
		case ClassInteger:
			gprs++
		case ClassSSE:
			fprs++
		}
	}
	return gprs, fprs
}

// passedInMemory reports whether an argument with these classes goes on the
// stack. X87 classes are only register classes for results.
func passedInMemory(cls []Class) bool {
	for _, c := range cls {
		switch c {
		case ClassMemory, ClassX87, ClassX87Up, ClassComplexX87:
			return true
		}
	}
	return false
}

func classifySysV(p *Plan) {
	gpr, fpr := 0, 0
	var stack uint64

	ret := &p.Return
	if ret.Kind != Ignore {
		ret.Classes = sysvClasses(ret.Type.Type)
		switch {
		case len(ret.Classes) == 0:
			ret.Kind = Ignore
		case ret.Classes[0] == ClassMemory:
			ret.Kind = Indirect
			ret.GPRs = 1
			p.SRet = true
			gpr = 1
		default:
			ret.Kind = Direct
			ret.GPRs, ret.FPRs = countRegs(ret.Classes)
		}
	}

	place := func(a *ArgInfo) {
		a.Classes = sysvClasses(a.Type.Type)
		if len(a.Classes) == 0 {
			a.Kind = Ignore
			return
		}
		ni, ns := countRegs(a.Classes)
		if passedInMemory(a.Classes) || gpr+ni > sysvGPRs || fpr+ns > sysvFPRs {
			a.Kind = Stack
			a.StackOffset, stack = stackSlot(stack, a.Size, a.Align)
			return
		}
		a.Kind = Direct
		a.GPRs, a.FPRs = ni, ns
		gpr += ni
		fpr += ns
	}
	for i := range p.Params {
		place(&p.Params[i])
	}
	for i := range p.Extra {
		place(&p.Extra[i])
	}
	p.GPRsUsed = gpr
	p.FPRsUsed = fpr
	p.StackSize = stack
}

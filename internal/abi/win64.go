package abi

import (
	"dffi/internal/types"
)

const win64Slots = 4

// win64ByValue reports whether a value of this type travels in a slot
// itself rather than behind a reference.
func win64ByValue(t types.Type) bool {
	switch t.Kind() {
	case types.KindPointer, types.KindEnum:
		return true
	case types.KindBasic:
		bt, _ := types.AsBasic(t)
		return bt.Size() <= 8
	}
	switch t.Size() {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

func win64Class(t types.Type) Class {
	if _, ok := isFloatScalar(t); ok {
		return ClassSSE
	}
	return ClassInteger
}

func classifyWin64(p *Plan) {
	slot := 0
	gpr, fpr := 0, 0

	ret := &p.Return
	if ret.Kind != Ignore {
		switch {
		case ret.Size == 0:
			ret.Kind = Ignore
		case win64ByValue(ret.Type.Type):
			ret.Kind = Direct
			ret.Classes = []Class{win64Class(ret.Type.Type)}
			if ret.Classes[0] == ClassSSE {
				ret.FPRs = 1
			} else {
				ret.GPRs = 1
			}
		default:
			ret.Kind = Indirect
			ret.Classes = []Class{ClassMemory}
			ret.GPRs = 1
			p.SRet = true
			slot = 1
			gpr = 1
		}
	}

	place := func(a *ArgInfo) {
		if win64ByValue(a.Type.Type) {
			a.Kind = Direct
			a.Classes = []Class{win64Class(a.Type.Type)}
		} else {
			a.Kind = Indirect
			a.Classes = []Class{ClassMemory}
		}
		if slot < win64Slots {
			if a.Kind == Direct && a.Classes[0] == ClassSSE {
				a.FPRs = 1
				fpr++
			} else {
				a.GPRs = 1
				gpr++
			}
		} else {
			if a.Kind == Direct {
				a.Kind = Stack
			}
			a.StackOffset = uint64(8 * slot)
		}
		slot++
	}
	for i := range p.Params {
		place(&p.Params[i])
	}
	for i := range p.Extra {
		place(&p.Extra[i])
	}
	p.GPRsUsed = gpr
	p.FPRsUsed = fpr
	// The caller always reserves home space for the four register slots.
	p.StackSize = uint64(8 * max(slot, win64Slots))
}

package native

import (
	"fmt"

	"dffi/internal/abi"
	"dffi/internal/layout"
	"dffi/internal/types"
)

// lowKind names the libffi scalar types a call is expressed with.
type lowKind uint8

const (
	lowVoid lowKind = iota
	lowUint8
	lowSint8
	lowUint16
	lowSint16
	lowUint32
	lowSint32
	lowUint64
	lowSint64
	lowFloat
	lowDouble
	lowLongDouble
	lowPointer
	lowStruct
)

// lowType is a libffi type description built in Go. Records are not handed
// to libffi member by member: they are re-expressed from their ABI classes,
// which also covers unions and packed layouts libffi cannot describe.
type lowType struct {
	kind  lowKind
	elems []*lowType
}

var (
	lowVoidT   = &lowType{kind: lowVoid}
	lowScalars = map[lowKind]*lowType{}
)

func scalarLow(k lowKind) *lowType {
	if t, ok := lowScalars[k]; ok {
		return t
	}
	return &lowType{kind: k}
}

func init() {
	for k := lowUint8; k <= lowPointer; k++ {
		lowScalars[k] = &lowType{kind: k}
	}
}

func structLow(elems ...*lowType) *lowType {
	return &lowType{kind: lowStruct, elems: elems}
}

func repeatLow(t *lowType, n int) *lowType {
	elems := make([]*lowType, n)
	for i := range elems {
		elems[i] = t
	}
	return structLow(elems...)
}

func (t *lowType) size() uint64 {
	switch t.kind {
	case lowVoid:
		return 0
	case lowUint8, lowSint8:
		return 1
	case lowUint16, lowSint16:
		return 2
	case lowUint32, lowSint32, lowFloat:
		return 4
	case lowUint64, lowSint64, lowDouble, lowPointer:
		return 8
	case lowLongDouble:
		return 16
	}
	var off uint64
	align := uint64(t.align())
	for _, e := range t.elems {
		a := uint64(e.align())
		off = (off + a - 1) &^ (a - 1)
		off += e.size()
	}
	return (off + align - 1) &^ (align - 1)
}

func (t *lowType) align() uint32 {
	if t.kind != lowStruct {
		return uint32(max(t.size(), 1))
	}
	a := uint32(1)
	for _, e := range t.elems {
		a = max(a, e.align())
	}
	return a
}

func (t *lowType) String() string {
	names := [...]string{"void", "uint8", "sint8", "uint16", "sint16", "uint32", "sint32",
		"uint64", "sint64", "float", "double", "longdouble", "pointer"}
	if t.kind != lowStruct {
		return names[t.kind]
	}
	s := "{"
	for i, e := range t.elems {
		if i > 0 {
			s += ","
		}
		s += e.String()
	}
	return s + "}"
}

// lowerer turns classified arguments into libffi types for one convention.
type lowerer struct {
	arch layout.Arch
	conv types.CallingConv
	fn   string
}

func newLowerer(p *abi.Plan) lowerer {
	return lowerer{arch: p.Target.Arch, conv: p.Conv, fn: p.Func.String()}
}

// lower returns the libffi type for a parameter or result. ret is set for
// the result, where stack placement does not apply.
func (l lowerer) lower(a *abi.ArgInfo, ret bool) (*lowType, error) {
	if a.Type.IsVoid() {
		return lowVoidT, nil
	}
	t := types.Underlying(a.Type.Type)
	switch t.Kind() {
	case types.KindPointer:
		return scalarLow(lowPointer), nil
	case types.KindBasic:
		bt, _ := types.AsBasic(t)
		return l.lowerBasic(a, bt.BasicKind(), ret)
	case types.KindStruct, types.KindUnion:
		return l.lowerRecord(a, ret)
	default:
		return nil, unsupported(l.fn, fmt.Sprintf("cannot pass %s by value", a.Type))
	}
}

func (l lowerer) lowerBasic(a *abi.ArgInfo, k types.BasicKind, ret bool) (*lowType, error) {
	switch k {
	case types.Bool, types.UInt8:
		return scalarLow(lowUint8), nil
	case types.Char, types.Int8:
		return scalarLow(lowSint8), nil
	case types.Int16:
		return scalarLow(lowSint16), nil
	case types.UInt16:
		return scalarLow(lowUint16), nil
	case types.Int32:
		return scalarLow(lowSint32), nil
	case types.UInt32:
		return scalarLow(lowUint32), nil
	case types.Int64:
		return scalarLow(lowSint64), nil
	case types.UInt64:
		return scalarLow(lowUint64), nil
	case types.Float32:
		return scalarLow(lowFloat), nil
	case types.Float64:
		return scalarLow(lowDouble), nil
	case types.Float128:
		if l.conv == types.CCWin64 {
			// Passed by reference; only the size matters.
			return repeatLow(scalarLow(lowUint8), 16), nil
		}
		return scalarLow(lowLongDouble), nil
	case types.ComplexFloat32:
		return repeatLow(scalarLow(lowFloat), 2), nil
	case types.ComplexFloat64:
		return repeatLow(scalarLow(lowDouble), 2), nil
	case types.Int128, types.UInt128:
		if l.conv != types.CCX86_64SysV {
			return nil, unsupported(l.fn, "128-bit integers are only supported with the System V convention")
		}
		if !ret && a.Kind == abi.Stack {
			return nil, unsupported(l.fn, "128-bit integer passed on the stack")
		}
		return repeatLow(scalarLow(lowUint64), 2), nil
	default:
		return nil, unsupported(l.fn, fmt.Sprintf("%s values", k))
	}
}

func (l lowerer) lowerRecord(a *abi.ArgInfo, ret bool) (*lowType, error) {
	if a.Kind == abi.Ignore || a.Size == 0 {
		return nil, unsupported(l.fn, "empty records by value")
	}
	switch l.conv {
	case types.CCX86_64SysV:
		return l.lowerSysV(a, ret)
	case types.CCWin64:
		switch a.Size {
		case 1:
			return structLow(scalarLow(lowUint8)), nil
		case 2:
			return structLow(scalarLow(lowUint16)), nil
		case 4:
			return structLow(scalarLow(lowUint32)), nil
		case 8:
			return structLow(scalarLow(lowUint64)), nil
		}
		return repeatLow(scalarLow(lowUint8), int(a.Size)), nil
	case types.CCAArch64:
		if a.HFACount > 0 {
			elem := lowFloat
			switch a.HFABase {
			case types.Float64:
				elem = lowDouble
			case types.Float128:
				elem = lowLongDouble
			}
			return repeatLow(scalarLow(elem), a.HFACount), nil
		}
		if a.Align > 8 && a.Size <= 16 {
			return nil, unsupported(l.fn, "16-byte aligned records in registers")
		}
		return repeatLow(scalarLow(lowUint64), int((a.Size+7)/8)), nil
	default:
		return nil, unsupported(l.fn, "calling convention "+l.conv.String())
	}
}

func (l lowerer) lowerSysV(a *abi.ArgInfo, ret bool) (*lowType, error) {
	cls := a.Classes
	words := int((a.Size + 7) / 8)
	if cls[0] == abi.ClassMemory {
		if a.Size <= 16 {
			return nil, unsupported(l.fn, "records with unaligned members")
		}
		if a.Align > 8 {
			if !ret {
				return nil, unsupported(l.fn, "over-aligned records passed on the stack")
			}
			return repeatLow(scalarLow(lowLongDouble), int((a.Size+15)/16)), nil
		}
		return repeatLow(scalarLow(lowUint64), words), nil
	}
	for _, c := range cls {
		if c == abi.ClassX87 {
			if len(cls) != 2 {
				return nil, unsupported(l.fn, "mixed x87 records")
			}
			return structLow(scalarLow(lowLongDouble)), nil
		}
	}
	if !ret && a.Kind == abi.Stack && a.Align > 8 {
		return nil, unsupported(l.fn, "over-aligned records passed on the stack")
	}
	elems := make([]*lowType, 0, len(cls))
	for i, c := range cls {
		tail := a.Size - uint64(8*i)
		switch c {
		case abi.ClassSSE:
			if tail <= 4 {
				elems = append(elems, scalarLow(lowFloat))
			} else {
				elems = append(elems, scalarLow(lowDouble))
			}
		default:
			switch {
			case tail <= 1:
				elems = append(elems, scalarLow(lowUint8))
			case tail <= 2:
				elems = append(elems, scalarLow(lowUint16))
			case tail <= 4:
				elems = append(elems, scalarLow(lowUint32))
			default:
				elems = append(elems, scalarLow(lowUint64))
			}
		}
	}
	return structLow(elems...), nil
}

// storageSize is the buffer size a lowered value needs: at least its own
// size and at least one register, since libffi widens small results.
func storageSize(t *lowType, size uint64) uint64 {
	return max(t.size(), size, 8)
}

package types

import (
	"strconv"
	"strings"
)

// Label returns a C-like spelling of t. Nested types are cut off after a few
// levels so self-referential shapes stay printable.
func Label(t Type) string {
	return labelDepth(t, 0)
}

func labelDepth(t Type, depth int) string {
	if t == nil {
		return "void"
	}
	if depth > 6 {
		return "..."
	}
	switch tt := t.(type) {
	case *BasicType:
		return tt.bkind.String()
	case *PointerType:
		return labelQual(tt.pointee, depth+1) + "*"
	case *ArrayType:
		return labelQual(tt.elem, depth+1) + "[" + strconv.FormatUint(tt.n, 10) + "]"
	case *FunctionType:
		return labelFunc(tt, depth)
	case *StructType:
		return tagLabel(KindStruct, tt.name)
	case *UnionType:
		return tagLabel(KindUnion, tt.name)
	case *EnumType:
		return tagLabel(KindEnum, tt.name)
	default:
		return "?"
	}
}

func labelQual(q QualType, depth int) string {
	s := labelDepth(q.Type, depth)
	if q.Quals == 0 {
		return s
	}
	return q.Quals.String() + " " + s
}

func labelFunc(ft *FunctionType, depth int) string {
	var sb strings.Builder
	sb.WriteString(labelQual(ft.ret, depth+1))
	sb.WriteString(" (")
	for i, p := range ft.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(labelQual(p, depth+1))
	}
	if ft.variadic {
		if len(ft.params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(")")
	if ft.cc != CCDefault {
		sb.WriteString(" [")
		sb.WriteString(ft.cc.String())
		sb.WriteString("]")
	}
	return sb.String()
}

func tagLabel(kind TypeKind, name string) string {
	if name == "" {
		name = "<anonymous>"
	}
	return kind.String() + " " + name
}

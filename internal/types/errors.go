package types

import "fmt"

// DefErrorKind enumerates definition-state and structural errors.
type DefErrorKind uint8

const (
	// DefAlreadyDefined is a second Define on the same type.
	DefAlreadyDefined DefErrorKind = iota + 1
	// DefUnionOffset is a union field whose offset is not zero.
	DefUnionOffset
	// DefOpaqueUse is a layout query on a type that was never defined.
	DefOpaqueUse
	DefDuplicateField
	DefKindClash
	DefBadLayout
)

func (k DefErrorKind) String() string {
	switch k {
	case DefAlreadyDefined:
		return "already defined"
	case DefUnionOffset:
		return "union field offset"
	case DefOpaqueUse:
		return "opaque use"
	case DefDuplicateField:
		return "duplicate field"
	case DefKindClash:
		return "kind clash"
	case DefBadLayout:
		return "bad layout"
	default:
		return fmt.Sprintf("DefErrorKind(%d)", k)
	}
}

// DefinitionError reports misuse of the declare/define lifecycle or a body
// that violates a structural invariant. These indicate a wrong type
// description, not a runtime condition.
type DefinitionError struct {
	Kind   DefErrorKind
	Type   string // spelling of the offending type
	Field  string // for DefUnionOffset, DefDuplicateField, enum constants
	Offset uint64 // for DefUnionOffset
	Detail string
}

func (e *DefinitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case DefAlreadyDefined:
		return fmt.Sprintf("%s is already defined", e.Type)
	case DefUnionOffset:
		return fmt.Sprintf("%s: field %q has offset %d, union fields must be at offset 0", e.Type, e.Field, e.Offset)
	case DefOpaqueUse:
		if e.Detail != "" {
			return fmt.Sprintf("%s is opaque (%s)", e.Type, e.Detail)
		}
		return fmt.Sprintf("%s is opaque: it was declared but never defined", e.Type)
	case DefDuplicateField:
		return fmt.Sprintf("%s: duplicate member %q", e.Type, e.Field)
	case DefKindClash:
		return fmt.Sprintf("%s: tag already declared as %s", e.Type, e.Detail)
	case DefBadLayout:
		return fmt.Sprintf("%s: %s", e.Type, e.Detail)
	default:
		return fmt.Sprintf("definition error kind=%d (%s)", e.Kind, e.Type)
	}
}

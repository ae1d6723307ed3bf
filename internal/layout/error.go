package layout

import "fmt"

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrOpaqueMember is a by-value member whose type is still opaque.
	LayoutErrOpaqueMember LayoutErrorKind = iota + 1
	// LayoutErrConflictingAttrs is packed combined with an explicit alignment.
	LayoutErrConflictingAttrs
	LayoutErrBadAlign
	LayoutErrOverflow
	// LayoutErrInvalidMember is a void or function-typed member.
	LayoutErrInvalidMember
)

func (k LayoutErrorKind) String() string {
	switch k {
	case LayoutErrOpaqueMember:
		return "opaque member"
	case LayoutErrConflictingAttrs:
		return "conflicting attributes"
	case LayoutErrBadAlign:
		return "bad alignment"
	case LayoutErrOverflow:
		return "overflow"
	case LayoutErrInvalidMember:
		return "invalid member"
	default:
		return fmt.Sprintf("LayoutErrorKind(%d)", k)
	}
}

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  string // spelling of the record being laid out
	Field string
	Value uint64 // for LayoutErrBadAlign
	Err   error  // for LayoutErrOpaqueMember
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	where := e.Type
	if e.Field != "" {
		where = fmt.Sprintf("%s.%s", e.Type, e.Field)
	}
	switch e.Kind {
	case LayoutErrOpaqueMember:
		if e.Err != nil {
			return fmt.Sprintf("%s: member has incomplete type: %v", where, e.Err)
		}
		return fmt.Sprintf("%s: member has incomplete type", where)
	case LayoutErrConflictingAttrs:
		return fmt.Sprintf("%s: packed conflicts with align", where)
	case LayoutErrBadAlign:
		return fmt.Sprintf("%s: alignment %d is not a power of two", where, e.Value)
	case LayoutErrOverflow:
		return fmt.Sprintf("%s: size overflows", where)
	case LayoutErrInvalidMember:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", where, e.Err)
		}
		return fmt.Sprintf("%s: invalid member type", where)
	default:
		return fmt.Sprintf("layout error kind=%d (%s)", e.Kind, where)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

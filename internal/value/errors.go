package value

import (
	"fmt"

	"dffi/internal/types"
)

// ConvError reports a conversion between Go and C values that cannot be
// made: a kind mismatch, an out of range constant or an incomplete type.
type ConvError struct {
	Op     string
	Type   string
	Detail string
	Err    error
}

func (e *ConvError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("value.%s(%s): %v", e.Op, e.Type, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("value.%s(%s): %s", e.Op, e.Type, e.Detail)
	default:
		return fmt.Sprintf("value.%s(%s): conversion failed", e.Op, e.Type)
	}
}

func (e *ConvError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func mismatch(op string, t types.Type) error {
	return &ConvError{Op: op, Type: types.Label(t), Detail: "kind mismatch"}
}

package native

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable is returned by Bind, Open and the C memory helpers
// when the binary was built without cgo or for a platform without libffi
// support. Classification keeps working.
var ErrBackendUnavailable = errors.New("native: call backend unavailable (built without cgo or unsupported platform)")

// CallErrorKind enumerates call failures.
type CallErrorKind uint8

const (
	// CallErrArity is a wrong number of arguments.
	CallErrArity CallErrorKind = iota + 1
	// CallErrMismatch is an argument whose type does not fit its parameter.
	CallErrMismatch
	// CallErrUnsupported is a signature the backend cannot express.
	CallErrUnsupported
	// CallErrFault is a memory fault while this package read native memory.
	CallErrFault
)

func (k CallErrorKind) String() string {
	switch k {
	case CallErrArity:
		return "arity"
	case CallErrMismatch:
		return "mismatch"
	case CallErrUnsupported:
		return "unsupported"
	case CallErrFault:
		return "fault"
	default:
		return fmt.Sprintf("CallErrorKind(%d)", k)
	}
}

// CallError reports a call that was rejected before reaching native code, or
// a fault while reading native memory.
type CallError struct {
	Kind     CallErrorKind
	Func     string // signature spelling
	Index    int    // argument index for CallErrMismatch, -1 for the result
	Expected string
	Actual   string
	Addr     uintptr // faulting address for CallErrFault
	Detail   string
	Err      error
}

func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case CallErrArity:
		return fmt.Sprintf("%s: expected %s arguments, got %s", e.Func, e.Expected, e.Actual)
	case CallErrMismatch:
		if e.Index < 0 {
			return fmt.Sprintf("%s: result buffer has type %s, want %s", e.Func, e.Actual, e.Expected)
		}
		return fmt.Sprintf("%s: argument %d has type %s, want %s", e.Func, e.Index, e.Actual, e.Expected)
	case CallErrUnsupported:
		return fmt.Sprintf("%s: not supported by the native backend: %s", e.Func, e.Detail)
	case CallErrFault:
		return fmt.Sprintf("memory fault at %#x: %s", e.Addr, e.Detail)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Func, e.Err)
		}
		return fmt.Sprintf("call error kind=%d (%s)", e.Kind, e.Func)
	}
}

func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func unsupported(fn, detail string) *CallError {
	return &CallError{Kind: CallErrUnsupported, Func: fn, Detail: detail}
}

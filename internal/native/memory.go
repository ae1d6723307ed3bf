package native

import (
	"errors"
	"fmt"
	"runtime/debug"
	"unsafe"

	"dffi/internal/types"
	"dffi/internal/value"
)

var errLoadVoid = errors.New("native: load of void")

type faultAddr interface {
	Addr() uintptr
}

// guard turns a memory fault raised by fn into a CallErrFault error.
func guard(addr uintptr, fn func()) (err error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		at := addr
		if fa, ok := r.(faultAddr); ok {
			at = fa.Addr()
		} else if _, ok := r.(error); !ok {
			panic(r)
		}
		err = &CallError{Kind: CallErrFault, Addr: at, Detail: fmt.Sprint(r)}
	}()
	fn()
	return nil
}

func checkRange(addr uintptr, n int) error {
	if n < 0 {
		return fmt.Errorf("native: negative length %d", n)
	}
	if addr == 0 && n > 0 {
		return &CallError{Kind: CallErrFault, Addr: 0, Detail: "nil pointer"}
	}
	return nil
}

// ReadMemory copies n bytes starting at addr.
func ReadMemory(addr uintptr, n int) ([]byte, error) {
	if err := checkRange(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	err := guard(addr, func() {
		copy(out, unsafe.Slice((*byte)(unsafe.Pointer(addr)), n))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteMemory copies data to addr.
func WriteMemory(addr uintptr, data []byte) error {
	if err := checkRange(addr, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return guard(addr, func() {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data)), data)
	})
}

// Load reads a value of type t stored at addr.
func Load(t types.Type, addr uintptr) (value.Value, error) {
	if t == nil {
		return value.Value{}, errLoadVoid
	}
	if err := types.Complete(t); err != nil {
		return value.Value{}, err
	}
	b, err := ReadMemory(addr, int(t.Size()))
	if err != nil {
		return value.Value{}, err
	}
	return value.New(t, b)
}

// Store writes v to addr.
func Store(addr uintptr, v value.Value) error {
	return WriteMemory(addr, v.Data())
}

// ReadCString reads a NUL-terminated string of at most limit bytes.
func ReadCString(addr uintptr, limit int) (string, error) {
	if err := checkRange(addr, 1); err != nil {
		return "", err
	}
	var out []byte
	err := guard(addr, func() {
		for i := 0; i < limit; i++ {
			b := *(*byte)(unsafe.Add(unsafe.Pointer(addr), i))
			if b == 0 {
				return
			}
			out = append(out, b)
		}
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

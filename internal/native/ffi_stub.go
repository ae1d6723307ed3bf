//go:build !cgo || !linux || !(amd64 || arm64)

package native

import (
	"unsafe"
)

// Available reports whether this build can execute native calls.
const Available = false

type cifHandle struct{}

func (ci *callIface) prepare() error {
	return ErrBackendUnavailable
}

func (ci *callIface) invoke(uintptr, []byte, [][]byte) {
	panic(ErrBackendUnavailable)
}

func dlopen(string) (unsafe.Pointer, error) {
	return nil, ErrBackendUnavailable
}

func dlsym(unsafe.Pointer, string) (uintptr, error) {
	return 0, ErrBackendUnavailable
}

func dlclose(unsafe.Pointer) error {
	return ErrBackendUnavailable
}

// CString copies s into C memory with a trailing NUL. Release it with Free.
func CString(string) (uintptr, error) {
	return 0, ErrBackendUnavailable
}

// Malloc allocates n zeroed bytes of C memory. Release it with Free.
func Malloc(int) (uintptr, error) {
	return 0, ErrBackendUnavailable
}

// Free releases memory from CString or Malloc.
func Free(uintptr) {}

//go:build cgo && linux && (amd64 || arm64)

package native

/*
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

static int dffi_prep_cif(ffi_cif* cif, int abi, unsigned int nfixed,
    unsigned int ntotal, int variadic, ffi_type* rtype, ffi_type** atypes) {
  if (variadic) {
    return ffi_prep_cif_var(cif, (ffi_abi)abi, nfixed, ntotal, rtype, atypes);
  }
  return ffi_prep_cif(cif, (ffi_abi)abi, ntotal, rtype, atypes);
}

static void dffi_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
  ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}

static int dffi_abi_unix64(void) {
#if defined(__x86_64__)
  return FFI_UNIX64;
#else
  return -1;
#endif
}

static int dffi_abi_win64(void) {
#if defined(__x86_64__)
  return FFI_WIN64;
#else
  return -1;
#endif
}

static int dffi_abi_aapcs64(void) {
#if defined(__aarch64__)
  return FFI_SYSV;
#else
  return -1;
#endif
}

static ffi_type* dffi_new_struct(size_t n) {
  ffi_type* t = calloc(1, sizeof(ffi_type));
  if (t == NULL) return NULL;
  t->type = FFI_TYPE_STRUCT;
  t->elements = calloc(n + 1, sizeof(ffi_type*));
  if (t->elements == NULL) { free(t); return NULL; }
  return t;
}

static void dffi_set_elem(ffi_type* t, size_t i, ffi_type* e) {
  t->elements[i] = e;
}

static void dffi_free_struct(ffi_type* t) {
  free(t->elements);
  free(t);
}

static void* dffi_dlopen(const char* path) {
  return dlopen(path, RTLD_LAZY | RTLD_LOCAL);
}

static void* dffi_dlsym(void* h, const char* name, char** err) {
  dlerror();
  void* p = dlsym(h, name);
  char* e = dlerror();
  if (err) *err = e;
  return e ? NULL : p;
}

static const char* dffi_dlerror(void) {
  return dlerror();
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"dffi/internal/types"
)

// Available reports whether this build can execute native calls.
const Available = true

// cifHandle owns the C allocations behind a prepared call interface.
type cifHandle struct {
	cif    *C.ffi_cif
	atypes **C.ffi_type
	owned  []*C.ffi_type
}

func (h *cifHandle) free() {
	for _, t := range h.owned {
		C.dffi_free_struct(t)
	}
	h.owned = nil
	if h.atypes != nil {
		C.free(unsafe.Pointer(h.atypes))
		h.atypes = nil
	}
	if h.cif != nil {
		C.free(unsafe.Pointer(h.cif))
		h.cif = nil
	}
}

func hostABI(conv types.CallingConv) int {
	switch conv {
	case types.CCX86_64SysV:
		return int(C.dffi_abi_unix64())
	case types.CCWin64:
		return int(C.dffi_abi_win64())
	case types.CCAArch64:
		return int(C.dffi_abi_aapcs64())
	default:
		return -1
	}
}

func (h *cifHandle) ffiType(t *lowType) (*C.ffi_type, error) {
	switch t.kind {
	case lowVoid:
		return &C.ffi_type_void, nil
	case lowUint8:
		return &C.ffi_type_uint8, nil
	case lowSint8:
		return &C.ffi_type_sint8, nil
	case lowUint16:
		return &C.ffi_type_uint16, nil
	case lowSint16:
		return &C.ffi_type_sint16, nil
	case lowUint32:
		return &C.ffi_type_uint32, nil
	case lowSint32:
		return &C.ffi_type_sint32, nil
	case lowUint64:
		return &C.ffi_type_uint64, nil
	case lowSint64:
		return &C.ffi_type_sint64, nil
	case lowFloat:
		return &C.ffi_type_float, nil
	case lowDouble:
		return &C.ffi_type_double, nil
	case lowLongDouble:
		return &C.ffi_type_longdouble, nil
	case lowPointer:
		return &C.ffi_type_pointer, nil
	}
	st := C.dffi_new_struct(C.size_t(len(t.elems)))
	if st == nil {
		return nil, errors.New("native: out of memory")
	}
	h.owned = append(h.owned, st)
	for i, e := range t.elems {
		et, err := h.ffiType(e)
		if err != nil {
			return nil, err
		}
		C.dffi_set_elem(st, C.size_t(i), et)
	}
	return st, nil
}

func (ci *callIface) prepare() error {
	p := ci.plan
	code := hostABI(p.Conv)
	if code < 0 {
		return unsupported(p.Func.String(), fmt.Sprintf("no libffi ABI for %s on %s/%s", p.Conv, runtime.GOOS, runtime.GOARCH))
	}
	if p.Target.Arch.String() != hostArch() {
		return unsupported(p.Func.String(), fmt.Sprintf("plan for %s cannot run on %s", p.Target, runtime.GOARCH))
	}
	h := &cifHandle{}
	rt, err := h.ffiType(ci.ret)
	if err != nil {
		h.free()
		return err
	}
	n := len(ci.args)
	if n > 0 {
		h.atypes = (**C.ffi_type)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(uintptr(0)))))
		if h.atypes == nil {
			h.free()
			return errors.New("native: out of memory")
		}
		vec := unsafe.Slice(h.atypes, n)
		for i, a := range ci.args {
			at, err := h.ffiType(a)
			if err != nil {
				h.free()
				return err
			}
			vec[i] = at
		}
	}
	h.cif = (*C.ffi_cif)(C.calloc(1, C.size_t(unsafe.Sizeof(C.ffi_cif{}))))
	if h.cif == nil {
		h.free()
		return errors.New("native: out of memory")
	}
	variadic := 0
	if p.Func.IsVarArgs() {
		variadic = 1
	}
	st := C.dffi_prep_cif(h.cif, C.int(code), C.uint(p.Func.NumParams()), C.uint(n), C.int(variadic), rt, h.atypes)
	if int(st) != int(C.FFI_OK) {
		h.free()
		return unsupported(p.Func.String(), fmt.Sprintf("ffi_prep_cif failed with status %d", int(st)))
	}
	ci.h = h
	runtime.AddCleanup(ci, func(h *cifHandle) { h.free() }, h)
	return nil
}

func hostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

func alignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}

// invoke copies the arguments into one C block, calls fn and copies the
// result into ret.
func (ci *callIface) invoke(fn uintptr, ret []byte, args [][]byte) {
	n := len(args)
	size := uintptr(n) * unsafe.Sizeof(uintptr(0))
	offs := make([]uintptr, n)
	for i := range args {
		size = alignUp(size, 16)
		offs[i] = size
		size += uintptr(ci.argSizes[i])
	}
	size = alignUp(size, 16)
	retOff := size
	size += uintptr(ci.retSize)

	block := C.calloc(1, C.size_t(size))
	if block == nil {
		panic("native: out of memory")
	}
	defer C.free(block)

	argv := unsafe.Slice((*unsafe.Pointer)(block), n)
	for i, a := range args {
		slot := unsafe.Add(block, offs[i])
		argv[i] = slot
		copy(unsafe.Slice((*byte)(slot), ci.argSizes[i]), a)
	}
	rp := unsafe.Add(block, retOff)
	C.dffi_call(ci.h.cif, unsafe.Pointer(fn), rp, (*unsafe.Pointer)(block))
	runtime.KeepAlive(ci)
	if len(ret) > 0 {
		copy(ret, unsafe.Slice((*byte)(rp), len(ret)))
	}
}

func dlerr() string {
	if e := C.dffi_dlerror(); e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}

func dlopen(path string) (unsafe.Pointer, error) {
	var cs *C.char
	if path != "" {
		cs = C.CString(path)
		defer C.free(unsafe.Pointer(cs))
	}
	h := C.dffi_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("native: dlopen(%q): %s", path, dlerr())
	}
	return h, nil
}

func dlsym(h unsafe.Pointer, name string) (uintptr, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var cerr *C.char
	p := C.dffi_dlsym(h, cs, &cerr)
	if cerr != nil {
		return 0, fmt.Errorf("native: dlsym(%q): %s", name, C.GoString(cerr))
	}
	return uintptr(p), nil
}

func dlclose(h unsafe.Pointer) error {
	if C.dlclose(h) != 0 {
		return fmt.Errorf("native: dlclose: %s", dlerr())
	}
	return nil
}

// CString copies s into C memory with a trailing NUL. Release it with Free.
func CString(s string) (uintptr, error) {
	return uintptr(unsafe.Pointer(C.CString(s))), nil
}

// Malloc allocates n zeroed bytes of C memory. Release it with Free.
func Malloc(n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("native: malloc of %d bytes", n)
	}
	p := C.calloc(1, C.size_t(n))
	if p == nil {
		return 0, errors.New("native: out of memory")
	}
	return uintptr(p), nil
}

// Free releases memory from CString or Malloc.
func Free(addr uintptr) {
	C.free(unsafe.Pointer(addr))
}

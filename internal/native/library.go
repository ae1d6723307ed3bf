package native

import (
	"fmt"
	"sync"
	"unsafe"
)

// Library is a loaded shared object.
type Library struct {
	path string

	mu     sync.Mutex
	handle unsafe.Pointer
	closed bool
}

// Open loads the shared object at path. The empty path opens the running
// process and every library already loaded into it.
func Open(path string) (*Library, error) {
	h, err := dlopen(path)
	if err != nil {
		return nil, err
	}
	return &Library{path: path, handle: h}, nil
}

// Path returns the path the library was opened with.
func (l *Library) Path() string { return l.path }

// Symbol resolves name to an address.
func (l *Library) Symbol(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, fmt.Errorf("native: symbol %q: library %q is closed", name, l.path)
	}
	return dlsym(l.handle, name)
}

// Close unloads the library. Addresses resolved from it must not be called
// afterwards. Closing twice is a no-op.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return dlclose(l.handle)
}

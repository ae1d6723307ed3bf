//go:build linux

package testkit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Page is an anonymous mapping used to exercise memory access checks.
type Page struct {
	mem []byte
}

// NewPage maps one page of readable and writable memory.
func NewPage() (*Page, error) {
	mem, err := unix.Mmap(-1, 0, unix.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &Page{mem: mem}, nil
}

// Addr returns the first byte of the page.
func (p *Page) Addr() uintptr {
	return uintptr(unsafe.Pointer(&p.mem[0]))
}

// Size returns the page size.
func (p *Page) Size() int { return len(p.mem) }

// Bytes exposes the mapping while it is accessible.
func (p *Page) Bytes() []byte { return p.mem }

// Revoke removes all access, so any read or write of the page faults.
func (p *Page) Revoke() error {
	return unix.Mprotect(p.mem, unix.PROT_NONE)
}

// Release unmaps the page.
func (p *Page) Release() error {
	return unix.Munmap(p.mem)
}

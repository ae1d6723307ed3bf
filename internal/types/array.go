package types

import (
	"fmt"
	"math/bits"

	"fortio.org/safecast"
)

// PointerType is a pointer to a qualified pointee. A void pointee gives void*.
type PointerType struct {
	base
	pointee QualType
}

// Pointee returns the pointed-to type.
func (t *PointerType) Pointee() QualType { return t.pointee }

// Size returns the data model's pointer size.
func (t *PointerType) Size() uint64 { return t.ctx.model.PtrSize }

// Align returns the data model's pointer alignment.
func (t *PointerType) Align() uint32 { return t.ctx.model.PtrAlign }

func (t *PointerType) String() string { return Label(t) }

// ArrayType is a fixed-length array. A zero length is valid and models the
// flexible array member pattern.
type ArrayType struct {
	base
	elem QualType
	n    uint64
}

// Elem returns the element type.
func (t *ArrayType) Elem() QualType { return t.elem }

// Len returns the element count.
func (t *ArrayType) Len() uint64 { return t.n }

// Size is elemSize * Len. Arrays add no padding of their own.
func (t *ArrayType) Size() uint64 { return t.elem.Size() * t.n }

// Align is the element's alignment.
func (t *ArrayType) Align() uint32 { return t.elem.Align() }

func (t *ArrayType) String() string { return Label(t) }

func checkArraySize(elem QualType, n uint64) error {
	hi, lo := bits.Mul64(elem.Size(), n)
	if hi != 0 {
		return fmt.Errorf("array of %d x %s overflows uint64", n, elem)
	}
	if _, err := safecast.Conv[int64](lo); err != nil {
		return fmt.Errorf("array of %d x %s is too large: %w", n, elem, err)
	}
	return nil
}

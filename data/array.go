package data

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompatibleBackend is returned when two arrays from different
	// backends meet in a single operation. Backends are never silently
	// coerced or converted.
	ErrIncompatibleBackend = errors.New("incompatible array backends")

	// ErrInvalidRegion is returned when a region copy is out of bounds or
	// the source and destination extents disagree.
	ErrInvalidRegion = errors.New("invalid array region")
)

// DType is an opaque element-kind tag. The core propagates it through
// allocations and copies but never interprets it; only backends assign
// meaning to individual values.
type DType uint32

// Element kinds used by the built-in backend.
const (
	Float64 DType = iota + 1
	Float32
)

// Range is a half-open [Start, End) interval along one axis.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Full returns the region covering an entire array of the given shape.
func Full(shape []int) []Range {
	region := make([]Range, len(shape))
	for i, n := range shape {
		region[i] = Range{0, n}
	}
	return region
}

// Array is the capability contract for block storage backends.
//
// Implementations own their data exclusively; the core never aliases two
// blocks to the same array. All methods must be safe for concurrent readers.
type Array interface {
	// Shape returns the array dimensions. Callers must not modify it.
	Shape() []int

	// DType returns the opaque element-kind tag of the array.
	DType() DType

	// Origin identifies the backend that produced this array.
	Origin() Origin

	// CreateLike allocates a new array of the same backend and element kind
	// with the given shape. When zero is set the content is deterministic
	// zero; otherwise it is unspecified.
	CreateLike(shape []int, zero bool) (Array, error)

	// CopyRegionFrom copies the rectangular region srcRegion of src into
	// dstRegion of this array. Regions must be in bounds and have matching
	// extents once length-one axes are dropped. Copying from a different
	// backend fails with ErrIncompatibleBackend.
	CopyRegionFrom(dstRegion []Range, src Array, srcRegion []Range) error
}

// SameBackend reports whether two arrays share origin and element kind.
func SameBackend(a, b Array) bool {
	return a.Origin() == b.Origin() && a.DType() == b.DType()
}

// checkRegion validates that region is within shape.
func checkRegion(shape []int, region []Range) error {
	if len(region) != len(shape) {
		return fmt.Errorf("%w: region rank %d, array rank %d",
			ErrInvalidRegion, len(region), len(shape))
	}
	for axis, r := range region {
		if r.Start < 0 || r.End > shape[axis] || r.Start > r.End {
			return fmt.Errorf("%w: axis %d range [%d:%d) outside size %d",
				ErrInvalidRegion, axis, r.Start, r.End, shape[axis])
		}
	}
	return nil
}

// NumElements returns the element count of a shape.
func NumElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

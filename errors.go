package equistore

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when an array shape disagrees with the
	// labels bound to its axes, or when label sets that must match across a
	// merge differ.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrLengthMismatch is returned when a tensor map is built with a number
	// of blocks different from the number of keys.
	ErrLengthMismatch = errors.New("keys and blocks length mismatch")

	// ErrDuplicateKey is returned when the same key appears twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrIndexOutOfRange is returned when a block index exceeds the key count.
	ErrIndexOutOfRange = errors.New("block index out of range")

	// ErrNotFound is returned when a selection matches no block, or a named
	// dimension does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguousSelection is returned when a selection that must identify
	// a single block matches more than one.
	ErrAmbiguousSelection = errors.New("ambiguous selection")

	// ErrDuplicateGradient is returned when a gradient parameter is
	// registered twice on the same block.
	ErrDuplicateGradient = errors.New("duplicate gradient parameter")

	// ErrNestedGradient is returned when adding a gradient to a block that
	// is itself a gradient. Gradients have depth exactly one.
	ErrNestedGradient = errors.New("gradients of gradients are not supported")

	// ErrIncompatibleSamples is returned when blocks merged along the
	// samples axis disagree on their sample dimension names.
	ErrIncompatibleSamples = errors.New("incompatible sample labels")

	// ErrBlockInUse is returned when a block already owned by a tensor map
	// or parent block is used again. Copy the block first.
	ErrBlockInUse = errors.New("block already has an owner")
)

// shapeError builds an ErrShapeMismatch with axis context.
func shapeError(what string, expected, actual int) error {
	return fmt.Errorf("%w: %s: expected %d, got %d", ErrShapeMismatch, what, expected, actual)
}

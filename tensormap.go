package equistore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bananenpampe/equistore/labels"
)

// TensorMap is an ordered key/block store: a keys label set paired 1:1 with
// a list of blocks, the i-th block holding the data for the i-th key.
//
// Maps own their blocks exclusively. Reshaping operations never mutate an
// existing map; they build and return a new one.
type TensorMap struct {
	keys   *labels.Labels
	blocks []*TensorBlock
	logger *Logger
}

// New creates a tensor map from keys and blocks. The number of blocks must
// equal the number of keys, and every block must be free of a previous
// owner (use TensorBlock.Copy to reuse a block).
func New(keys *labels.Labels, blocks []*TensorBlock) (*TensorMap, error) {
	if keys.Count() != len(blocks) {
		return nil, fmt.Errorf("%w: %d keys, %d blocks",
			ErrLengthMismatch, keys.Count(), len(blocks))
	}
	for i := 0; i < keys.Count(); i++ {
		if pos, _ := keys.Position(keys.Row(i)); pos != i {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, keys.Row(i))
		}
	}
	for i, block := range blocks {
		if block == nil {
			return nil, fmt.Errorf("%w: block %d is nil", ErrLengthMismatch, i)
		}
		if block.owned || block.isGradient {
			return nil, fmt.Errorf("%w: block %d", ErrBlockInUse, i)
		}
	}
	// only claim ownership once every block has been validated
	for _, block := range blocks {
		block.owned = true
	}

	return &TensorMap{
		keys:   keys,
		blocks: append([]*TensorBlock(nil), blocks...),
	}, nil
}

// Keys returns the keys of this tensor map.
func (t *TensorMap) Keys() *labels.Labels { return t.keys }

// Len returns the number of blocks.
func (t *TensorMap) Len() int { return len(t.blocks) }

// BlockByID returns the block at the given key position.
func (t *TensorMap) BlockByID(i int) (*TensorBlock, error) {
	if i < 0 || i >= len(t.blocks) {
		return nil, fmt.Errorf("%w: index %d with %d blocks",
			ErrIndexOutOfRange, i, len(t.blocks))
	}
	return t.blocks[i], nil
}

// BlocksMatching returns the key positions matching the given selection.
// Selection dimensions must name a subset of the key dimensions; omitted
// dimensions act as wildcards. A selection naming unknown dimensions
// matches nothing.
func (t *TensorMap) BlocksMatching(selection *labels.Labels) ([]int, error) {
	positions, err := t.keys.Select(selection)
	if err != nil {
		if errors.Is(err, labels.ErrNamesMismatch) {
			return nil, nil
		}
		return nil, err
	}
	return positions, nil
}

// Block returns the single block matching the selection. It fails with
// ErrNotFound when nothing matches and ErrAmbiguousSelection when the
// selection matches more than one block.
func (t *TensorMap) Block(selection *labels.Labels) (*TensorBlock, error) {
	positions, err := t.BlocksMatching(selection)
	if err != nil {
		return nil, err
	}
	switch len(positions) {
	case 0:
		return nil, fmt.Errorf("%w: no block matching selection", ErrNotFound)
	case 1:
		return t.blocks[positions[0]], nil
	default:
		return nil, fmt.Errorf("%w: selection matches %d blocks",
			ErrAmbiguousSelection, len(positions))
	}
}

// Copy returns a deep copy of the tensor map: keys are shared (immutable),
// blocks and their data are duplicated.
func (t *TensorMap) Copy() (*TensorMap, error) {
	blocks := make([]*TensorBlock, len(t.blocks))
	for i, block := range t.blocks {
		clone, err := block.Copy()
		if err != nil {
			return nil, err
		}
		blocks[i] = clone
	}
	clone, err := New(t.keys, blocks)
	if err != nil {
		return nil, err
	}
	clone.logger = t.logger
	return clone, nil
}

// WithLogger attaches a logger for operation tracing. Maps produced by the
// reshaping operations and Copy inherit it.
func (t *TensorMap) WithLogger(l *Logger) *TensorMap {
	t.logger = l
	return t
}

func (t *TensorMap) log() *Logger {
	if t.logger != nil {
		return t.logger
	}
	return NoopLogger()
}

// logReshape reports one reshaping operation, tagged with the key count of
// the source map.
func (t *TensorMap) logReshape(op string, dimensions []string, result *TensorMap, err error) {
	after := 0
	if result != nil {
		after = result.Len()
	}
	t.log().WithKeyCount(t.keys.Count()).LogReshape(context.Background(), op, dimensions, t.Len(), after, err)
}

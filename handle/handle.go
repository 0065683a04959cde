// Package handle provides a flat, opaque-handle view of labels, blocks and
// tensor maps for host-language binding layers. Handles are plain integers
// detached from Go pointers; objects stay alive until Destroy is called on
// them, with no implicit reclamation.
package handle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bananenpampe/equistore"
	"github.com/bananenpampe/equistore/labels"
)

var (
	// ErrInvalidHandle is returned for unknown or already destroyed
	// handles.
	ErrInvalidHandle = errors.New("handle: invalid handle")

	// ErrWrongKind is returned when a handle refers to an object of a
	// different kind than requested.
	ErrWrongKind = errors.New("handle: wrong object kind")
)

// Kind identifies the object type behind a handle.
type Kind uint8

const (
	KindLabels Kind = iota + 1
	KindBlock
	KindTensorMap
)

func (k Kind) String() string {
	switch k {
	case KindLabels:
		return "labels"
	case KindBlock:
		return "block"
	case KindTensorMap:
		return "tensormap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Handle is an opaque reference to a registered object. The zero value is
// never a valid handle.
type Handle uint64

type entry struct {
	kind  Kind
	value any
}

// Table registers objects and hands out handles. Safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]entry
}

// NewTable creates an empty handle table.
func NewTable() *Table {
	return &Table{entries: make(map[Handle]entry)}
}

func (t *Table) put(kind Kind, value any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.entries[t.next] = entry{kind: kind, value: value}
	return t.next
}

// PutLabels registers a labels set.
func (t *Table) PutLabels(l *labels.Labels) Handle {
	return t.put(KindLabels, l)
}

// PutBlock registers a block.
func (t *Table) PutBlock(b *equistore.TensorBlock) Handle {
	return t.put(KindBlock, b)
}

// PutTensorMap registers a tensor map.
func (t *Table) PutTensorMap(m *equistore.TensorMap) Handle {
	return t.put(KindTensorMap, m)
}

func (t *Table) get(h Handle, kind Kind) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%w: handle %d is a %s, not a %s",
			ErrWrongKind, h, e.kind, kind)
	}
	return e.value, nil
}

// Labels resolves a labels handle.
func (t *Table) Labels(h Handle) (*labels.Labels, error) {
	v, err := t.get(h, KindLabels)
	if err != nil {
		return nil, err
	}
	return v.(*labels.Labels), nil
}

// Block resolves a block handle.
func (t *Table) Block(h Handle) (*equistore.TensorBlock, error) {
	v, err := t.get(h, KindBlock)
	if err != nil {
		return nil, err
	}
	return v.(*equistore.TensorBlock), nil
}

// TensorMap resolves a tensor map handle.
func (t *Table) TensorMap(h Handle) (*equistore.TensorMap, error) {
	v, err := t.get(h, KindTensorMap)
	if err != nil {
		return nil, err
	}
	return v.(*equistore.TensorMap), nil
}

// Kind reports the object kind behind a handle.
func (t *Table) Kind(h Handle) (Kind, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[h]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return e.kind, nil
}

// Destroy releases a handle. Destroying a handle twice is an error, as it
// usually indicates a double-free in the binding layer.
func (t *Table) Destroy(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[h]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(t.entries, h)
	return nil
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

package labels

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidShape is returned when names and entry arities disagree, or
	// when dimension names are not distinct.
	ErrInvalidShape = errors.New("invalid labels shape")

	// ErrDuplicateEntry is returned when the same entry appears twice.
	ErrDuplicateEntry = errors.New("duplicate labels entry")

	// ErrNamesMismatch is returned by set operations over labels that do not
	// share the same dimension names.
	ErrNamesMismatch = errors.New("labels dimension names mismatch")
)

// Labels is an immutable, insertion-ordered set of named integer tuples.
//
// Two parallel structures back each instance: a flat row-major slice holding
// the entries in construction order, and a hash index mapping entry values
// to their position. Both are frozen once New returns.
type Labels struct {
	names  []string
	values []int32 // len == len(names) * count
	index  map[string]int
}

// New creates a set of labels with the given dimension names and entries.
//
// Every entry must have exactly len(names) values and appear only once.
// Dimension names must be distinct and non-empty.
func New(names []string, entries [][]int32) (*Labels, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: labels need at least one dimension", ErrInvalidShape)
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: empty dimension name", ErrInvalidShape)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate dimension name %q", ErrInvalidShape, name)
		}
		seen[name] = struct{}{}
	}

	size := len(names)
	l := &Labels{
		names:  append([]string(nil), names...),
		values: make([]int32, 0, size*len(entries)),
		index:  make(map[string]int, len(entries)),
	}

	for i, entry := range entries {
		if len(entry) != size {
			return nil, fmt.Errorf("%w: entry %d has %d values, expected %d",
				ErrInvalidShape, i, len(entry), size)
		}
		key := packEntry(entry)
		if previous, ok := l.index[key]; ok {
			return nil, fmt.Errorf("%w: entry %v at positions %d and %d",
				ErrDuplicateEntry, entry, previous, i)
		}
		l.index[key] = i
		l.values = append(l.values, entry...)
	}

	return l, nil
}

// MustNew is like New but panics on error. Intended for tests and constants.
func MustNew(names []string, entries [][]int32) *Labels {
	l, err := New(names, entries)
	if err != nil {
		panic(err)
	}
	return l
}

// Single returns the labels used for keys when every key dimension has been
// moved away: a single dimension named "_" with a single entry 0.
func Single() *Labels {
	return MustNew([]string{"_"}, [][]int32{{0}})
}

// Empty returns labels with the given names and no entries.
func Empty(names []string) (*Labels, error) {
	return New(names, nil)
}

// packEntry encodes an entry as a compact string key for the hash index.
func packEntry(entry []int32) string {
	buf := make([]byte, 4*len(entry))
	for i, v := range entry {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return string(buf)
}

// Names returns the dimension names. The returned slice must not be modified.
func (l *Labels) Names() []string {
	return l.names
}

// Size returns the number of dimensions (values per entry).
func (l *Labels) Size() int {
	return len(l.names)
}

// Count returns the number of entries.
func (l *Labels) Count() int {
	if len(l.names) == 0 {
		return 0
	}
	return len(l.values) / len(l.names)
}

// Value returns the value for dimension d of entry i.
func (l *Labels) Value(i, d int) int32 {
	return l.values[i*len(l.names)+d]
}

// Row returns entry i as a slice. The returned slice aliases internal
// storage and must not be modified.
func (l *Labels) Row(i int) []int32 {
	size := len(l.names)
	return l.values[i*size : (i+1)*size : (i+1)*size]
}

// Position returns the position of the given entry, if present.
func (l *Labels) Position(entry []int32) (int, bool) {
	if len(entry) != len(l.names) {
		return 0, false
	}
	pos, ok := l.index[packEntry(entry)]
	return pos, ok
}

// Contains reports whether the given entry is part of these labels.
func (l *Labels) Contains(entry []int32) bool {
	_, ok := l.Position(entry)
	return ok
}

// DimensionIndex returns the column of the given dimension name, if present.
func (l *Labels) DimensionIndex(name string) (int, bool) {
	for d, n := range l.names {
		if n == name {
			return d, true
		}
	}
	return 0, false
}

// Entry returns a read-only view of entry i.
func (l *Labels) Entry(i int) Entry {
	return Entry{labels: l, position: i}
}

// Equal reports whether two labels have the same names and the same entries
// in the same order.
func (l *Labels) Equal(other *Labels) bool {
	if l == other {
		return true
	}
	if !sameNames(l.names, other.names) || len(l.values) != len(other.values) {
		return false
	}
	for i, v := range l.values {
		if other.values[i] != v {
			return false
		}
	}
	return true
}

// SameEntries reports whether two labels hold the same entry set, ignoring
// order. Names must still match.
func (l *Labels) SameEntries(other *Labels) bool {
	if !sameNames(l.names, other.names) || l.Count() != other.Count() {
		return false
	}
	for i := 0; i < l.Count(); i++ {
		if !other.Contains(l.Row(i)) {
			return false
		}
	}
	return true
}

// SortedPositions returns the entry positions ordered lexicographically by
// entry values, ascending. The labels themselves are not modified.
func (l *Labels) SortedPositions() []int {
	positions := make([]int, l.Count())
	for i := range positions {
		positions[i] = i
	}
	sort.SliceStable(positions, func(a, b int) bool {
		return compareEntries(l.Row(positions[a]), l.Row(positions[b])) < 0
	})
	return positions
}

// Compare orders two entries lexicographically, returning -1, 0 or 1.
func Compare(a, b []int32) int {
	return compareEntries(a, b)
}

func compareEntries(a, b []int32) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (l *Labels) String() string {
	return fmt.Sprintf("Labels%v (%d entries)", l.names, l.Count())
}

package labels

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Select returns the positions of entries matching the given selection.
//
// The selection names must be a subset of these labels' names; dimensions
// not present in the selection act as wildcards. An entry matches when it
// agrees with at least one selection entry on every selection dimension.
// Positions are returned in entry order.
func (l *Labels) Select(selection *Labels) ([]int, error) {
	if selection.Size() == 0 {
		return nil, fmt.Errorf("%w: selection has no dimensions", ErrInvalidShape)
	}

	columns := make([]int, selection.Size())
	for d, name := range selection.names {
		column, ok := l.DimensionIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: selection dimension %q not found in %v",
				ErrNamesMismatch, name, l.names)
		}
		columns[d] = column
	}

	matches := roaring.New()
	for i := 0; i < selection.Count(); i++ {
		entry := selection.Row(i)

		candidate := l.matchColumn(columns[0], entry[0])
		for d := 1; d < len(columns) && !candidate.IsEmpty(); d++ {
			candidate.And(l.matchColumn(columns[d], entry[d]))
		}
		matches.Or(candidate)
	}

	positions := make([]int, 0, matches.GetCardinality())
	it := matches.Iterator()
	for it.HasNext() {
		positions = append(positions, int(it.Next()))
	}
	return positions, nil
}

// matchColumn returns the positions whose value in the given column equals v.
func (l *Labels) matchColumn(column int, v int32) *roaring.Bitmap {
	bitmap := roaring.New()
	for i, count := 0, l.Count(); i < count; i++ {
		if l.Value(i, column) == v {
			bitmap.Add(uint32(i))
		}
	}
	return bitmap
}

package labels

import "fmt"

// Union returns the order-preserving union of two labels sharing the same
// dimension names: all entries of l in their original order, followed by the
// entries of other that are not already present, in their order.
func (l *Labels) Union(other *Labels) (*Labels, error) {
	if err := l.checkSameNames(other); err != nil {
		return nil, err
	}

	entries := make([][]int32, 0, l.Count()+other.Count())
	for i := 0; i < l.Count(); i++ {
		entries = append(entries, l.Row(i))
	}
	for i := 0; i < other.Count(); i++ {
		if !l.Contains(other.Row(i)) {
			entries = append(entries, other.Row(i))
		}
	}
	return New(l.names, entries)
}

// Intersection returns the entries of l that are also present in other, in
// l's order. Both labels must share the same dimension names.
func (l *Labels) Intersection(other *Labels) (*Labels, error) {
	if err := l.checkSameNames(other); err != nil {
		return nil, err
	}

	var entries [][]int32
	for i := 0; i < l.Count(); i++ {
		if other.Contains(l.Row(i)) {
			entries = append(entries, l.Row(i))
		}
	}
	return New(l.names, entries)
}

// Difference returns the entries of l that are not present in other, in l's
// order. Both labels must share the same dimension names.
func (l *Labels) Difference(other *Labels) (*Labels, error) {
	if err := l.checkSameNames(other); err != nil {
		return nil, err
	}

	var entries [][]int32
	for i := 0; i < l.Count(); i++ {
		if !other.Contains(l.Row(i)) {
			entries = append(entries, l.Row(i))
		}
	}
	return New(l.names, entries)
}

func (l *Labels) checkSameNames(other *Labels) error {
	if !sameNames(l.names, other.names) {
		return fmt.Errorf("%w: %v vs %v", ErrNamesMismatch, l.names, other.names)
	}
	return nil
}

package labels

import (
	"fmt"
	"strings"
)

// Entry is a read-only view of a single labels entry. It stays valid for as
// long as the underlying labels, which are immutable.
type Entry struct {
	labels   *Labels
	position int
}

// Names returns the dimension names of the underlying labels.
func (e Entry) Names() []string {
	return e.labels.names
}

// Position returns the position of this entry within its labels.
func (e Entry) Position() int {
	return e.position
}

// Values returns the entry values. The returned slice aliases internal
// storage and must not be modified.
func (e Entry) Values() []int32 {
	return e.labels.Row(e.position)
}

// Value returns the value for the given dimension name.
func (e Entry) Value(name string) (int32, bool) {
	d, ok := e.labels.DimensionIndex(name)
	if !ok {
		return 0, false
	}
	return e.labels.Value(e.position, d), true
}

func (e Entry) String() string {
	var sb strings.Builder
	row := e.Values()
	for i, name := range e.labels.names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%d", name, row[i])
	}
	return sb.String()
}

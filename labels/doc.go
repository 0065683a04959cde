// Package labels implements the immutable, hash-indexed label sets used to
// annotate the axes of tensor blocks and the key space of tensor maps.
//
// A Labels instance is an ordered set of integer tuples ("entries"), each
// column named by a dimension. Entries are unique, lookup by value is O(1)
// on average, and iteration always follows construction order. Instances
// are frozen after construction and safe for unsynchronized concurrent
// reads.
package labels

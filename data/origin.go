package data

import "sync"

// Origin identifies the backend that created an array. Origins are assigned
// by RegisterOrigin and compare equal only for arrays of the same backend.
type Origin uint64

var origins = struct {
	sync.RWMutex
	names map[Origin]string
	next  Origin
}{
	names: make(map[Origin]string),
	next:  1,
}

// RegisterOrigin registers a new backend origin under the given name and
// returns its identifier. Safe for concurrent use.
func RegisterOrigin(name string) Origin {
	origins.Lock()
	defer origins.Unlock()

	o := origins.next
	origins.next++
	origins.names[o] = name
	return o
}

// Name returns the name the origin was registered under, or "unknown".
func (o Origin) Name() string {
	origins.RLock()
	defer origins.RUnlock()

	if name, ok := origins.names[o]; ok {
		return name
	}
	return "unknown"
}

// DenseOrigin is the origin of the built-in dense float64 backend.
var DenseOrigin = RegisterOrigin("equistore.dense")

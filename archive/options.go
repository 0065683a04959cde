package archive

import (
	"github.com/bananenpampe/equistore"
	"github.com/bananenpampe/equistore/data"
)

// Compression selects the storage method of the zip entries.
type Compression int

const (
	// Stored writes entries uncompressed, the npz-compatible default.
	Stored Compression = iota
	// Deflate compresses entries. Archives stay valid zip files but are
	// no longer bit-identical to numpy's savez output.
	Deflate
)

// ArrayCreator materializes a value buffer read from an archive. The
// values are row-major float64, matching the on-disk layout.
type ArrayCreator func(shape []int, values []float64) (data.Array, error)

// DenseArrayCreator builds buffers on the built-in dense backend.
func DenseArrayCreator(shape []int, values []float64) (data.Array, error) {
	return data.DenseFrom(values, shape)
}

// Options configures saving and loading.
type Options struct {
	// Compression is the zip storage method used when saving.
	Compression Compression

	// Arrays materializes value buffers when loading.
	Arrays ArrayCreator

	// Logger receives save and load events.
	Logger *equistore.Logger

	// Metrics collects save and load timings.
	Metrics equistore.MetricsCollector
}

// DefaultOptions returns the npz-compatible defaults: stored entries,
// dense arrays, no logging, no metrics.
func DefaultOptions() Options {
	return Options{
		Compression: Stored,
		Arrays:      DenseArrayCreator,
		Logger:      equistore.NoopLogger(),
		Metrics:     equistore.NoopMetricsCollector{},
	}
}

func (o Options) withDefaults() Options {
	if o.Arrays == nil {
		o.Arrays = DenseArrayCreator
	}
	if o.Logger == nil {
		o.Logger = equistore.NoopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = equistore.NoopMetricsCollector{}
	}
	return o
}
